package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dhoulb/shelving/item"
	"github.com/dhoulb/shelving/jsonldb"
	"github.com/dhoulb/shelving/provider"
	"github.com/dhoulb/shelving/schema"
)

type rootOptions struct {
	configPath string
	dataDir    string
	logLevel   string
	noColor    bool

	cfg Config
	log *slog.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "shelving",
		Short:         "Inspect and mutate a shelving JSONL data directory",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = opts.dataDir
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = opts.logLevel
			}
			if cmd.Flags().Changed("no-color") {
				cfg.NoColor = opts.noColor
			}
			opts.cfg = cfg
			opts.log = initLogger(cfg.LogLevel, cfg.NoColor)
			slog.SetDefault(opts.log)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "./data", "Data directory")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored logs")

	cmd.AddCommand(
		newGetCommand(opts),
		newAddCommand(opts),
		newSetCommand(opts),
		newUpdateCommand(opts),
		newDeleteCommand(opts),
		newQueryCommand(opts),
		newWatchCommand(opts),
	)
	return cmd
}

// openStack opens the data directory and composes the provider chain:
// validation closest to the storage, debug logging closest to the caller.
func (o *rootOptions) openStack() (provider.Provider, func(), error) {
	store, err := jsonldb.Open(o.cfg.DataDir, jsonldb.WithLogger(o.log))
	if err != nil {
		return nil, nil, err
	}
	var p provider.Provider = store
	if len(o.cfg.Schemas) > 0 {
		schemas := provider.SchemaMap{}
		for collection, path := range o.cfg.Schemas {
			src, err := os.ReadFile(path)
			if err != nil {
				store.Close()
				return nil, nil, fmt.Errorf("failed to read schema for %s: %w", collection, err)
			}
			validator, err := schema.CUE(string(src))
			if err != nil {
				store.Close()
				return nil, nil, fmt.Errorf("failed to compile schema for %s: %w", collection, err)
			}
			schemas[collection] = validator
		}
		p = provider.NewValidation(p, schemas)
	}
	return provider.NewDebug(p, o.log), store.Close, nil
}

// splitRef parses "collection/id".
func splitRef(s string) (string, string, error) {
	collection, id, ok := strings.Cut(s, "/")
	if !ok || collection == "" || id == "" {
		return "", "", fmt.Errorf("expected <collection>/<id>, got %q", s)
	}
	return collection, id, nil
}

func parseData(s string) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		return nil, fmt.Errorf("data must be a JSON object: %w", err)
	}
	return data, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func newGetCommand(opts *rootOptions) *cobra.Command {
	var require bool
	cmd := &cobra.Command{
		Use:   "get <collection>/<id>",
		Short: "Read one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, id, err := splitRef(args[0])
			if err != nil {
				return err
			}
			p, done, err := opts.openStack()
			if err != nil {
				return err
			}
			defer done()
			var i *item.Item
			if require {
				i, err = provider.RequireItem(cmd.Context(), p, collection, id)
			} else {
				i, err = p.GetItem(cmd.Context(), collection, id)
			}
			if err != nil {
				return err
			}
			if i == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "null")
				return nil
			}
			return printJSON(cmd, i)
		},
	}
	cmd.Flags().BoolVar(&require, "require", false, "Fail if the item does not exist")
	return cmd
}

func newAddCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <collection> <json>",
		Short: "Add an item with a generated id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseData(args[1])
			if err != nil {
				return err
			}
			p, done, err := opts.openStack()
			if err != nil {
				return err
			}
			defer done()
			id, err := p.AddItem(cmd.Context(), args[0], data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newSetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <collection>/<id> <json>",
		Short: "Write one item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, id, err := splitRef(args[0])
			if err != nil {
				return err
			}
			data, err := parseData(args[1])
			if err != nil {
				return err
			}
			p, done, err := opts.openStack()
			if err != nil {
				return err
			}
			defer done()
			return p.SetItem(cmd.Context(), collection, id, data)
		},
	}
}

func newUpdateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <collection>/<id> <json>",
		Short: "Merge updates into one item (no-op if absent)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, id, err := splitRef(args[0])
			if err != nil {
				return err
			}
			updates, err := parseData(args[1])
			if err != nil {
				return err
			}
			p, done, err := opts.openStack()
			if err != nil {
				return err
			}
			defer done()
			return p.UpdateItem(cmd.Context(), collection, id, updates)
		},
	}
}

func newDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection>/<id>",
		Short: "Delete one item (no-op if absent)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, id, err := splitRef(args[0])
			if err != nil {
				return err
			}
			p, done, err := opts.openStack()
			if err != nil {
				return err
			}
			defer done()
			return p.DeleteItem(cmd.Context(), collection, id)
		},
	}
}

// queryFlags holds the shared query-building flags.
type queryFlags struct {
	filters []string
	sorts   []string
	where   string
	limit   int
}

func (f *queryFlags) register(cmd *cobra.Command, defaultLimit int) {
	cmd.Flags().StringArrayVarP(&f.filters, "filter", "f", nil, "Filter as field:op:value (op: is,not,in,contains,lt,lte,gt,gte)")
	cmd.Flags().StringArrayVarP(&f.sorts, "sort", "s", nil, "Sort as field or field:desc")
	cmd.Flags().StringVarP(&f.where, "where", "w", "", "Boolean expression over item fields")
	cmd.Flags().IntVarP(&f.limit, "limit", "l", defaultLimit, "Maximum items to return (0 = unlimited)")
}

func (f *queryFlags) build() (item.Query, error) {
	q := item.Query{Limit: f.limit, Where: f.where}
	for _, raw := range f.filters {
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) != 3 {
			return q, fmt.Errorf("filter %q: expected field:op:value", raw)
		}
		q = q.Filter(parts[0], item.Operator(parts[1]), parseScalar(parts[2]))
	}
	for _, raw := range f.sorts {
		field, dir, _ := strings.Cut(raw, ":")
		direction := item.Ascending
		if dir == "desc" {
			direction = item.Descending
		}
		q = q.Sort(field, direction)
	}
	return q, nil
}

// parseScalar reads a flag value as JSON when possible, else as a string,
// so numbers and bools compare as numbers and bools.
func parseScalar(s string) any {
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

func newQueryCommand(opts *rootOptions) *cobra.Command {
	flags := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query <collection>",
		Short: "Run a filtered, sorted, limited query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("limit") && opts.cfg.DefaultLimit > 0 {
				flags.limit = opts.cfg.DefaultLimit
			}
			q, err := flags.build()
			if err != nil {
				return err
			}
			p, done, err := opts.openStack()
			if err != nil {
				return err
			}
			defer done()
			items, err := p.GetQuery(cmd.Context(), args[0], q)
			if err != nil {
				return err
			}
			return printJSON(cmd, items)
		},
	}
	flags.register(cmd, 50)
	return cmd
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	flags := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "watch <collection>[/<id>]",
		Short: "Stream an item or query as it changes, until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, done, err := opts.openStack()
			if err != nil {
				return err
			}
			defer done()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if collection, id, err := splitRef(args[0]); err == nil {
				for ev := range p.ItemSequence(ctx, collection, id) {
					if ev.Err != nil {
						return ev.Err
					}
					if err := printJSON(cmd, ev.Item); err != nil {
						return err
					}
				}
				return ctx.Err()
			}

			q, err := flags.build()
			if err != nil {
				return err
			}
			for ev := range p.QuerySequence(ctx, args[0], q) {
				if ev.Err != nil {
					return ev.Err
				}
				if err := printJSON(cmd, ev.Items); err != nil {
					return err
				}
			}
			return ctx.Err()
		},
	}
	flags.register(cmd, 0)
	return cmd
}
