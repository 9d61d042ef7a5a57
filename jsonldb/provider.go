// Package jsonldb layers JSONL-file persistence on top of the in-memory
// backend: one <collection>.jsonl file per collection, loaded at open,
// rewritten on every mutation, and watched so edits made outside the
// process feed the same change notifications as local writes.
package jsonldb

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/dhoulb/shelving/item"
	"github.com/dhoulb/shelving/memdb"
)

// Provider is a JSONL-file-persisted storage backend. It embeds the
// in-memory provider for querying and change notification and persists a
// collection's full snapshot after each mutation.
type Provider struct {
	*memdb.Provider
	dir     string
	log     *slog.Logger
	watcher *fsnotify.Watcher

	// saveMu serializes file writes so concurrent mutations cannot
	// interleave partial snapshots.
	saveMu sync.Mutex
}

// Option configures the provider.
type Option func(*Provider)

// WithLogger sets the logger used by the file watcher. Defaults to
// slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(p *Provider) { p.log = log }
}

// Open loads every *.jsonl file in dir as a collection and starts watching
// the directory for external changes.
func Open(dir string, opts ...Option) (*Provider, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	p := &Provider{
		Provider: memdb.New(),
		dir:      dir,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		collection := strings.TrimSuffix(name, ".jsonl")
		if err := p.reload(collection); err != nil {
			return nil, err
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	p.watcher = watcher
	go p.watch()
	return p, nil
}

// Close stops the watcher and discards the in-memory state.
func (p *Provider) Close() {
	if p.watcher != nil {
		_ = p.watcher.Close()
	}
	p.Provider.Close()
}

// watch applies external file edits to the in-memory tables. Reloading
// after our own writes is harmless: the replace diffs by value, so a
// snapshot identical to memory produces no notifications.
func (p *Provider) watch() {
	for {
		select {
		case ev, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Base(ev.Name)
			if !strings.HasSuffix(name, ".jsonl") {
				continue
			}
			collection := strings.TrimSuffix(name, ".jsonl")
			if err := p.reload(collection); err != nil {
				p.log.Warn("failed to reload collection after file change", "collection", collection, "err", err)
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.log.Warn("file watcher error", "err", err)
		}
	}
}

func (p *Provider) path(collection string) string {
	return filepath.Join(p.dir, collection+".jsonl")
}

// reload reads a collection file and swaps it into memory.
func (p *Provider) reload(collection string) error {
	path := p.path(collection)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p.Provider.ReplaceAll(collection, nil)
		}
		return fmt.Errorf("failed to open collection file %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var items []*item.Item
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var i item.Item
		if err := json.Unmarshal(line, &i); err != nil {
			return fmt.Errorf("failed to unmarshal item in %s: %w", path, err)
		}
		items = append(items, &i)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read collection file %s: %w", path, err)
	}
	return p.Provider.ReplaceAll(collection, items)
}

// persist writes a collection's full snapshot, sorted by id for stable
// files, via a temp file rename.
func (p *Provider) persist(collection string) error {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	items := p.Snapshot(collection)
	q := item.Query{}
	items, _ = q.Apply(items)

	path := p.path(collection)
	tmp, err := os.CreateTemp(p.dir, collection+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	writer := bufio.NewWriter(tmp)
	for _, i := range items {
		data, err := json.Marshal(i)
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return fmt.Errorf("failed to marshal item: %w", err)
		}
		if _, err := writer.Write(data); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return fmt.Errorf("failed to write item: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return fmt.Errorf("failed to write newline: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace collection file %s: %w", path, err)
	}
	return nil
}

func (p *Provider) AddItem(ctx context.Context, collection string, data map[string]any) (string, error) {
	id, err := p.Provider.AddItem(ctx, collection, data)
	if err != nil {
		return "", err
	}
	return id, p.persist(collection)
}

func (p *Provider) SetItem(ctx context.Context, collection, id string, data map[string]any) error {
	if err := p.Provider.SetItem(ctx, collection, id, data); err != nil {
		return err
	}
	return p.persist(collection)
}

func (p *Provider) UpdateItem(ctx context.Context, collection, id string, updates map[string]any) error {
	if err := p.Provider.UpdateItem(ctx, collection, id, updates); err != nil {
		return err
	}
	return p.persist(collection)
}

func (p *Provider) DeleteItem(ctx context.Context, collection, id string) error {
	if err := p.Provider.DeleteItem(ctx, collection, id); err != nil {
		return err
	}
	return p.persist(collection)
}

func (p *Provider) SetQuery(ctx context.Context, collection string, q item.Query, data map[string]any) (int, error) {
	n, err := p.Provider.SetQuery(ctx, collection, q, data)
	if err != nil || n == 0 {
		return n, err
	}
	return n, p.persist(collection)
}

func (p *Provider) UpdateQuery(ctx context.Context, collection string, q item.Query, updates map[string]any) (int, error) {
	n, err := p.Provider.UpdateQuery(ctx, collection, q, updates)
	if err != nil || n == 0 {
		return n, err
	}
	return n, p.persist(collection)
}

func (p *Provider) DeleteQuery(ctx context.Context, collection string, q item.Query) (int, error) {
	n, err := p.Provider.DeleteQuery(ctx, collection, q)
	if err != nil || n == 0 {
		return n, err
	}
	return n, p.persist(collection)
}
