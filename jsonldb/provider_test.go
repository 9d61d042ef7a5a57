package jsonldb

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dhoulb/shelving/item"
	"github.com/dhoulb/shelving/provider"
)

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	p, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := p.SetItem(ctx, "docs", "d1", map[string]any{"name": "one"}); err != nil {
		t.Fatalf("SetItem failed: %v", err)
	}
	if _, err := p.AddItem(ctx, "docs", map[string]any{"name": "two"}); err != nil {
		t.Fatalf("AddItem failed: %v", err)
	}
	p.Close()

	// Re-open and confirm both items survived.
	p2, err := Open(dir)
	if err != nil {
		t.Fatalf("re-open failed: %v", err)
	}
	defer p2.Close()
	items, err := p2.GetQuery(ctx, "docs", item.Query{}.Sort("name", item.Ascending))
	if err != nil {
		t.Fatalf("GetQuery failed: %v", err)
	}
	if len(items) != 2 || items[0].Data["name"] != "one" || items[1].Data["name"] != "two" {
		t.Errorf("unexpected reloaded items %+v", items)
	}
}

func TestDeletePersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	p, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_ = p.SetItem(ctx, "docs", "d1", map[string]any{})
	_ = p.SetItem(ctx, "docs", "d2", map[string]any{})
	if err := p.DeleteItem(ctx, "docs", "d1"); err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}
	p.Close()

	p2, err := Open(dir)
	if err != nil {
		t.Fatalf("re-open failed: %v", err)
	}
	defer p2.Close()
	if i, _ := p2.GetItem(ctx, "docs", "d1"); i != nil {
		t.Errorf("deleted item came back: %+v", i)
	}
	if i, _ := p2.GetItem(ctx, "docs", "d2"); i == nil {
		t.Error("surviving item is missing")
	}
}

func TestExternalEditFeedsSequences(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer p.Close()
	if err := p.SetItem(ctx, "docs", "d1", map[string]any{"n": float64(1)}); err != nil {
		t.Fatalf("SetItem failed: %v", err)
	}

	seq := p.ItemSequence(ctx, "docs", "d1")
	first := recvItem(t, seq)
	if first.Item == nil || first.Item.Data["n"] != float64(1) {
		t.Fatalf("unexpected first emission %+v", first)
	}

	// Simulate another process rewriting the collection file.
	path := filepath.Join(dir, "docs.jsonl")
	if err := os.WriteFile(path, []byte(`{"id":"d1","n":2}`+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	ev := recvItem(t, seq)
	if ev.Item == nil || ev.Item.Data["n"] != float64(2) {
		t.Fatalf("expected externally written value, got %+v", ev)
	}
}

func recvItem(t *testing.T, ch <-chan provider.ItemEvent) provider.ItemEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("sequence closed unexpectedly")
		}
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for sequence event")
	}
	panic("unreachable")
}

func TestBulkWritePersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	p, err := Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_ = p.SetItem(ctx, "docs", "d1", map[string]any{"a": float64(1)})
	_ = p.SetItem(ctx, "docs", "d2", map[string]any{"a": float64(2)})
	if _, err := p.UpdateQuery(ctx, "docs", item.Query{}.Filter("a", item.OpGT, 0), map[string]any{"seen": true}); err != nil {
		t.Fatalf("UpdateQuery failed: %v", err)
	}
	p.Close()

	p2, err := Open(dir)
	if err != nil {
		t.Fatalf("re-open failed: %v", err)
	}
	defer p2.Close()
	items, err := p2.GetQuery(ctx, "docs", item.Query{}.Filter("seen", item.OpIs, true))
	if err != nil {
		t.Fatalf("GetQuery failed: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 updated items, got %d", len(items))
	}
}
