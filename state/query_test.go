package state

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dhoulb/shelving/item"
	"github.com/dhoulb/shelving/memdb"
)

func seedNums(t *testing.T, mem *memdb.Provider, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("n%02d", i)
		require.NoError(t, mem.SetItem(ctx, "nums", id, map[string]any{"n": i}))
	}
}

func numsRef(limit int) item.QueryRef {
	q := item.Query{}.Sort("n", item.Ascending)
	if limit > 0 {
		q = q.Max(limit)
	}
	return item.Docs("nums", q)
}

func ids(items []*item.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestQueryRefresh(t *testing.T) {
	mem := memdb.New()
	seedNums(t, mem, 3)
	s := newQueryState(numsRef(0), mem, nil)

	require.NoError(t, s.Refresh(context.Background()))
	items, got := s.Value()
	require.True(t, got)
	require.Equal(t, []string{"n01", "n02", "n03"}, ids(items))
}

func TestQueryRefreshDedup(t *testing.T) {
	mem := memdb.New()
	seedNums(t, mem, 3)
	stub := newStub(mem)
	s := newQueryState(numsRef(0), stub, nil)

	stub.block()
	done := make(chan error, 1)
	go func() { done <- s.Refresh(context.Background()) }()
	<-stub.entered
	require.NoError(t, s.Refresh(context.Background()))
	close(stub.gate)
	require.NoError(t, <-done)

	_, calls := stub.counts()
	require.Equal(t, 1, calls)
}

func TestQueryRefreshErrorKeepsWindow(t *testing.T) {
	mem := memdb.New()
	seedNums(t, mem, 3)
	stub := newStub(mem)
	s := newQueryState(numsRef(0), stub, nil)
	require.NoError(t, s.Refresh(context.Background()))

	boom := errors.New("backend down")
	stub.fail(boom)
	require.ErrorIs(t, s.Refresh(context.Background()), boom)

	items, got := s.Value()
	require.True(t, got)
	require.Len(t, items, 3)
	require.ErrorIs(t, s.Reason(), boom)
}

func TestQueryLoadMore(t *testing.T) {
	mem := memdb.New()
	seedNums(t, mem, 5)
	s := newQueryState(numsRef(2), mem, nil)
	ctx := context.Background()

	require.NoError(t, s.LoadMore(ctx))
	items, _ := s.Value()
	require.Equal(t, []string{"n01", "n02"}, ids(items))
	require.True(t, s.HasMore())

	require.NoError(t, s.LoadMore(ctx))
	items, _ = s.Value()
	require.Equal(t, []string{"n01", "n02", "n03", "n04"}, ids(items))
	require.True(t, s.HasMore())

	// The final short page settles HasMore.
	require.NoError(t, s.LoadMore(ctx))
	items, _ = s.Value()
	require.Equal(t, []string{"n01", "n02", "n03", "n04", "n05"}, ids(items))
	require.False(t, s.HasMore())
}

func TestQueryLoadMoreExactMultiple(t *testing.T) {
	// Four items with pages of two: after the second page HasMore is
	// still (wrongly but permissibly) true; the empty third page settles
	// it without changing the window.
	mem := memdb.New()
	seedNums(t, mem, 4)
	s := newQueryState(numsRef(2), mem, nil)
	ctx := context.Background()

	require.NoError(t, s.LoadMore(ctx))
	require.NoError(t, s.LoadMore(ctx))
	require.True(t, s.HasMore())

	require.NoError(t, s.LoadMore(ctx))
	items, _ := s.Value()
	require.Equal(t, []string{"n01", "n02", "n03", "n04"}, ids(items))
	require.False(t, s.HasMore())
}

func TestQueryLoadMoreErrorKeepsWindow(t *testing.T) {
	mem := memdb.New()
	seedNums(t, mem, 5)
	stub := newStub(mem)
	s := newQueryState(numsRef(2), stub, nil)
	ctx := context.Background()

	require.NoError(t, s.LoadMore(ctx))
	boom := errors.New("backend down")
	stub.fail(boom)
	require.ErrorIs(t, s.LoadMore(ctx), boom)

	items, _ := s.Value()
	require.Equal(t, []string{"n01", "n02"}, ids(items))
	require.True(t, s.HasMore())
	require.ErrorIs(t, s.Reason(), boom)
}

func TestQueryLiveUpdates(t *testing.T) {
	mem := memdb.New()
	seedNums(t, mem, 2)
	s := newQueryState(numsRef(0), mem, nil)

	updates := make(chan []string, 8)
	stop := s.Start(Observer[[]*item.Item]{Next: func(items []*item.Item) { updates <- ids(items) }})
	defer stop()

	require.Equal(t, []string{"n01", "n02"}, recvIDs(t, updates))

	require.NoError(t, mem.SetItem(context.Background(), "nums", "n03", map[string]any{"n": 3}))
	require.Equal(t, []string{"n01", "n02", "n03"}, recvIDs(t, updates))
}

func recvIDs(t *testing.T, ch <-chan []string) []string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
		return nil
	}
}
