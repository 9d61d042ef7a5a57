package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dhoulb/shelving/item"
	"github.com/dhoulb/shelving/memdb"
)

func TestNewPaginationValidates(t *testing.T) {
	mem := memdb.New()

	_, err := NewPagination(mem, item.Docs("nums", item.Query{}.Sort("n", item.Ascending)))
	require.Error(t, err)

	_, err = NewPagination(mem, item.Docs("nums", item.Query{}.Max(3)))
	require.Error(t, err)

	p, err := NewPagination(mem, item.Docs("nums", item.Query{}.Sort("n", item.Ascending).Max(3)))
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestPaginationLoadEnd(t *testing.T) {
	mem := memdb.New()
	seedNums(t, mem, 7)
	p, err := NewPagination(mem, numsRef(3))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, p.LoadEnd(ctx))
	require.Equal(t, []string{"n01", "n02", "n03"}, ids(p.Items()))
	require.False(t, p.EndDone())

	require.NoError(t, p.LoadEnd(ctx))
	require.Equal(t, []string{"n01", "n02", "n03", "n04", "n05", "n06"}, ids(p.Items()))
	require.False(t, p.EndDone())

	// The short last page proves the end.
	require.NoError(t, p.LoadEnd(ctx))
	require.Len(t, p.Items(), 7)
	require.True(t, p.EndDone())

	// Loading a proven edge is a no-op.
	require.NoError(t, p.LoadEnd(ctx))
	require.Len(t, p.Items(), 7)
}

func TestPaginationLoadStart(t *testing.T) {
	mem := memdb.New()
	seedNums(t, mem, 5)
	p, err := NewPagination(mem, numsRef(2))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, p.LoadEnd(ctx))
	require.Equal(t, []string{"n01", "n02"}, ids(p.Items()))

	// Nothing exists before the first loaded item.
	require.NoError(t, p.LoadStart(ctx))
	require.Equal(t, []string{"n01", "n02"}, ids(p.Items()))
	require.True(t, p.StartDone())
}

func TestPaginationLoadStartFromMiddle(t *testing.T) {
	mem := memdb.New()
	seedNums(t, mem, 6)
	// Seed the window in the middle of the collection by loading a page
	// after n03 first.
	q := item.Query{}.Sort("n", item.Ascending).Max(2)
	ref := item.Docs("nums", q)
	p, err := NewPagination(mem, ref)
	require.NoError(t, err)
	ctx := context.Background()

	mid, err := mem.GetItem(ctx, "nums", "n03")
	require.NoError(t, err)
	page, err := mem.GetQuery(ctx, "nums", q.After(mid))
	require.NoError(t, err)
	p.tryNext(page)
	require.Equal(t, []string{"n04", "n05"}, ids(p.Items()))

	// LoadStart pages backwards from the window's first item.
	require.NoError(t, p.LoadStart(ctx))
	require.Equal(t, []string{"n02", "n03", "n04", "n05"}, ids(p.Items()))
	require.False(t, p.StartDone())

	require.NoError(t, p.LoadStart(ctx))
	require.Equal(t, []string{"n01", "n02", "n03", "n04", "n05"}, ids(p.Items()))
	require.True(t, p.StartDone())

	// The end edge keeps paging forward independently.
	require.NoError(t, p.LoadEnd(ctx))
	require.Equal(t, []string{"n01", "n02", "n03", "n04", "n05", "n06"}, ids(p.Items()))
	require.True(t, p.EndDone())
}

func TestMergeItems(t *testing.T) {
	q := item.Query{}.Sort("n", item.Ascending)
	mk := func(ns ...int) []*item.Item {
		out := make([]*item.Item, len(ns))
		for i, n := range ns {
			out[i] = item.New(byNum(n), map[string]any{"n": n})
		}
		return out
	}

	merged := mergeItems(mk(1, 3, 5), mk(4, 5, 6), q.Compare)
	require.Equal(t, []string{byNum(1), byNum(3), byNum(4), byNum(5), byNum(6)}, ids(merged))

	// The freshly fetched side wins on duplicate ids.
	a := []*item.Item{item.New("x", map[string]any{"n": 2, "v": "old"})}
	b := []*item.Item{item.New("x", map[string]any{"n": 2, "v": "new"})}
	merged = mergeItems(a, b, q.Compare)
	require.Len(t, merged, 1)
	require.Equal(t, "new", merged[0].Get("v"))

	require.Empty(t, mergeItems(nil, nil, q.Compare))
	require.Equal(t, []string{byNum(1)}, ids(mergeItems(mk(1), nil, q.Compare)))
	require.Equal(t, []string{byNum(2)}, ids(mergeItems(nil, mk(2), q.Compare)))
}

func byNum(n int) string {
	return string(rune('a' + n))
}
