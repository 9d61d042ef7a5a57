package state

import "github.com/dhoulb/shelving/item"

// mergeItems combines two windows already ordered by cmp into one, like a
// sorted-list merge: linear in the merged size, order preserving, and
// deduplicating by id. Where both sides carry an item with the same id the
// freshly fetched side (b) wins.
func mergeItems(a, b []*item.Item, cmp func(x, y *item.Item) int) []*item.Item {
	out := make([]*item.Item, 0, len(a)+len(b))
	seen := make(map[string]int, len(a)+len(b))
	push := func(i *item.Item, fresh bool) {
		if at, dup := seen[i.ID]; dup {
			if fresh {
				out[at] = i
			}
			return
		}
		seen[i.ID] = len(out)
		out = append(out, i)
	}
	x, y := 0, 0
	for x < len(a) && y < len(b) {
		if cmp(a[x], b[y]) <= 0 {
			push(a[x], false)
			x++
		} else {
			push(b[y], true)
			y++
		}
	}
	for ; x < len(a); x++ {
		push(a[x], false)
	}
	for ; y < len(b); y++ {
		push(b[y], true)
	}
	return out
}
