package item

// DocumentRef is a canonical pointer to one item in one collection.
// Its string form is the cache key for per-document state.
type DocumentRef struct {
	Collection string
	ID         string
}

// Doc builds a document reference.
func Doc(collection, id string) DocumentRef {
	return DocumentRef{Collection: collection, ID: id}
}

func (r DocumentRef) String() string {
	return r.Collection + "/" + r.ID
}

// QueryRef is a canonical pointer to a query over one collection.
// Its string form embeds the query's canonical key, so structurally equal
// queries resolve to the same cache entry.
type QueryRef struct {
	Collection string
	Query      Query
}

// Docs builds a query reference.
func Docs(collection string, q Query) QueryRef {
	return QueryRef{Collection: collection, Query: q}
}

func (r QueryRef) String() string {
	return r.Collection + "?" + r.Query.Key()
}
