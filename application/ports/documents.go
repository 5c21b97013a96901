package ports

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a DocumentStore when no document has the id.
var ErrNotFound = errors.New("document not found")

// Document is a schemaless JSON object stored in a collection. The "id",
// "createdAt" and "updatedAt" keys are reserved and set by the caller
// before Insert/Update; stores persist them unchanged.
type Document map[string]interface{}

// ID returns the document id, or "" when unset.
func (d Document) ID() string {
	id, _ := d["id"].(string)
	return id
}

// ListOptions narrows a List call.
type ListOptions struct {
	// Filter holds exact-match field constraints.
	Filter map[string]string
	Limit  int
	Offset int
}

// DocumentStore is the persistence port used by resource handlers.
type DocumentStore interface {
	List(ctx context.Context, collection string, opts ListOptions) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Insert(ctx context.Context, collection string, doc Document) (Document, error)
	Update(ctx context.Context, collection, id string, patch Document) (Document, error)
	Delete(ctx context.Context, collection, id string) error
}
