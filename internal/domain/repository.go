package domain

import (
	"context"
	"strings"
	"time"
)

// System fields are maintained by the store on every document. Writes never set them.
const (
	FieldID        = "$id"
	FieldCreatedAt = "$createdAt"
	FieldUpdatedAt = "$updatedAt"
)

// IsSystemField reports whether key names a store-maintained field
func IsSystemField(key string) bool {
	return strings.HasPrefix(key, "$")
}

// RawRecord is an opaque document as returned by the document store
type RawRecord map[string]any

// Record is an entity-shaped record addressed by its declared id
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// DocumentList is one page of documents returned by ListDocuments.
// Total counts the documents in this response only; use CountDocuments for the unpaginated total.
type DocumentList struct {
	Documents []RawRecord
	Total     int
}

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// DocumentStore is the remote document store holding catalog and user records.
// Implementations wrap their native errors so that errors.Is matches ErrNotFound and ErrConflict.
type DocumentStore interface {
	ListDocuments(ctx context.Context, collection string, fragments []Fragment) (DocumentList, error)
	CountDocuments(ctx context.Context, collection string, fragments []Fragment) (int, error)
	GetDocument(ctx context.Context, collection, id string) (RawRecord, error)
	CreateDocument(ctx context.Context, collection, id string, fields map[string]any) (RawRecord, error)
	UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) (RawRecord, error)
	DeleteDocument(ctx context.Context, collection, id string) error
}
