// Package docstore is a small document database on top of SQL.
//
// Data model:
//   - A collection path has an odd number of segments: "chats",
//     "chats/<id>/messages".
//   - A document path has an even number: "chats/<id>",
//     "chats/<id>/messages/<mid>".
//   - A document is a flat JSON object. Values are JSON scalars, time.Time,
//     or one of the write sentinels (ServerTimestamp, Increment).
//
// Reads are equality/order/limit queries. Live queries (Subscribe) deliver
// the whole ordered result set every time the collection changes; a newer
// snapshot always supersedes an older one. Batches are all-or-nothing.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TimeLayout is the persisted form of every time value: fixed width UTC, so
// the lexical order of the stored strings is the chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var (
	// ErrInvalidPath is returned for malformed collection or document paths.
	ErrInvalidPath = errors.New("invalid document path")
	// ErrInvalidField is returned for field names outside [A-Za-z_][A-Za-z0-9_]*.
	ErrInvalidField = errors.New("invalid field name")
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Fields is the payload of a write.
type Fields map[string]any

// serverTimestamp is replaced by the store clock at write time.
type serverTimestamp struct{}

// ServerTimestamp marks a field to receive the store's commit time. Clients
// never supply their own clock for ordering fields.
var ServerTimestamp = serverTimestamp{}

// increment is an atomic numeric add evaluated inside the write transaction.
type increment struct {
	n int64
}

// Increment returns a sentinel that adds n to a numeric field. A missing
// field counts as zero.
func Increment(n int64) any {
	return increment{n: n}
}

// Direction is the sort direction of a query.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Filter is an equality predicate on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Where builds an equality filter.
func Where(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Query selects documents of one collection.
// Ties on OrderBy (and the unordered case) fall back to insertion order.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Direction  Direction
	Limit      int // 0 = unlimited
}

// Validate checks the collection path and every field name.
func (q Query) Validate() error {
	if err := validateCollection(q.Collection); err != nil {
		return err
	}
	for _, f := range q.Filters {
		if !fieldPattern.MatchString(f.Field) {
			return fmt.Errorf("%w: %q", ErrInvalidField, f.Field)
		}
	}
	if q.OrderBy != "" && !fieldPattern.MatchString(q.OrderBy) {
		return fmt.Errorf("%w: %q", ErrInvalidField, q.OrderBy)
	}
	if q.Limit < 0 {
		return fmt.Errorf("negative limit %d", q.Limit)
	}
	return nil
}

// Document is one stored document.
type Document struct {
	ID         string
	Path       string
	Data       json.RawMessage
	CreateTime time.Time
	UpdateTime time.Time
}

// DataTo decodes the document into a typed record.
func (d Document) DataTo(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", d.Path, err)
	}
	return nil
}

// SnapshotFunc receives the full result set of a live query.
type SnapshotFunc func(docs []Document)

// ErrorFunc receives live query failures. The subscription stays registered
// and delivers again on the next change.
type ErrorFunc func(err error)

// Subscription is the handle of a live query. Cancel is idempotent; a
// callback already running when Cancel is called is allowed to finish.
type Subscription interface {
	Cancel()
}

// Batch groups writes that commit atomically.
type Batch interface {
	Update(path string, data Fields)
	Delete(path string)
	// Len returns the number of queued operations.
	Len() int
	Commit(ctx context.Context) error
}

// Store is the document store contract the chat core is written against.
type Store interface {
	GetDocuments(ctx context.Context, q Query) ([]Document, error)
	GetDocument(ctx context.Context, path string) (*Document, error)
	AddDocument(ctx context.Context, collection string, data Fields) (string, error)
	UpdateDocument(ctx context.Context, path string, data Fields) error
	DeleteDocument(ctx context.Context, path string) error
	Subscribe(q Query, onSnapshot SnapshotFunc, onError ErrorFunc) Subscription
	BeginBatch() Batch
}

// ChangeFeed carries change notifications to other processes sharing the
// same database.
type ChangeFeed interface {
	Publish(ctx context.Context, collections []string) error
}

// Collection joins segments into a collection path.
func Collection(segments ...string) string {
	return strings.Join(segments, "/")
}

// Doc joins segments into a document path.
func Doc(segments ...string) string {
	return strings.Join(segments, "/")
}

func splitSegments(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segments := strings.Split(path, "/")
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segments, nil
}

func validateCollection(path string) error {
	segments, err := splitSegments(path)
	if err != nil {
		return err
	}
	if len(segments)%2 != 1 {
		return fmt.Errorf("%w: %q is not a collection", ErrInvalidPath, path)
	}
	return nil
}

// splitDocPath returns the collection and id of a document path.
func splitDocPath(path string) (collection, id string, err error) {
	segments, err := splitSegments(path)
	if err != nil {
		return "", "", err
	}
	if len(segments)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q is not a document", ErrInvalidPath, path)
	}
	last := len(segments) - 1
	return strings.Join(segments[:last], "/"), segments[last], nil
}

// FormatTime renders t in the persisted layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
