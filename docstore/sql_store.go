package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/akinalp/runeshop/database"
	"github.com/akinalp/runeshop/pkg"
	"github.com/akinalp/runeshop/pkg/logger"
)

// publishTimeout bounds a single change feed publish.
const publishTimeout = 3 * time.Second

// SQLStore implements Store on the documents table.
type SQLStore struct {
	db      *database.DB
	q       database.TxQuerier
	dialect dialect
	clock   func() time.Time
	feed    ChangeFeed
	log     zerolog.Logger

	// mu serialises writes in this process and guards lastTS.
	mu     sync.Mutex
	lastTS time.Time

	subs *registry
}

// Option configures a SQLStore.
type Option func(*SQLStore)

// WithClock replaces the wall clock (tests).
func WithClock(clock func() time.Time) Option {
	return func(s *SQLStore) { s.clock = clock }
}

// WithChangeFeed publishes every committed change to feed.
func WithChangeFeed(feed ChangeFeed) Option {
	return func(s *SQLStore) { s.feed = feed }
}

// NewSQLStore builds a store over an opened, migrated database.
func NewSQLStore(db *database.DB, opts ...Option) *SQLStore {
	s := &SQLStore{
		db:      db,
		q:       db.Querier(),
		dialect: dialect{driver: db.Driver},
		clock:   time.Now,
		log:     logger.Module("docstore"),
		subs:    newRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ─── Reads ───

// GetDocuments runs a one-shot query.
func (s *SQLStore) GetDocuments(ctx context.Context, q Query) ([]Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	query, args, err := s.dialect.selectQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows, q.Collection)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", q.Collection, err)
	}
	return docs, nil
}

// GetDocument returns pkg.ErrNotFound when the document does not exist.
func (s *SQLStore) GetDocument(ctx context.Context, path string) (*Document, error) {
	collection, id, err := splitDocPath(path)
	if err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx,
		`SELECT id, data, created_at, updated_at FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	)
	doc, err := scanDocument(row, collection)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", pkg.ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ─── Writes ───

// AddDocument stores data under a generated id and returns the id.
func (s *SQLStore) AddDocument(ctx context.Context, collection string, data Fields) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", err
	}

	id := uuid.NewString()

	s.mu.Lock()
	now := s.nextTimestamp()
	merged := make(map[string]any, len(data))
	err := applyFields(merged, data, now)
	if err == nil {
		var raw string
		raw, err = encodeData(merged)
		if err == nil {
			stamp := FormatTime(now)
			_, err = s.q.ExecContext(ctx,
				`INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
				collection, id, raw, stamp, stamp,
			)
			if err != nil {
				err = fmt.Errorf("failed to add document to %s: %w", collection, err)
			}
		}
	}
	s.mu.Unlock()

	if err != nil {
		return "", err
	}

	s.changed(collection)
	return id, nil
}

// UpdateDocument merges data into an existing document.
func (s *SQLStore) UpdateDocument(ctx context.Context, path string, data Fields) error {
	collection, _, err := splitDocPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	now := s.nextTimestamp()
	err = s.db.WithTx(ctx, func(q database.TxQuerier) error {
		return s.updateTx(ctx, q, path, data, now)
	})
	s.mu.Unlock()

	if err != nil {
		return err
	}

	s.changed(collection)
	return nil
}

// DeleteDocument removes a document. Deleting a missing document is not an
// error.
func (s *SQLStore) DeleteDocument(ctx context.Context, path string) error {
	collection, id, err := splitDocPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	res, err := s.q.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id,
	)
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		s.changed(collection)
	}
	return nil
}

// updateTx is the read-merge-write step shared by UpdateDocument and batches.
func (s *SQLStore) updateTx(ctx context.Context, q database.TxQuerier, path string, data Fields, now time.Time) error {
	collection, id, err := splitDocPath(path)
	if err != nil {
		return err
	}

	var raw string
	err = q.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND id = ?`+s.dialect.lockClause(),
		collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: document %s", pkg.ErrNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	current, err := decodeData([]byte(raw))
	if err != nil {
		return err
	}
	if err := applyFields(current, data, now); err != nil {
		return err
	}
	encoded, err := encodeData(current)
	if err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		encoded, FormatTime(now), collection, id,
	); err != nil {
		return fmt.Errorf("failed to update %s: %w", path, err)
	}
	return nil
}

func (s *SQLStore) deleteTx(ctx context.Context, q database.TxQuerier, path string) error {
	collection, id, err := splitDocPath(path)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id,
	); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// nextTimestamp returns the commit time. Values are strictly increasing for
// the life of the store so two writes never share an ordering key.
// Caller holds s.mu.
func (s *SQLStore) nextTimestamp() time.Time {
	now := s.clock().UTC()
	if !now.After(s.lastTS) {
		now = s.lastTS.Add(time.Microsecond)
	}
	s.lastTS = now
	return now
}

// ─── Change propagation ───

// Notify re-runs the live queries of the given collections. The change feed
// listener calls it for changes committed by other processes.
func (s *SQLStore) Notify(collections ...string) {
	s.subs.notify(collections)
}

// changed wakes local subscribers and forwards the change to the feed.
func (s *SQLStore) changed(collections ...string) {
	s.subs.notify(collections)

	if s.feed == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.feed.Publish(ctx, collections); err != nil {
			s.log.Warn().Err(err).Strs("collections", collections).Msg("change feed publish failed")
		}
	}()
}

// Subscribe registers a live query. The first snapshot is delivered
// asynchronously right after registration.
func (s *SQLStore) Subscribe(q Query, onSnapshot SnapshotFunc, onError ErrorFunc) Subscription {
	return s.subs.add(q, s.GetDocuments, onSnapshot, onError)
}

// BeginBatch starts an empty batch.
func (s *SQLStore) BeginBatch() Batch {
	return &sqlBatch{store: s}
}

// ─── Batch ───

type batchOp struct {
	path   string
	data   Fields
	delete bool
}

type sqlBatch struct {
	store *SQLStore
	ops   []batchOp
}

func (b *sqlBatch) Update(path string, data Fields) {
	b.ops = append(b.ops, batchOp{path: path, data: data})
}

func (b *sqlBatch) Delete(path string) {
	b.ops = append(b.ops, batchOp{path: path, delete: true})
}

func (b *sqlBatch) Len() int {
	return len(b.ops)
}

// Commit applies every queued operation in one transaction. An update of a
// missing document fails the whole batch. All updates share one timestamp.
func (b *sqlBatch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}

	s := b.store
	touched := make(map[string]struct{})
	for _, op := range b.ops {
		collection, _, err := splitDocPath(op.path)
		if err != nil {
			return err
		}
		touched[collection] = struct{}{}
	}

	s.mu.Lock()
	now := s.nextTimestamp()
	err := s.db.WithTx(ctx, func(q database.TxQuerier) error {
		for _, op := range b.ops {
			var err error
			if op.delete {
				err = s.deleteTx(ctx, q, op.path)
			} else {
				err = s.updateTx(ctx, q, op.path, op.data, now)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("batch commit failed: %w", err)
	}

	collections := make([]string, 0, len(touched))
	for c := range touched {
		collections = append(collections, c)
	}
	s.changed(collections...)
	return nil
}

// ─── SQL dialect ───

type dialect struct {
	driver string
}

// field returns the expression extracting a top-level JSON field. name has
// already been checked against fieldPattern.
func (d dialect) field(name string) string {
	if d.driver == database.DriverPgx {
		return "(data::jsonb ->> '" + name + "')"
	}
	return "json_extract(data, '$." + name + "')"
}

// orderField compares JSON values by type instead of as text on PostgreSQL.
func (d dialect) orderField(name string) string {
	if d.driver == database.DriverPgx {
		return "(data::jsonb -> '" + name + "')"
	}
	return d.field(name)
}

// lockClause keeps concurrent increments from other instances from being
// lost on PostgreSQL. SQLite already serialises writers.
func (d dialect) lockClause() string {
	if d.driver == database.DriverPgx {
		return " FOR UPDATE"
	}
	return ""
}

// bindValue converts a filter value to what the extraction expression yields.
// json_extract returns native SQL values (bools as 0/1); ->> returns text.
func (d dialect) bindValue(v any) (any, error) {
	if t, ok := v.(time.Time); ok {
		return FormatTime(t), nil
	}

	if d.driver == database.DriverPgx {
		switch x := v.(type) {
		case string:
			return x, nil
		case bool:
			return strconv.FormatBool(x), nil
		case int:
			return strconv.Itoa(x), nil
		case int64:
			return strconv.FormatInt(x, 10), nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		}
		return nil, fmt.Errorf("unsupported filter value %T", v)
	}

	switch x := v.(type) {
	case string, int, int64, float64:
		return x, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return nil, fmt.Errorf("unsupported filter value %T", v)
}

func (d dialect) selectQuery(q Query) (string, []any, error) {
	var b strings.Builder
	args := []any{q.Collection}

	b.WriteString(`SELECT id, data, created_at, updated_at FROM documents WHERE collection = ?`)

	for _, f := range q.Filters {
		if f.Value == nil {
			b.WriteString(" AND " + d.field(f.Field) + " IS NULL")
			continue
		}
		v, err := d.bindValue(f.Value)
		if err != nil {
			return "", nil, fmt.Errorf("%w: field %q: %v", pkg.ErrBadRequest, f.Field, err)
		}
		b.WriteString(" AND " + d.field(f.Field) + " = ?")
		args = append(args, v)
	}

	b.WriteString(" ORDER BY ")
	if q.OrderBy != "" {
		// documents missing the field rank lowest on both drivers
		missing := "(" + d.field(q.OrderBy) + " IS NULL)"
		if q.Direction == Desc {
			b.WriteString(missing + " ASC, " + d.orderField(q.OrderBy) + " DESC, ")
		} else {
			b.WriteString(missing + " DESC, " + d.orderField(q.OrderBy) + " ASC, ")
		}
	}
	b.WriteString("seq ASC")

	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	return b.String(), args, nil
}

// ─── Scanning ───

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner, collection string) (Document, error) {
	var (
		doc                  Document
		data                 string
		createdAt, updatedAt string
	)
	if err := row.Scan(&doc.ID, &data, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, err
		}
		return Document{}, fmt.Errorf("failed to scan document: %w", err)
	}

	doc.Path = collection + "/" + doc.ID
	doc.Data = []byte(data)
	doc.CreateTime, _ = time.Parse(TimeLayout, createdAt)
	doc.UpdateTime, _ = time.Parse(TimeLayout, updatedAt)
	return doc, nil
}
