// Package docstore is an embedded document store for the public post
// collection. It mirrors the contract of a managed real-time document
// database: appends get a store-assigned id and timestamp, and subscribers
// receive the complete current document set on every change - full
// snapshots, never deltas.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spaceandstories/community-feed/internal/domain"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// ErrClosed is reported to subscribers when the store shuts down under them.
var ErrClosed = errors.New("document store closed")

// CollectionPath composes the deterministic collection path from a namespace
// and the fixed public collection name.
func CollectionPath(namespace string) string {
	return fmt.Sprintf("artifacts/%s/public/data/blogs", namespace)
}

// Store holds the post collection in SQLite and fans full snapshots out to
// subscribers after every write.
type Store struct {
	db         *sql.DB
	collection string

	mu     sync.Mutex
	subs   map[int]*subscription
	nextID int
	closed bool
}

// NewStore opens (creating if needed) the store at path and scopes it to the
// collection for the given namespace. The caller should Close the store when
// done.
func NewStore(path, namespace string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		fields TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_collection_created
		ON documents(collection, created_at DESC);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Store{
		db:         db,
		collection: CollectionPath(namespace),
		subs:       make(map[int]*subscription),
	}, nil
}

// Close shuts the store down. Open subscriptions observe ErrClosed and end.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subs = map[int]*subscription{}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fail(ErrClosed)
		sub.end()
	}
	return s.db.Close()
}

// Append writes a new document and returns its store-assigned id. The
// creation timestamp is assigned here, at write time, never by the caller.
// All subscribers receive a fresh full snapshot once the write is durable.
func (s *Store) Append(ctx context.Context, fields map[string]any) (string, error) {
	encoded, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}

	id := uuid.NewString()
	createdAt := time.Now().UTC().UnixMilli()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, collection, fields, created_at)
		VALUES (?, ?, ?, ?)`,
		id, s.collection, string(encoded), createdAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}

	s.broadcast(ctx)
	return id, nil
}

// Subscribe opens a live handle on the collection. The complete current
// document set is delivered immediately, then again after every change.
func (s *Store) Subscribe(ctx context.Context) (domain.Subscription, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.nextID++
	sub := &subscription{
		id:    s.nextID,
		store: s,
		snaps: make(chan []domain.Record, 1),
		errs:  make(chan error, 1),
	}
	s.subs[sub.id] = sub
	s.mu.Unlock()

	records, err := s.loadAll(ctx)
	if err != nil {
		s.unsubscribe(sub.id)
		return nil, fmt.Errorf("load initial snapshot: %w", err)
	}
	sub.deliver(records)

	return sub, nil
}

func (s *Store) loadAll(ctx context.Context) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fields, created_at
		FROM documents
		WHERE collection = ?
		ORDER BY created_at ASC`,
		s.collection,
	)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var (
			id      string
			encoded string
			millis  int64
		)
		if err := rows.Scan(&id, &encoded, &millis); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}

		fields := map[string]any{}
		if err := json.Unmarshal([]byte(encoded), &fields); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", id, err)
		}

		records = append(records, domain.Record{
			ID:        id,
			Fields:    fields,
			CreatedAt: time.UnixMilli(millis).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return records, nil
}

// broadcast pushes the current full set to every subscriber. A read failure
// is surfaced on the error channels; subscribers keep their last snapshot.
func (s *Store) broadcast(ctx context.Context) {
	records, err := s.loadAll(ctx)

	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		if err != nil {
			sub.fail(err)
			continue
		}
		sub.deliver(records)
	}
}

func (s *Store) unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
