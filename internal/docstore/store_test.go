package docstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaceandstories/community-feed/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"), "test-ns")
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func waitSnapshot(t *testing.T, sub domain.Subscription) []domain.Record {
	t.Helper()
	select {
	case records, ok := <-sub.Snapshots():
		if !ok {
			t.Fatal("snapshot channel closed")
		}
		return records
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return nil
}

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	id, err := store.Append(ctx, map[string]any{"title": "t", "content": "c", "language": "english"})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a store-assigned id")
	}

	sub, err := store.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	records := waitSnapshot(t, sub)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ID != id {
		t.Errorf("expected id %s, got %s", id, records[0].ID)
	}
	if records[0].CreatedAt.Before(before) {
		t.Errorf("timestamp %v predates the write", records[0].CreatedAt)
	}
}

func TestSubscribeDeliversInitialAndUpdatedSnapshots(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Append(ctx, map[string]any{"title": "one"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	sub, err := store.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	if got := waitSnapshot(t, sub); len(got) != 1 {
		t.Fatalf("initial snapshot: expected 1 record, got %d", len(got))
	}

	if _, err := store.Append(ctx, map[string]any{"title": "two"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// The change snapshot is the complete set, not a delta.
	if got := waitSnapshot(t, sub); len(got) != 2 {
		t.Fatalf("change snapshot: expected 2 records, got %d", len(got))
	}
}

func TestSnapshotsCoalesce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sub, err := store.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	// Do not read while several writes land; only the latest snapshot
	// matters to a lagging subscriber.
	for i := 0; i < 4; i++ {
		if _, err := store.Append(ctx, map[string]any{"n": i}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	var last []domain.Record
	deadline := time.After(2 * time.Second)
	for {
		select {
		case records := <-sub.Snapshots():
			last = records
			if len(last) == 4 {
				return
			}
		case <-deadline:
			t.Fatalf("never saw the final snapshot; last had %d records", len(last))
		}
	}
}

func TestCloseReleasesSubscription(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sub, err := store.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	waitSnapshot(t, sub)

	if err := sub.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, ok := <-sub.Snapshots(); ok {
		t.Error("expected the snapshot channel to close")
	}

	// A write after release must not panic or deliver.
	if _, err := store.Append(ctx, map[string]any{"title": "t"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
}

func TestStoreCloseFailsSubscribers(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"), "ns")
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	sub, err := store.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	waitSnapshot(t, sub)

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case err := <-sub.Errors():
		if err != ErrClosed {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected an error after store close")
	}

	if _, err := store.Subscribe(context.Background()); err != ErrClosed {
		t.Errorf("Subscribe after close: expected ErrClosed, got %v", err)
	}
}

func TestCollectionIsolation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shared.db")

	first, err := NewStore(path, "ns-a")
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer first.Close()

	second, err := NewStore(path, "ns-b")
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer second.Close()

	ctx := context.Background()
	if _, err := first.Append(ctx, map[string]any{"title": "a"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	sub, err := second.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	if records := waitSnapshot(t, sub); len(records) != 0 {
		t.Errorf("namespace ns-b must not see ns-a documents, got %d", len(records))
	}
}
