package docstore

import (
	"sync"

	"github.com/spaceandstories/community-feed/internal/domain"
)

// subscription implements domain.Subscription. Snapshot delivery coalesces:
// each snapshot wholly replaces the previous one, so when a subscriber lags
// only the latest matters (last delivered wins).
type subscription struct {
	id    int
	store *Store
	snaps chan []domain.Record
	errs  chan error

	mu     sync.Mutex
	closed bool
	ended  sync.Once
}

func (s *subscription) Snapshots() <-chan []domain.Record {
	return s.snaps
}

func (s *subscription) Errors() <-chan error {
	return s.errs
}

// Close releases the handle. The snapshot channel is closed so consumers
// selecting on it unblock.
func (s *subscription) Close() error {
	s.store.unsubscribe(s.id)
	s.end()
	return nil
}

func (s *subscription) deliver(records []domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.snaps <- records:
			return
		default:
			select {
			case <-s.snaps:
			default:
			}
		}
	}
}

func (s *subscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.errs <- err:
	default:
	}
}

func (s *subscription) end() {
	s.ended.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true
		close(s.snaps)
	})
}
