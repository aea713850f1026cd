package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/melinda/pkg/melinda"
)

// Transition records when the job entered a queue state.
type Transition struct {
	State melinda.QueueItemState
	At    time.Time
}

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	CorrelationID string
	Status        melinda.JobStatus
	HasStatus     bool
	History       []Transition
	Started       time.Time
	LastUpdated   time.Time
	Polls         int

	Finished bool
	Result   melinda.BulkMetadata
	Err      error
}

// Elapsed returns the time since the store was created, frozen once the poll
// finished.
func (s Snapshot) Elapsed(now time.Time) time.Duration {
	if s.Started.IsZero() {
		return 0
	}
	if s.Finished {
		return s.LastUpdated.Sub(s.Started)
	}
	return now.Sub(s.Started)
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	now      func() time.Time
}

// NewStore returns a store for the job correlationID.
func NewStore(correlationID string) *Store {
	s := &Store{now: time.Now}
	s.snapshot.CorrelationID = correlationID
	s.snapshot.Started = s.now()
	return s
}

func (s *Store) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// Observe records a status fetched by the poller. A new History entry is
// added whenever the queue state differs from the previous one.
func (s *Store) Observe(status melinda.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if !s.snapshot.HasStatus || s.snapshot.Status.QueueItemState != status.QueueItemState {
		s.snapshot.History = append(s.snapshot.History, Transition{State: status.QueueItemState, At: now})
	}
	s.snapshot.Status = status
	s.snapshot.HasStatus = true
	s.snapshot.LastUpdated = now
	s.snapshot.Polls++
}

// Finish records the outcome of the poll. Further observations are still
// accepted but Finished stays set.
func (s *Store) Finish(result melinda.BulkMetadata, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Finished = true
	s.snapshot.Result = result
	s.snapshot.Err = err
	s.snapshot.LastUpdated = s.clock()
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.History = cloneHistory(s.snapshot.History)
	if s.snapshot.Err != nil {
		snap.Err = fmt.Errorf("%w", s.snapshot.Err)
	}
	return snap
}

func cloneHistory(items []Transition) []Transition {
	if len(items) == 0 {
		return nil
	}
	dup := make([]Transition, len(items))
	copy(dup, items)
	return dup
}
