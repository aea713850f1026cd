package melinda

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stateReply struct {
	status JobStatus
	err    error
}

// scriptedSource replays stateReplies in order, repeating the last one.
type scriptedSource struct {
	mu      sync.Mutex
	replies []stateReply
	meta    []BulkMetadata
	readErr error
	events  *[]string

	stateCalls int
	readCalls  int
	lastQuery  BulkQuery
}

func (s *scriptedSource) GetBulkState(_ context.Context, correlationID string) (JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.stateCalls
	s.stateCalls++
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	if s.events != nil {
		*s.events = append(*s.events, "state")
	}
	r := s.replies[i]
	if r.err == nil {
		r.status.CorrelationID = correlationID
	}
	return r.status, r.err
}

func (s *scriptedSource) ReadBulk(_ context.Context, q BulkQuery) ([]BulkMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readCalls++
	s.lastQuery = q
	if s.events != nil {
		*s.events = append(*s.events, "read")
	}
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.meta, nil
}

type sleepRecorder struct {
	sleeps []time.Duration
	events *[]string
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.sleeps = append(r.sleeps, d)
	if r.events != nil {
		*r.events = append(*r.events, "sleep")
	}
	return ctx.Err()
}

func status(state QueueItemState, modification string) stateReply {
	return stateReply{status: JobStatus{QueueItemState: state, ModificationTime: modification}}
}

func failure(err error) stateReply {
	return stateReply{err: err}
}

func newTestPoller(src BulkSource, rec *sleepRecorder, opts ...PollOption) *Poller {
	p := NewPoller(src, "abc", opts...)
	p.sleep = rec.sleep
	return p
}

func doneMetadata() []BulkMetadata {
	return []BulkMetadata{{CorrelationID: "abc", QueueItemState: StateDone, HandledIDs: []string{"1"}}}
}

func TestPoll_TerminalStatesReturnMetadata(t *testing.T) {
	for _, state := range []QueueItemState{StateDone, StateError, StateAbort, ""} {
		t.Run(string(state), func(t *testing.T) {
			src := &scriptedSource{replies: []stateReply{status(state, "t0")}, meta: doneMetadata()}
			rec := &sleepRecorder{}

			meta, err := newTestPoller(src, rec).Poll(context.Background())
			require.NoError(t, err)
			assert.Equal(t, doneMetadata()[0], meta)
			assert.Equal(t, 1, src.stateCalls)
			assert.Equal(t, 1, src.readCalls)
			assert.Equal(t, BulkQuery{CorrelationID: "abc"}, src.lastQuery)
			assert.Empty(t, rec.sleeps)
		})
	}
}

func TestPoll_UnchangedModificationWaitsOneInterval(t *testing.T) {
	var events []string
	src := &scriptedSource{
		replies: []stateReply{
			status(StateValidating, "t0"),
			status(StateValidating, "t0"),
			status(StateDone, "t0"),
		},
		meta:   doneMetadata(),
		events: &events,
	}
	rec := &sleepRecorder{events: &events}

	_, err := newTestPoller(src, rec, WithInterval(2*time.Second)).Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"state", "state", "sleep", "state", "read"}, events)
	assert.Equal(t, []time.Duration{2 * time.Second}, rec.sleeps)
}

func TestPoll_SequenceUntilDone(t *testing.T) {
	src := &scriptedSource{
		replies: []stateReply{
			status(StateInQueue, "t0"),
			status(StateValidating, "t0"),
			status(StateValidating, "t1"),
			status(StateDone, "t1"),
		},
		meta: doneMetadata(),
	}
	rec := &sleepRecorder{}

	meta, err := newTestPoller(src, rec, WithInterval(time.Second)).Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", meta.CorrelationID)
	assert.Equal(t, 4, src.stateCalls)
	assert.Equal(t, 1, src.readCalls)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, rec.sleeps)
}

func TestPoll_StopOnStateChange(t *testing.T) {
	src := &scriptedSource{
		replies: []stateReply{
			status(StateInQueue, "t1"),
			status(StateImporting, "t2"),
			status(StateDone, "t3"),
		},
		meta: []BulkMetadata{{CorrelationID: "abc", QueueItemState: StateImporting}},
	}
	rec := &sleepRecorder{}

	meta, err := newTestPoller(src, rec, WithStopOnStateChange(true)).Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateImporting, meta.QueueItemState)
	assert.Equal(t, 2, src.stateCalls)
	assert.Equal(t, 1, src.readCalls)
	assert.Empty(t, rec.sleeps)
}

func TestPoll_StopOnStateChangeStillWaitsWithoutProgress(t *testing.T) {
	src := &scriptedSource{
		replies: []stateReply{
			status(StateInQueue, "t1"),
			status(StateInQueue, "t1"),
			status(StateImporting, "t2"),
		},
		meta: doneMetadata(),
	}
	rec := &sleepRecorder{}

	_, err := newTestPoller(src, rec, WithStopOnStateChange(true), WithInterval(time.Second)).Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, src.stateCalls)
	assert.Equal(t, []time.Duration{time.Second}, rec.sleeps)
}

func TestPoll_AbortStatusesEndPoll(t *testing.T) {
	for _, code := range []int{http.StatusForbidden, http.StatusInternalServerError, http.StatusUnsupportedMediaType} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			src := &scriptedSource{replies: []stateReply{failure(newAPIError(code, ""))}}
			rec := &sleepRecorder{}

			_, err := newTestPoller(src, rec).Poll(context.Background())
			require.ErrorIs(t, err, ErrPollAborted)
			assert.Equal(t, code, StatusCode(err))
			assert.Equal(t, 1, src.stateCalls)
			assert.Zero(t, src.readCalls)
			assert.Empty(t, rec.sleeps)
		})
	}
}

func TestPoll_OtherAPIErrorsPropagate(t *testing.T) {
	src := &scriptedSource{replies: []stateReply{failure(newAPIError(http.StatusNotFound, ""))}}

	_, err := newTestPoller(src, &sleepRecorder{}).Poll(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPollAborted)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
}

func TestPoll_TransientFailuresRetryWithBackoff(t *testing.T) {
	src := &scriptedSource{
		replies: []stateReply{
			failure(internalError(errors.New("connection refused"))),
			failure(errors.New("boom")),
			status(StateDone, "t0"),
		},
		meta: doneMetadata(),
	}
	rec := &sleepRecorder{}

	meta, err := newTestPoller(src, rec, WithInterval(time.Second)).Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", meta.CorrelationID)
	assert.Equal(t, 3, src.stateCalls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, rec.sleeps)
}

func TestPoll_TransientFailureWithZeroIntervalStillWaits(t *testing.T) {
	src := &scriptedSource{
		replies: []stateReply{
			failure(errors.New("boom")),
			status(StateDone, "t0"),
		},
		meta: doneMetadata(),
	}
	rec := &sleepRecorder{}

	_, err := newTestPoller(src, rec, WithInterval(0)).Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{minRetryDelay}, rec.sleeps)
}

func TestPoll_EmptyMetadataIsNotFound(t *testing.T) {
	src := &scriptedSource{replies: []stateReply{status(StateDone, "t0")}}

	_, err := newTestPoller(src, &sleepRecorder{}).Poll(context.Background())
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestPoll_ReadFailureRetriesFromStatus(t *testing.T) {
	src := &scriptedSource{
		replies: []stateReply{status(StateDone, "t0")},
		readErr: internalError(errors.New("reset by peer")),
	}
	rec := &sleepRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// cancel once the retry is scheduled
	p := newTestPoller(src, rec)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return rec.sleep(ctx, d)
	}

	_, err := p.Poll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, src.readCalls)
	assert.Len(t, rec.sleeps, 1)
}

func TestPoll_ContextCancelStopsWaiting(t *testing.T) {
	src := &scriptedSource{replies: []stateReply{status(StateValidating, "t0")}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestPoller(src, &sleepRecorder{}).Poll(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, src.stateCalls)
}

func TestPoll_ObserverSeesEveryStatus(t *testing.T) {
	src := &scriptedSource{
		replies: []stateReply{
			status(StateInQueue, "t0"),
			status(StateImporting, "t1"),
			status(StateDone, "t2"),
		},
		meta: doneMetadata(),
	}
	var seen []QueueItemState
	observer := func(s JobStatus) { seen = append(seen, s.QueueItemState) }

	_, err := newTestPoller(src, &sleepRecorder{}, WithObserver(observer)).Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []QueueItemState{StateInQueue, StateImporting, StateDone}, seen)
}

func TestPoll_AgainstHTTPBackend(t *testing.T) {
	states := []JobStatus{
		{QueueItemState: StateInQueue, ModificationTime: "t0"},
		{QueueItemState: StateValidating, ModificationTime: "t0"},
		{QueueItemState: StateValidating, ModificationTime: "t1"},
		{QueueItemState: StateDone, ModificationTime: "t1"},
	}
	var stateHits, listHits atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bulk/state/abc":
			i := int(stateHits.Add(1)) - 1
			if i >= len(states) {
				i = len(states) - 1
			}
			writeJSON(w, http.StatusOK, states[i])
		case "/bulk/":
			listHits.Add(1)
			assert.Equal(t, "correlationId=abc", r.URL.RawQuery)
			writeJSON(w, http.StatusOK, doneMetadata())
		default:
			http.NotFound(w, r)
		}
	})
	c := newTestRecordClient(t, srv, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	meta, err := NewPoller(c, "abc", WithInterval(time.Millisecond)).Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateDone, meta.QueueItemState)
	assert.EqualValues(t, 4, stateHits.Load())
	assert.EqualValues(t, 1, listHits.Load())
}

func TestPoll_ForbiddenBackendDoesNotHang(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})
	c := newTestRecordClient(t, srv, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	_, err := NewPoller(c, "abc", WithInterval(time.Millisecond)).Poll(ctx)
	require.ErrorIs(t, err, ErrPollAborted)
	assert.Equal(t, http.StatusForbidden, StatusCode(err))
	assert.EqualValues(t, 1, hits.Load())
}

func TestCalculateBackoff(t *testing.T) {
	baseInterval := 2 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 2 * time.Second},
		{"negative failures", -1, 2 * time.Second},
		{"one failure", 1, 4 * time.Second},
		{"two failures", 2, 8 * time.Second},
		{"three failures", 3, 16 * time.Second},
		{"four failures capped", 4, 30 * time.Second},
		{"many failures capped", 10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calculateBackoff(tt.failures, baseInterval))
		})
	}
}

func TestCalculateBackoff_NeverBelowBase(t *testing.T) {
	assert.Equal(t, time.Minute, calculateBackoff(3, time.Minute))
	assert.Equal(t, time.Duration(0), calculateBackoff(3, 0))
	for failures := 0; failures <= 20; failures++ {
		assert.LessOrEqual(t, calculateBackoff(failures, 2*time.Second), maxBackoff)
	}
}

func TestPoller_EmptyCorrelationIDFailsFast(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})
	client := newTestRecordClient(t, srv, "")
	rec := &sleepRecorder{}

	_, err := newTestPoller(client, rec).Poll(context.Background())
	require.ErrorIs(t, err, ErrMissingID)
	assert.Empty(t, rec.sleeps)
}
