package melinda

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultPollInterval is the wait between status checks that saw no change.
	DefaultPollInterval = 3 * time.Second
	maxBackoff          = 30 * time.Second
	minRetryDelay       = 250 * time.Millisecond
)

// BulkSource is what the poller needs from a client. *RecordClient implements
// it; tests substitute scripted sources.
type BulkSource interface {
	GetBulkState(ctx context.Context, correlationID string) (JobStatus, error)
	ReadBulk(ctx context.Context, q BulkQuery) ([]BulkMetadata, error)
}

var _ BulkSource = (*RecordClient)(nil)

// Poller follows one bulk job until it finishes. A Poller holds no state
// between Poll calls, so separate pollers may run concurrently.
type Poller struct {
	source        BulkSource
	correlationID string
	interval      time.Duration
	stopOnChange  bool
	observer      func(JobStatus)
	logger        *slog.Logger
	sleep         func(context.Context, time.Duration) error
}

// PollOption customizes a Poller.
type PollOption func(*Poller)

// WithInterval sets the wait between checks. Negative values are treated as
// zero.
func WithInterval(d time.Duration) PollOption {
	return func(p *Poller) {
		if d < 0 {
			d = 0
		}
		p.interval = d
	}
}

// WithStopOnStateChange makes Poll return as soon as the job's modification
// time moves, instead of waiting for a terminal state.
func WithStopOnStateChange(stop bool) PollOption {
	return func(p *Poller) { p.stopOnChange = stop }
}

// WithObserver registers fn to receive every status the poller fetches.
func WithObserver(fn func(JobStatus)) PollOption {
	return func(p *Poller) { p.observer = fn }
}

// WithPollLogger sets the logger used for progress messages.
func WithPollLogger(logger *slog.Logger) PollOption {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPoller returns a Poller for the job correlationID.
func NewPoller(source BulkSource, correlationID string, opts ...PollOption) *Poller {
	p := &Poller{
		source:        source,
		correlationID: correlationID,
		interval:      DefaultPollInterval,
		logger:        slog.New(slog.DiscardHandler),
		sleep:         sleepContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.logger = p.logger.With("component", "bulk-poller", "correlationId", correlationID)
	return p
}

// Poll checks the job until it reaches a terminal state (or, with
// WithStopOnStateChange, until its modification time changes) and returns the
// job's full metadata.
//
// Transport failures are retried indefinitely with a capped backoff. Backend
// answers 500, 403 and 415 end the poll with ErrPollAborted; any other API
// error is returned unchanged. Cancel ctx to bound the total wait.
func (p *Poller) Poll(ctx context.Context) (BulkMetadata, error) {
	var (
		lastModification string
		observed         bool
		wait             bool
		failures         int
	)
	for {
		if wait {
			delay := calculateBackoff(failures, p.interval)
			if failures > 0 && delay <= 0 {
				delay = minRetryDelay
			}
			if err := p.sleep(ctx, delay); err != nil {
				return BulkMetadata{}, err
			}
			wait = false
		}

		p.logger.Debug("polling bulk state")
		status, err := p.source.GetBulkState(ctx, p.correlationID)
		if err != nil {
			if ferr := p.classify(ctx, err); ferr != nil {
				return BulkMetadata{}, ferr
			}
			failures++
			wait = true
			continue
		}
		failures = 0
		if p.observer != nil {
			p.observer(status)
		}

		switch {
		case status.QueueItemState.Terminal():
			p.logger.Debug("bulk reached final state", "state", status.QueueItemState)
		case !observed:
			p.logger.Debug("first bulk state", "state", status.QueueItemState, "modificationTime", status.ModificationTime)
			observed = true
			lastModification = status.ModificationTime
			continue
		case status.ModificationTime == lastModification:
			wait = true
			continue
		case !p.stopOnChange:
			p.logger.Info("bulk progressed", "state", status.QueueItemState, "modificationTime", status.ModificationTime, "records", status.HandledRecords())
			lastModification = status.ModificationTime
			wait = true
			continue
		}

		meta, err := p.readMetadata(ctx)
		if err != nil {
			if ferr := p.classify(ctx, err); ferr != nil {
				return BulkMetadata{}, ferr
			}
			failures++
			wait = true
			continue
		}
		return meta, nil
	}
}

func (p *Poller) readMetadata(ctx context.Context) (BulkMetadata, error) {
	items, err := p.source.ReadBulk(ctx, BulkQuery{CorrelationID: p.correlationID})
	if err != nil {
		return BulkMetadata{}, err
	}
	if len(items) == 0 {
		return BulkMetadata{}, fmt.Errorf("%w: %s", ErrJobNotFound, p.correlationID)
	}
	return items[0], nil
}

// classify returns nil when err is worth retrying, or the error Poll should
// return.
func (p *Poller) classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, ErrJobNotFound) || errors.Is(err, ErrMissingID) {
		return err
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Transport() {
		p.logger.Warn("bulk poll failed, retrying", "error", err)
		return nil
	}
	switch apiErr.Status {
	case http.StatusInternalServerError, http.StatusForbidden, http.StatusUnsupportedMediaType:
		p.logger.Error("bulk poll aborted", "status", apiErr.Status, "message", apiErr.Message)
		return fmt.Errorf("%w: %s: %w", ErrPollAborted, p.correlationID, apiErr)
	}
	return apiErr
}

// calculateBackoff doubles base for each consecutive failure, capped at
// maxBackoff. It never returns less than base.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 || base <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	if d < base {
		d = base
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
