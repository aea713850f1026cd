package app

import (
	"context"

	"github.com/five82/melinda/internal/state"
	"github.com/five82/melinda/pkg/melinda"
)

type outcome struct {
	meta melinda.BulkMetadata
	err  error
}

// startPoll runs poller in a background goroutine, mirroring every status
// into store. The returned channel yields exactly one outcome.
func startPoll(ctx context.Context, store *state.Store, source melinda.BulkSource, correlationID string, opts ...melinda.PollOption) <-chan outcome {
	done := make(chan outcome, 1)
	opts = append(opts, melinda.WithObserver(store.Observe))
	poller := melinda.NewPoller(source, correlationID, opts...)
	go func() {
		meta, err := poller.Poll(ctx)
		store.Finish(meta, err)
		done <- outcome{meta: meta, err: err}
	}()
	return done
}
