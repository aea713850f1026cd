package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/five82/melinda/internal/prefs"
	"github.com/five82/melinda/internal/state"
	"github.com/five82/melinda/internal/ui"
	"github.com/five82/melinda/pkg/melinda"
)

// WatchOptions configure Watch.
type WatchOptions struct {
	Source        melinda.BulkSource
	CorrelationID string
	Interval      time.Duration // passed to the poller as is; zero means no wait
	StopOnChange  bool
	Logger        *slog.Logger
	PrefsPath     string // empty uses ~/.config/melinda/prefs.toml

	// runUI replaces ui.Run in tests.
	runUI func(context.Context, ui.Options) error
}

// Watch polls one bulk job and shows its progress until the poll ends and the
// user quits. It returns the poll's outcome; quitting early yields
// context.Canceled.
func Watch(ctx context.Context, opts WatchOptions) (melinda.BulkMetadata, error) {
	if opts.Source == nil {
		return melinda.BulkMetadata{}, fmt.Errorf("watch requires a bulk source")
	}
	if opts.CorrelationID == "" {
		return melinda.BulkMetadata{}, fmt.Errorf("watch requires a correlation id")
	}
	runUI := opts.runUI
	if runUI == nil {
		runUI = ui.Run
	}

	userPrefs := prefs.Load(opts.PrefsPath)
	store := state.NewStore(opts.CorrelationID)

	pollOpts := []melinda.PollOption{
		melinda.WithInterval(opts.Interval),
		melinda.WithStopOnStateChange(opts.StopOnChange),
	}
	if opts.Logger != nil {
		pollOpts = append(pollOpts, melinda.WithPollLogger(opts.Logger))
	}

	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := startPoll(pollCtx, store, opts.Source, opts.CorrelationID, pollOpts...)

	uiErr := runUI(pollCtx, ui.Options{
		Store:        store,
		ThemeName:    userPrefs.Theme,
		PrefsPath:    opts.PrefsPath,
		ExitOnFinish: userPrefs.ExitOnFinish,
	})

	// The view may close before the poll ends.
	cancel()
	res := <-done

	if uiErr != nil {
		return res.meta, fmt.Errorf("watch view: %w", uiErr)
	}
	if res.err != nil && errors.Is(res.err, context.Canceled) && ctx.Err() == nil {
		return res.meta, fmt.Errorf("watch closed before bulk %s finished: %w", opts.CorrelationID, res.err)
	}
	return res.meta, res.err
}
