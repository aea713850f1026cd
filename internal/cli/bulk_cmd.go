package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/five82/melinda/internal/app"
	"github.com/five82/melinda/internal/recordfile"
	"github.com/five82/melinda/pkg/melinda"
)

const defaultBulkContentType = "application/json"

func newBulkCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Submit and follow bulk jobs",
	}
	cmd.AddCommand(newBulkCreateCmd(env))
	cmd.AddCommand(newBulkSendCmd(env))
	cmd.AddCommand(newBulkStateCmd(env))
	cmd.AddCommand(newBulkSetStateCmd(env))
	cmd.AddCommand(newBulkListCmd(env))
	cmd.AddCommand(newBulkPollCmd(env))
	cmd.AddCommand(newBulkWatchCmd(env))
	return cmd
}

// bulkFlags holds the submission flags. Tri-state flags are only sent when
// given on the command line.
type bulkFlags struct {
	opts                melinda.BulkOptions
	noop                bool
	unique              bool
	merge               bool
	validate            bool
	failOnError         bool
	skipNoChangeUpdates bool
}

func (b *bulkFlags) register(f *pflag.FlagSet) {
	f.StringVar(&b.opts.OldNew, "old-new", "", "NEW to create records, OLD to update them")
	f.StringVar(&b.opts.ActiveLibrary, "active-library", "", "active library")
	f.StringVar(&b.opts.CatalogerIn, "cataloger-in", "", "cataloger for this job (overrides --cataloger)")
	f.StringVar(&b.opts.RejectFile, "reject-file", "", "reject file name")
	f.StringVar(&b.opts.LogFile, "log-file", "", "log file name")
	f.BoolVar(&b.noop, "noop", false, "validate only, do not store")
	f.BoolVar(&b.unique, "unique", false, "reject records that match an existing one")
	f.BoolVar(&b.merge, "merge", false, "merge with matching records")
	f.BoolVar(&b.validate, "validate", false, "validate records before import")
	f.BoolVar(&b.failOnError, "fail-on-error", false, "stop the job on the first failing record")
	f.BoolVar(&b.skipNoChangeUpdates, "skip-no-change-updates", false, "skip updates that change nothing")
}

func (b *bulkFlags) options(f *pflag.FlagSet) melinda.BulkOptions {
	opts := b.opts
	set := func(name string, value bool) *bool {
		if !f.Changed(name) {
			return nil
		}
		return melinda.Bool(value)
	}
	opts.Noop = set("noop", b.noop)
	opts.Unique = set("unique", b.unique)
	opts.Merge = set("merge", b.merge)
	opts.Validate = set("validate", b.validate)
	opts.FailOnError = set("fail-on-error", b.failOnError)
	opts.SkipNoChangeUpdates = set("skip-no-change-updates", b.skipNoChangeUpdates)
	return opts
}

func newBulkCreateCmd(env *environment) *cobra.Command {
	var (
		flags       bulkFlags
		contentType string
		noStream    bool
		wait        bool
		interval    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create [file]",
		Short: "Create a bulk job from a record stream (- for stdin)",
		Long: "Upload a file as a new bulk job. With --no-stream the job is created empty " +
			"and records are added later with 'bulk send'.",
		Args: func(cmd *cobra.Command, args []string) error {
			if noStream {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := env.recordClient()
			if err != nil {
				return err
			}
			opts := flags.options(cmd.Flags())

			var res melinda.BulkResult
			if noStream {
				res, err = client.CreateBulkNoStream(cmd.Context(), contentType, opts)
			} else {
				res, err = createBulkFromFile(cmd.Context(), client, args[0], contentType, opts, env.stdin)
			}
			if err != nil {
				return fmt.Errorf("create bulk: %w", err)
			}
			id := res.Metadata.CorrelationID
			env.logger.Info("bulk created", "status", res.Status, "correlationId", id, "state", res.Metadata.QueueItemState)

			if wait && id != "" {
				meta, err := melinda.NewPoller(client, id,
					melinda.WithInterval(env.pollInterval(cmd, interval)),
					melinda.WithPollLogger(env.logger),
				).Poll(cmd.Context())
				if err != nil {
					return fmt.Errorf("wait for bulk: %w", err)
				}
				res.Metadata = meta
			}
			return env.render(res, func(w io.Writer) error {
				return writeBulkResult(w, "create", res)
			})
		},
	}

	f := cmd.Flags()
	flags.register(f)
	f.StringVar(&contentType, "content-type", defaultBulkContentType, "content type of the record stream")
	f.BoolVar(&noStream, "no-stream", false, "create the job without records")
	f.BoolVarP(&wait, "wait", "w", false, "poll the job until it finishes")
	f.DurationVar(&interval, "interval", melinda.DefaultPollInterval, "poll interval with --wait")
	return cmd
}

// pollInterval returns the --interval flag when given, else the configured
// interval.
func (e *environment) pollInterval(cmd *cobra.Command, flagValue time.Duration) time.Duration {
	if cmd.Flags().Changed("interval") || e.cfg.PollInterval <= 0 {
		return flagValue
	}
	return e.cfg.PollInterval
}

func createBulkFromFile(ctx context.Context, client *melinda.RecordClient, path, contentType string, opts melinda.BulkOptions, stdin io.Reader) (melinda.BulkResult, error) {
	if path == recordfile.Stdin {
		return client.CreateBulk(ctx, stdin, contentType, opts)
	}
	file, err := os.Open(path)
	if err != nil {
		return melinda.BulkResult{}, fmt.Errorf("open stream: %w", err)
	}
	defer file.Close()
	return client.CreateBulk(ctx, file, contentType, opts)
}

func newBulkSendCmd(env *environment) *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "send <correlation-id> <file>",
		Short: "Add records to a bulk job created with --no-stream",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCorrelationID(args[0])
			if err != nil {
				return err
			}
			records, err := recordfile.Read(args[1], env.stdin)
			if err != nil {
				return err
			}
			client, err := env.recordClient()
			if err != nil {
				return err
			}

			payloads := make([]any, 0, len(records))
			for i, rec := range records {
				payload, err := client.SendRecordToBulk(cmd.Context(), rec, id, contentType)
				if err != nil {
					return fmt.Errorf("send record %d of %d: %w", i+1, len(records), err)
				}
				payloads = append(payloads, payload)
			}
			return env.render(payloads, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "sent %d record(s) to %s\n", len(records), id)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", defaultBulkContentType, "content type of each record")
	return cmd
}

func newBulkStateCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "state <correlation-id>",
		Short: "Show the current state of a bulk job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCorrelationID(args[0])
			if err != nil {
				return err
			}
			client, err := env.recordClient()
			if err != nil {
				return err
			}
			status, err := client.GetBulkState(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("bulk state %s: %w", id, err)
			}
			return env.render(status, func(w io.Writer) error {
				return writeJobStatus(w, status)
			})
		},
	}
}

func newBulkSetStateCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "set-state <correlation-id> <state>",
		Short: "Move a bulk job to another queue state",
		Long:  "Move a bulk job to another queue state, e.g. PENDING_VALIDATION after 'bulk send' or ABORT.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCorrelationID(args[0])
			if err != nil {
				return err
			}
			state, err := melinda.ParseQueueItemState(args[1])
			if err != nil {
				return err
			}
			client, err := env.recordClient()
			if err != nil {
				return err
			}
			res, err := client.SetBulkStatus(cmd.Context(), id, state)
			if err != nil {
				return fmt.Errorf("set bulk state %s: %w", id, err)
			}
			return env.render(res, func(w io.Writer) error {
				return writeBulkResult(w, "set-state", res)
			})
		},
	}
}

func newBulkListCmd(env *environment) *cobra.Command {
	var (
		query melinda.BulkQuery
		state string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bulk jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := query
			if q.CorrelationID != "" {
				id, err := parseCorrelationID(q.CorrelationID)
				if err != nil {
					return err
				}
				q.CorrelationID = id
			}
			if state != "" {
				parsed, err := melinda.ParseQueueItemState(state)
				if err != nil {
					return err
				}
				q.QueueItemState = parsed
			}
			client, err := env.recordClient()
			if err != nil {
				return err
			}
			items, err := client.ReadBulk(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("list bulk jobs: %w", err)
			}
			return env.render(items, func(w io.Writer) error {
				return writeBulkList(w, items)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&query.CorrelationID, "correlation-id", "", "only this job")
	f.StringVar(&state, "state", "", "only jobs in this queue state")
	f.StringSliceVar(&query.CreationTime, "creation-time", nil, "creation date, or a before,after pair (YYYY-MM-DD)")
	f.StringSliceVar(&query.ModificationTime, "modification-time", nil, "modification date, or a before,after pair (YYYY-MM-DD)")
	f.IntVar(&query.Skip, "skip", 0, "skip this many jobs")
	f.IntVar(&query.Limit, "limit", 0, "return at most this many jobs")
	return cmd
}

type pollResult struct {
	CorrelationID string               `json:"correlationId"`
	Metadata      melinda.BulkMetadata `json:"metadata,omitempty"`
	Error         string               `json:"error,omitempty"`
}

func newBulkPollCmd(env *environment) *cobra.Command {
	var (
		interval     time.Duration
		stopOnChange bool
		parallel     int
	)

	cmd := &cobra.Command{
		Use:   "poll <correlation-id>...",
		Short: "Wait until bulk jobs finish",
		Long: "Poll one or more bulk jobs until each reaches DONE, ERROR or ABORT " +
			"(or, with --stop-on-change, until its state first changes).",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]string, len(args))
			for i, arg := range args {
				id, err := parseCorrelationID(arg)
				if err != nil {
					return err
				}
				ids[i] = id
			}
			client, err := env.recordClient()
			if err != nil {
				return err
			}

			results := pollAll(cmd.Context(), client, ids, parallel,
				melinda.WithInterval(env.pollInterval(cmd, interval)),
				melinda.WithStopOnStateChange(stopOnChange),
				melinda.WithPollLogger(env.logger),
			)

			var errs []error
			for _, r := range results {
				if r.err != nil {
					errs = append(errs, fmt.Errorf("poll %s: %w", r.CorrelationID, r.err))
				}
			}
			if err := env.render(results, func(w io.Writer) error {
				for _, r := range results {
					if r.err != nil {
						continue
					}
					if err := writeBulkMetadata(w, r.Metadata); err != nil {
						return err
					}
					fmt.Fprintln(w)
				}
				return nil
			}); err != nil {
				return err
			}
			return errors.Join(errs...)
		},
	}

	f := cmd.Flags()
	f.DurationVar(&interval, "interval", melinda.DefaultPollInterval, "wait between checks without progress")
	f.BoolVar(&stopOnChange, "stop-on-change", false, "return as soon as the job's state changes")
	f.IntVar(&parallel, "parallel", 4, "maximum number of jobs polled at once")
	return cmd
}

type polled struct {
	pollResult
	err error
}

// pollAll polls every job concurrently and returns the outcomes in the order
// of ids. A failing job does not stop the others.
func pollAll(ctx context.Context, source melinda.BulkSource, ids []string, parallel int, opts ...melinda.PollOption) []polled {
	results := make([]polled, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, id := range ids {
		g.Go(func() error {
			meta, err := melinda.NewPoller(source, id, opts...).Poll(gctx)
			results[i] = polled{pollResult: pollResult{CorrelationID: id, Metadata: meta}, err: err}
			if err != nil {
				results[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func newBulkWatchCmd(env *environment) *cobra.Command {
	var (
		interval     time.Duration
		stopOnChange bool
		prefsPath    string
	)

	cmd := &cobra.Command{
		Use:   "watch <correlation-id>",
		Short: "Follow a bulk job in a live terminal view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCorrelationID(args[0])
			if err != nil {
				return err
			}
			client, err := env.recordClient()
			if err != nil {
				return err
			}
			meta, err := app.Watch(cmd.Context(), app.WatchOptions{
				Source:        client,
				CorrelationID: id,
				Interval:      env.pollInterval(cmd, interval),
				StopOnChange:  stopOnChange,
				PrefsPath:     prefsPath,
			})
			if err != nil {
				return err
			}
			return env.render(meta, func(w io.Writer) error {
				return writeBulkMetadata(w, meta)
			})
		},
	}

	f := cmd.Flags()
	f.DurationVar(&interval, "interval", melinda.DefaultPollInterval, "wait between checks without progress")
	f.BoolVar(&stopOnChange, "stop-on-change", false, "stop as soon as the job's state changes")
	f.StringVar(&prefsPath, "prefs", "", "preferences file (default ~/.config/melinda/prefs.toml)")
	return cmd
}
