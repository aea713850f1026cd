package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/five82/melinda/internal/recordfile"
	"github.com/five82/melinda/pkg/melinda"
)

func newRecordCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Read and write single records",
	}
	cmd.AddCommand(newRecordReadCmd(env))
	cmd.AddCommand(newRecordCreateCmd(env))
	cmd.AddCommand(newRecordUpdateCmd(env, "update", "Update an existing record", (*melinda.RecordClient).Update))
	cmd.AddCommand(newRecordUpdateCmd(env, "restore", "Restore (fix) an existing record", (*melinda.RecordClient).Restore))
	return cmd
}

func newRecordReadCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "read <record-id>",
		Short: "Read a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := env.recordClient()
			if err != nil {
				return err
			}
			res, err := client.Read(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("read record %s: %w", args[0], err)
			}
			return env.render(res, func(w io.Writer) error {
				return writeReadResult(w, res)
			})
		},
	}
}

func newRecordCreateCmd(env *environment) *cobra.Command {
	var opts melinda.CreateOptions

	cmd := &cobra.Command{
		Use:   "create <file>",
		Short: "Create records from a JSON file (- for stdin)",
		Long: "Create one record per entry of the file. The file may hold a single record, " +
			"a JSON array or JSON lines.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := recordfile.Read(args[0], env.stdin)
			if err != nil {
				return err
			}
			client, err := env.recordClient()
			if err != nil {
				return err
			}

			results := make([]melinda.RecordResult, 0, len(records))
			for i, rec := range records {
				res, err := client.Create(cmd.Context(), rec, opts)
				if err != nil {
					return fmt.Errorf("create record %d of %d: %w", i+1, len(records), err)
				}
				env.logger.Debug("record created", "index", i+1, "recordId", res.RecordID, "status", res.Status)
				results = append(results, res)
			}
			return env.render(results, func(w io.Writer) error {
				for _, res := range results {
					if err := writeRecordResult(w, "create", res); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.Noop, "noop", false, "validate only, do not store")
	f.BoolVar(&opts.Unique, "unique", false, "reject records that match an existing one")
	f.BoolVar(&opts.Merge, "merge", false, "merge with a matching record")
	f.BoolVar(&opts.SkipLowValidation, "skip-low-validation", false, "skip low-level validation")
	f.StringVar(&opts.Cataloger, "record-cataloger", "", "cataloger for this request (overrides --cataloger)")
	return cmd
}

type recordWriter func(*melinda.RecordClient, context.Context, melinda.Record, string, melinda.UpdateOptions) (melinda.RecordResult, error)

func newRecordUpdateCmd(env *environment, action, short string, write recordWriter) *cobra.Command {
	var opts melinda.UpdateOptions

	cmd := &cobra.Command{
		Use:   action + " <record-id> <file>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := recordfile.ReadOne(args[1], env.stdin)
			if err != nil {
				return err
			}
			client, err := env.recordClient()
			if err != nil {
				return err
			}
			res, err := write(client, cmd.Context(), rec, args[0], opts)
			if err != nil {
				return fmt.Errorf("%s record %s: %w", action, args[0], err)
			}
			if res.RecordID == "" {
				res.RecordID = args[0]
			}
			return env.render(res, func(w io.Writer) error {
				return writeRecordResult(w, action, res)
			})
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.Noop, "noop", false, "validate only, do not store")
	f.BoolVar(&opts.SkipLowValidation, "skip-low-validation", false, "skip low-level validation")
	f.StringVar(&opts.Cataloger, "record-cataloger", "", "cataloger for this request (overrides --cataloger)")
	return cmd
}
