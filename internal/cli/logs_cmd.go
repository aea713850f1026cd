package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/five82/melinda/pkg/melinda"
)

func newLogsCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query and maintain the audit log",
	}
	cmd.AddCommand(newLogsCatalogersCmd(env))
	cmd.AddCommand(newLogsGetCmd(env))
	cmd.AddCommand(newLogsListCmd(env))
	cmd.AddCommand(newLogsProtectCmd(env))
	cmd.AddCommand(newLogsRemoveCmd(env))
	return cmd
}

func newLogsCatalogersCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "catalogers",
		Short: "List catalogers that have produced logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := env.logClient()
			if err != nil {
				return err
			}
			catalogers, err := client.GetCatalogers(cmd.Context())
			if err != nil {
				return fmt.Errorf("list catalogers: %w", err)
			}
			return env.render(catalogers, func(w io.Writer) error {
				return writeLines(w, catalogers)
			})
		},
	}
}

func newLogsGetCmd(env *environment) *cobra.Command {
	var query melinda.LogQuery

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch log items",
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
			client, err := env.logClient()
			if err != nil {
				return err
			}
			items, err := client.GetLog(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("get logs: %w", err)
			}
			return env.render(items, func(w io.Writer) error {
				return writeLogItems(w, items)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&query.CorrelationID, "correlation-id", "", "correlation id of the job")
	f.StringVar(&query.ID, "id", "", "log id")
	f.StringVar(&query.LogItemType, "type", "", "log item type, e.g. MERGE_LOG")
	f.IntVar(&query.BlobSequence, "blob-sequence", 0, "blob sequence number")
	f.StringVar(&query.StandardIdentifiers, "standard-identifiers", "", "standard identifiers")
	f.StringVar(&query.DatabaseID, "database-id", "", "database id of the record")
	f.StringVar(&query.SourceIDs, "source-ids", "", "source ids")
	f.IntVar(&query.Skip, "skip", 0, "skip this many items")
	f.IntVar(&query.Limit, "limit", 0, "return at most this many items")
	return cmd
}

func newLogsListCmd(env *environment) *cobra.Command {
	var (
		query    melinda.LogListQuery
		expanded bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := query
			if cmd.Flags().Changed("expanded") {
				q.Expanded = melinda.Bool(expanded)
			}
			client, err := env.logClient()
			if err != nil {
				return err
			}
			items, err := client.GetLogsList(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("list logs: %w", err)
			}
			return env.render(items, func(w io.Writer) error {
				return writeLogItems(w, items)
			})
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&query.LogItemTypes, "types", nil, "log item types")
	f.StringSliceVar(&query.Catalogers, "catalogers", nil, "catalogers")
	f.StringVar(&query.DateBefore, "before", "", "only logs created before this date (YYYY-MM-DD)")
	f.StringVar(&query.DateAfter, "after", "", "only logs created after this date (YYYY-MM-DD)")
	f.BoolVar(&expanded, "expanded", false, "include per-blob details")
	return cmd
}

func newLogsProtectCmd(env *environment) *cobra.Command {
	var blobSequence int

	cmd := &cobra.Command{
		Use:   "protect <correlation-id>",
		Short: "Toggle protection of a log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCorrelationID(args[0])
			if err != nil {
				return err
			}
			client, err := env.logClient()
			if err != nil {
				return err
			}
			payload, err := client.ProtectLog(cmd.Context(), id, blobSequence)
			if err != nil {
				return fmt.Errorf("protect log %s: %w", id, err)
			}
			return renderPayload(env, payload, "protected "+id)
		},
	}
	cmd.Flags().IntVar(&blobSequence, "blob-sequence", 0, "protect only this blob")
	return cmd
}

func newLogsRemoveCmd(env *environment) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "remove <correlation-id>",
		Short: "Remove a log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCorrelationID(args[0])
			if err != nil {
				return err
			}
			client, err := env.logClient()
			if err != nil {
				return err
			}
			payload, err := client.RemoveLog(cmd.Context(), id, force)
			if err != nil {
				return fmt.Errorf("remove log %s: %w", id, err)
			}
			return renderPayload(env, payload, "removed "+id)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "remove protected logs too")
	return cmd
}

func renderPayload(env *environment, payload json.RawMessage, summary string) error {
	var v any
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &v); err != nil {
			v = string(payload)
		}
	}
	return env.render(v, func(w io.Writer) error {
		if _, err := fmt.Fprintln(w, summary); err != nil {
			return err
		}
		return writeRaw(w, payload)
	})
}
