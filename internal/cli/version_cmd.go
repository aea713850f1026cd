package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newVersionCmd(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := map[string]string{"version": version, "commit": commit}
			return env.render(info, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "melinda version %s (commit: %s)\n", version, commit)
				return err
			})
		},
	}
}
