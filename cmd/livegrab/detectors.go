package livegrab

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redactyl/livegrab/pkg/core"
)

func init() {
	cmd := &cobra.Command{
		Use:   "detectors",
		Short: "List detector and rule IDs accepted by --enable and --disable",
		Run: func(cmd *cobra.Command, _ []string) {
			for _, id := range core.DetectorIDs() {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
		},
	}
	rootCmd.AddCommand(cmd)
}
