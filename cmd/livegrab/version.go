package livegrab

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"github.com/redactyl/livegrab/internal/update"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the livegrab version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "livegrab %s%s\n", version, revision())
		},
	})

	var checkOnly bool
	upd := &cobra.Command{
		Use:   "update",
		Short: "Update livegrab to the latest release",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if checkOnly {
				c, err := update.NewChecker()
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
				defer cancel()
				latest, newer, err := c.Check(ctx, version, false)
				if err != nil {
					return err
				}
				if newer {
					fmt.Fprintf(out, "v%s is available (running v%s)\n", latest, version)
				} else {
					fmt.Fprintf(out, "livegrab v%s is up to date\n", version)
				}
				return nil
			}
			v, err := update.SelfUpdate(version)
			if err != nil {
				return fmt.Errorf("self-update: %w", err)
			}
			fmt.Fprintf(out, "updated to v%s\n", v)
			return nil
		},
	}
	upd.Flags().BoolVar(&checkOnly, "check", false, "only report whether a newer release exists")
	rootCmd.AddCommand(upd)
}

// revision appends the VCS revision recorded at build time, if any.
func revision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return " (" + s.Value[:7] + ")"
		}
	}
	return ""
}
