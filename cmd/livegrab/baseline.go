package livegrab

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redactyl/livegrab/internal/cache"
	"github.com/redactyl/livegrab/internal/report"
	"github.com/redactyl/livegrab/internal/types"
	"github.com/redactyl/livegrab/pkg/core"
)

var (
	baselineFile string
	baselineLast bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Manage baselines",
	}

	update := &cobra.Command{
		Use:   "update",
		Short: "Accept every current finding into the baseline",
		Long: "update captures from the sources named in config (or the current environment) and writes every " +
			"fingerprint found to the baseline. With --last it uses the stored report of the last grab instead.",
		RunE: runBaselineUpdate,
	}
	update.Flags().StringVar(&baselineFile, "file", "", "baseline file (default "+defaultBaseline+")")
	update.Flags().BoolVar(&baselineLast, "last", false, "use the report of the last grab")

	rootCmd.AddCommand(cmd)
	cmd.AddCommand(update)
}

func runBaselineUpdate(cmd *cobra.Command, _ []string) error {
	l, err := loadLayers()
	if err != nil {
		return err
	}
	path := pickString(baselineFile, l.Local.Baseline, l.Global.Baseline)
	if path == "" {
		path = defaultBaseline
	}

	var rep *types.Report
	if baselineLast {
		store, err := cache.Open("")
		if err != nil {
			return err
		}
		last, err := store.LoadLast()
		if errors.Is(err, cache.ErrEmpty) {
			return errors.New("no stored report; run `livegrab grab` first")
		}
		if err != nil {
			return err
		}
		rep = last.Report
	} else {
		o, err := resolveOptions(l)
		if err != nil {
			return err
		}
		if rep, _, err = core.Run(cmd.Context(), o); err != nil {
			return fmt.Errorf("capture: %w", err)
		}
	}
	if err := report.SaveBaseline(path, rep); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Baseline updated: %d fingerprints in %s\n", len(rep.Findings), path)
	return nil
}
