package livegrab

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/redactyl/livegrab/internal/report"
	"github.com/redactyl/livegrab/pkg/core"
)

var (
	sumStrict   bool
	sumBaseline string
)

func init() {
	cmd := &cobra.Command{
		Use:   "summarize [captures.json]",
		Short: "Summarize captures or a saved report",
		Long: "summarize reads a JSON array of captures, or a report written by --output-file, from a file or stdin " +
			"and prints the deduplicated, risk-ranked report. Scoring follows the risk settings in config.",
		Args: cobra.MaximumNArgs(1),
		RunE: runSummarize,
	}
	rootCmd.AddCommand(cmd)
	cmd.Flags().BoolVar(&sumStrict, "strict", false, "fail on empty input")
	cmd.Flags().StringVar(&sumBaseline, "baseline", "", "baseline file of accepted fingerprints (default "+defaultBaseline+")")
}

func runSummarize(cmd *cobra.Command, args []string) error {
	l, err := loadLayers()
	if err != nil {
		return err
	}
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	caps, err := core.UnmarshalCaptures(in)
	if err != nil {
		return fmt.Errorf("read captures: %w", err)
	}

	baselinePath := pickString(sumBaseline, l.Local.Baseline, l.Global.Baseline)
	if baselinePath == "" {
		baselinePath = defaultBaseline
	}
	base, err := report.LoadBaseline(baselinePath)
	if err != nil {
		return fmt.Errorf("baseline %s: %w", baselinePath, err)
	}
	o := core.NewOptions()
	o.Strict = pickBool(sumStrict, l.Local.Strict, l.Global.Strict)
	o.Baseline = base.Items
	if o.Weights, o.Thresholds, err = riskSettings(l); err != nil {
		return err
	}
	rep, err := o.Summarizer().Summarize(caps)
	if err != nil {
		return err
	}

	format, err := report.ParseFormat(pickString(flagOutput, l.Local.Output, l.Global.Output))
	if err != nil {
		return err
	}
	sink := &report.WriterSink{
		W:       cmd.OutOrStdout(),
		Format:  format,
		Print:   report.PrintOptions{NoColor: pickBool(flagNoColor, l.Local.NoColor, l.Global.NoColor)},
		Version: version,
	}
	if err := sink.Emit(cmd.Context(), rep); err != nil {
		return err
	}
	if failOn := pickString(flagFailOn, l.Local.FailOn, l.Global.FailOn); failOn != "" &&
		report.ShouldFail(report.FilterNewFindings(rep.Findings, base), failOn) {
		return errFailOn
	}
	return nil
}
