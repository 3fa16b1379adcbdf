package livegrab

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/redactyl/livegrab/internal/cache"
	"github.com/redactyl/livegrab/internal/report"
	"github.com/redactyl/livegrab/internal/tui"
	"github.com/redactyl/livegrab/internal/types"
)

var (
	reportLast bool
	reportTUI  bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "report [report.json]",
		Short: "Re-render a stored report without capturing again",
		Example: `  livegrab report --last
  livegrab report --last --tui
  livegrab report out/report.json -o sarif`,
		Args: cobra.MaximumNArgs(1),
		RunE: runReport,
	}
	rootCmd.AddCommand(cmd)
	cmd.Flags().BoolVar(&reportLast, "last", false, "use the report of the last grab")
	cmd.Flags().BoolVar(&reportTUI, "tui", false, "browse the report interactively")
}

func runReport(cmd *cobra.Command, args []string) error {
	var (
		rep     *types.Report
		savedAt time.Time
		elapsed time.Duration
		sources int
	)
	switch {
	case len(args) == 1:
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		if rep, err = report.ReadJSON(f); err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
	case reportLast:
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
		rep, savedAt, sources = last.Report, last.SavedAt, len(last.Sources)
		elapsed, _ = time.ParseDuration(last.Duration)
	default:
		return errors.New("give a report file or --last")
	}

	l, err := loadLayers()
	if err != nil {
		return err
	}
	noColor := pickBool(flagNoColor, l.Local.NoColor, l.Global.NoColor)
	if reportTUI {
		return tui.RunReport(rep, tui.Options{NoColor: noColor, Version: version, ExportDir: ".", Cached: savedAt})
	}
	format, err := report.ParseFormat(pickString(flagOutput, l.Local.Output, l.Global.Output))
	if err != nil {
		return err
	}
	if !savedAt.IsZero() && (format == report.FormatTable || format == report.FormatText) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Report from %s\n", savedAt.Local().Format(time.RFC1123))
	}
	sink := &report.WriterSink{
		W:       cmd.OutOrStdout(),
		Format:  format,
		Print:   report.PrintOptions{NoColor: noColor, Duration: elapsed, Sources: sources, Width: terminalWidth()},
		Version: version,
	}
	return sink.Emit(cmd.Context(), rep)
}
