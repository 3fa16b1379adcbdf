package report

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"

	"github.com/redactyl/livegrab/internal/types"
)

type PrintOptions struct {
	NoColor  bool
	Duration time.Duration
	Sources  int
	// Width caps the table width; zero leaves it unbounded.
	Width int
}

var (
	styleHigh  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleMed   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleLow   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	styleKnown = lipgloss.NewStyle().Faint(true)
)

// PrintTable renders findings in risk order as a bordered table followed by
// a summary footer.
func PrintTable(w io.Writer, r *types.Report, opts PrintOptions) error {
	if len(r.Findings) == 0 {
		fmt.Fprintln(w, "No secrets found ✅")
	} else {
		var topts []tablewriter.Option
		if opts.Width > 0 {
			topts = append(topts, tablewriter.WithMaxWidth(opts.Width))
		}
		table := tablewriter.NewTable(w, topts...)
		table.Header("Severity", "Risk", "Kind", "Detector", "Source", "Seen", "Preview")
		for _, f := range r.Findings {
			sev := string(f.Severity)
			if !opts.NoColor {
				sev = colorSeverity(f.Severity)
			}
			preview := f.RedactedPreview
			if f.Known {
				preview += " (baseline)"
				if !opts.NoColor {
					preview = styleKnown.Render(preview)
				}
			}
			if err := table.Append([]string{
				sev,
				fmt.Sprintf("%.1f", f.RiskScore),
				string(f.Kind),
				f.Detector,
				f.Provenance.String(),
				fmt.Sprintf("%dx", f.OccurrenceCount),
				preview,
			}); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}
	printFooter(w, r, opts)
	return nil
}

// PrintText renders one line per finding, for narrow terminals and logs.
func PrintText(w io.Writer, r *types.Report, opts PrintOptions) {
	if len(r.Findings) == 0 {
		fmt.Fprintln(w, "No secrets found ✅")
	} else {
		maxDet := 8
		for _, f := range r.Findings {
			if l := len(f.Detector); l > maxDet {
				maxDet = l
			}
		}
		fmt.Fprintf(w, "Findings: %d\n", len(r.Findings))
		for _, f := range r.Findings {
			sev := string(f.Severity)
			if !opts.NoColor {
				sev = colorSeverity(f.Severity)
			}
			fmt.Fprintf(w, "%-6s %-*s %s  %s  x%d\n", sev, maxDet, f.Detector, f.Provenance, f.RedactedPreview, f.OccurrenceCount)
		}
	}
	printFooter(w, r, opts)
}

func printFooter(w io.Writer, r *types.Report, opts PrintOptions) {
	high, med, low := countSeverities(r.Findings)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Findings: %d unique, %d occurrences (high: %d, medium: %d, low: %d)\n",
		r.TotalUnique, r.TotalOccurrences, high, med, low)
	if kinds := r.KindsPresent(); len(kinds) > 0 {
		fmt.Fprint(w, "By kind:")
		for _, k := range kinds {
			fmt.Fprintf(w, " %s=%d", k, r.ByKind[k])
		}
		fmt.Fprintln(w)
	}
	if opts.Duration > 0 {
		fmt.Fprintf(w, "Capture duration: %.2fs\n", opts.Duration.Seconds())
	}
	if opts.Sources > 0 {
		fmt.Fprintf(w, "Sources: %d\n", opts.Sources)
	}
	if r.Incomplete {
		fmt.Fprintln(w, "Result is INCOMPLETE: not every source could be read in time")
	}
	for _, e := range r.SourceErrors {
		fmt.Fprintf(w, "  source error: %s\n", e)
	}
}

func countSeverities(fs []types.Finding) (high, med, low int) {
	for _, f := range fs {
		switch f.Severity {
		case types.SevHigh:
			high++
		case types.SevMed:
			med++
		default:
			low++
		}
	}
	return
}

func colorSeverity(s types.Severity) string {
	switch s {
	case types.SevHigh:
		return styleHigh.Render("high")
	case types.SevMed:
		return styleMed.Render("medium")
	default:
		return styleLow.Render("low")
	}
}
