package livegrab

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/redactyl/livegrab/internal/detectors"
	"github.com/redactyl/livegrab/internal/redact"
	"github.com/redactyl/livegrab/internal/report"
	"github.com/redactyl/livegrab/internal/summary"
	"github.com/redactyl/livegrab/internal/types"
)

func init() {
	cmd := &cobra.Command{
		Use:   "test-detector <id>",
		Short: "Run one detector or rule against text from stdin",
		Args:  cobra.ExactArgs(1),
		RunE:  runTestDetector,
	}
	// help message includes detector IDs
	cmd.Long = "Available detectors: " + strings.Join(detectors.IDs(), ", ")
	rootCmd.AddCommand(cmd)
}

func runTestDetector(cmd *cobra.Command, args []string) error {
	id := args[0]
	cfg := detectors.DefaultConfig()
	cfg.Gitleaks = id == "gitleaks"
	ds := detectors.Select(detectors.Default(cfg), id, "")
	if len(ds) == 0 {
		return fmt.Errorf("unknown detector id: %s (available: %s)", id, strings.Join(detectors.IDs(), ", "))
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return err
	}
	rep, err := summary.New().Summarize(detectAll(ds, data))
	if err != nil {
		return err
	}
	return report.PrintTable(cmd.OutOrStdout(), rep, report.PrintOptions{NoColor: flagNoColor})
}

// detectAll runs ds over data as a single chunk read from stdin.
func detectAll(ds []detectors.Detector, data []byte) []types.Capture {
	prov := types.SourceDescriptor{Kind: types.SourceFile, Location: "stdin"}
	now := time.Now().UTC()
	var out []types.Capture
	for _, d := range ds {
		for _, c := range d.Detect(data, prov) {
			if len(c.Value) == 0 {
				continue
			}
			p := c.Provenance
			if p.Kind == "" {
				p = prov
			}
			out = append(out, types.Capture{
				ID:              types.Fingerprint(c.Kind, c.Value),
				Kind:            c.Kind,
				Detector:        c.Detector,
				Confidence:      c.Confidence,
				FirstSeenAt:     now,
				Provenance:      p,
				RedactedPreview: redact.Preview(c.Kind, c.Value),
			})
		}
	}
	return out
}
