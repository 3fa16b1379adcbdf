package livegrab

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/redactyl/livegrab/internal/detectors"
	"github.com/redactyl/livegrab/internal/types"
)

const (
	docsBegin = "<!-- BEGIN:DETECTORS -->"
	docsEnd   = "<!-- END:DETECTORS -->"
)

var gendocsFile string

// gendocs regenerates the detectors section of a markdown file between the
// markers <!-- BEGIN:DETECTORS --> and <!-- END:DETECTORS -->.
func init() {
	cmd := &cobra.Command{
		Use:   "gendocs",
		Short: "Regenerate the detectors section of README.md",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := os.ReadFile(gendocsFile)
			if err != nil {
				return err
			}
			nb, err := spliceDetectorDocs(b)
			if err != nil {
				return fmt.Errorf("%s: %w", gendocsFile, err)
			}
			if err := os.WriteFile(gendocsFile, nb, 0o644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Updated", gendocsFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&gendocsFile, "file", "README.md", "markdown file holding the markers")
	rootCmd.AddCommand(cmd)
}

func spliceDetectorDocs(b []byte) ([]byte, error) {
	start, end := []byte(docsBegin), []byte(docsEnd)
	i := bytes.Index(b, start)
	j := bytes.Index(b, end)
	if i < 0 || j < 0 || j <= i {
		return nil, fmt.Errorf("markers not found")
	}
	var nb bytes.Buffer
	nb.Write(b[:i])
	nb.Write(start)
	nb.WriteString("\n")
	writeDetectorDocs(&nb)
	nb.Write(end)
	nb.Write(b[j+len(end):])
	return nb.Bytes(), nil
}

func writeDetectorDocs(w io.Writer) {
	fmt.Fprintln(w, "\nDetectors (run `livegrab detectors` for every accepted ID):")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "- `prefix`: well-known vendor token prefixes")
	fmt.Fprintln(w, "- `pattern`: the rule table below")
	fmt.Fprintln(w, "- `sensitive_key`: values assigned to secret-looking keys")
	fmt.Fprintln(w, "- `entropy_context`: high-entropy strings near a secret keyword")
	fmt.Fprintln(w, "- `gitleaks`: the gitleaks rule set (opt-in with `--gitleaks`)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Pattern rules by kind:")
	fmt.Fprintln(w)
	byKind := map[types.SecretKind][]string{}
	for _, r := range detectors.Rules() {
		byKind[r.Kind] = append(byKind[r.Kind], r.ID)
	}
	for _, k := range types.Kinds() {
		ids := byKind[k]
		if len(ids) == 0 {
			continue
		}
		sort.Strings(ids)
		fmt.Fprintf(w, "- %s: %s\n", k, strings.Join(ids, ", "))
	}
	fmt.Fprintln(w)
}
