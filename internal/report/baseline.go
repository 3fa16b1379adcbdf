package report

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/redactyl/livegrab/internal/types"
)

// Baseline is a set of accepted fingerprints. Findings in it are reported
// as known and never fail a run.
type Baseline struct {
	Items map[string]bool `json:"items"`
}

// LoadBaseline reads path. A missing file is an empty baseline.
func LoadBaseline(path string) (Baseline, error) {
	b := Baseline{Items: map[string]bool{}}
	f, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return b, nil
	}
	if err != nil {
		return b, err
	}
	if err := json.Unmarshal(f, &b); err != nil {
		return Baseline{Items: map[string]bool{}}, err
	}
	if b.Items == nil {
		b.Items = map[string]bool{}
	}
	return b, nil
}

// SaveBaseline writes every finding of r as accepted.
func SaveBaseline(path string, r *types.Report) error {
	b := Baseline{Items: map[string]bool{}}
	for _, f := range r.Findings {
		b.Items[f.ID] = true
	}
	return b.Save(path)
}

// Save writes b to path, creating parent directories.
func (b Baseline) Save(path string) error {
	buf, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf, 0o644)
}

// MarkKnown flags findings present in the baseline.
func MarkKnown(r *types.Report, base Baseline) {
	for i := range r.Findings {
		if base.Items[r.Findings[i].ID] {
			r.Findings[i].Known = true
		}
	}
}

// FilterNewFindings drops findings present in the baseline.
func FilterNewFindings(findings []types.Finding, base Baseline) []types.Finding {
	var out []types.Finding
	for _, f := range findings {
		if !base.Items[f.ID] && !f.Known {
			out = append(out, f)
		}
	}
	return out
}

// ShouldFail reports whether a new finding reaches failOn (low, medium or
// high; anything else means medium). "none" never fails.
func ShouldFail(findings []types.Finding, failOn string) bool {
	if failOn == "none" || failOn == "off" {
		return false
	}
	th := types.Severity(failOn).Rank()
	if th == 0 {
		th = types.SevMed.Rank()
	}
	for _, f := range findings {
		if f.Known {
			continue
		}
		if f.Severity.Rank() >= th {
			return true
		}
	}
	return false
}
