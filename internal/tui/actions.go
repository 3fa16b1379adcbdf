package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/redactyl/livegrab/internal/report"
	"github.com/redactyl/livegrab/internal/types"
)

func (m Model) copyFingerprint() tea.Cmd {
	f := m.selected()
	if f == nil {
		return func() tea.Msg { return statusMsg("No finding selected") }
	}
	id := f.ID
	return func() tea.Msg {
		if err := clipboard.WriteAll(id); err != nil {
			return statusMsg(fmt.Sprintf("Clipboard error: %v", err))
		}
		return statusMsg("Copied fingerprint " + shortID(id))
	}
}

// copyDetails copies a text description of the finding. The raw value is
// never part of it.
func (m Model) copyDetails() tea.Cmd {
	f := m.selected()
	if f == nil {
		return func() tea.Msg { return statusMsg("No finding selected") }
	}
	text := describe(*f)
	return func() tea.Msg {
		if err := clipboard.WriteAll(text); err != nil {
			return statusMsg(fmt.Sprintf("Clipboard error: %v", err))
		}
		return statusMsg("Copied finding details to clipboard")
	}
}

func describe(f types.Finding) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Fingerprint: %s\n", f.ID)
	fmt.Fprintf(&sb, "Kind: %s\n", f.Kind)
	fmt.Fprintf(&sb, "Detector: %s\n", f.Detector)
	fmt.Fprintf(&sb, "Severity: %s (risk %.2f)\n", f.Severity, f.RiskScore)
	fmt.Fprintf(&sb, "Occurrences: %d\n", f.OccurrenceCount)
	fmt.Fprintf(&sb, "Source: %s\n", f.Provenance)
	fmt.Fprintf(&sb, "Preview: %s\n", f.RedactedPreview)
	return sb.String()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// addToBaseline accepts the selected fingerprint and rewrites the baseline
// file.
func (m *Model) addToBaseline() tea.Cmd {
	f := m.selected()
	if f == nil {
		return nil
	}
	if m.opts.BaselinePath == "" {
		return func() tea.Msg { return statusMsg("No baseline file configured (--baseline)") }
	}
	m.opts.Baseline.Items[f.ID] = true
	if err := m.opts.Baseline.Save(m.opts.BaselinePath); err != nil {
		return func() tea.Msg { return statusMsg(fmt.Sprintf("Error writing baseline: %v", err)) }
	}
	for i := range m.findings {
		if m.findings[i].ID == f.ID {
			m.findings[i].Known = true
		}
	}
	m.applyFilters()
	return func() tea.Msg { return statusMsg("Added " + shortID(f.ID) + " to baseline") }
}

// export writes the findings currently shown to a timestamped file.
func (m Model) export(format report.Format) tea.Cmd {
	if len(m.display) == 0 {
		return func() tea.Msg { return statusMsg("No findings to export") }
	}
	r := m.viewReport()
	dir := m.opts.ExportDir
	if dir == "" {
		dir = "."
	}
	ext := "json"
	if format == report.FormatSARIF {
		ext = "sarif"
	}
	name := filepath.Join(dir, fmt.Sprintf("livegrab-export-%s.%s", time.Now().Format("20060102-150405"), ext))
	version := m.opts.Version
	return func() tea.Msg {
		fh, err := os.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
		if err != nil {
			return statusMsg(fmt.Sprintf("Write error: %v", err))
		}
		if format == report.FormatSARIF {
			err = report.WriteSARIF(fh, r, version)
		} else {
			err = report.WriteJSON(fh, r, false)
		}
		if cerr := fh.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return statusMsg(fmt.Sprintf("Export error: %v", err))
		}
		abs, _ := filepath.Abs(name)
		return statusMsg(fmt.Sprintf("Exported %d findings to %s", len(r.Findings), abs))
	}
}

// viewReport is the current report narrowed to the displayed findings.
func (m Model) viewReport() *types.Report {
	out := &types.Report{ByKind: map[types.SecretKind]int{}}
	if m.report != nil {
		out.RunID = m.report.RunID
		out.GeneratedAt = m.report.GeneratedAt
		out.Incomplete = m.report.Incomplete
		out.SourceErrors = m.report.SourceErrors
	}
	out.Findings = append(out.Findings, m.display...)
	for _, f := range m.display {
		out.ByKind[f.Kind]++
		out.TotalOccurrences += f.OccurrenceCount
	}
	out.TotalUnique = len(out.Findings)
	return out
}
