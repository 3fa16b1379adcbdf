package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redactyl/livegrab/internal/report"
	"github.com/redactyl/livegrab/internal/types"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func finding(id string, kind types.SecretKind, sev types.Severity, risk float64, loc string) types.Finding {
	return types.Finding{
		Capture: types.Capture{
			ID:              id,
			Kind:            kind,
			Detector:        string(kind) + "_detector",
			Provenance:      types.SourceDescriptor{Kind: types.SourceFile, Location: loc},
			RedactedPreview: "abcd****",
			FirstSeenAt:     time.Unix(int64(len(loc)), 0),
		},
		OccurrenceCount: 1,
		RiskScore:       risk,
		Severity:        sev,
	}
}

func sampleReport() *types.Report {
	return &types.Report{
		RunID:       "run",
		TotalUnique: 3,
		Findings: []types.Finding{
			finding("fp-key", types.KindPrivateKey, types.SevHigh, 90, "/srv/id_rsa"),
			finding("fp-pw", types.KindPassword, types.SevMed, 50, "/etc/app/db.env"),
			finding("fp-tok", types.KindToken, types.SevLow, 20, "/tmp/t"),
		},
	}
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model)
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestApplyFilters_SearchQuery(t *testing.T) {
	isolate(t)
	m := NewModel(context.Background(), sampleReport(), nil, Options{})

	m.searchQuery = "db.env"
	m.applyFilters()
	require.Len(t, m.display, 1)
	assert.Equal(t, "fp-pw", m.display[0].ID)

	m.searchQuery = "PRIVATE_KEY"
	m.applyFilters()
	require.Len(t, m.display, 1, "search is case insensitive")

	m.searchQuery = "fp-"
	m.applyFilters()
	assert.Len(t, m.display, 3)
}

func TestApplyFilters_SeverityFilter(t *testing.T) {
	isolate(t)
	m := sized(NewModel(context.Background(), sampleReport(), nil, Options{}))
	m = press(t, m, "1")
	require.Len(t, m.display, 1)
	assert.Equal(t, types.SevHigh, m.display[0].Severity)

	m = press(t, m, "3")
	require.Len(t, m.display, 1)
	assert.Equal(t, types.SevLow, m.display[0].Severity)

	m = press(t, m, "0")
	assert.Len(t, m.display, 3)
}

func TestSearchMode_TypingFilters(t *testing.T) {
	isolate(t)
	m := sized(NewModel(context.Background(), sampleReport(), nil, Options{}))
	m = press(t, m, "/", "t", "m", "p")
	assert.True(t, m.searchMode)
	require.Len(t, m.display, 1)
	assert.Equal(t, "fp-tok", m.display[0].ID)

	m = press(t, m, "esc")
	assert.False(t, m.searchMode)
	assert.Len(t, m.display, 3)
}

func TestCycleSort(t *testing.T) {
	isolate(t)
	m := sized(NewModel(context.Background(), sampleReport(), nil, Options{}))
	assert.Equal(t, "fp-key", m.display[0].ID)

	m = press(t, m, "s")
	assert.Equal(t, SortKind, m.prefs.Sort)
	assert.Equal(t, types.KindPassword, m.display[0].Kind)

	m = press(t, m, "s")
	assert.Equal(t, SortSource, m.prefs.Sort)
	assert.Equal(t, "/etc/app/db.env", m.display[0].Provenance.Location)

	assert.Equal(t, SortSource, LoadPrefs().Sort, "sort order persists")
}

func TestBaselineMarksKnown(t *testing.T) {
	isolate(t)
	base := report.Baseline{Items: map[string]bool{"fp-pw": true}}
	m := sized(NewModel(context.Background(), sampleReport(), nil, Options{Baseline: base}))
	known := 0
	for _, f := range m.display {
		if f.Known {
			known++
			assert.Equal(t, "fp-pw", f.ID)
		}
	}
	assert.Equal(t, 1, known)
	assert.Contains(t, m.View(), "(b) MED")

	m = press(t, m, "H")
	assert.Len(t, m.display, 2)
}

func TestAddToBaseline_WritesFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "baseline.json")
	m := sized(NewModel(context.Background(), sampleReport(), nil, Options{BaselinePath: path}))
	m = press(t, m, "b")

	base, err := report.LoadBaseline(path)
	require.NoError(t, err)
	assert.True(t, base.Items["fp-key"])
	assert.True(t, m.findings[0].Known)
}

func TestAddToBaseline_NoPath(t *testing.T) {
	isolate(t)
	m := sized(NewModel(context.Background(), sampleReport(), nil, Options{}))
	cmd := m.addToBaseline()
	require.NotNil(t, cmd)
	assert.Contains(t, string(cmd().(statusMsg)), "No baseline file")
}

func TestExport_JSON(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	m := sized(NewModel(context.Background(), sampleReport(), nil, Options{ExportDir: dir}))
	m = press(t, m, "1")
	msg := m.export(report.FormatJSON)()
	assert.Contains(t, string(msg.(statusMsg)), "Exported 1 findings")

	matches, err := filepath.Glob(filepath.Join(dir, "livegrab-export-*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	fh, err := os.Open(matches[0])
	require.NoError(t, err)
	defer fh.Close()
	r, err := report.ReadJSON(fh)
	require.NoError(t, err)
	require.Len(t, r.Findings, 1)
	assert.Equal(t, "fp-key", r.Findings[0].ID)
}

func TestCaptureFlow(t *testing.T) {
	isolate(t)
	calls := 0
	capture := func(ctx context.Context) (*types.Report, error) {
		calls++
		return sampleReport(), nil
	}
	m := sized(NewModel(context.Background(), nil, capture, Options{}))
	assert.True(t, m.capturing)
	assert.Contains(t, m.View(), "Capturing live sources")
	require.NotNil(t, m.Init())

	// run the capture command directly
	msg := m.runCapture()()
	next, _ := m.Update(msg)
	m = next.(Model)
	assert.False(t, m.capturing)
	assert.Equal(t, 1, calls)
	assert.Len(t, m.display, 3)
	assert.Contains(t, m.statusLine(), "Captured 3 unique secrets")

	m = press(t, m, "r")
	assert.True(t, m.capturing)
}

func TestCaptureError(t *testing.T) {
	isolate(t)
	boom := errors.New("no sources available")
	m := sized(NewModel(context.Background(), nil, func(context.Context) (*types.Report, error) { return nil, boom }, Options{}))
	next, _ := m.Update(m.runCapture()())
	m = next.(Model)
	assert.ErrorIs(t, m.Err(), boom)
	assert.Nil(t, m.Report())
	assert.Contains(t, m.View(), "Capture failed")
}

func TestStoredReport_NoRecapture(t *testing.T) {
	isolate(t)
	m := sized(NewModel(context.Background(), sampleReport(), nil, Options{Cached: time.Now()}))
	m = press(t, m, "r")
	assert.False(t, m.capturing)
	assert.Contains(t, m.statusLine(), "not available")
	assert.Contains(t, m.View(), "[stored")
}

func TestView_Rendering(t *testing.T) {
	isolate(t)
	m := NewModel(context.Background(), sampleReport(), nil, Options{NoColor: true, Version: "1.0.0"})
	assert.Equal(t, "Initializing...", m.View())

	m = sized(m)
	out := m.View()
	assert.Contains(t, out, "livegrab 1.0.0")
	assert.Contains(t, out, "HIGH")
	assert.Contains(t, out, "fp-key", "detail pane shows the selected fingerprint")

	m = press(t, m, "down")
	assert.Contains(t, m.View(), "fp-pw")

	m = press(t, m, "?")
	assert.Contains(t, m.View(), "copy fingerprint")
	m = press(t, m, "x")
	assert.False(t, m.showHelp)

	empty := sized(NewModel(context.Background(), &types.Report{}, nil, Options{}))
	assert.Contains(t, empty.View(), "No secrets captured")
}

func TestDescribe_NoValue(t *testing.T) {
	f := finding("fp", types.KindPassword, types.SevMed, 40, "/x")
	f.Value = []byte("topsecretpassword")
	d := describe(f)
	assert.False(t, strings.Contains(d, "topsecretpassword"))
	assert.Contains(t, d, "Fingerprint: fp")
}
