package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/redactyl/livegrab/internal/report"
	"github.com/redactyl/livegrab/internal/types"
)

var (
	tableBorderStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color("240"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("6")).
			Bold(true).
			Padding(0, 1)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("7"))

	popupStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(1, 4)

	sevHighStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	sevMedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	sevLowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// SortColumn constants
const (
	SortRisk   = "risk"
	SortKind   = "kind"
	SortSource = "source"
	SortSeen   = "seen"
)

var sortCycle = []string{SortRisk, SortKind, SortSource, SortSeen}

// CaptureFunc runs one capture and summarize pass.
type CaptureFunc func(ctx context.Context) (*types.Report, error)

// Options configures the viewer.
type Options struct {
	Baseline report.Baseline
	// BaselinePath is where `b` writes accepted fingerprints; empty disables it.
	BaselinePath string
	ExportDir    string
	NoColor      bool
	Version      string
	// Cached is the time a stored report was produced; zero for live runs.
	Cached time.Time
}

// severityText returns plain text for severity (ANSI codes break table truncation).
func severityText(s types.Severity) string {
	switch s {
	case types.SevHigh:
		return "HIGH"
	case types.SevMed:
		return "MED"
	case types.SevLow:
		return "LOW"
	default:
		return string(s)
	}
}

// Model is the state of the findings viewer.
type Model struct {
	table    table.Model
	viewport viewport.Model
	spinner  spinner.Model
	search   textinput.Model

	report   *types.Report
	findings []types.Finding
	display  []types.Finding
	opts     Options
	prefs    Prefs

	ctx       context.Context
	capture   CaptureFunc
	capturing bool
	lastErr   error
	started   time.Time
	elapsed   time.Duration

	ready      bool
	quitting   bool
	showHelp   bool
	searchMode bool
	width      int
	height     int

	searchQuery    string
	severityFilter types.Severity

	statusMessage string
	statusTimeout *time.Time
}

// NewModel builds a viewer over r, which may be nil when capture will
// produce the first report.
func NewModel(ctx context.Context, r *types.Report, capture CaptureFunc, opts Options) Model {
	columns := []table.Column{
		{Title: "Sev", Width: 9},
		{Title: "Risk", Width: 7},
		{Title: "Kind", Width: 18},
		{Title: "Source", Width: 36},
		{Title: "Preview", Width: 24},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("15")).
		Bold(true).
		Padding(0, 1).
		Align(lipgloss.Left)
	s.Selected = lipgloss.NewStyle().
		Foreground(lipgloss.Color("232")).
		Background(lipgloss.Color("208")).
		Bold(true).
		Padding(0, 1)
	s.Cell = lipgloss.NewStyle().Padding(0, 1)
	t.SetStyles(s)

	// Line spinner avoids Braille characters that render poorly on some terminals
	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	ti := textinput.New()
	ti.Placeholder = "Search kind, detector, source or fingerprint..."
	ti.CharLimit = 100
	ti.Width = 50
	ti.Prompt = "/ "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Baseline.Items == nil {
		opts.Baseline.Items = map[string]bool{}
	}
	m := Model{
		table:    t,
		viewport: viewport.New(80, 8),
		spinner:  sp,
		search:   ti,
		opts:     opts,
		prefs:    LoadPrefs(),
		ctx:      ctx,
		capture:  capture,
	}
	if r != nil {
		m.setReport(r)
	} else if capture != nil {
		m.capturing = true
		m.started = time.Now()
	}
	return m
}

func (m Model) Init() tea.Cmd {
	if m.capturing {
		return tea.Batch(m.spinner.Tick, m.runCapture())
	}
	return m.spinner.Tick
}

type reportMsg struct {
	report  *types.Report
	elapsed time.Duration
}

type captureErrMsg struct{ err error }

type statusMsg string

func (m Model) runCapture() tea.Cmd {
	capture, ctx := m.capture, m.ctx
	return func() tea.Msg {
		start := time.Now()
		r, err := capture(ctx)
		if err != nil {
			return captureErrMsg{err}
		}
		return reportMsg{report: r, elapsed: time.Since(start)}
	}
}

// Report returns the report currently shown, nil before the first capture.
func (m Model) Report() *types.Report { return m.report }

// Err returns the last capture error.
func (m Model) Err() error { return m.lastErr }

func (m *Model) setReport(r *types.Report) {
	m.report = r
	m.findings = make([]types.Finding, len(r.Findings))
	copy(m.findings, r.Findings)
	for i := range m.findings {
		if m.opts.Baseline.Items[m.findings[i].ID] {
			m.findings[i].Known = true
		}
	}
	m.applyFilters()
}

func (m *Model) applyFilters() {
	q := strings.ToLower(m.searchQuery)
	out := make([]types.Finding, 0, len(m.findings))
	for _, f := range m.findings {
		if m.prefs.HideKnown && f.Known {
			continue
		}
		if m.severityFilter != "" && f.Severity != m.severityFilter {
			continue
		}
		if q != "" && !matches(f, q) {
			continue
		}
		out = append(out, f)
	}
	sortFindings(out, m.prefs.Sort)
	m.display = out
	m.rebuildTableRows()
}

func matches(f types.Finding, q string) bool {
	for _, s := range []string{string(f.Kind), f.Detector, f.Provenance.String(), f.RedactedPreview, f.ID} {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}

// sortFindings orders in place. Risk order is the report's own order, so
// the other columns fall back to it.
func sortFindings(fs []types.Finding, col string) {
	less := func(a, b types.Finding) bool {
		if a.RiskScore != b.RiskScore {
			return a.RiskScore > b.RiskScore
		}
		return a.ID < b.ID
	}
	switch col {
	case SortKind:
		sort.SliceStable(fs, func(i, j int) bool {
			if fs[i].Kind != fs[j].Kind {
				return fs[i].Kind < fs[j].Kind
			}
			return less(fs[i], fs[j])
		})
	case SortSource:
		sort.SliceStable(fs, func(i, j int) bool {
			a, b := fs[i].Provenance.String(), fs[j].Provenance.String()
			if a != b {
				return a < b
			}
			return less(fs[i], fs[j])
		})
	case SortSeen:
		sort.SliceStable(fs, func(i, j int) bool {
			if !fs[i].FirstSeenAt.Equal(fs[j].FirstSeenAt) {
				return fs[i].FirstSeenAt.Before(fs[j].FirstSeenAt)
			}
			return less(fs[i], fs[j])
		})
	default:
		sort.SliceStable(fs, func(i, j int) bool { return less(fs[i], fs[j]) })
	}
}

func (m *Model) rebuildTableRows() {
	rows := make([]table.Row, len(m.display))
	for i, f := range m.display {
		sev := severityText(f.Severity)
		if f.Known {
			sev = "(b) " + sev
		}
		rows[i] = table.Row{
			sev,
			fmt.Sprintf("%.1f", f.RiskScore),
			string(f.Kind),
			f.Provenance.String(),
			f.RedactedPreview,
		}
	}
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
	m.updateViewportContent()
}

func (m *Model) cycleSort() {
	next := sortCycle[0]
	for i, c := range sortCycle {
		if c == m.prefs.Sort {
			next = sortCycle[(i+1)%len(sortCycle)]
		}
	}
	m.prefs.Sort = next
	m.applyFilters()
	_ = SavePrefs(m.prefs)
}

func (m Model) selected() *types.Finding {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.display) {
		return nil
	}
	f := m.display[i]
	return &f
}

func (m *Model) updateViewportContent() {
	f := m.selected()
	if f == nil {
		m.viewport.SetContent("No finding selected.")
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", keyStyle.Render("Fingerprint:"), f.ID)
	fmt.Fprintf(&sb, "%s %s via %s\n", keyStyle.Render("Kind:"), f.Kind, f.Detector)
	fmt.Fprintf(&sb, "%s %s (risk %.2f, confidence %.2f)\n", keyStyle.Render("Severity:"), f.Severity, f.RiskScore, f.Confidence)
	fmt.Fprintf(&sb, "%s %d\n", keyStyle.Render("Occurrences:"), f.OccurrenceCount)
	fmt.Fprintf(&sb, "%s %s\n", keyStyle.Render("First seen:"), f.FirstSeenAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "%s %s\n", keyStyle.Render("Source:"), f.Provenance)
	fmt.Fprintf(&sb, "%s %s\n", keyStyle.Render("Preview:"), f.RedactedPreview)
	if f.Known {
		sb.WriteString(keyStyle.Render("In baseline") + "\n")
	}
	if b, err := json.MarshalIndent(f.Provenance, "", "  "); err == nil {
		sb.WriteString("\n")
		if m.opts.NoColor {
			sb.Write(b)
		} else {
			sb.WriteString(highlightJSON(string(b)))
		}
	}
	m.viewport.SetContent(sb.String())
	m.viewport.GotoTop()
}

func highlightJSON(code string) string {
	lexer := lexers.Get("json")
	if lexer == nil {
		return code
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return code
	}
	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func (m *Model) layout() {
	detail := m.height / 3
	if detail < 6 {
		detail = 6
	}
	tableHeight := m.height - detail - 6
	if tableHeight < 3 {
		tableHeight = 3
	}
	m.table.SetHeight(tableHeight)
	m.table.SetWidth(m.width - 2)

	cols := m.table.Columns()
	fixed := 0
	for i, c := range cols {
		if i != 3 {
			fixed += c.Width + 2
		}
	}
	if src := m.width - 4 - fixed - 2; src > 12 {
		cols[3].Width = src
		m.table.SetColumns(cols)
	}
	m.viewport.Width = m.width - 2
	m.viewport.Height = detail
}

func (m *Model) setStatus(s string) {
	timeout := time.Now().Add(5 * time.Second)
	m.statusTimeout = &timeout
	m.statusMessage = s
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case spinner.TickMsg:
		if !m.capturing {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case reportMsg:
		m.capturing = false
		m.lastErr = nil
		m.elapsed = msg.elapsed
		m.opts.Cached = time.Time{}
		m.setReport(msg.report)
		m.setStatus(fmt.Sprintf("Captured %d unique secrets in %s", msg.report.TotalUnique, msg.elapsed.Round(time.Millisecond)))
		return m, nil

	case captureErrMsg:
		m.capturing = false
		m.lastErr = msg.err
		m.setStatus(fmt.Sprintf("Capture error: %v", msg.err))
		return m, nil

	case statusMsg:
		m.setStatus(string(msg))
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if msg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.searchMode {
		switch msg.String() {
		case "enter":
			m.searchMode = false
			m.search.Blur()
		case "esc":
			m.searchMode = false
			m.search.Blur()
			m.search.SetValue("")
			m.searchQuery = ""
			m.applyFilters()
		default:
			m.search, cmd = m.search.Update(msg)
			m.searchQuery = m.search.Value()
			m.applyFilters()
			return m, cmd
		}
		return m, nil
	}
	if m.capturing {
		if msg.String() == "q" {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "esc":
		m.quitting = true
		return m, tea.Quit
	case "?":
		m.showHelp = true
	case "/":
		m.searchMode = true
		cmd = m.search.Focus()
		return m, cmd
	case "1":
		m.severityFilter = types.SevHigh
		m.applyFilters()
	case "2":
		m.severityFilter = types.SevMed
		m.applyFilters()
	case "3":
		m.severityFilter = types.SevLow
		m.applyFilters()
	case "0":
		m.severityFilter = ""
		m.searchQuery = ""
		m.search.SetValue("")
		m.applyFilters()
	case "s":
		m.cycleSort()
	case "H":
		m.prefs.HideKnown = !m.prefs.HideKnown
		m.applyFilters()
		_ = SavePrefs(m.prefs)
	case "c":
		return m, m.copyFingerprint()
	case "y":
		return m, m.copyDetails()
	case "b":
		return m, m.addToBaseline()
	case "e":
		return m, m.export(report.FormatJSON)
	case "x":
		return m, m.export(report.FormatSARIF)
	case "r":
		if m.capture == nil {
			m.setStatus("Recapture not available for stored reports")
			return m, nil
		}
		m.capturing = true
		m.started = time.Now()
		return m, tea.Batch(m.spinner.Tick, m.runCapture())
	default:
		m.table, cmd = m.table.Update(msg)
		m.updateViewportContent()
		return m, cmd
	}
	return m, nil
}

func (m Model) statusLine() string {
	if m.statusTimeout != nil && time.Now().Before(*m.statusTimeout) {
		return m.statusMessage
	}
	if len(m.findings) == 0 {
		return "q: quit | r: recapture | ?: help"
	}
	return "q: quit | ?: help | j/k: navigate | /: search | c: copy fingerprint | b: baseline | r: recapture"
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Initializing..."
	}

	if m.capturing {
		msgContent := fmt.Sprintf("%s  Capturing live sources...\n\n%s elapsed", m.spinner.View(), time.Since(m.started).Round(time.Second))
		popupBox := popupStyle.Width(55).Align(lipgloss.Center).Render(msgContent)
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, popupBox)
	}

	if m.showHelp {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, popupStyle.Render(helpText))
	}

	var highCount, medCount, lowCount, known int
	for _, f := range m.display {
		switch f.Severity {
		case types.SevHigh:
			highCount++
		case types.SevMed:
			medCount++
		case types.SevLow:
			lowCount++
		}
		if f.Known {
			known++
		}
	}

	var stats string
	switch {
	case m.lastErr != nil && m.report == nil:
		stats = sevHighStyle.Render("Capture failed: " + m.lastErr.Error())
	case len(m.findings) == 0:
		stats = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("[OK] No secrets captured")
	default:
		stats = fmt.Sprintf("Showing: %d/%d  |  %s %-4d  |  %s %-4d  |  %s %-4d  |  baseline %d  |  sort: %s",
			len(m.display), len(m.findings),
			sevHighStyle.Render("High:"), highCount,
			sevMedStyle.Render("Med:"), medCount,
			sevLowStyle.Render("Low:"), lowCount,
			known, sortName(m.prefs.Sort))
	}
	if m.report != nil && m.report.Incomplete {
		stats += "  " + sevMedStyle.Render("[INCOMPLETE]")
	}
	if !m.opts.Cached.IsZero() {
		stats += fmt.Sprintf("  [stored %s]", m.opts.Cached.Format("Jan 2, 15:04"))
	}

	header := lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 2).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("237")).
		Render(stats)

	title := titleStyle.Render("livegrab " + m.opts.Version)
	body := tableBorderStyle.Width(m.width - 2).Render(m.table.View())
	detail := tableBorderStyle.Width(m.width - 2).Render(m.viewport.View())

	var bottom string
	if m.searchMode {
		bottom = m.search.View()
	} else {
		bottom = statusStyle.Width(m.width).Render(m.statusLine())
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, header, body, detail, bottom)
}

func sortName(s string) string {
	if s == "" {
		return SortRisk
	}
	return s
}

const helpText = `Keys

j/k, up/down   move
/              search
1 2 3          only high / medium / low
0              clear filters
s              cycle sort (risk, kind, source, seen)
H              hide or show baselined findings
c              copy fingerprint
y              copy finding details (no secret value)
b              add finding to baseline
e / x          export JSON / SARIF
r              capture again
q              quit`
