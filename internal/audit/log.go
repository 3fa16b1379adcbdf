package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/redactyl/livegrab/internal/config"
	"github.com/redactyl/livegrab/internal/types"
)

// RunRecord is one line of the audit log. It never carries secret values,
// only fingerprints and redacted previews.
type RunRecord struct {
	Timestamp        time.Time        `json:"timestamp"`
	RunID            string           `json:"run_id"`
	Sources          []string         `json:"sources,omitempty"`
	TotalUnique      int              `json:"total_unique"`
	TotalOccurrences int              `json:"total_occurrences"`
	NewFindings      int              `json:"new_findings"`
	BaselinedCount   int              `json:"baselined_count"`
	SeverityCounts   map[string]int   `json:"severity_counts"`
	ByKind           map[string]int   `json:"by_kind,omitempty"`
	Incomplete       bool             `json:"incomplete,omitempty"`
	SourceErrors     int              `json:"source_errors,omitempty"`
	Duration         string           `json:"duration"`
	BaselineFile     string           `json:"baseline_file,omitempty"`
	TopFindings      []FindingSummary `json:"top_findings,omitempty"`
}

type FindingSummary struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Detector string `json:"detector"`
	Severity string `json:"severity"`
	Source   string `json:"source"`
	Preview  string `json:"preview"`
}

type AuditLog struct {
	logPath string
}

// DefaultPath is history.jsonl in the global config directory.
func DefaultPath() (string, error) {
	dir, err := config.GlobalDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.jsonl"), nil
}

func NewAuditLog(path string) *AuditLog {
	return &AuditLog{logPath: path}
}

func (a *AuditLog) Path() string { return a.logPath }

// LoadHistory returns the records newest first. Reading stops at the first
// malformed line.
func (a *AuditLog) LoadHistory() ([]RunRecord, error) {
	f, err := os.Open(a.logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var records []RunRecord
	decoder := json.NewDecoder(f)
	for decoder.More() {
		var record RunRecord
		if err := decoder.Decode(&record); err != nil {
			break
		}
		records = append(records, record)
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

func (a *AuditLog) LogRun(record RunRecord) error {
	if record.RunID == "" {
		record.RunID = uuid.NewString()
	}
	if err := os.MkdirAll(filepath.Dir(a.logPath), 0o700); err != nil {
		return fmt.Errorf("failed to create audit dir: %w", err)
	}
	// owner-only: records name the locations secrets were found in
	f, err := os.OpenFile(a.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(record); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// DeleteRecord removes the record at index, counted newest first as
// LoadHistory returns them.
func (a *AuditLog) DeleteRecord(index int) error {
	records, err := a.LoadHistory()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(records) {
		return fmt.Errorf("invalid index: %d", index)
	}
	records = append(records[:index], records[index+1:]...)

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	f, err := os.OpenFile(a.logPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to rewrite audit log: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			return fmt.Errorf("failed to write audit record: %w", err)
		}
	}
	return nil
}

// CreateRunRecord condenses a report. newFindings are the findings not
// covered by the baseline; the ten riskiest are kept as a summary.
func CreateRunRecord(r *types.Report, newFindings []types.Finding, sources []string, duration time.Duration, baselineFile string) RunRecord {
	severityCounts := make(map[string]int)
	for _, f := range r.Findings {
		severityCounts[string(f.Severity)]++
	}
	byKind := make(map[string]int, len(r.ByKind))
	for k, n := range r.ByKind {
		byKind[string(k)] = n
	}

	topFindings := make([]FindingSummary, 0, 10)
	for i, f := range newFindings {
		if i >= 10 {
			break
		}
		topFindings = append(topFindings, FindingSummary{
			ID:       f.ID,
			Kind:     string(f.Kind),
			Detector: f.Detector,
			Severity: string(f.Severity),
			Source:   f.Provenance.String(),
			Preview:  f.RedactedPreview,
		})
	}

	return RunRecord{
		Timestamp:        time.Now(),
		RunID:            r.RunID,
		Sources:          sources,
		TotalUnique:      r.TotalUnique,
		TotalOccurrences: r.TotalOccurrences,
		NewFindings:      len(newFindings),
		BaselinedCount:   len(r.Findings) - len(newFindings),
		SeverityCounts:   severityCounts,
		ByKind:           byKind,
		Incomplete:       r.Incomplete,
		SourceErrors:     len(r.SourceErrors),
		Duration:         duration.String(),
		BaselineFile:     baselineFile,
		TopFindings:      topFindings,
	}
}
