package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Severity is a coarse-grained risk level for a finding.
type Severity string

const (
	SevLow  Severity = "low"
	SevMed  Severity = "medium"
	SevHigh Severity = "high"
)

// Rank orders severities so callers can compare them; unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SevLow:
		return 1
	case SevMed:
		return 2
	case SevHigh:
		return 3
	}
	return 0
}

// SecretKind classifies what a captured value appears to be.
type SecretKind string

const (
	KindAPIKey           SecretKind = "api_key"
	KindToken            SecretKind = "token"
	KindPrivateKey       SecretKind = "private_key"
	KindPassword         SecretKind = "password"
	KindConnectionString SecretKind = "connection_string"
	KindUnknown          SecretKind = "unknown"
)

var allKinds = []SecretKind{KindAPIKey, KindToken, KindPrivateKey, KindPassword, KindConnectionString, KindUnknown}

// Kinds returns every SecretKind in a stable order.
func Kinds() []SecretKind {
	out := make([]SecretKind, len(allKinds))
	copy(out, allKinds)
	return out
}

// ParseKind maps a string to a SecretKind. Unrecognised input yields KindUnknown and false.
func ParseKind(s string) (SecretKind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range allKinds {
		if string(k) == s {
			return k, true
		}
	}
	return KindUnknown, false
}

// SourceKind names the family of live source a chunk was read from.
type SourceKind string

const (
	SourceEnv        SourceKind = "env"
	SourceProcess    SourceKind = "process"
	SourceFile       SourceKind = "file"
	SourceHTTP       SourceKind = "http"
	SourceKubernetes SourceKind = "kubernetes"
	SourceImage      SourceKind = "image"
	SourceGit        SourceKind = "git"
)

// SourceDescriptor says where a value was observed. It is provenance only and
// never participates in a capture's identity.
type SourceDescriptor struct {
	Kind     SourceKind        `json:"kind"`
	Location string            `json:"location"`
	Section  string            `json:"section,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (d SourceDescriptor) String() string {
	if d.Section == "" {
		return fmt.Sprintf("%s:%s", d.Kind, d.Location)
	}
	return fmt.Sprintf("%s:%s#%s", d.Kind, d.Location, d.Section)
}

// WithSection returns a copy of d narrowed to a section (env key, data key, ...).
func (d SourceDescriptor) WithSection(section string) SourceDescriptor {
	out := d
	out.Section = section
	if len(d.Metadata) > 0 {
		out.Metadata = make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Candidate is a raw detector hit inside one chunk. Start and End are byte
// offsets into that chunk.
type Candidate struct {
	Kind       SecretKind
	Detector   string
	Value      []byte
	Start      int
	End        int
	Confidence float64
	Provenance SourceDescriptor
}

// Capture is a candidate accepted into a run. Value never leaves the process
// in serialized form; RedactedPreview is the displayable stand-in.
type Capture struct {
	ID              string           `json:"id"`
	Kind            SecretKind       `json:"kind"`
	Detector        string           `json:"detector"`
	Value           []byte           `json:"-"`
	Confidence      float64          `json:"confidence"`
	FirstSeenAt     time.Time        `json:"first_seen_at"`
	Provenance      SourceDescriptor `json:"provenance"`
	RedactedPreview string           `json:"redacted_preview"`
	Occurrences     int              `json:"occurrences,omitempty"`
}

// Finding is one deduplicated secret in a Report.
type Finding struct {
	Capture
	OccurrenceCount int      `json:"occurrence_count"`
	RiskScore       float64  `json:"risk_score"`
	Severity        Severity `json:"severity"`
	Known           bool     `json:"known,omitempty"`
}

// Report is the summarised outcome of a capture run.
type Report struct {
	RunID            string             `json:"run_id,omitempty"`
	TotalUnique      int                `json:"total_unique"`
	TotalOccurrences int                `json:"total_occurrences"`
	ByKind           map[SecretKind]int `json:"by_kind"`
	Findings         []Finding          `json:"findings"`
	GeneratedAt      time.Time          `json:"generated_at"`
	Incomplete       bool               `json:"incomplete,omitempty"`
	SourceErrors     []string           `json:"source_errors,omitempty"`
}

// KindsPresent returns the kinds with a non-zero count, in Kinds() order.
func (r *Report) KindsPresent() []SecretKind {
	var out []SecretKind
	for _, k := range allKinds {
		if r.ByKind[k] > 0 {
			out = append(out, k)
		}
	}
	// kinds outside the known set still show up, sorted after the known ones
	var extra []string
	for k, n := range r.ByKind {
		if n > 0 && !isKnownKind(k) {
			extra = append(extra, string(k))
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		out = append(out, SecretKind(k))
	}
	return out
}

func isKnownKind(k SecretKind) bool {
	for _, kk := range allKinds {
		if kk == k {
			return true
		}
	}
	return false
}
