// Package summary folds captures into a deduplicated, risk-ranked report.
package summary

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/redactyl/livegrab/internal/types"
)

// ErrEmptyInput is returned in strict mode when there is nothing to report.
var ErrEmptyInput = errors.New("no captures to summarize")

// Weights tune the risk score. Risk is
// Kind[kind] * (Confidence*confidence + Occurrence*log2(1+count)).
type Weights struct {
	Confidence float64                      `yaml:"confidence" json:"confidence"`
	Occurrence float64                      `yaml:"occurrence" json:"occurrence"`
	Kind       map[types.SecretKind]float64 `yaml:"kind" json:"kind"`
}

// DefaultWeights ranks private keys above connection strings, passwords,
// API keys, tokens and unknown values.
func DefaultWeights() Weights {
	return Weights{
		Confidence: 70,
		Occurrence: 10,
		Kind: map[types.SecretKind]float64{
			types.KindPrivateKey:       1.0,
			types.KindConnectionString: 0.9,
			types.KindPassword:         0.8,
			types.KindAPIKey:           0.75,
			types.KindToken:            0.7,
			types.KindUnknown:          0.4,
		},
	}
}

// kindWeight falls back to the unknown weight, then to the default table.
func (w Weights) kindWeight(k types.SecretKind) float64 {
	if v, ok := w.Kind[k]; ok {
		return v
	}
	if v, ok := w.Kind[types.KindUnknown]; ok {
		return v
	}
	return DefaultWeights().Kind[k]
}

// Score returns the risk of one finding.
func (w Weights) Score(kind types.SecretKind, confidence float64, count int) float64 {
	if count < 1 {
		count = 1
	}
	risk := w.kindWeight(kind) * (w.Confidence*confidence + w.Occurrence*math.Log2(1+float64(count)))
	return math.Round(risk*1e4) / 1e4
}

// Thresholds map a risk score to a severity.
type Thresholds struct {
	High   float64 `yaml:"high" json:"high"`
	Medium float64 `yaml:"medium" json:"medium"`
}

func DefaultThresholds() Thresholds { return Thresholds{High: 60, Medium: 35} }

func (t Thresholds) Severity(risk float64) types.Severity {
	switch {
	case risk >= t.High:
		return types.SevHigh
	case risk >= t.Medium:
		return types.SevMed
	default:
		return types.SevLow
	}
}

// Summarizer builds reports from capture sets.
type Summarizer struct {
	Weights    Weights
	Thresholds Thresholds
	// Strict turns an empty capture set into ErrEmptyInput.
	Strict bool
	// Known fingerprints (a baseline) are flagged on their findings.
	Known map[string]bool
	Now   func() time.Time
}

// New returns a Summarizer with the default weights and thresholds.
func New() *Summarizer {
	return &Summarizer{Weights: DefaultWeights(), Thresholds: DefaultThresholds()}
}

type group struct {
	rep   types.Capture
	count int
}

// Summarize deduplicates captures by fingerprint and ranks the result. The
// output depends only on the set of captures, not their order, apart from
// GeneratedAt.
func (s *Summarizer) Summarize(captures []types.Capture) (*types.Report, error) {
	if len(captures) == 0 && s.Strict {
		return nil, ErrEmptyInput
	}
	groups := make(map[string]*group, len(captures))
	for _, c := range captures {
		id := c.ID
		if id == "" {
			id = types.Fingerprint(c.Kind, c.Value)
		}
		n := c.Occurrences
		if n < 1 {
			n = 1
		}
		g, ok := groups[id]
		if !ok {
			rep := c
			rep.ID = id
			groups[id] = &group{rep: rep, count: n}
			continue
		}
		g.count += n
		if earlier(c, g.rep) {
			c.ID = id
			g.rep = c
		}
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	rep := &types.Report{
		ByKind:      map[types.SecretKind]int{},
		Findings:    make([]types.Finding, 0, len(groups)),
		GeneratedAt: now().UTC(),
	}
	for id, g := range groups {
		c := g.rep
		c.Occurrences = g.count
		risk := s.Weights.Score(c.Kind, c.Confidence, g.count)
		rep.Findings = append(rep.Findings, types.Finding{
			Capture:         c,
			OccurrenceCount: g.count,
			RiskScore:       risk,
			Severity:        s.Thresholds.Severity(risk),
			Known:           s.Known[id],
		})
		rep.ByKind[c.Kind]++
		rep.TotalOccurrences += g.count
	}
	sort.Slice(rep.Findings, func(i, j int) bool {
		a, b := rep.Findings[i], rep.Findings[j]
		if a.RiskScore != b.RiskScore {
			return a.RiskScore > b.RiskScore
		}
		return a.ID < b.ID
	})
	rep.TotalUnique = len(rep.Findings)
	return rep, nil
}

// earlier picks the representative of a fingerprint independent of input
// order.
func earlier(a, b types.Capture) bool {
	if !a.FirstSeenAt.Equal(b.FirstSeenAt) {
		return a.FirstSeenAt.Before(b.FirstSeenAt)
	}
	if pa, pb := a.Provenance.String(), b.Provenance.String(); pa != pb {
		return pa < pb
	}
	if a.Detector != b.Detector {
		return a.Detector < b.Detector
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return string(a.Value) < string(b.Value)
}

// Resummarize re-feeds a report's findings as single-occurrence captures.
func Resummarize(s *Summarizer, r *types.Report) (*types.Report, error) {
	caps := make([]types.Capture, 0, len(r.Findings))
	for _, f := range r.Findings {
		c := f.Capture
		c.Occurrences = 1
		caps = append(caps, c)
	}
	return s.Summarize(caps)
}
