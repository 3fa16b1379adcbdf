package detectors

import (
	"bytes"

	"github.com/redactyl/livegrab/internal/types"
)

// contextWindow bounds how far around a hit a rule's Context is searched.
const contextWindow = 256

// Pattern applies a table of regular-expression rules. Go's RE2 engine keeps
// every rule linear in the chunk size.
type Pattern struct {
	rules        []Rule
	noValidators bool
}

// NewPattern returns a pattern detector over the built-in rule table.
func NewPattern(cfg Config) *Pattern {
	return &Pattern{rules: rules, noValidators: cfg.NoValidators}
}

// NewPatternRules returns a pattern detector over a caller-supplied table.
func NewPatternRules(rs []Rule, cfg Config) *Pattern {
	return &Pattern{rules: rs, noValidators: cfg.NoValidators}
}

func (p *Pattern) ID() string { return "pattern" }

func (p *Pattern) Kinds() []types.SecretKind {
	seen := map[types.SecretKind]bool{}
	var out []types.SecretKind
	for _, r := range p.rules {
		if !seen[r.Kind] {
			seen[r.Kind] = true
			out = append(out, r.Kind)
		}
	}
	return out
}

// RuleIDs lists the IDs of the rules this detector applies, in order.
func (p *Pattern) RuleIDs() []string {
	out := make([]string, 0, len(p.rules))
	for _, r := range p.rules {
		out = append(out, r.ID)
	}
	return out
}

// Filter returns a detector restricted to rules accepted by keep, or nil when
// no rule survives.
func (p *Pattern) Filter(keep func(id string) bool) Detector {
	var rs []Rule
	for _, r := range p.rules {
		if keep(r.ID) {
			rs = append(rs, r)
		}
	}
	if len(rs) == 0 {
		return nil
	}
	return &Pattern{rules: rs, noValidators: p.noValidators}
}

func (p *Pattern) Detect(chunk []byte, prov types.SourceDescriptor) []types.Candidate {
	var out []types.Candidate
	for _, r := range p.rules {
		for _, m := range r.Re.FindAllSubmatchIndex(chunk, -1) {
			start, end := m[0], m[1]
			if r.Group > 0 {
				if 2*r.Group+1 >= len(m) || m[2*r.Group] < 0 {
					continue
				}
				start, end = m[2*r.Group], m[2*r.Group+1]
			}
			if start >= end {
				continue
			}
			if r.Context != nil && !r.Context.Match(window(chunk, m[0], m[1])) {
				continue
			}
			val := chunk[start:end]
			if r.Kind == types.KindPassword && isPlaceholder(val) {
				continue
			}
			conf := r.Confidence
			if r.Validate != nil && !p.noValidators {
				if r.Validate(string(val)) {
					conf += 0.05
				} else {
					conf -= 0.2
				}
			}
			out = append(out, types.Candidate{
				Kind:       r.Kind,
				Detector:   r.ID,
				Value:      val,
				Start:      start,
				End:        end,
				Confidence: clamp01(conf),
				Provenance: prov,
			})
		}
	}
	return out
}

// window returns the line around [start,end), clipped to contextWindow bytes
// on each side.
func window(chunk []byte, start, end int) []byte {
	lo := start - contextWindow
	if lo < 0 {
		lo = 0
	}
	if i := bytes.LastIndexByte(chunk[lo:start], '\n'); i >= 0 {
		lo += i + 1
	}
	hi := end + contextWindow
	if hi > len(chunk) {
		hi = len(chunk)
	}
	if i := bytes.IndexByte(chunk[end:hi], '\n'); i >= 0 {
		hi = end + i
	}
	return chunk[lo:hi]
}
