package detectors

import (
	"bytes"
	"math"
	"regexp"

	"github.com/redactyl/livegrab/internal/types"
)

var (
	reMaybeSecret = regexp.MustCompile(`[A-Za-z0-9+/_-]{20,}={0,2}`)
	reContext     = regexp.MustCompile(`(?i)(secret|token|passw(?:or)?d|api[_-]?key|access[_-]?key|authorization|bearer|credential|aws)`)
	reCtxPassword = regexp.MustCompile(`(?i)passw(?:or)?d|passphrase`)
	reCtxToken    = regexp.MustCompile(`(?i)token|bearer|authorization|session`)
	reCtxAPIKey   = regexp.MustCompile(`(?i)api[_-]?key|access[_-]?key|client[_-]?secret`)
)

// Entropy reports high-entropy tokens near secret-ish keywords.
type Entropy struct {
	minBits        float64
	minLen, maxLen int
	requireContext bool
}

// NewEntropy returns an entropy detector using cfg's thresholds.
func NewEntropy(cfg Config) *Entropy {
	e := &Entropy{
		minBits:        cfg.EntropyMinBits,
		minLen:         cfg.EntropyMinLen,
		maxLen:         cfg.EntropyMaxLen,
		requireContext: cfg.EntropyRequireContext,
	}
	if e.minBits <= 0 {
		e.minBits = 4.0
	}
	if e.minLen <= 0 {
		e.minLen = 20
	}
	if e.maxLen < e.minLen {
		e.maxLen = 200
	}
	return e
}

func (e *Entropy) ID() string { return "entropy_context" }

func (e *Entropy) Kinds() []types.SecretKind {
	return []types.SecretKind{types.KindAPIKey, types.KindToken, types.KindPassword, types.KindUnknown}
}

func (e *Entropy) Detect(chunk []byte, prov types.SourceDescriptor) []types.Candidate {
	var out []types.Candidate
	flagged := prov.Metadata["sensitive"] == "true"
	for off := 0; off < len(chunk); {
		end := bytes.IndexByte(chunk[off:], '\n')
		if end < 0 {
			end = len(chunk)
		} else {
			end += off
		}
		line := chunk[off:end]
		ctx := line
		if prov.Section != "" {
			ctx = append([]byte(prov.Section+" "), line...)
		}
		if !e.requireContext || flagged || reContext.Match(ctx) {
			kind := kindFromContext(ctx)
			for _, m := range reMaybeSecret.FindAllIndex(line, -1) {
				if isKeyRun(line, m[1]) {
					continue
				}
				tok := line[m[0]:m[1]]
				if len(tok) < e.minLen || len(tok) > e.maxLen {
					continue
				}
				h := shannon(tok)
				if h < e.minBits {
					continue
				}
				out = append(out, types.Candidate{
					Kind:       kind,
					Detector:   e.ID(),
					Value:      tok,
					Start:      off + m[0],
					End:        off + m[1],
					Confidence: math.Min(0.8, 0.5+(h-e.minBits)/4),
					Provenance: prov,
				})
			}
		}
		off = end + 1
	}
	return out
}

// isKeyRun reports whether the run ending at end names a key: it is followed
// by ':' or its trailing '=' separates it from a value.
func isKeyRun(line []byte, end int) bool {
	if end >= len(line) {
		return false
	}
	if line[end] == ':' {
		return true
	}
	return line[end-1] == '=' && isEntropyTokenByte(line[end])
}

func isEntropyTokenByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return c == '+' || c == '/' || c == '_' || c == '-' || c == '='
}

func kindFromContext(ctx []byte) types.SecretKind {
	switch {
	case reCtxPassword.Match(ctx):
		return types.KindPassword
	case reCtxAPIKey.Match(ctx):
		return types.KindAPIKey
	case reCtxToken.Match(ctx):
		return types.KindToken
	}
	return types.KindUnknown
}

// shannon returns the Shannon entropy of b in bits per byte.
func shannon(b []byte) float64 {
	if len(b) == 0 {
		return 0
	}
	var count [256]int
	for _, c := range b {
		count[c]++
	}
	h := 0.0
	n := float64(len(b))
	for _, c := range count {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	return h
}
