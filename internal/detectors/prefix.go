package detectors

import (
	"bytes"
	"strings"

	"github.com/redactyl/livegrab/internal/types"
	v "github.com/redactyl/livegrab/internal/validate"
)

const (
	alnum = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// maxPEM bounds the search for a private key's END line.
	maxPEM = 16 << 10
)

// knownPrefix describes a vendor token recognisable by its literal prefix.
type knownPrefix struct {
	id       string
	prefix   string
	kind     types.SecretKind
	min, max int
	alphabet string
}

var prefixes = []knownPrefix{
	{"github_token", "ghp_", types.KindToken, 36, 36, alnum},
	{"github_token", "gho_", types.KindToken, 36, 36, alnum},
	{"github_token", "ghu_", types.KindToken, 36, 36, alnum},
	{"github_token", "ghs_", types.KindToken, 36, 36, alnum},
	{"github_token", "ghr_", types.KindToken, 36, 36, alnum},
	{"github_fine_grained_pat", "github_pat_", types.KindToken, 82, 82, alnum + "_"},
	{"gitlab_token", "glpat-", types.KindToken, 20, 20, alnum + "_-"},
	{"slack_token", "xoxb-", types.KindToken, 10, 200, alnum + "-"},
	{"slack_token", "xoxp-", types.KindToken, 10, 200, alnum + "-"},
	{"slack_token", "xoxa-", types.KindToken, 10, 200, alnum + "-"},
	{"stripe_secret", "sk_live_", types.KindAPIKey, 24, 99, alnum},
	{"stripe_secret", "rk_live_", types.KindAPIKey, 24, 99, alnum},
	{"npm_token", "npm_", types.KindToken, 36, 36, alnum},
	{"huggingface_token", "hf_", types.KindToken, 34, 40, alnum},
	{"dockerhub_pat", "dckr_pat_", types.KindToken, 27, 64, alnum + "_-"},
	{"pypi_token", "pypi-AgEIcHlwaS5vcmc", types.KindToken, 50, 300, alnum + "_-"},
	{"aws_access_key", "AKIA", types.KindAPIKey, 16, 16, "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"},
	{"aws_access_key", "ASIA", types.KindAPIKey, 16, 16, "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"},
	{"stripe_webhook_secret", "whsec_", types.KindToken, 16, 64, alnum},
	{"groq_api_key", "gsk_", types.KindAPIKey, 52, 52, alnum},
	{"replicate_api_token", "r8_", types.KindToken, 37, 37, alnum},
}

// Prefix finds vendor tokens by literal prefix and PEM private key blocks.
// It is a cheap byte scan that does not depend on regular expressions.
type Prefix struct{}

// NewPrefix returns the known-prefix detector.
func NewPrefix() *Prefix { return &Prefix{} }

func (Prefix) ID() string { return "prefix" }

func (Prefix) Kinds() []types.SecretKind {
	return []types.SecretKind{types.KindPrivateKey, types.KindToken, types.KindAPIKey}
}

func (Prefix) Detect(chunk []byte, prov types.SourceDescriptor) []types.Candidate {
	out := pemBlocks(chunk, prov)
	for _, kp := range prefixes {
		p := []byte(kp.prefix)
		for pos := 0; pos < len(chunk); {
			i := bytes.Index(chunk[pos:], p)
			if i < 0 {
				break
			}
			start := pos + i
			pos = start + len(p)
			if start > 0 && isTokenByte(chunk[start-1]) {
				continue
			}
			end := pos
			for end < len(chunk) && strings.IndexByte(kp.alphabet, chunk[end]) >= 0 {
				end++
			}
			n := end - pos
			if n < kp.min || n > kp.max {
				continue
			}
			// token must not run on into more token characters
			if end < len(chunk) && isTokenByte(chunk[end]) {
				continue
			}
			out = append(out, types.Candidate{
				Kind:       kp.kind,
				Detector:   kp.id,
				Value:      chunk[start:end],
				Start:      start,
				End:        end,
				Confidence: 0.85,
				Provenance: prov,
			})
			pos = end
		}
	}
	return out
}

var (
	pemBeginTag = []byte("-----BEGIN ")
	pemDashes   = []byte("-----")
	pemKeyType  = []byte("PRIVATE KEY")
)

// pemBlocks emits complete BEGIN/END private key blocks. A block whose END
// line is not inside the chunk is skipped; the next chunk's overlap sees it.
func pemBlocks(chunk []byte, prov types.SourceDescriptor) []types.Candidate {
	var out []types.Candidate
	for pos := 0; pos < len(chunk); {
		i := bytes.Index(chunk[pos:], pemBeginTag)
		if i < 0 {
			break
		}
		start := pos + i
		pos = start + len(pemBeginTag)
		hdrEnd := bytes.Index(chunk[pos:min(len(chunk), pos+64)], pemDashes)
		if hdrEnd < 0 {
			continue
		}
		label := chunk[pos : pos+hdrEnd]
		if !bytes.HasSuffix(label, pemKeyType) {
			continue
		}
		endTag := append(append([]byte("-----END "), label...), pemDashes...)
		limit := min(len(chunk), start+maxPEM)
		j := bytes.Index(chunk[pos:limit], endTag)
		if j < 0 {
			continue
		}
		end := pos + j + len(endTag)
		val := chunk[start:end]
		conf := 0.99
		if !v.IsPEMPrivateKey(string(val)) {
			conf = 0.8
		}
		out = append(out, types.Candidate{
			Kind:       types.KindPrivateKey,
			Detector:   "private_key_block",
			Value:      val,
			Start:      start,
			End:        end,
			Confidence: conf,
			Provenance: prov,
		})
		pos = end
	}
	return out
}
