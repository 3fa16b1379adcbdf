package detectors

import (
	"bytes"
	"strings"

	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"

	"github.com/redactyl/livegrab/internal/ctxparse"
	"github.com/redactyl/livegrab/internal/types"
	v "github.com/redactyl/livegrab/internal/validate"
)

// DefaultSensitiveKeys are the glob patterns, matched against lower-cased key
// names, whose values the key-name detector reports.
func DefaultSensitiveKeys() []string {
	return []string{
		"*password*", "*passwd*", "*passphrase*", "*secret*", "*token*",
		"*api_key*", "*apikey*", "*api-key*", "*access_key*", "*private_key*",
		"*credential*", "*dsn", "*database_url", "*connection_string*", "*conn_str*",
		"*signing_key*", "*encryption_key*", "*session_key*", "*_auth",
	}
}

var defaultExcludedKeys = []string{"*_file", "*_path", "*_dir", "*_ttl", "*_url_path", "*token_url*", "*_expiry*", "*_expires*"}

var placeholders = map[string]bool{
	"changeme": true, "change_me": true, "password": true, "secret": true, "example": true,
	"null": true, "none": true, "nil": true, "true": true, "false": true, "redacted": true,
	"dummy": true, "test": true, "placeholder": true, "undefined": true, "todo": true,
}

// KeyName reports values stored under sensitive-looking keys: environment
// variables, Kubernetes data keys and JSON/YAML/dotenv fields.
type KeyName struct {
	include []glob.Glob
	exclude []glob.Glob
	minLen  int
}

// NewKeyName compiles cfg.SensitiveKeys. Patterns that fail to compile are
// logged and skipped.
func NewKeyName(cfg Config) *KeyName {
	keys := cfg.SensitiveKeys
	if len(keys) == 0 {
		keys = DefaultSensitiveKeys()
	}
	k := &KeyName{include: compileGlobs(keys), exclude: compileGlobs(defaultExcludedKeys), minLen: cfg.MinValueLen}
	if k.minLen <= 0 {
		k.minLen = 6
	}
	return k
}

func compileGlobs(patterns []string) []glob.Glob {
	var out []glob.Glob
	for _, p := range patterns {
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			logrus.WithError(err).WithField("pattern", p).Warn("(detectors) sensitive key glob could not be compiled")
			continue
		}
		out = append(out, g)
	}
	return out
}

func (k *KeyName) ID() string { return "sensitive_key" }

func (k *KeyName) Kinds() []types.SecretKind { return types.Kinds() }

// Sensitive reports whether key matches the include globs and none of the excludes.
func (k *KeyName) Sensitive(key string) bool {
	lk := strings.ToLower(key)
	for _, g := range k.exclude {
		if g.Match(lk) {
			return false
		}
	}
	for _, g := range k.include {
		if g.Match(lk) {
			return true
		}
	}
	return false
}

func (k *KeyName) Detect(chunk []byte, prov types.SourceDescriptor) []types.Candidate {
	var out []types.Candidate
	fields := ctxparse.Fields(chunk)
	if len(fields) == 0 && prov.Section != "" {
		// a bare value whose key is the section, e.g. one Kubernetes data entry
		trimmed := bytes.TrimSpace(chunk)
		if len(trimmed) > 0 {
			fields = []ctxparse.Field{{Key: prov.Section, Value: string(trimmed), Offset: bytes.Index(chunk, trimmed)}}
		}
	}
	for _, f := range fields {
		key := f.Key
		if i := strings.LastIndexByte(key, '.'); i >= 0 && !k.Sensitive(key) {
			key = key[i+1:]
		}
		if !k.Sensitive(key) || f.Offset < 0 {
			continue
		}
		val := strings.TrimSpace(f.Value)
		if len(val) < k.minLen || isPlaceholder([]byte(val)) {
			continue
		}
		kind, ok := kindFromKey(strings.ToLower(key), val)
		if !ok {
			continue
		}
		start := f.Offset
		if i := bytes.Index(chunk[start:], []byte(val)); i >= 0 {
			start += i
		} else {
			continue
		}
		conf := 0.55
		if prov.Metadata["sensitive"] == "true" {
			conf += 0.15
		}
		if shannon([]byte(val)) >= 3.5 {
			conf += 0.1
		}
		out = append(out, types.Candidate{
			Kind:       kind,
			Detector:   "sensitive_key",
			Value:      chunk[start : start+len(val)],
			Start:      start,
			End:        start + len(val),
			Confidence: clamp01(conf),
			Provenance: prov,
		})
	}
	return out
}

func kindFromKey(key, val string) (types.SecretKind, bool) {
	switch {
	case strings.HasPrefix(val, "-----BEGIN") || strings.Contains(key, "private_key") || strings.Contains(key, "privatekey"):
		if !strings.HasPrefix(val, "-----BEGIN") {
			return types.KindUnknown, true
		}
		return types.KindPrivateKey, true
	case v.HasURLPassword(val):
		return types.KindConnectionString, true
	case strings.HasSuffix(key, "dsn") || strings.Contains(key, "database_url") || strings.Contains(key, "conn"):
		if strings.Contains(strings.ToLower(val), "password=") {
			return types.KindConnectionString, true
		}
		// a DSN without credentials is not a secret
		return "", false
	case strings.Contains(key, "passw") || strings.Contains(key, "passphrase"):
		return types.KindPassword, true
	case strings.Contains(key, "api_key") || strings.Contains(key, "apikey") || strings.Contains(key, "api-key") || strings.Contains(key, "access_key"):
		return types.KindAPIKey, true
	case strings.Contains(key, "token") || strings.HasSuffix(key, "_auth"):
		return types.KindToken, true
	}
	return types.KindUnknown, true
}

// isPlaceholder filters template references and well-known dummy values.
func isPlaceholder(val []byte) bool {
	s := strings.ToLower(strings.TrimSpace(string(val)))
	if s == "" || placeholders[s] {
		return true
	}
	if strings.HasPrefix(s, "${") || strings.HasPrefix(s, "$(") || strings.HasPrefix(s, "{{") ||
		(strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">")) {
		return true
	}
	if strings.Trim(s, string(s[0])) == "" {
		return true
	}
	digits := true
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			digits = false
			break
		}
	}
	return digits && len(s) < 12
}
