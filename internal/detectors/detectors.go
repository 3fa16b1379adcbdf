package detectors

import (
	"github.com/redactyl/livegrab/internal/types"
)

// Detector finds candidate secrets inside one chunk of source data.
// Start/End offsets of returned candidates index into chunk.
type Detector interface {
	ID() string
	Kinds() []types.SecretKind
	Detect(chunk []byte, prov types.SourceDescriptor) []types.Candidate
}

// Config holds the tunable thresholds shared by the built-in detectors.
type Config struct {
	// EntropyMinBits is the Shannon entropy (bits per symbol) a token needs
	// before the entropy detector reports it.
	EntropyMinBits float64
	EntropyMinLen  int
	EntropyMaxLen  int
	// EntropyRequireContext limits entropy hits to lines mentioning a
	// secret-ish keyword, or to sources already flagged sensitive.
	EntropyRequireContext bool

	// SensitiveKeys are glob patterns (case-insensitive) naming keys whose
	// values are reported by the key-name detector.
	SensitiveKeys []string
	// MinValueLen drops key-name hits with shorter values.
	MinValueLen int

	// NoValidators disables validator-based confidence adjustments.
	NoValidators bool

	// Gitleaks enables the gitleaks rule-set detector.
	Gitleaks bool
	// GitleaksConfig is an optional path to a gitleaks TOML rule file.
	GitleaksConfig string
}

// DefaultConfig returns the thresholds used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		EntropyMinBits:        4.0,
		EntropyMinLen:         20,
		EntropyMaxLen:         200,
		EntropyRequireContext: true,
		SensitiveKeys:         DefaultSensitiveKeys(),
		MinValueLen:           6,
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func isTokenByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_' || b == '-'
}
