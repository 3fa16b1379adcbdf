package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk YAML configuration shape for livegrab. Every
// field is optional; nil means "not set here".
type FileConfig struct {
	Timeout       *string  `yaml:"timeout,omitempty"`
	SourceTimeout *string  `yaml:"source_timeout,omitempty"`
	Workers       *int     `yaml:"workers,omitempty"`
	BestEffort    *bool    `yaml:"best_effort,omitempty"`
	Strict        *bool    `yaml:"strict,omitempty"`
	MinConfidence *float64 `yaml:"min_confidence,omitempty"`
	Enable        *string  `yaml:"enable,omitempty"`
	Disable       *string  `yaml:"disable,omitempty"`
	NoValidators  *bool    `yaml:"no_validators,omitempty"`
	NoColor       *bool    `yaml:"no_color,omitempty"`
	Output        *string  `yaml:"output,omitempty"`
	FailOn        *string  `yaml:"fail_on,omitempty"`
	Baseline      *string  `yaml:"baseline,omitempty"`
	ChunkSize     *int     `yaml:"chunk_size,omitempty"`
	Carry         *int     `yaml:"carry,omitempty"`
	Audit         *bool    `yaml:"audit,omitempty"`

	SensitiveEnv  []string `yaml:"sensitive_env,omitempty"`
	SensitiveKeys []string `yaml:"sensitive_keys,omitempty"`

	Sources  *SourcesConfig  `yaml:"sources,omitempty"`
	Entropy  *EntropyConfig  `yaml:"entropy,omitempty"`
	Risk     *RiskConfig     `yaml:"risk,omitempty"`
	Gitleaks *GitleaksConfig `yaml:"gitleaks,omitempty"`
	Upload   *UploadConfig   `yaml:"upload,omitempty"`
}

// SourcesConfig lists the live sources a plain `livegrab grab` reads.
type SourcesConfig struct {
	Env        *bool             `yaml:"env,omitempty"`
	Processes  []int32           `yaml:"processes,omitempty"`
	Files      []string          `yaml:"files,omitempty"`
	URLs       []string          `yaml:"urls,omitempty"`
	Images     []string          `yaml:"images,omitempty"`
	Git        []string          `yaml:"git,omitempty"`
	Kubernetes *KubernetesConfig `yaml:"kubernetes,omitempty"`
}

type KubernetesConfig struct {
	Kubeconfig *string  `yaml:"kubeconfig,omitempty"`
	Context    *string  `yaml:"context,omitempty"`
	Namespaces []string `yaml:"namespaces,omitempty"`
	Selector   *string  `yaml:"selector,omitempty"`
	ConfigMaps *bool    `yaml:"configmaps,omitempty"`
}

type EntropyConfig struct {
	MinBits        *float64 `yaml:"min_bits,omitempty"`
	MinLen         *int     `yaml:"min_len,omitempty"`
	MaxLen         *int     `yaml:"max_len,omitempty"`
	RequireContext *bool    `yaml:"require_context,omitempty"`
}

// RiskConfig overrides the summarizer weights and severity thresholds.
type RiskConfig struct {
	ConfidenceWeight *float64           `yaml:"confidence_weight,omitempty"`
	OccurrenceWeight *float64           `yaml:"occurrence_weight,omitempty"`
	KindWeights      map[string]float64 `yaml:"kind_weights,omitempty"`
	High             *float64           `yaml:"high,omitempty"`
	Medium           *float64           `yaml:"medium,omitempty"`
}

// GitleaksConfig enables the gitleaks rule set as an extra detector.
type GitleaksConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
	// ConfigPath is a .gitleaks.toml file; empty means the built-in rules.
	ConfigPath *string `yaml:"config,omitempty"`
}

type UploadConfig struct {
	URL    *string `yaml:"url,omitempty"`
	Token  *string `yaml:"token,omitempty"`
	NoMeta *bool   `yaml:"no_metadata,omitempty"`
}

// ErrNotFound means no config file exists at the searched locations.
var ErrNotFound = errors.New("config not found")

// LoadFile reads a YAML config file from the provided path.
func LoadFile(path string) (FileConfig, error) {
	var cfg FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadLocal searches dir for .livegrab.yml/.yaml or livegrab.yml/.yaml.
func LoadLocal(dir string) (FileConfig, error) {
	var cfg FileConfig
	for _, name := range []string{".livegrab.yml", ".livegrab.yaml", "livegrab.yml", "livegrab.yaml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}
	return cfg, fmt.Errorf("no local config in %s: %w", dir, ErrNotFound)
}

// GlobalDir returns $XDG_CONFIG_HOME/livegrab or ~/.config/livegrab.
func GlobalDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			base = filepath.Join(home, ".config")
		}
	}
	if base == "" {
		return "", fmt.Errorf("no config dir: %w", ErrNotFound)
	}
	return filepath.Join(base, "livegrab"), nil
}

// LoadGlobal loads the global config file from the XDG base directory.
func LoadGlobal() (FileConfig, error) {
	var cfg FileConfig
	dir, err := GlobalDir()
	if err != nil {
		return cfg, err
	}
	p := filepath.Join(dir, "config.yml")
	if _, err := os.Stat(p); err == nil {
		return LoadFile(p)
	}
	return cfg, fmt.Errorf("no global config: %w", ErrNotFound)
}

// Duration parses a duration field, returning def when unset.
func Duration(s *string, def time.Duration) (time.Duration, error) {
	if s == nil || *s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def, fmt.Errorf("invalid duration %q: %w", *s, err)
	}
	return d, nil
}

// GitleaksEnabled reports whether the gitleaks detector is switched on.
func (fc FileConfig) GitleaksEnabled() bool {
	return fc.Gitleaks != nil && fc.Gitleaks.Enabled != nil && *fc.Gitleaks.Enabled
}

// GitleaksConfigPath returns the custom rule file or "".
func (fc FileConfig) GitleaksConfigPath() string {
	if fc.Gitleaks == nil || fc.Gitleaks.ConfigPath == nil {
		return ""
	}
	return *fc.Gitleaks.ConfigPath
}

// Layers holds the local and global files in precedence order.
type Layers struct {
	Local, Global FileConfig
}

// Load reads the local config from dir (or explicit, when set) and the
// global config. Missing files are not errors; malformed ones are.
func Load(dir, explicit string) (Layers, error) {
	var l Layers
	if explicit != "" {
		c, err := LoadFile(explicit)
		if err != nil {
			return l, err
		}
		l.Local = c
	} else if c, err := LoadLocal(dir); err == nil {
		l.Local = c
	} else if !errors.Is(err, ErrNotFound) {
		return l, err
	}
	if c, err := LoadGlobal(); err == nil {
		l.Global = c
	} else if !errors.Is(err, ErrNotFound) {
		return l, err
	}
	return l, nil
}
