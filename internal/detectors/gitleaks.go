package detectors

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/redactyl/livegrab/internal/types"
)

// Gitleaks runs the gitleaks rule set over chunks. The gitleaks detector is
// not documented as safe for concurrent use, so calls are serialised.
type Gitleaks struct {
	mu sync.Mutex
	d  *detect.Detector
}

// NewGitleaks builds a gitleaks-backed detector. An empty configPath selects
// gitleaks' bundled default rules.
func NewGitleaks(configPath string) (*Gitleaks, error) {
	if configPath == "" {
		log.Debug("(detectors) using default gitleaks configuration")
		d, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			return nil, fmt.Errorf("error creating default gitleaks detector: %w", err)
		}
		return &Gitleaks{d: d}, nil
	}
	d, err := loadGitleaksConfig(configPath)
	if err != nil {
		return nil, err
	}
	return &Gitleaks{d: d}, nil
}

func loadGitleaksConfig(path string) (*detect.Detector, error) {
	log.Debugf("(detectors) loading gitleaks configuration from: %s", path)
	vp := viper.New()
	vp.SetConfigFile(path)
	if err := vp.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("gitleaks config file not found at %s: %w", path, err)
		}
		return nil, fmt.Errorf("error reading gitleaks config file %s: %w", path, err)
	}
	var vc config.ViperConfig
	if err := vp.Unmarshal(&vc); err != nil {
		return nil, fmt.Errorf("error unmarshaling gitleaks config from %s: %w", path, err)
	}
	cfg, err := vc.Translate()
	if err != nil {
		return nil, fmt.Errorf("error translating gitleaks config from %s: %w", path, err)
	}
	if len(cfg.Rules) == 0 {
		log.Warnf("(detectors) gitleaks config from %s contains no rules", path)
	}
	return detect.NewDetector(cfg), nil
}

func (g *Gitleaks) ID() string { return "gitleaks" }

func (g *Gitleaks) Kinds() []types.SecretKind { return types.Kinds() }

func (g *Gitleaks) Detect(chunk []byte, prov types.SourceDescriptor) []types.Candidate {
	g.mu.Lock()
	findings := g.d.DetectBytes(chunk)
	g.mu.Unlock()

	var out []types.Candidate
	// repeated secrets map onto successive occurrences in the chunk
	cursor := map[string]int{}
	for _, f := range findings {
		if f.Secret == "" {
			continue
		}
		sec := []byte(f.Secret)
		from := cursor[f.Secret]
		i := bytes.Index(chunk[from:], sec)
		if i < 0 {
			continue
		}
		start := from + i
		end := start + len(sec)
		cursor[f.Secret] = end
		conf := 0.8
		if f.Entropy >= 4 {
			conf = 0.85
		}
		out = append(out, types.Candidate{
			Kind:       kindFromRuleID(f.RuleID),
			Detector:   "gitleaks:" + f.RuleID,
			Value:      chunk[start:end],
			Start:      start,
			End:        end,
			Confidence: conf,
			Provenance: prov,
		})
	}
	return out
}

func kindFromRuleID(id string) types.SecretKind {
	id = strings.ToLower(id)
	switch {
	case strings.Contains(id, "private-key"):
		return types.KindPrivateKey
	case strings.Contains(id, "password"):
		return types.KindPassword
	case strings.Contains(id, "connection") || strings.Contains(id, "uri") || strings.Contains(id, "url"):
		return types.KindConnectionString
	case strings.Contains(id, "token") || strings.Contains(id, "pat") || strings.Contains(id, "jwt") || strings.Contains(id, "webhook"):
		return types.KindToken
	case strings.Contains(id, "key") || strings.Contains(id, "secret"):
		return types.KindAPIKey
	}
	return types.KindUnknown
}
