package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"k8s.io/client-go/kubernetes"

	"github.com/redactyl/livegrab/internal/capture"
	"github.com/redactyl/livegrab/internal/detectors"
	"github.com/redactyl/livegrab/internal/source"
	"github.com/redactyl/livegrab/internal/summary"
	"github.com/redactyl/livegrab/internal/types"
)

// Re-export selected internal types as a stable public API surface.
type (
	Report   = types.Report
	Finding  = types.Finding
	Capture  = types.Capture
	Result   = capture.Result
	Detector = detectors.Detector
)

var (
	ErrNoSourcesAvailable = capture.ErrNoSourcesAvailable
	ErrTimeout            = capture.ErrTimeout
	ErrEmptyInput         = summary.ErrEmptyInput
)

// DefaultTimeout bounds a run when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// KubeOptions selects the Kubernetes objects to read.
type KubeOptions struct {
	Kubeconfig string
	Context    string
	// Namespaces defaults to the namespace of the selected context.
	Namespaces []string
	Selector   string
	ConfigMaps bool
	// Client replaces the clientset built from Kubeconfig.
	Client kubernetes.Interface
}

// Options describes one capture and summarize pass.
type Options struct {
	// Env reads Environ, or the current environment when Environ is nil.
	Env     bool
	Environ []string
	PIDs    []int32
	// Files are paths or doublestar globs.
	Files  []string
	URLs   []string
	Images []string
	Git    []string
	Kube   *KubeOptions

	// SensitiveEnv are key globs flagged sensitive; nil means the defaults.
	SensitiveEnv []string
	ChunkSize    int
	// Carry overrides the chunk overlap when >= 0.
	Carry int

	Timeout       time.Duration
	SourceTimeout time.Duration
	Workers       int
	BestEffort    bool
	Strict        bool
	MinConfidence float64

	// Detectors replaces the built-in set.
	Detectors      []Detector
	DetectorConfig *detectors.Config
	Enable         string
	Disable        string

	Weights    *summary.Weights
	Thresholds *summary.Thresholds
	// Baseline fingerprints are marked Known in the report.
	Baseline map[string]bool

	Logger   log.FieldLogger
	Progress func(types.SourceDescriptor)
}

// NewOptions returns Options with the defaults the CLI starts from.
func NewOptions() Options {
	return Options{Carry: -1, Timeout: DefaultTimeout}
}

// BuildSources turns o into readers, in a fixed order: environment,
// processes, files, URLs, images, git checkouts, Kubernetes namespaces.
func BuildSources(o Options) ([]source.Reader, error) {
	sensitive := o.SensitiveEnv
	if sensitive == nil {
		sensitive = source.DefaultSensitiveEnv()
	}
	sens := source.NewSensitivity(sensitive)
	chunk, carry := o.ChunkSize, o.Carry

	var out []source.Reader
	if o.Env {
		out = append(out, source.NewEnviron(o.Environ, "", sens))
	}
	for _, pid := range o.PIDs {
		out = append(out, source.NewProcess(pid, sens))
	}
	for _, pattern := range o.Files {
		rs, err := source.FileGlob(pattern, chunk, carry)
		if err != nil {
			return nil, err
		}
		out = append(out, rs...)
	}
	for _, u := range o.URLs {
		h := source.NewHTTP(u)
		if chunk > 0 {
			h.ChunkSize = chunk
		}
		if carry >= 0 {
			h.Carry = carry
		}
		out = append(out, h)
	}
	for _, ref := range o.Images {
		out = append(out, source.NewImage(ref, sens))
	}
	for _, path := range o.Git {
		out = append(out, source.NewGitConfig(path))
	}
	if k := o.Kube; k != nil {
		client, ns := k.Client, ""
		if client == nil {
			c, ctxNS, err := source.KubeClient(k.Kubeconfig, k.Context)
			if err != nil {
				return nil, err
			}
			client, ns = c, ctxNS
		}
		namespaces := k.Namespaces
		if len(namespaces) == 0 {
			namespaces = []string{ns}
		}
		for _, n := range namespaces {
			kr := source.NewKubernetes(client, n, sens)
			kr.Selector = k.Selector
			kr.ConfigMaps = k.ConfigMaps
			out = append(out, kr)
		}
	}
	return out, nil
}

// detectorSet returns o.Detectors or the built-in set narrowed by Enable and
// Disable.
func (o Options) detectorSet() []Detector {
	if o.Detectors != nil {
		return o.Detectors
	}
	cfg := detectors.DefaultConfig()
	if o.DetectorConfig != nil {
		cfg = *o.DetectorConfig
	}
	return detectors.Select(detectors.Default(cfg), o.Enable, o.Disable)
}

// Summarizer returns the summarizer o describes.
func (o Options) Summarizer() *summary.Summarizer {
	s := summary.New()
	if o.Weights != nil {
		s.Weights = *o.Weights
	}
	if o.Thresholds != nil {
		s.Thresholds = *o.Thresholds
	}
	s.Strict = o.Strict
	s.Known = o.Baseline
	return s
}

// Run captures from every source in o and summarizes the result. A capture
// that fails outright returns its error with a nil report; a partial run
// returns a report with Incomplete set.
func Run(ctx context.Context, o Options) (*Report, *Result, error) {
	logger := o.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	readers, err := BuildSources(o)
	if err != nil {
		return nil, nil, err
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := capture.New(o.detectorSet(), capture.Config{
		SourceTimeout: o.SourceTimeout,
		Workers:       o.Workers,
		BestEffort:    o.BestEffort,
		MinConfidence: o.MinConfidence,
		Progress:      o.Progress,
		Logger:        logger,
	})
	res, err := c.GrabLive(ctx, readers, timeout)
	if err != nil {
		return nil, res, err
	}
	logger.WithField("run_id", res.RunID).Infof("(core) captured %d secrets in %s", len(res.Captures), res.Duration.Round(time.Millisecond))

	rep, err := o.Summarizer().Summarize(res.Captures)
	if err != nil {
		return nil, res, err
	}
	Annotate(rep, res)
	return rep, res, nil
}

// Annotate copies run metadata from res onto rep.
func Annotate(rep *Report, res *Result) {
	rep.RunID = res.RunID
	rep.Incomplete = res.Incomplete
	rep.SourceErrors = res.FailureMessages()
	if res.Incomplete && res.Cause != nil && !errors.Is(res.Cause, context.Canceled) {
		rep.SourceErrors = append(rep.SourceErrors, fmt.Sprintf("incomplete: %v", res.Cause))
	}
}

// Summarize builds a report from captures with the default weights.
func Summarize(captures []Capture) (*Report, error) {
	return summary.New().Summarize(captures)
}

// DetectorIDs returns the list of configured detector IDs.
func DetectorIDs() []string { return detectors.IDs() }
