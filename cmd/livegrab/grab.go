package livegrab

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/redactyl/livegrab/internal/audit"
	"github.com/redactyl/livegrab/internal/cache"
	"github.com/redactyl/livegrab/internal/config"
	"github.com/redactyl/livegrab/internal/detectors"
	"github.com/redactyl/livegrab/internal/report"
	"github.com/redactyl/livegrab/internal/summary"
	"github.com/redactyl/livegrab/internal/tui"
	"github.com/redactyl/livegrab/internal/types"
	"github.com/redactyl/livegrab/internal/update"
	"github.com/redactyl/livegrab/pkg/core"
)

const defaultBaseline = "livegrab.baseline.json"

var (
	flagEnv          bool
	flagPIDs         []int32
	flagFiles        []string
	flagURLs         []string
	flagImages       []string
	flagGit          []string
	flagK8s          bool
	flagNamespaces   []string
	flagKubeconfig   string
	flagKubeContext  string
	flagK8sSelector  string
	flagConfigMaps   bool
	flagTimeout      time.Duration
	flagSourceTO     time.Duration
	flagWorkers      int
	flagBestEffort   bool
	flagStrict       bool
	flagMinConf      float64
	flagEnable       string
	flagDisable      string
	flagNoValidators bool
	flagGitleaks     bool
	flagGitleaksCfg  string
	flagBaseline     string
	flagUploadURL    string
	flagUploadToken  string
	flagNoUploadMeta bool
	flagOutputFile   string
	flagTUI          bool
	flagAudit        bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "grab",
		Short: "Capture secrets from live sources and report them",
		Long: "grab reads every selected source concurrently, runs the detectors over the data as it streams, " +
			"and prints a deduplicated report. With no source flags it reads the sources from config, or the current environment.",
		Example: `  livegrab grab --env
  livegrab grab --file '/etc/myapp/**/*.env' --url http://localhost:8080/debug/vars
  livegrab grab --k8s-namespace payments --configmaps -o json
  livegrab grab --pid 4242 --timeout 10s --fail-on high`,
		RunE: runGrab,
	}
	rootCmd.AddCommand(cmd)

	f := cmd.Flags()
	f.BoolVar(&flagEnv, "env", false, "read the current process environment")
	f.Int32SliceVar(&flagPIDs, "pid", nil, "read the environment and command line of these process IDs")
	f.StringSliceVar(&flagFiles, "file", nil, "read files (paths or ** globs)")
	f.StringSliceVar(&flagURLs, "url", nil, "GET these URLs and read the response bodies")
	f.StringSliceVar(&flagImages, "image", nil, "read the config and environment of these container images")
	f.StringSliceVar(&flagGit, "git", nil, "read the config and remotes of these git checkouts")
	f.BoolVar(&flagK8s, "k8s", false, "read Secrets in the current Kubernetes context namespace")
	f.StringSliceVar(&flagNamespaces, "k8s-namespace", nil, "read Secrets in these Kubernetes namespaces")
	f.StringVar(&flagKubeconfig, "kubeconfig", "", "kubeconfig path (default $KUBECONFIG or ~/.kube/config)")
	f.StringVar(&flagKubeContext, "kube-context", "", "kubeconfig context")
	f.StringVar(&flagK8sSelector, "k8s-selector", "", "label selector for Kubernetes objects")
	f.BoolVar(&flagConfigMaps, "configmaps", false, "also read ConfigMaps")

	f.DurationVar(&flagTimeout, "timeout", 0, "overall capture deadline (default 30s)")
	f.DurationVar(&flagSourceTO, "source-timeout", 0, "per-source deadline (0 = none)")
	f.IntVar(&flagWorkers, "workers", 0, "concurrent source readers (0 = one per source)")
	f.BoolVar(&flagBestEffort, "best-effort", false, "report whatever was captured even when every source fails")
	f.BoolVar(&flagStrict, "strict", false, "fail when nothing was captured")
	f.Float64Var(&flagMinConf, "min-confidence", 0, "drop candidates below this confidence (0-1)")
	f.StringVar(&flagEnable, "enable", "", "only run these detectors or rules (comma-separated IDs)")
	f.StringVar(&flagDisable, "disable", "", "disable these detectors or rules (comma-separated IDs)")
	f.BoolVar(&flagNoValidators, "no-validators", false, "disable validator confidence adjustments")
	f.BoolVar(&flagGitleaks, "gitleaks", false, "add the gitleaks rule set as a detector")
	f.StringVar(&flagGitleaksCfg, "gitleaks-config", "", "custom gitleaks TOML rules (implies --gitleaks)")

	f.StringVar(&flagBaseline, "baseline", "", "baseline file of accepted fingerprints (default "+defaultBaseline+")")
	f.StringVar(&flagUploadURL, "upload", "", "POST the report (JSON) to this URL")
	f.StringVar(&flagUploadToken, "upload-token", "", "Bearer token for upload auth")
	f.BoolVar(&flagNoUploadMeta, "no-upload-metadata", false, "do not include the host name in the upload envelope")
	f.StringVar(&flagOutputFile, "output-file", "", "also write the JSON report to this file (mode 0600)")
	f.BoolVar(&flagTUI, "tui", false, "browse findings interactively")
	f.BoolVar(&flagAudit, "audit", false, "append a run record to the audit history")
}

func runGrab(cmd *cobra.Command, _ []string) error {
	l, err := loadLayers()
	if err != nil {
		return err
	}
	o, err := resolveOptions(l)
	if err != nil {
		return err
	}
	baselinePath := pickString(flagBaseline, l.Local.Baseline, l.Global.Baseline)
	if baselinePath == "" {
		baselinePath = defaultBaseline
	}
	base, err := report.LoadBaseline(baselinePath)
	if err != nil {
		return fmt.Errorf("baseline %s: %w", baselinePath, err)
	}
	o.Baseline = base.Items

	format, err := report.ParseFormat(pickString(flagOutput, l.Local.Output, l.Global.Output))
	if err != nil {
		return err
	}
	human := format == report.FormatTable || format == report.FormatText
	names := sourceNames(o)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if human && !flagTUI {
		checkForUpdate(ctx)
		fmt.Fprintf(os.Stderr, "Capturing from %d sources with %d detectors...\n", len(names), countDetectors(o))
	}

	started := time.Now()
	var rep *types.Report
	if flagTUI {
		rep, err = tui.Run(ctx, func(ctx context.Context) (*types.Report, error) {
			r, _, err := core.Run(ctx, o)
			return r, err
		}, tui.Options{
			Baseline:     base,
			BaselinePath: baselinePath,
			ExportDir:    ".",
			NoColor:      pickBool(flagNoColor, l.Local.NoColor, l.Global.NoColor),
			Version:      version,
		})
		if err != nil {
			return err
		}
		if rep == nil {
			return nil
		}
	} else {
		var chunks atomic.Int64
		if human && report.IsTerminal(os.Stderr) {
			o.Progress = func(types.SourceDescriptor) {
				if n := chunks.Add(1); n%64 == 0 {
					fmt.Fprintf(os.Stderr, "\r[%d chunks]", n)
				}
			}
		}
		rep, _, err = core.Run(ctx, o)
		if chunks.Load() >= 64 {
			fmt.Fprintln(os.Stderr)
		}
		if err != nil {
			return fmt.Errorf("capture: %w", err)
		}
	}
	elapsed := time.Since(started)
	newFindings := report.FilterNewFindings(rep.Findings, base)

	if err := deliver(ctx, cmd.OutOrStdout(), rep, l, format, !flagTUI, elapsed, len(names)); err != nil {
		return err
	}
	remember(rep, newFindings, names, elapsed, baselinePath, pickBool(flagAudit, l.Local.Audit, l.Global.Audit))

	if cmd.Flags().Changed("enable") || cmd.Flags().Changed("disable") {
		fmt.Fprintf(os.Stderr, "detectors active: %d\n", countDetectors(o))
	}
	if failOn := pickString(flagFailOn, l.Local.FailOn, l.Global.FailOn); failOn != "" && report.ShouldFail(newFindings, failOn) {
		return errFailOn
	}
	return nil
}

// resolveOptions merges flags, the local config and the global config into
// pipeline options.
func resolveOptions(l config.Layers) (core.Options, error) {
	lc, gc := l.Local, l.Global
	o := core.NewOptions()

	var err error
	if o.Timeout, err = pickDuration(flagTimeout, lc.Timeout, gc.Timeout, core.DefaultTimeout); err != nil {
		return o, err
	}
	if o.SourceTimeout, err = pickDuration(flagSourceTO, lc.SourceTimeout, gc.SourceTimeout, 0); err != nil {
		return o, err
	}
	o.Workers = pickInt(flagWorkers, lc.Workers, gc.Workers)
	o.BestEffort = pickBool(flagBestEffort, lc.BestEffort, gc.BestEffort)
	o.Strict = pickBool(flagStrict, lc.Strict, gc.Strict)
	o.MinConfidence = pickFloat(flagMinConf, lc.MinConfidence, gc.MinConfidence)
	o.Enable = pickString(flagEnable, lc.Enable, gc.Enable)
	o.Disable = pickString(flagDisable, lc.Disable, gc.Disable)
	o.ChunkSize = pickInt(0, lc.ChunkSize, gc.ChunkSize)
	switch {
	case lc.Carry != nil:
		o.Carry = *lc.Carry
	case gc.Carry != nil:
		o.Carry = *gc.Carry
	}
	if s := pickList(nil, lc.SensitiveEnv, gc.SensitiveEnv); len(s) > 0 {
		o.SensitiveEnv = s
	}

	dc := detectorConfig(l)
	o.DetectorConfig = &dc
	if o.Weights, o.Thresholds, err = riskSettings(l); err != nil {
		return o, err
	}
	resolveSources(&o, l)
	o.Logger = log.StandardLogger()
	return o, nil
}

func detectorConfig(l config.Layers) detectors.Config {
	cfg := detectors.DefaultConfig()
	le, ge := l.Local.Entropy, l.Global.Entropy
	if le == nil {
		le = &config.EntropyConfig{}
	}
	if ge == nil {
		ge = &config.EntropyConfig{}
	}
	if v := pickFloat(0, le.MinBits, ge.MinBits); v != 0 {
		cfg.EntropyMinBits = v
	}
	if v := pickInt(0, le.MinLen, ge.MinLen); v != 0 {
		cfg.EntropyMinLen = v
	}
	if v := pickInt(0, le.MaxLen, ge.MaxLen); v != 0 {
		cfg.EntropyMaxLen = v
	}
	if le.RequireContext != nil || ge.RequireContext != nil {
		cfg.EntropyRequireContext = pickBool(false, le.RequireContext, ge.RequireContext)
	}
	if keys := pickList(nil, l.Local.SensitiveKeys, l.Global.SensitiveKeys); len(keys) > 0 {
		cfg.SensitiveKeys = keys
	}
	cfg.NoValidators = pickBool(flagNoValidators, l.Local.NoValidators, l.Global.NoValidators)
	cfg.GitleaksConfig = pickString(flagGitleaksCfg, strPtr(l.Local.GitleaksConfigPath()), strPtr(l.Global.GitleaksConfigPath()))
	cfg.Gitleaks = flagGitleaks || cfg.GitleaksConfig != "" || l.Local.GitleaksEnabled() || l.Global.GitleaksEnabled()
	return cfg
}

// riskSettings returns nil, nil when neither config overrides scoring.
// Local values win per field; kind weights merge over the defaults.
func riskSettings(l config.Layers) (*summary.Weights, *summary.Thresholds, error) {
	lr, gr := l.Local.Risk, l.Global.Risk
	if lr == nil && gr == nil {
		return nil, nil, nil
	}
	if lr == nil {
		lr = &config.RiskConfig{}
	}
	if gr == nil {
		gr = &config.RiskConfig{}
	}
	w := summary.DefaultWeights()
	if v := pickFloat(0, lr.ConfidenceWeight, gr.ConfidenceWeight); v != 0 {
		w.Confidence = v
	}
	if v := pickFloat(0, lr.OccurrenceWeight, gr.OccurrenceWeight); v != 0 {
		w.Occurrence = v
	}
	for _, m := range []map[string]float64{gr.KindWeights, lr.KindWeights} {
		for name, v := range m {
			k, ok := types.ParseKind(name)
			if !ok {
				return nil, nil, fmt.Errorf("risk.kind_weights: unknown kind %q", name)
			}
			w.Kind[k] = v
		}
	}
	t := summary.DefaultThresholds()
	if v := pickFloat(0, lr.High, gr.High); v != 0 {
		t.High = v
	}
	if v := pickFloat(0, lr.Medium, gr.Medium); v != 0 {
		t.Medium = v
	}
	if t.Medium > t.High {
		return nil, nil, fmt.Errorf("risk thresholds: medium (%g) above high (%g)", t.Medium, t.High)
	}
	return &w, &t, nil
}

// resolveSources applies source flags. Without any, the first config that
// lists sources is used, and failing that the current environment.
func resolveSources(o *core.Options, l config.Layers) {
	o.Env = flagEnv
	o.PIDs = flagPIDs
	o.Files = flagFiles
	o.URLs = flagURLs
	o.Images = flagImages
	o.Git = flagGit
	if flagK8s || len(flagNamespaces) > 0 {
		o.Kube = &core.KubeOptions{
			Kubeconfig: flagKubeconfig,
			Context:    flagKubeContext,
			Namespaces: flagNamespaces,
			Selector:   flagK8sSelector,
			ConfigMaps: flagConfigMaps,
		}
	}
	if hasSources(*o) {
		return
	}
	sc := l.Local.Sources
	if sc == nil {
		sc = l.Global.Sources
	}
	if sc != nil {
		o.Env = sc.Env != nil && *sc.Env
		o.PIDs = sc.Processes
		o.Files = sc.Files
		o.URLs = sc.URLs
		o.Images = sc.Images
		o.Git = sc.Git
		if k := sc.Kubernetes; k != nil {
			o.Kube = &core.KubeOptions{
				Kubeconfig: pickString(flagKubeconfig, k.Kubeconfig, nil),
				Context:    pickString(flagKubeContext, k.Context, nil),
				Namespaces: k.Namespaces,
				Selector:   pickString(flagK8sSelector, k.Selector, nil),
				ConfigMaps: pickBool(flagConfigMaps, k.ConfigMaps, nil),
			}
		}
	}
	if !hasSources(*o) {
		o.Env = true
	}
}

func hasSources(o core.Options) bool {
	return o.Env || len(o.PIDs) > 0 || len(o.Files) > 0 || len(o.URLs) > 0 ||
		len(o.Images) > 0 || len(o.Git) > 0 || o.Kube != nil
}

// sourceNames describes the requested sources for banners and history.
func sourceNames(o core.Options) []string {
	var out []string
	if o.Env {
		out = append(out, "env")
	}
	for _, p := range o.PIDs {
		out = append(out, "process:"+strconv.Itoa(int(p)))
	}
	for _, f := range o.Files {
		out = append(out, "file:"+f)
	}
	for _, u := range o.URLs {
		out = append(out, "http:"+u)
	}
	for _, i := range o.Images {
		out = append(out, "image:"+i)
	}
	for _, g := range o.Git {
		out = append(out, "git:"+g)
	}
	if k := o.Kube; k != nil {
		if len(k.Namespaces) == 0 {
			out = append(out, "kubernetes:(context)")
		}
		for _, ns := range k.Namespaces {
			out = append(out, "kubernetes:"+ns)
		}
	}
	return out
}

func countDetectors(o core.Options) int {
	cfg := detectors.DefaultConfig()
	if o.DetectorConfig != nil {
		cfg = *o.DetectorConfig
	}
	return len(detectors.Select(detectors.Default(cfg), o.Enable, o.Disable))
}

// deliver renders rep to out (unless toOut is false), the report file and
// the upload endpoint. Upload failures only warn.
func deliver(ctx context.Context, out io.Writer, rep *types.Report, l config.Layers, format report.Format, toOut bool, elapsed time.Duration, sources int) error {
	var sinks report.Multi
	if toOut {
		sinks = append(sinks, &report.WriterSink{
			W:      out,
			Format: format,
			Print: report.PrintOptions{
				NoColor:  pickBool(flagNoColor, l.Local.NoColor, l.Global.NoColor),
				Duration: elapsed,
				Sources:  sources,
				Width:    terminalWidth(),
			},
			Version: version,
		})
	}
	if flagOutputFile != "" {
		sinks = append(sinks, &report.FileSink{Path: flagOutputFile})
	}
	if err := sinks.Emit(ctx, rep); err != nil {
		return err
	}

	var lu, gu config.UploadConfig
	if l.Local.Upload != nil {
		lu = *l.Local.Upload
	}
	if l.Global.Upload != nil {
		gu = *l.Global.Upload
	}
	if url := pickString(flagUploadURL, lu.URL, gu.URL); url != "" {
		up := &report.HTTPSink{
			URL:     url,
			Token:   pickString(flagUploadToken, lu.Token, gu.Token),
			Version: version,
			NoMeta:  pickBool(flagNoUploadMeta, lu.NoMeta, gu.NoMeta),
		}
		if err := up.Emit(ctx, rep); err != nil {
			log.WithError(err).Warn("(grab) upload failed")
			fmt.Fprintln(os.Stderr, "upload warning:", err)
		}
	}
	return nil
}

// remember stores the report for `report --last` and, when asked, appends
// an audit record. Neither failure affects the run.
func remember(rep *types.Report, newFindings []types.Finding, names []string, elapsed time.Duration, baselinePath string, withAudit bool) {
	if store, err := cache.Open(""); err != nil {
		log.WithError(err).Debug("(grab) no cache directory")
	} else if err := store.SaveLast(rep, names, elapsed); err != nil {
		log.WithError(err).Warn("(grab) cannot store last report")
	}
	if !withAudit {
		return
	}
	path, err := audit.DefaultPath()
	if err != nil {
		log.WithError(err).Warn("(grab) no audit path")
		return
	}
	rec := audit.CreateRunRecord(rep, newFindings, names, elapsed, baselinePath)
	if err := audit.NewAuditLog(path).LogRun(rec); err != nil {
		log.WithError(err).Warn("(grab) cannot write audit record")
	}
}

func checkForUpdate(ctx context.Context) {
	if flagNoUpdateCheck {
		return
	}
	c, err := update.NewChecker()
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if latest, newer, _ := c.Check(ctx, version, false); newer && latest != "" {
		fmt.Fprintf(os.Stderr, "(new version available: v%s)  run 'livegrab update' to upgrade\n", latest)
	}
}
