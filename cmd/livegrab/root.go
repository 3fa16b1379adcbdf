package livegrab

import (
	"errors"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagLogLevel      string
	flagLogFormat     string
	flagNoColor       bool
	flagConfig        string
	flagFailOn        string
	flagOutput        string
	flagNoUpdateCheck bool

	version = "0.1.0"
)

// errFailOn is returned when a new finding reaches the --fail-on severity.
var errFailOn = errors.New("findings at or above the fail-on severity")

// rootCmd is the base Cobra command for the livegrab CLI.
var rootCmd = &cobra.Command{
	Use:   "livegrab",
	Short: "Capture secrets from live sources",
	Long: "livegrab reads environments, processes, files, endpoints, images, git checkouts and " +
		"Kubernetes objects, detects secrets as they stream by, and reports them deduplicated and ranked by risk.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error { return configureLogging(os.Stderr) },
}

// Execute runs the livegrab CLI. It should be called by the main package.
func Execute() {
	os.Exit(exitCode(rootCmd.Execute()))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errFailOn):
		return 1
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		return 2
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagLogLevel, "log-level", "warn", "log level: trace|debug|info|warn|error")
	pf.StringVar(&flagLogFormat, "log-format", "text", "log format: text|json")
	pf.BoolVar(&flagNoColor, "no-color", false, "disable colorized output")
	pf.StringVar(&flagConfig, "config", "", "config file (default .livegrab.yml, then $XDG_CONFIG_HOME/livegrab/config.yml)")
	pf.StringVar(&flagFailOn, "fail-on", "", "exit 1 when a new finding reaches low|medium|high (default none)")
	pf.StringVarP(&flagOutput, "output", "o", "", "output format: table|text|json|sarif")
	pf.BoolVar(&flagNoUpdateCheck, "no-update-check", false, "disable update check")
}

// configureLogging sets up the standard logger every package falls back to.
func configureLogging(w *os.File) error {
	lvl, err := log.ParseLevel(flagLogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	log.SetOutput(w)
	switch flagLogFormat {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		tty := isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd())
		log.SetFormatter(&log.TextFormatter{
			DisableColors: flagNoColor || !tty,
			FullTimestamp: !tty,
		})
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", flagLogFormat)
	}
	return nil
}
