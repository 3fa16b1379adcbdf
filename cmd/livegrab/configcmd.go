package livegrab

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/redactyl/livegrab/internal/config"
)

var (
	cfgPreset        string
	cfgPath          string
	cfgEnable        string
	cfgDisable       string
	cfgWorkers       int
	cfgTimeout       string
	cfgMinConfidence float64
	cfgNoColor       bool
	cfgFiles         []string
	cfgForce         bool
)

func init() {
	cfgCmd := &cobra.Command{Use: "config", Short: "Configuration helpers"}
	rootCmd.AddCommand(cfgCmd)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a .livegrab.yml with selected detectors, sources and options",
		RunE:  runConfigInit,
	}
	cfgCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&cfgPreset, "preset", "standard", "detector preset: minimal | standard | maximal")
	initCmd.Flags().StringVar(&cfgPath, "path", ".livegrab.yml", "output file path")
	initCmd.Flags().StringVar(&cfgEnable, "enable", "", "comma-separated detector IDs to enable (overrides preset if set)")
	initCmd.Flags().StringVar(&cfgDisable, "disable", "", "comma-separated detector IDs to disable")
	initCmd.Flags().IntVar(&cfgWorkers, "workers", 0, "concurrent source readers (0 = one per source)")
	initCmd.Flags().StringVar(&cfgTimeout, "timeout", "30s", "overall capture deadline")
	initCmd.Flags().Float64Var(&cfgMinConfidence, "min-confidence", 0.0, "minimum detector confidence (0.0-1.0)")
	initCmd.Flags().BoolVar(&cfgNoColor, "no-color", false, "disable color output by default")
	initCmd.Flags().StringSliceVar(&cfgFiles, "file", nil, "files or globs to read on every grab")
	initCmd.Flags().BoolVar(&cfgForce, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the local and global config files in effect",
		RunE:  runConfigShow,
	}
	cfgCmd.AddCommand(showCmd)
}

// presetEnable maps a preset to an enable list; "" means every detector.
func presetEnable(preset string) (string, error) {
	switch strings.ToLower(preset) {
	case "minimal":
		return "prefix,pattern", nil
	case "standard":
		return "prefix,pattern,sensitive_key,entropy_context", nil
	case "maximal":
		return "", nil
	}
	return "", fmt.Errorf("unknown preset %q (want minimal, standard or maximal)", preset)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	enable := strings.TrimSpace(cfgEnable)
	if enable == "" {
		var err error
		if enable, err = presetEnable(cfgPreset); err != nil {
			return err
		}
	}
	fc := config.FileConfig{
		Timeout:       optStrPtr(cfgTimeout),
		Workers:       intPtr(cfgWorkers),
		MinConfidence: floatPtr(cfgMinConfidence),
		Enable:        optStrPtr(enable),
		Disable:       optStrPtr(cfgDisable),
		NoColor:       boolPtr(cfgNoColor),
		Baseline:      strPtr(defaultBaseline),
		Sources:       &config.SourcesConfig{Env: boolPtr(true), Files: cfgFiles},
	}
	if strings.EqualFold(cfgPreset, "maximal") && cfgEnable == "" {
		fc.Gitleaks = &config.GitleaksConfig{Enabled: boolPtr(true)}
	}

	if _, err := os.Stat(cfgPath); err == nil && !cfgForce {
		return fmt.Errorf("%s exists; use --force to overwrite", cfgPath)
	}
	b, err := yaml.Marshal(&fc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfgPath, b, 0o644); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Wrote", cfgPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	l, err := loadLayers()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	show := func(title string, fc config.FileConfig) error {
		b, err := yaml.Marshal(&fc)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "# %s\n%s\n", title, b)
		return nil
	}
	local := "local (.livegrab.yml)"
	if flagConfig != "" {
		local = "local (" + flagConfig + ")"
	}
	if err := show(local, l.Local); err != nil {
		return err
	}
	global := "global"
	if dir, err := config.GlobalDir(); err == nil {
		global = "global (" + filepath.Join(dir, "config.yml") + ")"
	}
	return show(global, l.Global)
}
