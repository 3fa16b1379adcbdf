package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return p
}

func TestLoadFile_Basic(t *testing.T) {
	dir := t.TempDir()
	p := writeTemp(t, dir, "livegrab.yaml", `
timeout: 5s
workers: 4
best_effort: true
sensitive_env: ["MY_*"]
sources:
  env: true
  processes: [1, 42]
  files: ["/etc/app/*.env"]
  kubernetes:
    namespaces: [prod]
    configmaps: false
risk:
  confidence_weight: 50
  kind_weights:
    token: 0.9
  high: 70
gitleaks:
  enabled: true
  config: rules.toml
`)
	cfg, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Workers == nil || *cfg.Workers != 4 {
		t.Fatalf("expected workers=4, got %#v", cfg.Workers)
	}
	d, err := Duration(cfg.Timeout, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)
	assert.True(t, *cfg.BestEffort)
	assert.Equal(t, []string{"MY_*"}, cfg.SensitiveEnv)
	require.NotNil(t, cfg.Sources)
	assert.Equal(t, []int32{1, 42}, cfg.Sources.Processes)
	assert.Equal(t, []string{"prod"}, cfg.Sources.Kubernetes.Namespaces)
	assert.False(t, *cfg.Sources.Kubernetes.ConfigMaps)
	assert.Equal(t, 0.9, cfg.Risk.KindWeights["token"])
	assert.Equal(t, 70.0, *cfg.Risk.High)
	assert.Nil(t, cfg.Risk.Medium)
	assert.True(t, cfg.GitleaksEnabled())
	assert.Equal(t, "rules.toml", cfg.GitleaksConfigPath())
}

func TestLoadFile_Malformed(t *testing.T) {
	p := writeTemp(t, t.TempDir(), "bad.yml", "workers: [\n")
	_, err := LoadFile(p)
	assert.Error(t, err)
}

func TestDuration(t *testing.T) {
	d, err := Duration(nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)
	bad := "soon"
	_, err = Duration(&bad, time.Second)
	assert.Error(t, err)
}

func TestLoadLocal_PrefersDotfile(t *testing.T) {
	dir := t.TempDir()
	writeTemp(t, dir, "livegrab.yaml", "workers: 1\n")
	writeTemp(t, dir, ".livegrab.yaml", "workers: 7\n")
	cfg, err := LoadLocal(dir)
	if err != nil {
		t.Fatalf("LoadLocal: %v", err)
	}
	if cfg.Workers == nil || *cfg.Workers != 7 {
		t.Fatalf("expected workers=7 from .livegrab.yaml, got %#v", cfg.Workers)
	}
}

func TestLoadLocal_NoConfig(t *testing.T) {
	_, err := LoadLocal(t.TempDir())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadGlobal_XDG_Config(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "livegrab")
	require.NoError(t, os.MkdirAll(cfgDir, 0o755))
	writeTemp(t, cfgDir, "config.yml", "workers: 9\n")
	t.Setenv("XDG_CONFIG_HOME", dir)
	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("LoadGlobal: %v", err)
	}
	if cfg.Workers == nil || *cfg.Workers != 9 {
		t.Fatalf("expected workers=9 from global config, got %#v", cfg.Workers)
	}
}

func TestLoadGlobal_NoConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "")
	if _, err := LoadGlobal(); err == nil {
		t.Fatal("expected error when no global config dir exists")
	}
}

func TestLoad_Layers(t *testing.T) {
	xdg := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(xdg, "livegrab"), 0o755))
	writeTemp(t, filepath.Join(xdg, "livegrab"), "config.yml", "workers: 2\nstrict: true\n")
	t.Setenv("XDG_CONFIG_HOME", xdg)

	dir := t.TempDir()
	writeTemp(t, dir, ".livegrab.yml", "workers: 3\n")
	l, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, 3, *l.Local.Workers)
	assert.Equal(t, 2, *l.Global.Workers)
	assert.True(t, *l.Global.Strict)

	explicit := writeTemp(t, t.TempDir(), "custom.yml", "workers: 5\n")
	l, err = Load(dir, explicit)
	require.NoError(t, err)
	assert.Equal(t, 5, *l.Local.Workers)

	_, err = Load(dir, filepath.Join(dir, "missing.yml"))
	assert.Error(t, err, "an explicit config must exist")
}

func TestLoad_NothingPresent(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	l, err := Load(t.TempDir(), "")
	require.NoError(t, err)
	assert.Nil(t, l.Local.Workers)
	assert.Nil(t, l.Global.Workers)
}
