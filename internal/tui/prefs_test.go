package tui

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPrefs(t *testing.T) {
	prefs := DefaultPrefs()
	if prefs.HideKnown {
		t.Error("DefaultPrefs().HideKnown should be false")
	}
	if prefs.Sort != SortRisk {
		t.Errorf("DefaultPrefs().Sort = %q, want %q", prefs.Sort, SortRisk)
	}
}

func TestSaveAndLoadPrefs(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if err := SavePrefs(Prefs{HideKnown: true, Sort: SortSeen}); err != nil {
		t.Fatalf("SavePrefs: %v", err)
	}
	st, err := os.Stat(filepath.Join(dir, "livegrab", "tui_prefs.json"))
	if err != nil {
		t.Fatalf("prefs file not written: %v", err)
	}
	if st.Mode().Perm() != 0o600 {
		t.Errorf("prefs mode = %v, want 0600", st.Mode().Perm())
	}
	got := LoadPrefs()
	if !got.HideKnown || got.Sort != SortSeen {
		t.Errorf("LoadPrefs() = %+v", got)
	}
}

func TestLoadPrefs_CorruptFallsBack(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if err := os.MkdirAll(filepath.Join(dir, "livegrab"), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "livegrab", "tui_prefs.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := LoadPrefs(); got != DefaultPrefs() {
		t.Errorf("LoadPrefs() = %+v, want defaults", got)
	}
}
