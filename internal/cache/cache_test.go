package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redactyl/livegrab/internal/types"
)

func TestLoadSave(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	var got map[string]string
	if err := s.Load("entries", &got); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	require.NoError(t, s.Save("entries", map[string]string{"a": "deadbeef"}))

	st, err := os.Stat(filepath.Join(dir, "entries.json"))
	if err != nil {
		t.Fatalf("cache file not written: %v", err)
	}
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	require.NoError(t, s.Load("entries", &got))
	assert.Equal(t, "deadbeef", got["a"])
}

func TestLastRun(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.LoadLast()
	assert.ErrorIs(t, err, ErrEmpty)

	r := &types.Report{
		RunID:       "run-9",
		TotalUnique: 1,
		ByKind:      map[types.SecretKind]int{types.KindPassword: 1},
		Findings: []types.Finding{{
			Capture:         types.Capture{ID: "fp", Kind: types.KindPassword, Value: []byte("hunter2hunter2")},
			OccurrenceCount: 1,
		}},
	}
	require.NoError(t, s.SaveLast(r, []string{"file:/etc/app.env"}, 2*time.Second))

	lr, err := s.LoadLast()
	require.NoError(t, err)
	assert.Equal(t, "run-9", lr.Report.RunID)
	assert.Equal(t, []string{"file:/etc/app.env"}, lr.Sources)
	assert.Equal(t, "2s", lr.Duration)
	require.Len(t, lr.Report.Findings, 1)
	assert.Nil(t, lr.Report.Findings[0].Value, "raw values are never persisted")
}

func TestDir_UsesXDG(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", base)
	d, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "livegrab"), d)
}
