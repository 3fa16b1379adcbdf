package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// ErrEmpty is returned by Load when nothing has been stored under a name.
var ErrEmpty = errors.New("cache entry not found")

// Store keeps small JSON documents in one directory.
type Store struct {
	dir string
}

// Dir returns the default cache directory, $XDG_CACHE_HOME/livegrab or the
// platform equivalent.
func Dir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "livegrab"), nil
}

// Open returns a store rooted at dir, or at Dir() when dir is empty.
func Open(dir string) (Store, error) {
	if dir == "" {
		d, err := Dir()
		if err != nil {
			return Store{}, err
		}
		dir = d
	}
	return Store{dir: dir}, nil
}

func (s Store) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Load decodes the document stored under name into v.
func (s Store) Load(name string, v any) error {
	b, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return ErrEmpty
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Save replaces the document stored under name. Files are owner-only.
func (s Store) Save(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "."+name+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path(name))
}
