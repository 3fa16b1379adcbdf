package cache

import (
	"time"

	"github.com/redactyl/livegrab/internal/types"
)

const lastRunName = "last_run"

// LastRun is the most recent report, kept so it can be re-rendered without
// capturing again.
type LastRun struct {
	Report   *types.Report `json:"report"`
	SavedAt  time.Time     `json:"saved_at"`
	Sources  []string      `json:"sources,omitempty"`
	Duration string        `json:"duration,omitempty"`
}

// SaveLast stores r as the last run.
func (s Store) SaveLast(r *types.Report, sources []string, d time.Duration) error {
	return s.Save(lastRunName, LastRun{
		Report:   r,
		SavedAt:  time.Now(),
		Sources:  sources,
		Duration: d.String(),
	})
}

// LoadLast returns the last stored run, or ErrEmpty.
func (s Store) LoadLast() (LastRun, error) {
	var lr LastRun
	if err := s.Load(lastRunName, &lr); err != nil {
		return lr, err
	}
	if lr.Report == nil {
		return lr, ErrEmpty
	}
	return lr, nil
}
