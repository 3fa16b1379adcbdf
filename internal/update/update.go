package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	semver3 "github.com/blang/semver"
	semver "github.com/blang/semver/v4"
	"github.com/rhysd/go-github-selfupdate/selfupdate"
	log "github.com/sirupsen/logrus"

	"github.com/redactyl/livegrab/internal/cache"
)

const (
	repoSlug  = "redactyl/livegrab"
	cacheName = "update"
)

// LatestURL is the release endpoint queried by Check.
var LatestURL = "https://api.github.com/repos/" + repoSlug + "/releases/latest"

type state struct {
	LastChecked time.Time `json:"last_checked"`
	Latest      string    `json:"latest"`
}

// Checker compares the running version with the latest release, caching
// the answer for a day.
type Checker struct {
	Store  cache.Store
	Client *http.Client
	URL    string
	TTL    time.Duration
}

// NewChecker uses the default cache directory.
func NewChecker() (*Checker, error) {
	s, err := cache.Open("")
	if err != nil {
		return nil, err
	}
	return &Checker{Store: s}, nil
}

func (c *Checker) latestOnline(ctx context.Context) (string, error) {
	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}
	url := c.URL
	if url == "" {
		url = LatestURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "livegrab-updater")
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("release lookup: %s", resp.Status)
	}
	var obj struct {
		TagName string `json:"tag_name"`
		Name    string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return "", err
	}
	v := obj.TagName
	if v == "" {
		v = obj.Name
	}
	return v, nil
}

// Check returns (latest, isNewer, error). It is a no-op in CI or when
// noNetwork is set. Lookup failures are logged and reported as "not newer".
func (c *Checker) Check(ctx context.Context, current string, noNetwork bool) (string, bool, error) {
	if os.Getenv("CI") != "" || noNetwork {
		return "", false, nil
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	var st state
	_ = c.Store.Load(cacheName, &st)
	latest := st.Latest
	if time.Since(st.LastChecked) > ttl || latest == "" {
		v, err := c.latestOnline(ctx)
		if err != nil {
			log.WithError(err).Debug("(update) release lookup failed")
		} else {
			latest = normalize(v)
			st = state{LastChecked: time.Now(), Latest: latest}
			if err := c.Store.Save(cacheName, st); err != nil {
				log.WithError(err).Debug("(update) cannot save update state")
			}
		}
	}
	if latest == "" || normalize(current) == "" {
		return latest, false, nil
	}
	newer, err := IsNewer(latest, current)
	if err != nil {
		return latest, false, err
	}
	return latest, newer, nil
}

func normalize(v string) string {
	v = strings.TrimSpace(v)
	return strings.TrimPrefix(v, "v")
}

// IsNewer reports whether latest is a higher semantic version than current.
func IsNewer(latest, current string) (bool, error) {
	l, err := semver.ParseTolerant(latest)
	if err != nil {
		return false, fmt.Errorf("parse latest version %q: %w", latest, err)
	}
	c, err := semver.ParseTolerant(current)
	if err != nil {
		return false, fmt.Errorf("parse current version %q: %w", current, err)
	}
	return l.GT(c), nil
}

// SelfUpdate replaces the running binary with the latest GitHub release and
// returns the installed version.
func SelfUpdate(current string) (string, error) {
	ver, err := semver.ParseTolerant(current)
	if err != nil {
		ver = semver.MustParse("0.0.0")
	}
	rel, err := selfupdate.UpdateSelf(semver3.MustParse(ver.String()), repoSlug)
	if err != nil {
		return "", err
	}
	return rel.Version.String(), nil
}
