package update

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redactyl/livegrab/internal/cache"
)

func newChecker(t *testing.T, url string) *Checker {
	t.Helper()
	s, err := cache.Open(t.TempDir())
	require.NoError(t, err)
	return &Checker{Store: s, URL: url}
}

func TestCheck_NoNetworkOrCI(t *testing.T) {
	t.Setenv("CI", "1")
	c := newChecker(t, "http://127.0.0.1:1")
	if latest, newer, err := c.Check(context.Background(), "1.0.0", false); err != nil || latest != "" || newer {
		t.Fatalf("expected no-op in CI; got latest=%q newer=%v err=%v", latest, newer, err)
	}
}

func TestIsNewer(t *testing.T) {
	cases := []struct {
		latest, current string
		want            bool
	}{
		{"1.2.3", "1.2.3", false},
		{"v1.3.0", "1.2.9", true},
		{"1.2.0", "v1.2.1", false},
		{"1.10.0", "1.9.0", true},
		{"1.2.3", "1.2.3-rc.1", true},
	}
	for _, tc := range cases {
		got, err := IsNewer(tc.latest, tc.current)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s vs %s", tc.latest, tc.current)
	}
	_, err := IsNewer("garbage", "1.0.0")
	assert.Error(t, err)
}

func TestCheck_UsesCacheWhenFresh(t *testing.T) {
	t.Setenv("CI", "")
	c := newChecker(t, "http://127.0.0.1:1")
	require.NoError(t, c.Store.Save(cacheName, state{LastChecked: time.Now(), Latest: "1.2.3"}))
	latest, newer, err := c.Check(context.Background(), "1.2.2", false)
	if err != nil {
		t.Fatal(err)
	}
	if latest != "1.2.3" || !newer {
		t.Fatalf("expected cached latest=1.2.3 and newer=true; got latest=%q newer=%v", latest, newer)
	}
}

func TestCheck_QueriesServerWhenStale(t *testing.T) {
	t.Setenv("CI", "")
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "livegrab-updater", r.Header.Get("User-Agent"))
		_ = json.NewEncoder(w).Encode(map[string]string{"tag_name": "v9.9.9"})
	}))
	defer srv.Close()

	c := newChecker(t, srv.URL)
	require.NoError(t, c.Store.Save(cacheName, state{LastChecked: time.Now().Add(-48 * time.Hour), Latest: "1.0.0"}))

	latest, newer, err := c.Check(context.Background(), "1.0.0", false)
	require.NoError(t, err)
	assert.Equal(t, "9.9.9", latest)
	assert.True(t, newer)

	// second call is served from the refreshed cache
	_, _, err = c.Check(context.Background(), "1.0.0", false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestCheck_ServerErrorIsNotFatal(t *testing.T) {
	t.Setenv("CI", "")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	latest, newer, err := newChecker(t, srv.URL).Check(context.Background(), "1.0.0", false)
	require.NoError(t, err)
	assert.Empty(t, latest)
	assert.False(t, newer)
}
