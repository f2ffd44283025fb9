package query

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmuteeullah/TimeScope/internal/auth"
	"github.com/mmuteeullah/TimeScope/internal/config"
	"github.com/mmuteeullah/TimeScope/internal/fragments"
	"github.com/mmuteeullah/TimeScope/internal/server"
	"github.com/mmuteeullah/TimeScope/internal/store"
)

// newAPIServer runs the real availability API over a synthetic tree so
// client tests exercise the full wire round trip.
func newAPIServer(t *testing.T, apiCfg config.APIConfig) *httptest.Server {
	t.Helper()
	base := t.TempDir()
	dir := filepath.Join(base, "cam1", "recordings", "2025-03-10")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, name := range []string{"10-00-00.ts", "11-30-00.ts"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	s := server.New(apiCfg, store.New(base, 1800))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestNewClientValidatesURL(t *testing.T) {
	_, err := NewClient("not a url", "", "")
	assert.Error(t, err)
	_, err = NewClient("/just/a/path", "", "")
	assert.Error(t, err)
	_, err = NewClient("http://recorder:8089", "", "")
	assert.NoError(t, err)
}

func TestAvailabilityRoundTrip(t *testing.T) {
	ts := newAPIServer(t, config.APIConfig{})
	c, err := NewClient(ts.URL, "", "")
	require.NoError(t, err)

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.Local)
	bm, err := c.Availability(context.Background(), fragments.Query{
		Start:   day.Add(10 * time.Hour),
		End:     day.Add(12 * time.Hour),
		Unit:    30 * time.Minute,
		Channel: "cam1",
	})
	require.NoError(t, err)
	assert.Equal(t, fragments.Bitmap{1, 0, 0, 1}, bm)
}

func TestAvailabilityServerError(t *testing.T) {
	ts := newAPIServer(t, config.APIConfig{})
	c, err := NewClient(ts.URL, "", "")
	require.NoError(t, err)

	// Zero-duration range is rejected by the server with a 400.
	now := time.Now()
	_, err = c.Availability(context.Background(), fragments.Query{
		Start: now, End: now, Unit: time.Second, Channel: "cam1",
	})
	assert.Error(t, err)
}

func TestServerTimeRoundTrip(t *testing.T) {
	ts := newAPIServer(t, config.APIConfig{})
	c, err := NewClient(ts.URL, "", "")
	require.NoError(t, err)

	got, err := c.ServerTime(context.Background())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), got, 5*time.Second)
}

func TestClientLogsInOn401(t *testing.T) {
	hash, err := auth.HashPassword("secret")
	require.NoError(t, err)
	ts := newAPIServer(t, config.APIConfig{
		Authentication: config.AuthConfig{
			Enabled:        true,
			Username:       "admin",
			PasswordHash:   hash,
			SessionTimeout: 5,
		},
	})

	c, err := NewClient(ts.URL, "admin", "secret")
	require.NoError(t, err)

	// The first request hits a 401, logs in and retries transparently.
	got, err := c.ServerTime(context.Background())
	require.NoError(t, err)
	assert.False(t, got.IsZero())

	// Wrong credentials surface as an error instead.
	bad, err := NewClient(ts.URL, "admin", "nope")
	require.NoError(t, err)
	_, err = bad.ServerTime(context.Background())
	assert.Error(t, err)
}

func TestSyncLoopRetriesInitialSync(t *testing.T) {
	var failures int32 = 2
	real := newAPIServer(t, config.APIConfig{})
	// Fail the first requests, then hand off to the real API.
	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&failures, -1) >= 0 {
			http.Error(w, "starting up", http.StatusServiceUnavailable)
			return
		}
		resp, err := http.Get(real.URL + r.URL.String())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()
		w.WriteHeader(resp.StatusCode)
		io.Copy(w, resp.Body)
	}))
	defer flaky.Close()

	c, err := NewClient(flaky.URL, "", "")
	require.NoError(t, err)
	c.newBackOff = func() backoff.BackOff {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 5 * time.Millisecond
		return bo
	}

	var mu sync.Mutex
	var applied []time.Time
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.SyncLoop(ctx, 10*time.Millisecond, func(t time.Time) {
			mu.Lock()
			applied = append(applied, t)
			mu.Unlock()
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(applied) >= 2
	}, 5*time.Second, 10*time.Millisecond, "initial sync plus at least one periodic resync")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SyncLoop did not stop on context cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, ts := range applied {
		assert.WithinDuration(t, time.Now(), ts, time.Minute)
	}
}
