// Package query talks to a remote recorder's availability API. The
// client implements the same interfaces as the local store, so the
// widget does not care which side of the network its data lives on.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/mmuteeullah/TimeScope/internal/fragments"
)

// Client is an HTTP client for the availability API. It implements
// fragments.Querier and fragments.ServerClock.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	logger   *log.Logger

	// newBackOff builds the retry policy for the initial time sync.
	newBackOff func() backoff.BackOff
}

// fragmentsPayload mirrors the server's fragments response.
type fragmentsPayload struct {
	UnitSeconds int   `json:"unit_seconds"`
	Cells       []int `json:"cells"`
}

type timePayload struct {
	ServerTime string `json:"server_time"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// NewClient builds a client for the recorder at rawURL. Credentials are
// optional; when set, a 401 triggers a session login and one retry.
func NewClient(rawURL, username, password string) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("server url must include scheme and host: %s", rawURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	return &Client{
		baseURL:  strings.TrimRight(u.String(), "/"),
		username: username,
		password: password,
		http:     &http.Client{Timeout: 15 * time.Second, Jar: jar},
		logger:   log.New(os.Stdout, "[Query] ", log.LstdFlags),
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}, nil
}

// Availability fetches one bitmap from the remote recorder.
func (c *Client) Availability(ctx context.Context, q fragments.Query) (fragments.Bitmap, error) {
	v := url.Values{}
	v.Set("channel", q.Channel)
	v.Set("start", q.Start.Format(time.RFC3339))
	v.Set("end", q.End.Format(time.RFC3339))
	v.Set("unit", fmt.Sprint(int(q.Unit/time.Second)))
	if q.Filter != nil {
		v.Set("min_score", fmt.Sprint(q.Filter.MinScore))
		if r := q.Filter.Region; r != nil {
			v.Set("region", fmt.Sprintf("%d,%d,%d,%d", r.Min.X, r.Min.Y, r.Max.X, r.Max.Y))
		}
	}

	var payload fragmentsPayload
	if err := c.getJSON(ctx, "/api/fragments?"+v.Encode(), &payload); err != nil {
		return nil, err
	}

	bm := make(fragments.Bitmap, len(payload.Cells))
	for i, cell := range payload.Cells {
		if cell != 0 {
			bm[i] = 1
		}
	}
	return bm, nil
}

// ServerTime fetches the recorder's current instant.
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	var payload timePayload
	if err := c.getJSON(ctx, "/api/time", &payload); err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, payload.ServerTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing server time %q: %w", payload.ServerTime, err)
	}
	return t, nil
}

// SyncLoop seeds and then periodically refreshes the playback clock from
// the recorder. The initial sync retries with exponential backoff so a
// recorder that is still booting does not strand the player; later
// failures just log and keep the previous baseline. Returns when ctx is
// done.
func (c *Client) SyncLoop(ctx context.Context, interval time.Duration, apply func(time.Time)) {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	t, err := backoff.Retry(ctx, func() (time.Time, error) {
		return c.ServerTime(ctx)
	}, backoff.WithBackOff(c.newBackOff()), backoff.WithMaxElapsedTime(2*time.Minute))
	if err != nil {
		c.logger.Printf("Initial server time sync failed: %v", err)
	} else {
		apply(t)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t, err := c.ServerTime(ctx)
			if err != nil {
				c.logger.Printf("Server time sync failed: %v", err)
				continue
			}
			apply(t)
		}
	}
}

// Login opens a session with the configured credentials.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{"username": {c.username}, "password": {c.password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login rejected: %s", apiError(resp))
	}
	c.logger.Printf("Logged in to %s as %s", c.baseURL, c.username)
	return nil
}

// getJSON runs one GET, logging in and retrying once on a 401 when
// credentials are configured.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && c.username != "" {
		resp.Body.Close()
		if err := c.Login(ctx); err != nil {
			return err
		}
		if resp, err = c.get(ctx, path); err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", path, apiError(resp))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return resp, nil
}

// apiError extracts the server's error message, falling back to the
// HTTP status.
func apiError(resp *http.Response) string {
	var payload errorPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Sprintf("%s (%s)", payload.Error, resp.Status)
	}
	return resp.Status
}
