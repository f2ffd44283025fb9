// Package server exposes the availability store over HTTP so remote
// players can drive their timeline from this recorder.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mmuteeullah/TimeScope/internal/auth"
	"github.com/mmuteeullah/TimeScope/internal/config"
	"github.com/mmuteeullah/TimeScope/internal/fragments"
	"github.com/mmuteeullah/TimeScope/internal/store"
	"github.com/mmuteeullah/TimeScope/internal/timeline"
)

// FragmentsResponse is the wire shape of one availability lookup.
type FragmentsResponse struct {
	Channel     string `json:"channel"`
	Start       string `json:"start"`
	End         string `json:"end"`
	UnitSeconds int    `json:"unit_seconds"`
	// Cells is typed []int rather than the bitmap's []uint8 so it encodes
	// as a JSON array instead of base64.
	Cells []int `json:"cells"`
}

// TimeResponse carries the recorder's current instant.
type TimeResponse struct {
	ServerTime string `json:"server_time"`
}

// Server is the availability API.
type Server struct {
	store    *store.Store
	port     int
	logger   *log.Logger
	sessions *auth.SessionManager
	srv      *http.Server
}

// New creates a server over the given store with the API settings from
// the config.
func New(cfg config.APIConfig, st *store.Store) *Server {
	s := &Server{
		store:  st,
		port:   cfg.Port,
		logger: log.New(os.Stdout, "[API] ", log.LstdFlags),
	}
	if cfg.Authentication.Enabled {
		s.sessions = auth.NewSessionManager(
			cfg.Authentication.Username,
			cfg.Authentication.PasswordHash,
			cfg.Authentication.SessionTimeout,
		)
	}
	return s
}

// Handler builds the route table. Split out from Start so tests can run
// the API under httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)

	if s.sessions != nil {
		mux.HandleFunc("/login", s.handleLogin)
		mux.HandleFunc("/logout", s.handleLogout)
		mux.HandleFunc("/api/fragments", s.sessions.RequireAuth(s.handleFragments))
		mux.HandleFunc("/api/time", s.sessions.RequireAuth(s.handleTime))
		mux.HandleFunc("/api/channels", s.sessions.RequireAuth(s.handleChannels))
		s.logger.Println("Authentication enabled")
	} else {
		mux.HandleFunc("/api/fragments", s.handleFragments)
		mux.HandleFunc("/api/time", s.handleTime)
		mux.HandleFunc("/api/channels", s.handleChannels)
		s.logger.Println("Authentication disabled - public access")
	}
	return mux
}

// Start begins serving in the background.
func (s *Server) Start() {
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}
	s.logger.Printf("Starting availability API on http://0.0.0.0:%d", s.port)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("API server error: %v", err)
		}
	}()
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	if s.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(ctx); err != nil {
			s.logger.Printf("API shutdown error: %v", err)
		}
	}
	if s.sessions != nil {
		s.sessions.Close()
	}
	s.logger.Println("API stopped")
}

// handleFragments answers one availability query:
// /api/fragments?channel=&start=&end=&unit=[&min_score=][&region=]
func (s *Server) handleFragments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	channel := q.Get("channel")
	if channel == "" {
		httpError(w, http.StatusBadRequest, "channel parameter required")
		return
	}

	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid start, use RFC3339")
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid end, use RFC3339")
		return
	}
	if !timeline.NewRange(start, end).IsValid() {
		httpError(w, http.StatusBadRequest, "end must be after start")
		return
	}
	unit, err := strconv.Atoi(q.Get("unit"))
	if err != nil || unit <= 0 {
		httpError(w, http.StatusBadRequest, "unit must be a positive number of seconds")
		return
	}

	filter, err := parseFilter(q.Get("min_score"), q.Get("region"))
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	bm, err := s.store.Availability(r.Context(), fragments.Query{
		Start:   start,
		End:     end,
		Unit:    time.Duration(unit) * time.Second,
		Channel: channel,
		Filter:  filter,
	})
	if err != nil {
		s.logger.Printf("Availability query failed: %v", err)
		httpError(w, http.StatusInternalServerError, "availability query failed")
		return
	}

	cells := make([]int, len(bm))
	for i, c := range bm {
		cells[i] = int(c)
	}
	writeJSON(w, FragmentsResponse{
		Channel:     channel,
		Start:       start.Format(time.RFC3339),
		End:         end.Format(time.RFC3339),
		UnitSeconds: unit,
		Cells:       cells,
	})
}

// handleTime reports the recorder's clock.
func (s *Server) handleTime(w http.ResponseWriter, r *http.Request) {
	now, err := s.store.ServerTime(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, "clock unavailable")
		return
	}
	writeJSON(w, TimeResponse{ServerTime: now.Format(time.RFC3339Nano)})
}

// handleChannels lists channels with recordings.
func (s *Server) handleChannels(w http.ResponseWriter, _ *http.Request) {
	channels, err := s.store.Channels()
	if err != nil {
		s.logger.Printf("Channel listing failed: %v", err)
		httpError(w, http.StatusInternalServerError, "channel listing failed")
		return
	}
	if channels == nil {
		channels = []store.ChannelInfo{}
	}
	writeJSON(w, channels)
}

// handleHealth is a simple liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleLogin validates credentials from a form post and hands out a
// session cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		httpError(w, http.StatusBadRequest, "invalid form data")
		return
	}

	username := r.FormValue("username")
	if !s.sessions.Authenticate(username, r.FormValue("password")) {
		s.logger.Printf("Failed login for user '%s'", username)
		httpError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	sessionID, err := s.sessions.CreateSession(username)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	s.logger.Printf("User '%s' logged in", username)
	writeJSON(w, map[string]string{"status": "success"})
}

// handleLogout destroys the session, if any.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookie); err == nil {
		s.sessions.DestroySession(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, map[string]string{"status": "logged out"})
}

// parseFilter builds the motion filter from its query parameters.
// region is "x0,y0,x1,y1".
func parseFilter(minScore, region string) (*fragments.Filter, error) {
	if minScore == "" && region == "" {
		return nil, nil
	}
	f := &fragments.Filter{}
	if minScore != "" {
		v, err := strconv.ParseFloat(minScore, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid min_score")
		}
		f.MinScore = v
	}
	if region != "" {
		parts := strings.Split(region, ",")
		if len(parts) != 4 {
			return nil, fmt.Errorf("region must be x0,y0,x1,y1")
		}
		coords := make([]int, 4)
		for i, p := range parts {
			v, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return nil, fmt.Errorf("region must be x0,y0,x1,y1")
			}
			coords[i] = v
		}
		r := image.Rect(coords[0], coords[1], coords[2], coords[3])
		f.Region = &r
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
