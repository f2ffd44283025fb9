// Package auth guards the availability API with cookie sessions backed
// by a single bcrypt credential pair.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// SessionCookie is the cookie name carrying the session ID.
const SessionCookie = "timescope_session"

// Session represents a user session
type Session struct {
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionManager manages user sessions
type SessionManager struct {
	sessions     map[string]*Session
	mu           sync.RWMutex
	timeout      time.Duration
	username     string
	passwordHash string
	stop         chan struct{}
}

// NewSessionManager creates a new session manager and starts its expiry
// sweep. Call Close to stop the sweep.
func NewSessionManager(username, passwordHash string, timeoutMinutes int) *SessionManager {
	if timeoutMinutes <= 0 {
		timeoutMinutes = 60 // default 1 hour
	}

	sm := &SessionManager{
		sessions:     make(map[string]*Session),
		timeout:      time.Duration(timeoutMinutes) * time.Minute,
		username:     username,
		passwordHash: passwordHash,
		stop:         make(chan struct{}),
	}

	go sm.sweepExpired()

	return sm
}

// Close stops the background expiry sweep.
func (sm *SessionManager) Close() {
	close(sm.stop)
}

// Authenticate checks if username and password are valid
func (sm *SessionManager) Authenticate(username, password string) bool {
	if username != sm.username {
		return false
	}

	err := bcrypt.CompareHashAndPassword([]byte(sm.passwordHash), []byte(password))
	return err == nil
}

// CreateSession creates a new session and returns its ID
func (sm *SessionManager) CreateSession(username string) (string, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sessionID, err := generateSessionID()
	if err != nil {
		return "", err
	}

	sm.sessions[sessionID] = &Session{
		Username:  username,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(sm.timeout),
	}
	return sessionID, nil
}

// ValidateSession checks if a session exists and has not expired
func (sm *SessionManager) ValidateSession(sessionID string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return false
	}
	return !time.Now().After(session.ExpiresAt)
}

// RefreshSession extends the session expiry time
func (sm *SessionManager) RefreshSession(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, exists := sm.sessions[sessionID]; exists {
		session.ExpiresAt = time.Now().Add(sm.timeout)
	}
}

// DestroySession removes a session
func (sm *SessionManager) DestroySession(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.sessions, sessionID)
}

// ActiveSessions returns how many sessions are currently held
func (sm *SessionManager) ActiveSessions() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// RequireAuth wraps an API handler, rejecting requests without a valid
// session with a JSON 401. Valid sessions are refreshed on each request.
func (sm *SessionManager) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil || !sm.ValidateSession(cookie.Value) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
			return
		}

		sm.RefreshSession(cookie.Value)
		next(w, r)
	}
}

// sweepExpired periodically removes expired sessions
func (sm *SessionManager) sweepExpired() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-sm.stop:
			return
		case <-ticker.C:
			sm.mu.Lock()
			now := time.Now()
			for id, session := range sm.sessions {
				if now.After(session.ExpiresAt) {
					delete(sm.sessions, id)
				}
			}
			sm.mu.Unlock()
		}
	}
}

// generateSessionID generates a random session ID
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// HashPassword creates a bcrypt hash of the password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
