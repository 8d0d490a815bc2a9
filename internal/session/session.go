package session

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"portal-service/internal/models"
)

var ErrNoSession = errors.New("no active session")

// Record is what a browser session id resolves to.
type Record struct {
	ViewerID string
	Token    string
}

// TokenStore persists browser sessions under random session ids.
// Load and Delete return sql.ErrNoRows when nothing is stored.
type TokenStore interface {
	Save(ctx context.Context, sessionID string, rec Record) error
	Load(ctx context.Context, sessionID string) (Record, error)
	Delete(ctx context.Context, sessionID string) error
	// Revoke removes every stored session that still holds token.
	Revoke(ctx context.Context, token string) error
}

// Session is the explicit auth context handed to the API client.
type Session struct {
	mu        sync.RWMutex
	viewerID  string
	token     string
	user      *models.User
	store     TokenStore
	expired   bool
	onExpired []func()
}

func New(viewerID, token string, store TokenStore) *Session {
	return &Session{viewerID: viewerID, token: token, store: store}
}

// Anonymous returns a session without credentials, used for login and register calls.
func Anonymous() *Session {
	return &Session{}
}

// Restore rebuilds a session from the record persisted under sessionID.
func Restore(ctx context.Context, store TokenStore, sessionID string) (*Session, error) {
	if store == nil || sessionID == "" {
		return nil, ErrNoSession
	}
	rec, err := store.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	if rec.Token == "" || rec.ViewerID == "" {
		return nil, ErrNoSession
	}
	return New(rec.ViewerID, rec.Token, store), nil
}

func (s *Session) ViewerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewerID
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && !s.expired
}

func (s *Session) Expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expired
}

func (s *Session) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

func (s *Session) SetUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &user
}

// Persist stores the current credentials under a new random session id and
// returns it. It returns an empty id when there is nothing to store.
func (s *Session) Persist(ctx context.Context) (string, error) {
	s.mu.RLock()
	viewerID, token, store := s.viewerID, s.token, s.store
	s.mu.RUnlock()

	if store == nil || viewerID == "" || token == "" {
		return "", nil
	}
	sessionID := uuid.NewString()
	if err := store.Save(ctx, sessionID, Record{ViewerID: viewerID, Token: token}); err != nil {
		return "", err
	}
	return sessionID, nil
}

// OnExpired registers fn to run once when the session expires.
func (s *Session) OnExpired(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpired = append(s.onExpired, fn)
}

// Expire revokes stored sessions holding this token and notifies listeners.
// Only the first call has effect.
func (s *Session) Expire(ctx context.Context) {
	s.mu.Lock()
	if s.expired {
		s.mu.Unlock()
		return
	}
	s.expired = true
	token, viewerID, store := s.token, s.viewerID, s.store
	s.token = ""
	s.user = nil
	callbacks := s.onExpired
	s.onExpired = nil
	s.mu.Unlock()

	if store != nil && token != "" {
		if err := store.Revoke(ctx, token); err != nil {
			log.Printf("warning: failed to revoke stored sessions for %s: %v", viewerID, err)
		}
	}
	for _, fn := range callbacks {
		fn()
	}
}
