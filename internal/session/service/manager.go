// Package service holds the session context: the single owner of authenticated state on the client.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"fxstreampro/client/internal/security"
	"fxstreampro/client/internal/session/domain"
)

var (
	// ErrEmptyToken is returned by Begin when the server handed back no token.
	ErrEmptyToken = errors.New("session: empty token")
	// ErrNotAuthenticated is returned when an operation needs a session and there is none.
	ErrNotAuthenticated = errors.New("session: not authenticated")
)

// Store is the persistence adapter the session context reads and writes.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Manager is the injected session context. It is rehydrated from Store at start-up and owns the
// token, role, cached profile and pending registration email from then on.
type Manager struct {
	store Store

	mu      sync.RWMutex
	current *domain.Session
	claims  *security.Claims // nil for opaque tokens
	profile *domain.Profile
	nowF    func() time.Time
}

// NewManager returns an empty session context over store. Call Rehydrate to load persisted state.
func NewManager(store Store) *Manager {
	return &Manager{store: store, nowF: time.Now}
}

// Rehydrate loads the persisted session. An expired JWT is dropped from the store; an unreadable
// profile is ignored.
func (m *Manager) Rehydrate(ctx context.Context) error {
	token, ok, err := m.store.Get(ctx, domain.KeyToken)
	if err != nil {
		return err
	}
	role, _, err := m.store.Get(ctx, domain.KeyRole)
	if err != nil {
		return err
	}
	var profile *domain.Profile
	if raw, ok, err := m.store.Get(ctx, domain.KeyProfile); err != nil {
		return err
	} else if ok && raw != "" {
		var p domain.Profile
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			log.Warn().Err(err).Msg("session: ignoring unreadable cached profile")
		} else {
			profile = &p
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = profile
	m.current, m.claims = nil, nil
	if !ok || strings.TrimSpace(token) == "" {
		return nil
	}
	s, claims := m.newSession(token, domain.ParseRole(role), profile)
	if claims.Expired(m.nowF()) {
		log.Info().Time("expired_at", s.ExpiresAt).Msg("session: stored token expired; sign in again")
		if err := m.store.Remove(ctx, domain.KeyToken); err != nil {
			return err
		}
		return m.store.Remove(ctx, domain.KeyRole)
	}
	m.current, m.claims = s, claims
	return nil
}

// newSession builds a Session, taking the user ID from the profile or else the token subject.
// The returned claims are nil when the token is not a JWT.
func (m *Manager) newSession(token string, role domain.Role, profile *domain.Profile) (*domain.Session, *security.Claims) {
	s := &domain.Session{Token: token, Role: role, UserID: profile.UserID()}
	claims, err := security.InspectToken(token)
	if err != nil {
		return s, nil
	}
	s.ExpiresAt = claims.ExpiresAt
	if s.UserID == "" {
		s.UserID = claims.Subject
	}
	return s, claims
}

// Begin persists a freshly issued session. profile may be nil.
func (m *Manager) Begin(ctx context.Context, token string, role domain.Role, profile *domain.Profile) error {
	if strings.TrimSpace(token) == "" {
		return ErrEmptyToken
	}
	if err := m.store.Set(ctx, domain.KeyToken, token); err != nil {
		return err
	}
	if err := m.store.Set(ctx, domain.KeyRole, string(role)); err != nil {
		return err
	}
	if profile != nil {
		if err := m.saveProfile(ctx, profile); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if profile != nil {
		m.profile = profile.Clone()
	}
	m.current, m.claims = m.newSession(token, role, m.profile)
	return nil
}

func (m *Manager) saveProfile(ctx context.Context, p *domain.Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, domain.KeyProfile, string(raw))
}

// Logout clears the token, role, profile and any pending registration email, in memory and in the store.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.current, m.claims = nil, nil
	m.profile = nil
	m.mu.Unlock()

	var errs []error
	for _, k := range []string{domain.KeyToken, domain.KeyRole, domain.KeyProfile, domain.KeyPendingEmail} {
		if err := m.store.Remove(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Current returns a copy of the live session. ok is false when signed out or the token has expired.
func (m *Manager) Current() (domain.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return domain.Session{}, false
	}
	if m.claims.Expired(m.nowF()) {
		return domain.Session{}, false
	}
	return *m.current, true
}

// Token returns the bearer token for outgoing requests. Expired tokens are reported as absent.
func (m *Manager) Token(ctx context.Context) (string, bool) {
	s, ok := m.Current()
	if !ok {
		return "", false
	}
	return s.Token, true
}

// Role returns the role of the live session, or RoleUser when signed out.
func (m *Manager) Role() domain.Role {
	if s, ok := m.Current(); ok {
		return s.Role
	}
	return domain.RoleUser
}

// UserID returns the signed-in user's ID. It survives token expiry so callers can tell
// "never signed in" apart from "signed in but the token is gone".
func (m *Manager) UserID() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id := m.profile.UserID(); id != "" {
		return id, true
	}
	if m.current != nil && m.current.UserID != "" {
		return m.current.UserID, true
	}
	return "", false
}

// Profile returns a copy of the cached profile, or nil.
func (m *Manager) Profile() *domain.Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profile.Clone()
}

// EnrolledBatchIDs returns the batches the cached profile is enrolled in.
func (m *Manager) EnrolledBatchIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.profile == nil {
		return nil
	}
	return append([]string(nil), m.profile.EnrolledBatches...)
}

// RecordEnrollment adds batchID to the cached profile and persists it.
func (m *Manager) RecordEnrollment(ctx context.Context, batchID string) error {
	m.mu.Lock()
	if m.profile == nil {
		id := ""
		if m.current != nil {
			id = m.current.UserID
		}
		if id == "" {
			m.mu.Unlock()
			return ErrNotAuthenticated
		}
		m.profile = &domain.Profile{ID: id}
	}
	if !m.profile.AddEnrollment(batchID) {
		m.mu.Unlock()
		return nil
	}
	p := m.profile.Clone()
	m.mu.Unlock()
	return m.saveProfile(ctx, p)
}

// SetPendingEmail remembers the email awaiting OTP verification.
func (m *Manager) SetPendingEmail(ctx context.Context, email string) error {
	return m.store.Set(ctx, domain.KeyPendingEmail, email)
}

// PendingEmail returns the email awaiting OTP verification. ok is false when none is stored.
func (m *Manager) PendingEmail(ctx context.Context) (string, bool, error) {
	email, ok, err := m.store.Get(ctx, domain.KeyPendingEmail)
	if err != nil || !ok || strings.TrimSpace(email) == "" {
		return "", false, err
	}
	return email, true, nil
}

// ClearPendingEmail forgets the pending registration email.
func (m *Manager) ClearPendingEmail(ctx context.Context) error {
	return m.store.Remove(ctx, domain.KeyPendingEmail)
}
