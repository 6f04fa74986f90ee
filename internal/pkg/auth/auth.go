// Package auth resolves browser sessions and gates pages behind them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anicoll/counter-dashboard/internal/pkg/config"
	"github.com/anicoll/counter-dashboard/internal/pkg/model"
	"github.com/anicoll/counter-dashboard/pkg/hasher"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionInactive    = errors.New("session revoked or expired")
)

type Repository interface {
	CreateUser(ctx context.Context, user *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UserByID(ctx context.Context, id string) (*model.User, error)
	CreateSession(ctx context.Context, session *model.Session) error
	SessionByID(ctx context.Context, id string) (*model.Session, error)
	RevokeSession(ctx context.Context, id string, at time.Time) error
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// SessionState is what the rest of the app sees of the current session.
// User is nil when nobody is signed in.
type SessionState struct {
	User    *model.User
	Loading bool
}

// Session is returned by SignIn; Token goes into the session cookie.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *model.User
}

// Manager owns session state for the process. Build one at startup and pass
// it to whatever needs it.
type Manager struct {
	repo   Repository
	tokens *tokenService
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewManager(repo Repository, cfg *config.AuthConfig) *Manager {
	return &Manager{
		repo:   repo,
		tokens: newTokenService(cfg.SigningKey, cfg.Issuer),
		ttl:    cfg.SessionTTL,
		now:    time.Now,
		logger: zap.L(),
	}
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (m *Manager) CreateUser(ctx context.Context, email, displayName, password string) (*model.User, error) {
	email = normaliseEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email", config.ErrMissingValue)
	}
	hash, err := hasher.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		ID:           "usr_" + uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
	}
	if err := m.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	m.logger.Info("created user", zap.String("user_id", user.ID), zap.String("email", email))
	return user, nil
}

// EnsureUser creates the user unless the email is already registered.
func (m *Manager) EnsureUser(ctx context.Context, email, password string) error {
	if _, err := m.CreateUser(ctx, email, "", password); err != nil && !errors.Is(err, model.ErrUserExists) {
		return err
	}
	return nil
}

func (m *Manager) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := m.repo.UserByEmail(ctx, normaliseEmail(email))
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !hasher.PasswordCorrect(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	now := m.now()
	session := &model.Session{
		ID:        "ses_" + uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	token, err := m.tokens.sign(session.ID, user.ID, now, session.ExpiresAt)
	if err != nil {
		return nil, err
	}
	m.logger.Info("signed in", zap.String("user_id", user.ID), zap.String("session_id", session.ID))
	return &Session{Token: token, ExpiresAt: session.ExpiresAt, User: user}, nil
}

func (m *Manager) currentUser(ctx context.Context, token string) (*model.User, error) {
	c, err := m.tokens.parse(token)
	if err != nil {
		return nil, err
	}
	session, err := m.repo.SessionByID(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if !session.Active(m.now()) || session.UserID != c.Subject {
		return nil, ErrSessionInactive
	}
	return m.repo.UserByID(ctx, session.UserID)
}

// Resolve turns a session token into a SessionState. Any failure reads as
// "no session".
func (m *Manager) Resolve(ctx context.Context, token string) SessionState {
	if token == "" {
		return SessionState{}
	}
	user, err := m.currentUser(ctx, token)
	if err != nil {
		m.logger.Debug("session not resolved", zap.Error(err))
		return SessionState{}
	}
	return SessionState{User: user}
}

func (m *Manager) SignOut(ctx context.Context, token string) error {
	c, err := m.tokens.parse(token)
	if err != nil {
		return err
	}
	if err := m.repo.RevokeSession(ctx, c.ID, m.now()); err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}
	m.logger.Info("signed out", zap.String("user_id", c.Subject), zap.String("session_id", c.ID))
	return nil
}

// Cleanup drops sessions that are no longer usable.
func (m *Manager) Cleanup(ctx context.Context) (int64, error) {
	return m.repo.DeleteExpiredSessions(ctx, m.now())
}
