package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anicoll/counter-dashboard/internal/pkg/config"
	"github.com/anicoll/counter-dashboard/internal/pkg/model"
	"github.com/anicoll/counter-dashboard/pkg/hasher"
)

func testConfig() *config.AuthConfig {
	return &config.AuthConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "counter-dashboard-test",
		SessionTTL: time.Hour,
		CookieName: "session",
	}
}

func newTestManager(t *testing.T) (*Manager, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	m := NewManager(repo, testConfig())
	_, err := m.CreateUser(context.Background(), " Ops@Example.com ", "Ops", "correct horse")
	require.NoError(t, err)
	return m, repo
}

func TestManager_SignInAndResolve(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	session, err := m.SignIn(ctx, "ops@example.com", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "ops@example.com", session.User.Email)

	state := m.Resolve(ctx, session.Token)
	require.NotNil(t, state.User)
	assert.Equal(t, session.User.ID, state.User.ID)
	assert.False(t, state.Loading)
}

func TestManager_SignInRejectsBadCredentials(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	tests := map[string]struct {
		email    string
		password string
	}{
		"wrong password": {email: "ops@example.com", password: "wrong horse"},
		"unknown email":  {email: "nobody@example.com", password: "correct horse"},
		"empty":          {},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := m.SignIn(ctx, tt.email, tt.password)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestManager_ResolveFailureIsNoSession(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	for _, token := range []string{"", "not.a.jwt", "xxx.yyy.zzz"} {
		state := m.Resolve(ctx, token)
		assert.Nil(t, state.User, token)
		assert.False(t, state.Loading, token)
	}

	other := NewManager(NewMemoryRepository(), &config.AuthConfig{SigningKey: "other-key", Issuer: "counter-dashboard-test", SessionTTL: time.Hour})
	foreign, err := other.tokens.sign("ses_x", "usr_x", time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, m.Resolve(ctx, foreign).User)
}

func TestManager_ExpiredSession(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	session, err := m.SignIn(ctx, "ops@example.com", "correct horse")
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	assert.Nil(t, m.Resolve(ctx, session.Token).User)
}

func TestManager_SignOutRevokes(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	session, err := m.SignIn(ctx, "ops@example.com", "correct horse")
	require.NoError(t, err)
	require.NoError(t, m.SignOut(ctx, session.Token))
	require.NoError(t, m.SignOut(ctx, session.Token))

	assert.Nil(t, m.Resolve(ctx, session.Token).User)
}

func TestManager_CreateUser(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.CreateUser(ctx, "ops@example.com", "", "another password")
	assert.ErrorIs(t, err, model.ErrUserExists)

	_, err = m.CreateUser(ctx, "new@example.com", "", "short")
	assert.ErrorIs(t, err, hasher.ErrPasswordTooShort)

	_, err = m.CreateUser(ctx, "  ", "", "long enough")
	assert.ErrorIs(t, err, config.ErrMissingValue)

	assert.NoError(t, m.EnsureUser(ctx, "ops@example.com", "whatever password"))
}

func TestManager_Cleanup(t *testing.T) {
	m, repo := newTestManager(t)
	ctx := context.Background()

	_, err := m.SignIn(ctx, "ops@example.com", "correct horse")
	require.NoError(t, err)
	n, err := m.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = m.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Empty(t, repo.sessions)
}
