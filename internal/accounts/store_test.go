package accounts

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	opts.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.MinCost
	}
	s, err := Open(filepath.Join(t.TempDir(), "users.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSignupValidation(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	tests := []struct {
		name string
		req  SignupRequest
		want string
	}{
		{"missing email", SignupRequest{Password: "secret1"}, "All fields required"},
		{"missing password", SignupRequest{Email: "a@b.io"}, "All fields required"},
		{"bad email", SignupRequest{Email: "not-an-email", Password: "secret1"}, "Invalid email format"},
		{"short password", SignupRequest{Email: "a@b.io", Password: "12345"}, "Password must be at least 6 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.Signup(ctx, tt.req)
			assert.False(t, res.Success)
			assert.Equal(t, tt.want, res.Message)
		})
	}
}

func TestSignupAndLogin(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	res := s.Signup(ctx, SignupRequest{Email: "qa@plant.io", Password: "bath-line", Name: "QA"})
	require.True(t, res.Success, res.Message)

	dup := s.Signup(ctx, SignupRequest{Email: "qa@plant.io", Password: "another"})
	assert.False(t, dup.Success)
	assert.Equal(t, "Email already exists", dup.Message)

	wrong := s.Login(ctx, "qa@plant.io", "nope-nope")
	assert.False(t, wrong.Success)
	unknown := s.Login(ctx, "ghost@plant.io", "bath-line")
	assert.False(t, unknown.Success)
	assert.Equal(t, wrong.Message, unknown.Message)
	assert.Equal(t, "Invalid email or password", unknown.Message)

	ok := s.Login(ctx, "qa@plant.io", "bath-line")
	require.True(t, ok.Success)
	require.NotEmpty(t, ok.Token)

	user, err := s.CurrentUser(ctx, ok.Token)
	require.NoError(t, err)
	assert.Equal(t, "qa@plant.io", user.Email)
	assert.Equal(t, DefaultRole, user.Role)
	assert.Equal(t, "QA", user.Name)
	assert.False(t, user.CreatedAt.IsZero())

	s.Logout(ok.Token)
	_, err = s.CurrentUser(ctx, ok.Token)
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestLoginThrottled(t *testing.T) {
	s := newTestStore(t, Options{LoginsPerMinute: 2})
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		res := s.Login(ctx, "ghost@plant.io", "whatever")
		assert.Equal(t, "Invalid email or password", res.Message)
	}
	res := s.Login(ctx, "ghost@plant.io", "whatever")
	assert.False(t, res.Success)
	assert.Equal(t, "Too many login attempts, try again later", res.Message)
}

func TestPurgeInvalid(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()
	require.True(t, s.Signup(ctx, SignupRequest{Email: "keep@plant.io", Password: "secret1"}).Success)
	_, err := s.db.Exec(`INSERT INTO users (email, password_hash) VALUES ('', 'x'), (NULL, 'y')`)
	require.NoError(t, err)

	n, err := s.PurgeInvalid(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var remaining int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&remaining))
	assert.Equal(t, 1, remaining)
}

func TestReopenKeepsUsers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.db")
	opts := Options{Logger: slog.New(slog.NewJSONHandler(io.Discard, nil)), BcryptCost: bcrypt.MinCost}
	s, err := Open(path, opts)
	require.NoError(t, err)
	require.True(t, s.Signup(context.Background(), SignupRequest{Email: "a@b.io", Password: "secret1"}).Success)
	require.NoError(t, s.Close())

	s, err = Open(path, opts)
	require.NoError(t, err)
	defer s.Close()
	assert.True(t, s.Login(context.Background(), "a@b.io", "secret1").Success)
}
