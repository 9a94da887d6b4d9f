// Package accounts is the local credential store of dashboard users.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
	_ "modernc.org/sqlite"
)

const (
	currentVersion    = 1
	minPasswordLength = 6
	DefaultRole       = "operator"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var ErrUnknownSession = errors.New("unknown session")

// Result is what account operations report to the caller. Driver errors
// never reach it.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type Options struct {
	Logger *slog.Logger
	// LoginsPerMinute throttles login attempts; zero disables throttling.
	LoginsPerMinute int
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	limiter *rate.Limiter
	cost    int

	mu       sync.Mutex
	sessions map[string]int64
}

func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "linedash", "users.db"), nil
}

// Open opens (or creates) the SQLite user database at path and migrates it.
func Open(path string, opts Options) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create users db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open users db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec pragma: %w", err)
	}
	s := &Store{
		db:       db,
		logger:   opts.Logger,
		cost:     opts.BcryptCost,
		sessions: map[string]int64{},
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.cost == 0 {
		s.cost = bcrypt.DefaultCost
	}
	if opts.LoginsPerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.LoginsPerMinute)), opts.LoginsPerMinute)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version >= currentVersion {
		return nil
	}
	const ddl = `
	CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		email         TEXT UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'operator',
		name          TEXT NOT NULL DEFAULT '',
		created_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
	);
	`
	if _, err := s.db.Exec(ddl); err != nil {
		return err
	}
	_, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func (s *Store) Signup(ctx context.Context, req SignupRequest) Result {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return Result{Message: "All fields required"}
	}
	if !emailPattern.MatchString(email) {
		return Result{Message: "Invalid email format"}
	}
	if len(req.Password) < minPasswordLength {
		return Result{Message: fmt.Sprintf("Password must be at least %d characters", minPasswordLength)}
	}
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE email = ?", email).Scan(&exists)
	if err != nil {
		s.logger.Error("signup lookup failed", slog.String("error", err.Error()))
		return Result{Message: "Database error occurred"}
	}
	if exists > 0 {
		return Result{Message: "Email already exists"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		s.logger.Error("hash password failed", slog.String("error", err.Error()))
		return Result{Message: "Error processing password"}
	}
	_, err = s.db.ExecContext(ctx, "INSERT INTO users (email, password_hash, role, name) VALUES (?, ?, ?, ?)",
		email, string(hash), DefaultRole, strings.TrimSpace(req.Name))
	if err != nil {
		s.logger.Error("create user failed", slog.String("error", err.Error()))
		return Result{Message: "Error creating account"}
	}
	s.logger.Info("user created", slog.String("email", email))
	return Result{Success: true, Message: "Account created successfully"}
}

// Login checks the credentials and opens a session. Unknown emails and wrong
// passwords get the same message.
func (s *Store) Login(ctx context.Context, email, password string) Result {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Result{Message: "All fields required"}
	}
	if s.limiter != nil && !s.limiter.Allow() {
		s.logger.Warn("login throttled", slog.String("email", email))
		return Result{Message: "Too many login attempts, try again later"}
	}
	var id int64
	var hash string
	err := s.db.QueryRowContext(ctx, "SELECT id, password_hash FROM users WHERE email = ?", email).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{Message: "Invalid email or password"}
	}
	if err != nil {
		s.logger.Error("login lookup failed", slog.String("error", err.Error()))
		return Result{Message: "Database error occurred"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.logger.Error("password comparison failed", slog.String("error", err.Error()))
			return Result{Message: "Authentication error"}
		}
		return Result{Message: "Invalid email or password"}
	}
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = id
	s.mu.Unlock()
	s.logger.Info("login successful", slog.String("email", email))
	return Result{Success: true, Message: "Login successful", Token: token}
}

func (s *Store) Logout(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// CurrentUser returns the user behind a session token.
func (s *Store) CurrentUser(ctx context.Context, token string) (*User, error) {
	s.mu.Lock()
	id, ok := s.sessions[token]
	s.mu.Unlock()
	if !ok {
		return nil, ErrUnknownSession
	}
	var u User
	var created string
	err := s.db.QueryRowContext(ctx, "SELECT id, email, role, name, created_at FROM users WHERE id = ?", id).
		Scan(&u.ID, &u.Email, &u.Role, &u.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		s.Logout(token)
		return nil, ErrUnknownSession
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if ts, err := time.Parse(time.RFC3339, created); err == nil {
		u.CreatedAt = ts
	}
	return &u, nil
}

// PurgeInvalid deletes rows left without an email and reports how many went.
func (s *Store) PurgeInvalid(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE email = '' OR email IS NULL")
	if err != nil {
		return 0, fmt.Errorf("purge users: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}
