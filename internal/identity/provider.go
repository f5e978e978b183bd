// Package identity is the application's identity provider: account storage,
// credential sign-in, anonymous sessions, and session tokens. The rest of
// the system depends only on the narrow contract of a stable identity
// string, nullable when unauthenticated.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Auth failures, categorized so callers can map them to user-facing
// messages. Anything else falls back to a generic message.
var (
	ErrEmailInUse    = errors.New("email already in use")
	ErrWrongPassword = errors.New("incorrect password")
	ErrUserNotFound  = errors.New("no account with that email")
	ErrMissingInput  = errors.New("email and password are required")
	ErrMissingName   = errors.New("display name is required")
)

// User is an authenticated account.
type User struct {
	// ID is the stable identity string other components key on.
	ID string

	// Email is empty for anonymous users.
	Email string

	// DisplayName is mutable via SetDisplayName.
	DisplayName string

	// Anonymous marks sessionless guest accounts.
	Anonymous bool
}

// Provider manages accounts in SQLite.
type Provider struct {
	db *sql.DB
}

// NewProvider opens (creating if needed) the account registry at path.
func NewProvider(path string) (*Provider, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE,
		password_hash TEXT,
		display_name TEXT NOT NULL DEFAULT '',
		anonymous INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Provider{db: db}, nil
}

// Close closes the underlying database connection.
func (p *Provider) Close() error {
	return p.db.Close()
}

// SignUp creates an email/password account with the given display name.
func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrMissingInput
	}
	if strings.TrimSpace(displayName) == "" {
		return nil, ErrMissingName
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: strings.TrimSpace(displayName),
	}

	// Uniqueness rides the schema constraint, so concurrent sign-ups with
	// the same email cannot race past a pre-check.
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, password_hash, display_name, anonymous, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`,
		user.ID, user.Email, string(hash), user.DisplayName, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}

	return user, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// SignIn authenticates an email/password account.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrMissingInput
	}

	var (
		user User
		hash string
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, display_name
		FROM accounts WHERE email = ? AND anonymous = 0`,
		email,
	).Scan(&user.ID, &user.Email, &hash, &user.DisplayName)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrWrongPassword
	}

	return &user, nil
}

// SignInAnonymously creates a throwaway guest identity. Guests can read and
// publish but have no credentials to return with.
func (p *Provider) SignInAnonymously(ctx context.Context) (*User, error) {
	user := &User{
		ID:        uuid.NewString(),
		Anonymous: true,
	}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO accounts (id, anonymous, created_at)
		VALUES (?, 1, ?)`,
		user.ID, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}

	return user, nil
}

// Lookup fetches an account by id.
func (p *Provider) Lookup(ctx context.Context, id string) (*User, error) {
	var (
		user  User
		email sql.NullString
		anon  int
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, anonymous
		FROM accounts WHERE id = ?`,
		id,
	).Scan(&user.ID, &email, &user.DisplayName, &anon)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	user.Email = email.String
	user.Anonymous = anon != 0
	return &user, nil
}

// SetDisplayName updates the mutable display-name attribute.
func (p *Provider) SetDisplayName(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrMissingName
	}

	res, err := p.db.ExecContext(ctx,
		`UPDATE accounts SET display_name = ? WHERE id = ?`, name, id,
	)
	if err != nil {
		return fmt.Errorf("update display name: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Message maps an auth error to its user-facing text.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrEmailInUse):
		return "Email already in use. Try logging in."
	case errors.Is(err, ErrWrongPassword):
		return "Incorrect password."
	case errors.Is(err, ErrUserNotFound):
		return "No account with that email."
	case errors.Is(err, ErrMissingInput):
		return "Please enter email and password."
	case errors.Is(err, ErrMissingName):
		return "Please enter a display name."
	default:
		return "Sign-in failed. Please try again."
	}
}
