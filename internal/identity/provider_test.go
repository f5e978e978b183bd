package identity

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := NewProvider(filepath.Join(t.TempDir(), "accounts.db"))
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestSignUpAndSignIn(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	user, err := p.SignUp(ctx, "Asha@Example.com", "hunter22", "Asha")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if user.ID == "" {
		t.Fatal("expected a stable identity string")
	}
	if user.Email != "asha@example.com" {
		t.Errorf("expected normalized email, got %q", user.Email)
	}

	signedIn, err := p.SignIn(ctx, "asha@example.com", "hunter22")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if signedIn.ID != user.ID {
		t.Errorf("identity changed across sign-in: %s vs %s", signedIn.ID, user.ID)
	}
	if signedIn.DisplayName != "Asha" {
		t.Errorf("DisplayName = %q", signedIn.DisplayName)
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	if _, err := p.SignUp(ctx, "a@example.com", "pw", "A"); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	// The duplicate INSERT hits the schema constraint, which must surface
	// as ErrEmailInUse rather than a raw driver error.
	if _, err := p.SignUp(ctx, "a@example.com", "pw2", "B"); !errors.Is(err, ErrEmailInUse) {
		t.Errorf("expected ErrEmailInUse, got %v", err)
	}
	if _, err := p.SignUp(ctx, "A@Example.COM", "pw3", "C"); !errors.Is(err, ErrEmailInUse) {
		t.Errorf("case variant: expected ErrEmailInUse, got %v", err)
	}
}

func TestSignInFailures(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	if _, err := p.SignUp(ctx, "a@example.com", "right", "A"); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	if _, err := p.SignIn(ctx, "missing@example.com", "pw"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := p.SignIn(ctx, "a@example.com", "wrong"); !errors.Is(err, ErrWrongPassword) {
		t.Errorf("expected ErrWrongPassword, got %v", err)
	}
	if _, err := p.SignIn(ctx, "", ""); !errors.Is(err, ErrMissingInput) {
		t.Errorf("expected ErrMissingInput, got %v", err)
	}
}

func TestSignUpRequiresDisplayName(t *testing.T) {
	p := newTestProvider(t)
	if _, err := p.SignUp(context.Background(), "a@example.com", "pw", "  "); !errors.Is(err, ErrMissingName) {
		t.Errorf("expected ErrMissingName, got %v", err)
	}
}

func TestAnonymousSession(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	user, err := p.SignInAnonymously(ctx)
	if err != nil {
		t.Fatalf("SignInAnonymously failed: %v", err)
	}
	if user.ID == "" || !user.Anonymous {
		t.Fatalf("unexpected anonymous user: %+v", user)
	}

	loaded, err := p.Lookup(ctx, user.ID)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !loaded.Anonymous || loaded.Email != "" {
		t.Errorf("unexpected loaded user: %+v", loaded)
	}
}

func TestSetDisplayName(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	user, err := p.SignInAnonymously(ctx)
	if err != nil {
		t.Fatalf("SignInAnonymously failed: %v", err)
	}

	if err := p.SetDisplayName(ctx, user.ID, "Explorer"); err != nil {
		t.Fatalf("SetDisplayName failed: %v", err)
	}

	loaded, err := p.Lookup(ctx, user.ID)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if loaded.DisplayName != "Explorer" {
		t.Errorf("DisplayName = %q", loaded.DisplayName)
	}

	if err := p.SetDisplayName(ctx, "missing", "X"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if err := p.SetDisplayName(ctx, user.ID, " "); !errors.Is(err, ErrMissingName) {
		t.Errorf("expected ErrMissingName, got %v", err)
	}
}

func TestMessageMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrEmailInUse, "Email already in use. Try logging in."},
		{ErrWrongPassword, "Incorrect password."},
		{ErrUserNotFound, "No account with that email."},
		{errors.New("boom"), "Sign-in failed. Please try again."},
	}
	for _, tt := range tests {
		if got := Message(tt.err); got != tt.want {
			t.Errorf("Message(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
