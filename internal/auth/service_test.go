package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"budgetcal/internal/core"
	"budgetcal/internal/log"
	"budgetcal/internal/store/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestService(t *testing.T) (*Service, *memory.Store, *fakeClock) {
	t.Helper()
	users := memory.New()
	clk := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	svc, err := NewService(users, Options{Secret: testSecret, TTL: time.Hour, Now: clk.now}, log.Discard())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, users, clk
}

func addUser(t *testing.T, users *memory.Store, email, password, role, totpSecret string) core.User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatal(err)
	}
	u, err := users.CreateUser(context.Background(), core.User{
		Email: email, PasswordHash: hash, Role: role, TOTPSecret: totpSecret,
	})
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestNewServiceRejectsWeakSettings(t *testing.T) {
	if _, err := NewService(memory.New(), Options{Secret: "short", TTL: time.Hour}, nil); err == nil {
		t.Error("expected short secret to be rejected")
	}
	if _, err := NewService(memory.New(), Options{Secret: testSecret}, nil); err == nil {
		t.Error("expected zero ttl to be rejected")
	}
}

func TestSignInAndSession(t *testing.T) {
	svc, users, _ := newTestService(t)
	u := addUser(t, users, "lead@example.com", "s3cret", "Leader", "")

	token, id, err := svc.SignIn(context.Background(), " Lead@Example.com ", "s3cret", "")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if id.UserID != u.ID || id.Role != core.RoleLeader {
		t.Fatalf("unexpected identity %+v", id)
	}
	got, err := svc.Session(context.Background(), token)
	if err != nil || got != id {
		t.Fatalf("Session = %+v, %v", got, err)
	}
}

func TestSignInFailures(t *testing.T) {
	svc, users, _ := newTestService(t)
	addUser(t, users, "a@example.com", "pw", "", "")

	tests := []struct {
		name, email, password string
	}{
		{"unknown email", "nobody@example.com", "pw"},
		{"wrong password", "a@example.com", "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := svc.SignIn(context.Background(), tt.email, tt.password, ""); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestSignInWithTOTP(t *testing.T) {
	svc, users, clk := newTestService(t)
	secret, url, err := GenerateTOTP("t@example.com")
	if err != nil || secret == "" || url == "" {
		t.Fatalf("GenerateTOTP: %v", err)
	}
	addUser(t, users, "t@example.com", "pw", "", secret)

	if _, _, err := svc.SignIn(context.Background(), "t@example.com", "pw", ""); !errors.Is(err, ErrTOTPRequired) {
		t.Fatalf("expected ErrTOTPRequired, got %v", err)
	}
	if _, _, err := svc.SignIn(context.Background(), "t@example.com", "pw", "000000x"); !errors.Is(err, ErrInvalidTOTP) {
		t.Fatalf("expected ErrInvalidTOTP, got %v", err)
	}
	code, err := totp.GenerateCode(secret, clk.t)
	if err != nil {
		t.Fatal(err)
	}
	_, id, err := svc.SignIn(context.Background(), "t@example.com", "pw", code)
	if err != nil {
		t.Fatalf("SignIn with code: %v", err)
	}
	if id.Role != core.RoleNormal {
		t.Fatalf("missing role should resolve to normal, got %q", id.Role)
	}
}

func TestSessionExpiresAndRevokes(t *testing.T) {
	svc, users, clk := newTestService(t)
	addUser(t, users, "a@example.com", "pw", "", "")

	token, _, err := svc.SignIn(context.Background(), "a@example.com", "pw", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.SignOut(context.Background(), token); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := svc.Session(context.Background(), token); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}

	other, _, _ := svc.SignIn(context.Background(), "a@example.com", "pw", "")
	clk.t = clk.t.Add(2 * time.Hour)
	if _, err := svc.Session(context.Background(), other); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession after expiry, got %v", err)
	}
}

func TestRevocationSurvivesLaterSignOuts(t *testing.T) {
	svc, users, clk := newTestService(t)
	addUser(t, users, "victim@example.com", "pw", "", "")

	ctx := context.Background()
	victim, id, err := svc.SignIn(ctx, "victim@example.com", "pw", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.SignOut(ctx, victim); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2000; i++ {
		token, err := svc.issue(id)
		if err != nil {
			t.Fatal(err)
		}
		if err := svc.SignOut(ctx, token); err != nil {
			t.Fatal(err)
		}
	}

	clk.t = clk.t.Add(30 * time.Minute)
	svc.Revocations().CleanExpired()
	if _, err := svc.Session(ctx, victim); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked after later sign-outs, got %v", err)
	}
}

func TestSessionRejectsForeignTokens(t *testing.T) {
	svc, users, clk := newTestService(t)
	addUser(t, users, "a@example.com", "pw", "", "")
	foreign, err := NewService(users, Options{Secret: "another-secret-of-length", TTL: time.Hour, Now: clk.now}, nil)
	if err != nil {
		t.Fatal(err)
	}
	token, _, _ := foreign.SignIn(context.Background(), "a@example.com", "pw", "")

	for _, tok := range []string{token, "garbage", ""} {
		if _, err := svc.Session(context.Background(), tok); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("Session(%q) = %v, want ErrInvalidSession", tok, err)
		}
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("pw")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(hash, "pw") || CheckPassword(hash, "other") {
		t.Fatal("CheckPassword mismatch")
	}
	if _, err := HashPassword(""); err == nil {
		t.Fatal("empty password should be rejected")
	}
}
