// Package auth signs users in with a password and an optional TOTP code and
// issues HS256 session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"budgetcal/internal/cache"
	"budgetcal/internal/core"
	"budgetcal/internal/log"
	"budgetcal/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTOTPRequired       = errors.New("verification code required")
	ErrInvalidTOTP        = errors.New("invalid verification code")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrSessionRevoked     = errors.New("session signed out")
)

const minSecretLength = 16

type claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Service implements store.Authenticator on top of a user directory.
type Service struct {
	users   store.UserDirectory
	secret  []byte
	ttl     time.Duration
	revoked *cache.ExpiringSet
	now     func() time.Time
	logger  *log.Logger
}

var _ store.Authenticator = (*Service)(nil)

type Options struct {
	Secret string
	TTL    time.Duration
	Now    func() time.Time
}

func NewService(users store.UserDirectory, opts Options, logger *log.Logger) (*Service, error) {
	if len(opts.Secret) < minSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", minSecretLength)
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Service{
		users:   users,
		secret:  []byte(opts.Secret),
		ttl:     opts.TTL,
		revoked: cache.NewExpiringSet().WithClock(opts.Now),
		now:     opts.Now,
		logger:  logger.WithComponent(log.ComponentAuth),
	}, nil
}

// Revocations exposes the signed-out token set for periodic cleanup.
func (s *Service) Revocations() cache.Cleaner {
	return s.revoked
}

func (s *Service) SignIn(ctx context.Context, email, password, code string) (string, core.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrUserNotFound) {
		s.logger.WarnContext(ctx, "Sign in for unknown account", log.FieldOperation, log.OpSignIn)
		return "", core.Identity{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", core.Identity{}, fmt.Errorf("look up user: %w", err)
	}
	if !CheckPassword(user.PasswordHash, password) {
		s.logger.WarnContext(ctx, "Sign in with wrong password", log.FieldUserID, user.ID)
		return "", core.Identity{}, ErrInvalidCredentials
	}
	if user.TOTPSecret != "" {
		code = strings.TrimSpace(code)
		if code == "" {
			return "", core.Identity{}, ErrTOTPRequired
		}
		if !VerifyTOTP(user.TOTPSecret, code, s.now()) {
			s.logger.WarnContext(ctx, "Sign in with wrong verification code", log.FieldUserID, user.ID)
			return "", core.Identity{}, ErrInvalidTOTP
		}
	}

	id := core.Identity{UserID: user.ID, Email: user.Email, Role: core.ResolveRole(user.Role)}
	token, err := s.issue(id)
	if err != nil {
		return "", core.Identity{}, err
	}
	s.logger.InfoContext(ctx, "Signed in",
		log.FieldUserID, id.UserID, log.FieldRole, string(id.Role), log.FieldOperation, log.OpSignIn)
	return token, id, nil
}

func (s *Service) issue(id core.Identity) (string, error) {
	now := s.now()
	c := claims{
		Email: id.Email,
		Role:  string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id.UserID,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

func (s *Service) parse(token string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if c.ID == "" || c.Subject == "" {
		return nil, ErrInvalidSession
	}
	return &c, nil
}

func (s *Service) Session(_ context.Context, token string) (core.Identity, error) {
	c, err := s.parse(token)
	if err != nil {
		return core.Identity{}, err
	}
	if s.revoked.Contains(c.ID) {
		return core.Identity{}, ErrSessionRevoked
	}
	return core.Identity{UserID: c.Subject, Email: c.Email, Role: core.ResolveRole(c.Role)}, nil
}

// SignOut revokes token until it would have expired anyway.
func (s *Service) SignOut(ctx context.Context, token string) error {
	c, err := s.parse(token)
	if err != nil {
		return err
	}
	remaining := c.ExpiresAt.Time.Sub(s.now())
	if remaining > 0 {
		s.revoked.Add(c.ID, remaining)
	}
	s.logger.InfoContext(ctx, "Signed out", log.FieldUserID, c.Subject, log.FieldOperation, log.OpSignOut)
	return nil
}
