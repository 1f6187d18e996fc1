package store

import (
	"context"
	"errors"

	"budgetcal/internal/core"
)

var (
	ErrNotFound     = errors.New("event not found")
	ErrForbidden    = errors.New("operation not permitted for this user")
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

type (
	// RangeQuery selects events with From <= date <= To. A non-empty OwnerID
	// narrows the selection to one owner.
	RangeQuery struct {
		From    core.Date
		To      core.Date
		OwnerID string
	}

	// Match selects events for a bulk update. Name is compared exactly
	// against the stored value. A non-empty OwnerID narrows the match.
	Match struct {
		Name    string
		OwnerID string
	}
)

// Ports for outbound adapters. Every implementation enforces the access
// policy on its own: the normal role only ever reads or writes the events
// it owns, whatever the caller asked for.
type (
	EventStore interface {
		// FetchRange returns events ordered by date, then creation time.
		FetchRange(ctx context.Context, actor core.Identity, q RangeQuery) ([]core.Event, error)
		// Insert stores a new event and returns the created record.
		Insert(ctx context.Context, actor core.Identity, e core.NewEvent) (core.Event, error)
		// UpdateByID patches one event and returns the updated record.
		UpdateByID(ctx context.Context, actor core.Identity, id string, patch core.EventPatch) (core.Event, error)
		// UpdateByMatch patches every matching event and reports how many changed.
		UpdateByMatch(ctx context.Context, actor core.Identity, m Match, patch core.EventPatch) (int64, error)
		DeleteByID(ctx context.Context, actor core.Identity, id string) error
	}

	// UserDirectory stores login accounts.
	UserDirectory interface {
		UserByEmail(ctx context.Context, email string) (core.User, error)
		CreateUser(ctx context.Context, u core.User) (core.User, error)
	}

	// Authenticator is the session service in front of a UserDirectory.
	Authenticator interface {
		// SignIn checks a credential pair (plus a TOTP code when the account has one)
		// and returns a session token.
		SignIn(ctx context.Context, email, password, code string) (token string, id core.Identity, err error)
		// Session resolves a token to the identity it was issued for.
		Session(ctx context.Context, token string) (core.Identity, error)
		SignOut(ctx context.Context, token string) error
	}
)

// Scope returns the owner filter the access policy imposes on actor.
func Scope(actor core.Identity) string {
	if actor.Role.Elevated() {
		return ""
	}
	return actor.UserID
}

// Permitted reports whether actor may mutate an event owned by ownerID.
func Permitted(actor core.Identity, ownerID string) bool {
	return actor.Role.Elevated() || ownerID == actor.UserID
}
