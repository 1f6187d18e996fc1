package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"budgetcal/internal/core"
	"budgetcal/internal/store"
)

// Store is an in-process event store and user directory. It applies the
// same access policy as the SQL repository.
type Store struct {
	mu     sync.Mutex
	seq    int64
	events []record
	users  map[string]core.User // keyed by lower-cased email
	now    func() time.Time
}

type record struct {
	seq   int64
	event core.Event
}

// seedFile is the YAML layout accepted by NewFromFile.
type seedFile struct {
	Users []struct {
		Email        string `yaml:"email"`
		PasswordHash string `yaml:"password_hash"`
		Role         string `yaml:"role"`
		TOTPSecret   string `yaml:"totp_secret"`
	} `yaml:"users"`
}

func New() *Store {
	return &Store{users: map[string]core.User{}, now: time.Now}
}

// NewFromFile seeds the user directory from a YAML file. A missing file
// yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse users file %s: %w", path, err)
	}
	for _, u := range seed.Users {
		if _, err := s.CreateUser(context.Background(), core.User{
			Email:        u.Email,
			PasswordHash: u.PasswordHash,
			Role:         u.Role,
			TOTPSecret:   u.TOTPSecret,
		}); err != nil {
			return nil, fmt.Errorf("seed user %s: %w", u.Email, err)
		}
	}
	return s, nil
}

// WithClock replaces the creation-time source. Intended for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func (s *Store) FetchRange(_ context.Context, actor core.Identity, q store.RangeQuery) ([]core.Event, error) {
	from, to := q.From.Key(), q.To.Key()
	scope := store.Scope(actor)

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []record
	for _, r := range s.events {
		key := r.event.Date.Key()
		if key < from || key > to {
			continue
		}
		if scope != "" && r.event.OwnerID != scope {
			continue
		}
		if q.OwnerID != "" && r.event.OwnerID != q.OwnerID {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ak, bk := a.event.Date.Key(), b.event.Date.Key(); ak != bk {
			return ak < bk
		}
		if !a.event.CreatedAt.Equal(b.event.CreatedAt) {
			return a.event.CreatedAt.Before(b.event.CreatedAt)
		}
		return a.seq < b.seq
	})
	events := make([]core.Event, len(out))
	for i, r := range out {
		events[i] = r.event
	}
	return events, nil
}

func (s *Store) Insert(_ context.Context, actor core.Identity, e core.NewEvent) (core.Event, error) {
	if err := e.Validate(); err != nil {
		return core.Event{}, err
	}
	if e.OwnerID != actor.UserID {
		return core.Event{}, store.ErrForbidden
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	ev := core.Event{
		ID:        uuid.NewString(),
		OwnerID:   e.OwnerID,
		Date:      e.Date,
		Name:      e.Name,
		Value:     e.Value,
		Color:     e.Color,
		Done:      e.Done,
		CreatedAt: s.now().UTC(),
	}
	s.events = append(s.events, record{seq: s.seq, event: ev})
	return ev, nil
}

func (s *Store) UpdateByID(_ context.Context, actor core.Identity, id string, patch core.EventPatch) (core.Event, error) {
	if err := patch.Validate(); err != nil {
		return core.Event{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Event{}, store.ErrNotFound
	}
	if !store.Permitted(actor, s.events[i].event.OwnerID) {
		return core.Event{}, store.ErrForbidden
	}
	s.events[i].event = patch.Apply(s.events[i].event)
	return s.events[i].event, nil
}

func (s *Store) UpdateByMatch(_ context.Context, actor core.Identity, m store.Match, patch core.EventPatch) (int64, error) {
	if err := patch.Validate(); err != nil {
		return 0, err
	}
	scope := store.Scope(actor)
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.events {
		ev := s.events[i].event
		if ev.Name != m.Name {
			continue
		}
		if scope != "" && ev.OwnerID != scope {
			continue
		}
		if m.OwnerID != "" && ev.OwnerID != m.OwnerID {
			continue
		}
		s.events[i].event = patch.Apply(ev)
		n++
	}
	return n, nil
}

func (s *Store) DeleteByID(_ context.Context, actor core.Identity, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return store.ErrNotFound
	}
	if !store.Permitted(actor, s.events[i].event.OwnerID) {
		return store.ErrForbidden
	}
	s.events = append(s.events[:i], s.events[i+1:]...)
	return nil
}

// UserByEmail implements store.UserDirectory.
func (s *Store) UserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return core.User{}, store.ErrUserNotFound
	}
	return u, nil
}

// CreateUser implements store.UserDirectory.
func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	key := strings.ToLower(strings.TrimSpace(u.Email))
	if key == "" {
		return core.User{}, fmt.Errorf("create user: empty email")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[key]; ok {
		return core.User{}, store.ErrUserExists
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = key
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}
	s.users[key] = u
	return u, nil
}

func (s *Store) indexOf(id string) int {
	for i, r := range s.events {
		if r.event.ID == id {
			return i
		}
	}
	return -1
}
