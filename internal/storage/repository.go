// Package storage is the SQL event store and user directory, backed by
// SQLite or PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"budgetcal/internal/core"
	"budgetcal/internal/log"
	"budgetcal/internal/store"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	return string(d)
}

const eventColumns = "id, user_id, date, name, value, color, done, created_at"

// Repository implements store.EventStore and store.UserDirectory.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	logger  *log.Logger
	now     func() time.Time
}

var (
	_ store.EventStore    = (*Repository)(nil)
	_ store.UserDirectory = (*Repository)(nil)
)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	// One writer at a time; the busy timeout covers the migration connection.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	return open(DialectSQLite, dsn, logger, 1)
}

func NewPostgresRepository(dsn string, logger *log.Logger) (*Repository, error) {
	return open(DialectPostgres, dsn, logger, 10)
}

func open(dialect Dialect, dsn string, logger *log.Logger, maxConns int) (*Repository, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	db.SetMaxOpenConns(maxConns)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, err
	}
	return &Repository{
		db:      db,
		dialect: dialect,
		logger:  logger.WithComponent(log.ComponentStorage),
		now:     time.Now,
	}, nil
}

// WithClock replaces the creation-time source. Intended for tests.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// rebind rewrites ? placeholders into the $n form PostgreSQL expects.
func (r *Repository) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (core.Event, error) {
	var (
		e       core.Event
		date    string
		created int64
	)
	if err := row.Scan(&e.ID, &e.OwnerID, &date, &e.Name, &e.Value, &e.Color, &e.Done, &created); err != nil {
		return core.Event{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Event{}, err
	}
	e.Date = d
	e.CreatedAt = time.Unix(0, created).UTC()
	return e, nil
}

func (r *Repository) FetchRange(ctx context.Context, actor core.Identity, q store.RangeQuery) ([]core.Event, error) {
	query := "SELECT " + eventColumns + " FROM events WHERE date >= ? AND date <= ?"
	args := []any{q.From.Key(), q.To.Key()}
	if scope := store.Scope(actor); scope != "" {
		query += " AND user_id = ?"
		args = append(args, scope)
	}
	if q.OwnerID != "" {
		query += " AND user_id = ?"
		args = append(args, q.OwnerID)
	}
	query += " ORDER BY date, created_at, seq"

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []core.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func (r *Repository) Insert(ctx context.Context, actor core.Identity, in core.NewEvent) (core.Event, error) {
	if err := in.Validate(); err != nil {
		return core.Event{}, err
	}
	if in.OwnerID != actor.UserID {
		return core.Event{}, store.ErrForbidden
	}
	e := core.Event{
		ID:        uuid.NewString(),
		OwnerID:   in.OwnerID,
		Date:      in.Date,
		Name:      in.Name,
		Value:     in.Value,
		Color:     in.Color,
		Done:      in.Done,
		CreatedAt: r.now().UTC(),
	}
	_, err := r.db.ExecContext(ctx, r.rebind(
		"INSERT INTO events ("+eventColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)"),
		e.ID, e.OwnerID, e.Date.Key(), e.Name, e.Value, e.Color, e.Done, e.CreatedAt.UnixNano())
	if err != nil {
		return core.Event{}, fmt.Errorf("insert event: %w", err)
	}
	r.logger.DebugContext(ctx, "Event stored", log.FieldEventID, e.ID, log.FieldDay, e.Date.Key())
	return e, nil
}

// setClause renders the columns of patch as "col = ?" pairs.
func setClause(p core.EventPatch) (string, []any) {
	var cols []string
	var args []any
	if p.Name != nil {
		cols = append(cols, "name = ?")
		args = append(args, *p.Name)
	}
	if p.Value != nil {
		cols = append(cols, "value = ?")
		args = append(args, *p.Value)
	}
	if p.Color != nil {
		cols = append(cols, "color = ?")
		args = append(args, *p.Color)
	}
	if p.Done != nil {
		cols = append(cols, "done = ?")
		args = append(args, *p.Done)
	}
	return strings.Join(cols, ", "), args
}

// lockedEvent loads id inside tx and checks that actor may change it.
func (r *Repository) lockedEvent(ctx context.Context, tx *sql.Tx, actor core.Identity, id string) (core.Event, error) {
	query := "SELECT " + eventColumns + " FROM events WHERE id = ?"
	if r.dialect == DialectPostgres {
		query += " FOR UPDATE"
	}
	e, err := scanEvent(tx.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Event{}, store.ErrNotFound
	}
	if err != nil {
		return core.Event{}, fmt.Errorf("load event: %w", err)
	}
	if !store.Permitted(actor, e.OwnerID) {
		return core.Event{}, store.ErrForbidden
	}
	return e, nil
}

func (r *Repository) UpdateByID(ctx context.Context, actor core.Identity, id string, patch core.EventPatch) (core.Event, error) {
	if err := patch.Validate(); err != nil {
		return core.Event{}, err
	}
	var out core.Event
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		current, err := r.lockedEvent(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		set, args := setClause(patch)
		args = append(args, id)
		if _, err := tx.ExecContext(ctx, r.rebind("UPDATE events SET "+set+" WHERE id = ?"), args...); err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		out = patch.Apply(current)
		return nil
	})
	return out, err
}

func (r *Repository) UpdateByMatch(ctx context.Context, actor core.Identity, m store.Match, patch core.EventPatch) (int64, error) {
	if err := patch.Validate(); err != nil {
		return 0, err
	}
	set, args := setClause(patch)
	query := "UPDATE events SET " + set + " WHERE name = ?"
	args = append(args, m.Name)
	if scope := store.Scope(actor); scope != "" {
		query += " AND user_id = ?"
		args = append(args, scope)
	}
	if m.OwnerID != "" {
		query += " AND user_id = ?"
		args = append(args, m.OwnerID)
	}
	res, err := r.db.ExecContext(ctx, r.rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("update events by name: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (r *Repository) DeleteByID(ctx context.Context, actor core.Identity, id string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := r.lockedEvent(ctx, tx, actor, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, r.rebind("DELETE FROM events WHERE id = ?"), id); err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		return nil
	})
}

func (r *Repository) UserByEmail(ctx context.Context, email string) (core.User, error) {
	var (
		u          core.User
		role, totp sql.NullString
		created    int64
	)
	err := r.db.QueryRowContext(ctx, r.rebind(
		"SELECT id, email, password_hash, role, totp_secret, created_at FROM users WHERE email = ?"),
		normalizeEmail(email)).Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &totp, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, store.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("query user: %w", err)
	}
	u.Role = role.String
	u.TOTPSecret = totp.String
	u.CreatedAt = time.Unix(0, created).UTC()
	return u, nil
}

func (r *Repository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	u.Email = normalizeEmail(u.Email)
	if u.Email == "" {
		return core.User{}, fmt.Errorf("create user: empty email")
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.now().UTC()
	}
	_, err := r.db.ExecContext(ctx, r.rebind(
		"INSERT INTO users (id, email, password_hash, role, totp_secret, created_at) VALUES (?, ?, ?, ?, ?, ?)"),
		u.ID, u.Email, u.PasswordHash, nullable(u.Role), nullable(u.TOTPSecret), u.CreatedAt.UnixNano())
	if isUniqueViolation(err) {
		return core.User{}, store.ErrUserExists
	}
	if err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	r.logger.InfoContext(ctx, "User created", log.FieldUserID, u.ID)
	return u, nil
}

func (r *Repository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
