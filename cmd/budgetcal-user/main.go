// Command budgetcal-user creates calendar accounts.
//
// With a SQL backend the user is written to the database. With the memory
// backend an entry for USERS_FILE is printed instead.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"budgetcal/internal/auth"
	"budgetcal/internal/backend"
	"budgetcal/internal/cli"
	"budgetcal/internal/config"
	"budgetcal/internal/core"
	"budgetcal/internal/log"
	"budgetcal/internal/storage"
)

type seedEntry struct {
	Email        string `yaml:"email"`
	PasswordHash string `yaml:"password_hash"`
	Role         string `yaml:"role,omitempty"`
	TOTPSecret   string `yaml:"totp_secret,omitempty"`
}

func main() {
	email := flag.String("email", "", "account email (required)")
	role := flag.String("role", string(core.RoleNormal), "leader or normal")
	withTOTP := flag.Bool("totp", false, "enrol the account in TOTP and print the otpauth URL")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentAuth)

	if err := run(logger, *email, *role, *withTOTP); err != nil {
		fmt.Fprintln(os.Stderr, "budgetcal-user:", err)
		os.Exit(1)
	}
}

func run(logger *log.Logger, email, role string, withTOTP bool) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("-email is required")
	}
	switch core.Role(role) {
	case core.RoleLeader, core.RoleNormal:
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	password, err := readPassword()
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	u := core.User{Email: email, PasswordHash: hash, Role: role}
	var otpURL string
	if withTOTP {
		u.TOTPSecret, otpURL, err = auth.GenerateTOTP(email)
		if err != nil {
			return err
		}
	}

	cfg := config.Load()
	if cfg.DataBackend == backend.MemoryBackend.String() {
		out, err := yaml.Marshal(map[string][]seedEntry{"users": {{
			Email: u.Email, PasswordHash: u.PasswordHash, Role: u.Role, TOTPSecret: u.TOTPSecret,
		}}})
		if err != nil {
			return fmt.Errorf("encode seed entry: %w", err)
		}
		fmt.Print(string(out))
	} else if err := createUser(logger, cfg, u); err != nil {
		return err
	}

	if otpURL != "" {
		fmt.Fprintln(os.Stderr, "Add this account to your authenticator app:")
		fmt.Fprintln(os.Stderr, otpURL)
	}
	return nil
}

func createUser(logger *log.Logger, cfg *config.Config, u core.User) error {
	var (
		dialect storage.Dialect
		dsn     string
		open    func() (*storage.Repository, error)
	)
	switch cfg.DataBackend {
	case backend.PostgresBackend.String():
		dialect, dsn = storage.DialectPostgres, cfg.DatabaseURL
		open = func() (*storage.Repository, error) { return storage.NewPostgresRepository(dsn, logger) }
	default:
		dialect, dsn = storage.DialectSQLite, cfg.SQLiteDBPath
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
		open = func() (*storage.Repository, error) { return storage.NewSQLiteRepository(dsn, logger) }
	}
	if err := storage.RunMigrations(dialect, dsn); err != nil {
		return err
	}
	repo, err := open()
	if err != nil {
		return err
	}
	defer repo.Close()

	created, err := repo.CreateUser(context.Background(), u)
	if err != nil {
		return fmt.Errorf("create %s: %w", u.Email, err)
	}
	fmt.Printf("created %s (%s) id=%s\n", created.Email, core.ResolveRole(created.Role), created.ID)
	return nil
}

// readPassword takes BUDGETCAL_PASSWORD when set, otherwise one line of stdin.
func readPassword() (string, error) {
	if p := os.Getenv("BUDGETCAL_PASSWORD"); p != "" {
		return p, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	p := strings.TrimRight(line, "\r\n")
	if len(p) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	return p, nil
}
