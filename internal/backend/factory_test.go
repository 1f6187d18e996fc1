package backend

import (
	"context"
	"path/filepath"
	"testing"

	"budgetcal/internal/config"
	"budgetcal/internal/core"
	"budgetcal/internal/log"
	"budgetcal/internal/propagation"
	"budgetcal/internal/store"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"unknown type", Config{Type: "sheets"}, true},
		{"amqp without url", Config{Type: MemoryBackend, PropagationMode: config.PropagationAMQP}, true},
		{"bad mode", Config{Type: MemoryBackend, PropagationMode: "carrier-pigeon"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", PropagationMode: "local"})
	if err != nil || cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "x.db" {
		t.Fatalf("unexpected conversion %+v (%v)", cfg, err)
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestCreateSQLiteBackendWithLocalPropagation(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(log.Discard())
	cfg := Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "cal.db")}

	res, err := f.CreateBackend(ctx, cfg)
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Cleanup()
	if err := res.Health(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}

	p, err := f.CreatePropagation(ctx, cfg, res.Storage)
	if err != nil {
		t.Fatalf("CreatePropagation: %v", err)
	}

	actor := core.Identity{UserID: "u1", Role: core.RoleNormal}
	if _, err := res.Storage.Insert(ctx, actor, core.NewEvent{
		OwnerID: "u1", Date: core.NewDate(2026, 1, 2), Name: "Tea", Value: 1, Color: core.DefaultColor,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	p.Propagator.Submit(ctx, propagation.Task{Actor: actor, Name: "Tea", Color: "#112233"})
	if err := p.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	got, err := res.Storage.FetchRange(ctx, actor, store.RangeQuery{From: core.NewDate(2026, 1, 1), To: core.NewDate(2026, 1, 31)})
	if err != nil || len(got) != 1 || got[0].Color != "#112233" {
		t.Fatalf("expected recolored event, got %+v (%v)", got, err)
	}
	if st := p.Propagator.Stats(); st.Succeeded != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	if res.Storage == nil || res.Cleanup != nil {
		t.Fatalf("unexpected result %+v", res)
	}
}
