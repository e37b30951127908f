package backend

import (
	"context"
	"path/filepath"
	"testing"

	"dompet/internal/config"
	"dompet/internal/core"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", AMQPQueue: "q"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "x.db" || cfg.AMQPQueue != "q" {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		cfg  Config
	}{
		{"memory", Config{Type: MemoryBackend}},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "ledger.db")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewFactory(nil).CreateBackend(ctx, tt.cfg)
			if err != nil {
				t.Fatalf("CreateBackend: %v", err)
			}
			defer res.Cleanup()

			if res.Broker != nil {
				t.Error("no broker expected without AMQP URL")
			}
			if _, err := res.Store.CreateAccount(ctx, core.Account{Name: "Cash", Type: "cash"}); err != nil {
				t.Fatalf("CreateAccount: %v", err)
			}
			accounts, err := res.Store.ListAccounts(ctx)
			if err != nil || len(accounts) != 1 {
				t.Fatalf("ListAccounts = %v, %v", accounts, err)
			}
		})
	}

	if _, err := NewFactory(nil).CreateBackend(ctx, Config{Type: "sheets"}); err == nil {
		t.Error("expected error for invalid type")
	}
}
