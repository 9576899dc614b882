package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bidhub/bidhub/internal/config"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "valid full config",
			yaml: `
server:
  port: 9090
  outbox_size: 32
database:
  host: "db.example.com"
  port: 5433
  user: "bidhub"
  password: "secret"
  dbname: "bidhub"
  sslmode: "require"
  driver: "postgres"
bidding:
  min_increment: "25"
  sweep_interval: 10s
telemetry:
  service_name: "bidhub-prod"
  otlp_endpoint: "localhost:4318"
`,
			wantErr: false,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Server.Port != 9090 {
					t.Errorf("got server port %d, want %d", cfg.Server.Port, 9090)
				}
				if cfg.Database.Port != 5433 {
					t.Errorf("got db port %d, want %d", cfg.Database.Port, 5433)
				}
				if got := cfg.Bidding.Increment(); !got.Equal(decimal.NewFromInt(25)) {
					t.Errorf("got increment %s, want 25", got)
				}
				if cfg.Bidding.SweepInterval != 10*time.Second {
					t.Errorf("got sweep interval %s, want 10s", cfg.Bidding.SweepInterval)
				}
				if cfg.Telemetry.ServiceName != "bidhub-prod" {
					t.Errorf("got service name %q, want %q", cfg.Telemetry.ServiceName, "bidhub-prod")
				}
			},
		},
		{
			name: "defaults applied",
			yaml: `
database:
  user: "bidhub"
`,
			wantErr: false,
			check: func(t *testing.T, cfg *config.Config) {
				t.Helper()
				if cfg.Server.Port != 8080 {
					t.Errorf("got server port %d, want default %d", cfg.Server.Port, 8080)
				}
				if cfg.Database.Driver != "postgres" {
					t.Errorf("got driver %q, want default %q", cfg.Database.Driver, "postgres")
				}
				if got := cfg.Bidding.Increment(); !got.Equal(decimal.NewFromInt(10)) {
					t.Errorf("got increment %s, want default 10", got)
				}
			},
		},
		{
			name: "unknown driver rejected",
			yaml: `
database:
  driver: "sqlite"
`,
			wantErr: true,
		},
		{
			name: "bad increment rejected",
			yaml: `
bidding:
  min_increment: "ten dollars"
`,
			wantErr: true,
		},
		{
			name: "negative sweep interval rejected",
			yaml: `
bidding:
  sweep_interval: -1s
`,
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			yaml:    `server: [not a map`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o600); err != nil {
				t.Fatalf("writing temp config: %v", err)
			}

			cfg, err := config.Load(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && err == nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host: "localhost", Port: 5432, User: "u", Password: "p", DBName: "d", SSLMode: "disable",
	}
	want := "host=localhost port=5432 user=u password=p dbname=d sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
