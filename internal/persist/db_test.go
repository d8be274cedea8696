package persist

import (
	"testing"
	"time"

	"github.com/gridrealm/server/internal/config"
)

func TestPoolConfigAppliesDatabaseSection(t *testing.T) {
	cfg := config.Defaults().Database
	cfg.MaxOpenConns = 12
	cfg.MaxIdleConns = 3
	cfg.ConnMaxLifetime = 10 * time.Minute
	cfg.ConnMaxIdleTime = time.Minute

	pc, err := poolConfig(cfg)
	if err != nil {
		t.Fatalf("pool config: %v", err)
	}
	if pc.MaxConns != 12 || pc.MinConns != 3 {
		t.Fatalf("conns max=%d min=%d, want 12 and 3", pc.MaxConns, pc.MinConns)
	}
	if pc.MaxConnLifetime != 10*time.Minute || pc.MaxConnIdleTime != time.Minute {
		t.Fatalf("lifetime=%v idle=%v", pc.MaxConnLifetime, pc.MaxConnIdleTime)
	}
	if got := pc.ConnConfig.RuntimeParams["application_name"]; got != applicationName {
		t.Fatalf("application_name = %q", got)
	}
}

func TestPoolConfigKeepsDSNApplicationName(t *testing.T) {
	cfg := config.Defaults().Database
	cfg.DSN = "postgres://u:p@localhost:5432/db?application_name=ops"
	cfg.MaxOpenConns = 2
	cfg.MaxIdleConns = 9

	pc, err := poolConfig(cfg)
	if err != nil {
		t.Fatalf("pool config: %v", err)
	}
	if got := pc.ConnConfig.RuntimeParams["application_name"]; got != "ops" {
		t.Fatalf("application_name = %q, want ops", got)
	}
	if pc.MinConns != 2 {
		t.Fatalf("min conns %d exceeds max %d", pc.MinConns, pc.MaxConns)
	}
}

func TestPoolConfigRejectsBadDSN(t *testing.T) {
	cfg := config.Defaults().Database
	cfg.DSN = "postgres://%zz"
	if _, err := poolConfig(cfg); err == nil {
		t.Fatalf("expected error for malformed dsn")
	}
}
