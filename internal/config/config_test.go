package config_test

import (
	"testing"

	"github.com/study-hall/studyhall-school/internal/config"
)

func TestDefaults(t *testing.T) {
	cfg := config.FromEnv()
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.DBDriver != "sqlite" {
		t.Errorf("DBDriver = %q", cfg.DBDriver)
	}
	if cfg.SiteID != "local" {
		t.Errorf("SiteID = %q", cfg.SiteID)
	}
	if len(cfg.CORSOrigins) == 0 {
		t.Error("no default CORS origins")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("CORS_ORIGINS", "https://a.school , https://b.school,")

	cfg := config.FromEnv()
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.DBDriver != "postgres" {
		t.Errorf("DBDriver = %q", cfg.DBDriver)
	}
	want := []string{"https://a.school", "https://b.school"}
	if len(cfg.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	for i := range want {
		if cfg.CORSOrigins[i] != want[i] {
			t.Errorf("origin %d = %q, want %q", i, cfg.CORSOrigins[i], want[i])
		}
	}
}
