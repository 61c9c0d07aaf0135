package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":3000" {
		t.Fatalf("expected default addr :3000, got %q", cfg.Addr)
	}
	if cfg.AdminUsername != "admin" {
		t.Fatalf("expected default admin username, got %q", cfg.AdminUsername)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("expected 24h session ttl, got %s", cfg.SessionTTL)
	}
	if len(cfg.TrustedProxies) != 0 {
		t.Fatalf("expected no trusted proxies by default, got %v", cfg.TrustedProxies)
	}
	if cfg.MinioEnabled() || cfg.HistoryEnabled() {
		t.Fatalf("expected minio and history disabled by default: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VITRINE_ADDR", ":9000")
	t.Setenv("VITRINE_DATA_DIR", "/var/lib/vitrine")
	t.Setenv("VITRINE_SESSION_TTL", "30m")
	t.Setenv("VITRINE_MINIO_ENDPOINT", "minio:9000")
	t.Setenv("VITRINE_HISTORY_DIR", "/var/lib/vitrine/history")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":9000" || cfg.DataDir != "/var/lib/vitrine" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Fatalf("expected 30m ttl, got %s", cfg.SessionTTL)
	}
	if !cfg.MinioEnabled() || !cfg.HistoryEnabled() {
		t.Fatalf("expected minio and history enabled: %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("unparsable duration", func(t *testing.T) {
		t.Setenv("VITRINE_SESSION_TTL", "soon")
		if _, err := Load(); err == nil {
			t.Fatal("expected error for unparsable duration")
		}
	})

	t.Run("non-positive ttl", func(t *testing.T) {
		t.Setenv("VITRINE_SESSION_TTL", "0s")
		if _, err := Load(); err == nil {
			t.Fatal("expected error for zero ttl")
		}
	})

	t.Run("non-positive upload limit", func(t *testing.T) {
		t.Setenv("VITRINE_MAX_UPLOAD_BYTES", "0")
		if _, err := Load(); err == nil {
			t.Fatal("expected error for zero upload limit")
		}
	})

	t.Run("bad trusted proxy", func(t *testing.T) {
		t.Setenv("VITRINE_TRUSTED_PROXIES", "10.0.0.1,not-an-ip")
		if _, err := Load(); err == nil {
			t.Fatal("expected error for unparsable trusted proxy")
		}
	})
}

func TestTrustedProxyPrefixes(t *testing.T) {
	t.Setenv("VITRINE_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	prefixes, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		t.Fatalf("TrustedProxyPrefixes() error = %v", err)
	}
	if len(prefixes) != 2 {
		t.Fatalf("expected 2 prefixes, got %v", prefixes)
	}
	if prefixes[0].String() != "10.0.0.0/8" || prefixes[1].String() != "192.0.2.7/32" {
		t.Fatalf("unexpected prefixes %v", prefixes)
	}
}
