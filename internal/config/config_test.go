package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadServerDefaults(t *testing.T) {
	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("load server config: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("expected default addr :8080, got %q", cfg.Addr)
	}
	if cfg.OwnerTokenTTL != 720*time.Hour {
		t.Errorf("expected default owner token TTL 720h, got %v", cfg.OwnerTokenTTL)
	}
	if cfg.Limits().MaxParticipants != 20 {
		t.Errorf("expected default participant limit 20, got %d", cfg.Limits().MaxParticipants)
	}
}

func TestLoadServerOverrides(t *testing.T) {
	t.Setenv("RECEIPTSPLIT_MAX_PARTICIPANTS", "4")
	t.Setenv("RECEIPTSPLIT_FREE_SESSIONS_PER_DEVICE", "2")
	t.Setenv("RECEIPTSPLIT_JWT_SECRET", "s3cret")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("load server config: %v", err)
	}
	if got := cfg.Limits(); got.MaxParticipants != 4 || got.FreeSessionsPerDevice != 2 {
		t.Errorf("unexpected limits: %+v", got)
	}
	if cfg.JWTSecret != "s3cret" {
		t.Errorf("expected secret from env, got %q", cfg.JWTSecret)
	}
}

func TestLoadServerErrors(t *testing.T) {
	t.Run("malformed value", func(t *testing.T) {
		t.Setenv("RECEIPTSPLIT_MAX_PARTICIPANTS", "many")
		_, err := LoadServer()
		if err == nil || !strings.Contains(err.Error(), "parse env:") {
			t.Fatalf("expected parse env error, got %v", err)
		}
	})

	t.Run("negative quota", func(t *testing.T) {
		t.Setenv("RECEIPTSPLIT_FREE_SESSIONS_PER_DEVICE", "-1")
		if _, err := LoadServer(); err == nil {
			t.Fatal("expected error for negative quota")
		}
	})
}

func TestLoadClient(t *testing.T) {
	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("load client config: %v", err)
	}
	sync := cfg.Sync()
	if sync.PollInterval != 5*time.Second || sync.PauseWindow != 15*time.Second {
		t.Errorf("unexpected polling defaults: %+v", sync)
	}

	t.Setenv("RECEIPTSPLIT_POLL_INTERVAL", "0s")
	if _, err := LoadClient(); err == nil {
		t.Fatal("expected error for zero poll interval")
	}
}
