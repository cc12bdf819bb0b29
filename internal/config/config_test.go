package config

import (
	"testing"
	"time"
)

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{"INTERNAL_TOKEN": "s3cret"})
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.Port)
	}
	if cfg.ChallengeTTL != 60*time.Second {
		t.Fatalf("expected 60s challenge TTL, got %s", cfg.ChallengeTTL)
	}
	if cfg.SessionTTL != 120*time.Second {
		t.Fatalf("expected 120s session TTL, got %s", cfg.SessionTTL)
	}
	if cfg.HMACTolerance != 60*time.Second {
		t.Fatalf("expected 60s tolerance, got %s", cfg.HMACTolerance)
	}
	if cfg.MinResponseDelay != 2 {
		t.Fatalf("expected min delay 2, got %d", cfg.MinResponseDelay)
	}
	if len(cfg.InternalNetworks) != 5 {
		t.Fatalf("expected default networks, got %v", cfg.InternalNetworks)
	}
}

func TestLoadConfigRequiresInternalToken(t *testing.T) {
	if _, err := LoadConfigFromEnv(mapEnv{}); err == nil {
		t.Fatalf("expected error for missing INTERNAL_TOKEN")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfigFromEnv(mapEnv{
		"INTERNAL_TOKEN":        "s3cret",
		"PORT":                  "8088",
		"INTERNAL_NETWORKS":     "100.64.0.0/10, 192.0.2.0/24",
		"CHALLENGE_TTL_SECONDS": "30",
		"SESSION_TTL_SECONDS":   "600",
	})
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Port != 8088 {
		t.Fatalf("expected port 8088, got %d", cfg.Port)
	}
	if len(cfg.InternalNetworks) != 2 || cfg.InternalNetworks[0] != "100.64.0.0/10" {
		t.Fatalf("unexpected networks: %v", cfg.InternalNetworks)
	}
	if cfg.ChallengeTTL != 30*time.Second || cfg.SessionTTL != 600*time.Second {
		t.Fatalf("unexpected TTLs: %s %s", cfg.ChallengeTTL, cfg.SessionTTL)
	}
}

func TestLoadConfigInvalidValues(t *testing.T) {
	cases := []mapEnv{
		{"INTERNAL_TOKEN": "x", "PORT": "0"},
		{"INTERNAL_TOKEN": "x", "PORT": "notaport"},
		{"INTERNAL_TOKEN": "x", "CHALLENGE_TTL_SECONDS": "-5"},
		{"INTERNAL_TOKEN": "x", "SESSION_TTL_SECONDS": "abc"},
		{"INTERNAL_TOKEN": "x", "HMAC_TOLERANCE_SECONDS": "0"},
		{"INTERNAL_TOKEN": "x", "AUDIT_LOG_LIMIT": "0"},
	}
	for i, env := range cases {
		if _, err := LoadConfigFromEnv(env); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
