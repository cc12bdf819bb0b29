package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultInternalNetworks are the source networks treated as internal when
// INTERNAL_NETWORKS is not set: loopback, the RFC1918 ranges and the IPv6
// loopback.
var DefaultInternalNetworks = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"::1/128",
}

type Config struct {
	Port        int
	GinMode     string
	TLSCertFile string
	TLSKeyFile  string

	InternalToken    string
	InternalNetworks []string

	ChallengeTTL     time.Duration
	SessionTTL       time.Duration
	HMACTolerance    time.Duration
	MinResponseDelay int

	AuditLogLimit int
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:             3000,
		GinMode:          "release",
		InternalNetworks: DefaultInternalNetworks,
		ChallengeTTL:     60 * time.Second,
		SessionTTL:       120 * time.Second,
		HMACTolerance:    60 * time.Second,
		MinResponseDelay: 2,
		AuditLogLimit:    100,
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	cfg.InternalToken = env.Getenv("INTERNAL_TOKEN")
	if cfg.InternalToken == "" {
		return Config{}, fmt.Errorf("INTERNAL_TOKEN is required")
	}

	if raw := env.Getenv("INTERNAL_NETWORKS"); raw != "" {
		var networks []string
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				networks = append(networks, part)
			}
		}
		if len(networks) == 0 {
			return Config{}, fmt.Errorf("invalid INTERNAL_NETWORKS")
		}
		cfg.InternalNetworks = networks
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")

	durations := []struct {
		key  string
		dest *time.Duration
	}{
		{"CHALLENGE_TTL_SECONDS", &cfg.ChallengeTTL},
		{"SESSION_TTL_SECONDS", &cfg.SessionTTL},
		{"HMAC_TOLERANCE_SECONDS", &cfg.HMACTolerance},
	}
	for _, d := range durations {
		if raw := env.Getenv(d.key); raw != "" {
			seconds, err := strconv.Atoi(raw)
			if err != nil || seconds <= 0 {
				return Config{}, fmt.Errorf("invalid %s", d.key)
			}
			*d.dest = time.Duration(seconds) * time.Second
		}
	}

	if raw := env.Getenv("MIN_RESPONSE_DELAY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 0 {
			return Config{}, fmt.Errorf("invalid MIN_RESPONSE_DELAY_SECONDS")
		}
		cfg.MinResponseDelay = seconds
	}

	if raw := env.Getenv("AUDIT_LOG_LIMIT"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return Config{}, fmt.Errorf("invalid AUDIT_LOG_LIMIT")
		}
		cfg.AuditLogLimit = limit
	}

	return cfg, nil
}
