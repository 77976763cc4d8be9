package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type APIConfig struct {
	Addr string

	// DatabaseURL selects the Postgres-backed session store; empty keeps the
	// in-memory store, which is enough for a single-process game server.
	DatabaseURL string

	// QuarterDeadline is how long a quarter may sit open before the worker
	// force-closes it.
	QuarterDeadline time.Duration

	// CarryDebt makes unresolved short-term debt compound across quarters
	// instead of resetting with each close.
	CarryDebt bool
}

type CLIConfig struct {
	APIBaseURL string
}

func LoadAPIFromEnv() APIConfig {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("FINSIM_API_ADDR", ":8080")
	}

	return APIConfig{
		Addr:            addr,
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		QuarterDeadline: envDurationDefault("FINSIM_QUARTER_DEADLINE", 10*time.Minute),
		CarryDebt:       envBoolDefault("FINSIM_CARRY_DEBT", false),
	}
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("FSIM_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
