// Package config resolves server settings from .env, the environment and
// command-line flags, in increasing order of precedence.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the server.
type Config struct {
	Port        int
	DBPath      string
	LogLevel    string
	LogFormat   string
	Seed        bool
	CORSOrigins []string
}

// Load reads an optional .env file, then environment variables, then args.
// args excludes the program name.
func Load(args []string) (*Config, error) {
	// Load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()
	return parse(args)
}

func parse(args []string) (*Config, error) {
	port, err := strconv.Atoi(getEnv("GYM_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid GYM_PORT: %w", err)
	}
	seed, err := strconv.ParseBool(getEnv("GYM_SEED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid GYM_SEED: %w", err)
	}

	cfg := &Config{
		CORSOrigins: splitList(getEnv("GYM_CORS_ORIGINS", "http://localhost:*")),
	}

	fs := flag.NewFlagSet("gym-server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", port, "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", getEnv("GYM_DB", "gym.db"), `SQLite database path (":memory:" for a throwaway run)`)
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("GYM_LOG_LEVEL", "info"), "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("GYM_LOG_FORMAT", "console"), "console or json")
	fs.BoolVar(&cfg.Seed, "seed", seed, "install demo data into an empty database")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return cfg, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
