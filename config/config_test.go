package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{"GYM_PORT", "GYM_DB", "GYM_LOG_LEVEL", "GYM_LOG_FORMAT", "GYM_SEED", "GYM_CORS_ORIGINS"} {
		t.Setenv(key, "")
	}
}

func TestParse_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := parse(nil)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "gym.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.True(t, cfg.Seed)
	assert.Equal(t, []string{"http://localhost:*"}, cfg.CORSOrigins)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestParse_EnvThenFlags(t *testing.T) {
	// GIVEN: Environment overrides for port, database and origins
	// WHEN: A flag also sets the port
	// THEN: The flag wins, the rest come from the environment

	clearEnv(t)
	t.Setenv("GYM_PORT", "9000")
	t.Setenv("GYM_DB", "/tmp/front-desk.db")
	t.Setenv("GYM_SEED", "false")
	t.Setenv("GYM_CORS_ORIGINS", "https://desk.example.com, http://localhost:5173,")

	cfg, err := parse([]string{"-port", "9100", "-log-format", "json"})
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "/tmp/front-desk.db", cfg.DBPath)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.False(t, cfg.Seed)
	assert.Equal(t, []string{"https://desk.example.com", "http://localhost:5173"}, cfg.CORSOrigins)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"non-numeric env port", map[string]string{"GYM_PORT": "http"}, nil},
		{"bad seed flag value", map[string]string{"GYM_SEED": "maybe"}, nil},
		{"port out of range", nil, []string{"-port", "70000"}},
		{"empty db path", nil, []string{"-db", " "}},
		{"unknown flag", nil, []string{"-verbose"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := parse(tt.args)
			assert.Error(t, err)
		})
	}
}
