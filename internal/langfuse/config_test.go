package langfuse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/chattrace/internal/config"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.Equal(t, 1, cfg.FlushAt)
	assert.Equal(t, time.Second, cfg.FlushInterval.Duration())
	assert.True(t, cfg.FlushOnShutdown)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout.Duration())
	assert.False(t, cfg.HasCredentials())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LANGFUSE_ENABLED", "true")
	t.Setenv("LANGFUSE_PUBLIC_KEY", "pk-lf-1")
	t.Setenv("LANGFUSE_SECRET_KEY", "sk-lf-1")
	t.Setenv("LANGFUSE_HOST", "https://langfuse.internal.example.com/")
	t.Setenv("LANGFUSE_SAMPLE_RATE", "0.25")
	t.Setenv("LANGFUSE_FLUSH_AT", "15")
	t.Setenv("LANGFUSE_FLUSH_INTERVAL", "3s")
	t.Setenv("LANGFUSE_DEBUG", "true")
	t.Setenv("LANGFUSE_RELEASE", "v1.4.0")
	t.Setenv("LANGFUSE_ENVIRONMENT", "staging")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "pk-lf-1", cfg.PublicKey)
	assert.Equal(t, "sk-lf-1", cfg.SecretKey.Value())
	assert.Equal(t, "https://langfuse.internal.example.com", cfg.Host, "trailing slash trimmed")
	assert.Equal(t, 0.25, cfg.SampleRate)
	assert.Equal(t, 15, cfg.FlushAt)
	assert.Equal(t, 3*time.Second, cfg.FlushInterval.Duration())
	assert.True(t, cfg.Debug)
	assert.Equal(t, "v1.4.0", cfg.Release)
	assert.Equal(t, "staging", cfg.Environment)
	assert.True(t, cfg.HasCredentials())
}

func TestConfigFromEnv_DefaultsWhenUnset(t *testing.T) {
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)

	assert.False(t, cfg.Enabled)
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestConfigFromEnv_ExplicitZeroSampleRateSurvives(t *testing.T) {
	t.Setenv("LANGFUSE_SAMPLE_RATE", "0")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.SampleRate)
}

func TestNormalize_Clamping(t *testing.T) {
	tests := []struct {
		name string
		in   Config
		want func(t *testing.T, c *Config)
	}{
		{
			name: "sample rate above one clamps to one",
			in:   Config{SampleRate: 1.5},
			want: func(t *testing.T, c *Config) { assert.Equal(t, 1.0, c.SampleRate) },
		},
		{
			name: "negative sample rate clamps to zero",
			in:   Config{SampleRate: -0.2},
			want: func(t *testing.T, c *Config) { assert.Equal(t, 0.0, c.SampleRate) },
		},
		{
			name: "zero flush_at raised to one",
			in:   Config{FlushAt: 0},
			want: func(t *testing.T, c *Config) { assert.Equal(t, 1, c.FlushAt) },
		},
		{
			name: "negative flush interval reset to default",
			in:   Config{FlushInterval: config.Duration(-time.Second)},
			want: func(t *testing.T, c *Config) {
				assert.Equal(t, time.Second, c.FlushInterval.Duration())
			},
		},
		{
			name: "empty host defaults to cloud",
			in:   Config{},
			want: func(t *testing.T, c *Config) { assert.Equal(t, DefaultHost, c.Host) },
		},
		{
			name: "host trailing slashes trimmed",
			in:   Config{Host: "http://localhost:3000//"},
			want: func(t *testing.T, c *Config) { assert.Equal(t, "http://localhost:3000", c.Host) },
		},
		{
			name: "zero shutdown timeout reset to default",
			in:   Config{},
			want: func(t *testing.T, c *Config) {
				assert.Equal(t, 5*time.Second, c.ShutdownTimeout.Duration())
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.in
			cfg.Normalize()
			tt.want(t, &cfg)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SampleRate = 0.3
	cfg.Host = "http://localhost:3000"

	cfg.Normalize()
	first := *cfg
	cfg.Normalize()
	assert.Equal(t, first, *cfg)
}

func TestHasCredentials(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.False(t, cfg.HasCredentials())

	cfg.PublicKey = "pk-lf-1"
	assert.False(t, cfg.HasCredentials())

	cfg.SecretKey = "sk-lf-1"
	assert.True(t, cfg.HasCredentials())
}
