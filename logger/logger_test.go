package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNopLoggerBeforeInitialize(t *testing.T) {
	// The package-level logger must be usable before Initialize is called.
	require.NotNil(t, Logger)
	assert.NotPanics(t, func() {
		Infow("pre-init log", "key", "value")
		Warnf("pre-init %s", "warning")
	})
}

func TestInitializeConsole(t *testing.T) {
	prev := Logger
	defer func() { Logger = prev }()

	require.NoError(t, Initialize(false))
	assert.False(t, JSONOutput)
	assert.NotNil(t, Logger)
}

func TestInitializeJSON(t *testing.T) {
	prev := Logger
	defer func() { Logger = prev }()

	require.NoError(t, Initialize(true))
	assert.True(t, JSONOutput)
}

func TestLevelFromEnv(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"debug", "debug"},
		{"warn", "warn"},
		{"error", "error"},
		{"", "info"},
		{"garbage", "info"},
	}

	for _, tt := range tests {
		t.Setenv("HELICA_LOG_LEVEL", tt.env)
		assert.Equal(t, tt.want, levelFromEnv().String(), "env=%q", tt.env)
	}
}

func TestNamed(t *testing.T) {
	prev := Logger
	defer func() { Logger = prev }()
	Logger = zap.NewNop().Sugar()

	assert.NotNil(t, Named("coordinator"))
}
