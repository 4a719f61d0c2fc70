package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeSetsGlobalLevel(t *testing.T) {
	Initialize("debug", true)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	Initialize("warn", true)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestInitializeFallsBackToInfo(t *testing.T) {
	Initialize("verbose", true)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	Initialize("", false)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestGetReturnsGlobalLogger(t *testing.T) {
	Initialize("info", true)
	l := Get()
	require.NotNil(t, l)
	assert.Same(t, &log.Logger, l)
}
