package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsToInfoLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Writer: &buf})
	require.Equal(t, zerolog.InfoLevel, log.GetLevel())

	log.Debug().Msg("should not appear")
	require.Empty(t, buf.String())

	log.Info().Msg("should appear")
	require.Contains(t, buf.String(), "should appear")
}

func TestNewHonorsExplicitLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Writer: &buf, Level: "warn"})
	require.Equal(t, zerolog.WarnLevel, log.GetLevel())
}

func TestNewPrettyProducesNonJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Writer: &buf, Pretty: true})
	log.Info().Msg("hello")
	require.NotContains(t, buf.String(), `"message":"hello"`)
	require.Contains(t, buf.String(), "hello")
}
