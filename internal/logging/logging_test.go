package logging_test

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/logging"
)

func TestSetupJSON(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	logging.Setup("PROD", "warn", &buf)

	log.Info().Msg("hidden")
	log.Warn().Str("op", "login").Msg("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"op":"login"`)
	require.Contains(t, buf.String(), `"message":"shown"`)
}

func TestSetupInvalidLevelDefaultsToInfo(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	logging.Setup("PROD", "loud", &buf)
	require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
