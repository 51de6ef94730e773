package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestSetupWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SetupWriter(&buf, "warn", "json"))

	log.Info().Msg("hidden")
	log.Warn().Str("db", "portfoliocad-db").Msg("shown")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", gjson.GetBytes(lines[0], "message").String())
	assert.Equal(t, "warn", gjson.GetBytes(lines[0], "level").String())
	assert.Equal(t, "portfoliocad-db", gjson.GetBytes(lines[0], "db").String())
	assert.True(t, gjson.GetBytes(lines[0], "time").Exists())
}

func TestSetupWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SetupWriter(&buf, "DEBUG", "console"))

	log.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestSetupWriter_Invalid(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, SetupWriter(&buf, "loud", "json"))
	assert.Error(t, SetupWriter(&buf, "info", "xml"))
}
