package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewJSONFormatProducesParseableLines(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Format: FormatJSON, Writer: &buf})
	logger.Info("startup", "session", "sess-1")

	require.Contains(t, buf.String(), `"msg":"startup"`)
	require.Contains(t, buf.String(), `"session":"sess-1"`)
}

func TestNewConsoleFormatWritesHumanReadableOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Format: FormatConsole, Writer: &buf})
	logger.Info("startup")

	require.Contains(t, buf.String(), "startup")
}

func TestDiscardSuppressesOutput(t *testing.T) {
	logger := Discard()
	require.NotNil(t, logger)
	require.NotPanics(t, func() { logger.Info("noop") })
}
