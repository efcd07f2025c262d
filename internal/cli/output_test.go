package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatterJSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Success(map[string]string{"state": "SEALED"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatterJSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Error("E_SEALED", "content access denied", map[string]int{"days_remaining": 12})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_SEALED", resp.Error.Code)
	assert.Equal(t, "content access denied", resp.Error.Message)
}

func TestOutputFormatterTextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Error("E_TOO_EARLY", "still sealed", nil))
	assert.Equal(t, "Error [E_TOO_EARLY]: still sealed\n", buf.String())
}

func TestSuccessTextByFormat(t *testing.T) {
	data := map[string]int{"head_seq": 3}

	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}
	require.NoError(t, formatter.SuccessText("Chain intact\n", data))
	assert.Equal(t, "Chain intact\n", buf.String())

	buf.Reset()
	formatter.Format = "json"
	require.NoError(t, formatter.SuccessText("Chain intact\n", data))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotContains(t, buf.String(), "Chain intact")
}

func TestVerboseLogTargetsErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("checked %d snapshot(s)", 3)
	assert.Empty(t, out.String(), "diagnostics never mix into JSON output")
	assert.Equal(t, "checked 3 snapshot(s)\n", errOut.String())

	formatter.Verbose = false
	errOut.Reset()
	formatter.VerboseLog("dropped")
	assert.Empty(t, errOut.String())
}

func TestExitErrorCodes(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitTooEarly, GetExitCode(NewExitError(ExitTooEarly, "too early")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitTooEarly, "too early", errors.New("inner")))
	assert.Equal(t, ExitTooEarly, GetExitCode(wrapped))

	inner := errors.New("db locked")
	exitErr := WrapExitError(ExitFailure, "seal failed", inner)
	assert.ErrorIs(t, exitErr, inner)
	assert.Equal(t, "seal failed: db locked", exitErr.Error())
	assert.Equal(t, "too early", NewExitError(ExitTooEarly, "too early").Error())
}
