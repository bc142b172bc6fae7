package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeResponse(t *testing.T, buf *bytes.Buffer) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	return resp
}

func TestNewFormatterUsesCommandStreams(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	f := newFormatter(&RootOptions{Format: "json", Verbose: true}, cmd)
	f.VerboseLog("loaded %d computation(s)", 3)
	require.NoError(t, f.Success([]string{"total"}))

	assert.Equal(t, "loaded 3 computation(s)\n", errOut.String())
	assert.Equal(t, `{"status":"ok","data":["total"]}`+"\n", out.String())
}

func TestVerboseLogFallsBackToWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	(&OutputFormatter{Writer: buf, Verbose: true}).VerboseLog("x=%s", "1")
	assert.Equal(t, "x=1\n", buf.String())

	buf.Reset()
	(&OutputFormatter{Writer: buf}).VerboseLog("quiet")
	assert.Empty(t, buf.String())
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		details interface{}
		want    string
	}{
		{"plain", false, nil, "Error [E010]: computation: c: body: nothing\n"},
		{"details hidden", false, "spec.cue:3:7", "Error [E010]: computation: c: body: nothing\n"},
		{"details shown", true, "spec.cue:3:7", "Error [E010]: computation: c: body: nothing\nDetails: spec.cue:3:7\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}
			require.NoError(t, f.Error(ErrCodeCompile, "computation: c: body: nothing", tt.details))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestErrorJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}
	require.NoError(t, f.Error(ErrCodeCycle, "computations reference each other", []string{"a", "b"}))

	resp := decodeResponse(t, buf)
	assert.Equal(t, "error", resp.Status)
	assert.Nil(t, resp.Data)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCycle, resp.Error.Code)
	assert.Equal(t, []interface{}{"a", "b"}, resp.Error.Details)
}

func TestFail(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	err := f.fail(ExitFailure, ErrCodeViolation, "federated_reduce at /0/0", nil)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.EqualError(t, err, "E020: federated_reduce at /0/0")

	resp := decodeResponse(t, buf)
	assert.Equal(t, ErrCodeViolation, resp.Error.Code)
	assert.Equal(t, "federated_reduce at /0/0", resp.Error.Message)
}

func TestLoadFailure(t *testing.T) {
	t.Run("load error", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}
		err := f.loadFailure(fmt.Errorf("load: %w", &LoadError{Code: ErrCodeNoFiles, Message: "no .cue files in dir"}))

		assert.Equal(t, ExitCommandError, GetExitCode(err))
		resp := decodeResponse(t, buf)
		assert.Equal(t, ErrCodeNoFiles, resp.Error.Code)
		assert.Nil(t, resp.Error.Details)
	})

	t.Run("other error", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "text", Writer: buf}
		err := f.loadFailure(errors.New("disk on fire"))

		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Equal(t, "Error [E001]: disk on fire\n", buf.String())
	})
}

func TestEncodeJSONIndents(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}
	require.NoError(t, f.encodeJSON(CLIResponse{Status: "ok", Data: map[string]int{"n": 1}}))
	assert.Equal(t, "{\n  \"status\": \"ok\",\n  \"data\": {\n    \"n\": 1\n  }\n}\n", buf.String())
}

func TestGetExitCode(t *testing.T) {
	wrapped := fmt.Errorf("run: %w", NewExitError(ExitCommandError, "bad path"))

	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}

func TestExitErrorUnwrap(t *testing.T) {
	cause := errors.New("permission denied")
	err := WrapExitError(ExitCommandError, "failed to access scenarios", cause)

	assert.EqualError(t, err, "failed to access scenarios: permission denied")
	assert.ErrorIs(t, err, cause)
}
