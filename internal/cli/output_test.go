package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hrsync/internal/ir"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"id": "job-1"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error(ErrCodeValidation, "title is required", map[string]string{"field": "title"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "title is required", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Error(ErrCodeNotFound, "no such job", map[string]string{"id": "job-9"}))
	assert.Contains(t, buf.String(), "Error [E_NOT_FOUND]: no such job")
	assert.NotContains(t, buf.String(), "Details:")

	buf.Reset()
	formatter.Verbose = true
	require.NoError(t, formatter.Error(ErrCodeNotFound, "no such job", map[string]string{"id": "job-9"}))
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLogUsesErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("restored %d jobs", 3)
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "restored 3 jobs")

	formatter.Verbose = false
	errOut.Reset()
	formatter.VerboseLog("quiet")
	assert.Empty(t, errOut.String())
}

func TestOutputFormatter_Emit(t *testing.T) {
	buf := &bytes.Buffer{}
	text := func(w io.Writer) { fmt.Fprint(w, "human") }

	formatter := &OutputFormatter{Format: "text", Writer: buf}
	require.NoError(t, formatter.Emit(map[string]int{"n": 1}, text))
	assert.Equal(t, "human", buf.String())

	buf.Reset()
	formatter.Format = "json"
	require.NoError(t, formatter.Emit(map[string]int{"n": 1}, text))
	assert.JSONEq(t, `{"status":"ok","data":{"n":1}}`, buf.String())
}

func TestOutputFormatter_Fail(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"transport", ir.NewTransportError("reorderJobs", nil), ErrCodeTransport},
		{"not_found", ir.NewNotFoundError(ir.CollectionJobs, "job-9"), ErrCodeNotFound},
		{"validation", ir.NewValidationError("title", "title is required"), ErrCodeValidation},
		{"plain", errors.New("boom"), ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf}

			err := formatter.Fail("operation failed", tt.err)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.ErrorIs(t, err, tt.err)

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestErrorDetails(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", ir.NewNotFoundError(ir.CollectionCandidates, "c-1").WithOp("updateStage"))

	details := errorDetails(err)
	assert.Equal(t, "candidates", details["collection"])
	assert.Equal(t, "c-1", details["id"])
	assert.Equal(t, "updateStage", details["op"])
	assert.NotContains(t, details, "field")

	assert.Nil(t, errorDetails(errors.New("plain")))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "open", errors.New("x")))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}

func TestExitError_Message(t *testing.T) {
	assert.Equal(t, "bad flag", NewExitError(ExitCommandError, "bad flag").Error())
	assert.Equal(t, "open store: disk full", WrapExitError(ExitCommandError, "open store", errors.New("disk full")).Error())
}
