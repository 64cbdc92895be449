package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PrismoFinance/bounties/internal/engine"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]string{"vault_id": "1"})
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONReject(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Reject(engine.NewPreconditionError(1, "Vault 1 is not active"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "PRECONDITION", resp.Error.Code)
	assert.Equal(t, "Vault 1 is not active", resp.Error.Message)
	assert.Equal(t, uint64(1), resp.Error.VaultID)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("create_vault: ok")
	require.NoError(t, err)
	assert.Equal(t, "create_vault: ok\n", buf.String())
}

func TestOutputFormatter_TextRejectVerbose(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		want    string
	}{
		{"quiet", false, "Error [PRECONDITION]: Vault 3 is not active\n"},
		{"verbose", true, "Error [PRECONDITION]: Vault 3 is not active\nVault: 3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			err := formatter.Reject(engine.NewPreconditionError(3, "Vault 3 is not active"))
			require.Error(t, err)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(WrapExitError(ExitFailure, "rejected", errors.New("x"))))
	assert.Equal(t, ExitCommandError, GetExitCode(errors.New("unknown flag: --nope")))
}

func TestOutputFormatter_RejectMapsEngineErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOut  string
	}{
		{"precondition", engine.NewPreconditionError(1, "Vault 1 is not active"), ExitFailure, "Error [PRECONDITION]: Vault 1 is not active"},
		{"unauthorized", engine.NewUnauthorizedError(), ExitFailure, "Error [UNAUTHORIZED]: Unauthorized"},
		{"not_found", engine.NewNotFoundError("Vault", 9), ExitFailure, "Error [NOT_FOUND]: Vault 9 not found"},
		{"fatal", engine.NewFatalError(1, errors.New("disk full")), ExitCommandError, ""},
		{"foreign", errors.New("boom"), ExitCommandError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: "text", Writer: buf}

			err := f.Reject(tt.err)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
			if tt.wantOut == "" {
				assert.Empty(t, buf.String())
			} else {
				assert.Contains(t, buf.String(), tt.wantOut)
			}
		})
	}
}
