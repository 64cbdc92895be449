package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/PrismoFinance/bounties/internal/engine"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // request rejected by the engine, replay mismatch
	ExitCommandError = 2 // bad flags, unreadable config, database, fatal engine error
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code carried by err. Errors without one,
// such as cobra's flag parsing failures, are command errors.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// Response is the envelope every command writes in JSON mode.
type Response struct {
	Status string     `json:"status"` // "ok" or "error"
	Data   any        `json:"data,omitempty"`
	Error  *Rejection `json:"error,omitempty"`
}

// Rejection describes why a command did not succeed. Code is an engine
// error code, or MISMATCH for a failed replay.
type Rejection struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	VaultID uint64 `json:"vault_id,omitempty"`
}

// OutputFormatter writes command results as text or JSON.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool
}

// Success writes a command's result.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Reject writes a request the engine refused and returns the exit error
// for it. Fatal and non-engine errors are not written; they surface as
// command errors.
func (f *OutputFormatter) Reject(err error) error {
	var engErr *engine.Error
	if !errors.As(err, &engErr) || engErr.Code == engine.ErrCodeFatal {
		return WrapExitError(ExitCommandError, "request failed", err)
	}

	r := Rejection{Code: string(engErr.Code), Message: engErr.Message, VaultID: engErr.VaultID}
	if werr := f.writeRejection(r); werr != nil {
		return werr
	}
	return &ExitError{Code: ExitFailure, Message: engErr.Message, Err: err}
}

func (f *OutputFormatter) writeRejection(r Rejection) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "error", Error: &r})
	}
	if _, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", r.Code, r.Message); err != nil {
		return err
	}
	if f.Verbose && r.VaultID != 0 {
		_, err := fmt.Fprintf(f.Writer, "Vault: %d\n", r.VaultID)
		return err
	}
	return nil
}
