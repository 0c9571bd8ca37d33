package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	apperrors "stackpilot/internal/errors"
)

// Verbs understood by the provisioning tool
const (
	verbUp      = "up"
	verbDestroy = "destroy"
)

// cliResult is the single JSON document the provisioning tool prints on
// stdout when it completes.
type cliResult struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Outputs map[string]string `json:"outputs,omitempty"`
}

// Executor wraps the external provisioning CLI. It performs no retries:
// infrastructure operations are not safely auto-retriable, so a retry is
// always the user's explicit decision via a new intent.
type Executor struct {
	launcher Launcher
	tool     string
}

// NewExecutor creates a deployment executor using the given launcher
func NewExecutor(launcher Launcher, tool string) *Executor {
	return &Executor{launcher: launcher, tool: tool}
}

// Create provisions the infrastructure in projectDir and returns the named
// outputs (endpoints, hostnames, URLs) reported by the tool.
func (e *Executor) Create(ctx context.Context, projectDir string) (map[string]string, error) {
	result, err := e.run(ctx, projectDir, verbUp)
	if err != nil {
		return nil, err
	}
	return result.Outputs, nil
}

// Destroy tears down the infrastructure in projectDir. Success requires the
// tool to report a success status with no residual outputs.
func (e *Executor) Destroy(ctx context.Context, projectDir string) error {
	result, err := e.run(ctx, projectDir, verbDestroy)
	if err != nil {
		return err
	}
	if len(result.Outputs) > 0 {
		return apperrors.NewProcessExitError(
			fmt.Sprintf("destroy reported success but left %d residual outputs", len(result.Outputs)),
			result.Message, "", nil)
	}
	return nil
}

// run launches the tool with one verb and maps the outcome onto the failure
// taxonomy: launch failure, exit failure (with captured output), or malformed
// output on an unparseable success.
func (e *Executor) run(ctx context.Context, projectDir, verb string) (*cliResult, error) {
	exitCode, stdout, stderr, err := e.launcher.Launch(ctx, projectDir, verb)
	if err != nil {
		return nil, apperrors.NewProcessLaunchError(e.tool, err)
	}

	if exitCode != 0 {
		return nil, apperrors.NewProcessExitError(
			fmt.Sprintf("%s %s exited with code %d", e.tool, verb, exitCode),
			string(stdout), string(stderr), nil)
	}

	var result cliResult
	if err := json.Unmarshal(bytes.TrimSpace(stdout), &result); err != nil {
		return nil, apperrors.NewMalformedOutputError(
			fmt.Sprintf("%s %s produced output that is not a valid result document", e.tool, verb),
			string(stdout), err)
	}

	if result.Status != "success" {
		return nil, apperrors.NewProcessExitError(
			fmt.Sprintf("%s %s reported status %q: %s", e.tool, verb, result.Status, result.Message),
			string(stdout), string(stderr), nil)
	}

	return &result, nil
}
