package deploy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"stackpilot/internal/config"
)

// Launcher is the narrow adapter around the external provisioning tool.
// It reports the child's exit code and captured streams; err is non-nil only
// when the process could not be started at all. Keeping the adapter this thin
// lets the executor's parsing and error mapping be tested with a fake.
type Launcher interface {
	Launch(ctx context.Context, dir string, args ...string) (exitCode int, stdout, stderr []byte, err error)
}

// ExecLauncher runs the provisioning tool as a child process with the cloud
// credentials injected into its environment.
type ExecLauncher struct {
	tool string
	env  []string
}

// NewExecLauncher builds a launcher for the given tool binary. The Azure
// credential bundle is expanded into the ARM_* variables the provisioning
// tool expects, alongside the Pulumi access token.
func NewExecLauncher(tool string, azure config.AzureCredentials, pulumiToken string) *ExecLauncher {
	return &ExecLauncher{
		tool: tool,
		env: []string{
			"ARM_CLIENT_ID=" + azure.ClientID,
			"ARM_CLIENT_SECRET=" + azure.ClientSecret,
			"ARM_TENANT_ID=" + azure.TenantID,
			"ARM_SUBSCRIPTION_ID=" + azure.SubscriptionID,
			"PULUMI_ACCESS_TOKEN=" + pulumiToken,
		},
	}
}

// Launch runs the tool in dir and captures its output
func (l *ExecLauncher) Launch(ctx context.Context, dir string, args ...string) (int, []byte, []byte, error) {
	cmd := exec.CommandContext(ctx, l.tool, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), l.env...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// The tool ran and exited non-zero; that is an exit failure,
			// not a launch failure.
			return exitErr.ExitCode(), stdoutBuf.Bytes(), stderrBuf.Bytes(), nil
		}
		return -1, nil, nil, fmt.Errorf("failed to start %s: %w", l.tool, err)
	}

	return 0, stdoutBuf.Bytes(), stderrBuf.Bytes(), nil
}
