package deploy

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackpilot/internal/config"
)

func testCredentials() config.AzureCredentials {
	return config.AzureCredentials{
		ClientID:       "client-id",
		ClientSecret:   "client-secret",
		TenantID:       "tenant-id",
		SubscriptionID: "subscription-id",
	}
}

func TestExecLauncherInjectsCredentials(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell child process")
	}

	l := NewExecLauncher("sh", testCredentials(), "pul-token")

	exitCode, stdout, _, err := l.Launch(context.Background(), t.TempDir(),
		"-c", "printf '%s %s' \"$ARM_CLIENT_ID\" \"$PULUMI_ACCESS_TOKEN\"")
	require.NoError(t, err)
	assert.Equal(t, 0, exitCode)
	assert.Equal(t, "client-id pul-token", string(stdout))
}

func TestExecLauncherNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell child process")
	}

	l := NewExecLauncher("sh", testCredentials(), "pul-token")

	exitCode, _, stderr, err := l.Launch(context.Background(), t.TempDir(),
		"-c", "echo boom >&2; exit 3")
	require.NoError(t, err, "non-zero exit is not a launch failure")
	assert.Equal(t, 3, exitCode)
	assert.Contains(t, string(stderr), "boom")
}

func TestExecLauncherMissingTool(t *testing.T) {
	l := NewExecLauncher("definitely-not-a-real-tool-83f2", testCredentials(), "pul-token")

	exitCode, _, _, err := l.Launch(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Equal(t, -1, exitCode)
}
