package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)

	_, stderr, err := runCollab(t, binaryPath, home, "session", "create", "sprint-7", "--context", "payment refactor")
	require.NoError(t, err, "stderr: %s", stderr)

	_, stderr, err = runCollab(t, binaryPath, home, "agent", "add", "sprint-7", "bolt", "--role", "builder")
	require.NoError(t, err, "stderr: %s", stderr)

	_, stderr, err = runCollab(t, binaryPath, home, "lock", "acquire", "sprint-7", "src/pay.go", "--agent", "bolt")
	require.NoError(t, err, "stderr: %s", stderr)

	stdout, stderr, err := runCollab(t, binaryPath, home, "session", "status", "sprint-7")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "sprint-7")
	assert.Contains(t, stdout, "bolt")
	assert.Contains(t, stdout, "src/pay.go")

	_, stderr, err = runCollab(t, binaryPath, home, "session", "complete", "sprint-7")
	require.NoError(t, err, "stderr: %s", stderr)

	stdout, stderr, err = runCollab(t, binaryPath, home, "lock", "check", "sprint-7", "src/pay.go")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "src/pay.go is unlocked")
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "collab-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/collab")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build collab binary: %s", string(output))
	return binaryPath
}

func runCollab(t *testing.T, binaryPath, home string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}
