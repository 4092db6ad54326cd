package execx

import (
	"bytes"
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunStreamingCapturesAndForwards(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cmd := exec.Command("sh", "-c", "echo out; echo err >&2")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	res, err := RunStreaming(cmd)
	require.NoError(t, err)
	require.Equal(t, "out", res.Stdout)
	require.Equal(t, "err", res.Stderr)
	require.Equal(t, "out\n", stdout.String(), "output still reaches the caller's writer")
	require.Equal(t, "err\n", stderr.String())
}

func TestPrimaryOutputPrefersStderr(t *testing.T) {
	require.Equal(t, "err", PrimaryOutput(Result{Stdout: "out", Stderr: "err"}))
	require.Equal(t, "out", PrimaryOutput(Result{Stdout: "out"}))
}

func TestOutput(t *testing.T) {
	out, err := Output(context.Background(), "sh", "-c", "echo hello")
	require.NoError(t, err)
	require.Equal(t, "hello", out)
}

func TestOutputFoldsStderrIntoError(t *testing.T) {
	_, err := Output(context.Background(), "sh", "-c", "echo broken >&2; exit 3")
	require.Error(t, err)
	require.Contains(t, err.Error(), "broken")
}

func TestOutputMissingBinary(t *testing.T) {
	_, err := Output(context.Background(), "definitely-not-a-binary-xyz")
	require.Error(t, err)
}
