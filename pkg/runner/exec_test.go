package runner

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-language/ultrabunt/pkg/core"
)

func TestExecCapturesOutput(t *testing.T) {
	e := NewExec(false, 0)

	res, err := e.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo out; echo err >&2"}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Equal(t, []string{"out"}, res.Lines())
}

func TestExecNonZeroExit(t *testing.T) {
	e := NewExec(false, 0)

	res, err := e.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo boom >&2; exit 3"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrBackendCommandFailed))

	var cmdErr *core.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Contains(t, cmdErr.Output, "boom")
	assert.Equal(t, 3, res.ExitCode)
}

func TestExecMissingBinary(t *testing.T) {
	e := NewExec(false, 0)

	_, err := e.Run(context.Background(), Command{Name: "ultrabunt-definitely-missing"})
	assert.True(t, errors.Is(err, core.ErrBackendUnavailable))
	assert.Equal(t, core.KindBackendUnavailable, core.Kind(err))
}

func TestExecCancel(t *testing.T) {
	e := NewExec(false, 0)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := e.Run(ctx, Command{Name: "sleep", Args: []string{"10"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecPrivilegeWrapper(t *testing.T) {
	e := NewExec(true, 0)
	cmd := Command{Name: "apt-get", Args: []string{"install", "-y", "htop"}, Root: true}

	e.geteuid = func() int { return 1000 }
	name, args := e.argv(cmd)
	assert.Equal(t, "sudo", name)
	assert.Equal(t, []string{"-E", "apt-get", "install", "-y", "htop"}, args)

	e.geteuid = func() int { return 0 }
	name, args = e.argv(cmd)
	assert.Equal(t, "apt-get", name)
	assert.Equal(t, []string{"install", "-y", "htop"}, args)

	e.UseSudo = false
	e.geteuid = func() int { return 1000 }
	name, _ = e.argv(cmd)
	assert.Equal(t, "apt-get", name)

	name, _ = e.argv(Command{Name: "snap", Args: []string{"list"}})
	assert.Equal(t, "snap", name)
}

func TestExecMissingSudo(t *testing.T) {
	e := NewExec(true, 0)
	e.geteuid = func() int { return 1000 }
	e.lookPath = func(name string) (string, error) {
		if name == "sudo" {
			return "", exec.ErrNotFound
		}
		return exec.LookPath(name)
	}

	_, err := e.Run(context.Background(), Command{Name: "true", Root: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrBackendUnavailable))
	assert.Equal(t, core.KindBackendUnavailable, core.Kind(err))

	_, err = e.Run(context.Background(), Command{Name: "true"})
	assert.NoError(t, err)
}

func TestCommandString(t *testing.T) {
	c := Command{Name: "apt-get", Args: []string{"install", "-y", "htop"}}
	assert.Equal(t, "apt-get install -y htop", c.String())
}
