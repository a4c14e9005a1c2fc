//go:build unix

package tunnel

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecLauncher_RunsInOwnProcessGroup(t *testing.T) {
	proc, err := ExecLauncher{}.Launch("sleep", []string{"5"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = proc.Kill() })

	pgid, err := syscall.Getpgid(proc.Pid())
	require.NoError(t, err)
	assert.NotEqual(t, syscall.Getpgrp(), pgid)
	assert.Equal(t, proc.Pid(), pgid)

	require.NoError(t, proc.Kill())
	require.NoError(t, proc.Kill())
}
