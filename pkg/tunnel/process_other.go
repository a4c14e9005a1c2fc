//go:build !unix

package tunnel

import (
	"os"
	"os/exec"
)

func detach(*exec.Cmd) {}

func killProcess(p *os.Process) error {
	return p.Kill()
}
