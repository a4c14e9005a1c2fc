package tunnel

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os/exec"
	"regexp"
)

// Process is a launched tunnel.
type Process interface {
	Pid() int
	Kill() error
}

// Launcher starts tunnel processes.
type Launcher interface {
	Launch(name string, args []string) (Process, error)
}

// ExecLauncher starts tunnels as detached child processes. The process
// outlives the context of the call that launched it and, on unix, runs in
// its own process group so terminal signals aimed at the CLI do not reach
// it.
type ExecLauncher struct {
	Dir    string
	Output io.Writer
}

// Launch starts name with args and reaps it in the background.
func (l ExecLauncher) Launch(name string, args []string) (Process, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = l.Dir
	detach(cmd)
	if l.Output != nil {
		cmd.Stdout = l.Output
		cmd.Stderr = l.Output
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	proc := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(proc.done)
	}()
	return proc, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	if err := killProcess(p.cmd.Process); err != nil {
		return fmt.Errorf("failed to kill tunnel (pid %d): %w", p.Pid(), err)
	}
	<-p.done
	return nil
}

// Probe reports whether a tunnel serving target is already running.
type Probe func(ctx context.Context, target *url.URL) (bool, error)

// ProcessLister returns one command line per running process.
type ProcessLister func(ctx context.Context) ([]string, error)

// ListProcesses lists processes with "ps -ef".
func ListProcesses(ctx context.Context) ([]string, error) {
	out, err := exec.CommandContext(ctx, "ps", "-ef").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// ProcessProbe returns a Probe that looks for a process whose command line
// matches the pattern built for the target.
func ProcessProbe(list ProcessLister, pattern func(target *url.URL) *regexp.Regexp) Probe {
	if list == nil {
		list = ListProcesses
	}
	return func(ctx context.Context, target *url.URL) (bool, error) {
		procs, err := list(ctx)
		if err != nil {
			return false, err
		}
		re := pattern(target)
		for _, line := range procs {
			if re.MatchString(line) {
				return true, nil
			}
		}
		return false, nil
	}
}
