package orchestrator

import (
	"context"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/armadaproject/jobbench/internal/common/logging"
)

// Launcher runs jobbench subcommands as separate processes.
type Launcher interface {
	// Run blocks until the process exits. A non-zero exit is an error.
	Run(ctx context.Context, args []string, out io.Writer) error
	// Start returns once the process is running.
	Start(args []string, out io.Writer) (Process, error)
}

// Process is a background process started by a Launcher.
type Process interface {
	// Stop asks the process to exit, killing it if it is still running after grace.
	Stop(grace time.Duration) error
}

// ExecLauncher runs Executable with the given arguments, sending stdout and stderr to the same writer.
type ExecLauncher struct {
	Executable string
	// Extra environment for children, on top of the current process's.
	Env []string
	// How long a cancelled Run waits after SIGTERM before killing the process.
	CancelGrace time.Duration
}

// NewExecLauncher re-executes the running binary.
func NewExecLauncher(cancelGrace time.Duration) (*ExecLauncher, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &ExecLauncher{Executable: exe, CancelGrace: cancelGrace}, nil
}

func (l *ExecLauncher) command(ctx context.Context, args []string, out io.Writer) *exec.Cmd {
	cmd := exec.CommandContext(ctx, l.Executable, args...)
	cmd.Stdout = out
	cmd.Stderr = out
	if len(l.Env) > 0 {
		cmd.Env = append(os.Environ(), l.Env...)
	}
	return cmd
}

func (l *ExecLauncher) Run(ctx context.Context, args []string, out io.Writer) error {
	cmd := l.command(ctx, args, out)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = l.CancelGrace
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "running %v", args)
	}
	return nil
}

func (l *ExecLauncher) Start(args []string, out io.Writer) (Process, error) {
	cmd := l.command(context.Background(), args, out)
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "starting %v", args)
	}
	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	// Set before done is closed.
	err error
}

// Stop sends SIGTERM and escalates to SIGKILL once grace has passed. A process that already exited reports how it
// exited.
func (p *execProcess) Stop(grace time.Duration) error {
	select {
	case <-p.done:
		return p.exitError()
	default:
	}

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return errors.WithStack(err)
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-p.done:
		return p.exitError()
	case <-timer.C:
	}

	logging.Warnf("Process %d did not exit within %s of SIGTERM, killing it", p.cmd.Process.Pid, grace)
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return errors.WithStack(err)
	}
	<-p.done
	return errors.Errorf("process %d killed after %s", p.cmd.Process.Pid, grace)
}

func (p *execProcess) exitError() error {
	if p.err == nil {
		return nil
	}
	return errors.Wrapf(p.err, "process %d", p.cmd.Process.Pid)
}
