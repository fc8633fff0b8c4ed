package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelperProcess is not a real test. It is the child process started by the launcher tests.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("JOBBENCH_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		os.Exit(2)
	}
	switch args[1] {
	case "echo":
		fmt.Println(strings.Join(args[2:], " "))
		os.Exit(0)
	case "exit":
		code, _ := strconv.Atoi(args[2])
		os.Exit(code)
	case "sleep":
		time.Sleep(time.Minute)
		os.Exit(0)
	case "stubborn":
		signal.Ignore(syscall.SIGTERM)
		fmt.Println("ready")
		time.Sleep(time.Minute)
		os.Exit(0)
	}
	os.Exit(2)
}

func helperLauncher() *ExecLauncher {
	return &ExecLauncher{
		Executable:  os.Args[0],
		Env:         []string{"JOBBENCH_HELPER_PROCESS=1"},
		CancelGrace: time.Second,
	}
}

func helperArgs(args ...string) []string {
	return append([]string{"-test.run=TestHelperProcess", "--"}, args...)
}

func TestExecLauncher_Run(t *testing.T) {
	var out bytes.Buffer
	err := helperLauncher().Run(context.Background(), helperArgs("echo", "hello", "world"), &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "hello world")
}

func TestExecLauncher_RunNonZeroExit(t *testing.T) {
	err := helperLauncher().Run(context.Background(), helperArgs("exit", "3"), &bytes.Buffer{})

	assert.ErrorContains(t, err, "exit status 3")
}

func TestExecLauncher_StopTerminates(t *testing.T) {
	p, err := helperLauncher().Start(helperArgs("sleep"), &bytes.Buffer{})
	require.NoError(t, err)

	start := time.Now()
	err = p.Stop(10 * time.Second)

	assert.Error(t, err, "a process ended by SIGTERM does not exit cleanly")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecLauncher_StopEscalatesToKill(t *testing.T) {
	out := &syncWriter{w: &bytes.Buffer{}}
	p, err := helperLauncher().Start(helperArgs("stubborn"), out)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		out.mu.Lock()
		defer out.mu.Unlock()
		return strings.Contains(out.w.(*bytes.Buffer).String(), "ready")
	}, 10*time.Second, 10*time.Millisecond)

	start := time.Now()
	err = p.Stop(200 * time.Millisecond)

	assert.ErrorContains(t, err, "killed")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecLauncher_StopAfterExit(t *testing.T) {
	p, err := helperLauncher().Start(helperArgs("exit", "0"), &bytes.Buffer{})
	require.NoError(t, err)
	time.Sleep(500 * time.Millisecond)

	assert.NoError(t, p.Stop(time.Second))
}
