package shell

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	DefaultTimeout     = 60 * time.Second
	DefaultOutputLimit = 1 << 20

	successRuneLimit = 3000
	failureRuneLimit = 2000
)

// Executor 在宿主 /bin/sh 中执行命令；不做任何安全检查
// Executor runs commands through the host /bin/sh. It performs no safety
// checks: callers classify first.
type Executor struct {
	timeout     time.Duration
	outputLimit int
	dir         string
}

func NewExecutor(timeout time.Duration, outputLimit int) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if outputLimit <= 0 {
		outputLimit = DefaultOutputLimit
	}
	return &Executor{timeout: timeout, outputLimit: outputLimit}
}

// WithDir returns a copy that runs commands in dir.
func (e *Executor) WithDir(dir string) *Executor {
	cp := *e
	cp.dir = dir
	return &cp
}

// Outcome is the captured result of one command run.
type Outcome struct {
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Err      error
	Duration time.Duration
}

// OK reports a clean zero exit.
func (o Outcome) OK() bool {
	return o.Err == nil && o.ExitCode == 0 && !o.TimedOut
}

// Run executes command and captures its output. Spawn failures and timeouts
// are recorded on the Outcome, never returned.
func (e *Executor) Run(ctx context.Context, command string) Outcome {
	out := Outcome{Command: command}
	if strings.TrimSpace(command) == "" {
		out.Err = errors.New("command is empty")
		out.ExitCode = -1
		return out
	}

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "/bin/sh", "-c", command)
	cmd.Dir = e.dir
	cmd.WaitDelay = time.Second

	stdout := newCappedBuffer(e.outputLimit)
	stderr := newCappedBuffer(e.outputLimit)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	out.Duration = time.Since(start)
	out.Stdout = stdout.String()
	out.Stderr = stderr.String()

	if err != nil {
		var ee *exec.ExitError
		switch {
		case errors.Is(execCtx.Err(), context.DeadlineExceeded):
			out.TimedOut = true
			out.ExitCode = 124
		case errors.As(err, &ee):
			out.ExitCode = ee.ExitCode()
		default:
			out.Err = fmt.Errorf("run command: %w", err)
			out.ExitCode = -1
		}
	}
	return out
}

// Execute runs command and renders the outcome as a chat-ready text block.
func (e *Executor) Execute(ctx context.Context, command string) string {
	return e.Run(ctx, command).Format()
}
