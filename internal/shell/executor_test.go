package shell

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestExecuteSuccess(t *testing.T) {
	e := NewExecutor(2*time.Second, 1024)
	out := e.Execute(context.Background(), "printf 'hello'")
	if !strings.HasPrefix(out, "✅ `printf 'hello'`") {
		t.Fatalf("unexpected header: %q", out)
	}
	if !strings.Contains(out, "```\nhello\n```") {
		t.Fatalf("missing fenced output: %q", out)
	}
}

func TestExecuteNoOutput(t *testing.T) {
	out := NewExecutor(time.Second, 0).Execute(context.Background(), "true")
	if !strings.Contains(out, "(no output)") {
		t.Fatalf("expected no-output marker: %q", out)
	}
}

func TestExecuteFailureShowsStderr(t *testing.T) {
	out := NewExecutor(2*time.Second, 1024).Execute(context.Background(), "echo boom >&2; exit 3")
	if !strings.Contains(out, "failed (exit 3)") {
		t.Fatalf("expected exit code in %q", out)
	}
	if !strings.Contains(out, "boom") {
		t.Fatalf("expected stderr in %q", out)
	}
}

func TestRunTimeout(t *testing.T) {
	e := NewExecutor(100*time.Millisecond, 1024)
	got := e.Run(context.Background(), "sleep 5")
	if !got.TimedOut {
		t.Fatalf("expected timeout, got %+v", got)
	}
	if got.Duration > 3*time.Second {
		t.Fatalf("timeout not enforced: %s", got.Duration)
	}
	if !strings.Contains(got.Format(), "timed out") {
		t.Fatalf("format = %q", got.Format())
	}
}

func TestRunEmptyCommand(t *testing.T) {
	got := NewExecutor(time.Second, 0).Run(context.Background(), "  ")
	if got.OK() || got.Err == nil {
		t.Fatalf("empty command ran: %+v", got)
	}
	if !strings.HasPrefix(got.Format(), "❌") {
		t.Fatalf("format = %q", got.Format())
	}
}

func TestRunWithDir(t *testing.T) {
	dir := t.TempDir()
	got := NewExecutor(time.Second, 0).WithDir(dir).Run(context.Background(), "pwd")
	if !got.OK() || !strings.Contains(got.Stdout, dir) {
		t.Fatalf("pwd = %+v, want %s", got, dir)
	}
}

func TestFormatTruncation(t *testing.T) {
	long := strings.Repeat("é", 5000)

	ok := Outcome{Command: "x", Stdout: long}.Format()
	if n := strings.Count(ok, "é"); n != successRuneLimit {
		t.Fatalf("success kept %d runes, want %d", n, successRuneLimit)
	}
	fail := Outcome{Command: "x", Stderr: long, ExitCode: 1}.Format()
	if n := strings.Count(fail, "é"); n != failureRuneLimit {
		t.Fatalf("failure kept %d runes, want %d", n, failureRuneLimit)
	}
}

func TestFormatFailureShowsBothStreams(t *testing.T) {
	out := NewExecutor(2*time.Second, 1024).Execute(context.Background(), "echo partial; echo boom >&2; exit 2")
	if !strings.Contains(out, "stdout:\n```\npartial\n```") {
		t.Fatalf("missing stdout block in %q", out)
	}
	if !strings.Contains(out, "stderr:\n```\nboom\n```") {
		t.Fatalf("missing stderr block in %q", out)
	}

	long := strings.Repeat("é", 5000)
	fail := Outcome{Command: "x", Stdout: long, Stderr: long, ExitCode: 1}.Format()
	if n := strings.Count(fail, "é"); n != 2*failureRuneLimit {
		t.Fatalf("failure kept %d runes, want %d per stream", n, failureRuneLimit)
	}
}

func TestFormatEscapesFences(t *testing.T) {
	out := Outcome{Command: "echo `id`", Stdout: "a```b"}.Format()
	if strings.Count(out, "```") != 2 {
		t.Fatalf("fence leaked: %q", out)
	}
	if strings.Contains(out, "`id`") {
		t.Fatalf("inline backticks kept: %q", out)
	}
}

func TestCappedBufferWrite(t *testing.T) {
	b := newCappedBuffer(4)
	_, _ = b.Write([]byte("abcdef"))
	if !b.truncated {
		t.Fatalf("expected truncated")
	}
	if got := b.String(); got != "abcd\n[output truncated]" {
		t.Fatalf("unexpected string: %q", got)
	}
}
