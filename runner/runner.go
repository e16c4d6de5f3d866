// Package runner supervises an installer subprocess and feeds its
// output into a session.
//
// The installer's diagnostics arrive on stderr and its milestone lines
// on stdout. Each pipe is chopped into whole lines before it reaches
// the shared session, so a partial line on one pipe can never splice
// into the other's. Nothing outside this package spawns processes.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/justapithecus/uvlens/iox"
	"github.com/justapithecus/uvlens/log"
	"github.com/justapithecus/uvlens/session"
	"github.com/justapithecus/uvlens/types"
)

// defaultTraceEnv turns on the installer trace output the classifier
// consumes. Caller-supplied env entries override it.
const defaultTraceEnv = "RUST_LOG=uv=debug,h2=debug,pubgrub=info"

const defaultChunkSize = 4096

// Config configures a supervised installer run.
type Config struct {
	// UvPath is the installer binary. Defaults to "uv".
	UvPath string
	// Args is the argv after the binary, e.g. ["pip", "install", "-r",
	// "requirements.txt"].
	Args []string
	// Dir is the working directory. Empty means inherit.
	Dir string
	// Env holds extra KEY=VALUE entries layered over the inherited
	// environment. Later entries win.
	Env []string
	// Timeout kills the installer after this long. Zero means none.
	Timeout time.Duration
	// SweepInterval runs periodic session reclaim sweeps. Zero
	// disables them.
	SweepInterval time.Duration
	// ChunkSize is the pipe read buffer size.
	ChunkSize int
	// Logger receives supervisor diagnostics. Nop when nil.
	Logger *log.Logger
}

// Result is the outcome of a supervised run.
type Result struct {
	// ExitCode is the installer's exit code; -1 when it died on a
	// signal.
	ExitCode int
	// Signal names the terminating signal, if any.
	Signal string
	// TimedOut reports whether the configured timeout expired.
	TimedOut bool
	// Report is the session's final report.
	Report types.Report
}

// Runner supervises one installer process.
type Runner struct {
	cfg    Config
	logger *log.Logger
	guard  *session.Guard

	mu  sync.Mutex
	cmd *exec.Cmd
}

// New constructs a runner feeding the given guarded session.
func New(cfg Config, guard *session.Guard) *Runner {
	if cfg.UvPath == "" {
		cfg.UvPath = "uv"
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &Runner{cfg: cfg, logger: logger, guard: guard}
}

// Run spawns the installer, streams both pipes into the session, and
// waits for exit. The session is closed before Run returns; the final
// report rides in the Result. Cancelling ctx kills the installer.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.cfg.UvPath, r.cfg.Args...)
	cmd.Dir = r.cfg.Dir
	cmd.Env = deduplicateEnv(append(append(os.Environ(), defaultTraceEnv), r.cfg.Env...))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start %s: %w", r.cfg.UvPath, err)
	}
	r.setCmd(cmd)
	r.logger.Info("installer started", map[string]any{
		"path": r.cfg.UvPath,
		"args": strings.Join(r.cfg.Args, " "),
		"pid":  cmd.Process.Pid,
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.feedPipe(stdout)
	}()
	go func() {
		defer wg.Done()
		r.feedPipe(stderr)
	}()

	stopSweeps := r.startSweeps()

	// Pipe readers must drain before Wait closes the pipes.
	wg.Wait()
	waitErr := cmd.Wait()
	stopSweeps()

	result := Result{}
	result.TimedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
	result.ExitCode, result.Signal, err = exitStatus(waitErr)
	if err != nil {
		r.guard.Close()
		return Result{}, err
	}

	result.Report = r.guard.Close()
	r.logger.Info("installer exited", map[string]any{
		"exit_code": result.ExitCode,
		"signal":    result.Signal,
		"timed_out": result.TimedOut,
		"outcome":   string(result.Report.Outcome),
	})
	return result, nil
}

// Kill terminates the installer immediately. Safe to call from other
// goroutines, including before the process exists.
func (r *Runner) Kill() error {
	r.mu.Lock()
	cmd := r.cmd
	r.mu.Unlock()
	if cmd != nil && cmd.Process != nil {
		return cmd.Process.Kill()
	}
	return nil
}

func (r *Runner) setCmd(cmd *exec.Cmd) {
	r.mu.Lock()
	r.cmd = cmd
	r.mu.Unlock()
}

// feedPipe reads one pipe and forwards whole lines to the session. A
// trailing partial line is carried here, per pipe, and flushed at EOF.
func (r *Runner) feedPipe(pipe io.ReadCloser) {
	defer iox.DiscardClose(pipe)

	buf := make([]byte, r.cfg.ChunkSize)
	var carry []byte
	for {
		n, err := pipe.Read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			if i := bytes.LastIndexByte(data, '\n'); i >= 0 {
				r.guard.Feed(data[:i+1])
				carry = append([]byte(nil), data[i+1:]...)
			} else {
				carry = data
			}
		}
		if err != nil {
			if len(carry) > 0 {
				r.guard.Feed(append(carry, '\n'))
			}
			return
		}
	}
}

func (r *Runner) startSweeps() func() {
	if r.cfg.SweepInterval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(r.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				r.guard.Sweep(now)
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

// exitStatus extracts the exit code and signal from a Wait error.
func exitStatus(waitErr error) (int, string, error) {
	if waitErr == nil {
		return 0, "", nil
	}
	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return 0, "", fmt.Errorf("installer wait: %w", waitErr)
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return -1, "", nil
	}
	if status.Signaled() {
		return -1, status.Signal().String(), nil
	}
	return status.ExitStatus(), "", nil
}

// deduplicateEnv keeps the last occurrence of each env var key, so
// layered overrides win over inherited duplicates.
func deduplicateEnv(env []string) []string {
	seen := make(map[string]int, len(env))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		seen[key] = i
	}
	result := make([]string, 0, len(seen))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		if seen[key] == i {
			result = append(result, entry)
		}
	}
	return result
}
