package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/camrelay/internal/logging"
)

// LogParser parses a stderr line into a level ("error", "warning", "info",
// "debug") and message.
type LogParser func(line string) (level, msg string)

// Options configures a Process.
type Options struct {
	// ID names the process in logs.
	ID string
	// Command is the executable, optionally followed by leading arguments
	// ("ffmpeg", "nice -n 10 ffmpeg"). Quotes group words.
	Command string
	// Args are appended verbatim after Command.
	Args []string

	Logger       *slog.Logger
	OutputLogger *slog.Logger // stderr lines; nil uses Logger
	LogParser    LogParser

	GracefulTimeout time.Duration // SIGINT -> SIGKILL; default 2s
	KillTimeout     time.Duration // SIGKILL -> give up; default 2s
	TailLines       int           // stderr lines kept for Tail; default 20
}

// Process is a running subprocess whose stdout is consumed by the caller and
// whose stderr is logged. It runs in its own process group so signals reach
// any children.
type Process struct {
	id     string
	cmd    *exec.Cmd
	stdout io.ReadCloser
	logger *slog.Logger

	gracefulTimeout time.Duration
	killTimeout     time.Duration

	done     chan struct{}
	waitErr  error
	stopOnce sync.Once
	exitCode int

	tailMu sync.Mutex
	tail   []string
	tailN  int
}

// Start launches the process.
func Start(opts Options) (*Process, error) {
	args, err := parseCommand(opts.Command)
	if err != nil {
		return nil, err
	}
	args = append(args, opts.Args...)
	if len(args) == 0 {
		return nil, errors.New("empty command")
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("process")
	}

	p := &Process{
		id:              opts.ID,
		logger:          logger,
		gracefulTimeout: orDefault(opts.GracefulTimeout, 2*time.Second),
		killTimeout:     orDefault(opts.KillTimeout, 2*time.Second),
		done:            make(chan struct{}),
		tailN:           opts.TailLines,
	}
	if p.tailN <= 0 {
		p.tailN = 20
	}

	p.cmd = exec.Command(args[0], args[1:]...)
	p.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// Stdout is a plain pipe so Wait does not close it under a reader that
	// still has buffered data to drain.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	p.stdout = pr
	p.cmd.Stdout = pw
	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := p.cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("start %s: %w", args[0], err)
	}
	pw.Close()
	logger.Debug("Process started", "id", p.id, "pid", p.cmd.Process.Pid)

	outLogger := opts.OutputLogger
	if outLogger == nil {
		outLogger = logger
	}
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		p.streamStderr(stderr, outLogger, opts.LogParser)
	}()

	go func() {
		// Wait closes the pipes, so drain stderr first.
		<-stderrDone
		p.waitErr = p.cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

// Stdout returns the process's standard output.
func (p *Process) Stdout() io.Reader { return p.stdout }

// PID returns the process id.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// Done is closed when the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Err returns the wait error once Done is closed.
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.waitErr
	default:
		return nil
	}
}

// Tail returns the last stderr lines.
func (p *Process) Tail() []string {
	p.tailMu.Lock()
	defer p.tailMu.Unlock()
	return append([]string(nil), p.tail...)
}

// Stop sends SIGINT to the process group, escalates to SIGKILL after the
// graceful timeout and returns the exit code (137 when killed). Safe to call
// more than once and after the process exited on its own. Stdout is closed
// on return.
func (p *Process) Stop() int {
	p.stopOnce.Do(func() {
		defer p.stdout.Close()
		select {
		case <-p.done:
			p.exitCode = exitCodeFromError(p.waitErr)
			return
		default:
		}

		p.signal(syscall.SIGINT)
		select {
		case <-p.done:
			p.exitCode = exitCodeFromError(p.waitErr)
			return
		case <-time.After(p.gracefulTimeout):
		}

		p.logger.Warn("Graceful shutdown timeout, forcing kill", "id", p.id, "timeout", p.gracefulTimeout)
		p.signal(syscall.SIGKILL)
		select {
		case <-p.done:
		case <-time.After(p.killTimeout):
			p.logger.Error("Process did not exit after kill signal", "id", p.id)
		}
		p.exitCode = 137
	})
	return p.exitCode
}

func (p *Process) signal(sig syscall.Signal) {
	pid := p.cmd.Process.Pid
	if err := syscall.Kill(-pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		// Fall back to the leader alone.
		if err := p.cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.logger.Warn("Failed to signal process", "id", p.id, "signal", sig.String(), "error", err)
		}
	}
}

func (p *Process) streamStderr(r io.Reader, logger *slog.Logger, parse LogParser) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		p.remember(line)

		level, msg := "info", line
		if parse != nil {
			level, msg = parse(line)
		}
		switch level {
		case "fatal", "panic", "error":
			logger.Error(msg, "id", p.id)
		case "warning":
			logger.Warn(msg, "id", p.id)
		case "debug", "trace", "verbose":
			logger.Debug(msg, "id", p.id)
		default:
			logger.Info(msg, "id", p.id)
		}
	}
}

func (p *Process) remember(line string) {
	p.tailMu.Lock()
	defer p.tailMu.Unlock()
	if len(p.tail) == p.tailN {
		copy(p.tail, p.tail[1:])
		p.tail = p.tail[:len(p.tail)-1]
	}
	p.tail = append(p.tail, line)
}

// exitCodeFromError returns 0 for nil, the exit status for *exec.ExitError
// and 1 otherwise.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// parseCommand splits a command line on spaces, honoring single and double
// quotes and backslash escapes.
func parseCommand(command string) ([]string, error) {
	var args []string
	var cur strings.Builder
	var quote rune
	pending := false

	runes := []rune(strings.TrimSpace(command))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '"' || r == '\''):
			quote = r
			pending = true
		case quote == 0 && (r == ' ' || r == '\t'):
			if pending || cur.Len() > 0 {
				args = append(args, cur.String())
				cur.Reset()
				pending = false
			}
		case r == '\\' && i+1 < len(runes):
			i++
			cur.WriteRune(runes[i])
		default:
			cur.WriteRune(r)
		}
	}

	if quote != 0 {
		return nil, errors.New("unclosed quote in command")
	}
	if pending || cur.Len() > 0 {
		args = append(args, cur.String())
	}
	return args, nil
}
