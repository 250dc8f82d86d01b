//go:build linux

package processmgr

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// KillGrace is how long a process gets between SIGTERM and SIGKILL.
const KillGrace = 3 * time.Second

// Process encapsulates one supervised external command.
// Features:
//   - own process group, SIGKILL on parent death
//   - stdout/stderr drained line by line into a LogBuffer
//   - deterministic teardown (SIGTERM to the group, grace, SIGKILL)
//   - idempotent Start / Close lifecycle
//
// Canonical usage:
//
//	p → Start() → ... → Stop() (or <-Done())
type Process struct {
	log    *zap.Logger
	logBuf *LogBuffer

	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser

	// Closed after the process is fully reaped.
	done      chan struct{}
	closeOnce sync.Once
	startOnce sync.Once

	started  atomic.Bool
	pid      atomic.Int64
	exitCode atomic.Int64
	lines    atomic.Int64

	mu sync.Mutex
}

// NewProcess prepares argv for execution. Nothing is started yet.
func NewProcess(log *zap.Logger, logBuf *LogBuffer, env, argv []string) (*Process, error) {
	if log == nil || logBuf == nil || len(argv) == 0 {
		return nil, errors.New("new process: invalid parameters")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	stdout, stderr, err := pipes(cmd)
	if err != nil {
		return nil, err
	}

	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}

	return &Process{
		log:    log,
		logBuf: logBuf,
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		done:   make(chan struct{}),
	}, nil
}

// StdinPipe connects a pipe to the child's stdin. It must be called before
// Start; the pipe is closed when the process is reaped.
func (p *Process) StdinPipe() (io.WriteCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started.Load() {
		return nil, errors.New("stdin pipe: process already started")
	}
	return p.cmd.StdinPipe()
}

// Start launches the command exactly once. A second call returns an error.
func (p *Process) Start() error {
	err := errors.New("process already started")

	p.startOnce.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		if err = p.cmd.Start(); err != nil {
			_ = p.stdout.Close()
			_ = p.stderr.Close()
			return
		}

		pid := p.cmd.Process.Pid
		p.started.Store(true)
		p.pid.Store(int64(pid))
		p.exitCode.Store(-1)

		p.log.Debug("process started", zap.Int("cmd_pid", pid))
		go p.supervise()
	})

	return err
}

// supervise drains both pipes, reaps the child once and fires Done().
//
// Pipe closure can precede the actual exit on Linux. If the second pipe
// stays open for long after the first one closed, the process is considered
// stuck and shut down.
func (p *Process) supervise() {
	pipeDone := make(chan struct{}, 2)

	go func() {
		p.drain(p.stdout)
		pipeDone <- struct{}{}
	}()
	go func() {
		p.drain(p.stderr)
		pipeDone <- struct{}{}
	}()

	<-pipeDone
	select {
	case <-pipeDone:
	case <-time.After(250 * time.Millisecond):
		p.log.Warn("output pipe did not close in grace interval; issuing shutdown")
		p.Close()
		<-pipeDone
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	code := 0
	if err := p.cmd.Wait(); err != nil {
		var eerr *exec.ExitError
		if errors.As(err, &eerr) {
			status := eerr.ProcessState.Sys().(syscall.WaitStatus)
			code = status.ExitStatus()
			if status.Signaled() {
				code = 128 + int(status.Signal())
			}
			p.log.Debug("process exited with error status",
				zap.Int("exit_code", code),
				zap.Bool("signaled", status.Signaled()),
				zap.String("signal", status.Signal().String()))
		} else {
			code = -1
			p.log.Error("failed to wait for process", zap.Error(err))
		}
	} else {
		p.log.Debug("process exited cleanly")
	}

	p.exitCode.Store(int64(code))
	close(p.done)
}

func (p *Process) drain(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	for sc.Scan() {
		p.lines.Add(1)
		p.logBuf.Append(sc.Text())
	}

	if err := sc.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		p.log.Debug("output scanner failure", zap.Error(err))
	}
}

func (p *Process) Done() <-chan struct{} { return p.done }

// Pid returns the child pid, 0 before Start.
func (p *Process) Pid() int { return int(p.pid.Load()) }

// Lines returns the number of output lines seen so far.
func (p *Process) Lines() int64 { return p.lines.Load() }

// Exited reports whether the process has been reaped, and its exit code.
// Processes killed by a signal report 128+signal.
func (p *Process) Exited() (int, bool) {
	select {
	case <-p.done:
		return int(p.exitCode.Load()), true
	default:
		return 0, false
	}
}

// Close initiates shutdown in the background:
//
//   - SIGTERM to the process group
//   - SIGKILL after KillGrace if still alive
//
// Close is idempotent and concurrency-safe.
func (p *Process) Close() {
	p.closeOnce.Do(func() {
		if !p.started.Load() {
			return
		}
		go p.terminate()
	})
}

// Stop closes the process and blocks until it has been reaped.
func (p *Process) Stop() {
	if !p.started.Load() {
		return
	}
	p.Close()
	<-p.done
}

func (p *Process) terminate() {
	select {
	case <-p.done:
		return
	default:
	}

	pid := p.Pid()
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		p.log.Warn("SIGTERM failed", zap.Error(err), zap.Int("cmd_pid", pid))
	}

	timer := time.NewTimer(KillGrace)
	defer timer.Stop()

	select {
	case <-p.done:
		return
	case <-timer.C:
		p.log.Warn("grace timeout expired; sending SIGKILL", zap.Int("cmd_pid", pid))
		if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
			p.log.Error("SIGKILL failed", zap.Error(err), zap.Int("cmd_pid", pid))
		}
	}
}

// pipes prepares stdout and stderr for exec.Cmd. If the second pipe fails
// the first one is closed so no descriptor leaks.
func pipes(cmd *exec.Cmd) (io.ReadCloser, io.ReadCloser, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("stdout pipe creation failure: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = stdout.Close()
		return nil, nil, fmt.Errorf("stderr pipe creation failure: %w", err)
	}

	return stdout, stderr, nil
}
