// process.go - Engine als Subprozess
//
// Funktionen zum Starten und Beenden des Engine-Subprozesses:
// - NewProcessServer: Prozess starten und auf /health warten
// - StartRunner: Kommandozeile und Umgebung aufbauen
// - findAvailablePort: freien Port finden
// - monitorProcess: Prozessende ueber den exited-Channel melden
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/sysds/sysds/api"
)

// processServer owns an engine subprocess.
type processServer struct {
	*httpServer

	port   int
	cmd    *exec.Cmd
	status *StatusWriter

	exited  chan struct{}
	exitErr error

	closeOnce sync.Once
	closeErr  error
}

// NewProcessServer starts the engine executable and waits until it reports
// ready. A failed start or an exceeded startup timeout is returned as
// *api.StartupError.
func NewProcessServer(ctx context.Context, opts Options) (Backend, error) {
	status := NewStatusWriter(os.Stderr)
	cmd, port, err := StartRunner(opts, status)
	if err != nil {
		return nil, &api.StartupError{Err: err, Msg: status.LastErrMsg()}
	}

	base := &url.URL{Scheme: "http", Host: net.JoinHostPort("127.0.0.1", strconv.Itoa(port))}
	s := &processServer{
		httpServer: newHTTPServer(api.NewClient(base, opts.httpClient()), opts),
		port:       port,
		cmd:        cmd,
		status:     status,
		exited:     make(chan struct{}),
	}
	s.alive = s.processAlive

	go s.monitorProcess()

	if err := s.waitUntilRunning(ctx, opts.startupTimeout(), s.exited); err != nil {
		msg := status.LastErrMsg()
		s.Close()
		return nil, &api.StartupError{Err: err, Msg: msg}
	}
	return s, nil
}

// StartRunner startet den Engine-Subprozess
func StartRunner(opts Options, out io.Writer) (cmd *exec.Cmd, port int, err error) {
	exe := opts.Executable
	if exe == "" {
		if exe, err = os.Executable(); err != nil {
			return nil, 0, fmt.Errorf("unable to lookup executable path: %w", err)
		}
	}
	if eval, err := filepath.EvalSymlinks(exe); err == nil {
		exe = eval
	}

	port = findAvailablePort()

	cmd = exec.Command(exe, buildRunnerParams(opts, port)...)
	cmd.Env = os.Environ()
	cmd.Dir = opts.WorkDir
	if out != nil {
		if err := setupRunnerOutput(cmd, out); err != nil {
			return nil, 0, err
		}
	}
	cmd.SysProcAttr = sysProcAttr()

	slog.Info("starting engine", "cmd", cmd)
	slog.Debug("subprocess", "", filteredEnv(cmd.Env))

	if err = cmd.Start(); err != nil {
		return nil, 0, err
	}
	return cmd, port, nil
}

// findAvailablePort findet einen freien TCP Port
func findAvailablePort() int {
	if a, err := net.ResolveTCPAddr("tcp", "localhost:0"); err == nil {
		if l, err := net.ListenTCP("tcp", a); err == nil {
			port := l.Addr().(*net.TCPAddr).Port
			l.Close()
			return port
		}
	}
	slog.Debug("ResolveTCPAddr failed, using random port")
	return rand.Intn(65535-49152) + 49152
}

// buildRunnerParams erstellt die Kommandozeilenparameter
func buildRunnerParams(opts Options, port int) []string {
	params := []string{"runner", "--port", strconv.Itoa(port)}
	if opts.WorkDir != "" {
		params = append(params, "--workdir", opts.WorkDir)
	}
	if opts.Memory > 0 {
		params = append(params, "--memory", strconv.FormatUint(opts.Memory, 10))
	}
	if opts.Verbose {
		params = append(params, "--verbose")
	}
	return params
}

// setupRunnerOutput verbindet Stdout/Stderr mit dem Writer
func setupRunnerOutput(cmd *exec.Cmd, out io.Writer) error {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to spawn engine stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to spawn engine stderr pipe: %w", err)
	}
	go func() { io.Copy(out, stdout) }()
	go func() { io.Copy(out, stderr) }()
	return nil
}

func (s *processServer) monitorProcess() {
	err := s.cmd.Wait()
	if msg := s.status.LastErrMsg(); err != nil && msg != "" {
		slog.Error("engine terminated", "error", err)
		err = errors.New(msg)
	} else if err == nil {
		err = errors.New("engine exited")
	}
	s.exitErr = err
	close(s.exited)
}

func (s *processServer) processAlive() error {
	select {
	case <-s.exited:
		return fmt.Errorf("engine process no longer running: %w", s.exitErr)
	default:
		return nil
	}
}

// Pid gibt die Prozess-ID der Engine zurueck
func (s *processServer) Pid() int {
	if s.cmd != nil && s.cmd.Process != nil {
		return s.cmd.Process.Pid
	}
	return -1
}

// Close kills the engine process group and waits for it to exit.
func (s *processServer) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		select {
		case <-s.exited:
			return
		default:
		}

		slog.Debug("stopping engine", "pid", s.Pid())
		if err := killProcess(s.cmd.Process); err != nil {
			s.closeErr = err
			return
		}
		slog.Debug("waiting for engine to exit", "pid", s.Pid())
		<-s.exited
		slog.Debug("engine stopped", "pid", s.Pid())
	})
	return s.closeErr
}
