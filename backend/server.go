// server.go - Gemeinsame HTTP-Logik beider Server-Varianten
// Enthaelt Submit mit Semaphore, Fehlerabbildung und Journal-Eintraegen.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/sysds/sysds/api"
	"github.com/sysds/sysds/history"
	"github.com/sysds/sysds/logutil"
)

// httpServer talks to an engine through an api.Client.
type httpServer struct {
	client   *api.Client
	sem      *semaphore.Weighted
	session  string
	recorder Recorder

	// alive reports nil while the engine can still answer.
	alive  func() error
	closed atomic.Bool
}

var errClosed = errors.New("backend closed")

func newHTTPServer(client *api.Client, opts Options) *httpServer {
	return &httpServer{
		client:   client,
		sem:      semaphore.NewWeighted(opts.numParallel()),
		session:  opts.Session,
		recorder: opts.Recorder,
		alive:    func() error { return nil },
	}
}

// Submit runs req on the engine.
func (s *httpServer) Submit(ctx context.Context, req *api.ExecuteRequest) ([]api.Frame, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	if s.closed.Load() {
		return nil, fmt.Errorf("%w: %v", api.ErrBackendFault, errClosed)
	}
	if err := s.alive(); err != nil {
		return nil, fmt.Errorf("%w: %v", api.ErrBackendFault, err)
	}

	slog.Debug("submitting program", "statements", len(req.Statements), "inputs", len(req.Inputs), "outputs", len(req.Outputs))
	logutil.Trace("program", "script", req.Script)

	start := time.Now()
	frames, err := s.client.Execute(ctx, req)
	err = s.classify(ctx, req, frames, err)
	s.record(ctx, req, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	slog.Debug("program finished", "duration", time.Since(start), "frames", len(frames))
	return frames, nil
}

// classify maps transport and engine errors onto the error taxonomy.
func (s *httpServer) classify(ctx context.Context, req *api.ExecuteRequest, frames []api.Frame, err error) error {
	if err == nil {
		if len(frames) != len(req.Outputs) {
			return fmt.Errorf("%w: engine returned %d frames for %d outputs", api.ErrBackendFault, len(frames), len(req.Outputs))
		}
		return nil
	}

	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", api.ErrOutcomeUnknown, ctx.Err())
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusUnprocessableEntity {
		rerr := &api.RuntimeError{Op: statusErr.Op, Statement: -1, Message: statusErr.ErrorMessage}
		if st := statusErr.Statement; st != nil {
			rerr.Statement = *st
			if *st >= 0 && *st < len(req.Statements) {
				rerr.NodeID = req.Statements[*st].NodeID
				if rerr.Op == "" {
					rerr.Op = req.Statements[*st].Op
				}
			}
		}
		return rerr
	}

	if aliveErr := s.alive(); aliveErr != nil {
		err = fmt.Errorf("%v: %v", err, aliveErr)
	}
	return fmt.Errorf("%w: %v", api.ErrBackendFault, err)
}

func (s *httpServer) record(ctx context.Context, req *api.ExecuteRequest, d time.Duration, err error) {
	if s.recorder == nil {
		return
	}

	e := history.Entry{
		Session:    s.session,
		Time:       time.Now(),
		Script:     req.Script,
		Outputs:    strings.Join(req.Outputs, ","),
		Statements: len(req.Statements),
		Duration:   d,
	}
	if err != nil {
		e.Error = err.Error()
	}
	if rerr := s.recorder.Record(context.WithoutCancel(ctx), e); rerr != nil {
		slog.Warn("failed to journal submission", "error", rerr)
	}
}

// Ping reports whether the engine answers its health check.
func (s *httpServer) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return errClosed
	}
	if err := s.alive(); err != nil {
		return err
	}
	resp, err := s.client.Health(ctx)
	if err != nil {
		slog.Debug("engine unhealthy", "error", err)
		return err
	}
	if resp.Status != api.ServerStatusReady && resp.Status != api.ServerStatusBusy {
		return fmt.Errorf("engine status: %s", resp.Status)
	}
	return nil
}

// waitUntilRunning polls the health endpoint until the engine is ready or
// timeout elapses.
func (s *httpServer) waitUntilRunning(ctx context.Context, timeout time.Duration, exited <-chan struct{}) error {
	deadline := time.Now().Add(timeout)
	start := time.Now()

	slog.Info("waiting for engine to start responding")
	var lastStatus api.ServerStatus = -1
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for engine to start: %w", ctx.Err())
		case <-exited:
			return fmt.Errorf("engine process has terminated: %w", s.alive())
		default:
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for engine to start after %s", timeout)
		}

		hctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		resp, err := s.client.Health(hctx)
		cancel()

		status := api.ServerStatusNotResponding
		if err == nil {
			status = resp.Status
		}
		if status == api.ServerStatusReady {
			slog.Info(fmt.Sprintf("engine started in %0.2f seconds", time.Since(start).Seconds()))
			return nil
		}
		if status != lastStatus {
			slog.Debug("waiting for engine to become available", "status", status)
			lastStatus = status
		}

		t := time.NewTimer(50 * time.Millisecond)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		case <-exited:
			t.Stop()
		}
	}
}
