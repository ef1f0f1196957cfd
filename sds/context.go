// Package sds - Lazy Client fuer eine entfernte Matrix-Engine
//
// Ein Context besitzt:
// - den Berechnungsgraphen und den Variablenzaehler
// - genau ein Backend (Subprozess oder laufende Engine)
// - optional ein Submission-Journal (SQLite)
//
// Operator-Aufrufe haengen nur Knoten an. Erst Compute kompiliert den
// noch nicht berechneten Teilgraphen, sendet ihn in einer Submission und
// merkt sich die Ergebnisse.
package sds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sysds/sysds/api"
	"github.com/sysds/sysds/backend"
	"github.com/sysds/sysds/compiler"
	"github.com/sysds/sysds/graph"
	"github.com/sysds/sysds/history"
	"github.com/sysds/sysds/logutil"
	"github.com/sysds/sysds/ml"
)

var (
	ErrContextMismatch = api.ErrContextMismatch
	ErrContextClosed   = api.ErrContextClosed
	ErrBackendFault    = api.ErrBackendFault
	ErrOutcomeUnknown  = api.ErrOutcomeUnknown
)

// unrepeatable ops must not run twice when a cancelled submission may
// already have executed them.
var unrepeatable = map[string]bool{
	"write": true,
	"print": true,
	"rand":  true,
}

type (
	CompileError = api.CompileError
	RuntimeError = api.RuntimeError
	DecodeError  = api.DecodeError
	StartupError = api.StartupError
)

type contextState int

const (
	stateOpen contextState = iota
	stateFaulted
	stateClosed
)

// Context is one session with an engine. It is safe for concurrent use.
type Context struct {
	id  string
	cfg Config

	backend backend.Backend
	journal *history.Store

	graph *graph.Graph

	// mu guards the materialization fields of every node in graph, the
	// symbol counter, the upload table and the state.
	mu      sync.Mutex
	symbols compiler.Symbols
	uploads map[string]*graph.Node
	state   contextState
	fault   error
	closed  chan struct{}
}

// Open connects to cfg.Host or spawns the engine and returns a ready
// Context.
func Open(ctx context.Context, cfg Config) (*Context, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	session := uuid.New().String()
	opts := backend.Options{
		Executable:     cfg.Runner,
		WorkDir:        cfg.WorkDir,
		Memory:         uint64(cfg.Memory),
		Verbose:        cfg.Verbose,
		StartupTimeout: cfg.StartupTimeout,
		NumParallel:    cfg.NumParallel,
		Session:        session,
	}

	var journal *history.Store
	if cfg.History != "" {
		var err error
		if journal, err = history.Open(cfg.History); err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		opts.Recorder = journal
	}

	b, err := openBackend(ctx, cfg, opts)
	if err != nil {
		if journal != nil {
			journal.Close()
		}
		return nil, err
	}

	c := newContext(b, cfg)
	c.id = session
	c.journal = journal
	return c, nil
}

func openBackend(ctx context.Context, cfg Config, opts backend.Options) (backend.Backend, error) {
	if cfg.Host == "" {
		return backend.NewProcessServer(ctx, opts)
	}

	u, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("host %q: %w", cfg.Host, err)
	}
	return backend.NewRemoteServer(ctx, u, opts)
}

// OpenWithBackend wraps an already connected backend. The Context owns b
// and closes it on Close.
func OpenWithBackend(b backend.Backend, cfg Config) (*Context, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newContext(b, cfg), nil
}

func newContext(b backend.Backend, cfg Config) *Context {
	c := &Context{
		id:      uuid.New().String(),
		cfg:     cfg,
		backend: b,
		graph:   graph.New(),
		uploads: make(map[string]*graph.Node),
		closed:  make(chan struct{}),
	}
	slog.Debug("context opened", "session", c.id, "host", cfg.Host)
	return c
}

// Session returns the id used to tag journal entries.
func (c *Context) Session() string { return c.id }

// Graph returns the node table of the context.
func (c *Context) Graph() *graph.Graph { return c.graph }

// Journal returns the submission journal, nil if none is configured.
func (c *Context) Journal() *history.Store { return c.journal }

// Close releases the backend. It unblocks every in-flight Compute with
// ErrContextClosed and is safe to call more than once.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = stateClosed
	close(c.closed)
	c.mu.Unlock()

	slog.Debug("context closed", "session", c.id)
	err := c.backend.Close()
	if c.journal != nil {
		err = errors.Join(err, c.journal.Close())
	}
	return err
}

// usable must be called with mu held.
func (c *Context) usable() error {
	switch c.state {
	case stateClosed:
		return ErrContextClosed
	case stateFaulted:
		return c.fault
	}
	return nil
}

// ComputeAll materializes several handles in one submission and returns
// their values in order. Void handles yield nil.
//
// If ctx ends after the program was sent, the engine may already have run
// it. Pure nodes return to Pending and are recomputed on the next call;
// write, print and rand nodes and their dependents fail with
// ErrOutcomeUnknown so they never run twice.
func (c *Context) ComputeAll(ctx context.Context, handles ...Handle) ([]ml.Value, error) {
	targets := make([]graph.Ref, len(handles))
	for i, h := range handles {
		if err := h.Err(); err != nil {
			return nil, err
		}
		if h.owner() != c {
			return nil, fmt.Errorf("%w: handle %d", ErrContextMismatch, i)
		}
		targets[i] = h.ref()
	}
	return c.materialize(ctx, targets)
}

// materialize runs the compute protocol for targets:
//   - under mu, collect the pending nodes reachable from targets
//   - wait for nodes that another submission has claimed and retry
//   - claim the rest, compile and submit without holding mu
//   - under mu, record the outcome on every claimed node
func (c *Context) materialize(ctx context.Context, targets []graph.Ref) ([]ml.Value, error) {
	for _, t := range targets {
		if t.Node == nil {
			return nil, &CompileError{Reason: "nil target"}
		}
		if t.Node.Graph() != c.graph {
			return nil, ErrContextMismatch
		}
	}

	c.mu.Lock()
	var pending []*graph.Node
	for {
		if err := c.usable(); err != nil {
			c.mu.Unlock()
			return nil, err
		}

		if vals, ok := cachedResults(targets); ok {
			c.mu.Unlock()
			return vals, nil
		}

		var err error
		if pending, err = compiler.Reachable(c.graph, targets); err != nil {
			c.mu.Unlock()
			return nil, err
		}

		var wait <-chan struct{}
		for _, n := range pending {
			switch n.State() {
			case graph.Failed:
				c.mu.Unlock()
				return nil, n.Err()
			case graph.InFlight:
				wait = n.Done()
			}
		}
		if wait == nil {
			break
		}

		c.mu.Unlock()
		select {
		case <-wait:
		case <-c.closed:
			return nil, ErrContextClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		c.mu.Lock()
	}

	done := make(chan struct{})
	defer close(done)
	for _, n := range pending {
		n.Claim(done)
	}

	prog, err := compiler.Compile(c.graph, &c.symbols, targets)
	if err != nil {
		releaseAll(pending)
		c.mu.Unlock()
		return nil, err
	}
	req := prog.Request()
	req.Compression = c.cfg.Compression
	req.ForceDense = c.cfg.ForceDense
	c.mu.Unlock()

	logutil.Trace("submitting program", "session", c.id, "statements", len(prog.Statements), "outputs", req.Outputs)
	start := time.Now()
	frames, err := c.submit(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateClosed {
		releaseAll(pending)
		return nil, ErrContextClosed
	}
	if err == nil && len(frames) != len(prog.Outputs) {
		err = fmt.Errorf("%w: expected %d frames, got %d", ErrBackendFault, len(prog.Outputs), len(frames))
	}
	if err != nil {
		return nil, c.fail(prog, pending, err)
	}
	slog.Debug("submission finished", "session", c.id, "statements", len(prog.Statements), "duration", time.Since(start))

	for _, n := range prog.Nodes() {
		n.Materialize()
	}

	var decodeErr error
	for i, out := range prog.Outputs {
		v, err := ml.Decode(frames[i], out.Type)
		if err != nil {
			var de *DecodeError
			if errors.As(err, &de) && de.Output == "" {
				de.Output = out.Var
			}
			decodeErr = errors.Join(decodeErr, err)
			continue
		}
		out.Node.SetResult(out.Index, v)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}

	vals, _ := cachedResults(targets)
	return vals, nil
}

// submit unblocks when the context is closed.
func (c *Context) submit(ctx context.Context, req *api.ExecuteRequest) ([]api.Frame, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.closed:
			cancel()
		case <-ctx.Done():
		}
	}()
	return c.backend.Submit(ctx, req)
}

// fail records a failed submission and must be called with mu held.
func (c *Context) fail(prog *compiler.Program, pending []*graph.Node, err error) error {
	var rerr *RuntimeError
	switch {
	case errors.As(err, &rerr):
		failed := make(map[graph.NodeID]bool)
		if n, ok := c.graph.Node(graph.NodeID(rerr.NodeID)); ok && n.State() == graph.InFlight {
			failed[n.ID()] = true
		}
		n := failDependents(prog, pending, failed, err)
		slog.Debug("submission failed", "session", c.id, "op", rerr.Op, "node", rerr.NodeID, "failed", n)
		return err

	case errors.Is(err, ErrOutcomeUnknown):
		failed := make(map[graph.NodeID]bool)
		for _, n := range pending {
			if unrepeatable[n.Op()] {
				failed[n.ID()] = true
			}
		}
		n := failDependents(prog, pending, failed, err)
		slog.Debug("submission cancelled after send", "session", c.id, "failed", n)
		return err

	case errors.Is(err, ErrBackendFault):
		releaseAll(pending)
		c.state = stateFaulted
		c.fault = err
		slog.Warn("backend fault, context unusable until reopened", "session", c.id, "error", err)
		return err

	default:
		releaseAll(pending)
		return err
	}
}

// failDependents extends failed by every dependent in prog, fails those
// nodes and releases the other pending ones. It returns the failed count.
func failDependents(prog *compiler.Program, pending []*graph.Node, failed map[graph.NodeID]bool, err error) int {
	// statement order is topological, so one pass covers every dependent
	for _, n := range prog.Nodes() {
		for _, dep := range n.Deps() {
			if failed[dep.ID()] {
				failed[n.ID()] = true
			}
		}
	}
	count := 0
	for _, n := range pending {
		if failed[n.ID()] {
			n.Fail(err)
			count++
		} else {
			n.Release()
		}
	}
	return count
}

func releaseAll(nodes []*graph.Node) {
	for _, n := range nodes {
		n.Release()
	}
}

// cachedResults returns the values of targets if all of them are
// materialized with a decoded result. Must be called with mu held.
func cachedResults(targets []graph.Ref) ([]ml.Value, bool) {
	vals := make([]ml.Value, len(targets))
	for i, t := range targets {
		if t.Node.State() != graph.Materialized {
			return nil, false
		}
		if t.Node.Output() == graph.TypeNone {
			continue
		}
		r, ok := t.Node.Result(t.Index)
		if !ok {
			return nil, false
		}
		vals[i], _ = r.(ml.Value)
	}
	return vals, true
}
