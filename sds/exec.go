// exec.go - Ausfuehrung fertiger Skripte ausserhalb des Graphen
package sds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/sysds/sysds/api"
	"github.com/sysds/sysds/graph"
	"github.com/sysds/sysds/ml"
)

var outputName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Exec submits a hand written script and returns the named variables.
// The script does not touch the graph. It runs isolated: it may read the
// variables of earlier computes, but its own assignments are discarded by
// the engine, so graph bindings stay intact. Runtime errors carry no node
// id.
func (c *Context) Exec(ctx context.Context, script string, outputs ...string) ([]ml.Value, error) {
	for _, o := range outputs {
		if !outputName.MatchString(o) {
			return nil, &CompileError{Reason: fmt.Sprintf("invalid output name %q", o)}
		}
	}

	c.mu.Lock()
	if err := c.usable(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	req := &api.ExecuteRequest{
		Script:      script,
		Outputs:     outputs,
		Compression: c.cfg.Compression,
		ForceDense:  c.cfg.ForceDense,
		Isolated:    true,
	}
	c.mu.Unlock()

	frames, err := c.submit(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateClosed {
		return nil, ErrContextClosed
	}
	if err == nil && len(frames) != len(outputs) {
		err = fmt.Errorf("%w: expected %d frames, got %d", ErrBackendFault, len(outputs), len(frames))
	}
	if err != nil {
		if errors.Is(err, ErrBackendFault) && c.state == stateOpen {
			c.state = stateFaulted
			c.fault = err
			slog.Warn("backend fault, context unusable until reopened", "session", c.id, "error", err)
		}
		return nil, err
	}

	vals := make([]ml.Value, len(frames))
	var decodeErr error
	for i, f := range frames {
		if f.Name == "" {
			f.Name = outputs[i]
		}
		v, err := ml.Decode(f, frameType(f.Kind))
		if err != nil {
			decodeErr = errors.Join(decodeErr, err)
			continue
		}
		vals[i] = v
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return vals, nil
}

// frameType trusts the frame kind since an untyped script declares none.
func frameType(k api.Kind) graph.ValueType {
	switch k {
	case api.KindMatrix:
		return graph.TypeMatrix
	case api.KindFrame:
		return graph.TypeFrame
	case api.KindScalar:
		return graph.TypeScalar
	case api.KindList:
		return graph.TypeList
	default:
		return graph.TypeNone
	}
}
