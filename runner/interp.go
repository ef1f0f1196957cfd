// interp.go - Interpreter fuer geparste Skripte
//
// Bindungen werden pro Submission in staged gesammelt und erst nach dem
// letzten erfolgreichen Statement in die Umgebung der Engine uebernommen.
package runner

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/sysds/sysds/ml"
)

// execError is an operator-level failure of one statement.
type execError struct {
	statement int
	op        string
	err       error
}

func (e *execError) Error() string {
	return fmt.Sprintf("statement %d (%s): %v", e.statement, e.op, e.err)
}

func (e *execError) Unwrap() error { return e.err }

type interp struct {
	vars    map[string]ml.Value
	staged  map[string]ml.Value
	inputs  map[string]ml.Value
	stdout  io.Writer
	workdir string
	memory  uint64
}

func (in *interp) lookup(name string) (ml.Value, bool) {
	if v, ok := in.staged[name]; ok {
		return v, true
	}
	v, ok := in.vars[name]
	return v, ok
}

// run executes stmts against the staged environment.
func (in *interp) run(stmts []statement) error {
	for i, s := range stmts {
		values, err := in.eval(s.expr)
		if err != nil {
			return &execError{statement: i, op: opName(s.expr), err: err}
		}

		if len(s.targets) > 0 && len(values) != len(s.targets) {
			return &execError{statement: i, op: opName(s.expr), err: fmt.Errorf("%d values returned for %d targets", len(values), len(s.targets))}
		}
		for j, name := range s.targets {
			if err := in.checkMemory(values[j]); err != nil {
				return &execError{statement: i, op: opName(s.expr), err: err}
			}
			in.staged[name] = values[j]
		}
	}
	return nil
}

// commit moves the staged bindings into vars.
func (in *interp) commit() {
	for k, v := range in.staged {
		in.vars[k] = v
	}
	clear(in.staged)
}

func (in *interp) checkMemory(v ml.Value) error {
	if in.memory == 0 {
		return nil
	}
	if m, ok := v.(*ml.Matrix); ok {
		r, c := m.Dims()
		if size := uint64(r) * uint64(c) * 8; size > in.memory {
			return fmt.Errorf("%dx%d matrix needs %s, memory budget is %s", r, c, humanize.IBytes(size), humanize.IBytes(in.memory))
		}
	}
	return nil
}

func opName(e expr) string {
	switch e := e.(type) {
	case *call:
		return e.name
	case *binary:
		return e.op
	case *unary:
		return e.op
	case *literal:
		return "literal"
	default:
		return "assign"
	}
}

func (in *interp) evalOne(e expr) (ml.Value, error) {
	values, err := in.eval(e)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s returns %d values where one is expected", opName(e), len(values))
	}
	return values[0], nil
}

func (in *interp) eval(e expr) ([]ml.Value, error) {
	switch e := e.(type) {
	case *literal:
		return one(ml.Scalar{V: e.v}), nil
	case *varRef:
		v, ok := in.lookup(e.name)
		if !ok {
			return nil, fmt.Errorf("undefined variable %s", e.name)
		}
		return one(v), nil
	case *inputRef:
		v, ok := in.inputs[e.name]
		if !ok {
			return nil, fmt.Errorf("undefined input $%s", e.name)
		}
		return one(v), nil
	case *unary:
		x, err := in.evalOne(e.x)
		if err != nil {
			return nil, err
		}
		v, err := unaryOp(e.op, x)
		if err != nil {
			return nil, err
		}
		return one(v), nil
	case *binary:
		l, err := in.evalOne(e.l)
		if err != nil {
			return nil, err
		}
		r, err := in.evalOne(e.r)
		if err != nil {
			return nil, err
		}
		v, err := binaryOp(e.op, l, r)
		if err != nil {
			return nil, err
		}
		return one(v), nil
	case *call:
		b, err := lookupBuiltin(e.name)
		if err != nil {
			return nil, err
		}

		var positional []ml.Value
		named := make(map[string]ml.Value)
		for _, a := range e.args {
			v, err := in.evalOne(a.value)
			if err != nil {
				return nil, err
			}
			if a.name == "" {
				if len(named) > 0 {
					return nil, fmt.Errorf("%s: positional argument after named arguments", e.name)
				}
				positional = append(positional, v)
			} else {
				if _, dup := named[a.name]; dup {
					return nil, fmt.Errorf("%s: parameter %q given twice", e.name, a.name)
				}
				named[a.name] = v
			}
		}

		args, err := b.bindArgs(e.name, positional, named)
		if err != nil {
			return nil, err
		}
		return b.fn(in, args)
	default:
		return nil, fmt.Errorf("unsupported expression %T", e)
	}
}
