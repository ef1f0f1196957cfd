// types.go - Wert- und Zustandstypen des Berechnungsgraphen
// Dieses Modul definiert ValueType und State.
package graph

// ValueType is the declared output type of a node.
type ValueType int

const (
	// TypeNone marks operators without outputs, executed for their side
	// effects only (write, print).
	TypeNone ValueType = iota
	TypeMatrix
	TypeFrame
	TypeScalar
	TypeList
	TypeMultiReturn
)

func (t ValueType) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeMatrix:
		return "matrix"
	case TypeFrame:
		return "frame"
	case TypeScalar:
		return "scalar"
	case TypeList:
		return "list"
	case TypeMultiReturn:
		return "multireturn"
	default:
		return "unknown"
	}
}

// State is the materialization state of a node.
type State int

const (
	Pending State = iota
	// InFlight nodes are claimed by a submission that has not returned yet.
	InFlight
	Materialized
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InFlight:
		return "in-flight"
	case Materialized:
		return "materialized"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	// OpLiteral nodes bind a single literal positional input.
	OpLiteral = "literal"
	// OpRead nodes with a Source bind an inline upload; without a Source
	// they read from a path on the engine side.
	OpRead = "read"
)
