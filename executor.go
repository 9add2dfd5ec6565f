package main

import "fmt"

// QubitRef is an opaque qubit handle owned by an Executor.
type QubitRef uint64

// Basis selects the Pauli basis of a prep or measure request.
type Basis int

const (
	BasisZ Basis = iota
	BasisX
	BasisY
)

func (b Basis) String() string {
	switch b {
	case BasisX:
		return "x"
	case BasisY:
		return "y"
	default:
		return "z"
	}
}

// GateKind distinguishes the three request shapes an Executor understands.
type GateKind int

const (
	GatePredefined GateKind = iota
	GatePrep
	GateMeasure
)

// PredefinedGate names a unitary the Executor knows how to apply. Qubits
// beyond the gate's own targets are leading controls, so a two-qubit X
// request is a CNOT and a three-qubit X request is a Toffoli.
type PredefinedGate int

const (
	GateI PredefinedGate = iota
	GateX
	GateY
	GateZ
	GateH
	GateS
	GateSdag
	GateT
	GateTdag
	GateRX90
	GateRXM90
	GateRY90
	GateRYM90
	GateRX
	GateRY
	GateRZ
	GatePhase
	GateSwap
)

var predefinedGateNames = [...]string{
	GateI:     "I",
	GateX:     "X",
	GateY:     "Y",
	GateZ:     "Z",
	GateH:     "H",
	GateS:     "S",
	GateSdag:  "S_DAG",
	GateT:     "T",
	GateTdag:  "T_DAG",
	GateRX90:  "RX_90",
	GateRXM90: "RX_M90",
	GateRY90:  "RY_90",
	GateRYM90: "RY_M90",
	GateRX:    "RX",
	GateRY:    "RY",
	GateRZ:    "RZ",
	GatePhase: "PHASE",
	GateSwap:  "SWAP",
}

func (g PredefinedGate) String() string {
	if int(g) < len(predefinedGateNames) {
		return predefinedGateNames[g]
	}
	return fmt.Sprintf("GATE(%d)", int(g))
}

// Targets returns how many trailing qubits the gate acts on.
func (g PredefinedGate) Targets() int {
	if g == GateSwap {
		return 2
	}
	return 1
}

// GateRequest is a single gate application issued to an Executor.
type GateRequest struct {
	Kind   GateKind
	Gate   PredefinedGate // GatePredefined only
	Basis  Basis          // GatePrep and GateMeasure only
	Qubits []QubitRef
	Params []float64
}

func (r GateRequest) String() string {
	switch r.Kind {
	case GatePrep:
		return fmt.Sprintf("prep_%s%v", r.Basis, r.Qubits)
	case GateMeasure:
		return fmt.Sprintf("measure_%s%v", r.Basis, r.Qubits)
	}
	if len(r.Params) > 0 {
		return fmt.Sprintf("%s(%v)%v", r.Gate, r.Params, r.Qubits)
	}
	return fmt.Sprintf("%s%v", r.Gate, r.Qubits)
}

// MeasurementValue is the raw outcome reported for a measured qubit.
type MeasurementValue int

const (
	MeasuredZero MeasurementValue = iota
	MeasuredOne
	MeasuredUndefined
)

func (v MeasurementValue) String() string {
	switch v {
	case MeasuredZero:
		return "zero"
	case MeasuredOne:
		return "one"
	default:
		return "undefined"
	}
}

// MeasurementResult is what an Executor returns for the latest measurement
// of a qubit: the outcome plus executor-defined metadata.
type MeasurementResult struct {
	Value  MeasurementValue
	JSON   map[string]any
	Binary [][]byte
}

// Executor performs gates, measurements and time advances on behalf of the
// engine. All calls are synchronous and are never issued concurrently.
type Executor interface {
	Allocate(n int) ([]QubitRef, error)
	Free(q QubitRef) error
	Gate(req GateRequest) error
	Advance(ticks uint64) error
	Measurement(q QubitRef) (MeasurementResult, error)
}
