package main

import (
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// operation is the resolved form of an instruction type identifier. The set
// of implementations is closed; dispatch switches over all of them.
type operation interface {
	kind() string
}

type prepOp struct{ basis Basis }

type measureOp struct {
	basis  Basis
	all    bool
	parity bool
}

type resetAveragingOp struct{}

type notOp struct{}

type displayOp struct{ binary bool }

type waitOp struct{}

type gateOp struct {
	ident string
	desc  GateDescriptor
}

func (prepOp) kind() string           { return "prep" }
func (measureOp) kind() string        { return "measure" }
func (resetAveragingOp) kind() string { return "reset_averaging" }
func (notOp) kind() string            { return "not" }
func (displayOp) kind() string        { return "display" }
func (waitOp) kind() string           { return "wait" }
func (gateOp) kind() string           { return "gate" }

// resolveOperation maps a type identifier onto its operation. The second
// result is false for identifiers the engine does not support.
func resolveOperation(name string) (operation, bool) {
	switch name {
	case "prep_x":
		return prepOp{basis: BasisX}, true
	case "prep_y":
		return prepOp{basis: BasisY}, true
	case "prep_z":
		return prepOp{basis: BasisZ}, true
	case "measure", "measure_z":
		return measureOp{basis: BasisZ}, true
	case "measure_x":
		return measureOp{basis: BasisX}, true
	case "measure_y":
		return measureOp{basis: BasisY}, true
	case "measure_all":
		return measureOp{basis: BasisZ, all: true}, true
	case "measure_parity":
		return measureOp{basis: BasisZ, parity: true}, true
	case "reset-averaging":
		return resetAveragingOp{}, true
	case "not":
		return notOp{}, true
	case "display":
		return displayOp{}, true
	case "display_binary":
		return displayOp{binary: true}, true
	case "wait":
		return waitOp{}, true
	}
	if desc, ok := lookupGate(name); ok {
		return gateOp{ident: name, desc: desc}, true
	}
	return nil, false
}

// dispatch executes one instruction and reports whether it occupies a
// logical time slot.
func (x *execContext) dispatch(in *Instruction) (bool, error) {
	x.logger.Debug("operation", zap.String("op", in.String()), zap.Int("line", in.Line))

	// With multiple condition bits, all of them must be set for every
	// parallel gate, so conditions are resolved before anything else. A
	// skipped instruction still occupies its time slot.
	if in.Conditional() && !x.state.AllSet(in.Condition) {
		skippedInstructions.Inc()
		return true, nil
	}

	op, ok := resolveOperation(in.Name)
	if !ok {
		return false, errors.Wrapf(ErrUnsupportedInstruction, "line %d: %s", in.Line, in.Name)
	}
	instructionsTotal.WithLabelValues(op.kind()).Inc()

	switch op := op.(type) {
	case prepOp:
		return x.prep(in, op)
	case measureOp:
		return x.measure(in, op)
	case resetAveragingOp:
		x.state.ResetAveraging()
		return false, nil
	case notOp:
		x.state.Flip(in.Bits)
		return true, nil
	case displayOp:
		x.display(in, op)
		return false, nil
	case waitOp:
		if err := x.exec.Advance(in.Wait); err != nil {
			return false, errors.Wrapf(err, "line %d: wait %d", in.Line, in.Wait)
		}
		// Time was advanced explicitly; the bundle must not add a tick.
		return false, nil
	case gateOp:
		return x.gate(in, op)
	default:
		panic(fmt.Sprintf("unhandled operation %T", op))
	}
}

func (x *execContext) prep(in *Instruction, op prepOp) (bool, error) {
	req := GateRequest{Kind: GatePrep, Basis: op.basis, Qubits: x.refs(in.SelectedQubits())}
	if err := x.exec.Gate(req); err != nil {
		return false, errors.Wrapf(err, "line %d: %s", in.Line, in.Name)
	}
	return true, nil
}

func (x *execContext) measure(in *Instruction, op measureOp) (bool, error) {
	if op.parity {
		x.diag.warn("measure_parity is not implemented, interpreting as measure_z", zap.Int("line", in.Line))
	}

	var idxs []int
	if op.all {
		idxs = indices(len(x.qubits))
	} else {
		idxs = in.SelectedQubits()
	}

	req := GateRequest{Kind: GateMeasure, Basis: op.basis, Qubits: x.refs(idxs)}
	if err := x.exec.Gate(req); err != nil {
		return false, errors.Wrapf(err, "line %d: %s", in.Line, in.Name)
	}

	for _, idx := range idxs {
		res, err := x.exec.Measurement(x.qubits[idx])
		if err != nil {
			return false, errors.Wrapf(err, "line %d: read measurement of q[%d]", in.Line, idx)
		}
		data := &MeasurementData{JSON: res.JSON, Binary: res.Binary}
		value := false
		switch res.Value {
		case MeasuredZero:
			data.Raw = new(int)
		case MeasuredOne:
			value = true
			raw := 1
			data.Raw = &raw
		default:
			x.diag.warn("received undefined measurement, interpreting as 0", zap.Int("qubit", idx), zap.Int("line", in.Line))
		}
		measurementOutcomes.WithLabelValues(res.Value.String()).Inc()
		x.state.Record(idx, value, data)
	}
	return true, nil
}

func (x *execContext) display(in *Instruction, op displayOp) {
	if !op.binary {
		x.diag.once("display", "qubit state cannot be displayed, interpreting display as display_binary")
	}

	idxs := in.Bits
	if len(idxs) == 0 {
		idxs = indices(len(x.state.Bits))
	}
	entries := x.state.Display(idxs)
	for _, e := range entries {
		x.logger.Info(e.String())
	}
	if x.observer != nil {
		x.observer.Display(entries)
	}
}

// gate issues a catalog gate. Each role selects a list of qubits; all lists
// must have the same length L, and the instruction fans out into L gates
// taking the g-th qubit of every role.
func (x *execContext) gate(in *Instruction, op gateOp) (bool, error) {
	if len(in.Qubits) != op.desc.Arity {
		return false, errors.Wrapf(ErrArityMismatch, "line %d: %s expects %d qubit arguments, got %d",
			in.Line, op.ident, op.desc.Arity, len(in.Qubits))
	}
	width := len(in.Qubits[0])
	for _, role := range in.Qubits[1:] {
		if len(role) != width {
			return false, errors.Wrapf(ErrArityMismatch, "line %d: %s", in.Line, in.String())
		}
	}

	for g := 0; g < width; g++ {
		req := GateRequest{
			Kind:   GatePredefined,
			Gate:   op.desc.Gate,
			Qubits: make([]QubitRef, 0, op.desc.Arity),
		}
		if op.desc.NeedsAngle {
			req.Params = []float64{in.Angle}
		}
		for _, role := range in.Qubits {
			req.Qubits = append(req.Qubits, x.qubits[role[g]])
		}
		if err := x.exec.Gate(req); err != nil {
			return false, errors.Wrapf(err, "line %d: %s", in.Line, in.Name)
		}
	}
	return true, nil
}

func (x *execContext) refs(idxs []int) []QubitRef {
	refs := make([]QubitRef, len(idxs))
	for i, idx := range idxs {
		refs[i] = x.qubits[idx]
	}
	return refs
}
