package main

import (
	"math"
	"math/cmplx"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"
)

type Complex = complex128

type matrix2 [2][2]Complex

// StateVector is a dense 2^n amplitude vector. Qubit q is bit q of the
// basis state index.
type StateVector struct {
	Amplitudes []Complex
	NumQubits  int
}

func NewStateVector(numQubits int) *StateVector {
	n := 1 << numQubits
	amps := make([]Complex, n)
	amps[0] = 1
	return &StateVector{Amplitudes: amps, NumQubits: numQubits}
}

// Grow appends n qubits in the |0> state.
func (s *StateVector) Grow(n int) {
	amps := make([]Complex, 1<<(s.NumQubits+n))
	copy(amps, s.Amplitudes)
	s.Amplitudes = amps
	s.NumQubits += n
}

func controlMask(controls []int) int {
	mask := 0
	for _, c := range controls {
		mask |= 1 << c
	}
	return mask
}

// applyUnitary applies m to target on the subspace where all controls are
// one.
func (s *StateVector) applyUnitary(target int, controls []int, m matrix2) {
	bit := 1 << target
	mask := controlMask(controls)
	for i := range s.Amplitudes {
		if i&bit != 0 || i&mask != mask {
			continue
		}
		j := i | bit
		a0, a1 := s.Amplitudes[i], s.Amplitudes[j]
		s.Amplitudes[i] = m[0][0]*a0 + m[0][1]*a1
		s.Amplitudes[j] = m[1][0]*a0 + m[1][1]*a1
	}
}

func (s *StateVector) applySWAP(q1, q2 int, controls []int) {
	bit1 := 1 << q1
	bit2 := 1 << q2
	mask := controlMask(controls)
	for i := range s.Amplitudes {
		if i&bit1 != 0 && i&bit2 == 0 && i&mask == mask {
			j := (i & ^bit1) | bit2
			s.Amplitudes[i], s.Amplitudes[j] = s.Amplitudes[j], s.Amplitudes[i]
		}
	}
}

// probabilityOne returns the probability of measuring q as one.
func (s *StateVector) probabilityOne(q int) float64 {
	bit := 1 << q
	p := 0.0
	for i, amp := range s.Amplitudes {
		if i&bit != 0 {
			p += real(amp * cmplx.Conj(amp))
		}
	}
	return math.Min(p, 1)
}

// collapse projects q onto the given outcome, which must have probability p.
func (s *StateVector) collapse(q int, one bool, p float64) {
	bit := 1 << q
	norm := complex(math.Sqrt(p), 0)
	for i := range s.Amplitudes {
		if (i&bit != 0) == one {
			s.Amplitudes[i] /= norm
		} else {
			s.Amplitudes[i] = 0
		}
	}
}

var (
	hFactor = complex(1.0/math.Sqrt2, 0)

	matI    = matrix2{{1, 0}, {0, 1}}
	matX    = matrix2{{0, 1}, {1, 0}}
	matY    = matrix2{{0, -1i}, {1i, 0}}
	matZ    = matrix2{{1, 0}, {0, -1}}
	matH    = matrix2{{hFactor, hFactor}, {hFactor, -hFactor}}
	matS    = matrix2{{1, 0}, {0, 1i}}
	matSdag = matrix2{{1, 0}, {0, -1i}}
	matT    = matrix2{{1, 0}, {0, cmplx.Exp(complex(0, math.Pi/4))}}
	matTdag = matrix2{{1, 0}, {0, cmplx.Exp(complex(0, -math.Pi/4))}}
)

func matRX(theta float64) matrix2 {
	c := complex(math.Cos(theta/2), 0)
	js := complex(0, -math.Sin(theta/2))
	return matrix2{{c, js}, {js, c}}
}

func matRY(theta float64) matrix2 {
	c := complex(math.Cos(theta/2), 0)
	s := complex(math.Sin(theta/2), 0)
	return matrix2{{c, -s}, {s, c}}
}

func matRZ(theta float64) matrix2 {
	phase := cmplx.Exp(complex(0, theta/2))
	return matrix2{{cmplx.Conj(phase), 0}, {0, phase}}
}

func matPhase(theta float64) matrix2 {
	return matrix2{{1, 0}, {0, cmplx.Exp(complex(0, theta))}}
}

// gateMatrix returns the single-target unitary of a predefined gate.
func gateMatrix(g PredefinedGate, params []float64) (matrix2, error) {
	angle := func() (float64, error) {
		if len(params) != 1 {
			return 0, errors.Errorf("%s expects one angle parameter, got %d", g, len(params))
		}
		return params[0], nil
	}
	switch g {
	case GateI:
		return matI, nil
	case GateX:
		return matX, nil
	case GateY:
		return matY, nil
	case GateZ:
		return matZ, nil
	case GateH:
		return matH, nil
	case GateS:
		return matS, nil
	case GateSdag:
		return matSdag, nil
	case GateT:
		return matT, nil
	case GateTdag:
		return matTdag, nil
	case GateRX90:
		return matRX(math.Pi / 2), nil
	case GateRXM90:
		return matRX(-math.Pi / 2), nil
	case GateRY90:
		return matRY(math.Pi / 2), nil
	case GateRYM90:
		return matRY(-math.Pi / 2), nil
	case GateRX, GateRY, GateRZ, GatePhase:
		theta, err := angle()
		if err != nil {
			return matrix2{}, err
		}
		switch g {
		case GateRX:
			return matRX(theta), nil
		case GateRY:
			return matRY(theta), nil
		case GateRZ:
			return matRZ(theta), nil
		default:
			return matPhase(theta), nil
		}
	}
	return matrix2{}, errors.Errorf("gate %s has no single-target matrix", g)
}

// Simulator is an in-process Executor backed by a dense state vector.
// Freed qubits keep their slot in the vector until every qubit is freed.
type Simulator struct {
	state     *StateVector
	index     map[QubitRef]int
	results   map[QubitRef]MeasurementResult
	next      QubitRef
	cycle     uint64
	rng       *rand.Rand
	maxQubits int
}

// NewSimulator returns a simulator. A zero seed selects a time-based seed.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Simulator{
		state:     NewStateVector(0),
		index:     make(map[QubitRef]int),
		results:   make(map[QubitRef]MeasurementResult),
		next:      1,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		maxQubits: cfg.MaxQubits,
	}
}

// Cycle returns the logical time advanced so far.
func (s *Simulator) Cycle() uint64 { return s.cycle }

func (s *Simulator) Allocate(n int) ([]QubitRef, error) {
	if n < 0 {
		return nil, errors.Errorf("cannot allocate %d qubits", n)
	}
	if s.state.NumQubits+n > s.maxQubits {
		return nil, errors.Errorf("simulator is limited to %d qubits, %d in use, %d requested",
			s.maxQubits, s.state.NumQubits, n)
	}
	base := s.state.NumQubits
	s.state.Grow(n)
	refs := make([]QubitRef, n)
	for i := range refs {
		refs[i] = s.next
		s.index[s.next] = base + i
		s.next++
	}
	return refs, nil
}

func (s *Simulator) Free(q QubitRef) error {
	if _, ok := s.index[q]; !ok {
		return errors.Errorf("free of unknown qubit %d", q)
	}
	delete(s.index, q)
	delete(s.results, q)
	if len(s.index) == 0 {
		s.state = NewStateVector(0)
	}
	return nil
}

func (s *Simulator) Advance(ticks uint64) error {
	s.cycle += ticks
	return nil
}

func (s *Simulator) Measurement(q QubitRef) (MeasurementResult, error) {
	if _, ok := s.index[q]; !ok {
		return MeasurementResult{}, errors.Errorf("measurement of unknown qubit %d", q)
	}
	res, ok := s.results[q]
	if !ok {
		return MeasurementResult{Value: MeasuredUndefined}, nil
	}
	return res, nil
}

func (s *Simulator) Gate(req GateRequest) error {
	idxs, err := s.resolve(req.Qubits)
	if err != nil {
		return err
	}

	switch req.Kind {
	case GatePrep:
		for _, q := range idxs {
			s.prep(q, req.Basis)
		}
		return nil
	case GateMeasure:
		for i, q := range idxs {
			s.results[req.Qubits[i]] = s.measure(q, req.Basis)
		}
		return nil
	}

	targets := req.Gate.Targets()
	if len(idxs) < targets {
		return errors.Errorf("%s needs at least %d qubits, got %d", req.Gate, targets, len(idxs))
	}
	controls := idxs[:len(idxs)-targets]
	if req.Gate == GateSwap {
		s.state.applySWAP(idxs[len(idxs)-2], idxs[len(idxs)-1], controls)
		return nil
	}
	m, err := gateMatrix(req.Gate, req.Params)
	if err != nil {
		return err
	}
	s.state.applyUnitary(idxs[len(idxs)-1], controls, m)
	return nil
}

func (s *Simulator) resolve(refs []QubitRef) ([]int, error) {
	idxs := make([]int, len(refs))
	seen := make(map[QubitRef]bool, len(refs))
	for i, ref := range refs {
		idx, ok := s.index[ref]
		if !ok {
			return nil, errors.Errorf("unknown qubit %d", ref)
		}
		if seen[ref] {
			return nil, errors.Errorf("qubit %d used twice in one gate", ref)
		}
		seen[ref] = true
		idxs[i] = idx
	}
	return idxs, nil
}

// measureZ samples qubit q in the Z basis and collapses the state.
func (s *Simulator) measureZ(q int) (bool, float64) {
	p1 := s.state.probabilityOne(q)
	one := s.rng.Float64() < p1
	p := p1
	if !one {
		p = 1 - p1
	}
	s.state.collapse(q, one, p)
	return one, p1
}

// toZ rotates basis b onto Z; fromZ undoes it.
func (s *Simulator) toZ(q int, b Basis) {
	switch b {
	case BasisX:
		s.state.applyUnitary(q, nil, matH)
	case BasisY:
		s.state.applyUnitary(q, nil, matSdag)
		s.state.applyUnitary(q, nil, matH)
	}
}

func (s *Simulator) fromZ(q int, b Basis) {
	switch b {
	case BasisX:
		s.state.applyUnitary(q, nil, matH)
	case BasisY:
		s.state.applyUnitary(q, nil, matH)
		s.state.applyUnitary(q, nil, matS)
	}
}

func (s *Simulator) measure(q int, b Basis) MeasurementResult {
	s.toZ(q, b)
	one, p1 := s.measureZ(q)
	s.fromZ(q, b)

	res := MeasurementResult{
		Value: MeasuredZero,
		JSON: map[string]any{
			"basis": b.String(),
			"p1":    p1,
			"cycle": s.cycle,
		},
	}
	if one {
		res.Value = MeasuredOne
	}
	return res
}

// prep resets q to the +1 eigenstate of basis b.
func (s *Simulator) prep(q int, b Basis) {
	if one, _ := s.measureZ(q); one {
		s.state.applyUnitary(q, nil, matX)
	}
	s.fromZ(q, b)
}
