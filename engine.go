package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RunInput is opaque host configuration threaded through a run.
type RunInput struct {
	Args map[string]string
}

// StatSnapshot is a copy of one qubit's measurement statistics.
type StatSnapshot struct {
	Samples     uint64
	Probability float64
	Latest      bool
}

// BundleEvent describes the state after a bundle has been executed.
type BundleEvent struct {
	SubCircuitIndex int
	SubCircuit      string
	Iteration       int
	Iterations      int
	Bundle          int
	Bundles         int
	Advanced        bool
	Bits            []bool
	Stats           []StatSnapshot
}

// Observer receives progress from a running engine. Calls are made from the
// goroutine executing the run.
type Observer interface {
	BundleDone(ev BundleEvent)
	Display(entries []DisplayEntry)
}

// Options configures a run.
type Options struct {
	Logger   *zap.Logger
	Observer Observer
}

// execContext holds everything one run mutates. It is created when the run
// starts and dropped when it returns.
type execContext struct {
	runID    string
	exec     Executor
	circuit  *Circuit
	input    RunInput
	qubits   []QubitRef
	state    *ClassicalState
	diag     *diagnostics
	logger   *zap.Logger
	observer Observer
}

// RunFile parses the cQASM program at path and runs it.
func RunFile(path string, exec Executor, input RunInput, opts Options) (*Report, error) {
	circuit, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Run(exec, circuit, input, opts)
}

// Run executes circuit against exec and returns the final report. Qubits
// allocated for the run are released on every return path.
func Run(exec Executor, circuit *Circuit, input RunInput, opts Options) (report *Report, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := uuid.NewString()
	logger = logger.With(zap.String("run", runID))

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		runsTotal.WithLabelValues(status).Inc()
		runDuration.Observe(time.Since(start).Seconds())
	}()

	qubits, err := exec.Allocate(circuit.NumQubits)
	if err != nil {
		return nil, errors.Wrapf(err, "allocate %d qubits", circuit.NumQubits)
	}
	if len(qubits) != circuit.NumQubits {
		x := &execContext{exec: exec, qubits: qubits, logger: logger}
		x.release()
		return nil, errors.Errorf("executor allocated %d qubits, want %d", len(qubits), circuit.NumQubits)
	}

	x := &execContext{
		runID:    runID,
		exec:     exec,
		circuit:  circuit,
		input:    input,
		qubits:   qubits,
		state:    NewClassicalState(circuit.NumQubits),
		diag:     newDiagnostics(logger),
		logger:   logger,
		observer: opts.Observer,
	}
	defer x.release()

	logger.Debug("run started",
		zap.Int("qubits", circuit.NumQubits),
		zap.Int("subcircuits", len(circuit.SubCircuits)),
		zap.Int("args", len(input.Args)))
	if circuit.ErrorModel != "" {
		logger.Debug("error model is not forwarded to the executor", zap.String("model", circuit.ErrorModel))
	}

	if err := x.loop(); err != nil {
		return nil, err
	}
	return x.report(), nil
}

func (x *execContext) loop() error {
	for si, sc := range x.circuit.SubCircuits {
		x.logger.Info("running subcircuit",
			zap.String("subcircuit", sc.Name),
			zap.Int("iterations", sc.Iterations))
		for iter := 1; iter <= sc.Iterations; iter++ {
			x.logger.Debug("running iteration",
				zap.String("subcircuit", sc.Name),
				zap.Int("iteration", iter))
			for b := range sc.Bundles {
				advanced, err := x.runBundle(&sc.Bundles[b])
				if err != nil {
					return err
				}
				if x.observer != nil {
					x.observer.BundleDone(x.bundleEvent(si, sc, iter, b, advanced))
				}
			}
		}
	}
	return nil
}

// runBundle dispatches every instruction of a bundle and advances logical
// time by one if any of them takes time.
func (x *execContext) runBundle(b *Bundle) (bool, error) {
	timed := false
	for i := range b.Instructions {
		t, err := x.dispatch(&b.Instructions[i])
		if err != nil {
			return false, err
		}
		timed = timed || t
	}
	if !timed {
		return false, nil
	}
	if err := x.exec.Advance(1); err != nil {
		return false, errors.Wrap(err, "advance bundle")
	}
	return true, nil
}

func (x *execContext) bundleEvent(si int, sc SubCircuit, iter, bundle int, advanced bool) BundleEvent {
	ev := BundleEvent{
		SubCircuitIndex: si,
		SubCircuit:      sc.Name,
		Iteration:       iter,
		Iterations:      sc.Iterations,
		Bundle:          bundle,
		Bundles:         len(sc.Bundles),
		Advanced:        advanced,
		Bits:            append([]bool(nil), x.state.Bits...),
		Stats:           make([]StatSnapshot, len(x.state.Stats)),
	}
	for i := range x.state.Stats {
		st := &x.state.Stats[i]
		ev.Stats[i] = StatSnapshot{Samples: st.Samples(), Probability: st.Probability(), Latest: st.Latest()}
	}
	return ev
}

func (x *execContext) report() *Report {
	r := &Report{RunID: x.runID, Qubits: make([]QubitReport, len(x.state.Bits))}
	for i := range x.state.Bits {
		st := &x.state.Stats[i]
		q := QubitReport{Index: i, Value: b2i(x.state.Bits[i]), Samples: st.Samples()}
		if st.Samples() > 0 {
			avg := st.Probability()
			q.Average = &avg
		}
		if d := st.Data(); d != nil {
			q.Raw = d.Raw
			q.JSON = d.JSON
			q.Binary = d.Binary
		}
		r.Qubits[i] = q
	}
	return r
}

// release frees every allocated qubit. Failures are logged so they do not
// mask the error that ended the run.
func (x *execContext) release() {
	for _, q := range x.qubits {
		if err := x.exec.Free(q); err != nil {
			x.logger.Warn("failed to free qubit", zap.Uint64("qubit", uint64(q)), zap.Error(err))
		}
	}
	x.qubits = nil
}
