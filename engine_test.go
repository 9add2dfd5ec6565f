package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// recordingObserver keeps everything the engine reports.
type recordingObserver struct {
	events  []BundleEvent
	display [][]DisplayEntry
}

func (o *recordingObserver) BundleDone(ev BundleEvent)      { o.events = append(o.events, ev) }
func (o *recordingObserver) Display(entries []DisplayEntry) { o.display = append(o.display, entries) }

func newMockRun(n int) *mockExecutor {
	m := &mockExecutor{}
	m.On("Allocate", n).Return(handles(n), nil)
	m.On("Free", mock.Anything).Return(nil)
	m.On("Gate", mock.Anything).Return(nil)
	m.On("Advance", mock.Anything).Return(nil)
	m.On("Measurement", mock.Anything).Return(MeasurementResult{Value: MeasuredOne}, nil)
	return m
}

func advances(m *mockExecutor) []uint64 {
	var ticks []uint64
	for _, c := range m.Calls {
		if c.Method == "Advance" {
			ticks = append(ticks, c.Arguments.Get(0).(uint64))
		}
	}
	return ticks
}

func TestRunReleasesQubits(t *testing.T) {
	m := newMockRun(2)
	c := mustParse(t, 2, "h q[0]\ncnot q[0], q[1]")

	report, err := Run(m, c, RunInput{}, Options{})
	require.NoError(t, err)
	require.Len(t, report.Qubits, 2)
	assert.NotEmpty(t, report.RunID)

	m.AssertCalled(t, "Free", QubitRef(1))
	m.AssertCalled(t, "Free", QubitRef(2))
	assert.Equal(t, []uint64{1, 1}, advances(m))
}

func TestRunReleasesQubitsOnError(t *testing.T) {
	m := newMockRun(2)
	c := mustParse(t, 2, "h q[0]\nfoo q[1]\nx q[0]")

	report, err := Run(m, c, RunInput{}, Options{})
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, ErrUnsupportedInstruction))

	m.AssertNumberOfCalls(t, "Free", 2)
	m.AssertNumberOfCalls(t, "Gate", 1)
}

func TestRunFreeFailureKeepsRunError(t *testing.T) {
	m := &mockExecutor{}
	m.On("Allocate", 2).Return(handles(2), nil)
	m.On("Free", mock.Anything).Return(errors.New("already gone"))
	m.On("Gate", mock.Anything).Return(nil)
	m.On("Advance", mock.Anything).Return(nil)

	core, logs := observer.New(zapcore.WarnLevel)
	c := mustParse(t, 2, "swap q[0:1], q[0]")

	_, err := Run(m, c, RunInput{}, Options{Logger: zap.New(core)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrArityMismatch))
	assert.Equal(t, 2, logs.FilterMessage("failed to free qubit").Len())
}

func TestRunAllocation(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		m := &mockExecutor{}
		m.On("Allocate", 3).Return(nil, errors.New("no room"))

		_, err := Run(m, mustParse(t, 3, "h q[0]"), RunInput{}, Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no room")
		m.AssertNotCalled(t, "Free", mock.Anything)
	})

	t.Run("short", func(t *testing.T) {
		m := &mockExecutor{}
		m.On("Allocate", 3).Return(handles(2), nil)
		m.On("Free", mock.Anything).Return(nil)

		_, err := Run(m, mustParse(t, 3, "h q[0]"), RunInput{}, Options{})
		require.Error(t, err)
		m.AssertNumberOfCalls(t, "Free", 2)
		m.AssertNotCalled(t, "Gate", mock.Anything)
	})
}

func TestRunBundleTiming(t *testing.T) {
	m := newMockRun(2)
	c := mustParse(t, 2, "wait 5\ndisplay\nx q[0]\nreset-averaging\n{ h q[0] | wait 2 }\nc-x b[1], q[1]")

	_, err := Run(m, c, RunInput{}, Options{})
	require.NoError(t, err)

	// wait advances by its own duration only; display and reset-averaging
	// take no time; a skipped conditional still occupies its slot.
	assert.Equal(t, []uint64{5, 1, 2, 1, 1}, advances(m))
	m.AssertNumberOfCalls(t, "Gate", 2)
}

func TestRunIterations(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{Seed: 7, MaxQubits: 4})
	obs := &recordingObserver{}
	c := mustParse(t, 2, ".loop(10)\nprep_z q[0:1]\nx q[0]\nmeasure_all\ndisplay_binary b[0]")

	report, err := Run(sim, c, RunInput{}, Options{Observer: obs})
	require.NoError(t, err)

	q0, q1 := report.Qubits[0], report.Qubits[1]
	assert.Equal(t, 1, q0.Value)
	assert.Equal(t, uint64(10), q0.Samples)
	require.NotNil(t, q0.Average)
	assert.Equal(t, 1.0, *q0.Average)
	require.NotNil(t, q0.Raw)
	assert.Equal(t, 1, *q0.Raw)
	assert.Equal(t, "z", q0.JSON["basis"])

	assert.Equal(t, 0, q1.Value)
	require.NotNil(t, q1.Average)
	assert.Equal(t, 0.0, *q1.Average)

	require.Len(t, obs.events, 40)
	last := obs.events[len(obs.events)-1]
	assert.Equal(t, "loop", last.SubCircuit)
	assert.Equal(t, 10, last.Iteration)
	assert.Equal(t, 3, last.Bundle)
	assert.False(t, last.Advanced)

	require.Len(t, obs.display, 10)
	assert.Equal(t, "b0: 1; q0: 1.000000 (10 samples, latest = 1)", obs.display[9][0].String())

	assert.Equal(t, uint64(30), sim.Cycle())
	assert.Empty(t, sim.index, "all qubits are freed after the run")
}

func TestRunResetAveraging(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{Seed: 1, MaxQubits: 2})
	c := mustParse(t, 1, "x q[0]\nmeasure q[0]\nreset-averaging")

	report, err := Run(sim, c, RunInput{}, Options{})
	require.NoError(t, err)
	q := report.Qubits[0]
	assert.Equal(t, 1, q.Value)
	assert.Zero(t, q.Samples)
	assert.Nil(t, q.Average)
	assert.Nil(t, q.Raw)
}

func TestRunConditionalFeedback(t *testing.T) {
	sim := NewSimulator(SimulatorConfig{Seed: 3, MaxQubits: 4})
	c := mustParse(t, 2, "x q[0]\nmeasure q[0]\nc-x b[0], q[1]\nmeasure q[1]\nnot b[0]\nc-x b[0], q[1]\nmeasure q[1]")

	report, err := Run(sim, c, RunInput{}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Qubits[0].Value, "b0 was flipped back by not")
	assert.Equal(t, 1, report.Qubits[1].Value)
	assert.Equal(t, uint64(2), report.Qubits[1].Samples)
}

func TestRunFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ghz.cq")
	require.NoError(t, os.WriteFile(path, []byte(`version 1.0
qubits 3
prep_z q[0:2]
h q[0]
cnot q[0], q[1]
cnot q[1], q[2]
measure_all
`), 0o644))

	sim := NewSimulator(SimulatorConfig{Seed: 11, MaxQubits: 8})
	report, err := RunFile(path, InstrumentExecutor(sim, nil), RunInput{Args: map[string]string{"shots": "1"}}, Options{})
	require.NoError(t, err)
	require.Len(t, report.Qubits, 3)

	v := report.Qubits[0].Value
	for _, q := range report.Qubits {
		assert.Equal(t, v, q.Value, "GHZ qubits agree")
		assert.Equal(t, uint64(1), q.Samples)
	}

	_, err = RunFile(filepath.Join(t.TempDir(), "nope.cq"), sim, RunInput{}, Options{})
	assert.Error(t, err)
}

func TestRunLogsSubcircuits(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sim := NewSimulator(SimulatorConfig{Seed: 1, MaxQubits: 2})
	c := mustParse(t, 1, ".first(2)\nx q[0]\n.second\nx q[0]")

	_, err := Run(sim, c, RunInput{}, Options{Logger: zap.New(core)})
	require.NoError(t, err)

	entries := logs.FilterMessage("running subcircuit").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].ContextMap()["subcircuit"])
	assert.Equal(t, int64(2), entries[0].ContextMap()["iterations"])
	assert.NotEmpty(t, entries[0].ContextMap()["run"])
}
