package main

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) Allocate(n int) ([]QubitRef, error) {
	args := m.Called(n)
	refs, _ := args.Get(0).([]QubitRef)
	return refs, args.Error(1)
}

func (m *mockExecutor) Free(q QubitRef) error {
	return m.Called(q).Error(0)
}

func (m *mockExecutor) Gate(req GateRequest) error {
	return m.Called(req).Error(0)
}

func (m *mockExecutor) Advance(ticks uint64) error {
	return m.Called(ticks).Error(0)
}

func (m *mockExecutor) Measurement(q QubitRef) (MeasurementResult, error) {
	args := m.Called(q)
	return args.Get(0).(MeasurementResult), args.Error(1)
}

// gateRequests returns the Gate calls made so far, in order.
func (m *mockExecutor) gateRequests() []GateRequest {
	var reqs []GateRequest
	for _, c := range m.Calls {
		if c.Method == "Gate" {
			reqs = append(reqs, c.Arguments.Get(0).(GateRequest))
		}
	}
	return reqs
}

// calls returns the method names called so far, in order.
func (m *mockExecutor) calls() []string {
	names := make([]string, len(m.Calls))
	for i, c := range m.Calls {
		names[i] = c.Method
	}
	return names
}

// handles returns n handles starting at 1, the way the simulator numbers
// them.
func handles(n int) []QubitRef {
	refs := make([]QubitRef, n)
	for i := range refs {
		refs[i] = QubitRef(i + 1)
	}
	return refs
}

// newTestContext returns an execution context for n qubits whose warnings
// are captured by the returned observer.
func newTestContext(exec Executor, n int) (*execContext, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	return &execContext{
		runID:   "test",
		exec:    exec,
		circuit: &Circuit{NumQubits: n},
		qubits:  handles(n),
		state:   NewClassicalState(n),
		diag:    newDiagnostics(logger),
		logger:  logger,
	}, logs
}

// parseInstruction parses a single-line program body for n qubits and
// returns its first instruction.
func parseInstruction(t *testing.T, n int, text string) *Instruction {
	t.Helper()
	c := mustParse(t, n, text)
	require.Len(t, c.SubCircuits, 1)
	require.NotEmpty(t, c.SubCircuits[0].Bundles)
	return &c.SubCircuits[0].Bundles[0].Instructions[0]
}
