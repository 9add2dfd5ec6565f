package main

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T) (Model, *stepper) {
	t.Helper()
	st := newStepper()
	st.send = func(tea.Msg) {}
	c := mustParse(t, 2, ".main(2)\nh q[0]\ncnot q[0], q[1]\nmeasure_all")
	m := newModel("bell.cq", c, st)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return updated.(Model), st
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

var (
	spaceKey  = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	resumeKey = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}}
	quitKey   = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
)

// runCmd executes cmd and any commands batched with it.
func runCmd(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	if batch, ok := cmd().(tea.BatchMsg); ok {
		for _, c := range batch {
			runCmd(c)
		}
	}
}

// expectResume runs cmd and checks that it unblocks the engine.
func expectResume(t *testing.T, st *stepper, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	go runCmd(cmd)
	select {
	case <-st.step:
	case <-time.After(time.Second):
		t.Fatal("engine was not resumed")
	}
}

func TestStepperPausesUntilStepped(t *testing.T) {
	st := newStepper()
	msgs := make(chan tea.Msg, 4)
	st.send = func(msg tea.Msg) { msgs <- msg }

	returned := make(chan struct{})
	go func() {
		st.BundleDone(BundleEvent{Bundle: 3})
		close(returned)
	}()

	msg := (<-msgs).(bundleMsg)
	assert.True(t, msg.paused)
	assert.Equal(t, 3, msg.ev.Bundle)

	select {
	case <-returned:
		t.Fatal("BundleDone returned before the step")
	case <-time.After(20 * time.Millisecond):
	}
	st.step <- struct{}{}
	<-returned

	st.free.Store(true)
	st.BundleDone(BundleEvent{})
	assert.False(t, (<-msgs).(bundleMsg).paused, "free-running steppers do not block")

	st.Display([]DisplayEntry{{Index: 1}})
	assert.Len(t, (<-msgs).(displayMsg), 1)
}

func TestModelStep(t *testing.T) {
	m, st := newTestModel(t)
	assert.True(t, m.ready)

	// Stepping while the engine is running is a no-op.
	m, cmd := update(m, spaceKey)
	assert.Nil(t, cmd)

	m, _ = update(m, bundleMsg{ev: BundleEvent{SubCircuit: "main", Iteration: 1, Iterations: 2, Bundle: 1, Bundles: 3,
		Advanced: true, Bits: []bool{true, false}, Stats: []StatSnapshot{{Samples: 2, Probability: 0.5, Latest: true}, {}}}, paused: true})
	assert.True(t, m.paused)
	assert.Equal(t, 1, m.steps)
	assert.Contains(t, m.View(), "paused")
	assert.Contains(t, m.View(), "bundle 2/3")
	assert.Contains(t, m.View(), "▸ cnot q[0], q[1]")

	rows := m.register.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"q[0]", "1", "2", "0.500000", "1"}, []string(rows[0]))
	assert.Equal(t, []string{"q[1]", "0", "0", "no data", "-"}, []string(rows[1]))

	m, cmd = update(m, spaceKey)
	assert.False(t, m.paused)
	expectResume(t, st, cmd)
	assert.False(t, st.free.Load())
}

func TestModelResume(t *testing.T) {
	m, st := newTestModel(t)

	m, _ = update(m, bundleMsg{ev: BundleEvent{Bits: []bool{false, false}}, paused: true})
	m, cmd := update(m, resumeKey)
	assert.True(t, st.free.Load())
	expectResume(t, st, cmd)

	// A bundle that paused before the engine saw the resume is released.
	m, cmd = update(m, bundleMsg{ev: BundleEvent{Bits: []bool{false, false}}, paused: true})
	assert.False(t, m.paused)
	expectResume(t, st, cmd)
}

func TestModelOutputAndCompletion(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = update(m, displayMsg{{Index: 0, Bit: true}})
	require.Len(t, m.lines, 1)
	assert.Contains(t, m.View(), "b0: 1; q0: no data")

	m, _ = update(m, runDoneMsg{report: &Report{RunID: "abc"}})
	assert.False(t, m.running)
	assert.Contains(t, m.lines[len(m.lines)-1], "run abc finished")
	assert.Contains(t, m.View(), "finished")

	m, _ = update(m, runDoneMsg{err: errors.New("boom")})
	assert.Contains(t, m.lines[len(m.lines)-1], "run failed: boom")
	assert.Contains(t, m.View(), "failed")

	_, cmd := update(m, quitKey)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
