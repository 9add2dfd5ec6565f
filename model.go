package main

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// ──────────────────────────── Engine bridge ────────────────────────────

type bundleMsg struct {
	ev     BundleEvent
	paused bool
}

type displayMsg []DisplayEntry

type runDoneMsg struct {
	report *Report
	err    error
}

// stepper is the Observer used by the TUI. After each bundle it publishes a
// snapshot and, unless the run is free-running, blocks until it is stepped.
type stepper struct {
	send func(tea.Msg)
	step chan struct{}
	free atomic.Bool
}

func newStepper() *stepper {
	return &stepper{step: make(chan struct{})}
}

func (s *stepper) BundleDone(ev BundleEvent) {
	paused := !s.free.Load()
	s.send(bundleMsg{ev: ev, paused: paused})
	if paused {
		<-s.step
	}
}

func (s *stepper) Display(entries []DisplayEntry) {
	s.send(displayMsg(entries))
}

// resume unblocks a paused engine. Only valid while the engine waits.
func (s *stepper) resume() tea.Cmd {
	return func() tea.Msg {
		s.step <- struct{}{}
		return nil
	}
}

// runTUI steps through circuit interactively and returns the report of the
// run. Quitting the UI lets the run finish unattended so its qubits are
// released before returning.
func runTUI(path string, circuit *Circuit, exec Executor, input RunInput, logger *zap.Logger) (*Report, error) {
	st := newStepper()
	p := tea.NewProgram(newModel(path, circuit, st), tea.WithAltScreen())
	st.send = p.Send

	var (
		report *Report
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		report, runErr = Run(exec, circuit, input, Options{Logger: logger, Observer: st})
		p.Send(runDoneMsg{report: report, err: runErr})
	}()

	_, uiErr := p.Run()

	st.free.Store(true)
	for waiting := true; waiting; {
		select {
		case <-done:
			waiting = false
		case st.step <- struct{}{}:
		}
	}

	if uiErr != nil {
		return nil, uiErr
	}
	return report, runErr
}

// ──────────────────────────── Key bindings ────────────────────────────

type keyMap struct {
	Step   key.Binding
	Resume key.Binding
	Up     key.Binding
	Down   key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Step, k.Resume, k.Up, k.Down, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Step, k.Resume}, {k.Up, k.Down, k.Quit}}
}

var defaultKeys = keyMap{
	Step:   key.NewBinding(key.WithKeys(" ", "n"), key.WithHelp("space", "step bundle")),
	Resume: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "run to end")),
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "scroll output")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "scroll output")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// ──────────────────────────── Model ────────────────────────────

// Model is the stepping viewer. The engine runs on its own goroutine and
// reports to the model through messages.
type Model struct {
	path    string
	circuit *Circuit
	stepper *stepper

	keys     keyMap
	help     help.Model
	register table.Model
	output   viewport.Model
	lines    []string

	width  int
	height int
	ready  bool

	last    *BundleEvent
	steps   int
	paused  bool
	running bool
	report  *Report
	err     error
}

func newModel(path string, circuit *Circuit, st *stepper) Model {
	cols := []table.Column{
		{Title: "Qubit", Width: 6},
		{Title: "Bit", Width: 4},
		{Title: "Samples", Width: 8},
		{Title: "Average", Width: 9},
		{Title: "Latest", Width: 7},
	}
	t := table.New(
		table.WithColumns(cols),
		table.WithRows(registerRows(make([]bool, circuit.NumQubits), nil)),
		table.WithHeight(circuit.NumQubits+1),
		table.WithFocused(false),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#565f89")).
		BorderBottom(true).
		Foreground(lipgloss.Color("#e0af68"))
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)

	return Model{
		path:     path,
		circuit:  circuit,
		stepper:  st,
		keys:     defaultKeys,
		help:     help.New(),
		register: t,
		running:  true,
	}
}

// registerRows turns bits and statistics into table rows. stats may be nil
// before the first bundle has run.
func registerRows(bits []bool, stats []StatSnapshot) []table.Row {
	rows := make([]table.Row, len(bits))
	for i, bit := range bits {
		samples, avg, latest := "0", "no data", "-"
		if i < len(stats) && stats[i].Samples > 0 {
			samples = fmt.Sprintf("%d", stats[i].Samples)
			avg = formatProbability(stats[i].Probability)
			latest = fmt.Sprintf("%d", b2i(stats[i].Latest))
		}
		rows[i] = table.Row{fmt.Sprintf("q[%d]", i), fmt.Sprintf("%d", b2i(bit)), samples, avg, latest}
	}
	return rows
}

func (m *Model) appendOutput(line string) {
	m.lines = append(m.lines, line)
	if m.ready {
		m.output.SetContent(strings.Join(m.lines, "\n"))
		m.output.GotoBottom()
	}
}

// ──────────────────────────── Init / Update ────────────────────────────

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		outH := max(msg.Height/3, minPanelH)
		if !m.ready {
			m.output = viewport.New(msg.Width-4, outH)
			m.ready = true
		} else {
			m.output.Width = msg.Width - 4
			m.output.Height = outH
		}
		m.output.SetContent(strings.Join(m.lines, "\n"))
		m.output.GotoBottom()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Step):
			if m.paused {
				m.paused = false
				return m, m.stepper.resume()
			}
			return m, nil
		case key.Matches(msg, m.keys.Resume):
			m.stepper.free.Store(true)
			if m.paused {
				m.paused = false
				return m, m.stepper.resume()
			}
			return m, nil
		}

	case bundleMsg:
		ev := msg.ev
		m.last = &ev
		m.steps++
		m.register.SetRows(registerRows(ev.Bits, ev.Stats))
		m.paused = msg.paused
		// The user may have resumed after the engine decided to wait.
		if m.paused && m.stepper.free.Load() {
			m.paused = false
			cmds = append(cmds, m.stepper.resume())
		}

	case displayMsg:
		for _, e := range msg {
			m.appendOutput(e.String())
		}

	case runDoneMsg:
		m.running = false
		m.paused = false
		m.report = msg.report
		m.err = msg.err
		if msg.err != nil {
			m.appendOutput(errorStyle.Render("run failed: " + msg.err.Error()))
		} else {
			m.appendOutput(activeGateStyle.Render(fmt.Sprintf("run %s finished after %d bundles", msg.report.RunID, m.steps)))
		}
	}

	var cmd tea.Cmd
	m.output, cmd = m.output.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// ──────────────────────────── View ────────────────────────────

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	outH := m.output.Height + 2
	topH := max(m.height-outH-statusH-3, minPanelH)
	progW := max(m.width-registerPanW-4, 20)

	programPanel := m.renderProgramPanel(progW, topH)
	registerPanel := registerStyle.Width(registerPanW).Height(topH).Render(
		titleStyle.Render("Register") + "\n\n" + m.register.View())
	outputPanel := outputStyle.Width(m.width - 2).Render(m.output.View())

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, programPanel, registerPanel)
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatus(),
		topRow,
		outputPanel,
		m.help.View(m.keys),
	)
}

func (m Model) renderStatus() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("cqrun " + m.path))
	sb.WriteString("  ")
	switch {
	case m.err != nil:
		sb.WriteString(errorStyle.Render("failed"))
	case !m.running:
		sb.WriteString(activeGateStyle.Render("finished"))
	case m.paused:
		sb.WriteString(activeGateStyle.Render("paused"))
	default:
		sb.WriteString(dimStyle.Render("running"))
	}
	if ev := m.last; ev != nil {
		fmt.Fprintf(&sb, "  │  .%s iteration %d/%d, bundle %d/%d",
			ev.SubCircuit, ev.Iteration, ev.Iterations, ev.Bundle+1, ev.Bundles)
		if ev.Advanced {
			sb.WriteString(dimStyle.Render("  +1 cycle"))
		}
	}
	return sb.String()
}

func (m Model) renderProgramPanel(width, height int) string {
	var sb strings.Builder

	if len(m.circuit.SubCircuits) == 0 {
		sb.WriteString(titleStyle.Render("Program"))
		sb.WriteString("\n\n")
		sb.WriteString(dimStyle.Render("no operations"))
		return programStyle.Width(width).Height(height).Render(sb.String())
	}

	sub, current := 0, -1
	if m.last != nil {
		sub, current = m.last.SubCircuitIndex, m.last.Bundle
	}
	sc := &m.circuit.SubCircuits[sub]
	fmt.Fprintf(&sb, "%s  %s\n\n",
		titleStyle.Render("."+sc.Name),
		dimStyle.Render(fmt.Sprintf("subcircuit %d of %d", sub+1, len(m.circuit.SubCircuits))))
	sb.WriteString(renderProgram(sc, current, max(height-4, 1)))

	return programStyle.Width(width).Height(height).Render(sb.String())
}
