package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// ──────────────────────────── Rendering helpers ────────────────────────────

// padCenter centres a string within the given width.
func padCenter(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	total := width - len(s)
	left := total / 2
	right := total - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

// formatMetadata renders measurement JSON as sorted key=value pairs.
func formatMetadata(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}
	parts := make([]string, 0, len(data))
	for _, k := range slices.Sorted(maps.Keys(data)) {
		v := data[k]
		if f, ok := v.(float64); ok {
			v = formatProbability(f)
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, " ")
}

func formatRaw(raw *int) string {
	if raw == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *raw)
}

// gridTable returns a lipgloss table styled like the rest of the UI.
func gridTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCellStyle
			}
			if col == 0 {
				return qubitLabelStyle.Padding(0, 1)
			}
			return cellStyle
		})
}

// ──────────────────────────── Report ────────────────────────────

// renderReport renders the final register of a run as a table.
func renderReport(r *Report) string {
	t := gridTable("Qubit", "Bit", "Samples", "Average", "Raw", "Data")
	for _, q := range r.Qubits {
		avg := "no data"
		if q.Average != nil {
			avg = formatProbability(*q.Average)
		}
		t.Row(
			fmt.Sprintf("q[%d]", q.Index),
			fmt.Sprintf("%d", q.Value),
			fmt.Sprintf("%d", q.Samples),
			avg,
			formatRaw(q.Raw),
			formatMetadata(q.JSON),
		)
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Run " + r.RunID))
	sb.WriteString("\n")
	sb.WriteString(t.Render())
	return sb.String()
}

// ──────────────────────────── Gate catalog ────────────────────────────

// renderCatalog renders every catalog gate grouped by category.
func renderCatalog() string {
	var sb strings.Builder
	for i, cat := range gateCatalog {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(titleStyle.Render(cat.name))
		sb.WriteString("\n")

		t := gridTable("Gate", "cQASM", "Symbol", "Qubits", "Angle", "Example")
		for _, e := range cat.entries {
			angle := ""
			if e.desc.NeedsAngle {
				angle = "yes"
			}
			t.Row(
				e.name,
				strings.Join(e.idents, ", "),
				gateStyle.Render(e.symbol),
				fmt.Sprintf("%d", e.desc.Arity),
				angle,
				dimStyle.Render(e.example),
			)
		}
		sb.WriteString(t.Render())
		sb.WriteString("\n")
	}
	return sb.String()
}

// ──────────────────────────── Program summary ────────────────────────────

// renderSummary describes a parsed program without running it.
func renderSummary(path string, c *Circuit) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(path))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  version %s, %d qubits", c.Version, c.NumQubits)
	if c.ErrorModel != "" {
		fmt.Fprintf(&sb, ", error model %s", c.ErrorModel)
	}
	sb.WriteString("\n")

	t := gridTable("Subcircuit", "Iterations", "Bundles", "Instructions")
	for _, sc := range c.SubCircuits {
		n := 0
		for _, b := range sc.Bundles {
			n += len(b.Instructions)
		}
		t.Row(sc.Name, fmt.Sprintf("%d", sc.Iterations), fmt.Sprintf("%d", len(sc.Bundles)), fmt.Sprintf("%d", n))
	}
	sb.WriteString(t.Render())
	fmt.Fprintf(&sb, "\n  %d bundles, %d instructions\n", c.NumBundles(), c.NumInstructions())
	return sb.String()
}

// ──────────────────────────── Stepper panels ────────────────────────────

// renderBundleLine formats a bundle the way it is written in cQASM.
func renderBundleLine(b *Bundle) string {
	if len(b.Instructions) == 1 {
		return b.Instructions[0].String()
	}
	parts := make([]string, len(b.Instructions))
	for i := range b.Instructions {
		parts[i] = b.Instructions[i].String()
	}
	return "{ " + strings.Join(parts, " | ") + " }"
}

// renderProgram lists the bundles of a subcircuit, marking the one that was
// executed last. A negative current marks nothing.
func renderProgram(sc *SubCircuit, current, height int) string {
	var sb strings.Builder

	start := 0
	if current >= height {
		start = current - height + 1
	}
	end := min(len(sc.Bundles), start+height)
	if start > 0 {
		fmt.Fprintf(&sb, "  ▲ %d more\n", start)
	}
	for i := start; i < end; i++ {
		num := dimStyle.Render(padCenter(fmt.Sprintf("%d", i), gutterW))
		line := renderBundleLine(&sc.Bundles[i])
		if i == current {
			sb.WriteString(num + cursorBoxStyle.Render("▸ "+line))
		} else {
			sb.WriteString(num + "  " + line)
		}
		sb.WriteString("\n")
	}
	if end < len(sc.Bundles) {
		fmt.Fprintf(&sb, "  ▼ %d more\n", len(sc.Bundles)-end)
	}
	return sb.String()
}
