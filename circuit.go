package main

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Pre-compiled regexps for cQASM parsing.
var (
	versionRegex    = regexp.MustCompile(`^version\s+(\d+(?:\.\d+)*)$`)
	qubitsRegex     = regexp.MustCompile(`^qubits\s+(\d+)$`)
	subcircuitRegex = regexp.MustCompile(`^\.([A-Za-z_]\w*)(?:\s*\(\s*(\d+)\s*\))?$`)
	errorModelRegex = regexp.MustCompile(`^error_model\s+(\w+)\s*(?:,\s*(.*))?$`)
	operationRegex  = regexp.MustCompile(`^(c-)?([a-z][a-z0-9_]*(?:-[a-z]+)?)(?:\s+(.*))?$`)
	registerRegex   = regexp.MustCompile(`^([qb])\[\s*([0-9:,\s]+)\s*\]$`)
	axisRegex       = regexp.MustCompile(`^[xyz]$`)
)

// defaultSubCircuit holds operations that precede the first sub-circuit
// header.
const defaultSubCircuit = "default"

// Instruction is one parsed cQASM operation.
type Instruction struct {
	Name      string  // lower-case type identifier without the "c-" prefix
	Condition []int   // classical bits that must all be set for the instruction to run
	Qubits    [][]int // selected qubits per role, role 1 first
	Bits      []int   // operand bits of not, display and display_binary
	Angle     float64
	HasAngle  bool
	Wait      uint64
	Line      int // source line, 0 when built in code
}

// Conditional reports whether execution depends on classical bits.
func (in *Instruction) Conditional() bool { return len(in.Condition) > 0 }

// SelectedQubits returns the qubits of all roles in role order.
func (in *Instruction) SelectedQubits() []int {
	if len(in.Qubits) == 1 {
		return in.Qubits[0]
	}
	var all []int
	for _, role := range in.Qubits {
		all = append(all, role...)
	}
	return all
}

// String renders the instruction back to cQASM.
func (in *Instruction) String() string {
	var sb strings.Builder
	if in.Conditional() {
		sb.WriteString("c-")
	}
	sb.WriteString(in.Name)
	var args []string
	if in.Conditional() {
		args = append(args, formatRegister("b", in.Condition))
	}
	for _, role := range in.Qubits {
		args = append(args, formatRegister("q", role))
	}
	if len(in.Bits) > 0 {
		args = append(args, formatRegister("b", in.Bits))
	}
	if in.HasAngle {
		args = append(args, formatParam(in.Angle))
	}
	if in.Name == "wait" {
		args = append(args, strconv.FormatUint(in.Wait, 10))
	}
	if len(args) > 0 {
		sb.WriteString(" ")
		sb.WriteString(strings.Join(args, ", "))
	}
	return sb.String()
}

// Bundle is a set of instructions issued in one logical time slice.
type Bundle struct {
	Instructions []Instruction
}

// SubCircuit is a named block of bundles executed Iterations times.
type SubCircuit struct {
	Name       string
	Iterations int
	Bundles    []Bundle
}

// Circuit is a parsed cQASM program.
type Circuit struct {
	Version        string
	NumQubits      int
	ErrorModel     string
	ErrorModelArgs []float64
	SubCircuits    []SubCircuit
}

// NumBundles returns the number of bundles over all sub-circuits, counting
// each sub-circuit once.
func (c *Circuit) NumBundles() int {
	n := 0
	for _, sc := range c.SubCircuits {
		n += len(sc.Bundles)
	}
	return n
}

// NumInstructions returns the number of instructions over all sub-circuits,
// counting each sub-circuit once.
func (c *Circuit) NumInstructions() int {
	n := 0
	for _, sc := range c.SubCircuits {
		for _, b := range sc.Bundles {
			n += len(b.Instructions)
		}
	}
	return n
}

// ParseFile reads and parses the cQASM program at path.
func ParseFile(path string) (*Circuit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open cqasm source")
	}
	defer f.Close()

	c, err := ParseCQASM(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return c, nil
}

// ParseCQASM parses a cQASM 1.0 program.
func ParseCQASM(r io.Reader) (*Circuit, error) {
	p := &parser{circuit: &Circuit{NumQubits: -1}}

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if err := p.parseLine(line, scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read cqasm source")
	}
	if p.circuit.NumQubits < 0 {
		return nil, parseErrorf(0, "missing qubits statement")
	}
	return p.circuit, nil
}

type parser struct {
	circuit *Circuit
	current *SubCircuit
}

func (p *parser) parseLine(line int, text string) error {
	if i := strings.IndexByte(text, '#'); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if matches := subcircuitRegex.FindStringSubmatch(text); matches != nil {
		iterations := 1
		if matches[2] != "" {
			n, err := strconv.Atoi(matches[2])
			if err != nil || n < 1 {
				return parseErrorf(line, "invalid iteration count %q", matches[2])
			}
			iterations = n
		}
		p.circuit.SubCircuits = append(p.circuit.SubCircuits, SubCircuit{
			Name:       matches[1],
			Iterations: iterations,
		})
		p.current = &p.circuit.SubCircuits[len(p.circuit.SubCircuits)-1]
		return nil
	}

	text = strings.ToLower(text)

	if matches := versionRegex.FindStringSubmatch(text); matches != nil {
		p.circuit.Version = matches[1]
		return nil
	}
	if matches := qubitsRegex.FindStringSubmatch(text); matches != nil {
		if p.circuit.NumQubits >= 0 {
			return parseErrorf(line, "duplicate qubits statement")
		}
		n, err := strconv.Atoi(matches[1])
		if err != nil {
			return parseErrorf(line, "invalid qubit count %q", matches[1])
		}
		p.circuit.NumQubits = n
		return nil
	}
	if matches := errorModelRegex.FindStringSubmatch(text); matches != nil {
		p.circuit.ErrorModel = matches[1]
		for _, arg := range splitArgs(matches[2]) {
			v, err := parseAngle(arg)
			if err != nil {
				return parseErrorf(line, "error_model argument: %v", err)
			}
			p.circuit.ErrorModelArgs = append(p.circuit.ErrorModelArgs, v)
		}
		return nil
	}

	if p.circuit.NumQubits < 0 {
		return parseErrorf(line, "operation before qubits statement")
	}

	// Bundles: "{ h q[0] | x q[1] }"
	var ops []string
	if strings.HasPrefix(text, "{") {
		if !strings.HasSuffix(text, "}") {
			return parseErrorf(line, "unterminated bundle")
		}
		ops = strings.Split(strings.TrimSuffix(strings.TrimPrefix(text, "{"), "}"), "|")
	} else {
		ops = []string{text}
	}

	var bundle Bundle
	for _, op := range ops {
		in, err := p.parseOperation(line, strings.TrimSpace(op))
		if err != nil {
			return err
		}
		bundle.Instructions = append(bundle.Instructions, in)
	}
	if err := checkBundleQubits(line, bundle); err != nil {
		return err
	}

	if p.current == nil {
		p.circuit.SubCircuits = append(p.circuit.SubCircuits, SubCircuit{
			Name:       defaultSubCircuit,
			Iterations: 1,
		})
		p.current = &p.circuit.SubCircuits[len(p.circuit.SubCircuits)-1]
	}
	p.current.Bundles = append(p.current.Bundles, bundle)
	return nil
}

// parseOperation parses a single "[c-]name arg, arg, ..." statement. The
// parser accepts any identifier; whether the engine supports it is decided
// at execution time.
func (p *parser) parseOperation(line int, text string) (Instruction, error) {
	matches := operationRegex.FindStringSubmatch(text)
	if matches == nil {
		return Instruction{}, parseErrorf(line, "malformed operation %q", text)
	}
	in := Instruction{Name: matches[2], Line: line}
	args := splitArgs(matches[3])

	if matches[1] != "" {
		if len(args) == 0 {
			return in, parseErrorf(line, "%s: missing condition bits", in.Name)
		}
		reg, idxs, err := p.parseRegister(line, args[0])
		if err != nil {
			return in, err
		}
		if reg != "b" {
			return in, parseErrorf(line, "%s: condition must select bits, got %q", in.Name, args[0])
		}
		in.Condition = idxs
		args = args[1:]
	}

	var numbers []string
	for _, arg := range args {
		switch {
		case registerRegex.MatchString(arg):
			reg, idxs, err := p.parseRegister(line, arg)
			if err != nil {
				return in, err
			}
			if reg == "q" {
				in.Qubits = append(in.Qubits, idxs)
			} else {
				in.Bits = append(in.Bits, idxs...)
			}
		case axisRegex.MatchString(arg):
			// measure_parity axes; parity measurement itself is not
			// supported, so the axes carry no meaning here.
		default:
			numbers = append(numbers, arg)
		}
	}

	if len(numbers) > 1 {
		return in, parseErrorf(line, "%s: too many numeric arguments", in.Name)
	}
	if len(numbers) == 1 {
		if err := p.applyNumber(line, &in, numbers[0]); err != nil {
			return in, err
		}
	}
	if desc, ok := lookupGate(in.Name); ok && desc.NeedsAngle != in.HasAngle {
		if desc.NeedsAngle {
			return in, parseErrorf(line, "%s: missing angle argument", in.Name)
		}
		return in, parseErrorf(line, "%s: unexpected numeric argument", in.Name)
	}
	return in, nil
}

func (p *parser) applyNumber(line int, in *Instruction, arg string) error {
	switch in.Name {
	case "wait":
		n, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return parseErrorf(line, "%s: invalid duration %q", in.Name, arg)
		}
		in.Wait = n
	case "crk":
		// crk takes k and rotates by 2*pi/2^k.
		k, err := strconv.Atoi(arg)
		if err != nil || k < 0 || k > 62 {
			return parseErrorf(line, "crk: invalid k %q", arg)
		}
		in.Angle = 2 * math.Pi / float64(uint64(1)<<k)
		in.HasAngle = true
	default:
		v, err := parseAngle(arg)
		if err != nil {
			return parseErrorf(line, "%s: %v", in.Name, err)
		}
		in.Angle = v
		in.HasAngle = true
	}
	return nil
}

// parseRegister parses q[...] or b[...] selections, e.g. q[0], q[0:3] or
// b[0,2,4:5], and checks every index against the qubit count.
func (p *parser) parseRegister(line int, arg string) (string, []int, error) {
	matches := registerRegex.FindStringSubmatch(arg)
	if matches == nil {
		return "", nil, parseErrorf(line, "expected register selection, got %q", arg)
	}
	var idxs []int
	for _, part := range strings.Split(matches[2], ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, ":")
		from, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return "", nil, parseErrorf(line, "invalid index %q", part)
		}
		to := from
		if isRange {
			if to, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil || to < from {
				return "", nil, parseErrorf(line, "invalid range %q", part)
			}
		}
		for i := from; i <= to; i++ {
			if i >= p.circuit.NumQubits {
				return "", nil, parseErrorf(line, "index %s[%d] out of range for %d qubits", matches[1], i, p.circuit.NumQubits)
			}
			idxs = append(idxs, i)
		}
	}
	return matches[1], idxs, nil
}

// checkBundleQubits rejects bundles in which two unconditional instructions
// touch the same qubit, since they would occupy it twice in one time slice.
// Conditional instructions are exempt; their conditions may be mutually
// exclusive.
func checkBundleQubits(line int, b Bundle) error {
	if len(b.Instructions) < 2 {
		return nil
	}
	used := make(map[int]string)
	for _, in := range b.Instructions {
		if in.Conditional() {
			continue
		}
		seen := make(map[int]bool)
		for _, q := range in.SelectedQubits() {
			if seen[q] {
				continue
			}
			seen[q] = true
			if other, ok := used[q]; ok {
				return parseErrorf(line, "qubit q[%d] used by both %s and %s in one bundle", q, other, in.Name)
			}
			used[q] = in.Name
		}
	}
	return nil
}

// splitArgs splits a comma-separated argument list, keeping commas inside
// brackets.
func splitArgs(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var args []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(args, strings.TrimSpace(s[start:]))
}

// formatRegister renders an index list in compact range notation.
func formatRegister(reg string, idxs []int) string {
	var parts []string
	for i := 0; i < len(idxs); {
		j := i
		for j+1 < len(idxs) && idxs[j+1] == idxs[j]+1 {
			j++
		}
		if j > i {
			parts = append(parts, fmt.Sprintf("%d:%d", idxs[i], idxs[j]))
		} else {
			parts = append(parts, strconv.Itoa(idxs[i]))
		}
		i = j + 1
	}
	return reg + "[" + strings.Join(parts, ",") + "]"
}
