package main

import (
	"fmt"

	"github.com/pkg/errors"
)

// Fatal run errors. Both abort the run without producing a report; callers
// match them with errors.Is.
var (
	ErrUnsupportedInstruction = errors.New("unsupported instruction")
	ErrArityMismatch          = errors.New("differently-sized qubit argument ranges")
)

// ParseError reports a cQASM source problem at a given line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line <= 0 {
		return "cqasm: " + e.Msg
	}
	return fmt.Sprintf("cqasm: line %d: %s", e.Line, e.Msg)
}

func parseErrorf(line int, format string, args ...any) error {
	return errors.WithStack(&ParseError{Line: line, Msg: fmt.Sprintf(format, args...)})
}
