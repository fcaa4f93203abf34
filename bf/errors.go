package bf

import (
	"errors"
	"fmt"
)

// Kinds of run faults. Every one of them halts the run.
const (
	PointerUnderflow = Kind(iota)
	PointerOverflow
	ValueUnderflow
	ValueOverflow
	InputRequired
	InputInvalid
	InputLimitExceeded
	UnbalancedBrackets
	StepLimitExceeded
	Canceled
)

var strKind = []string{
	"pointer underflow",
	"pointer overflow",
	"value underflow",
	"value overflow",
	"input required",
	"invalid input",
	"input limit exceeded",
	"unbalanced brackets",
	"step limit exceeded",
	"canceled",
}

// exit statuses start above the ones a shell reserves for itself
const exitCodeBase = 10

// Kind describes the reason a run halted with an error.
type Kind int

func (k Kind) Error() string {
	if k < 0 || int(k) >= len(strKind) {
		return fmt.Sprintf("unknown fault %d", int(k))
	}
	return strKind[k]
}

// ExitCode is the process exit status a host reports for this kind.
func (k Kind) ExitCode() int {
	return exitCodeBase + int(k)
}

// Error describes the cause and the context of a run fault.
type Error struct {
	Kind     Kind    // nature of the fault
	Err      error   // underlying cause for InputInvalid and Canceled
	Position int     // instruction pointer at the fault
	Instr    Command // character at Position, comments included
	Pointer  int     // data pointer at the fault
}

func (e *Error) Error() string {
	msg := "bf: "
	if e.Err != nil {
		msg += e.Err.Error()
	} else {
		msg += e.Kind.Error()
	}
	return fmt.Sprintf("%s at %d (%q), pointer %d", msg, e.Position, rune(e.Instr), e.Pointer)
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// AsError extracts the run fault from err, if there is one.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
