package bf

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/containerd/log"
)

// comptime override for debug flag
// set with `-ldflags="-X 'github.com/runbf/brainf/bf.debug=true'"`
var debug string

// CompletionMarker ends the output of every run that reaches the end of
// its program, so an empty result can be told apart from a finished one.
const CompletionMarker = "\nExecution complete"

// State is the phase of a run.
type State int

const (
	Running State = iota
	HaltedNormal
	HaltedError
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case HaltedNormal:
		return "halted"
	case HaltedError:
		return "halted with error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Interpreter owns every piece of state of a single run.
type Interpreter struct {
	Program  *Program
	ip       int
	tape     *Tape
	mode     Mode
	input    string
	cursor   InputCursor
	out      strings.Builder
	steps    int
	maxSteps int
	state    State
	err      error
}

func NewInterpreter(source string, opts ...Option) *Interpreter {
	s := newSettings(opts)
	return &Interpreter{
		Program:  NewProgram(source),
		tape:     NewTape(s.tapeSize),
		mode:     s.mode,
		input:    s.input,
		cursor:   NewInputCursor(s.maxInput),
		maxSteps: s.maxSteps,
	}
}

// Reset rewinds the interpreter so the same program can be run afresh.
func (i *Interpreter) Reset() {
	i.ip = 0
	i.tape.Reset()
	i.cursor.Reset()
	i.out.Reset()
	i.steps = 0
	i.state = Running
	i.err = nil
}

func (i *Interpreter) Tape() *Tape {
	return i.tape
}

func (i *Interpreter) State() State {
	return i.state
}

// Position is the instruction pointer.
func (i *Interpreter) Position() int {
	return i.ip
}

func (i *Interpreter) Steps() int {
	return i.steps
}

// Output is everything written so far. After a fault it is the partial
// output, without the completion marker.
func (i *Interpreter) Output() string {
	return i.out.String()
}

// Err is the fault that halted the run, if any.
func (i *Interpreter) Err() error {
	return i.err
}

// Step executes one instruction. Once the run has halted, Step does
// nothing and returns the fault that halted it, if any.
func (i *Interpreter) Step() error {
	if i.state != Running {
		return i.err
	}
	if i.ip >= i.Program.Len() {
		i.state = HaltedNormal
		i.out.WriteString(CompletionMarker)
		return nil
	}
	if i.maxSteps > 0 && i.steps >= i.maxSteps {
		return i.fail(StepLimitExceeded)
	}

	var err error
	switch i.Program.At(i.ip) {
	case Increment:
		err = i.tape.Increment()
	case Decrement:
		err = i.tape.Decrement()
	case Right:
		err = i.tape.MoveRight()
	case Left:
		err = i.tape.MoveLeft()
	case Output:
		i.mode.encode(&i.out, i.tape.Read())
	case Input:
		err = i.read()
	case LoopStart:
		if i.tape.Read() == 0 {
			err = i.jump(i.Program.matchForward)
		}
	case LoopEnd:
		if i.tape.Read() != 0 {
			err = i.jump(i.Program.matchBackward)
		}
	}
	if err != nil {
		return i.fail(err)
	}
	i.steps++
	i.ip++
	if i.ip >= i.Program.Len() {
		i.state = HaltedNormal
		i.out.WriteString(CompletionMarker)
	}
	return nil
}

func (i *Interpreter) read() error {
	v, err := i.mode.decode(i.input, i.cursor.Count())
	if err != nil {
		return err
	}
	i.tape.Write(v)
	return i.cursor.Advance()
}

func (i *Interpreter) jump(match func(int) (int, error)) error {
	j, err := match(i.ip)
	if err != nil {
		return err
	}
	i.ip = j
	return nil
}

// fail halts the run with err, decorated with where it happened.
func (i *Interpreter) fail(err error) error {
	e := &Error{
		Position: i.ip,
		Instr:    Command(i.Program.Char(i.ip)),
		Pointer:  i.tape.Pointer(),
	}
	if k, ok := err.(Kind); ok {
		e.Kind = k
	} else {
		errors.As(err, &e.Kind)
		e.Err = err
	}
	i.state = HaltedError
	i.err = e
	return e
}

// RunContext runs the program until it ends, faults or ctx is done.
func (i *Interpreter) RunContext(ctx context.Context) error {
	for i.state == Running {
		select {
		case <-ctx.Done():
			return i.fail(fmt.Errorf("%w: %w", Canceled, ctx.Err()))
		default:
		}
		if debug != "" {
			log.G(ctx).Tracef("ip=%d instr=%s ptr=%d cell=%d", i.ip, i.Program.At(i.ip), i.tape.Pointer(), i.tape.Read())
		}
		if err := i.Step(); err != nil {
			break
		}
	}

	entry := log.G(ctx).WithFields(log.Fields{
		"steps":    i.steps,
		"position": i.ip,
		"pointer":  i.tape.Pointer(),
		"state":    i.state.String(),
	})
	if e, ok := AsError(i.err); ok {
		entry.WithField("kind", e.Kind.Error()).Debug("run halted")
	} else {
		entry.Debug("run complete")
	}
	return i.err
}

func (i *Interpreter) Run() error {
	return i.RunContext(context.Background())
}
