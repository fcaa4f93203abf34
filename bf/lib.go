package bf

import (
	"context"
)

type settings struct {
	mode     Mode
	input    string
	tapeSize int
	maxInput int
	maxSteps int
}

func newSettings(opts []Option) settings {
	s := settings{
		mode:     Character,
		tapeSize: DefaultTapeSize,
		maxInput: DefaultMaxInput,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Option configures a run.
type Option func(*settings)

func WithMode(m Mode) Option {
	return func(s *settings) { s.mode = m }
}

// WithInput supplies the text consumed by ','.
func WithInput(input string) Option {
	return func(s *settings) { s.input = input }
}

// WithTapeSize sets the number of cells. Values below 1 keep the default.
func WithTapeSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.tapeSize = n
		}
	}
}

// WithMaxInput sets how many ',' reads a run may perform. Values below 1
// keep the default.
func WithMaxInput(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxInput = n
		}
	}
}

// WithMaxSteps bounds the number of instructions executed. 0 means no
// bound.
func WithMaxSteps(n int) Option {
	return func(s *settings) {
		if n >= 0 {
			s.maxSteps = n
		}
	}
}

// Execute runs source once and returns its output. On a fault the output
// produced so far is returned alongside a *Error.
func Execute(ctx context.Context, source string, opts ...Option) (string, error) {
	interpreter := NewInterpreter(source, opts...)
	err := interpreter.RunContext(ctx)
	return interpreter.Output(), err
}
