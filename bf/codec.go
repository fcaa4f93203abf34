package bf

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// DefaultMaxInput is the number of ',' reads a run may perform.
const DefaultMaxInput = 32

// numericSeparator follows every value written in Numeric mode.
const numericSeparator = ", "

// Mode selects how cells are encoded at the I/O boundary.
type Mode int

const (
	// Character treats cells as Unicode code points.
	Character Mode = iota
	// Numeric treats cells as signed decimal integers.
	Numeric
)

func (m Mode) String() string {
	switch m {
	case Character:
		return "character"
	case Numeric:
		return "numeric"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts the names printed by Mode.String and a few aliases.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "character", "char", "ascii", "text":
		return Character, nil
	case "numeric", "number", "int", "integer":
		return Numeric, nil
	default:
		return Character, fmt.Errorf("unknown I/O mode %q", s)
	}
}

// encode appends the representation of v to out.
func (m Mode) encode(out *strings.Builder, v int32) {
	if m == Numeric {
		out.WriteString(strconv.FormatInt(int64(v), 10))
		out.WriteString(numericSeparator)
		return
	}
	// out-of-range code points are written as-is and come out as U+FFFD
	out.WriteRune(rune(v))
}

// decode returns the index-th token of input as a cell value.
//
// In Numeric mode whitespace is removed first. When the text holds commas
// the index-th comma separated token is parsed. Then the whole text is
// parsed as one integer and, if that works, replaces the token value. A
// text with commas never parses whole, so the token value stands; a text
// without commas is always taken whole, whatever the index.
func (m Mode) decode(input string, index int) (int32, error) {
	if input == "" {
		return 0, InputRequired
	}
	if m != Numeric {
		runes := []rune(input)
		if index < 0 || index >= len(runes) {
			return 0, fmt.Errorf("%w: no character at index %d", InputInvalid, index)
		}
		return runes[index], nil
	}

	text := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, input)

	var (
		value int32
		found bool
	)
	if strings.Contains(text, ",") {
		parts := strings.Split(text, ",")
		if index < 0 || index >= len(parts) {
			return 0, fmt.Errorf("%w: no number at index %d", InputInvalid, index)
		}
		v, err := strconv.ParseInt(parts[index], 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", InputInvalid, err)
		}
		value, found = int32(v), true
	}

	v, err := strconv.ParseInt(text, 10, 32)
	switch {
	case err == nil:
		value = int32(v)
	case !found:
		return 0, fmt.Errorf("%w: %w", InputInvalid, err)
	}
	return value, nil
}

// InputCursor counts the tokens consumed by ',' against a fixed budget.
type InputCursor struct {
	count int
	max   int
}

func NewInputCursor(max int) InputCursor {
	if max < 1 {
		max = DefaultMaxInput
	}
	return InputCursor{max: max}
}

func (c InputCursor) Count() int {
	return c.count
}

func (c InputCursor) Max() int {
	return c.max
}

// Advance records one consumed token. Using up the budget is a fault, even
// though the read that used it up succeeded.
func (c *InputCursor) Advance() error {
	c.count++
	if c.count >= c.max {
		return InputLimitExceeded
	}
	return nil
}

func (c *InputCursor) Reset() {
	c.count = 0
}
