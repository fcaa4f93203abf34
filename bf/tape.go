package bf

import "math"

// DefaultTapeSize is the number of cells a run gets unless told otherwise.
const DefaultTapeSize = 16384

// Tape is a fixed row of signed cells and a data pointer into it. The
// pointer never leaves [0, Len()).
type Tape struct {
	cells []int32
	ptr   int
}

func NewTape(size int) *Tape {
	if size < 1 {
		size = DefaultTapeSize
	}
	return &Tape{cells: make([]int32, size)}
}

func (t *Tape) Reset() {
	t.ptr = 0
	clear(t.cells)
}

func (t *Tape) Len() int {
	return len(t.cells)
}

func (t *Tape) Pointer() int {
	return t.ptr
}

// At returns the cell at index j, or 0 when j is off the tape.
func (t *Tape) At(j int) int32 {
	if j < 0 || j >= len(t.cells) {
		return 0
	}
	return t.cells[j]
}

func (t *Tape) MoveLeft() error {
	if t.ptr == 0 {
		return PointerUnderflow
	}
	t.ptr--
	return nil
}

func (t *Tape) MoveRight() error {
	if t.ptr >= len(t.cells)-1 {
		return PointerOverflow
	}
	t.ptr++
	return nil
}

func (t *Tape) Increment() error {
	if t.cells[t.ptr] == math.MaxInt32 {
		return ValueOverflow
	}
	t.cells[t.ptr]++
	return nil
}

func (t *Tape) Decrement() error {
	if t.cells[t.ptr] == math.MinInt32 {
		return ValueUnderflow
	}
	t.cells[t.ptr]--
	return nil
}

func (t *Tape) Read() int32 {
	return t.cells[t.ptr]
}

// Write stores v in the current cell. Unlike Increment and Decrement it
// does no range checking.
func (t *Tape) Write(v int32) {
	t.cells[t.ptr] = v
}
