package bf

// Program is the immutable instruction stream of a run.
type Program struct {
	code []rune
}

func NewProgram(source string) *Program {
	return &Program{code: []rune(source)}
}

func (p *Program) Len() int {
	return len(p.code)
}

// At returns the command at position j. Characters that are not commands
// come back as Ignore.
func (p *Program) At(j int) Command {
	if j < 0 || j >= len(p.code) {
		return Ignore
	}
	return parse(p.code[j])
}

// Char returns the raw character at position j, or 0 when j is off the
// program.
func (p *Program) Char(j int) rune {
	if j < 0 || j >= len(p.code) {
		return 0
	}
	return p.code[j]
}

// matchForward finds the ']' closing the '[' at open. Brackets are
// resolved on every call; nothing is cached between iterations.
func (p *Program) matchForward(open int) (int, error) {
	depth := 0
	for j := open + 1; j < len(p.code); j++ {
		switch p.At(j) {
		case LoopStart:
			depth++
		case LoopEnd:
			if depth == 0 {
				return j, nil
			}
			depth--
		}
	}
	return open, UnbalancedBrackets
}

// matchBackward finds the '[' opening the ']' at close.
func (p *Program) matchBackward(close int) (int, error) {
	depth := 0
	for j := close - 1; j >= 0; j-- {
		switch p.At(j) {
		case LoopEnd:
			depth++
		case LoopStart:
			if depth == 0 {
				return j, nil
			}
			depth--
		}
	}
	return close, UnbalancedBrackets
}
