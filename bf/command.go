package bf

// Command is a single instruction character.
type Command rune

const (
	Increment Command = '+'
	Decrement Command = '-'
	Left      Command = '<'
	Right     Command = '>'
	Output    Command = '.'
	Input     Command = ','
	LoopStart Command = '['
	LoopEnd   Command = ']'
	Ignore    Command = ' '
)

func parse(c rune) Command {
	switch c {
	case '+':
		return Increment
	case '-':
		return Decrement
	case '>':
		return Right
	case '<':
		return Left
	case '.':
		return Output
	case ',':
		return Input
	case '[':
		return LoopStart
	case ']':
		return LoopEnd
	default:
		return Ignore
	}
}

func (c Command) String() string {
	switch c {
	case Increment, Decrement, Left, Right, Output, Input, LoopStart, LoopEnd:
		return string(rune(c))
	default:
		return " "
	}
}

// Strip drops every character that is not a command. Positions reported by
// a run of the stripped source refer to the stripped text.
func Strip(input string) string {
	var result []rune
	for _, c := range input {
		if parse(c) != Ignore {
			result = append(result, c)
		}
	}
	return string(result)
}
