package bf_test

import (
	"testing"

	"github.com/runbf/brainf/bf"
	"github.com/runbf/brainf/utils"
)

func TestStrip(t *testing.T) {
	input := "++\n\n--<    >.,[hello sailor]"
	expected := "++--<>.,[]"
	utils.AssertEqual(t, bf.Strip(input), expected)
}

func TestProgram_At(t *testing.T) {
	program := bf.NewProgram("+-<>.,[]x")
	expected := []bf.Command{
		bf.Increment,
		bf.Decrement,
		bf.Left,
		bf.Right,
		bf.Output,
		bf.Input,
		bf.LoopStart,
		bf.LoopEnd,
		bf.Ignore,
	}
	result := make([]bf.Command, program.Len())
	for j := range result {
		result[j] = program.At(j)
	}
	utils.AssertEqualArrays(t, expected, result)
	utils.AssertEqual(t, program.At(-1), bf.Ignore)
	utils.AssertEqual(t, program.At(100), bf.Ignore)
}

func TestProgram_CountsRunes(t *testing.T) {
	// multi-byte comments still take one position each
	program := bf.NewProgram("ü+")
	utils.AssertEqual(t, program.Len(), 2)
	utils.AssertEqual(t, program.At(1), bf.Increment)
}

func TestProgram_Char(t *testing.T) {
	program := bf.NewProgram("a+")
	utils.AssertEqual(t, program.Char(0), 'a')
	utils.AssertEqual(t, program.Char(1), '+')
	utils.AssertEqual(t, program.Char(2), rune(0))
}
