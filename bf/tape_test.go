package bf_test

import (
	"math"
	"testing"

	"github.com/runbf/brainf/bf"
	"github.com/runbf/brainf/utils"
)

func TestTape_Bounds(t *testing.T) {
	tape := bf.NewTape(2)
	utils.AssertEqual(t, tape.Len(), 2)
	utils.AssertEqual(t, tape.MoveLeft(), error(bf.PointerUnderflow))
	utils.AssertNoError(t, tape.MoveRight())
	utils.AssertEqual(t, tape.MoveRight(), error(bf.PointerOverflow))
	utils.AssertEqual(t, tape.Pointer(), 1)
	utils.AssertNoError(t, tape.MoveLeft())
	utils.AssertEqual(t, tape.Pointer(), 0)
}

func TestTape_DefaultSize(t *testing.T) {
	utils.AssertEqual(t, bf.NewTape(0).Len(), bf.DefaultTapeSize)
	utils.AssertEqual(t, bf.NewTape(-5).Len(), bf.DefaultTapeSize)
}

func TestTape_IncrementDecrementRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 7, 255, 1000} {
		tape := bf.NewTape(1)
		for range n {
			utils.AssertNoError(t, tape.Increment())
		}
		for range n {
			utils.AssertNoError(t, tape.Decrement())
		}
		utils.AssertEqual(t, tape.Read(), 0)
	}
}

func TestTape_ValueLimits(t *testing.T) {
	tape := bf.NewTape(1)
	tape.Write(math.MaxInt32)
	utils.AssertEqual(t, tape.Increment(), error(bf.ValueOverflow))
	utils.AssertEqual(t, tape.Read(), math.MaxInt32)

	tape.Write(math.MinInt32)
	utils.AssertEqual(t, tape.Decrement(), error(bf.ValueUnderflow))
	utils.AssertEqual(t, tape.Read(), math.MinInt32)
}

func TestTape_Reset(t *testing.T) {
	tape := bf.NewTape(3)
	utils.AssertNoError(t, tape.MoveRight())
	tape.Write(42)
	tape.Reset()
	utils.AssertEqual(t, tape.Pointer(), 0)
	utils.AssertEqual(t, tape.At(1), 0)
	utils.AssertEqual(t, tape.At(99), 0)
}
