// Package testimpl provides the two sample implementations used by tests,
// the CLI deploy scenario and the load test. Each exposes testNumber() and
// three setters that store their last digit into the shared counter slot.
package testimpl

import (
	"context"

	goClone "github.com/MrEthical07/goClone"
	"github.com/MrEthical07/goClone/state"
)

// NumberSlot is the state key holding the counter.
const NumberSlot = "testNumber"

// V1 declares func11(), func12(), func13(), testNumber() in that order.
func V1() *goClone.Contract {
	return goClone.MustContract("TestImplV1",
		goClone.Func("func11()", setNumber(1)),
		goClone.Func("func12()", setNumber(2)),
		goClone.Func("func13()", setNumber(3)),
		goClone.Func("testNumber()", readNumber),
	)
}

// V2 declares func21(), func22(), func23(), testNumber() in that order.
func V2() *goClone.Contract {
	return goClone.MustContract("TestImplV2",
		goClone.Func("func21()", setNumber(1)),
		goClone.Func("func22()", setNumber(2)),
		goClone.Func("func23()", setNumber(3)),
		goClone.Func("testNumber()", readNumber),
	)
}

// Number decodes the output of testNumber().
func Number(out []byte) uint64 {
	return state.DecodeUint64(out)
}

func setNumber(n uint64) goClone.Handler {
	return func(_ context.Context, st state.State, _ []byte) ([]byte, error) {
		state.SetUint64(st, NumberSlot, n)
		return nil, nil
	}
}

func readNumber(_ context.Context, st state.State, _ []byte) ([]byte, error) {
	return state.EncodeUint64(state.GetUint64(st, NumberSlot)), nil
}
