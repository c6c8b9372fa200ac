package kernel

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// DefaultMaxWidth is the batch ceiling used when the caller does not
// override it.
const DefaultMaxWidth = 4096

// LuaEvaluator evaluates sound programs written in Lua. Each Compile builds
// a fresh interpreter state so a failed compile never disturbs the running
// program and a successful swap cannot leak globals from the old one.
type LuaEvaluator struct {
	state    *lua.LState
	sound    *lua.LFunction
	maxWidth int
}

// NewLuaEvaluator constructs an evaluator with the given batch ceiling.
// Pass 0 for DefaultMaxWidth.
func NewLuaEvaluator(maxWidth int) (*LuaEvaluator, error) {
	if maxWidth == 0 {
		maxWidth = DefaultMaxWidth
	}
	if maxWidth < 1 {
		return nil, &SetupError{Err: fmt.Errorf("max width %d out of range", maxWidth)}
	}
	return &LuaEvaluator{maxWidth: maxWidth}, nil
}

// Compile parses and runs source in a fresh Lua state, then captures its
// global sound function. The previous state is only torn down on success.
func (e *LuaEvaluator) Compile(source string) error {
	next := lua.NewState()

	fn, err := next.LoadString(source)
	if err != nil {
		next.Close()
		return &CompileError{Err: err}
	}
	next.Push(fn)
	if err := next.PCall(0, lua.MultRet, nil); err != nil {
		next.Close()
		return &CompileError{Err: err}
	}
	sound, ok := next.GetGlobal("sound").(*lua.LFunction)
	if !ok {
		next.Close()
		return &CompileError{Err: errors.New("program does not define sound(t)")}
	}

	if e.state != nil {
		e.state.Close()
	}
	e.state = next
	e.sound = sound
	return nil
}

func (e *LuaEvaluator) MaxWidth() int { return e.maxWidth }

// Evaluate calls sound(t) once per sample index and returns the batch as
// interleaved stereo float32 pairs.
func (e *LuaEvaluator) Evaluate(n int, rate int, offset float64) ([]float32, error) {
	if e.sound == nil {
		return nil, &EvalError{Err: errors.New("no program compiled")}
	}
	if n > e.maxWidth {
		n = e.maxWidth
	}
	if n < 1 || rate < 1 {
		return nil, &EvalError{Err: fmt.Errorf("bad batch: n=%d rate=%d", n, rate)}
	}

	L := e.state
	out := make([]float32, n*2)
	for i := 0; i < n; i++ {
		t := offset + float64(i)/float64(rate)
		L.Push(e.sound)
		L.Push(lua.LNumber(t))
		if err := L.PCall(1, 2, nil); err != nil {
			return nil, &EvalError{Err: err}
		}
		right := L.Get(-1)
		left := L.Get(-2)
		L.Pop(2)

		lv, lok := left.(lua.LNumber)
		rv, rok := right.(lua.LNumber)
		if !lok || !rok {
			return nil, &EvalError{Err: fmt.Errorf("sound(%g) did not return two numbers", t)}
		}
		out[i*2] = float32(lv)
		out[i*2+1] = float32(rv)
	}
	return out, nil
}

func (e *LuaEvaluator) Close() error {
	if e.state != nil {
		e.state.Close()
		e.state = nil
		e.sound = nil
	}
	return nil
}
