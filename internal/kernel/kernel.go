// Package kernel defines the sound-program evaluator consumed by the engine.
//
// A program is opaque source text exposing a single entry point
// sound(t) -> (left, right). The evaluator compiles it and evaluates it once
// per sample index over a whole batch; the engine never sees the program's
// internals, only batches of interleaved stereo samples.
package kernel

// Evaluator compiles a sound program and evaluates it in batches.
//
// Implementations are not safe for concurrent use; the engine's background
// renderer is the only caller.
type Evaluator interface {
	// Compile replaces the active program. On error the previously compiled
	// program (if any) remains in effect.
	Compile(source string) error

	// Evaluate returns n interleaved stereo sample pairs covering program
	// time [offset, offset+n/rate). n is clamped to MaxWidth.
	Evaluate(n int, rate int, offset float64) ([]float32, error)

	// MaxWidth is the largest batch a single Evaluate call can produce.
	MaxWidth() int

	Close() error
}

// SetupError means the evaluator could not be constructed at all.
// The instance is unusable.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string { return "kernel setup: " + e.Err.Error() }
func (e *SetupError) Unwrap() error { return e.Err }

// CompileError means a program failed to compile or lacks a sound entry
// point. Recoverable: the caller may retry with corrected source.
type CompileError struct {
	Err error
}

func (e *CompileError) Error() string { return "compile: " + e.Err.Error() }
func (e *CompileError) Unwrap() error { return e.Err }

// EvalError means a single evaluation batch failed. Transient: the next
// batch may succeed.
type EvalError struct {
	Err error
}

func (e *EvalError) Error() string { return "evaluate: " + e.Err.Error() }
func (e *EvalError) Unwrap() error { return e.Err }
