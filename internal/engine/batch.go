package engine

import (
	"github.com/waveforge/waveforge/internal/kernel"
)

// RenderBatch evaluates the compiled program over a fixed span of program
// time and returns one contiguous interleaved stereo buffer. This is the
// precompute-then-play path: no scheduling, no backpressure, just repeated
// evaluator calls up to the batch width.
//
// The evaluator must already have a program compiled. Not for use while a
// renderer owns the same evaluator.
func RenderBatch(eval kernel.Evaluator, rate int, seconds float64) ([]float32, error) {
	total := int(seconds*float64(rate) + 0.5)
	out := make([]float32, 0, total*2)

	for produced := 0; produced < total; {
		n := total - produced
		if w := eval.MaxWidth(); n > w {
			n = w
		}
		chunk, err := eval.Evaluate(n, rate, float64(produced)/float64(rate))
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		produced += len(chunk) / 2
	}
	return out, nil
}
