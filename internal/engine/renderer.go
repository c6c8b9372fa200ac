package engine

import (
	"github.com/waveforge/waveforge/internal/kernel"
)

// request asks the renderer for one chunk of program audio. epoch names the
// timeline generation the request belongs to; the renderer echoes it back so
// the scheduler can reject chunks rendered for an abandoned timeline.
type request struct {
	n      int
	rate   int
	offset float64 // program time of the first sample
	epoch  uint64
}

// result carries one rendered chunk back to the scheduler. The renderer
// gives up ownership of the sample buffer when it sends.
type result struct {
	chunk  []float32
	rate   int
	offset float64
	epoch  uint64
	err    error
}

// swap asks the renderer to recompile with new source.
type swap struct {
	source string
	reply  chan error
}

// renderer owns the kernel evaluator on a dedicated goroutine. All
// communication is message passing: one request channel, one result
// channel, one swap channel. Requests are processed strictly one at a time;
// a swap arriving mid-stream waits for the current render to finish.
type renderer struct {
	maxWidth int

	reqs    chan request
	results chan result
	swaps   chan swap
	quit    chan struct{}
	done    chan struct{}
}

func newRenderer(eval kernel.Evaluator) *renderer {
	r := &renderer{
		maxWidth: eval.MaxWidth(),
		reqs:     make(chan request, 1),
		results:  make(chan result, 1),
		swaps:    make(chan swap),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.loop(eval)
	return r
}

func (r *renderer) loop(eval kernel.Evaluator) {
	defer close(r.done)
	defer eval.Close()

	for {
		select {
		case <-r.quit:
			return
		case sw := <-r.swaps:
			sw.reply <- eval.Compile(sw.source)
		case req := <-r.reqs:
			// Defensive clamp; the scheduler already requests within bounds.
			n := req.n
			if n > r.maxWidth {
				n = r.maxWidth
			}
			chunk, err := eval.Evaluate(n, req.rate, req.offset)
			// Single in-flight request means the cap-1 result channel can
			// never be full here.
			r.results <- result{chunk: chunk, rate: req.rate, offset: req.offset, epoch: req.epoch, err: err}
		}
	}
}

func (r *renderer) close() {
	select {
	case <-r.quit:
	default:
		close(r.quit)
	}
	<-r.done
}
