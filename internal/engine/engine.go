// Package engine is the streaming generation-and-scheduling core: it keeps
// a background renderer fed with work ahead of the playback cursor, turns
// rendered chunks into a gapless playback timeline, and swaps the evaluated
// program without leaking resources.
package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/waveforge/waveforge/internal/audio"
	"github.com/waveforge/waveforge/internal/device"
	"github.com/waveforge/waveforge/internal/kernel"
)

// Contract constants. Lookahead is the buffered-audio target that triggers
// generation, SafetyMargin guards against scheduling in the past, HardCap
// bounds a chunk independent of the evaluator's discovered width.
const (
	DefaultLookahead    = 1.0
	DefaultSafetyMargin = 0.1
	DefaultHardCap      = 8192
	DefaultTickInterval = 16 * time.Millisecond
	DefaultSwapTimeout  = 5 * time.Second
)

// ErrTimeout means the renderer did not signal readiness in time after a
// program swap.
var ErrTimeout = errors.New("timed out waiting for renderer")

// ErrClosed means the engine has been disposed.
var ErrClosed = errors.New("engine closed")

// Config tunes the engine. Zero values fall back to the defaults above.
type Config struct {
	SampleRate   int
	Lookahead    float64 // seconds of audio to keep scheduled ahead
	SafetyMargin float64 // seconds added to "now" when the watermark is behind
	HardCap      int     // max samples per generation request
	TickInterval time.Duration
	SwapTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.SampleRate == 0 {
		c.SampleRate = 48000
	}
	if c.Lookahead == 0 {
		c.Lookahead = DefaultLookahead
	}
	if c.SafetyMargin == 0 {
		c.SafetyMargin = DefaultSafetyMargin
	}
	if c.HardCap == 0 {
		c.HardCap = DefaultHardCap
	}
	if c.TickInterval == 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.SwapTimeout == 0 {
		c.SwapTimeout = DefaultSwapTimeout
	}
	return c
}

// Status is a snapshot of the engine for display.
type Status struct {
	Running        bool    `json:"running"`
	CurrentTime    float64 `json:"current_time"`    // program seconds of the next chunk
	ScheduledUntil float64 `json:"scheduled_until"` // device-clock watermark
	BufferedTime   float64 `json:"buffered_time"`
	ActiveUnits    int     `json:"active_units"`
	MaxWidth       int     `json:"max_width"`
}

// unitToken identifies one scheduled playback unit in the tracked set.
type unitToken struct {
	handle device.Handle
}

// Engine coordinates the background renderer, the generation scheduler, and
// the playback scheduler. Multiple independent engines can coexist.
type Engine struct {
	cfg  Config
	out  device.Output
	rend *renderer

	swapMu sync.Mutex // serializes SetProgram; later callers apply later

	mu             sync.Mutex
	ready          bool // a program has compiled successfully
	running        bool
	inFlight       bool
	closed         bool
	epoch          uint64 // timeline generation; bumped on every Stop
	currentTime    float64
	scheduledUntil float64
	units          map[*unitToken]struct{}
}

// New builds an engine around an evaluator and an output device. The
// evaluator is handed to the background renderer and must not be used by
// the caller afterwards.
func New(eval kernel.Evaluator, out device.Output, cfg Config) *Engine {
	return &Engine{
		cfg:   cfg.withDefaults(),
		out:   out,
		rend:  newRenderer(eval),
		units: make(map[*unitToken]struct{}),
	}
}

// MaxWidth is the evaluator's discovered maximum batch width.
func (e *Engine) MaxWidth() int { return e.rend.maxWidth }

// Initialize compiles the first program and unblocks the output device.
// A compile or setup failure rejects the whole instance.
func (e *Engine) Initialize(ctx context.Context, source string) error {
	if err := e.compile(ctx, source); err != nil {
		return err
	}
	e.mu.Lock()
	e.ready = true
	e.mu.Unlock()
	return e.out.Resume()
}

// compile sends a swap to the renderer and waits for readiness, bounded by
// the swap timeout.
func (e *Engine) compile(ctx context.Context, source string) error {
	sw := swap{source: source, reply: make(chan error, 1)}
	timeout := time.NewTimer(e.cfg.SwapTimeout)
	defer timeout.Stop()

	select {
	case e.rend.swaps <- sw:
	case <-e.rend.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout.C:
		return ErrTimeout
	}
	select {
	case err := <-sw.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout.C:
		return ErrTimeout
	}
}

// Start begins a fresh playback timeline. No-op when already running.
// Generation starts on the next tick, not here.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.running || !e.ready {
		return
	}
	e.currentTime = 0
	e.scheduledUntil = e.out.Now()
	e.running = true
	log.Printf("engine: started (lookahead %.2fs, cap %d samples)", e.cfg.Lookahead, e.cfg.HardCap)
}

// Stop halts every scheduled unit and resets the timeline. An in-flight
// render is left to finish; bumping the epoch marks its result stale even
// if playback has restarted by the time it arrives.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.epoch++
	units := e.units
	e.units = make(map[*unitToken]struct{})
	e.currentTime = 0
	e.scheduledUntil = 0
	e.mu.Unlock()

	for u := range units {
		u.handle.Stop()
	}
	log.Printf("engine: stopped (%d units halted)", len(units))
}

// SetProgram replaces the evaluated program. While running, playback stops,
// the swap is applied, and playback restarts on a fresh timeline once the
// renderer is ready. A compile failure leaves playback stopped with the old
// program still installed; nothing restarts automatically.
//
// Concurrent calls are serialized in arrival order, so the last caller's
// program is the one left in effect.
func (e *Engine) SetProgram(ctx context.Context, source string) error {
	e.swapMu.Lock()
	defer e.swapMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	wasRunning := e.running
	e.mu.Unlock()

	if wasRunning {
		e.Stop()
	}
	if err := e.compile(ctx, source); err != nil {
		return err
	}
	e.mu.Lock()
	e.ready = true
	e.mu.Unlock()
	if wasRunning {
		e.Start()
	}
	return nil
}

// Run drives the engine until ctx is cancelled: results are consumed as
// they arrive and the scheduler is ticked at a fixed cadence.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-e.rend.results:
			e.handleResult(res)
		case <-ticker.C:
			e.tick()
		}
	}
}

// tick is one pass of the cooperative scheduler loop: drain a pending
// result, then issue a generation request if the lookahead has drained.
// Level-triggered; safe to call at any cadence.
func (e *Engine) tick() {
	select {
	case res := <-e.rend.results:
		e.handleResult(res)
	default:
	}
	e.maybeRequest()
}

// maybeRequest issues at most one generation request when running, ready,
// nothing in flight, and the buffered audio is below the lookahead target.
func (e *Engine) maybeRequest() {
	e.mu.Lock()
	if e.closed || !e.running || !e.ready || e.inFlight {
		e.mu.Unlock()
		return
	}
	buffered := e.scheduledUntil - e.out.Now()
	if buffered >= e.cfg.Lookahead {
		e.mu.Unlock()
		return
	}
	n := e.rend.maxWidth
	if n > e.cfg.HardCap {
		n = e.cfg.HardCap
	}
	req := request{n: n, rate: e.cfg.SampleRate, offset: e.currentTime, epoch: e.epoch}
	e.inFlight = true
	e.mu.Unlock()

	select {
	case e.rend.reqs <- req:
	default:
		// Request slot occupied; only reachable if the guard was bypassed.
		e.mu.Lock()
		e.inFlight = false
		e.mu.Unlock()
	}
}

// handleResult is the playback scheduler: wrap the chunk, schedule it where
// the previous unit ends, advance both watermarks, track the unit.
func (e *Engine) handleResult(res result) {
	e.mu.Lock()
	e.inFlight = false

	if res.err != nil {
		e.mu.Unlock()
		log.Printf("engine: render at t=%.3fs failed: %v", res.offset, res.err)
		return
	}
	if !e.running || res.epoch != e.epoch {
		// Stale chunk from a timeline that has since been stopped; the
		// current timeline may already be a fresh one.
		e.mu.Unlock()
		return
	}

	start := e.scheduledUntil
	if floor := e.out.Now() + e.cfg.SafetyMargin; floor > start {
		// Generation fell behind; resume with a gap rather than masking it.
		start = floor
	}
	dur := audio.Seconds(len(res.chunk)/2, res.rate)

	tok := &unitToken{}
	h, err := e.out.Schedule(res.chunk, res.rate, start, func() { e.finishUnit(tok) })
	if err != nil {
		e.mu.Unlock()
		log.Printf("engine: schedule at %.3fs failed: %v", start, err)
		return
	}
	tok.handle = h
	e.units[tok] = struct{}{}
	e.scheduledUntil = start + dur
	e.currentTime = res.offset + dur
	e.mu.Unlock()
}

func (e *Engine) finishUnit(tok *unitToken) {
	e.mu.Lock()
	delete(e.units, tok)
	e.mu.Unlock()
}

// Status reports a consistent snapshot.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	buffered := e.scheduledUntil - e.out.Now()
	if !e.running || buffered < 0 {
		buffered = 0
	}
	return Status{
		Running:        e.running,
		CurrentTime:    e.currentTime,
		ScheduledUntil: e.scheduledUntil,
		BufferedTime:   buffered,
		ActiveUnits:    len(e.units),
		MaxWidth:       e.rend.maxWidth,
	}
}

// Close stops playback, shuts down the renderer goroutine, and closes the
// device. Safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.mu.Lock()
	e.running = false
	units := e.units
	e.units = make(map[*unitToken]struct{})
	e.currentTime = 0
	e.scheduledUntil = 0
	e.mu.Unlock()
	for u := range units {
		u.handle.Stop()
	}

	e.rend.close()
	return e.out.Close()
}
