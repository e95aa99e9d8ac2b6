package capture

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/aerctl/internal/burst"
	"github.com/danmuck/aerctl/internal/codec"
	"github.com/danmuck/aerctl/internal/geometry"
	"github.com/danmuck/aerctl/internal/receiver"
	"github.com/danmuck/aerctl/internal/ringbuf"
	"github.com/rs/zerolog"
)

var (
	ErrAlreadyRunning = errors.New("capture: pipeline already running")
	ErrRingCapacity   = errors.New("capture: ring capacity must be >= 2")
	ErrBatch          = errors.New("capture: batch words must be > 0")
)

type Config struct {
	Geometry     geometry.Geometry
	RingCapacity int
	Receiver     receiver.Config
	// BatchWords and BatchBudget bound one Service call when a valid-wait
	// timeout is configured.
	BatchWords  int
	BatchBudget time.Duration
	// IdleSleep is the pause between polls of an idle bus or empty ring.
	// 0 yields instead of sleeping.
	IdleSleep time.Duration
}

func DefaultConfig() Config {
	return Config{
		Geometry:     geometry.Default(),
		RingCapacity: 2048,
		Receiver:     receiver.DefaultConfig(),
		BatchWords:   64,
		BatchBudget:  0,
		IdleSleep:    50 * time.Microsecond,
	}
}

func (c Config) Validate() error {
	if err := c.Geometry.Validate(); err != nil {
		return err
	}
	if c.RingCapacity < 2 {
		return fmt.Errorf("%w: got %d", ErrRingCapacity, c.RingCapacity)
	}
	if c.BatchWords <= 0 {
		return fmt.Errorf("%w: got %d", ErrBatch, c.BatchWords)
	}
	return nil
}

type reset uint32

const (
	resetNone reset = iota
	resetFlags
	resetAll
)

// Pipeline owns one capture path: the receiver producer on one goroutine and
// decode + burst assembly on another, joined only by the ring.
type Pipeline struct {
	cfg   Config
	ring  *ringbuf.Ring
	rx    *receiver.Receiver
	codec codec.Codec
	asm   *burst.Assembler
	sink  burst.Sink
	log   zerolog.Logger

	running atomic.Bool

	lastStatus  atomic.Uint32
	asmReset    atomic.Uint32
	rxReset     atomic.Bool
	codecReset  atomic.Bool
	ringHigh    atomic.Uint32
	wordsIn     atomic.Uint64
	codecOK     atomic.Uint64
	codecBad    atomic.Uint64
	codecIdle   atomic.Uint64
	tails       atomic.Uint64
	codecFlags  [8]atomic.Uint64
	producerErr atomic.Uint64
}

func New(cfg Config, bus receiver.Bus, sink burst.Sink, logger zerolog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ring, err := ringbuf.New(make([]uint32, cfg.RingCapacity))
	if err != nil {
		return nil, err
	}
	rx, err := receiver.New(bus, ring, cfg.Receiver)
	if err != nil {
		return nil, err
	}
	c, err := codec.New(cfg.Geometry)
	if err != nil {
		return nil, err
	}
	asm, err := burst.New(cfg.Geometry)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:   cfg,
		ring:  ring,
		rx:    rx,
		codec: c,
		asm:   asm,
		sink:  sink,
		log:   logger.With().Str("component", "capture").Logger(),
	}, nil
}

func (p *Pipeline) Config() Config { return p.cfg }

// Run drives both goroutines until ctx is cancelled, then drains what the
// producer already queued.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer p.running.Store(false)

	p.log.Info().
		Str("geometry", p.cfg.Geometry.String()).
		Int("ring_capacity", p.cfg.RingCapacity).
		Str("policy", p.cfg.Receiver.Policy.String()).
		Dur("wait_valid", p.cfg.Receiver.WaitValidTimeout).
		Dur("wait_neutral", p.cfg.Receiver.WaitNeutralTimeout).
		Msg("capture started")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.produce(ctx)
	}()
	p.consume(ctx)
	wg.Wait()
	p.DrainOnce()

	p.log.Info().Interface("stats", p.Snapshot()).Msg("capture stopped")
	return nil
}

func (p *Pipeline) produce(ctx context.Context) {
	for ctx.Err() == nil {
		switch st := p.ServiceOnce(); st {
		case receiver.StatusOK:
		case receiver.StatusTimeoutWaitValid:
			p.idle()
		case receiver.StatusNoSpace:
			runtime.Gosched()
		case receiver.StatusTimeoutWaitNeutral:
			p.producerErr.Add(1)
			p.log.Warn().Uint64("timeouts_neutral", p.rx.Stats().TimeoutsNeutral).Msg("sender did not return to neutral; ack released")
		}
	}
}

// ServiceOnce runs one producer iteration. With no valid-wait timeout it polls
// the bus, and a word withdrawn before it is latched is waited on for at most
// IdleSleep, so an idle bus never blocks the caller.
func (p *Pipeline) ServiceOnce() receiver.Status {
	if p.rxReset.Swap(false) {
		p.rx.Reset()
	}
	var st receiver.Status
	if p.cfg.Receiver.WaitValidTimeout == 0 {
		st = p.rx.TryStep(p.cfg.IdleSleep)
		if st == receiver.StatusTimeoutWaitValid {
			return st
		}
	} else {
		_, st = p.rx.Service(p.cfg.BatchWords, p.cfg.BatchBudget)
	}
	p.noteRingDepth()
	p.lastStatus.Store(uint32(st))
	return st
}

func (p *Pipeline) consume(ctx context.Context) {
	for ctx.Err() == nil {
		if p.DrainOnce() == 0 {
			p.idle()
		}
	}
}

// DrainOnce empties the ring through decode and burst assembly and returns the
// number of words consumed. Consumer goroutine only.
func (p *Pipeline) DrainOnce() int {
	switch reset(p.asmReset.Swap(uint32(resetNone))) {
	case resetFlags:
		p.asm.Reset(false)
	case resetAll:
		p.asm.Reset(true)
	}
	if p.codecReset.Swap(false) {
		p.resetCodecCounters()
	}

	p.noteRingDepth()

	n := 0
	for {
		raw, ok := p.ring.Pop()
		if !ok {
			break
		}
		n++
		p.feed(raw)
	}
	if n > 0 {
		p.wordsIn.Add(uint64(n))
	}
	return n
}

func (p *Pipeline) feed(raw uint32) {
	d := p.codec.Decode(raw)
	for f := uint32(d.Flags); f != 0; f &= f - 1 {
		i := bits.TrailingZeros32(f)
		if i < len(p.codecFlags) {
			p.codecFlags[i].Add(1)
		}
	}
	switch {
	case d.Flags.Has(codec.FlagNeutral):
		p.codecIdle.Add(1)
	case !d.OK:
		p.codecBad.Add(1)
	default:
		p.codecOK.Add(1)
		if d.IsTail {
			p.tails.Add(1)
		}
	}
	p.asm.Feed(d, p.sink)
}

// noteRingDepth raises the high-water mark. Both goroutines call it: the
// producer after each push batch, the consumer before draining.
func (p *Pipeline) noteRingDepth() {
	c := uint32(p.ring.Count())
	for {
		high := p.ringHigh.Load()
		if c <= high || p.ringHigh.CompareAndSwap(high, c) {
			return
		}
	}
}

func (p *Pipeline) idle() {
	if p.cfg.IdleSleep > 0 {
		time.Sleep(p.cfg.IdleSleep)
		return
	}
	runtime.Gosched()
}

// RequestReset asks the owning goroutines to clear sticky flags, and counters
// when clearCounters is set. It takes effect on their next iteration.
func (p *Pipeline) RequestReset(clearCounters bool) {
	if clearCounters {
		p.asmReset.Store(uint32(resetAll))
		p.rxReset.Store(true)
		p.codecReset.Store(true)
		return
	}
	p.asmReset.CompareAndSwap(uint32(resetNone), uint32(resetFlags))
}

func (p *Pipeline) resetCodecCounters() {
	p.wordsIn.Store(0)
	p.codecOK.Store(0)
	p.codecBad.Store(0)
	p.codecIdle.Store(0)
	p.tails.Store(0)
	p.ringHigh.Store(0)
	p.producerErr.Store(0)
	for i := range p.codecFlags {
		p.codecFlags[i].Store(0)
	}
}

func (p *Pipeline) Running() bool { return p.running.Load() }
