package receiver

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/danmuck/aerctl/internal/codec"
	"github.com/danmuck/aerctl/internal/ringbuf"
)

var (
	ErrNilBus     = errors.New("receiver: bus is required")
	ErrNilRing    = errors.New("receiver: ring is required")
	ErrPolicy     = errors.New("receiver: unknown backpressure policy")
	ErrNegTimeout = errors.New("receiver: timeouts must be >= 0")
)

// Bus is the sampled view of the DATA lines plus the ACK driver.
// Polarity is the implementation's concern: WriteAck(true) means "acknowledged".
type Bus interface {
	ReadData() codec.RawWord
	WriteAck(asserted bool)
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock.
var SystemClock Clock = systemClock{}

// Policy selects what happens to a word when the ring is full.
type Policy uint8

const (
	// DropOnFull completes every handshake and counts words that did not fit.
	DropOnFull Policy = iota
	// StallOnFull refuses to start a cycle while the ring is full, leaving the
	// sender holding DATA valid.
	StallOnFull
)

func (p Policy) String() string {
	switch p {
	case DropOnFull:
		return "drop_on_full"
	case StallOnFull:
		return "stall_on_full"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

func ParsePolicy(raw string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "drop", "drop_on_full", "drop-on-full":
		return DropOnFull, nil
	case "stall", "stall_on_full", "stall-on-full":
		return StallOnFull, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrPolicy, raw)
	}
}

type Status uint8

const (
	StatusOK Status = iota
	StatusNoSpace
	StatusTimeoutWaitValid
	StatusTimeoutWaitNeutral
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoSpace:
		return "no_space"
	case StatusTimeoutWaitValid:
		return "timeout_wait_valid"
	case StatusTimeoutWaitNeutral:
		return "timeout_wait_neutral"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

type Config struct {
	// WaitValidTimeout 0 waits forever; idle is not an error.
	WaitValidTimeout time.Duration
	// WaitNeutralTimeout 0 disables the neutral deadline.
	WaitNeutralTimeout time.Duration
	Policy             Policy
	Clock              Clock
	// Spin runs once per unsuccessful poll. Defaults to runtime.Gosched.
	Spin func()
}

func DefaultConfig() Config {
	return Config{
		WaitValidTimeout:   0,
		WaitNeutralTimeout: 0,
		Policy:             DropOnFull,
		Clock:              SystemClock,
		Spin:               runtime.Gosched,
	}
}

type Stats struct {
	WordsOK         uint64 `json:"words_ok"`
	DroppedFull     uint64 `json:"dropped_full"`
	NoSpace         uint64 `json:"no_space"`
	TimeoutsValid   uint64 `json:"timeouts_valid"`
	TimeoutsNeutral uint64 `json:"timeouts_neutral"`
}

// Receiver runs the receiving half of the 4-phase handshake and pushes latched
// words into a ring. Step and Service belong to the producer goroutine; Stats
// may be read from anywhere.
type Receiver struct {
	bus  Bus
	ring *ringbuf.Ring
	cfg  Config

	wordsOK         atomic.Uint64
	droppedFull     atomic.Uint64
	noSpace         atomic.Uint64
	timeoutsValid   atomic.Uint64
	timeoutsNeutral atomic.Uint64
}

// New deasserts ACK before returning.
func New(bus Bus, ring *ringbuf.Ring, cfg Config) (*Receiver, error) {
	if bus == nil {
		return nil, ErrNilBus
	}
	if ring == nil {
		return nil, ErrNilRing
	}
	if cfg.WaitValidTimeout < 0 || cfg.WaitNeutralTimeout < 0 {
		return nil, ErrNegTimeout
	}
	if cfg.Policy != DropOnFull && cfg.Policy != StallOnFull {
		return nil, fmt.Errorf("%w: %d", ErrPolicy, cfg.Policy)
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.Spin == nil {
		cfg.Spin = runtime.Gosched
	}
	r := &Receiver{bus: bus, ring: ring, cfg: cfg}
	bus.WriteAck(false)
	return r, nil
}

func (r *Receiver) Config() Config { return r.cfg }

func (r *Receiver) Stats() Stats {
	return Stats{
		WordsOK:         r.wordsOK.Load(),
		DroppedFull:     r.droppedFull.Load(),
		NoSpace:         r.noSpace.Load(),
		TimeoutsValid:   r.timeoutsValid.Load(),
		TimeoutsNeutral: r.timeoutsNeutral.Load(),
	}
}

// Reset zeroes counters and forces ACK deasserted. Producer goroutine only.
func (r *Receiver) Reset() {
	r.wordsOK.Store(0)
	r.droppedFull.Store(0)
	r.noSpace.Store(0)
	r.timeoutsValid.Store(0)
	r.timeoutsNeutral.Store(0)
	r.bus.WriteAck(false)
}

// Step attempts exactly one handshake. It busy-waits up to the configured
// timeouts and never aborts once a word is latched.
func (r *Receiver) Step() Status {
	return r.step(r.cfg.WaitValidTimeout, false)
}

// TryStep runs one handshake only if the sender is presenting a word. DATA that
// is neutral, or that is withdrawn and stays neutral for grace, returns
// StatusTimeoutWaitValid without counting a timeout. The bus is not written
// while idle.
func (r *Receiver) TryStep(grace time.Duration) Status {
	if r.bus.ReadData() == 0 {
		return StatusTimeoutWaitValid
	}
	return r.step(grace, true)
}

// step runs one cycle. A bounded cycle gives up the valid wait after
// validWait even when validWait is 0.
func (r *Receiver) step(validWait time.Duration, bounded bool) Status {
	if r.cfg.Policy == StallOnFull && r.ring.IsFull() {
		r.noSpace.Add(1)
		return StatusNoSpace
	}

	r.bus.WriteAck(false)

	limited := bounded || validWait > 0
	var deadline time.Time
	if limited {
		deadline = r.cfg.Clock.Now().Add(validWait)
	}
	var word codec.RawWord
	for {
		word = r.bus.ReadData()
		if word != 0 {
			break
		}
		if limited && !r.cfg.Clock.Now().Before(deadline) {
			if !bounded {
				r.timeoutsValid.Add(1)
			}
			return StatusTimeoutWaitValid
		}
		r.cfg.Spin()
	}

	r.bus.WriteAck(true)

	if !r.ring.Push(word) {
		r.droppedFull.Add(1)
	}

	if r.cfg.WaitNeutralTimeout > 0 {
		deadline = r.cfg.Clock.Now().Add(r.cfg.WaitNeutralTimeout)
	}
	for r.bus.ReadData() != 0 {
		if r.cfg.WaitNeutralTimeout > 0 && !r.cfg.Clock.Now().Before(deadline) {
			r.timeoutsNeutral.Add(1)
			r.bus.WriteAck(false)
			return StatusTimeoutWaitNeutral
		}
		r.cfg.Spin()
	}

	r.bus.WriteAck(false)
	r.wordsOK.Add(1)
	return StatusOK
}

// Service runs up to maxWords cycles, stopping at the first non-OK status or
// once budget has elapsed (0 means no budget). It returns the number of OK
// cycles and the status that ended the batch (StatusOK if none failed).
func (r *Receiver) Service(maxWords int, budget time.Duration) (int, Status) {
	var deadline time.Time
	if budget > 0 {
		deadline = r.cfg.Clock.Now().Add(budget)
	}
	ok := 0
	for i := 0; i < maxWords; i++ {
		if budget > 0 && !r.cfg.Clock.Now().Before(deadline) {
			break
		}
		st := r.Step()
		if st != StatusOK {
			return ok, st
		}
		ok++
	}
	return ok, StatusOK
}
