package bus

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/danmuck/aerctl/internal/codec"
	"github.com/rs/zerolog"
)

var ErrSimQueueFull = errors.New("bus: sim queue full")

type SimConfig struct {
	Pins PinConfig
	// PhaseTimeout bounds each wait for ACK. 0 waits forever.
	PhaseTimeout time.Duration
	QueueDepth   int
	Spin         func()
}

func DefaultSimConfig() SimConfig {
	return SimConfig{
		Pins:         DefaultPinConfig(),
		PhaseTimeout: 50 * time.Millisecond,
		QueueDepth:   64,
		Spin:         runtime.Gosched,
	}
}

type SimStats struct {
	WordsSent   uint64 `json:"words_sent"`
	FramesSent  uint64 `json:"frames_sent"`
	AckTimeouts uint64 `json:"ack_timeouts"`
}

// Sim is an in-process sensor transmitter. It is a Lines implementation: the
// receiver side reads DATA and drives ACK through Pins while Run plays the
// sender half of the handshake on its own goroutine.
type Sim struct {
	cfg  SimConfig
	mask uint32
	log  zerolog.Logger

	data     atomic.Uint32
	ackLevel atomic.Bool

	frames  chan []codec.RawWord
	pending atomic.Int64

	wordsSent   atomic.Uint64
	framesSent  atomic.Uint64
	ackTimeouts atomic.Uint64
}

func NewSim(cfg SimConfig, logger zerolog.Logger) (*Sim, error) {
	if err := cfg.Pins.Validate(); err != nil {
		return nil, err
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 1
	}
	if cfg.Spin == nil {
		cfg.Spin = runtime.Gosched
	}
	s := &Sim{
		cfg:    cfg,
		mask:   uint32((uint64(1) << cfg.Pins.DataWidth) - 1),
		log:    logger.With().Str("component", "bus_sim").Logger(),
		frames: make(chan []codec.RawWord, cfg.QueueDepth),
	}
	s.ackLevel.Store(cfg.Pins.AckLevel(false))
	return s, nil
}

func (s *Sim) ReadAll() uint64 {
	v := uint64(s.data.Load()) << s.cfg.Pins.DataShift
	if s.ackLevel.Load() {
		v |= uint64(1) << s.cfg.Pins.AckPin
	}
	return v
}

func (s *Sim) WriteAckLevel(high bool) { s.ackLevel.Store(high) }

// Send queues one frame of words. It does not wait for the handshake.
func (s *Sim) Send(ctx context.Context, words []codec.RawWord) error {
	frame := append([]codec.RawWord(nil), words...)
	s.pending.Add(int64(len(frame)))
	select {
	case s.frames <- frame:
		return nil
	case <-ctx.Done():
		s.pending.Add(-int64(len(frame)))
		return ctx.Err()
	}
}

// TrySend is Send without blocking.
func (s *Sim) TrySend(words []codec.RawWord) error {
	frame := append([]codec.RawWord(nil), words...)
	s.pending.Add(int64(len(frame)))
	select {
	case s.frames <- frame:
		return nil
	default:
		s.pending.Add(-int64(len(frame)))
		return ErrSimQueueFull
	}
}

// Pending is the number of queued words not yet fully handshaken.
func (s *Sim) Pending() int { return int(s.pending.Load()) }

func (s *Sim) Stats() SimStats {
	return SimStats{
		WordsSent:   s.wordsSent.Load(),
		FramesSent:  s.framesSent.Load(),
		AckTimeouts: s.ackTimeouts.Load(),
	}
}

// Run drives queued frames onto the bus until ctx is cancelled.
func (s *Sim) Run(ctx context.Context) error {
	defer s.data.Store(0)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame := <-s.frames:
			for i, w := range frame {
				if err := s.sendWord(ctx, w); err != nil {
					s.pending.Add(-int64(len(frame) - i))
					return err
				}
			}
			s.framesSent.Add(1)
		}
	}
}

func (s *Sim) sendWord(ctx context.Context, w codec.RawWord) error {
	defer s.pending.Add(-1)

	s.data.Store(w & s.mask)
	ok, err := s.waitAck(ctx, true)
	if err != nil {
		return err
	}
	s.data.Store(0)
	if !ok {
		s.ackTimeouts.Add(1)
		s.log.Warn().Uint32("word", w).Msg("ack rise timeout; word withdrawn")
		return nil
	}

	ok, err = s.waitAck(ctx, false)
	if err != nil {
		return err
	}
	if !ok {
		s.ackTimeouts.Add(1)
		s.log.Warn().Uint32("word", w).Msg("ack release timeout")
		return nil
	}
	s.wordsSent.Add(1)
	return nil
}

func (s *Sim) ackAsserted() bool {
	return s.ackLevel.Load() == s.cfg.Pins.AckActiveHigh
}

func (s *Sim) waitAck(ctx context.Context, asserted bool) (bool, error) {
	var deadline time.Time
	if s.cfg.PhaseTimeout > 0 {
		deadline = time.Now().Add(s.cfg.PhaseTimeout)
	}
	for polls := 0; ; polls++ {
		if s.ackAsserted() == asserted {
			return true, nil
		}
		if polls&0xFF == 0 {
			if err := ctx.Err(); err != nil {
				return false, err
			}
			if s.cfg.PhaseTimeout > 0 && !time.Now().Before(deadline) {
				return false, nil
			}
		}
		s.cfg.Spin()
	}
}
