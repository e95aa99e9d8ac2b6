package sink

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/danmuck/aerctl/internal/geometry"
	"github.com/danmuck/aerctl/internal/protocol/frame"
	"github.com/danmuck/aerctl/internal/protocol/record"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TickHz is the resolution of record ticks: microseconds since stream start.
const TickHz = 1_000_000

var ErrNilWriter = errors.New("sink: frame writer is required")

type StreamConfig struct {
	Geometry   geometry.Geometry
	Timestamps bool
	Enabled    bool
	// Now defaults to time.Now.
	Now func() time.Time
}

type StreamStats struct {
	EventsEmitted uint64 `json:"events_emitted"`
	SentOK        uint64 `json:"sent_ok"`
	SendFailed    uint64 `json:"send_failed"`
	HelloSent     uint64 `json:"hello_sent"`
}

// Stream forwards events as one record per event packet. Event is called from
// the consumer goroutine only; the counters and enable switch are safe from any goroutine.
type Stream struct {
	w       *frame.Writer
	rec     record.Type
	geo     geometry.Geometry
	now     func() time.Time
	start   time.Time
	session uuid.UUID
	log     zerolog.Logger
	buf     []byte
	// failing is set while writes error; consumer goroutine only.
	failing bool

	enabled atomic.Bool

	emitted   atomic.Uint64
	sentOK    atomic.Uint64
	failed    atomic.Uint64
	helloSent atomic.Uint64
}

func NewStream(w *frame.Writer, cfg StreamConfig, logger zerolog.Logger) (*Stream, error) {
	if w == nil {
		return nil, ErrNilWriter
	}
	if err := cfg.Geometry.Validate(); err != nil {
		return nil, err
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	s := &Stream{
		w:       w,
		rec:     record.Select(cfg.Geometry.Rows, cfg.Geometry.Cols, cfg.Timestamps),
		geo:     cfg.Geometry,
		now:     now,
		start:   now(),
		session: uuid.New(),
		buf:     make([]byte, 0, 16),
	}
	s.log = logger.With().Str("component", "stream").Str("session", s.session.String()).Logger()
	s.enabled.Store(cfg.Enabled)
	return s, nil
}

func (s *Stream) SessionID() string { return s.session.String() }

func (s *Stream) RecordType() record.Type { return s.rec }

func (s *Stream) SetEnabled(v bool) {
	if s.enabled.Swap(v) != v {
		s.log.Info().Bool("enabled", v).Msg("stream forwarding toggled")
	}
}

func (s *Stream) Enabled() bool { return s.enabled.Load() }

func (s *Stream) Hello() record.Hello {
	hz := uint32(0)
	if s.rec.HasTicks() {
		hz = TickHz
	}
	return record.Hello{
		DataWidth: s.geo.DataWidth(),
		Rows:      s.geo.Rows,
		Cols:      s.geo.Cols,
		Record:    s.rec,
		SessionID: s.session.String(),
		TickHz:    hz,
	}
}

// SendHello writes the stream descriptor so readers learn the record layout.
func (s *Stream) SendHello() error {
	if err := s.w.WritePacket(frame.TypeMarker, s.Hello().Encode()); err != nil {
		return err
	}
	s.helloSent.Add(1)
	s.log.Debug().Str("record", s.rec.String()).Msg("hello sent")
	return nil
}

// SendMarker writes a free-text marker packet.
func (s *Stream) SendMarker(text string) error {
	return s.w.WritePacket(frame.TypeMarker, []byte(text))
}

// Event implements burst.Sink. The timestamp is taken at emission.
func (s *Stream) Event(row, col uint16) {
	s.emitted.Add(1)
	if !s.enabled.Load() {
		s.failed.Add(1)
		return
	}
	ev := record.Event{Type: s.rec, Flags: record.FlagOn, Row: row, Col: col}
	if s.rec.HasTicks() {
		ev.Ticks = uint32(s.now().Sub(s.start) / time.Microsecond)
	}
	var err error
	s.buf, err = record.AppendEvent(s.buf[:0], ev)
	if err == nil {
		err = s.w.WritePacket(frame.TypeEvent, s.buf)
	}
	if err != nil {
		s.failed.Add(1)
		if !s.failing {
			s.failing = true
			s.log.Warn().Err(err).Msg("event send failed")
		}
		return
	}
	if s.failing {
		s.failing = false
		s.log.Info().Msg("event send recovered")
	}
	s.sentOK.Add(1)
}

func (s *Stream) Stats() StreamStats {
	return StreamStats{
		EventsEmitted: s.emitted.Load(),
		SentOK:        s.sentOK.Load(),
		SendFailed:    s.failed.Load(),
		HelloSent:     s.helloSent.Load(),
	}
}

func (s *Stream) ResetStats() {
	s.emitted.Store(0)
	s.sentOK.Store(0)
	s.failed.Store(0)
	s.helloSent.Store(0)
}
