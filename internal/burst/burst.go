package burst

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/danmuck/aerctl/internal/codec"
	"github.com/danmuck/aerctl/internal/geometry"
)

// State is the assembler protocol position.
type State uint8

const (
	ExpectRow State = iota
	ExpectColOrTail
)

func (s State) String() string {
	switch s {
	case ExpectRow:
		return "expect_row"
	case ExpectColOrTail:
		return "expect_col_or_tail"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Flags accumulates protocol errors and warnings until Reset.
type Flags uint32

const (
	FlagTailWithoutRow Flags = 1 << 0

	FlagRowOutOfRange Flags = 1 << 8
	FlagColOutOfRange Flags = 1 << 9
	FlagColOverflow   Flags = 1 << 10
)

func (f Flags) Has(mask Flags) bool { return f&mask != 0 }

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	names := []struct {
		flag Flags
		name string
	}{
		{FlagTailWithoutRow, "tail_without_row"},
		{FlagRowOutOfRange, "row_out_of_range"},
		{FlagColOutOfRange, "col_out_of_range"},
		{FlagColOverflow, "col_overflow"},
	}
	parts := make([]string, 0, 2)
	for _, n := range names {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Event is one (row, col) pixel address.
type Event struct {
	Row uint16 `json:"row"`
	Col uint16 `json:"col"`
}

// Sink receives events synchronously from the goroutine driving the assembler,
// in column arrival order for a fixed row. It must not call back into the assembler.
type Sink interface {
	Event(row, col uint16)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(row, col uint16)

func (f SinkFunc) Event(row, col uint16) { f(row, col) }

// Stats is a point-in-time copy of the assembler counters.
type Stats struct {
	BurstsCompleted uint64 `json:"bursts_completed"`
	EventsEmitted   uint64 `json:"events_emitted"`
	Flags           Flags  `json:"flags"`
}

// Assembler groups ROW, COL*, TAIL words into bursts and emits one event per column.
//
// It is not reentrant: exactly one goroutine may call Feed and Reset. Counters and
// flags are stored atomically so Stats may be read from any goroutine.
type Assembler struct {
	geo   geometry.Geometry
	state State
	row   uint16
	cols  []uint16
	n     int

	flags           atomic.Uint32
	burstsCompleted atomic.Uint64
	eventsEmitted   atomic.Uint64
}

func New(geo geometry.Geometry) (*Assembler, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	return &Assembler{
		geo:  geo,
		cols: make([]uint16, geo.Cols),
	}, nil
}

func (a *Assembler) State() State { return a.state }

func (a *Assembler) Flags() Flags { return Flags(a.flags.Load()) }

// Buffered is the number of columns held for the open burst.
func (a *Assembler) Buffered() int { return a.n }

func (a *Assembler) Stats() Stats {
	return Stats{
		BurstsCompleted: a.burstsCompleted.Load(),
		EventsEmitted:   a.eventsEmitted.Load(),
		Flags:           a.Flags(),
	}
}

// Reset returns to ExpectRow, drops the open burst and clears flags.
// Counters survive unless clearCounters is set.
func (a *Assembler) Reset(clearCounters bool) {
	a.state = ExpectRow
	a.row = 0
	a.n = 0
	a.flags.Store(0)
	if clearCounters {
		a.burstsCompleted.Store(0)
		a.eventsEmitted.Store(0)
	}
}

// Feed consumes one decoded word and returns the number of events emitted.
// Invalid words are ignored without touching state.
func (a *Assembler) Feed(d codec.Decoded, sink Sink) int {
	if !d.OK {
		return 0
	}

	if d.IsTail {
		if a.state == ExpectRow {
			a.raise(FlagTailWithoutRow)
			return 0
		}
		emitted := a.emit(sink)
		a.burstsCompleted.Add(1)
		a.state = ExpectRow
		return emitted
	}

	idx := d.Payload & a.geo.IndexMask()

	if a.state == ExpectRow {
		a.row = idx
		if idx >= a.geo.Rows {
			a.raise(FlagRowOutOfRange)
		}
		a.n = 0
		a.state = ExpectColOrTail
		return 0
	}

	if a.n >= len(a.cols) {
		a.raise(FlagColOverflow)
		return 0
	}
	a.cols[a.n] = idx
	a.n++
	if idx >= a.geo.Cols {
		a.raise(FlagColOutOfRange)
	}
	return 0
}

func (a *Assembler) emit(sink Sink) int {
	n := a.n
	if sink != nil {
		for i := 0; i < n; i++ {
			sink.Event(a.row, a.cols[i])
		}
	}
	a.eventsEmitted.Add(uint64(n))
	a.n = 0
	return n
}

func (a *Assembler) raise(f Flags) { a.flags.Or(uint32(f)) }
