package burst

import (
	"testing"

	"github.com/danmuck/aerctl/internal/codec"
	"github.com/danmuck/aerctl/internal/geometry"
	"github.com/danmuck/aerctl/internal/testutil/testlog"
)

type recorder struct {
	events []Event
}

func (r *recorder) Event(row, col uint16) {
	r.events = append(r.events, Event{Row: row, Col: col})
}

func word(p codec.Payload) codec.Decoded {
	return codec.Decoded{OK: true, Payload: p}
}

func tail() codec.Decoded {
	return codec.Decoded{OK: true, Payload: geometry.Default().TailPayload(), IsTail: true}
}

func newAssembler(t *testing.T, geo geometry.Geometry) *Assembler {
	t.Helper()
	a, err := New(geo)
	if err != nil {
		t.Fatalf("new assembler: %v", err)
	}
	return a
}

func TestFeedRowColsTailEmitsInOrder(t *testing.T) {
	testlog.Start(t)
	a := newAssembler(t, geometry.Default())
	rec := &recorder{}

	for _, d := range []codec.Decoded{word(5), word(3), word(7)} {
		if n := a.Feed(d, rec); n != 0 {
			t.Fatalf("unexpected emit before tail: %d", n)
		}
	}
	if a.State() != ExpectColOrTail {
		t.Fatalf("state=%s", a.State())
	}
	if n := a.Feed(tail(), rec); n != 2 {
		t.Fatalf("tail emitted %d want 2", n)
	}

	want := []Event{{Row: 5, Col: 3}, {Row: 5, Col: 7}}
	if len(rec.events) != len(want) {
		t.Fatalf("events=%+v", rec.events)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Fatalf("event[%d]=%+v want %+v", i, rec.events[i], want[i])
		}
	}
	st := a.Stats()
	if st.BurstsCompleted != 1 || st.EventsEmitted != 2 {
		t.Fatalf("stats=%+v", st)
	}
	if a.State() != ExpectRow {
		t.Fatalf("state after tail=%s", a.State())
	}
	if a.Flags() != 0 {
		t.Fatalf("flags=%s", a.Flags())
	}
}

func TestTailWithoutRow(t *testing.T) {
	testlog.Start(t)
	a := newAssembler(t, geometry.Default())
	rec := &recorder{}
	if n := a.Feed(tail(), rec); n != 0 {
		t.Fatalf("emitted %d", n)
	}
	if !a.Flags().Has(FlagTailWithoutRow) {
		t.Fatalf("flags=%s", a.Flags())
	}
	if a.State() != ExpectRow {
		t.Fatalf("state=%s", a.State())
	}
	if a.Stats().BurstsCompleted != 0 {
		t.Fatalf("bursts=%d", a.Stats().BurstsCompleted)
	}
}

func TestInvalidWordsDoNotPerturbState(t *testing.T) {
	testlog.Start(t)
	a := newAssembler(t, geometry.Default())
	rec := &recorder{}
	invalid := codec.Decoded{OK: false, Payload: 11, Flags: codec.FlagMultiHot}

	a.Feed(word(2), rec)
	a.Feed(invalid, rec)
	a.Feed(word(9), rec)
	a.Feed(tail(), rec)

	if len(rec.events) != 1 || rec.events[0] != (Event{Row: 2, Col: 9}) {
		t.Fatalf("events=%+v", rec.events)
	}
}

func TestInvalidTailIgnored(t *testing.T) {
	testlog.Start(t)
	a := newAssembler(t, geometry.Default())
	a.Feed(codec.Decoded{OK: false, IsTail: true}, nil)
	if a.Flags() != 0 || a.State() != ExpectRow {
		t.Fatalf("invalid tail changed state: %s %s", a.State(), a.Flags())
	}
}

func TestColumnOverflowCapsEvents(t *testing.T) {
	testlog.Start(t)
	geo := geometry.Default()
	a := newAssembler(t, geo)
	rec := &recorder{}

	a.Feed(word(1), rec)
	for i := 0; i < int(geo.Cols)+5; i++ {
		a.Feed(word(codec.Payload(i%int(geo.Cols))), rec)
	}
	n := a.Feed(tail(), rec)
	if n != int(geo.Cols) || len(rec.events) != int(geo.Cols) {
		t.Fatalf("emitted=%d events=%d want %d", n, len(rec.events), geo.Cols)
	}
	if !a.Flags().Has(FlagColOverflow) {
		t.Fatalf("flags=%s", a.Flags())
	}
	for i, ev := range rec.events {
		if ev.Row != 1 || ev.Col != uint16(i) {
			t.Fatalf("event[%d]=%+v", i, ev)
		}
	}
}

func TestRangeWarningsOnSmallSensor(t *testing.T) {
	testlog.Start(t)
	geo := geometry.Geometry{Rows: 20, Cols: 24, IndexBits: 5, PadBits: 1, SymbolBits: 2, GroupWidth: 4}
	a := newAssembler(t, geo)
	rec := &recorder{}

	a.Feed(word(25), rec)
	if !a.Flags().Has(FlagRowOutOfRange) {
		t.Fatalf("flags=%s", a.Flags())
	}
	a.Feed(word(30), rec)
	if !a.Flags().Has(FlagColOutOfRange) {
		t.Fatalf("flags=%s", a.Flags())
	}
	a.Feed(tail(), rec)
	if len(rec.events) != 1 || rec.events[0] != (Event{Row: 25, Col: 30}) {
		t.Fatalf("warnings must not drop events: %+v", rec.events)
	}
}

func TestPadBitsMaskedFromIndex(t *testing.T) {
	testlog.Start(t)
	a := newAssembler(t, geometry.Default())
	rec := &recorder{}
	a.Feed(word(0x20|4), rec)
	a.Feed(word(0x20|6), rec)
	a.Feed(tail(), rec)
	if len(rec.events) != 1 || rec.events[0] != (Event{Row: 4, Col: 6}) {
		t.Fatalf("events=%+v", rec.events)
	}
}

func TestFlagsAreStickyAcrossBursts(t *testing.T) {
	testlog.Start(t)
	a := newAssembler(t, geometry.Default())
	a.Feed(tail(), nil)
	a.Feed(word(1), nil)
	a.Feed(word(2), nil)
	a.Feed(tail(), nil)
	if !a.Flags().Has(FlagTailWithoutRow) {
		t.Fatalf("flag cleared by a good burst: %s", a.Flags())
	}
}

func TestResetKeepsOrClearsCounters(t *testing.T) {
	testlog.Start(t)
	a := newAssembler(t, geometry.Default())
	a.Feed(tail(), nil)
	a.Feed(word(1), nil)
	a.Feed(word(2), nil)
	a.Feed(tail(), nil)
	a.Feed(word(3), nil)

	a.Reset(false)
	if a.State() != ExpectRow || a.Flags() != 0 || a.Buffered() != 0 {
		t.Fatalf("reset left state=%s flags=%s buffered=%d", a.State(), a.Flags(), a.Buffered())
	}
	if st := a.Stats(); st.BurstsCompleted != 1 || st.EventsEmitted != 1 {
		t.Fatalf("counters lost: %+v", st)
	}

	a.Reset(true)
	if st := a.Stats(); st.BurstsCompleted != 0 || st.EventsEmitted != 0 {
		t.Fatalf("counters kept: %+v", st)
	}
}

func TestNilSinkStillCounts(t *testing.T) {
	testlog.Start(t)
	a := newAssembler(t, geometry.Default())
	a.Feed(word(1), nil)
	a.Feed(word(2), nil)
	a.Feed(word(3), nil)
	if n := a.Feed(tail(), nil); n != 2 {
		t.Fatalf("emitted=%d", n)
	}
	if a.Stats().EventsEmitted != 2 {
		t.Fatalf("events=%d", a.Stats().EventsEmitted)
	}
}

func TestEmptyBurstCompletes(t *testing.T) {
	testlog.Start(t)
	a := newAssembler(t, geometry.Default())
	rec := &recorder{}
	a.Feed(word(7), rec)
	if n := a.Feed(tail(), rec); n != 0 {
		t.Fatalf("emitted=%d", n)
	}
	if a.Stats().BurstsCompleted != 1 {
		t.Fatalf("bursts=%d", a.Stats().BurstsCompleted)
	}
}

func TestSinkFuncAdapter(t *testing.T) {
	testlog.Start(t)
	a := newAssembler(t, geometry.Default())
	var got []Event
	sink := SinkFunc(func(row, col uint16) { got = append(got, Event{row, col}) })
	a.Feed(word(8), sink)
	a.Feed(word(9), sink)
	a.Feed(tail(), sink)
	if len(got) != 1 || got[0] != (Event{8, 9}) {
		t.Fatalf("got=%+v", got)
	}
}
