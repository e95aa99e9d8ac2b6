package burst

import (
	"errors"
	"testing"

	"github.com/danmuck/aerctl/internal/codec"
	"github.com/danmuck/aerctl/internal/geometry"
	"github.com/danmuck/aerctl/internal/testutil/testlog"
)

func TestEncodeFeedsBackToSameEvents(t *testing.T) {
	testlog.Start(t)
	c := codec.MustNew(geometry.Default())
	events := []Event{{3, 1}, {3, 4}, {9, 0}, {3, 31}, {31, 31}}

	words, err := EncodeFrame(c, events)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	a, _ := New(c.Geometry())
	rec := &recorder{}
	for _, w := range words {
		a.Feed(c.Decode(w), rec)
	}

	want := []Event{{3, 1}, {3, 4}, {3, 31}, {9, 0}, {31, 31}}
	if len(rec.events) != len(want) {
		t.Fatalf("events=%+v", rec.events)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Fatalf("event[%d]=%+v want %+v", i, rec.events[i], want[i])
		}
	}
	if a.Stats().BurstsCompleted != 3 || a.Flags() != 0 {
		t.Fatalf("stats=%+v", a.Stats())
	}
}

func TestEncodeRejectsOutOfRange(t *testing.T) {
	testlog.Start(t)
	c := codec.MustNew(geometry.Default())
	if _, err := Encode(c, 32, nil); !errors.Is(err, ErrIndexRange) {
		t.Fatalf("row err=%v", err)
	}
	if _, err := Encode(c, 1, []uint16{40}); !errors.Is(err, ErrIndexRange) {
		t.Fatalf("col err=%v", err)
	}
	words, err := Encode(c, 0, nil)
	if err != nil || len(words) != 2 || words[1] != c.EncodeTail() {
		t.Fatalf("empty burst=%v,%v", words, err)
	}
}
