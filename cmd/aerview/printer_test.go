package main

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/danmuck/aerctl/internal/protocol/frame"
	"github.com/danmuck/aerctl/internal/protocol/record"
	"github.com/danmuck/aerctl/internal/testutil/testlog"
)

func streamFixture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w := frame.NewWriter(&buf, frame.DefaultLimits())
	hello := record.Hello{DataWidth: 12, Rows: 32, Cols: 32, Record: record.TypeV1Ticks, SessionID: "s1", TickHz: 1000000}
	must := func(err error) {
		if err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	must(w.WritePacket(frame.TypeMarker, hello.Encode()))
	must(w.WritePacket(frame.TypeLog, []byte("capture started")))
	var payload []byte
	var err error
	for _, ev := range []record.Event{
		{Type: record.TypeV1Ticks, Row: 5, Col: 3, Flags: record.FlagOn, Ticks: 42},
		{Type: record.TypeV1Ticks, Row: 9, Col: 1, Flags: 0, Ticks: 43},
	} {
		if payload, err = record.AppendEvent(payload, ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	must(w.WritePacket(frame.TypeEvent, payload))
	must(w.WritePacket(frame.TypeRaw, []byte{0xde, 0xad}))
	must(w.WritePacket(frame.TypeEvent, []byte{0x7f, 0x00}))
	buf.WriteString("AERS")
	return &buf
}

func TestPrinterEventsOnly(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	p := printer{out: &out}
	if err := p.Run(frame.NewReader(streamFixture(t), frame.DefaultLimits())); !errors.Is(err, io.EOF) {
		t.Fatalf("err=%v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	want := []string{
		"[hello] 32x32 data_width=12 record=" + record.TypeV1Ticks.String() + " tick_hz=1000000 session=s1",
		"ON  row=05 col=03",
	}
	if len(lines) != 3 || lines[0] != want[0] || lines[1] != want[1] || !strings.HasPrefix(lines[2], "[warn] ") {
		t.Fatalf("output=%q", out.String())
	}
}

func TestPrinterNonEventsAndTicks(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	p := printer{out: &out, showNonEvents: true, showTicks: true}
	_ = p.Run(frame.NewReader(streamFixture(t), frame.DefaultLimits()))
	got := out.String()
	for _, want := range []string{
		"[type=1 ver=1] capture started\n",
		"ON  row=05 col=03  ticks=42\n",
		"[type=3 ver=1] dead\n",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}
	if strings.Contains(got, "row=09") {
		t.Fatalf("off event printed: %q", got)
	}
}
