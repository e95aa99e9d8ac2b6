package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/aerctl/internal/protocol/frame"
	"github.com/danmuck/aerctl/internal/protocol/record"
)

type printer struct {
	out           io.Writer
	showNonEvents bool
	showTicks     bool
}

type packetSource interface {
	Next() (frame.Packet, error)
}

// Run prints packets until the source ends. Truncated trailing data is not
// an error.
func (p printer) Run(src packetSource) error {
	for {
		pkt, err := src.Next()
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return io.EOF
			}
			return err
		}
		p.print(pkt)
	}
}

func (p printer) print(pkt frame.Packet) {
	h := pkt.Header
	switch h.Type {
	case frame.TypeEvent:
		evs, err := record.DecodeEvents(pkt.Payload)
		for _, ev := range evs {
			if !ev.On() {
				continue
			}
			if p.showTicks && ev.Type.HasTicks() {
				fmt.Fprintf(p.out, "ON  row=%02d col=%02d  ticks=%d\n", ev.Row, ev.Col, ev.Ticks)
			} else {
				fmt.Fprintf(p.out, "ON  row=%02d col=%02d\n", ev.Row, ev.Col)
			}
		}
		if err != nil {
			fmt.Fprintf(p.out, "[warn] %v; payload_len=%d\n", err, len(pkt.Payload))
		}
	case frame.TypeMarker:
		if hello, err := record.DecodeHello(pkt.Payload); err == nil {
			fmt.Fprintf(p.out, "[hello] %dx%d data_width=%d record=%s tick_hz=%d session=%s\n",
				hello.Rows, hello.Cols, hello.DataWidth, hello.Record, hello.TickHz, hello.SessionID)
			return
		}
		if p.showNonEvents {
			fmt.Fprintf(p.out, "[type=%d ver=%d] %s\n", h.Type, h.Version, pkt.Payload)
		}
	case frame.TypeLog:
		if p.showNonEvents {
			fmt.Fprintf(p.out, "[type=%d ver=%d] %s\n", h.Type, h.Version, pkt.Payload)
		}
	default:
		if p.showNonEvents {
			fmt.Fprintf(p.out, "[type=%d ver=%d] %x\n", h.Type, h.Version, pkt.Payload)
		}
	}
}
