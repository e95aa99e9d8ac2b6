package waveform

import "github.com/danmuck/aerctl/internal/codec"

// Fault may rewrite a sample before the receiver sees it. A non-nil error
// aborts the replay.
type Fault interface {
	Apply(t uint64, data *codec.RawWord, ack *bool) error
}

type FaultFunc func(t uint64, data *codec.RawWord, ack *bool) error

func (f FaultFunc) Apply(t uint64, data *codec.RawWord, ack *bool) error { return f(t, data, ack) }

// Glitch XORs DATA inside the inclusive window [Start, End]. ACK is untouched.
type Glitch struct {
	Start   uint64
	End     uint64
	XorMask codec.RawWord
}

func (g Glitch) Apply(t uint64, data *codec.RawWord, _ *bool) error {
	if t >= g.Start && t <= g.End {
		*data ^= g.XorMask
	}
	return nil
}

// StuckAck forces ACK to Level from Start onward.
type StuckAck struct {
	Start uint64
	Level bool
}

func (s StuckAck) Apply(t uint64, _ *codec.RawWord, ack *bool) error {
	if t >= s.Start {
		*ack = s.Level
	}
	return nil
}

// DropNeutral replaces neutral DATA with the last nonzero word, removing the
// spacer between words. State is per instance.
type DropNeutral struct {
	lastNonzero codec.RawWord
}

func (d *DropNeutral) Apply(_ uint64, data *codec.RawWord, _ *bool) error {
	if *data != 0 {
		d.lastNonzero = *data
		return nil
	}
	if d.lastNonzero != 0 {
		*data = d.lastNonzero
	}
	return nil
}

// Chain applies faults in order and stops at the first error.
type Chain []Fault

func (c Chain) Apply(t uint64, data *codec.RawWord, ack *bool) error {
	for _, f := range c {
		if f == nil {
			continue
		}
		if err := f.Apply(t, data, ack); err != nil {
			return err
		}
	}
	return nil
}
