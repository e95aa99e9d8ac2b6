package bus

import (
	"errors"
	"fmt"

	"github.com/danmuck/aerctl/internal/codec"
)

var (
	ErrNilLines   = errors.New("bus: lines are required")
	ErrDataWidth  = errors.New("bus: data width must be 1..32")
	ErrPinOverlap = errors.New("bus: ack pin overlaps data lines")
)

// Lines is a raw pin bank: one snapshot of every input level and a driver for
// the ACK output level.
type Lines interface {
	ReadAll() uint64
	WriteAckLevel(high bool)
}

type PinConfig struct {
	DataShift     uint8 `toml:"data_shift" yaml:"data_shift"`
	DataWidth     uint8 `toml:"data_width" yaml:"data_width"`
	AckPin        uint8 `toml:"ack_pin" yaml:"ack_pin"`
	AckActiveHigh bool  `toml:"ack_active_high" yaml:"ack_active_high"`
}

// DefaultPinConfig is the 12-line board wiring: DATA on pins 2..13, ACK on 14, active-high.
func DefaultPinConfig() PinConfig {
	return PinConfig{DataShift: 2, DataWidth: 12, AckPin: 14, AckActiveHigh: true}
}

func (c PinConfig) Validate() error {
	if c.DataWidth == 0 || c.DataWidth > 32 {
		return fmt.Errorf("%w: got %d", ErrDataWidth, c.DataWidth)
	}
	if uint32(c.DataShift)+uint32(c.DataWidth) > 64 {
		return fmt.Errorf("%w: shift=%d width=%d", ErrDataWidth, c.DataShift, c.DataWidth)
	}
	if c.AckPin >= 64 {
		return fmt.Errorf("%w: ack pin %d", ErrPinOverlap, c.AckPin)
	}
	if c.AckPin >= c.DataShift && c.AckPin < c.DataShift+c.DataWidth {
		return fmt.Errorf("%w: ack=%d data=%d..%d", ErrPinOverlap, c.AckPin, c.DataShift, c.DataShift+c.DataWidth-1)
	}
	return nil
}

// DataMask selects the DATA field inside a Lines snapshot.
func (c PinConfig) DataMask() uint64 {
	return ((uint64(1) << c.DataWidth) - 1) << c.DataShift
}

// AckLevel is the physical level that represents asserted.
func (c PinConfig) AckLevel(asserted bool) bool {
	if c.AckActiveHigh {
		return asserted
	}
	return !asserted
}

// Pins packs the DATA field into the low bits of a word and maps ACK
// assertion onto the configured polarity.
type Pins struct {
	lines Lines
	cfg   PinConfig
	mask  uint64
}

func NewPins(lines Lines, cfg PinConfig) (*Pins, error) {
	if lines == nil {
		return nil, ErrNilLines
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pins{lines: lines, cfg: cfg, mask: cfg.DataMask()}, nil
}

func (p *Pins) Config() PinConfig { return p.cfg }

func (p *Pins) ReadData() codec.RawWord {
	return codec.RawWord((p.lines.ReadAll() & p.mask) >> p.cfg.DataShift)
}

func (p *Pins) WriteAck(asserted bool) {
	p.lines.WriteAckLevel(p.cfg.AckLevel(asserted))
}

// AckAsserted reads back the ACK pin through the configured polarity.
func (p *Pins) AckAsserted() bool {
	level := p.lines.ReadAll()&(uint64(1)<<p.cfg.AckPin) != 0
	return level == p.cfg.AckActiveHigh
}
