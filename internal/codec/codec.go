package codec

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"

	"github.com/danmuck/aerctl/internal/geometry"
)

// RawWord is one sample of the DATA lines, packed into the low DataWidth bits.
type RawWord = uint32

// Payload is the value carried by a valid word: a row, a column, or the tail sentinel.
type Payload = uint16

var ErrPayloadRange = errors.New("codec: payload exceeds payload bits")

// Flags is the decode error/warning bitmask. Several flags may be set at once.
type Flags uint32

const (
	// Hard errors: Decoded.OK is false.
	FlagNeutral    Flags = 1 << 0
	FlagOutOfRange Flags = 1 << 1
	FlagMultiHot   Flags = 1 << 2
	FlagZeroHot    Flags = 1 << 3

	// Soft warning: OK is unaffected.
	FlagPadBitSet Flags = 1 << 4
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagNeutral, "neutral"},
	{FlagOutOfRange, "out_of_range"},
	{FlagMultiHot, "multi_hot"},
	{FlagZeroHot, "zero_hot"},
	{FlagPadBitSet, "pad_bit_set"},
}

// AllFlags lists every decode flag in bit order.
func AllFlags() []Flags {
	out := make([]Flags, 0, len(flagNames))
	for _, f := range flagNames {
		out = append(out, f.flag)
	}
	return out
}

func (f Flags) Has(mask Flags) bool { return f&mask != 0 }

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	parts := make([]string, 0, 2)
	for _, n := range flagNames {
		if f&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if rest := f &^ (FlagNeutral | FlagOutOfRange | FlagMultiHot | FlagZeroHot | FlagPadBitSet); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%X", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// Decoded is the result of validating one RawWord.
// Payload is only meaningful when OK is true.
type Decoded struct {
	OK      bool
	Payload Payload
	IsTail  bool
	Flags   Flags
}

// Codec translates between bus words and payloads for one fixed geometry.
// It holds no mutable state and is safe to share between goroutines.
type Codec struct {
	geo geometry.Geometry
}

func New(geo geometry.Geometry) (Codec, error) {
	if err := geo.Validate(); err != nil {
		return Codec{}, err
	}
	return Codec{geo: geo}, nil
}

// MustNew is New for geometries known to be valid (defaults, tests).
func MustNew(geo geometry.Geometry) Codec {
	c, err := New(geo)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Codec) Geometry() geometry.Geometry { return c.geo }

// Decode validates raw as a 1-of-N word and extracts its payload.
//
// Every group is inspected even after an invalid one so that MultiHot and
// ZeroHot can be reported together for the same word.
func (c Codec) Decode(raw RawWord) Decoded {
	var d Decoded

	mask := c.geo.RawMask()
	if raw&^mask != 0 {
		d.Flags |= FlagOutOfRange
	}
	masked := raw & mask
	if masked == 0 {
		d.Flags |= FlagNeutral
		return d
	}

	var payload uint32
	valid := true
	groupMask := c.geo.GroupMask()
	for g := uint8(0); g < c.geo.NumGroups(); g++ {
		nib := (masked >> (uint32(g) * uint32(c.geo.GroupWidth))) & groupMask
		switch bits.OnesCount32(nib) {
		case 0:
			d.Flags |= FlagZeroHot
			valid = false
		case 1:
			sym := uint32(bits.TrailingZeros32(nib)) & c.geo.SymbolMask()
			payload |= sym << (uint32(g) * uint32(c.geo.SymbolBits))
		default:
			d.Flags |= FlagMultiHot
			valid = false
		}
	}

	d.Payload = Payload(payload) & c.geo.MaxPayload()
	if !valid {
		return d
	}

	d.OK = true
	if d.Payload == c.geo.TailPayload() {
		d.IsTail = true
	} else if d.Payload&c.geo.PadMask() != 0 {
		d.Flags |= FlagPadBitSet
	}
	return d
}

// Encode builds the bus word that carries payload. It is the inverse of Decode
// over [0, MaxPayload]; payloads outside that range yield 0 and ErrPayloadRange.
func (c Codec) Encode(payload Payload) (RawWord, error) {
	if payload > c.geo.MaxPayload() {
		return 0, fmt.Errorf("%w: payload=0x%X max=0x%X", ErrPayloadRange, payload, c.geo.MaxPayload())
	}
	var raw uint32
	for g := uint8(0); g < c.geo.NumGroups(); g++ {
		sym := (uint32(payload) >> (uint32(g) * uint32(c.geo.SymbolBits))) & c.geo.SymbolMask()
		oneHot := (uint32(1) << sym) & c.geo.GroupMask()
		raw |= oneHot << (uint32(g) * uint32(c.geo.GroupWidth))
	}
	return raw & c.geo.RawMask(), nil
}

// EncodeTail is Encode(TailPayload).
func (c Codec) EncodeTail() RawWord {
	raw, _ := c.Encode(c.geo.TailPayload())
	return raw
}

// Index strips pad bits from a payload.
func (c Codec) Index(p Payload) uint16 { return p & c.geo.IndexMask() }
