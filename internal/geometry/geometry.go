package geometry

import (
	"errors"
	"fmt"
	"math/bits"
)

var ErrInvalidGeometry = errors.New("geometry: invalid")

// Geometry is the fixed sensor and bus layout shared by every core component.
// All bit-widths are derived from these six values; nothing is renegotiated at runtime.
type Geometry struct {
	Rows       uint16
	Cols       uint16
	IndexBits  uint8
	PadBits    uint8
	SymbolBits uint8
	GroupWidth uint8
}

// Default is the 32x32 sensor: 5 index bits + 1 pad bit carried as three 1-of-4 groups.
func Default() Geometry {
	return Geometry{
		Rows:       32,
		Cols:       32,
		IndexBits:  5,
		PadBits:    1,
		SymbolBits: 2,
		GroupWidth: 4,
	}
}

// Derive sizes the index and pad fields for a rows x cols sensor using 1-of-4 groups.
func Derive(rows, cols uint16) (Geometry, error) {
	g := Geometry{Rows: rows, Cols: cols, SymbolBits: 2, GroupWidth: 4}
	if rows == 0 || cols == 0 {
		return Geometry{}, fmt.Errorf("%w: rows=%d cols=%d", ErrInvalidGeometry, rows, cols)
	}
	span := rows
	if cols > span {
		span = cols
	}
	g.IndexBits = uint8(bits.Len16(span - 1))
	if g.IndexBits == 0 {
		g.IndexBits = 1
	}
	for (g.IndexBits+g.PadBits)%g.SymbolBits != 0 || uint32(g.TailPayload()) < uint32(span) {
		g.PadBits++
	}
	if err := g.Validate(); err != nil {
		return Geometry{}, err
	}
	return g, nil
}

func (g Geometry) PayloadBits() uint8 { return g.IndexBits + g.PadBits }

func (g Geometry) NumGroups() uint8 {
	if g.SymbolBits == 0 {
		return 0
	}
	return g.PayloadBits() / g.SymbolBits
}

func (g Geometry) DataWidth() uint8 { return g.NumGroups() * g.GroupWidth }

// RawMask covers the DATA lines in the low bits of a sampled word.
func (g Geometry) RawMask() uint32 {
	if g.DataWidth() >= 32 {
		return 0xFFFFFFFF
	}
	return (uint32(1) << g.DataWidth()) - 1
}

// MaxPayload is the largest encodable payload; it doubles as the tail sentinel.
func (g Geometry) MaxPayload() uint16 {
	return uint16((uint32(1) << g.PayloadBits()) - 1)
}

func (g Geometry) TailPayload() uint16 { return g.MaxPayload() }

func (g Geometry) IndexMask() uint16 {
	return uint16((uint32(1) << g.IndexBits) - 1)
}

func (g Geometry) PadMask() uint16 { return g.MaxPayload() &^ g.IndexMask() }

func (g Geometry) SymbolMask() uint32 {
	return (uint32(1) << g.SymbolBits) - 1
}

func (g Geometry) GroupMask() uint32 {
	return (uint32(1) << g.GroupWidth) - 1
}

func (g Geometry) Validate() error {
	if g.Rows == 0 || g.Cols == 0 {
		return fmt.Errorf("%w: rows and cols must be > 0", ErrInvalidGeometry)
	}
	if g.IndexBits == 0 {
		return fmt.Errorf("%w: index_bits must be > 0", ErrInvalidGeometry)
	}
	if g.SymbolBits == 0 || g.SymbolBits > 4 {
		return fmt.Errorf("%w: symbol_bits=%d out of range 1..4", ErrInvalidGeometry, g.SymbolBits)
	}
	if uint32(g.GroupWidth) != uint32(1)<<g.SymbolBits {
		return fmt.Errorf("%w: group_width=%d must be 2^symbol_bits=%d",
			ErrInvalidGeometry, g.GroupWidth, uint32(1)<<g.SymbolBits)
	}
	if g.PayloadBits()%g.SymbolBits != 0 {
		return fmt.Errorf("%w: payload_bits=%d not a multiple of symbol_bits=%d",
			ErrInvalidGeometry, g.PayloadBits(), g.SymbolBits)
	}
	if g.PayloadBits() > 16 {
		return fmt.Errorf("%w: payload_bits=%d exceeds 16", ErrInvalidGeometry, g.PayloadBits())
	}
	if uint32(g.NumGroups())*uint32(g.GroupWidth) > 32 {
		return fmt.Errorf("%w: data_width=%d exceeds 32 lines",
			ErrInvalidGeometry, uint32(g.NumGroups())*uint32(g.GroupWidth))
	}
	limit := uint32(1) << g.IndexBits
	if uint32(g.Rows) > limit || uint32(g.Cols) > limit {
		return fmt.Errorf("%w: rows=%d cols=%d exceed index range %d",
			ErrInvalidGeometry, g.Rows, g.Cols, limit)
	}
	span := g.Rows
	if g.Cols > span {
		span = g.Cols
	}
	if uint32(g.TailPayload()) < uint32(span) {
		return fmt.Errorf("%w: tail sentinel 0x%X collides with index range", ErrInvalidGeometry, g.TailPayload())
	}
	return nil
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d index=%d pad=%d groups=%dx%d data_width=%d tail=0x%X",
		g.Rows, g.Cols, g.IndexBits, g.PadBits, g.NumGroups(), g.GroupWidth, g.DataWidth(), g.TailPayload())
}
