package burst

import (
	"errors"
	"fmt"

	"github.com/danmuck/aerctl/internal/codec"
)

var ErrIndexRange = errors.New("burst: index outside sensor geometry")

// Encode renders one burst as the sender would drive it: ROW, each COL, TAIL.
func Encode(c codec.Codec, row uint16, cols []uint16) ([]codec.RawWord, error) {
	geo := c.Geometry()
	if row >= geo.Rows {
		return nil, fmt.Errorf("%w: row=%d rows=%d", ErrIndexRange, row, geo.Rows)
	}
	out := make([]codec.RawWord, 0, len(cols)+2)
	w, err := c.Encode(row)
	if err != nil {
		return nil, err
	}
	out = append(out, w)
	for _, col := range cols {
		if col >= geo.Cols {
			return nil, fmt.Errorf("%w: col=%d cols=%d", ErrIndexRange, col, geo.Cols)
		}
		w, err := c.Encode(col)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return append(out, c.EncodeTail()), nil
}

// EncodeFrame concatenates bursts for every row in events, in row order of first appearance.
func EncodeFrame(c codec.Codec, events []Event) ([]codec.RawWord, error) {
	order := make([]uint16, 0)
	byRow := make(map[uint16][]uint16)
	for _, ev := range events {
		if _, ok := byRow[ev.Row]; !ok {
			order = append(order, ev.Row)
		}
		byRow[ev.Row] = append(byRow[ev.Row], ev.Col)
	}
	var out []codec.RawWord
	for _, row := range order {
		words, err := Encode(c, row, byRow[row])
		if err != nil {
			return nil, err
		}
		out = append(out, words...)
	}
	return out, nil
}
