package main

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/danmuck/aerctl/internal/burst"
	"github.com/danmuck/aerctl/internal/bus"
	"github.com/danmuck/aerctl/internal/codec"
	"github.com/danmuck/aerctl/internal/geometry"
	"github.com/rs/zerolog"
)

// frameEvents is the synthetic sensor activity for frame k.
func frameEvents(pattern string, geo geometry.Geometry, k uint64, rng *rand.Rand) []burst.Event {
	rows, cols := uint64(geo.Rows), uint64(geo.Cols)
	switch pattern {
	case "diagonal":
		span := rows
		if cols < span {
			span = cols
		}
		i := uint16(k % span)
		return []burst.Event{{Row: i, Col: i}}
	case "random":
		n := 1 + rng.IntN(4)
		out := make([]burst.Event, n)
		for i := range out {
			out[i] = burst.Event{Row: uint16(rng.Uint64N(rows)), Col: uint16(rng.Uint64N(cols))}
		}
		return out
	default:
		row := uint16(k % rows)
		c := (k / rows) % cols
		return []burst.Event{
			{Row: row, Col: uint16(c)},
			{Row: row, Col: uint16((c + cols/2) % cols)},
		}
	}
}

// simSource feeds synthetic frames into the simulated transmitter until ctx
// is cancelled.
type simSource struct {
	sim      *bus.Sim
	codec    codec.Codec
	pattern  string
	interval time.Duration
	log      zerolog.Logger
}

func (s *simSource) Run(ctx context.Context) error {
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for k := uint64(0); ; k++ {
		words, err := burst.EncodeFrame(s.codec, frameEvents(s.pattern, s.codec.Geometry(), k, rng))
		if err != nil {
			return err
		}
		if err := s.sim.Send(ctx, words); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if tick == nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
		}
	}
}
