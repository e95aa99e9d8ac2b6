package statusblock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/aerctl/internal/observability"
	"github.com/rs/zerolog"
)

var ErrNilClient = errors.New("statusblock: nil register client")

// RegisterWriter writes holding registers starting at addr.
type RegisterWriter interface {
	WriteRegisters(addr uint16, regs []uint16) error
}

// Writer delivers snapshots into a block at BaseAddr. The first write and the
// first write after any failure re-assert the whole block; otherwise only the
// changed register span is written.
type Writer struct {
	cli      RegisterWriter
	base     uint16
	name     string
	needFull bool
	last     []uint16
}

func NewWriter(cli RegisterWriter, baseAddr uint16, deviceName string) (*Writer, error) {
	if cli == nil {
		return nil, ErrNilClient
	}
	return &Writer{cli: cli, base: baseAddr, name: deviceName, needFull: true}, nil
}

func (w *Writer) Write(s Snapshot) error {
	regs := Encode(s, w.name)
	if w.needFull {
		if err := w.cli.WriteRegisters(w.base, regs); err != nil {
			return fmt.Errorf("statusblock: full block write failed: %w", err)
		}
		w.needFull = false
		w.last = regs
		return nil
	}

	first, end := -1, -1
	for i := range regs {
		if regs[i] != w.last[i] {
			if first < 0 {
				first = i
			}
			end = i + 1
		}
	}
	if first < 0 {
		return nil
	}
	if err := w.cli.WriteRegisters(w.base+uint16(first), regs[first:end]); err != nil {
		w.needFull = true
		return fmt.Errorf("statusblock: write slots %d..%d failed: %w", first, end-1, err)
	}
	copy(w.last[first:end], regs[first:end])
	return nil
}

// Run writes next(now) every interval until ctx is cancelled. Write failures
// are logged and retried on the next tick.
func (w *Writer) Run(ctx context.Context, interval time.Duration, next func(time.Time) Snapshot, logger zerolog.Logger) error {
	if interval <= 0 {
		return fmt.Errorf("statusblock: interval must be > 0")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	failing := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			start := time.Now()
			err := w.Write(next(now))
			observability.RecordStatusBlockWrite(w.name, time.Since(start), err == nil)
			if err != nil {
				if !failing {
					logger.Warn().Err(err).Msg("status block write failed")
				}
				failing = true
				continue
			}
			if failing {
				logger.Info().Msg("status block write recovered")
				failing = false
			}
		}
	}
}
