package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/danmuck/aerctl/internal/burst"
	"github.com/danmuck/aerctl/internal/codec"
	"github.com/danmuck/aerctl/internal/geometry"
	"github.com/danmuck/aerctl/internal/waveform"
)

type report struct {
	Events         []burst.Event        `json:"events"`
	Stats          waveform.ReplayStats `json:"stats"`
	AssemblerFlags string               `json:"assembler_flags"`
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("aerreplay", flag.ContinueOnError)
	fs.SetOutput(out)
	rows := fs.Uint("rows", 32, "sensor rows")
	cols := fs.Uint("cols", 32, "sensor columns")
	gen := fs.String("gen", "", "write a waveform for the bursts given as arguments (\"5:3,7 9:1\") to this path and exit")
	ignoreInvalid := fs.Bool("ignore-invalid", true, "keep undecodable latches away from the assembler")
	countNeutral := fs.Bool("count-neutral", false, "count a neutral latch as a protocol issue")
	glitch := fs.String("glitch", "", "xor DATA inside a tick window, start:end:mask")
	stuckAck := fs.String("stuck-ack", "", "force ACK from a tick onward, start:level")
	dropNeutral := fs.Bool("drop-neutral", false, "hold the last nonzero DATA through neutral spacers")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *rows > 0xFFFF || *cols > 0xFFFF {
		return fmt.Errorf("geometry %dx%d out of range", *rows, *cols)
	}
	geo, err := geometry.Derive(uint16(*rows), uint16(*cols))
	if err != nil {
		return err
	}
	c, err := codec.New(geo)
	if err != nil {
		return err
	}

	if *gen != "" {
		return generate(c, *gen, strings.Join(fs.Args(), " "))
	}
	if fs.NArg() != 1 {
		return errors.New("usage: aerreplay [flags] <waveform.txt>")
	}

	var faults waveform.Chain
	if *glitch != "" {
		g, err := parseGlitch(*glitch)
		if err != nil {
			return err
		}
		faults = append(faults, g)
	}
	if *stuckAck != "" {
		s, err := parseStuckAck(*stuckAck)
		if err != nil {
			return err
		}
		faults = append(faults, s)
	}
	if *dropNeutral {
		faults = append(faults, &waveform.DropNeutral{})
	}

	wf, err := waveform.LoadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	asm, err := burst.New(geo)
	if err != nil {
		return err
	}
	cfg := waveform.ReplayConfig{IgnoreInvalid: *ignoreInvalid, CountNeutralAsError: *countNeutral}
	if len(faults) > 0 {
		cfg.Fault = faults
	}

	rep := report{Events: []burst.Event{}}
	sink := burst.SinkFunc(func(row, col uint16) {
		rep.Events = append(rep.Events, burst.Event{Row: row, Col: col})
	})
	rep.Stats, err = waveform.Replay(wf, cfg, c, asm, sink)
	if err != nil {
		return err
	}
	rep.AssemblerFlags = asm.Flags().String()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func generate(c codec.Codec, path, bursts string) error {
	events, err := parseBursts(bursts)
	if err != nil {
		return err
	}
	words, err := burst.EncodeFrame(c, events)
	if err != nil {
		return err
	}
	wf := &waveform.Waveform{}
	tx, err := waveform.NewTxModel(waveform.DefaultTxConfig(), wf, 0)
	if err != nil {
		return err
	}
	if err := tx.EmitWords(words); err != nil {
		return err
	}
	return wf.WriteFile(path)
}

// parseBursts reads "row:col,col row:col" into events in burst order.
func parseBursts(s string) ([]burst.Event, error) {
	var out []burst.Event
	for _, field := range strings.Fields(s) {
		rowStr, colStr, ok := strings.Cut(field, ":")
		if !ok || colStr == "" {
			return nil, fmt.Errorf("burst %q: want row:col[,col...]", field)
		}
		row, err := strconv.ParseUint(rowStr, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("burst %q: row: %w", field, err)
		}
		for _, cs := range strings.Split(colStr, ",") {
			col, err := strconv.ParseUint(cs, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("burst %q: col: %w", field, err)
			}
			out = append(out, burst.Event{Row: uint16(row), Col: uint16(col)})
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no bursts given")
	}
	return out, nil
}

func parseGlitch(s string) (waveform.Glitch, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return waveform.Glitch{}, fmt.Errorf("glitch %q: want start:end:mask", s)
	}
	start, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return waveform.Glitch{}, fmt.Errorf("glitch start: %w", err)
	}
	end, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return waveform.Glitch{}, fmt.Errorf("glitch end: %w", err)
	}
	mask, err := strconv.ParseUint(parts[2], 0, 32)
	if err != nil {
		return waveform.Glitch{}, fmt.Errorf("glitch mask: %w", err)
	}
	if end < start {
		return waveform.Glitch{}, fmt.Errorf("glitch %q: end before start", s)
	}
	return waveform.Glitch{Start: start, End: end, XorMask: codec.RawWord(mask)}, nil
}

func parseStuckAck(s string) (waveform.StuckAck, error) {
	startStr, levelStr, ok := strings.Cut(s, ":")
	if !ok {
		return waveform.StuckAck{}, fmt.Errorf("stuck-ack %q: want start:level", s)
	}
	start, err := strconv.ParseUint(startStr, 10, 64)
	if err != nil {
		return waveform.StuckAck{}, fmt.Errorf("stuck-ack start: %w", err)
	}
	level, err := strconv.ParseBool(levelStr)
	if err != nil {
		return waveform.StuckAck{}, fmt.Errorf("stuck-ack level: %w", err)
	}
	return waveform.StuckAck{Start: start, Level: level}, nil
}
