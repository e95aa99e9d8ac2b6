package waveform

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/danmuck/aerctl/internal/codec"
)

var (
	ErrNonMonotonic = errors.New("waveform: sample time went backwards")
	ErrParse        = errors.New("waveform: trace parse failed")
)

// Sample is one recorded bus state. T is in arbitrary ticks.
type Sample struct {
	T    uint64
	Data codec.RawWord
	Ack  bool
}

type Waveform struct {
	Samples []Sample
}

func (w *Waveform) Len() int { return len(w.Samples) }

// Append adds s unconditionally; time must not decrease.
func (w *Waveform) Append(s Sample) error {
	if n := len(w.Samples); n > 0 && s.T < w.Samples[n-1].T {
		return fmt.Errorf("%w: t=%d after t=%d", ErrNonMonotonic, s.T, w.Samples[n-1].T)
	}
	w.Samples = append(w.Samples, s)
	return nil
}

// PushTransition appends only when DATA or ACK differs from the last sample.
// Equal timestamps are allowed and keep their insertion order.
func (w *Waveform) PushTransition(t uint64, data codec.RawWord, ack bool) error {
	if n := len(w.Samples); n > 0 {
		last := w.Samples[n-1]
		if last.Data == data && last.Ack == ack {
			return nil
		}
	}
	return w.Append(Sample{T: t, Data: data, Ack: ack})
}

// Load parses "t data ack" lines. Fields may be separated by whitespace or
// commas, data accepts 0x-prefixed hex or decimal, and # starts a comment.
func Load(r io.Reader) (*Waveform, error) {
	wf := &Waveform{}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = strings.TrimSpace(text[:i])
		}
		if text == "" {
			continue
		}
		fields := strings.Fields(strings.ReplaceAll(text, ",", " "))
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: line %d: want 3 fields, got %d", ErrParse, line, len(fields))
		}
		t, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: time %q", ErrParse, line, fields[0])
		}
		data, err := strconv.ParseUint(fields[1], 0, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: data %q", ErrParse, line, fields[1])
		}
		ack, err := strconv.ParseUint(fields[2], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: ack %q", ErrParse, line, fields[2])
		}
		if err := wf.Append(Sample{T: t, Data: codec.RawWord(data), Ack: ack != 0}); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return wf, nil
}

func LoadFile(path string) (*Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("waveform load failed (%s): %w", path, err)
	}
	defer f.Close()
	wf, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wf, nil
}

// Write emits the trace in the format Load reads.
func (w *Waveform) Write(out io.Writer) error {
	bw := bufio.NewWriter(out)
	if _, err := fmt.Fprintln(bw, "# t data_hex ack"); err != nil {
		return err
	}
	for _, s := range w.Samples {
		ack := 0
		if s.Ack {
			ack = 1
		}
		if _, err := fmt.Fprintf(bw, "%d 0x%08x %d\n", s.T, s.Data, ack); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func (w *Waveform) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("waveform write failed (%s): %w", path, err)
	}
	if err := w.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("waveform write failed (%s): %w", path, err)
	}
	return f.Close()
}
