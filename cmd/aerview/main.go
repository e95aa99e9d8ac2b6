package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/aerctl/internal/logging"
	"github.com/danmuck/aerctl/internal/protocol/frame"
	"github.com/goburrow/serial"
	"github.com/rs/zerolog/log"
)

func main() {
	port := flag.String("port", "", "serial device carrying the AERS stream (e.g. /dev/ttyACM0)")
	baud := flag.Int("baud", 115200, "serial baud rate (ignored by USB CDC devices)")
	file := flag.String("file", "", "read a captured stream from a file instead; - for stdin")
	showNonEvents := flag.Bool("show-non-events", false, "print log, marker and raw packets too")
	showTicks := flag.Bool("show-ticks", false, "print event ticks when present")
	flag.Parse()
	logging.ConfigureRuntime()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := openInput(ctx, *port, *baud, *file)
	if err != nil {
		log.Fatal().Err(err).Msg("aerview: open input")
	}
	defer in.Close()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	p := printer{out: out, showNonEvents: *showNonEvents, showTicks: *showTicks}
	if err := p.Run(frame.NewReader(in, frame.DefaultLimits())); err != nil && !errors.Is(err, io.EOF) && ctx.Err() == nil {
		out.Flush()
		in.Close()
		log.Fatal().Err(err).Msg("aerview: read stream")
	}
}

func openInput(ctx context.Context, port string, baud int, file string) (io.ReadCloser, error) {
	switch {
	case file == "-":
		return io.NopCloser(os.Stdin), nil
	case file != "":
		return os.Open(file)
	case port != "":
		sp, err := serial.Open(&serial.Config{
			Address:  port,
			BaudRate: baud,
			DataBits: 8,
			StopBits: 1,
			Parity:   "N",
			Timeout:  100 * time.Millisecond,
		})
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", port, err)
		}
		log.Info().Str("port", port).Int("baud", baud).Msg("listening (Ctrl+C to stop)")
		return &patientReader{ctx: ctx, port: sp}, nil
	default:
		return nil, errors.New("one of -port or -file is required")
	}
}

// patientReader retries serial read timeouts until ctx is cancelled so an
// idle link does not end the stream.
type patientReader struct {
	ctx  context.Context
	port serial.Port
}

func (r *patientReader) Read(p []byte) (int, error) {
	for {
		n, err := r.port.Read(p)
		if n > 0 || !errors.Is(err, serial.ErrTimeout) {
			return n, err
		}
		if r.ctx.Err() != nil {
			return 0, io.EOF
		}
	}
}

func (r *patientReader) Close() error { return r.port.Close() }
