package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/danmuck/aerctl/internal/auth"
	"github.com/danmuck/aerctl/internal/bus"
	"github.com/danmuck/aerctl/internal/capture"
	"github.com/danmuck/aerctl/internal/codec"
	"github.com/danmuck/aerctl/internal/config"
	"github.com/danmuck/aerctl/internal/observability"
	"github.com/danmuck/aerctl/internal/protocol/frame"
	"github.com/danmuck/aerctl/internal/server"
	"github.com/danmuck/aerctl/internal/sink"
	"github.com/danmuck/aerctl/internal/statusblock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type service struct {
	id  string
	cfg config.CaptureConfig

	// test hooks
	output   io.WriteCloser
	registry prometheus.Registerer
	ready    func(*capture.Pipeline, *sink.Stream)
}

func newService(id string, cfg config.CaptureConfig) *service {
	return &service{id: id, cfg: cfg, registry: prometheus.DefaultRegisterer}
}

// Run wires source, pipeline, stream and the optional admin and status block
// workers, and blocks until ctx is cancelled or a worker fails.
func (s *service) Run(ctx context.Context) error {
	pcfg, err := s.cfg.PipelineSettings()
	if err != nil {
		return err
	}

	out := s.output
	if out == nil {
		if out, err = openOutput(s.cfg.Stream); err != nil {
			return err
		}
	}
	defer out.Close()
	fw := frame.NewWriter(out, s.cfg.FrameLimits())

	logCfg := s.cfg.LoggingSettings()
	if s.cfg.Stream.PacketLogs {
		logCfg.Out = frame.NewLogWriter(fw)
		logCfg.NoColor = true
	}
	logger := observability.InitLogger("aerctl", logCfg).With().Str("node", s.id).Logger()

	stream, err := sink.NewStream(fw, sink.StreamConfig{
		Geometry:   pcfg.Geometry,
		Timestamps: s.cfg.Stream.Timestamps,
		Enabled:    s.cfg.Stream.Enabled,
	}, logger)
	if err != nil {
		return err
	}
	if err := stream.SendHello(); err != nil {
		logger.Warn().Err(err).Msg("hello not delivered")
	}

	sim, err := bus.NewSim(s.cfg.SimSettings(), logger)
	if err != nil {
		return err
	}
	pins, err := bus.NewPins(sim, s.cfg.Bus.Pins)
	if err != nil {
		return err
	}
	pipeline, err := capture.New(pcfg, pins, stream, logger)
	if err != nil {
		return err
	}
	src := &simSource{
		sim:      sim,
		codec:    codec.MustNew(pcfg.Geometry),
		pattern:  s.cfg.Bus.Sim.Pattern,
		interval: s.cfg.Bus.Sim.Interval.Duration,
		log:      logger,
	}

	collector := observability.NewCaptureCollector(s.id, pipeline.Snapshot, stream.Stats)
	if err := s.registry.Register(collector); err != nil {
		return fmt.Errorf("register capture metrics: %w", err)
	}
	defer s.registry.Unregister(collector)

	logger.Info().
		Str("session", stream.SessionID()).
		Str("record", stream.RecordType().String()).
		Str("output", s.cfg.Stream.Output).
		Str("pattern", src.pattern).
		Msg("aerctl starting")

	// The sim outlives the pipeline so no handshake is cut mid-cycle.
	simCtx, stopSim := context.WithCancel(context.Background())
	defer stopSim()
	simDone := make(chan struct{})
	go func() {
		defer close(simDone)
		_ = sim.Run(simCtx)
	}()

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(workCtx); err != nil {
				errOnce.Do(func() { firstErr = fmt.Errorf("%s: %w", name, err) })
				cancel()
			}
		}()
	}

	spawn("capture", pipeline.Run)
	spawn("source", src.Run)
	if s.cfg.Admin.Addr != "" {
		adminCfg := server.Config{
			ID:          s.id,
			Addr:        s.cfg.Admin.Addr,
			CorsOrigins: s.cfg.Admin.CorsOrigins,
		}
		if s.cfg.Admin.Token != "" {
			adminCfg.Auth = auth.StaticToken{Token: s.cfg.Admin.Token}
		}
		admin := server.New(adminCfg, pipeline, stream, logger)
		spawn("admin", admin.Serve)
	}
	if s.cfg.StatusBlock.Enabled {
		spawn("status_block", func(ctx context.Context) error {
			return runStatusBlock(ctx, s.cfg.StatusBlock, pipeline, stream, logger)
		})
	}
	if s.ready != nil {
		s.ready(pipeline, stream)
	}

	wg.Wait()
	stopSim()
	<-simDone

	st := pipeline.Snapshot()
	logger.Info().
		Uint64("words_ok", st.Receiver.WordsOK).
		Uint64("events", st.Assembler.EventsEmitted).
		Uint64("sent_ok", stream.Stats().SentOK).
		Uint64("send_failed", stream.Stats().SendFailed).
		Msg("aerctl stopped")
	if errors.Is(firstErr, context.Canceled) {
		return nil
	}
	return firstErr
}

func runStatusBlock(ctx context.Context, cfg config.StatusBlockConfig, p *capture.Pipeline, stream *sink.Stream, logger zerolog.Logger) error {
	log := logger.With().Str("component", "status_block").Str("addr", cfg.Addr).Logger()
	cli, err := statusblock.DialRetry(ctx, statusblock.ClientConfig{
		Addr:    cfg.Addr,
		SlaveID: cfg.SlaveID,
		Timeout: cfg.Timeout.Duration,
	}, statusblock.DefaultBackoff(), log)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("dial %s: %w", cfg.Addr, err)
	}
	defer cli.Close()

	w, err := statusblock.NewWriter(cli, cfg.Register, cfg.DeviceName)
	if err != nil {
		return err
	}
	tracker := statusblock.NewTracker(cfg.StaleAfter.Duration)
	log.Info().Uint16("register", cfg.Register).Dur("interval", cfg.Interval.Duration).Msg("status block publishing")
	return w.Run(ctx, cfg.Interval.Duration, func(now time.Time) statusblock.Snapshot {
		return tracker.Observe(now, p.Snapshot(), stream.Stats(), stream.Enabled())
	}, log)
}
