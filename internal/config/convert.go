package config

import (
	"github.com/danmuck/aerctl/internal/bus"
	"github.com/danmuck/aerctl/internal/capture"
	"github.com/danmuck/aerctl/internal/logging"
	"github.com/danmuck/aerctl/internal/protocol/frame"
	"github.com/danmuck/aerctl/internal/receiver"
)

// PipelineSettings converts a validated config into capture settings.
func (c CaptureConfig) PipelineSettings() (capture.Config, error) {
	geo, err := c.GeometryLayout()
	if err != nil {
		return capture.Config{}, err
	}
	policy, err := receiver.ParsePolicy(c.Capture.Policy)
	if err != nil {
		return capture.Config{}, err
	}
	rx := receiver.DefaultConfig()
	rx.Policy = policy
	rx.WaitValidTimeout = c.Capture.WaitValid.Duration
	rx.WaitNeutralTimeout = c.Capture.WaitNeutral.Duration

	out := capture.DefaultConfig()
	out.Geometry = geo
	out.RingCapacity = c.Capture.RingCapacity
	out.Receiver = rx
	out.BatchWords = c.Capture.BatchWords
	out.BatchBudget = c.Capture.BatchBudget.Duration
	out.IdleSleep = c.Capture.IdleSleep.Duration
	return out, out.Validate()
}

func (c CaptureConfig) SimSettings() bus.SimConfig {
	out := bus.DefaultSimConfig()
	out.Pins = c.Bus.Pins
	out.PhaseTimeout = c.Bus.Sim.PhaseTimeout.Duration
	out.QueueDepth = c.Bus.Sim.QueueDepth
	return out
}

func (c CaptureConfig) FrameLimits() frame.Limits {
	limits := frame.DefaultLimits()
	limits.MaxPayloadBytes = c.Stream.MaxPayload
	return limits
}

// LoggingSettings starts from the runtime profile; env overrides still win.
func (c CaptureConfig) LoggingSettings() logging.Config {
	out := logging.DefaultConfig(logging.ProfileRuntime)
	if lvl, ok := logging.ParseLevel(c.Log.Level); ok {
		out.Level = lvl
	}
	out.Timestamp = c.Log.Timestamp
	out.NoColor = c.Log.NoColor
	return logging.WithEnv(out)
}
