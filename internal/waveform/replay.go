package waveform

import (
	"errors"
	"fmt"

	"github.com/danmuck/aerctl/internal/burst"
	"github.com/danmuck/aerctl/internal/codec"
)

var (
	ErrNilAssembler = errors.New("waveform: nil assembler")
	ErrAborted      = errors.New("waveform: replay aborted by fault")
)

type ReplayConfig struct {
	// IgnoreInvalid keeps undecodable latches away from the assembler.
	IgnoreInvalid bool
	// CountNeutralAsError counts a neutral latch as a protocol issue.
	CountNeutralAsError bool
	// KeepState skips the assembler flag/state reset before replay.
	KeepState bool
	Fault     Fault
}

func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{IgnoreInvalid: true}
}

// ReplayStats mirrors a hardware capture run. CodecInvalid includes neutral
// latches; bursts and events are the assembler totals after replay.
type ReplayStats struct {
	SamplesSeen     uint64 `json:"samples_seen"`
	AckRises        uint64 `json:"ack_rises"`
	WordsLatched    uint64 `json:"words_latched"`
	CodecOK         uint64 `json:"codec_ok"`
	CodecInvalid    uint64 `json:"codec_invalid"`
	CodecNeutral    uint64 `json:"codec_neutral"`
	BurstsCompleted uint64 `json:"bursts_completed"`
	EventsEmitted   uint64 `json:"events_emitted"`
	ProtocolIssues  uint64 `json:"protocol_issues"`
}

// Replay runs wf through a virtual receiver that latches DATA on every ACK
// rising edge and feeds the decoded word to asm.
func Replay(wf *Waveform, cfg ReplayConfig, c codec.Codec, asm *burst.Assembler, sink burst.Sink) (ReplayStats, error) {
	var st ReplayStats
	if asm == nil {
		return st, ErrNilAssembler
	}
	if !cfg.KeepState {
		asm.Reset(false)
	}

	var (
		lastAck  bool
		haveLast bool
	)
	for _, s := range wf.Samples {
		st.SamplesSeen++
		if cfg.Fault != nil {
			if err := cfg.Fault.Apply(s.T, &s.Data, &s.Ack); err != nil {
				st.collect(asm)
				return st, fmt.Errorf("%w at t=%d: %v", ErrAborted, s.T, err)
			}
		}
		if !haveLast {
			lastAck = s.Ack
			haveLast = true
			continue
		}
		if !lastAck && s.Ack {
			st.AckRises++
			st.WordsLatched++
			d := c.Decode(s.Data)
			if d.OK {
				st.CodecOK++
			} else {
				st.CodecInvalid++
			}
			if d.Flags.Has(codec.FlagNeutral) {
				st.CodecNeutral++
				if cfg.CountNeutralAsError {
					st.ProtocolIssues++
				}
			}
			if d.OK || !cfg.IgnoreInvalid {
				asm.Feed(d, sink)
			}
		}
		lastAck = s.Ack
	}
	st.collect(asm)
	return st, nil
}

func (st *ReplayStats) collect(asm *burst.Assembler) {
	as := asm.Stats()
	st.BurstsCompleted = as.BurstsCompleted
	st.EventsEmitted = as.EventsEmitted
}
