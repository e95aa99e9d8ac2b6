package capture

import (
	"github.com/danmuck/aerctl/internal/burst"
	"github.com/danmuck/aerctl/internal/codec"
	"github.com/danmuck/aerctl/internal/receiver"
)

type RingStats struct {
	Capacity  int `json:"capacity"`
	Count     int `json:"count"`
	Free      int `json:"free"`
	HighWater int `json:"high_water"`
}

type CodecStats struct {
	Words   uint64            `json:"words"`
	OK      uint64            `json:"ok"`
	Invalid uint64            `json:"invalid"`
	Neutral uint64            `json:"neutral"`
	Tails   uint64            `json:"tails"`
	Flags   map[string]uint64 `json:"flags"`
}

// Stats is a point-in-time view of every counter on the capture path.
// Fields are read independently and may be skewed by in-flight words.
type Stats struct {
	Receiver        receiver.Stats `json:"receiver"`
	LastStatus      string         `json:"last_status"`
	LastStatusCode  uint8          `json:"last_status_code"`
	NeutralRecovery uint64         `json:"neutral_recoveries"`
	Ring            RingStats      `json:"ring"`
	Codec           CodecStats     `json:"codec"`
	Assembler       burst.Stats    `json:"assembler"`
	AssemblerFlags  string         `json:"assembler_flags"`
}

func (p *Pipeline) Snapshot() Stats {
	flags := make(map[string]uint64, len(codec.AllFlags()))
	for _, f := range codec.AllFlags() {
		flags[f.String()] = p.codecFlagCount(f)
	}
	asm := p.asm.Stats()
	last := receiver.Status(p.lastStatus.Load())
	return Stats{
		Receiver:        p.rx.Stats(),
		LastStatus:      last.String(),
		LastStatusCode:  uint8(last),
		NeutralRecovery: p.producerErr.Load(),
		Ring: RingStats{
			Capacity:  p.ring.Capacity(),
			Count:     p.ring.Count(),
			Free:      p.ring.Free(),
			HighWater: int(p.ringHigh.Load()),
		},
		Codec: CodecStats{
			Words:   p.wordsIn.Load(),
			OK:      p.codecOK.Load(),
			Invalid: p.codecBad.Load(),
			Neutral: p.codecIdle.Load(),
			Tails:   p.tails.Load(),
			Flags:   flags,
		},
		Assembler:      asm,
		AssemblerFlags: asm.Flags.String(),
	}
}

func (p *Pipeline) codecFlagCount(f codec.Flags) uint64 {
	for i := range p.codecFlags {
		if codec.Flags(1)<<i == f {
			return p.codecFlags[i].Load()
		}
	}
	return 0
}
