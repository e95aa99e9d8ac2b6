package statusblock

import (
	"time"

	"github.com/danmuck/aerctl/internal/capture"
	"github.com/danmuck/aerctl/internal/receiver"
	"github.com/danmuck/aerctl/internal/sink"
)

// Tracker derives health and seconds-in-error across successive snapshots.
// Not safe for concurrent use.
type Tracker struct {
	// StaleAfter marks the device stale when no word completes for this long.
	// 0 disables staleness.
	StaleAfter time.Duration

	lastWords  uint64
	lastChange time.Time
	errorSince time.Time
	inError    bool
}

func NewTracker(staleAfter time.Duration) *Tracker {
	return &Tracker{StaleAfter: staleAfter}
}

func (t *Tracker) Observe(now time.Time, cs capture.Stats, ss sink.StreamStats, streamEnabled bool) Snapshot {
	if t.lastChange.IsZero() || cs.Receiver.WordsOK != t.lastWords {
		t.lastWords = cs.Receiver.WordsOK
		t.lastChange = now
	}

	last := receiver.Status(cs.LastStatusCode)
	failing := cs.Assembler.Flags != 0 ||
		last == receiver.StatusTimeoutWaitNeutral ||
		last == receiver.StatusNoSpace

	health := HealthOK
	switch {
	case !streamEnabled:
		health = HealthDisabled
	case failing:
		health = HealthError
	case t.StaleAfter > 0 && now.Sub(t.lastChange) > t.StaleAfter:
		health = HealthStale
	}

	var secs uint16
	if health == HealthError {
		if !t.inError {
			t.inError = true
			t.errorSince = now
		}
		secs = clampU16(uint64(now.Sub(t.errorSince) / time.Second))
	} else {
		t.inError = false
	}

	return Snapshot{
		Health:          health,
		LastStatus:      uint16(cs.LastStatusCode),
		SecondsInError:  secs,
		AssemblerFlags:  uint16(cs.Assembler.Flags),
		WordsOK:         uint32(cs.Receiver.WordsOK),
		DroppedFull:     uint32(cs.Receiver.DroppedFull),
		TimeoutsNeutral: uint32(cs.Receiver.TimeoutsNeutral),
		CodecInvalid:    uint32(cs.Codec.Invalid),
		Bursts:          uint32(cs.Assembler.BurstsCompleted),
		Events:          uint32(cs.Assembler.EventsEmitted),
		SentOK:          uint32(ss.SentOK),
		SendFailed:      uint32(ss.SendFailed),
		RingHighWater:   clampU16(uint64(cs.Ring.HighWater)),
	}
}
