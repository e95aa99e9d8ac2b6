package waveform

import "github.com/danmuck/aerctl/internal/codec"

// TxConfig times the modeled handshake: valid, ACK high, neutral, ACK low.
type TxConfig struct {
	AckRiseDelay   uint64
	DataClearDelay uint64
	AckFallDelay   uint64
	Neutral        codec.RawWord
	InitialAck     bool
}

func DefaultTxConfig() TxConfig {
	return TxConfig{AckRiseDelay: 1, DataClearDelay: 0, AckFallDelay: 1}
}

// TxModel renders words as DI transactions into a waveform.
type TxModel struct {
	cfg  TxConfig
	t    uint64
	data codec.RawWord
	ack  bool
	out  *Waveform
}

// NewTxModel records the initial bus state at t0 as the first sample.
func NewTxModel(cfg TxConfig, out *Waveform, t0 uint64) (*TxModel, error) {
	m := &TxModel{cfg: cfg, t: t0, data: cfg.Neutral, ack: cfg.InitialAck, out: out}
	if err := out.PushTransition(t0, m.data, m.ack); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *TxModel) Now() uint64 { return m.t }

// EmitWord appends one transaction; the next word starts when ACK falls.
func (m *TxModel) EmitWord(word codec.RawWord) error {
	if err := m.out.PushTransition(m.t, word, m.ack); err != nil {
		return err
	}
	m.data = word

	tAckHigh := m.t + m.cfg.AckRiseDelay
	if err := m.out.PushTransition(tAckHigh, m.data, true); err != nil {
		return err
	}
	m.ack = true

	tNeutral := tAckHigh + m.cfg.DataClearDelay
	if err := m.out.PushTransition(tNeutral, m.cfg.Neutral, m.ack); err != nil {
		return err
	}
	m.data = m.cfg.Neutral

	tAckLow := tNeutral + m.cfg.AckFallDelay
	if err := m.out.PushTransition(tAckLow, m.data, false); err != nil {
		return err
	}
	m.ack = false
	m.t = tAckLow
	return nil
}

func (m *TxModel) EmitWords(words []codec.RawWord) error {
	for _, w := range words {
		if err := m.EmitWord(w); err != nil {
			return err
		}
	}
	return nil
}

// Idle advances model time without touching the bus.
func (m *TxModel) Idle(ticks uint64) { m.t += ticks }
