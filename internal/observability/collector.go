package observability

import (
	"github.com/danmuck/aerctl/internal/capture"
	"github.com/danmuck/aerctl/internal/sink"
	"github.com/prometheus/client_golang/prometheus"
)

// CaptureCollector exports capture and stream counters as const metrics built
// from one snapshot per scrape.
type CaptureCollector struct {
	capture func() capture.Stats
	stream  func() sink.StreamStats

	words        *prometheus.Desc
	droppedFull  *prometheus.Desc
	noSpace      *prometheus.Desc
	timeouts     *prometheus.Desc
	decoded      *prometheus.Desc
	codecFlags   *prometheus.Desc
	bursts       *prometheus.Desc
	events       *prometheus.Desc
	asmFlags     *prometheus.Desc
	ringUsed     *prometheus.Desc
	ringCapacity *prometheus.Desc
	ringHigh     *prometheus.Desc
	streamEvents *prometheus.Desc
	streamSent   *prometheus.Desc
	streamHello  *prometheus.Desc
}

// NewCaptureCollector reads stats through the given funcs. stream may be nil
// when no stream sink is attached.
func NewCaptureCollector(node string, stats func() capture.Stats, stream func() sink.StreamStats) *CaptureCollector {
	labels := prometheus.Labels{"node": node}
	desc := func(subsystem, name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, variable, labels)
	}
	return &CaptureCollector{
		capture:      stats,
		stream:       stream,
		words:        desc("receiver", "words_total", "Completed handshakes."),
		droppedFull:  desc("receiver", "dropped_full_total", "Words acknowledged but dropped on a full ring."),
		noSpace:      desc("receiver", "no_space_total", "Cycles refused because the ring was full."),
		timeouts:     desc("receiver", "timeouts_total", "Handshake phase timeouts.", "phase"),
		decoded:      desc("codec", "words_total", "Words decoded by result.", "result"),
		codecFlags:   desc("codec", "flags_total", "Decode flags raised.", "flag"),
		bursts:       desc("assembler", "bursts_total", "Bursts completed."),
		events:       desc("assembler", "events_total", "Events emitted."),
		asmFlags:     desc("assembler", "error_flags", "Sticky assembler error bits."),
		ringUsed:     desc("ring", "used_words", "Words waiting in the ring."),
		ringCapacity: desc("ring", "capacity_words", "Ring storage slots, one always kept free."),
		ringHigh:     desc("ring", "high_water_words", "Highest ring occupancy seen after a push batch or before a drain."),
		streamEvents: desc("stream", "events_total", "Events offered to the stream."),
		streamSent:   desc("stream", "records_total", "Stream record writes by result.", "result"),
		streamHello:  desc("stream", "hello_total", "HELLO descriptors sent."),
	}
}

func (c *CaptureCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.words, c.droppedFull, c.noSpace, c.timeouts, c.decoded, c.codecFlags,
		c.bursts, c.events, c.asmFlags, c.ringUsed, c.ringCapacity, c.ringHigh,
		c.streamEvents, c.streamSent, c.streamHello,
	} {
		ch <- d
	}
}

func (c *CaptureCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.capture()
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}

	counter(c.words, s.Receiver.WordsOK)
	counter(c.droppedFull, s.Receiver.DroppedFull)
	counter(c.noSpace, s.Receiver.NoSpace)
	counter(c.timeouts, s.Receiver.TimeoutsValid, "wait_valid")
	counter(c.timeouts, s.Receiver.TimeoutsNeutral, "wait_neutral")

	counter(c.decoded, s.Codec.OK, "ok")
	counter(c.decoded, s.Codec.Invalid, "invalid")
	counter(c.decoded, s.Codec.Neutral, "neutral")
	for name, v := range s.Codec.Flags {
		counter(c.codecFlags, v, name)
	}

	counter(c.bursts, s.Assembler.BurstsCompleted)
	counter(c.events, s.Assembler.EventsEmitted)
	gauge(c.asmFlags, float64(s.Assembler.Flags))

	gauge(c.ringUsed, float64(s.Ring.Count))
	gauge(c.ringCapacity, float64(s.Ring.Capacity))
	gauge(c.ringHigh, float64(s.Ring.HighWater))

	if c.stream == nil {
		return
	}
	st := c.stream()
	counter(c.streamEvents, st.EventsEmitted)
	counter(c.streamSent, st.SentOK, "ok")
	counter(c.streamSent, st.SendFailed, "failed")
	counter(c.streamHello, st.HelloSent)
}
