// Package telemetry mirrors RadioCore's out-of-band Frame stream (STATE,
// MEASURE, DEBUG) to Prometheus gauges/counters and, optionally, an MQTT
// broker, plus a periodic process self-metrics sample via gopsutil. It has
// no dependency on internal/radiocore: cmd/blesniffer feeds it every Frame
// drained from the PacketRing, the same way the teacher's PrometheusMetrics
// is fed aggregate values computed elsewhere rather than reaching into the
// radiod client itself.
package telemetry

import (
	"encoding/binary"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cwsl/blesniffercore/internal/frame"
	"github.com/cwsl/blesniffercore/internal/hostlink"
)

// Metrics holds every Prometheus collector this package registers. Construct
// with NewMetrics; the zero value is not usable (its collectors are nil).
type Metrics struct {
	Registry *prometheus.Registry

	measureInterval       prometheus.Gauge
	measureWinOffset      prometheus.Gauge
	measureDeltaInstant   prometheus.Gauge
	measureAdvHopUsec     prometheus.Gauge
	chanMapMeasurements   prometheus.Counter
	emptyHops             prometheus.Gauge
	ringOccupancy         prometheus.Gauge
	stateTransitionsTotal *prometheus.CounterVec
	framesObservedTotal   *prometheus.CounterVec
	debugFramesTotal      prometheus.Counter
	selfRSSBytes          prometheus.Gauge
	selfCPUPercent        prometheus.Gauge
}

// NewMetrics registers and returns a fresh Metrics against its own
// prometheus.Registry (rather than the global DefaultRegisterer the
// teacher's single-instantiation main() uses directly), so a process can
// construct more than one independently and tests don't collide on
// duplicate metric names across cases.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,

		measureInterval: factory.NewGauge(prometheus.GaugeOpts{
			Name: "blesniffer_measure_interval_units",
			Help: "Last reported connection hop interval, in 1.25ms units.",
		}),
		measureWinOffset: factory.NewGauge(prometheus.GaugeOpts{
			Name: "blesniffer_measure_win_offset_units",
			Help: "Last reported connection WinOffset, in 1.25ms units.",
		}),
		measureDeltaInstant: factory.NewGauge(prometheus.GaugeOpts{
			Name: "blesniffer_measure_delta_instant",
			Help: "Last reported connEventCount-to-connUpdateInstant delta while inferring a parameter change.",
		}),
		measureAdvHopUsec: factory.NewGauge(prometheus.GaugeOpts{
			Name: "blesniffer_measure_adv_hop_usec",
			Help: "Last reported assumed/measured advertising hop interval, in microseconds.",
		}),
		chanMapMeasurements: factory.NewCounter(prometheus.CounterOpts{
			Name: "blesniffer_measure_chanmap_total",
			Help: "Number of times the used channel map became certain and was reported.",
		}),
		emptyHops: factory.NewGauge(prometheus.GaugeOpts{
			Name: "blesniffer_empty_hops",
			Help: "Consecutive connection events with no received packet for the connection currently tracked.",
		}),
		ringOccupancy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "blesniffer_packet_ring_occupancy",
			Help: "Number of frames currently queued in the PacketRing.",
		}),
		stateTransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blesniffer_state_transitions_total",
			Help: "Number of times RadioCore entered each SnifferState.",
		}, []string{"state"}),
		framesObservedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blesniffer_frames_observed_total",
			Help: "Number of Frames drained from the PacketRing, by out-of-band kind (or \"ble\" for captured packets).",
		}, []string{"kind"}),
		debugFramesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "blesniffer_debug_frames_total",
			Help: "Number of DEBUG out-of-band frames emitted by RadioCore's developer channel.",
		}),
		selfRSSBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "blesniffer_process_rss_bytes",
			Help: "Resident set size of this process, sampled periodically via gopsutil.",
		}),
		selfCPUPercent: factory.NewGauge(prometheus.GaugeOpts{
			Name: "blesniffer_process_cpu_percent",
			Help: "CPU usage percent of this process, sampled periodically via gopsutil.",
		}),
	}
}

// frameKind labels a Frame for the framesObservedTotal counter.
func frameKind(f *frame.Frame) string {
	switch f.Channel {
	case frame.ChanDebug:
		return "debug"
	case frame.ChanMarker:
		return "marker"
	case frame.ChanState:
		return "state"
	case frame.ChanMeasure:
		return "measure"
	default:
		return "ble"
	}
}

// stateName renders a raw STATE frame's payload byte as a SnifferState
// string without importing internal/radiocore (this package keeps no
// dependency on it, see the package doc); the numbering is
// radiocore.SnifferState's, duplicated here deliberately as a label table
// rather than a shared dependency.
var stateNames = []string{
	"Static", "AdvertSeek", "AdvertHop", "Data", "Paused", "Initiating",
	"Central", "Peripheral", "Advertising", "Scanning", "AdvertisingExt",
}

func stateName(b uint8) string {
	if int(b) < len(stateNames) {
		return stateNames[b]
	}
	return "Unknown"
}

// Observe updates every metric f's channel is relevant to. Call it once per
// Frame drained from the PacketRing, in the same goroutine that does the
// draining (cmd/blesniffer's hostlink forwarding loop).
func (m *Metrics) Observe(f *frame.Frame) {
	m.framesObservedTotal.WithLabelValues(frameKind(f)).Inc()

	switch f.Channel {
	case frame.ChanDebug:
		m.debugFramesTotal.Inc()

	case frame.ChanState:
		payload := f.Payload()
		if len(payload) > 0 {
			m.stateTransitionsTotal.WithLabelValues(stateName(payload[0])).Inc()
		}

	case frame.ChanMeasure:
		m.observeMeasure(f.Payload())
	}
}

// observeMeasure decodes a MEASURE payload (sub-opcode byte + fields,
// measurements.c's reportMeasurement family, see internal/radiocore's
// measurements.go and internal/hostlink's opcode table) into the matching
// gauge/counter.
func (m *Metrics) observeMeasure(payload []byte) {
	if len(payload) < 1 {
		return
	}
	switch payload[0] {
	case hostlink.MeasInterval:
		if len(payload) >= 3 {
			m.measureInterval.Set(float64(binary.LittleEndian.Uint16(payload[1:3])))
		}
	case hostlink.MeasWinOffset:
		if len(payload) >= 3 {
			m.measureWinOffset.Set(float64(binary.LittleEndian.Uint16(payload[1:3])))
		}
	case hostlink.MeasDeltaInstant:
		if len(payload) >= 3 {
			m.measureDeltaInstant.Set(float64(binary.LittleEndian.Uint16(payload[1:3])))
		}
	case hostlink.MeasAdvHop:
		if len(payload) >= 5 {
			m.measureAdvHopUsec.Set(float64(binary.LittleEndian.Uint32(payload[1:5])))
		}
	case hostlink.MeasChanMap:
		m.chanMapMeasurements.Inc()
	}
}

// SetRingOccupancy reports the PacketRing's current queue depth.
func (m *Metrics) SetRingOccupancy(n int) {
	m.ringOccupancy.Set(float64(n))
}

// SetEmptyHops reports the consecutive-missed-event counter for the
// connection currently (or most recently) tracked.
func (m *Metrics) SetEmptyHops(n uint32) {
	m.emptyHops.Set(float64(n))
}

// SetSelfMetrics reports a gopsutil process sample.
func (m *Metrics) SetSelfMetrics(rssBytes uint64, cpuPercent float64) {
	m.selfRSSBytes.Set(float64(rssBytes))
	m.selfCPUPercent.Set(cpuPercent)
}
