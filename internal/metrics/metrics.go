package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mks"

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 网关指标
type AppMetrics struct {
	FramesReceived   *prometheus.CounterVec // labels: source
	FramesFiltered   *prometheus.CounterVec // labels: reason=bus_filter|remote|length|address
	FramesDecoded    *prometheus.CounterVec // labels: cmd, variant
	LabelErrors      prometheus.Counter
	ChecksumMismatch prometheus.Counter
	SinkErrors       *prometheus.CounterVec // labels: sink
	QueueDropped     prometheus.Counter

	TCPAccepted      prometheus.Counter
	TCPRejected      *prometheus.CounterVec // labels: reason=rate|limit
	TCPBytesReceived prometheus.Counter
	TCPBadLines      prometheus.Counter

	MotorsOnline prometheus.Gauge
}

// NewAppMetrics 注册并返回网关指标
func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "CAN frames received by source.",
		}, []string{"source"}),
		FramesFiltered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_filtered_total",
			Help:      "CAN frames dropped before decoding.",
		}, []string{"reason"}),
		FramesDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_decoded_total",
			Help:      "Decoded frames by command and variant.",
		}, []string{"cmd", "variant"}),
		LabelErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "label_errors_total",
			Help:      "Frames carrying an enum index outside its label table.",
		}),
		ChecksumMismatch: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checksum_mismatch_total",
			Help:      "Frames whose trailing byte differs from the computed checksum.",
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Output sink failures.",
		}, []string{"sink"}),
		QueueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_dropped_total",
			Help:      "Frames dropped because the decode queue was full.",
		}),
		TCPAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tcp_accept_total",
			Help:      "Total accepted TCP connections.",
		}),
		TCPRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tcp_reject_total",
			Help:      "Rejected TCP connections.",
		}, []string{"reason"}),
		TCPBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tcp_bytes_received_total",
			Help:      "Total bytes received over TCP.",
		}),
		TCPBadLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tcp_bad_lines_total",
			Help:      "Malformed candump lines received over TCP.",
		}),
		MotorsOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "motors_online",
			Help:      "Motors seen within the stale window.",
		}),
	}
	reg.MustRegister(
		m.FramesReceived, m.FramesFiltered, m.FramesDecoded, m.LabelErrors, m.ChecksumMismatch,
		m.SinkErrors, m.QueueDropped,
		m.TCPAccepted, m.TCPRejected, m.TCPBytesReceived, m.TCPBadLines,
		m.MotorsOnline,
	)
	return m
}
