package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parkbeam",
			Subsystem: "transport",
			Name:      "frames_received_total",
			Help:      "Complete frames received with a valid checksum.",
		},
		[]string{"port"},
	)
	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parkbeam",
			Subsystem: "transport",
			Name:      "frames_sent_total",
			Help:      "Frames written to the channel by command.",
		},
		[]string{"port", "command"},
	)
	frameErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parkbeam",
			Subsystem: "transport",
			Name:      "frame_errors_total",
			Help:      "Inbound frames dropped by reason.",
		},
		[]string{"port", "reason"},
	)
	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "parkbeam",
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Time from decoded request to written response.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
		[]string{"port", "request", "response"},
	)
	zoneChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parkbeam",
			Subsystem: "zones",
			Name:      "state_changes_total",
			Help:      "Zone occupancy changes pushed by the host.",
		},
		[]string{"zone", "state"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parkbeam",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
)

// Frame error reasons.
const (
	ReasonChecksum = "checksum"
	ReasonHeader   = "header"
	ReasonSequence = "sequence"
	ReasonStale    = "stale"
	ReasonOversize = "oversize"
	ReasonDecode   = "decode"
	ReasonRead     = "read"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesReceived, framesSent, frameErrors, dispatchDuration, zoneChanges, httpRequests)
	})
}

func RecordFrameReceived(port string) {
	RegisterMetrics()
	framesReceived.WithLabelValues(port).Inc()
}

func RecordFrameSent(port, command string) {
	RegisterMetrics()
	framesSent.WithLabelValues(port, command).Inc()
}

func RecordFrameError(port, reason string) {
	RegisterMetrics()
	frameErrors.WithLabelValues(port, reason).Inc()
}

func RecordDispatch(port, request, response string, duration time.Duration) {
	RegisterMetrics()
	dispatchDuration.WithLabelValues(port, request, response).Observe(duration.Seconds())
}

func RecordZoneChange(zoneID int, state string) {
	RegisterMetrics()
	zoneChanges.WithLabelValues(strconv.Itoa(zoneID), state).Inc()
}

func RecordHTTPRequest(method, path string, status int) {
	RegisterMetrics()
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// FrameErrors returns the current error counter, for tests and /health.
func FrameErrors(port, reason string) prometheus.Counter {
	return frameErrors.WithLabelValues(port, reason)
}

// FramesSent returns the current sent-frame counter.
func FramesSent(port, command string) prometheus.Counter {
	return framesSent.WithLabelValues(port, command)
}
