package appstats

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/interviewdeck/clip-recorder/internal/config"
	"github.com/interviewdeck/clip-recorder/internal/pubsub/events"
)

type metricsHandler struct {
	next      http.Handler
	statsChan chan *SessionStats
}

var (
	Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "in_requests",
		Help:      "Number of gestures received by the recorder",
	},
		[]string{
			"method",
		})

	InvalidRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "invalid_requests",
		Help:      "Number of invalid requests",
	})

	Responses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "out_responses",
		Help:      "Number of responses from the recorder",
	},
		[]string{
			"method",
		})

	Sessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Subsystem: "recorder",
		Name:      "sessions",
		Help:      "Current number of capture sessions",
	})

	RecordingPasses = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "recording_passes_total",
		Help:      "Total number of started recording passes",
	})

	SegmentsRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "segments_recorded_total",
		Help:      "Total number of finalized segments",
	})

	SegmentSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Subsystem: "recorder",
		Name:      "segment_size_bytes",
		Help:      "Finalized segment size in bytes",
		Buckets:   prometheus.ExponentialBuckets(64*1024, 2, 12), // 64KB to 256MB
	})

	UploadsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "recorder",
		Name:      "uploads_total",
		Help:      "Total number of clip uploads by outcome",
	},
		[]string{
			"outcome", // uploaded, failed, metadata_failed
		})

	UploadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Subsystem: "recorder",
		Name:      "upload_duration_seconds",
		Help:      "Duration of individual clip uploads",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	BatchProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Subsystem: "recorder",
		Name:      "upload_batch_progress_percentage",
		Help:      "Progress of the most recent finalize batch",
	})
)

func Init() {
	prometheus.MustRegister(Requests)
	prometheus.MustRegister(InvalidRequests)
	prometheus.MustRegister(Responses)
	prometheus.MustRegister(Sessions)
	prometheus.MustRegister(RecordingPasses)
	prometheus.MustRegister(SegmentsRecorded)
	prometheus.MustRegister(SegmentSize)
	prometheus.MustRegister(UploadsCompleted)
	prometheus.MustRegister(UploadDuration)
	prometheus.MustRegister(BatchProgress)
}

func newMetricsHandler() *metricsHandler {
	return &metricsHandler{
		next:      promhttp.Handler(),
		statsChan: make(chan *SessionStats, 1),
	}
}

func (h *metricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case stats := <-h.statsChan:
		UpdateSessionMetrics(stats)
	default:
	}
	h.next.ServeHTTP(w, r)
}

// UpdateStats sends new stats to be processed during the next metrics scrape
func (h *metricsHandler) UpdateStats(stats *SessionStats) {
	select {
	case h.statsChan <- stats:
	default:
		log.Warn("Stats update dropped - metrics channel full")
	}
}

var (
	// Global metrics handler instance
	metricsHandlerInstance *metricsHandler
)

func ServePromMetrics(cfg config.Prometheus) {
	if !cfg.Enable {
		return
	}

	metricsHandlerInstance = newMetricsHandler()
	http.Handle("/metrics", metricsHandlerInstance)

	go func() {
		if err := http.ListenAndServe(cfg.ListenAddress, nil); err != nil {
			log.Errorf("failed to start metrics server: %s", err)
		}
	}()

	log.Infof("Prometheus metrics exported on %s", cfg.ListenAddress)
}

// UpdateSessionStats queues a finalize report for the next scrape.
func UpdateSessionStats(stats *SessionStats) {
	if metricsHandlerInstance != nil {
		metricsHandlerInstance.UpdateStats(stats)
	}
}

func OnSessionStarted() {
	Sessions.Inc()
}

func OnSessionEnded() {
	Sessions.Dec()
}

func OnRecordingStarted() {
	RecordingPasses.Inc()
}

func OnSegmentRecorded(sizeBytes int) {
	SegmentsRecorded.Inc()
	SegmentSize.Observe(float64(sizeBytes))
}

func OnUploadCompleted(elapsed time.Duration) {
	UploadsCompleted.WithLabelValues("uploaded").Inc()
	UploadDuration.Observe(elapsed.Seconds())
}

func OnUploadFailed() {
	UploadsCompleted.WithLabelValues("failed").Inc()
}

func OnMetadataSaveFailed() {
	UploadsCompleted.WithLabelValues("metadata_failed").Inc()
}

func OnBatchProgress(pct float64) {
	BatchProgress.Set(pct)
}

func OnServerRequest(event *events.Event) {
	if event.IsValid() {
		Requests.WithLabelValues(event.Id).Inc()
	} else {
		InvalidRequests.Inc()
	}
}

func OnServerResponse(msg interface{}) {
	switch v := msg.(type) {
	case *events.Event:
		Responses.WithLabelValues(v.Id).Inc()
	case *events.CaptureStateChanged:
		Responses.WithLabelValues(events.CaptureStateChangedKey).Inc()
	case *events.SegmentRecorded:
		Responses.WithLabelValues(events.SegmentRecordedKey).Inc()
	case *events.UploadProgress:
		Responses.WithLabelValues(events.UploadProgressKey).Inc()
	case *events.SessionFinalized:
		Responses.WithLabelValues(events.SessionFinalizedKey).Inc()
	case *events.RecorderStatus:
		Responses.WithLabelValues(events.RecorderStatusKey).Inc()
	default:
		Responses.WithLabelValues("unknown").Inc()
	}
}

// UpdateSessionMetrics folds a queued finalize report into the gauges.
// Per-upload counters are incremented inline by the coordinator, so only
// the batch-level figures are taken from the report.
func UpdateSessionMetrics(stats *SessionStats) {
	if stats == nil || stats.Uploads == nil {
		return
	}
	BatchProgress.Set(stats.Uploads.ProgressPct)
}
