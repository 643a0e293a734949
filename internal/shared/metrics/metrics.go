package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	askStartedTotal   atomic.Uint64
	askAnsweredTotal  atomic.Uint64
	askClarifiedTotal atomic.Uint64
	askFailedTotal    atomic.Uint64

	datasetUploadsTotal   atomic.Uint64
	contextUploadsTotal   atomic.Uint64
	uploadFailuresTotal   atomic.Uint64
	transcriptionsTotal   atomic.Uint64
	readbacksTotal        atomic.Uint64
	remoteCallErrorsTotal atomic.Uint64
	rateLimitedTotal      atomic.Uint64

	askDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncAskStarted counts an ask or clarification round sent to the API.
func IncAskStarted() {
	askStartedTotal.Add(1)
}

// IncAskAnswered counts a final answer.
func IncAskAnswered() {
	askAnsweredTotal.Add(1)
}

// IncAskClarified counts a clarification request.
func IncAskClarified() {
	askClarifiedTotal.Add(1)
}

// IncAskFailed counts a failed ask.
func IncAskFailed() {
	askFailedTotal.Add(1)
}

// IncDatasetUploads counts a successful dataset upload.
func IncDatasetUploads() {
	datasetUploadsTotal.Add(1)
}

// IncContextUploads counts a successful context document upload.
func IncContextUploads() {
	contextUploadsTotal.Add(1)
}

// IncUploadFailures counts a failed dataset or context upload.
func IncUploadFailures() {
	uploadFailuresTotal.Add(1)
}

// IncTranscriptions counts a successful voice transcription.
func IncTranscriptions() {
	transcriptionsTotal.Add(1)
}

// IncReadbacks counts a successful answer readback.
func IncReadbacks() {
	readbacksTotal.Add(1)
}

// IncRemoteCallErrors counts any failed call to the analytics API.
func IncRemoteCallErrors() {
	remoteCallErrorsTotal.Add(1)
}

// IncRateLimited counts a request rejected with 429.
func IncRateLimited() {
	rateLimitedTotal.Add(1)
}

// ObserveAskDurationMs records an ask round trip in milliseconds.
func ObserveAskDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	askDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "ask_started_total", "Total ask rounds sent", askStartedTotal.Load())
	writeCounter(&buf, "ask_answered_total", "Total final answers received", askAnsweredTotal.Load())
	writeCounter(&buf, "ask_clarified_total", "Total clarification requests received", askClarifiedTotal.Load())
	writeCounter(&buf, "ask_failed_total", "Total failed ask rounds", askFailedTotal.Load())
	writeCounter(&buf, "dataset_uploads_total", "Total dataset uploads", datasetUploadsTotal.Load())
	writeCounter(&buf, "context_uploads_total", "Total context document uploads", contextUploadsTotal.Load())
	writeCounter(&buf, "upload_failures_total", "Total failed uploads", uploadFailuresTotal.Load())
	writeCounter(&buf, "voice_transcriptions_total", "Total voice transcriptions", transcriptionsTotal.Load())
	writeCounter(&buf, "voice_readbacks_total", "Total answer readbacks", readbacksTotal.Load())
	writeCounter(&buf, "remote_call_errors_total", "Total failed analytics API calls", remoteCallErrorsTotal.Load())
	writeCounter(&buf, "rate_limited_total", "Total requests rejected by the rate limiter", rateLimitedTotal.Load())
	writeHistogram(&buf, "ask_duration_ms", "Ask round trip in milliseconds", askDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe records value in the first bucket whose bound holds it; Render accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
