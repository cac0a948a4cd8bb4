package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type TxRejectedReason string

var (
	TxInvalidSignature   TxRejectedReason = "invalid_signature"
	TxMalformedRequest   TxRejectedReason = "malformed_request"
	TxInsufficientFunds  TxRejectedReason = "insufficient_funds"
	TxUnknownFamily      TxRejectedReason = "unknown_family"
	TxDuplicate          TxRejectedReason = "duplicate_transaction"
	TxUnauthorizedAccess TxRejectedReason = "unauthorized_address"
	TxInternal           TxRejectedReason = "internal"
	TxRejectedUnknown    TxRejectedReason = "other"
)

type walletPromMetrics struct {
	nodeUpUnixSeconds  prometheus.Gauge
	submittedBatches   prometheus.Counter
	appliedTxCount     *prometheus.CounterVec
	rejectedTxCount    *prometheus.CounterVec
	batchApplySeconds  prometheus.Histogram
	pendingBatches     prometheus.Gauge
	panicCount         prometheus.Counter
	clientSubmitErrors prometheus.Counter
}

func newWalletPromMetrics() *walletPromMetrics {
	return &walletPromMetrics{
		nodeUpUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "simplewallet_node_up_timestamp_unix_seconds",
				Help: "Unix timestamp of the node start",
			},
		),
		submittedBatches: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "simplewallet_submitted_batches_total",
				Help: "The total number of batches accepted for processing",
			},
		),
		appliedTxCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simplewallet_applied_tx_total",
				Help: "The total number of transactions applied to state",
			},
			[]string{"family"},
		),
		rejectedTxCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simplewallet_rejected_tx_total",
				Help: "The total number of rejected transactions",
			},
			[]string{"reason"},
		),
		batchApplySeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name: "simplewallet_batch_apply_seconds",
				Help: "Latency in second to validate and commit one batch",
			},
		),
		pendingBatches: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "simplewallet_pending_batches",
				Help: "Batches accepted but not yet applied",
			},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "simplewallet_panic_total",
				Help: "The total number of recovered panics",
			},
		),
		clientSubmitErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "simplewallet_client_submit_errors_total",
				Help: "Submission attempts that failed at transport level",
			},
		),
	}
}

var (
	initOnce      sync.Once
	walletMetrics *walletPromMetrics
)

// InitMetrics registers the collectors once; every recorder calls it so tests need no setup
func InitMetrics() {
	initOnce.Do(func() {
		walletMetrics = newWalletPromMetrics()
		walletMetrics.nodeUpUnixSeconds.SetToCurrentTime()
	})
}

func metrics() *walletPromMetrics {
	InitMetrics()
	return walletMetrics
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

func IncreaseSubmittedBatches(n int) {
	metrics().submittedBatches.Add(float64(n))
}

func RecordAppliedTx(family string) {
	metrics().appliedTxCount.With(prometheus.Labels{"family": family}).Inc()
}

func RecordRejectedTx(reason TxRejectedReason) {
	metrics().rejectedTxCount.With(prometheus.Labels{
		"reason": string(reason),
	}).Inc()
}

func RecordBatchApply(duration time.Duration) {
	metrics().batchApplySeconds.Observe(duration.Seconds())
}

func SetPendingBatches(n int) {
	metrics().pendingBatches.Set(float64(n))
}

func IncreasePanicCount() {
	metrics().panicCount.Inc()
}

func IncreaseClientSubmitErrors() {
	metrics().clientSubmitErrors.Inc()
}
