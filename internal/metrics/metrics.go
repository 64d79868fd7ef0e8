// Package metrics exposes the Prometheus gauges and counters the core
// emits during pairing and message decryption, trimmed from the teacher's
// wider metrics surface to this service's own concerns.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PreKeysRemaining tracks available one-time pre-keys per instance,
	// the signal behind the prekeys.low event (spec §6).
	PreKeysRemaining = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wasubstrate_prekeys_remaining",
			Help: "Number of unused one-time pre-keys remaining per instance",
		},
		[]string{"instance_id"},
	)

	DecryptTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wasubstrate_decrypt_total",
			Help: "Total number of decrypt operations by node type and result",
		},
		[]string{"type", "result"}, // type: pkmsg/msg/plaintext/skmsg, result: ok, a DecryptError kind (Tampered/RatchetMismatch/NoSession/UnknownPreKey/UnsupportedType), or error
	)

	SessionsStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wasubstrate_sessions_stored_total",
			Help: "Total number of sessions persisted, by whether they were newly bootstrapped",
		},
		[]string{"bootstrap"}, // "true" on first pkmsg, "false" on ratchet continuation
	)

	IdentityChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wasubstrate_identity_changes_total",
			Help: "Total number of identity-key rows written per instance, first sightings included",
		},
		[]string{"instance_id"},
	)

	PairingAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wasubstrate_pairing_attempts_total",
			Help: "Total number of pair-success stanzas processed",
		},
		[]string{"result"}, // ok, a PairError kind (MalformedNode/BadHMAC/BadAccountSignature), or error
	)

	InstanceStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wasubstrate_instance_status",
			Help: "Current lifecycle status per instance (1 = current status, else 0)",
		},
		[]string{"instance_id", "status"},
	)

	FlushLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wasubstrate_store_flush_latency_seconds",
			Help:    "Latency of auth-state store flushes to the database",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
		[]string{"critical"}, // "true" for synchronous session/identity flush, "false" for debounced
	)
)

// Handler returns the Prometheus metrics HTTP handler; cmd/waservice
// mounts it at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDecrypt records the outcome of one C6 decrypt call.
func RecordDecrypt(nodeType, result string) {
	DecryptTotal.WithLabelValues(nodeType, result).Inc()
}

// RecordSessionStored records a session persist, tagged by whether it
// came from a fresh X3DH bootstrap or a ratchet continuation.
func RecordSessionStored(bootstrap bool) {
	SessionsStoredTotal.WithLabelValues(boolLabel(bootstrap)).Inc()
}

// RecordIdentityChange records one identity-key row written for
// instanceID; the identity flush calls it for every cached identity it
// upserts, first sightings included.
func RecordIdentityChange(instanceID string) {
	IdentityChangesTotal.WithLabelValues(instanceID).Inc()
}

// RecordPairingAttempt records the outcome of one C5 pairing attempt.
func RecordPairingAttempt(result string) {
	PairingAttemptsTotal.WithLabelValues(result).Inc()
}

// UpdatePreKeysRemaining sets the current available pre-key count.
func UpdatePreKeysRemaining(instanceID string, count uint32) {
	PreKeysRemaining.WithLabelValues(instanceID).Set(float64(count))
}

// UpdateInstanceStatus zeroes every known status gauge for instanceID and
// sets the current one, so a Grafana panel reads an exclusive state.
func UpdateInstanceStatus(instanceID, status string, allStatuses []string) {
	for _, s := range allStatuses {
		if s == status {
			InstanceStatus.WithLabelValues(instanceID, s).Set(1)
		} else {
			InstanceStatus.WithLabelValues(instanceID, s).Set(0)
		}
	}
}

// RecordFlushLatency records how long one store flush took.
func RecordFlushLatency(critical bool, seconds float64) {
	FlushLatency.WithLabelValues(boolLabel(critical)).Observe(seconds)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
