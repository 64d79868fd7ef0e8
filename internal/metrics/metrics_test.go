package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordDecryptIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(DecryptTotal.WithLabelValues("pkmsg", "ok"))
	RecordDecrypt("pkmsg", "ok")
	after := testutil.ToFloat64(DecryptTotal.WithLabelValues("pkmsg", "ok"))
	assert.Equal(t, before+1, after)
}

func TestUpdatePreKeysRemainingSetsGauge(t *testing.T) {
	UpdatePreKeysRemaining("inst-1", 7)
	assert.Equal(t, float64(7), testutil.ToFloat64(PreKeysRemaining.WithLabelValues("inst-1")))
}

func TestUpdateInstanceStatusIsExclusive(t *testing.T) {
	all := []string{"disconnected", "connecting", "qr_code", "connected"}
	UpdateInstanceStatus("inst-2", "connected", all)

	assert.Equal(t, float64(1), testutil.ToFloat64(InstanceStatus.WithLabelValues("inst-2", "connected")))
	assert.Equal(t, float64(0), testutil.ToFloat64(InstanceStatus.WithLabelValues("inst-2", "disconnected")))
}

func TestRecordSessionStoredLabelsBootstrap(t *testing.T) {
	before := testutil.ToFloat64(SessionsStoredTotal.WithLabelValues("true"))
	RecordSessionStored(true)
	assert.Equal(t, before+1, testutil.ToFloat64(SessionsStoredTotal.WithLabelValues("true")))
}
