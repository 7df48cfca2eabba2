package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spcledger/internal/core/entity"
	"spcledger/internal/domain/registers/quantity"
)

func TestRecorder_QuantityEvents(t *testing.T) {
	r := New()

	r.MovementAppended(entity.MovementReceipt)
	r.MovementAppended(entity.MovementReceipt)
	r.MovementAppended(entity.MovementIssue)
	r.LineSkipped(quantity.ReasonNoQuantity)
	r.IdempotentHit()
	r.OverIssue()
	r.CorrectionsDetected(3)
	r.BalanceRecalculated()
	r.BalanceDrifts(2)
	r.BalanceDrifts(0)
	r.ObserveReplay(time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.movementsTotal.WithLabelValues("RECEIPT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.movementsTotal.WithLabelValues("ISSUE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.linesSkippedTotal.WithLabelValues("no_quantity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.idempotentHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.overIssuesTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.correctionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.recalculationsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.balanceDrifts))
	assert.Equal(t, 1, testutil.CollectAndCount(r.replayDuration))
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.ObserveRequest("/api/v1/quantity/balances", http.MethodGet, http.StatusOK, 5*time.Millisecond)
	r.MovementAppended(entity.MovementIssue)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `spcledger_quantity_movements_appended_total{type="ISSUE"} 1`))
	assert.True(t, strings.Contains(body, `spcledger_http_requests_total{method="GET",route="/api/v1/quantity/balances",status="200"} 1`))
}
