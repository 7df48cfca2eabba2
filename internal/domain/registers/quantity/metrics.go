package quantity

import (
	"time"

	"spcledger/internal/core/entity"
)

// Metrics receives register events. The Prometheus implementation lives in
// infrastructure/metrics.
type Metrics interface {
	MovementAppended(t entity.MovementType)
	LineSkipped(reason SkipReason)
	IdempotentHit()
	OverIssue()
	CorrectionsDetected(n int)
	BalanceRecalculated()
	BalanceDrifts(n int)
	ObserveReplay(d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) MovementAppended(entity.MovementType) {}
func (nopMetrics) LineSkipped(SkipReason)               {}
func (nopMetrics) IdempotentHit()                       {}
func (nopMetrics) OverIssue()                           {}
func (nopMetrics) CorrectionsDetected(int)              {}
func (nopMetrics) BalanceRecalculated()                 {}
func (nopMetrics) BalanceDrifts(int)                    {}
func (nopMetrics) ObserveReplay(time.Duration)          {}
