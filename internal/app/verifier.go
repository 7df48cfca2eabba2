package app

import (
	"context"
	"fmt"
	"time"

	appctx "spcledger/internal/core/context"
	"spcledger/internal/core/id"
	"spcledger/internal/domain/registers/quantity"
	"spcledger/pkg/logger"
)

// Verifier periodically compares live balances with a replay of their movements.
type Verifier struct {
	service    *quantity.Service
	companies  []id.ID
	autoRepair bool
	log        *logger.Logger
}

// NewVerifier creates a verifier for the given companies.
func NewVerifier(service *quantity.Service, companies []id.ID, autoRepair bool, log *logger.Logger) *Verifier {
	return &Verifier{
		service:    service,
		companies:  companies,
		autoRepair: autoRepair,
		log:        log.WithComponent("verifier"),
	}
}

// ParseCompanies parses configured company ids.
func ParseCompanies(raw []string) ([]id.ID, error) {
	companies, err := id.ParseList(raw)
	if err != nil {
		return nil, fmt.Errorf("verify.companies: %w", err)
	}
	return companies, nil
}

// VerifyOnce checks every company and returns the number of drifted balances.
// A failing company is logged and does not stop the others.
func (v *Verifier) VerifyOnce(ctx context.Context) int {
	ctx = appctx.WithTrace(ctx, appctx.NewJobTrace(appctx.OriginVerifier))
	total := 0
	for _, companyID := range v.companies {
		ctx := appctx.WithCompany(ctx, companyID)
		log := v.log.WithContext(ctx)

		drifts, err := v.service.VerifyBalances(ctx, companyID)
		if err != nil {
			log.Errorw("balance verification failed", "error", err)
			continue
		}
		total += len(drifts)
		if len(drifts) == 0 {
			continue
		}

		for _, d := range drifts {
			log.Warnw("balance drift",
				"account_id", d.Key.AccountID,
				"stored_amount", d.Stored.Amount,
				"replayed_amount", d.Replayed.Amount,
				"consistent", d.Consistent,
			)
		}
		if !v.autoRepair {
			continue
		}
		if err := v.service.RepairBalances(ctx, drifts); err != nil {
			log.Errorw("balance repair failed", "error", err)
			continue
		}
		log.Infow("balances repaired", "count", len(drifts))
	}
	return total
}

// Run verifies every interval until ctx is done.
func (v *Verifier) Run(ctx context.Context, interval time.Duration) {
	if len(v.companies) == 0 {
		v.log.Infow("no companies configured, balance verification disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		v.VerifyOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
