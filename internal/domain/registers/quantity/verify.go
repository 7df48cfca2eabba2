package quantity

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"spcledger/internal/core/entity"
	"spcledger/internal/core/id"
	"spcledger/pkg/logger"
)

// verifyConcurrency bounds parallel replays in VerifyBalances.
const verifyConcurrency = 8

// Drift is a balance row that disagrees with a full replay of its movements.
type Drift struct {
	Key      entity.AccountKey `json:"key"`
	Stored   Position          `json:"stored"`
	Replayed Position          `json:"replayed"`
	// Consistent is false when the stored row violates amount ≈ quantity × average cost.
	Consistent bool `json:"consistent"`
}

// VerifyBalances replays every account of the company and reports balances
// that differ from replay. The service keeps both in step, so a drift means the
// balance row was written some other way.
func (s *Service) VerifyBalances(ctx context.Context, companyID id.ID) ([]Drift, error) {
	keys, err := s.repo.ListAccountKeys(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list account keys: %w", err)
	}

	var (
		mu     sync.Mutex
		drifts []Drift
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(verifyConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			drift, ok, err := s.verifyKey(gctx, key)
			if err != nil {
				return fmt.Errorf("verify %s: %w", key, err)
			}
			if ok {
				return nil
			}
			mu.Lock()
			drifts = append(drifts, drift)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortDrifts(drifts)
	s.metrics.BalanceDrifts(len(drifts))
	if len(drifts) > 0 {
		logger.Warn(ctx, "balance drift detected",
			"accounts", len(keys),
			"drifts", len(drifts),
		)
	}
	return drifts, nil
}

func (s *Service) verifyKey(ctx context.Context, key entity.AccountKey) (Drift, bool, error) {
	var (
		balance   *entity.QuantityBalance
		movements []entity.QuantityMovement
	)
	err := s.readOnly(ctx, func(ctx context.Context) error {
		var err error
		balance, err = s.GetBalance(ctx, key)
		if err != nil {
			return err
		}
		movements, err = s.repo.ListMovements(ctx, ForKey(key))
		return err
	})
	if err != nil {
		return Drift{}, false, err
	}

	stored := PositionOf(balance)
	replayed := Replay(movements)
	consistent := balance.Consistent()
	if stored.Equal(replayed) && consistent {
		return Drift{}, true, nil
	}
	return Drift{Key: key, Stored: stored, Replayed: replayed, Consistent: consistent}, false, nil
}

func sortDrifts(drifts []Drift) {
	sort.Slice(drifts, func(i, j int) bool {
		return drifts[i].Key.String() < drifts[j].Key.String()
	})
}

// RepairBalances recalculates every drifted balance.
func (s *Service) RepairBalances(ctx context.Context, drifts []Drift) error {
	for _, d := range drifts {
		if _, err := s.RecalculateBalance(ctx, d.Key); err != nil {
			return fmt.Errorf("repair %s: %w", d.Key, err)
		}
	}
	return nil
}
