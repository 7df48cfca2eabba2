package quantity_test

import (
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spcledger/internal/core/id"
	"spcledger/internal/domain/registers/quantity"
	"spcledger/internal/domain/reports"
)

// TestRandomLedger_ReplayMatchesLiveBalance posts random in-order receipts and
// issues and checks the balance against a full replay after every step.
func TestRandomLedger_ReplayMatchesLiveBalance(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			faker := gofakeit.New(seed)
			f := newFixture(t)

			onHand := 0
			for step := 0; step < 60; step++ {
				date := day(1 + step/3)
				var line id.ID
				if onHand == 0 || faker.Float64() < 0.55 {
					qty := faker.IntRange(1, 50)
					price := faker.Price(1, 40)
					amount := fmt.Sprintf("%.2f", float64(qty)*price)
					_, line = f.postReceipt(date, fmt.Sprint(qty), amount)
					onHand += qty
				} else {
					qty := faker.IntRange(1, onHand)
					_, line = f.postIssue(date, fmt.Sprint(qty), "1")
					onHand -= qty
				}

				res := f.process(t, line)
				require.Equal(t, quantity.OutcomeAppended, res.Outcome)
				require.False(t, res.BackDated)

				b := res.Balance
				assert.True(t, b.Consistent(), "step %d: inconsistent balance %s / %s / %s",
					step, b.CurrentQuantity, b.CurrentAmount, b.CurrentAverageCost)
				assert.Equal(t, int64(onHand), b.CurrentQuantity.IntPart())
			}

			movements, err := f.svc.ListMovements(f.ctx, quantity.ForKey(f.key()))
			require.NoError(t, err)
			b, err := f.svc.GetBalance(f.ctx, f.key())
			require.NoError(t, err)

			replayed := quantity.Replay(movements)
			assert.True(t, replayed.Equal(quantity.PositionOf(b)), "replay %+v differs from live %+v", replayed, quantity.PositionOf(b))

			drifts, err := f.svc.VerifyBalances(f.ctx, f.company)
			require.NoError(t, err)
			assert.Empty(t, drifts)
		})
	}
}

// TestRandomLedger_OutOfOrderMatchesReplay posts receipts and issues with random
// dates, so many of them land before movements already on the ledger.
func TestRandomLedger_OutOfOrderMatchesReplay(t *testing.T) {
	for seed := uint64(11); seed <= 15; seed++ {
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			faker := gofakeit.New(seed)
			f := newFixture(t)
			turnover := reports.NewService(f.store, f.store, f.store, reports.OpeningFromSnapshot)

			backDated := 0
			for step := 0; step < 50; step++ {
				date := day(faker.IntRange(1, 20))
				var line id.ID
				if step < 3 || faker.Float64() < 0.6 {
					qty := faker.IntRange(1, 50)
					price := faker.Price(1, 40)
					amount := fmt.Sprintf("%.2f", float64(qty)*price)
					_, line = f.postReceipt(date, fmt.Sprint(qty), amount)
				} else {
					_, line = f.postIssue(date, fmt.Sprint(faker.IntRange(1, 20)), "1")
				}

				res := f.process(t, line)
				require.Equal(t, quantity.OutcomeAppended, res.Outcome)
				if res.BackDated {
					backDated++
				}

				movements, err := f.svc.ListMovements(f.ctx, quantity.ForKey(f.key()))
				require.NoError(t, err)
				replayed := quantity.Replay(movements)
				live := quantity.PositionOf(res.Balance)
				require.True(t, replayed.Equal(live), "step %d: replay %+v differs from live %+v", step, replayed, live)
			}
			require.Positive(t, backDated, "seed produced no back-dated movement")

			movements, err := f.svc.ListMovements(f.ctx, quantity.ForKey(f.key()))
			require.NoError(t, err)
			pos := quantity.ZeroPosition()
			for i := range movements {
				pos = pos.ApplyMovement(&movements[i])
				assert.True(t, pos.Quantity.Equal(movements[i].BalanceAfterQuantity), "movement %d: stale running quantity", i)
				assert.True(t, pos.Amount.Equal(movements[i].BalanceAfterAmount), "movement %d: stale running amount", i)
			}

			for _, mode := range []reports.OpeningMode{reports.OpeningFromSnapshot, reports.OpeningFromReplay} {
				for from := 1; from <= 20; from++ {
					report, err := turnover.QuantityTurnover(f.ctx, reports.TurnoverFilter{
						CompanyID: f.company,
						FromDate:  day(from),
						ToDate:    day(20),
						Opening:   mode,
					})
					require.NoError(t, err)
					if len(report.Rows) == 0 {
						assert.True(t, pos.Quantity.IsZero() && pos.Amount.IsZero(), "%s from day %d: row missing", mode, from)
						continue
					}
					require.Len(t, report.Rows, 1)
					r := report.Rows[0]
					assert.True(t, pos.Quantity.Equal(r.ClosingQuantity), "%s from day %d: closing quantity %s want %s", mode, from, r.ClosingQuantity, pos.Quantity)
					assert.True(t, pos.Amount.Equal(r.ClosingAmount), "%s from day %d: closing amount %s want %s", mode, from, r.ClosingAmount, pos.Amount)
					assert.True(t, r.ClosingQuantity.Equal(r.OpeningQuantity.Add(r.ReceiptQuantity).Sub(r.IssueQuantity)),
						"%s from day %d: quantity identity", mode, from)
				}
			}
		})
	}
}
