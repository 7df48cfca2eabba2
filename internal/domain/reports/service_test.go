package reports_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spcledger/internal/core/id"
	"spcledger/internal/core/types"
	"spcledger/internal/domain/ledger"
	"spcledger/internal/domain/registers/quantity"
	"spcledger/internal/domain/reports"
	"spcledger/internal/infrastructure/storage/memory"
)

type env struct {
	ctx       context.Context
	store     *memory.Store
	registers *quantity.Service
	reports   *reports.Service
	company   id.ID
	materials ledger.Account
	goods     ledger.Account
	spare     ledger.Account
	supplier  ledger.Account
	expense   ledger.Account
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.New()
	company := id.New()
	e := &env{
		ctx:       context.Background(),
		store:     store,
		company:   company,
		materials: ledger.Account{ID: id.New(), CompanyID: company, Code: "304", Name: "Materials", SupportsQuantities: true},
		goods:     ledger.Account{ID: id.New(), CompanyID: company, Code: "302", Name: "Goods", SupportsQuantities: true},
		spare:     ledger.Account{ID: id.New(), CompanyID: company, Code: "303", Name: "Spare parts", SupportsQuantities: true},
		supplier:  ledger.Account{ID: id.New(), CompanyID: company, Code: "401", Name: "Suppliers"},
		expense:   ledger.Account{ID: id.New(), CompanyID: company, Code: "601", Name: "Material expenses"},
	}
	for _, a := range []ledger.Account{e.materials, e.goods, e.spare, e.supplier, e.expense} {
		store.AddAccount(a)
	}
	e.registers = quantity.NewService(store, store, store, store)
	e.reports = reports.NewService(store, store, store, reports.OpeningFromSnapshot)
	return e
}

func day(n int) time.Time {
	return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC)
}

func d(s string) types.Money { return types.MustMoney(s) }

// post writes a two-line entry and processes the quantity line.
func (e *env) post(t *testing.T, account ledger.Account, receipt bool, date time.Time, qty, amount string) {
	t.Helper()
	q := d(qty)
	entry := id.New()
	line := ledger.EntryLine{
		ID: id.New(), CompanyID: e.company, JournalEntryID: entry, AccountID: account.ID,
		DebitAmount: types.Zero(), CreditAmount: types.Zero(), Quantity: &q, MovementDate: date, LineNumber: 1,
	}
	counter := ledger.EntryLine{
		ID: id.New(), CompanyID: e.company, JournalEntryID: entry,
		DebitAmount: types.Zero(), CreditAmount: types.Zero(), MovementDate: date, LineNumber: 2,
	}
	if receipt {
		line.DebitAmount, counter.CreditAmount, counter.AccountID = d(amount), d(amount), e.supplier.ID
	} else {
		line.CreditAmount, counter.DebitAmount, counter.AccountID = d(amount), d(amount), e.expense.ID
	}
	e.store.PostLines(line, counter)

	_, err := e.registers.ProcessEntryLine(e.ctx, line.ID)
	require.NoError(t, err)
}

func (e *env) turnover(t *testing.T, from, to time.Time, mode reports.OpeningMode) *reports.TurnoverReport {
	t.Helper()
	report, err := e.reports.QuantityTurnover(e.ctx, reports.TurnoverFilter{
		CompanyID: e.company,
		FromDate:  from,
		ToDate:    to,
		Opening:   mode,
	})
	require.NoError(t, err)
	return report
}

func assertDec(t *testing.T, want string, got types.Money, field string) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "%s: got %s want %s", field, got, want)
}

func TestQuantityTurnover_ExampleA(t *testing.T) {
	e := newEnv(t)
	e.post(t, e.materials, true, day(1), "100", "1000")
	e.post(t, e.materials, true, day(2), "50", "650")
	e.post(t, e.materials, false, day(5), "60", "660")
	e.post(t, e.goods, true, day(1), "5", "75")

	report := e.turnover(t, day(3), day(31), "")
	assert.Equal(t, reports.OpeningFromSnapshot, report.Opening)
	require.Len(t, report.Rows, 2, "spare parts without balance or activity must be omitted")

	// goods carry a balance without activity and sort before materials
	goods := report.Rows[0]
	assert.Equal(t, "302", goods.AccountCode)
	assert.Equal(t, "Goods", goods.AccountName)
	assertDec(t, "5", goods.OpeningQuantity, "goods opening quantity")
	assertDec(t, "75", goods.OpeningAmount, "goods opening amount")
	assertDec(t, "0", goods.ReceiptAmount, "goods receipts")
	assertDec(t, "75", goods.ClosingAmount, "goods closing amount")

	materials := report.Rows[1]
	assert.Equal(t, "304", materials.AccountCode)
	assertDec(t, "150", materials.OpeningQuantity, "opening quantity")
	assertDec(t, "1650", materials.OpeningAmount, "opening amount")
	assertDec(t, "0", materials.ReceiptQuantity, "receipt quantity")
	assertDec(t, "60", materials.IssueQuantity, "issue quantity")
	assertDec(t, "660", materials.IssueAmount, "issue amount")
	assertDec(t, "90", materials.ClosingQuantity, "closing quantity")
	assertDec(t, "990", materials.ClosingAmount, "closing amount")

	assertDec(t, "1725", report.Totals.OpeningAmount, "total opening")
	assertDec(t, "0", report.Totals.ReceiptAmount, "total receipts")
	assertDec(t, "660", report.Totals.IssueAmount, "total issues")
	assertDec(t, "1065", report.Totals.ClosingAmount, "total closing")
}

func TestQuantityTurnover_ClosingIdentity(t *testing.T) {
	e := newEnv(t)
	e.post(t, e.materials, true, day(1), "100", "1000")
	e.post(t, e.materials, true, day(2), "50", "650")
	e.post(t, e.materials, false, day(5), "60", "660")
	e.post(t, e.materials, true, day(9), "30", "345")
	e.post(t, e.materials, false, day(12), "45", "100")

	for _, tt := range []struct {
		name     string
		from, to int
	}{
		{"whole month", 1, 31},
		{"first week", 1, 7},
		{"middle", 5, 9},
		{"after activity", 20, 31},
	} {
		t.Run(tt.name, func(t *testing.T) {
			report := e.turnover(t, day(tt.from), day(tt.to), "")
			for _, r := range report.Rows {
				assert.True(t, r.ClosingQuantity.Equal(r.OpeningQuantity.Add(r.ReceiptQuantity).Sub(r.IssueQuantity)))
				assert.True(t, r.ClosingAmount.Equal(r.OpeningAmount.Add(r.ReceiptAmount).Sub(r.IssueAmount)))
			}
		})
	}

	// the closing of one period is the opening of the next
	first := e.turnover(t, day(1), day(7), "")
	second := e.turnover(t, day(8), day(31), "")
	require.Len(t, first.Rows, 1)
	require.Len(t, second.Rows, 1)
	assert.True(t, first.Rows[0].ClosingQuantity.Equal(second.Rows[0].OpeningQuantity))
	assert.True(t, first.Rows[0].ClosingAmount.Equal(second.Rows[0].OpeningAmount))
}

func TestQuantityTurnover_OpeningModesAfterBackDatedReceipt(t *testing.T) {
	e := newEnv(t)
	e.post(t, e.materials, true, day(1), "100", "1000")
	e.post(t, e.materials, true, day(2), "50", "650")
	e.post(t, e.materials, false, day(5), "60", "660")
	e.post(t, e.materials, true, day(3), "50", "400")

	for _, mode := range []reports.OpeningMode{reports.OpeningFromSnapshot, reports.OpeningFromReplay} {
		t.Run(string(mode), func(t *testing.T) {
			report := e.turnover(t, day(4), day(31), mode)
			assert.Equal(t, mode, report.Opening)
			require.Len(t, report.Rows, 1)

			r := report.Rows[0]
			// 100 @ 10, 50 @ 13 and the day-3 receipt of 50 @ 8 are all on hand
			assertDec(t, "200", r.OpeningQuantity, "opening quantity")
			assertDec(t, "2050", r.OpeningAmount, "opening amount")
			assertDec(t, "60", r.IssueQuantity, "issue quantity")
			// revalued at 10.25 against the 11.00 it was booked at
			assertDec(t, "615", r.IssueAmount, "issue amount")
			assertDec(t, "660", r.BookedIssueAmount, "booked issue amount")
			assertDec(t, "140", r.ClosingQuantity, "closing quantity")
			assertDec(t, "1435", r.ClosingAmount, "closing amount")
		})
	}
}

func TestQuantityTurnover_ClosingIndependentOfPeriodStart(t *testing.T) {
	e := newEnv(t)
	e.post(t, e.materials, true, day(1), "100", "1000")
	e.post(t, e.materials, true, day(2), "50", "650")
	e.post(t, e.materials, false, day(5), "60", "660")
	e.post(t, e.materials, true, day(3), "50", "400")
	e.post(t, e.materials, false, day(3), "20", "205")

	for _, mode := range []reports.OpeningMode{reports.OpeningFromSnapshot, reports.OpeningFromReplay} {
		for _, from := range []int{1, 2, 3, 4, 5, 6, 31} {
			report := e.turnover(t, day(from), day(31), mode)
			require.Len(t, report.Rows, 1, "%s from day %d", mode, from)
			r := report.Rows[0]
			assertDec(t, "120", r.ClosingQuantity, "closing quantity")
			// 200 @ 10.25 after day 3; the issues of 20 and 60 leave 120
			assertDec(t, "1230", r.ClosingAmount, "closing amount")
			assert.True(t, r.ClosingAmount.Equal(r.OpeningAmount.Add(r.ReceiptAmount).Sub(r.IssueAmount)),
				"%s from day %d breaks the closing identity", mode, from)
		}
	}
}

func TestQuantityTurnover_AccountFilter(t *testing.T) {
	e := newEnv(t)
	e.post(t, e.materials, true, day(1), "100", "1000")
	e.post(t, e.goods, true, day(1), "5", "75")

	report, err := e.reports.QuantityTurnover(e.ctx, reports.TurnoverFilter{
		CompanyID:  e.company,
		FromDate:   day(1),
		ToDate:     day(31),
		AccountIDs: []id.ID{e.goods.ID},
	})
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, e.goods.ID, report.Rows[0].AccountID)
}

func TestQuantityTurnover_Validation(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name   string
		filter reports.TurnoverFilter
	}{
		{"missing company", reports.TurnoverFilter{FromDate: day(1), ToDate: day(2)}},
		{"missing period", reports.TurnoverFilter{CompanyID: e.company}},
		{"inverted period", reports.TurnoverFilter{CompanyID: e.company, FromDate: day(5), ToDate: day(1)}},
		{"unknown opening mode", reports.TurnoverFilter{CompanyID: e.company, FromDate: day(1), ToDate: day(2), Opening: "guess"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.reports.QuantityTurnover(e.ctx, tt.filter)
			assert.Error(t, err)
		})
	}
}

func TestQuantityTurnover_EmptyCompany(t *testing.T) {
	e := newEnv(t)
	report := e.turnover(t, day(1), day(31), "")
	assert.Empty(t, report.Rows)
	assertDec(t, "0", report.Totals.ClosingAmount, "total closing")
}
