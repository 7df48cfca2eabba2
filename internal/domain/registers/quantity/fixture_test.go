package quantity_test

import (
	"context"
	"testing"
	"time"

	"spcledger/internal/core/entity"
	"spcledger/internal/core/id"
	"spcledger/internal/core/types"
	"spcledger/internal/domain/ledger"
	"spcledger/internal/domain/registers/quantity"
	"spcledger/internal/infrastructure/storage/memory"
)

// fixture is a company with a material account (304), a supplier account (401)
// and an expense account (601) posted through the in-memory journal.
type fixture struct {
	ctx      context.Context
	store    *memory.Store
	svc      *quantity.Service
	company  id.ID
	material ledger.Account
	supplier ledger.Account
	expense  ledger.Account
}

func newFixture(t *testing.T, opts ...quantity.Option) *fixture {
	t.Helper()

	store := memory.New()
	company := id.New()
	f := &fixture{
		ctx:      context.Background(),
		store:    store,
		company:  company,
		material: ledger.Account{ID: id.New(), CompanyID: company, Code: "304", Name: "Materials", SupportsQuantities: true},
		supplier: ledger.Account{ID: id.New(), CompanyID: company, Code: "401", Name: "Suppliers"},
		expense:  ledger.Account{ID: id.New(), CompanyID: company, Code: "601", Name: "Material expenses"},
	}
	store.AddAccount(f.material)
	store.AddAccount(f.supplier)
	store.AddAccount(f.expense)

	opts = append([]quantity.Option{quantity.WithCorrectionSink(store)}, opts...)
	f.svc = quantity.NewService(store, store, store, store, opts...)
	return f
}

func (f *fixture) key() entity.AccountKey {
	return entity.AccountKey{CompanyID: f.company, AccountID: f.material.ID}
}

func day(n int) time.Time {
	return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC)
}

func d(s string) types.Money { return types.MustMoney(s) }

func qtyPtr(s string) *types.Quantity {
	q := d(s)
	return &q
}

// postReceipt posts "Dt material / Ct supplier" and returns the journal entry and material line ids.
func (f *fixture) postReceipt(date time.Time, qty, amount string) (journalEntryID, lineID id.ID) {
	journalEntryID, lineID = id.New(), id.New()
	f.store.PostLines(
		ledger.EntryLine{
			ID: lineID, CompanyID: f.company, JournalEntryID: journalEntryID, AccountID: f.material.ID,
			DebitAmount: d(amount), CreditAmount: types.Zero(), Quantity: qtyPtr(qty), MovementDate: date, LineNumber: 1,
		},
		ledger.EntryLine{
			ID: id.New(), CompanyID: f.company, JournalEntryID: journalEntryID, AccountID: f.supplier.ID,
			DebitAmount: types.Zero(), CreditAmount: d(amount), MovementDate: date, LineNumber: 2,
		},
	)
	return journalEntryID, lineID
}

// postIssue posts "Dt expense / Ct material" and returns the journal entry and material line ids.
func (f *fixture) postIssue(date time.Time, qty, amount string) (journalEntryID, lineID id.ID) {
	journalEntryID, lineID = id.New(), id.New()
	f.store.PostLines(
		ledger.EntryLine{
			ID: id.New(), CompanyID: f.company, JournalEntryID: journalEntryID, AccountID: f.expense.ID,
			DebitAmount: d(amount), CreditAmount: types.Zero(), MovementDate: date, LineNumber: 1,
		},
		ledger.EntryLine{
			ID: lineID, CompanyID: f.company, JournalEntryID: journalEntryID, AccountID: f.material.ID,
			DebitAmount: types.Zero(), CreditAmount: d(amount), Quantity: qtyPtr(qty), MovementDate: date, LineNumber: 2,
		},
	)
	return journalEntryID, lineID
}

func (f *fixture) process(t *testing.T, lineID id.ID) quantity.Result {
	t.Helper()
	res, err := f.svc.ProcessEntryLine(f.ctx, lineID)
	if err != nil {
		t.Fatalf("ProcessEntryLine(%s): %v", lineID, err)
	}
	return res
}

// exampleA posts and processes: receipt 100 @ 10, receipt 50 @ 13, issue 60 on day 5.
func (f *fixture) exampleA(t *testing.T) (issueEntry id.ID) {
	t.Helper()
	_, l1 := f.postReceipt(day(1), "100", "1000")
	_, l2 := f.postReceipt(day(2), "50", "650")
	issueEntry, l3 := f.postIssue(day(5), "60", "660")
	f.process(t, l1)
	f.process(t, l2)
	f.process(t, l3)
	return issueEntry
}
