package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"spcledger/internal/core/id"
	"spcledger/internal/domain/ledger"
)

// JournalEntry is a posted journal entry with its lines, as loaded by JournalLoader.
type JournalEntry struct {
	ID          id.ID
	CompanyID   id.ID
	Date        time.Time
	Description string
	Lines       []ledger.EntryLine
}

var (
	accountCopyColumns = []string{"id", "company_id", "code", "name", "supports_quantities"}
	entryCopyColumns   = []string{"id", "company_id", "entry_date", "description"}
	lineCopyColumns    = []string{
		"id", "journal_entry_id", "account_id", "line_number",
		"debit_amount", "credit_amount", "quantity", "unit_of_measure",
	}
)

// JournalLoader bulk-loads chart of accounts and journal entries with the COPY
// protocol. It stands in for the posting engine in standalone deployments,
// seeding and tests.
type JournalLoader struct {
	txm *TxManager
}

// NewJournalLoader creates a loader.
func NewJournalLoader(txm *TxManager) *JournalLoader {
	return &JournalLoader{txm: txm}
}

// LoadAccounts copies accounts in one transaction.
func (l *JournalLoader) LoadAccounts(ctx context.Context, accounts []ledger.Account) (int64, error) {
	var n int64
	err := l.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		n, err = l.copy(ctx, "accounts", accountCopyColumns, accountRows(accounts))
		return err
	})
	return n, err
}

// LoadEntries copies journal entries and their lines in one transaction and
// returns the number of lines written.
func (l *JournalLoader) LoadEntries(ctx context.Context, entries []JournalEntry) (int64, error) {
	var n int64
	err := l.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		entryRows, lineRows := journalRows(entries)
		if _, err := l.copy(ctx, "journal_entries", entryCopyColumns, entryRows); err != nil {
			return err
		}
		var err error
		n, err = l.copy(ctx, "entry_lines", lineCopyColumns, lineRows)
		return err
	})
	return n, err
}

func (l *JournalLoader) copy(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	tx := l.txm.GetTx(ctx)
	if tx == nil {
		return 0, fmt.Errorf("copy into %s requires transaction context", table)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

func accountRows(accounts []ledger.Account) [][]any {
	rows := make([][]any, len(accounts))
	for i, a := range accounts {
		rows[i] = []any{a.ID, a.CompanyID, a.Code, a.Name, a.SupportsQuantities}
	}
	return rows
}

// journalRows flattens entries. Line numbers default to the position within
// the entry; the entry date is the movement date of every line.
func journalRows(entries []JournalEntry) (entryRows, lineRows [][]any) {
	entryRows = make([][]any, len(entries))
	for i, e := range entries {
		entryRows[i] = []any{e.ID, e.CompanyID, e.Date, e.Description}
		for j, line := range e.Lines {
			number := line.LineNumber
			if number == 0 {
				number = j + 1
			}
			lineRows = append(lineRows, []any{
				line.ID, e.ID, line.AccountID, number,
				line.DebitAmount, line.CreditAmount, line.Quantity, line.UnitOfMeasure,
			})
		}
	}
	return entryRows, lineRows
}
