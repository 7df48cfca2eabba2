// Package ledger_repo reads the double-entry journal owned by the posting
// engine: accounts, journal entries and their lines. It never writes.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"spcledger/internal/core/apperror"
	"spcledger/internal/core/id"
	"spcledger/internal/domain/ledger"
	"spcledger/internal/infrastructure/storage/postgres"
)

var entryLineColumns = []string{
	"l.id", "e.company_id", "l.journal_entry_id", "l.account_id",
	"l.debit_amount", "l.credit_amount", "l.quantity", "l.unit_of_measure",
	"e.entry_date AS movement_date", "l.line_number",
}

var accountColumns = []string{"id", "company_id", "code", "name", "supports_quantities"}

// JournalRepo implements ledger.EntryLineReader and ledger.AccountReader.
type JournalRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var (
	_ ledger.EntryLineReader = (*JournalRepo)(nil)
	_ ledger.AccountReader   = (*JournalRepo)(nil)
)

// NewJournalRepo creates a journal reader.
func NewJournalRepo(txm *postgres.TxManager) *JournalRepo {
	return &JournalRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *JournalRepo) entryLines() squirrel.SelectBuilder {
	return r.builder.Select(entryLineColumns...).
		From("entry_lines l").
		Join("journal_entries e ON e.id = l.journal_entry_id")
}

// GetEntryLine returns one posted line with its entry's date and company.
func (r *JournalRepo) GetEntryLine(ctx context.Context, lineID id.ID) (*ledger.EntryLine, error) {
	sql, args, err := r.entryLines().Where(squirrel.Eq{"l.id": lineID}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var line ledger.EntryLine
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &line, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("entry_line", lineID)
		}
		return nil, apperror.NewDatabase("get entry line", err)
	}
	return &line, nil
}

// ListEntryLines returns the lines of a journal entry in line order.
func (r *JournalRepo) ListEntryLines(ctx context.Context, journalEntryID id.ID) ([]ledger.EntryLine, error) {
	sql, args, err := r.entryLines().
		Where(squirrel.Eq{"l.journal_entry_id": journalEntryID}).
		OrderBy("l.line_number", "l.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []ledger.EntryLine
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &lines, sql, args...); err != nil {
		return nil, apperror.NewDatabase("select entry lines", err)
	}
	return lines, nil
}

// GetAccount returns one account.
func (r *JournalRepo) GetAccount(ctx context.Context, accountID id.ID) (*ledger.Account, error) {
	sql, args, err := r.builder.Select(accountColumns...).
		From("accounts").
		Where(squirrel.Eq{"id": accountID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var a ledger.Account
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &a, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("account", accountID)
		}
		return nil, apperror.NewDatabase("get account", err)
	}
	return &a, nil
}

// ListAccounts returns the company's accounts among ids.
func (r *JournalRepo) ListAccounts(ctx context.Context, companyID id.ID, ids []id.ID) ([]ledger.Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sql, args, err := r.builder.Select(accountColumns...).
		From("accounts").
		Where(squirrel.Eq{"company_id": companyID, "id": ids}).
		OrderBy("code").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var accounts []ledger.Account
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &accounts, sql, args...); err != nil {
		return nil, apperror.NewDatabase("select accounts", err)
	}
	return accounts, nil
}
