// Package register_repo provides the PostgreSQL quantity register repository.
package register_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/cespare/xxhash/v2"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"spcledger/internal/core/apperror"
	"spcledger/internal/core/entity"
	"spcledger/internal/core/id"
	"spcledger/internal/domain/registers/quantity"
	"spcledger/internal/infrastructure/storage/postgres"
)

const (
	movementsTable = "quantity_movements"
	balancesTable  = "quantity_balances"

	uniqueViolation = "23505"
)

var (
	movementColumns = postgres.DBColumns[entity.QuantityMovement]()
	balanceColumns  = postgres.DBColumns[entity.QuantityBalance]()
)

// QuantityRepo implements quantity.Repository.
type QuantityRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ quantity.Repository = (*QuantityRepo)(nil)

// NewQuantityRepo creates a new quantity register repository.
func NewQuantityRepo(txm *postgres.TxManager) *QuantityRepo {
	return &QuantityRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// advisoryKey maps an account key onto the bigint space of pg advisory locks.
func advisoryKey(key entity.AccountKey) int64 {
	return int64(xxhash.Sum64String(key.String()))
}

// LockAccount takes a transaction-scoped advisory lock on the key. It also
// serializes the first movement of an account, when no balance row exists yet
// for FOR UPDATE to lock.
func (r *QuantityRepo) LockAccount(ctx context.Context, key entity.AccountKey) error {
	if r.txm.GetTx(ctx) == nil {
		return fmt.Errorf("lock account %s: no transaction in context", key)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryKey(key)); err != nil {
		return apperror.NewDatabase("advisory lock", err)
	}
	return nil
}

// CreateMovement appends one movement.
func (r *QuantityRepo) CreateMovement(ctx context.Context, m *entity.QuantityMovement) error {
	if err := m.Validate(); err != nil {
		return apperror.NewValidation(err.Error())
	}

	sql, args, err := r.builder.Insert(movementsTable).
		Columns(movementColumns...).
		Values(postgres.DBValues(m, movementColumns)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperror.NewConcurrentModification("quantity_movement", m.EntryLineID).WithCause(err)
		}
		return apperror.NewDatabase("insert movement", err)
	}
	return nil
}

// GetMovementByEntryLine returns the movement of an entry line.
func (r *QuantityRepo) GetMovementByEntryLine(ctx context.Context, entryLineID id.ID) (*entity.QuantityMovement, error) {
	sql, args, err := r.builder.Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"entry_line_id": entryLineID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var m entity.QuantityMovement
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &m, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("quantity_movement", entryLineID)
		}
		return nil, apperror.NewDatabase("get movement", err)
	}
	return &m, nil
}

// GetMovementsByJournalEntry returns the movements of a journal entry in replay order.
func (r *QuantityRepo) GetMovementsByJournalEntry(ctx context.Context, journalEntryID id.ID) ([]entity.QuantityMovement, error) {
	sql, args, err := r.builder.Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"journal_entry_id": journalEntryID}).
		OrderBy("movement_date", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.QuantityMovement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, apperror.NewDatabase("select movements", err)
	}
	return movements, nil
}

// DeleteMovementsByJournalEntry removes the journal entry's movements on one account.
func (r *QuantityRepo) DeleteMovementsByJournalEntry(ctx context.Context, journalEntryID id.ID, key entity.AccountKey) (int64, error) {
	sql, args, err := r.builder.Delete(movementsTable).
		Where(squirrel.Eq{
			"journal_entry_id": journalEntryID,
			"company_id":       key.CompanyID,
			"account_id":       key.AccountID,
		}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, apperror.NewDatabase("delete movements", err)
	}
	return tag.RowsAffected(), nil
}

func (r *QuantityRepo) runningTotalsUpdate(m *entity.QuantityMovement) squirrel.UpdateBuilder {
	return r.builder.Update(movementsTable).
		Set("balance_after_quantity", m.BalanceAfterQuantity).
		Set("balance_after_amount", m.BalanceAfterAmount).
		Where(squirrel.Eq{"id": m.ID})
}

// UpdateRunningTotals rewrites balance_after_quantity and balance_after_amount.
// average_cost_at_time is left as recorded.
func (r *QuantityRepo) UpdateRunningTotals(ctx context.Context, m *entity.QuantityMovement) error {
	sql, args, err := r.runningTotalsUpdate(m).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return apperror.NewDatabase("update running totals", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("quantity_movement", m.ID)
	}
	return nil
}

func (r *QuantityRepo) movementsQuery(filter quantity.MovementFilter) squirrel.SelectBuilder {
	q := r.builder.Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"company_id": filter.CompanyID})

	if filter.AccountID != nil {
		q = q.Where(squirrel.Eq{"account_id": *filter.AccountID})
	}
	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"movement_type": *filter.Type})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"movement_date": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"movement_date": *filter.ToDate})
	}
	if filter.AfterDate != nil {
		q = q.Where(squirrel.Gt{"movement_date": *filter.AfterDate})
	}
	if filter.BeforeDate != nil {
		q = q.Where(squirrel.Lt{"movement_date": *filter.BeforeDate})
	}

	q = q.OrderBy("movement_date", "id")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q
}

// ListMovements returns movements in replay order.
func (r *QuantityRepo) ListMovements(ctx context.Context, filter quantity.MovementFilter) ([]entity.QuantityMovement, error) {
	sql, args, err := r.movementsQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.QuantityMovement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, apperror.NewDatabase("select movements", err)
	}
	return movements, nil
}

func (r *QuantityRepo) getBalance(ctx context.Context, key entity.AccountKey, forUpdate bool) (*entity.QuantityBalance, error) {
	q := r.builder.Select(balanceColumns...).
		From(balancesTable).
		Where(squirrel.Eq{"company_id": key.CompanyID, "account_id": key.AccountID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var b entity.QuantityBalance
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &b, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("quantity_balance", key.String())
		}
		return nil, apperror.NewDatabase("get balance", err)
	}
	return &b, nil
}

// GetBalance returns the balance row of key.
func (r *QuantityRepo) GetBalance(ctx context.Context, key entity.AccountKey) (*entity.QuantityBalance, error) {
	return r.getBalance(ctx, key, false)
}

// GetBalanceForUpdate returns the balance row of key locked until commit.
func (r *QuantityRepo) GetBalanceForUpdate(ctx context.Context, key entity.AccountKey) (*entity.QuantityBalance, error) {
	return r.getBalance(ctx, key, true)
}

// SaveBalance upserts the balance row.
func (r *QuantityRepo) SaveBalance(ctx context.Context, b *entity.QuantityBalance) error {
	sql, args, err := r.builder.Insert(balancesTable).
		Columns(balanceColumns...).
		Values(postgres.DBValues(b, balanceColumns)...).
		Suffix(`ON CONFLICT (company_id, account_id) DO UPDATE SET
			current_quantity = EXCLUDED.current_quantity,
			current_amount = EXCLUDED.current_amount,
			current_average_cost = EXCLUDED.current_average_cost,
			last_movement_date = EXCLUDED.last_movement_date,
			last_movement_id = EXCLUDED.last_movement_id,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return apperror.NewDatabase("upsert balance", err)
	}
	return nil
}

func (r *QuantityRepo) balancesQuery(companyID id.ID, filter quantity.BalanceFilter) squirrel.SelectBuilder {
	q := r.builder.Select(balanceColumns...).
		From(balancesTable).
		Where(squirrel.Eq{"company_id": companyID})
	if len(filter.AccountIDs) > 0 {
		q = q.Where(squirrel.Eq{"account_id": filter.AccountIDs})
	}
	if filter.ExcludeZero {
		q = q.Where("(current_quantity <> 0 OR current_amount <> 0)")
	}
	return q.OrderBy("account_id")
}

// ListBalances returns the company's balance rows.
func (r *QuantityRepo) ListBalances(ctx context.Context, companyID id.ID, filter quantity.BalanceFilter) ([]entity.QuantityBalance, error) {
	sql, args, err := r.balancesQuery(companyID, filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var balances []entity.QuantityBalance
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &balances, sql, args...); err != nil {
		return nil, apperror.NewDatabase("select balances", err)
	}
	return balances, nil
}

// ListAccountKeys returns every key with a balance row or a movement.
func (r *QuantityRepo) ListAccountKeys(ctx context.Context, companyID id.ID) ([]entity.AccountKey, error) {
	const sql = `
		SELECT company_id, account_id FROM quantity_balances WHERE company_id = $1
		UNION
		SELECT DISTINCT company_id, account_id FROM quantity_movements WHERE company_id = $1
		ORDER BY account_id
	`
	var keys []entity.AccountKey
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &keys, sql, companyID); err != nil {
		return nil, apperror.NewDatabase("select account keys", err)
	}
	return keys, nil
}
