// Package report_repo provides the PostgreSQL report repository.
package report_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"spcledger/internal/core/apperror"
	"spcledger/internal/core/entity"
	"spcledger/internal/core/id"
	"spcledger/internal/domain/reports"
	"spcledger/internal/infrastructure/storage/postgres"
)

// ReportRepo implements reports.Repository over quantity_movements.
type ReportRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ reports.Repository = (*ReportRepo)(nil)

// NewReportRepo creates a new report repository.
func NewReportRepo(txm *postgres.TxManager) *ReportRepo {
	return &ReportRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *ReportRepo) scoped(q squirrel.SelectBuilder, companyID id.ID, accountIDs []id.ID) squirrel.SelectBuilder {
	q = q.Where(squirrel.Eq{"company_id": companyID})
	if len(accountIDs) > 0 {
		q = q.Where(squirrel.Eq{"account_id": accountIDs})
	}
	return q
}

// openingQuery picks the last movement in replay order per account with DISTINCT ON.
func (r *ReportRepo) openingQuery(companyID id.ID, before time.Time, accountIDs []id.ID) squirrel.SelectBuilder {
	q := r.builder.Select("account_id", "balance_after_quantity", "balance_after_amount").
		Options("DISTINCT ON (account_id)").
		From("quantity_movements")
	q = r.scoped(q, companyID, accountIDs)
	return q.Where(squirrel.Lt{"movement_date": before}).
		OrderBy("account_id", "movement_date DESC", "id DESC")
}

// GetOpeningSnapshots implements reports.Repository.
func (r *ReportRepo) GetOpeningSnapshots(ctx context.Context, companyID id.ID, before time.Time, accountIDs []id.ID) ([]reports.OpeningSnapshot, error) {
	sql, args, err := r.openingQuery(companyID, before, accountIDs).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []reports.OpeningSnapshot
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, apperror.NewDatabase("select opening snapshots", err)
	}
	return rows, nil
}

func (r *ReportRepo) turnoverQuery(companyID id.ID, from, to time.Time, accountIDs []id.ID) squirrel.SelectBuilder {
	q := r.builder.Select(
		"account_id",
		"COALESCE(SUM(quantity) FILTER (WHERE movement_type = 'RECEIPT'), 0) AS receipt_quantity",
		"COALESCE(SUM(total_amount) FILTER (WHERE movement_type = 'RECEIPT'), 0) AS receipt_amount",
		"COALESCE(SUM(quantity) FILTER (WHERE movement_type = 'ISSUE'), 0) AS issue_quantity",
		"COALESCE(SUM(total_amount) FILTER (WHERE movement_type = 'ISSUE'), 0) AS issue_amount",
	).From("quantity_movements")
	q = r.scoped(q, companyID, accountIDs)
	return q.Where(squirrel.GtOrEq{"movement_date": from}).
		Where(squirrel.LtOrEq{"movement_date": to}).
		GroupBy("account_id").
		OrderBy("account_id")
}

// GetPeriodTurnover implements reports.Repository.
func (r *ReportRepo) GetPeriodTurnover(ctx context.Context, companyID id.ID, from, to time.Time, accountIDs []id.ID) ([]reports.PeriodTurnover, error) {
	sql, args, err := r.turnoverQuery(companyID, from, to, accountIDs).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []reports.PeriodTurnover
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, apperror.NewDatabase("select period turnover", err)
	}
	return rows, nil
}

// ListMovementsBefore implements reports.Repository.
func (r *ReportRepo) ListMovementsBefore(ctx context.Context, companyID id.ID, before time.Time, accountIDs []id.ID) ([]entity.QuantityMovement, error) {
	q := r.builder.Select(
		"id", "company_id", "account_id", "entry_line_id", "journal_entry_id",
		"movement_date", "movement_type", "quantity", "unit_price", "total_amount",
		"balance_after_quantity", "balance_after_amount", "average_cost_at_time", "created_at",
	).From("quantity_movements")
	q = r.scoped(q, companyID, accountIDs).
		Where(squirrel.Lt{"movement_date": before}).
		OrderBy("account_id", "movement_date", "id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.QuantityMovement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, apperror.NewDatabase("select movements", err)
	}
	return movements, nil
}
