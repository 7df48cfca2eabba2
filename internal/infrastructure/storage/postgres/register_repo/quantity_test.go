package register_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spcledger/internal/core/entity"
	"spcledger/internal/core/id"
	"spcledger/internal/core/types"
	"spcledger/internal/domain/registers/quantity"
)

func TestMovementsQuery(t *testing.T) {
	r := NewQuantityRepo(nil)
	company, account := id.New(), id.New()
	issue := entity.MovementIssue
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		filter   quantity.MovementFilter
		contains []string
		args     int
	}{
		{
			name:     "company only",
			filter:   quantity.MovementFilter{CompanyID: company},
			contains: []string{"FROM quantity_movements WHERE company_id = $1 ORDER BY movement_date, id"},
			args:     1,
		},
		{
			name:   "account replay",
			filter: quantity.ForKey(entity.AccountKey{CompanyID: company, AccountID: account}),
			contains: []string{
				"WHERE company_id = $1 AND account_id = $2 ORDER BY movement_date, id",
			},
			args: 2,
		},
		{
			name: "all filters",
			filter: quantity.MovementFilter{
				CompanyID: company, AccountID: &account, Type: &issue,
				FromDate: &from, BeforeDate: &before, Limit: 10, Offset: 20,
			},
			contains: []string{
				"movement_type = $3",
				"movement_date >= $4",
				"movement_date < $5",
				"LIMIT 10 OFFSET 20",
			},
			args: 5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := r.movementsQuery(tt.filter).ToSql()
			require.NoError(t, err)
			for _, fragment := range tt.contains {
				assert.Contains(t, sql, fragment)
			}
			assert.Len(t, args, tt.args)
		})
	}
}

func TestBalancesQuery(t *testing.T) {
	r := NewQuantityRepo(nil)
	company := id.New()

	sql, args, err := r.balancesQuery(company, quantity.BalanceFilter{
		AccountIDs:  []id.ID{id.New(), id.New()},
		ExcludeZero: true,
	}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "company_id = $1 AND account_id IN ($2,$3)")
	assert.Contains(t, sql, "(current_quantity <> 0 OR current_amount <> 0)")
	assert.Len(t, args, 3)
}

func TestRunningTotalsUpdate(t *testing.T) {
	r := NewQuantityRepo(nil)
	m := &entity.QuantityMovement{
		ID:                   id.New(),
		BalanceAfterQuantity: types.MustQuantity("140"),
		BalanceAfterAmount:   types.MustMoney("1435"),
	}

	sql, args, err := r.runningTotalsUpdate(m).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "UPDATE quantity_movements SET balance_after_quantity = $1, balance_after_amount = $2 WHERE id = $3", sql)
	require.Len(t, args, 3)
	assert.Equal(t, m.ID, args[2])
	assert.NotContains(t, sql, "average_cost_at_time")
}

func TestAdvisoryKey(t *testing.T) {
	a := entity.AccountKey{CompanyID: id.New(), AccountID: id.New()}
	b := entity.AccountKey{CompanyID: a.CompanyID, AccountID: id.New()}

	assert.Equal(t, advisoryKey(a), advisoryKey(a))
	assert.NotEqual(t, advisoryKey(a), advisoryKey(b))
}
