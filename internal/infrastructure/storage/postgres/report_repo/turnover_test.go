package report_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spcledger/internal/core/id"
)

func TestOpeningQuery(t *testing.T) {
	r := NewReportRepo(nil)
	before := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

	sql, args, err := r.openingQuery(id.New(), before, nil).ToSql()
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT DISTINCT ON (account_id) account_id, balance_after_quantity, balance_after_amount "+
			"FROM quantity_movements WHERE company_id = $1 AND movement_date < $2 "+
			"ORDER BY account_id, movement_date DESC, id DESC",
		sql)
	assert.Len(t, args, 2)
}

func TestTurnoverQuery(t *testing.T) {
	r := NewReportRepo(nil)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	sql, args, err := r.turnoverQuery(id.New(), from, to, []id.ID{id.New()}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE company_id = $1 AND account_id IN ($2) AND movement_date >= $3 AND movement_date <= $4")
	assert.Contains(t, sql, "GROUP BY account_id ORDER BY account_id")
	assert.Contains(t, sql, "SUM(total_amount) FILTER (WHERE movement_type = 'ISSUE')")
	assert.Len(t, args, 4)
}
