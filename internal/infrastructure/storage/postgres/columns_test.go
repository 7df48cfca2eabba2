package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"spcledger/internal/core/entity"
	"spcledger/internal/core/id"
	"spcledger/internal/core/types"
)

type auditFields struct {
	CreatedAt time.Time `db:"created_at"`
}

type taggedRow struct {
	ID   id.ID  `db:"id"`
	Code string `db:"code"`
	Note string `db:"-"`
	Temp string
	auditFields
}

func TestDBColumns(t *testing.T) {
	assert.Equal(t, []string{"id", "code", "created_at"}, DBColumns[taggedRow]())

	cols := DBColumns[entity.QuantityMovement]()
	assert.Equal(t, "id", cols[0])
	assert.Contains(t, cols, "average_cost_at_time")
	assert.Len(t, cols, 14)
}

func TestDBColumns_ReturnsCopy(t *testing.T) {
	cols := DBColumns[taggedRow]()
	cols[0] = "changed"

	assert.Equal(t, "id", DBColumns[taggedRow]()[0])
}

func TestDBValues(t *testing.T) {
	now := time.Now().UTC()
	row := taggedRow{ID: id.New(), Code: "304", auditFields: auditFields{CreatedAt: now}}

	assert.Equal(t, []any{"304", row.ID, now}, DBValues(&row, []string{"code", "id", "created_at"}))
	assert.Panics(t, func() { DBValues(row, []string{"missing"}) })
}

func TestDBValues_Balance(t *testing.T) {
	key := entity.AccountKey{CompanyID: id.New(), AccountID: id.New()}
	b := entity.NewQuantityBalance(key)
	b.CurrentQuantity = types.MustQuantity("90")

	cols := DBColumns[entity.QuantityBalance]()
	vals := DBValues(&b, cols)

	assert.Len(t, vals, len(cols))
	assert.Equal(t, key.CompanyID, vals[0])
	assert.Equal(t, b.CurrentQuantity, vals[2])
	assert.Equal(t, (*time.Time)(nil), vals[5])
}
