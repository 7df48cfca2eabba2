package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spcledger/internal/core/entity"
	"spcledger/internal/core/id"
	"spcledger/internal/core/types"
)

func qty(s string) *types.Quantity {
	q := types.MustQuantity(s)
	return &q
}

func TestEntryLine_Classification(t *testing.T) {
	tests := []struct {
		name     string
		line     EntryLine
		hasQty   bool
		wantType entity.MovementType
		amount   string
	}{
		{
			name:     "debit with quantity is a receipt",
			line:     EntryLine{DebitAmount: types.MustMoney("1000"), CreditAmount: types.Zero(), Quantity: qty("100")},
			hasQty:   true,
			wantType: entity.MovementReceipt,
			amount:   "1000",
		},
		{
			name:     "credit is an issue",
			line:     EntryLine{DebitAmount: types.Zero(), CreditAmount: types.MustMoney("660"), Quantity: qty("60")},
			hasQty:   true,
			wantType: entity.MovementIssue,
			amount:   "660",
		},
		{
			name:     "zero quantity",
			line:     EntryLine{DebitAmount: types.MustMoney("5"), Quantity: qty("0")},
			wantType: entity.MovementReceipt,
			amount:   "5",
		},
		{
			name:     "no quantity",
			line:     EntryLine{DebitAmount: types.MustMoney("5")},
			wantType: entity.MovementReceipt,
			amount:   "5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.hasQty, tt.line.HasQuantity())
			assert.Equal(t, tt.wantType, tt.line.MovementType())
			assert.True(t, types.MustMoney(tt.amount).Equal(tt.line.Amount()))
		})
	}
}

func TestFindExpenseLine(t *testing.T) {
	material := id.New()
	expense := id.New()
	other := id.New()
	issueLine := id.New()

	lines := []EntryLine{
		{ID: issueLine, AccountID: material, DebitAmount: types.Zero(), CreditAmount: types.MustMoney("660")},
		{ID: id.New(), AccountID: other, DebitAmount: types.MustMoney("100"), CreditAmount: types.Zero()},
		{ID: id.New(), AccountID: material, DebitAmount: types.MustMoney("660"), CreditAmount: types.Zero()},
		{ID: id.New(), AccountID: expense, DebitAmount: types.MustMoney("660.00"), CreditAmount: types.Zero()},
	}

	got := FindExpenseLine(lines, issueLine, material, types.MustMoney("660"))
	require.NotNil(t, got)
	assert.Equal(t, expense, got.AccountID)

	assert.Nil(t, FindExpenseLine(lines, issueLine, material, types.MustMoney("661")))
}
