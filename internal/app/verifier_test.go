package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spcledger/internal/core/entity"
	"spcledger/internal/core/id"
	"spcledger/internal/core/types"
	"spcledger/internal/domain/ledger"
	"spcledger/pkg/config"
	"spcledger/pkg/logger"
)

func memoryConfig() *config.Config {
	return &config.Config{
		App:    config.AppConfig{Name: "spcledger", Backend: config.BackendMemory},
		Ledger: config.LedgerConfig{CorrectionThreshold: "0.01", TurnoverOpening: "snapshot"},
	}
}

// post records a single quantity line; receipts debit the account, issues credit it.
func post(store interface{ PostLines(...ledger.EntryLine) }, company, account id.ID, receipt bool, date time.Time, qty, amount string) id.ID {
	q := types.MustQuantity(qty)
	line := ledger.EntryLine{
		ID: id.New(), CompanyID: company, JournalEntryID: id.New(), AccountID: account,
		DebitAmount: types.Zero(), CreditAmount: types.Zero(), Quantity: &q, MovementDate: date,
	}
	if receipt {
		line.DebitAmount = types.MustMoney(amount)
	} else {
		line.CreditAmount = types.MustMoney(amount)
	}
	store.PostLines(line)
	return line.ID
}

func TestNew_MemoryBackend(t *testing.T) {
	c, err := New(context.Background(), memoryConfig(), logger.Nop())
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.Memory)
	assert.NotNil(t, c.Quantity)
	assert.NotNil(t, c.Reports)
	assert.Nil(t, c.Pinger())
}

func TestNew_InvalidThreshold(t *testing.T) {
	cfg := memoryConfig()
	cfg.Ledger.CorrectionThreshold = "cent"

	_, err := New(context.Background(), cfg, logger.Nop())
	assert.Error(t, err)
}

func TestVerifier_ReportsAndRepairsDrift(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, memoryConfig(), logger.Nop())
	require.NoError(t, err)

	company, account := id.New(), id.New()
	c.Memory.AddAccount(ledger.Account{ID: account, CompanyID: company, Code: "304", Name: "Materials", SupportsQuantities: true})

	day := func(n int) time.Time { return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC) }
	for _, line := range []id.ID{
		post(c.Memory, company, account, true, day(1), "100", "1000"),
		post(c.Memory, company, account, false, day(5), "60", "600"),
		post(c.Memory, company, account, true, day(3), "50", "400"),
	} {
		_, err := c.Quantity.ProcessEntryLine(ctx, line)
		require.NoError(t, err)
	}

	report := NewVerifier(c.Quantity, []id.ID{company}, false, logger.Nop())
	assert.Equal(t, 0, report.VerifyOnce(ctx), "a back-dated receipt is absorbed on append")

	// a balance row written outside the service
	key := entity.AccountKey{CompanyID: company, AccountID: account}
	tampered, err := c.Quantity.GetBalance(ctx, key)
	require.NoError(t, err)
	tampered.CurrentQuantity = types.MustQuantity("95")
	require.NoError(t, c.Memory.SaveBalance(ctx, tampered))

	assert.Equal(t, 1, report.VerifyOnce(ctx))
	assert.Equal(t, 1, report.VerifyOnce(ctx), "report-only verification leaves the drift")

	repair := NewVerifier(c.Quantity, []id.ID{company}, true, logger.Nop())
	assert.Equal(t, 1, repair.VerifyOnce(ctx))
	assert.Equal(t, 0, repair.VerifyOnce(ctx))

	b, err := c.Quantity.GetBalance(ctx, key)
	require.NoError(t, err)
	assert.True(t, types.MustQuantity("90").Equal(b.CurrentQuantity))
	assert.True(t, b.Consistent())
}

func TestParseCompanies(t *testing.T) {
	company := id.New()

	ids, err := ParseCompanies([]string{company.String()})
	require.NoError(t, err)
	assert.Equal(t, []id.ID{company}, ids)

	_, err = ParseCompanies([]string{"acme"})
	assert.Error(t, err)
}
