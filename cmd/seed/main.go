// Package main seeds a database with a demo company: the worked receipt/issue
// examples on account 304 and an optional random history on account 302.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"spcledger/internal/app"
	"spcledger/internal/core/id"
	"spcledger/internal/core/types"
	"spcledger/internal/domain/ledger"
	"spcledger/internal/infrastructure/storage/postgres"
	"spcledger/pkg/config"
	"spcledger/pkg/logger"
)

type chart struct {
	company   id.ID
	materials ledger.Account
	goods     ledger.Account
	suppliers ledger.Account
	expenses  ledger.Account
}

func newChart(company id.ID) chart {
	return chart{
		company:   company,
		materials: ledger.Account{ID: id.New(), CompanyID: company, Code: "304", Name: "Материали", SupportsQuantities: true},
		goods:     ledger.Account{ID: id.New(), CompanyID: company, Code: "302", Name: "Стоки", SupportsQuantities: true},
		suppliers: ledger.Account{ID: id.New(), CompanyID: company, Code: "401", Name: "Доставчици"},
		expenses:  ledger.Account{ID: id.New(), CompanyID: company, Code: "601", Name: "Разходи за материали"},
	}
}

func (c chart) accounts() []ledger.Account {
	return []ledger.Account{c.materials, c.goods, c.suppliers, c.expenses}
}

// receipt is "Dt stock / Ct 401"; issue is "Dt 601 / Ct stock".
func (c chart) entry(stock ledger.Account, receipt bool, date time.Time, qty, amount types.Money, description string) postgres.JournalEntry {
	e := postgres.JournalEntry{ID: id.New(), CompanyID: c.company, Date: date, Description: description}
	q := qty
	stockLine := ledger.EntryLine{ID: id.New(), AccountID: stock.ID, Quantity: &q}
	var other ledger.EntryLine
	if receipt {
		stockLine.DebitAmount, stockLine.CreditAmount = amount, types.Zero()
		other = ledger.EntryLine{ID: id.New(), AccountID: c.suppliers.ID, DebitAmount: types.Zero(), CreditAmount: amount}
		e.Lines = []ledger.EntryLine{stockLine, other}
	} else {
		stockLine.DebitAmount, stockLine.CreditAmount = types.Zero(), amount
		other = ledger.EntryLine{ID: id.New(), AccountID: c.expenses.ID, DebitAmount: amount, CreditAmount: types.Zero()}
		e.Lines = []ledger.EntryLine{other, stockLine}
	}
	return e
}

func main() {
	var (
		companyFlag = flag.String("company", "", "company id (default: new)")
		random      = flag.Int("random", 0, "number of random movements to add on account 302")
		seed        = flag.Uint64("seed", 1, "random history seed")
	)
	flag.Parse()

	log, err := logger.New(logger.Config{Level: "info", Development: true})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("failed to load configuration", "error", err)
	}
	if cfg.App.Backend != config.BackendPostgres {
		log.Fatal("seed requires the postgres backend")
	}

	ctx := context.Background()
	container, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer container.Close()

	company := id.New()
	if *companyFlag != "" {
		if company, err = id.Parse(*companyFlag); err != nil {
			log.Fatalw("invalid company id", "error", err)
		}
	}
	c := newChart(company)
	loader := postgres.NewJournalLoader(container.TxManager)

	if _, err := loader.LoadAccounts(ctx, c.accounts()); err != nil {
		log.Fatalw("failed to load accounts", "error", err)
	}

	day := func(m time.Month, d int) time.Time { return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC) }
	m := types.MustMoney

	// Worked example: two receipts and an issue, then a receipt dated before the issue.
	entries := []postgres.JournalEntry{
		c.entry(c.materials, true, day(time.January, 1), m("100"), m("1000"), "Receipt 100 @ 10.00"),
		c.entry(c.materials, true, day(time.January, 2), m("50"), m("650"), "Receipt 50 @ 13.00"),
		c.entry(c.materials, false, day(time.January, 5), m("60"), m("660"), "Issue 60 to production"),
		c.entry(c.materials, true, day(time.January, 3), m("50"), m("400"), "Late supplier invoice 50 @ 8.00"),
	}
	entries = append(entries, randomHistory(c, *random, *seed)...)

	lines, err := loader.LoadEntries(ctx, entries)
	if err != nil {
		log.Fatalw("failed to load journal entries", "error", err)
	}
	log.Infow("journal loaded", "entries", len(entries), "lines", lines)

	corrections := 0
	for _, e := range entries {
		results, err := container.Quantity.ProcessJournalEntry(ctx, e.ID)
		if err != nil {
			log.Fatalw("failed to process journal entry", "journal_entry_id", e.ID, "error", err)
		}
		for _, r := range results {
			corrections += len(r.Corrections)
		}
	}

	log.Infow("seed complete",
		"company_id", company,
		"materials_account_id", c.materials.ID,
		"goods_account_id", c.goods.ID,
		"corrections", corrections,
	)
	fmt.Println(company)
}

// randomHistory generates n movements on account 302 in date order, never
// issuing more than is on hand.
func randomHistory(c chart, n int, seed uint64) []postgres.JournalEntry {
	if n <= 0 {
		return nil
	}
	faker := gofakeit.New(seed)

	entries := make([]postgres.JournalEntry, 0, n)
	onHand, price := 0, 0.0
	date := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		date = date.AddDate(0, 0, faker.IntRange(0, 2))
		product := faker.ProductName()

		if onHand == 0 || faker.Float64() < 0.6 {
			qty := faker.IntRange(1, 80)
			price = faker.Price(2, 60)
			amount := types.RoundAmount(types.NewMoney(price).Mul(types.NewMoney(float64(qty))))
			entries = append(entries, c.entry(c.goods, true, date, types.NewMoney(float64(qty)), amount,
				fmt.Sprintf("Receipt %s from %s", product, faker.Company())))
			onHand += qty
			continue
		}

		qty := faker.IntRange(1, onHand)
		// The posted credit is informational; the register values issues at average cost.
		amount := types.RoundAmount(types.NewMoney(price).Mul(types.NewMoney(float64(qty))))
		entries = append(entries, c.entry(c.goods, false, date, types.NewMoney(float64(qty)), amount,
			fmt.Sprintf("Issue %s: %s", product, faker.Sentence(4))))
		onHand -= qty
	}
	return entries
}
