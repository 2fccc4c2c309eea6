package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vexpense/vexpense/internal/currency"
	"github.com/vexpense/vexpense/internal/models"
	"github.com/vexpense/vexpense/internal/policy"
	apperrors "github.com/vexpense/vexpense/pkg/errors"
)

type expenseFixture struct {
	svc      *ExpenseService
	exporter *models.User
	other    *models.User
	local    *models.User
	local2   *models.User
	admin    *models.User
}

func newExpenseFixture(t *testing.T) *expenseFixture {
	t.Helper()
	return newExpenseFixtureWithConverter(t, currency.NewConverter(nil))
}

func newExpenseFixtureWithConverter(t *testing.T, converter *currency.Converter) *expenseFixture {
	t.Helper()
	db := openServicesTestDB(t)

	svc, err := NewExpenseService(db, converter)
	require.NoError(t, err)

	return &expenseFixture{
		svc:      svc,
		exporter: seedUser(t, db, "exporter@example.jp", models.RoleExporter, true),
		other:    seedUser(t, db, "other@example.jp", models.RoleExporter, true),
		local:    seedUser(t, db, "local@example.lk", models.RoleLocal, true),
		local2:   seedUser(t, db, "local2@example.lk", models.RoleLocal, true),
		admin:    seedUser(t, db, "admin@example.com", models.RoleAdmin, true),
	}
}

func principalOf(user *models.User) policy.Principal {
	return policy.Principal{UserID: user.ID, Role: user.Role}
}

func (f *expenseFixture) create(t *testing.T, owner *models.User, mutate func(*ExpenseInput)) *models.Expense {
	t.Helper()
	input := ExpenseInput{
		Category: models.CategoryFreightShipping,
		Title:    "RoRo shipment to Colombo",
		Amount:   300000,
		Currency: "JPY",
		Date:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	if mutate != nil {
		mutate(&input)
	}
	expense, err := f.svc.Create(context.Background(), principalOf(owner), input)
	require.NoError(t, err)
	return expense
}

func TestCreateExpenseConvertsToUSD(t *testing.T) {
	f := newExpenseFixture(t)

	expense := f.create(t, f.exporter, func(in *ExpenseInput) {
		in.VehicleVIN = " jt123 "
		in.Tags = []string{"roro", " roro", "", "urgent"}
	})

	require.Equal(t, f.exporter.ID, expense.ExporterID)
	require.Equal(t, f.exporter.ID, expense.CreatedBy)
	require.Equal(t, models.ExpenseDraft, expense.Status)
	require.Equal(t, 2000.0, expense.AmountInUSD)
	require.Equal(t, 150.0, expense.ExchangeRate)
	require.Equal(t, "JT123", expense.VehicleVIN)
	require.Equal(t, []string{"roro", "urgent"}, []string(expense.Tags))
	require.NotNil(t, expense.Exporter)
	require.Equal(t, f.exporter.Email, expense.Exporter.Email)
	require.False(t, expense.SharedWithLocal)
}

func TestCreateExpenseHonoursExplicitRate(t *testing.T) {
	f := newExpenseFixture(t)

	expense := f.create(t, f.exporter, func(in *ExpenseInput) {
		in.Amount = 1000
		in.ExchangeRate = 125
	})
	require.Equal(t, 8.0, expense.AmountInUSD)
	require.Equal(t, 125.0, expense.ExchangeRate)
}

func TestCreateExpenseCurrencySetSurvivesRateRefresh(t *testing.T) {
	converter := currency.NewConverter(currency.StaticSource{"USD": 1, "JPY": 140, "GBP": 0.8})
	require.NoError(t, converter.Refresh(context.Background()))
	f := newExpenseFixtureWithConverter(t, converter)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, principalOf(f.exporter), ExpenseInput{
		Category: models.CategoryOther,
		Title:    "Paid in sterling",
		Amount:   10,
		Currency: "GBP",
		Date:     time.Now(),
	})
	require.ErrorIs(t, err, apperrors.ErrValidationFailed)

	// LKR was not quoted by the source and keeps its previous rate.
	expense := f.create(t, f.exporter, func(in *ExpenseInput) {
		in.Amount = 32000
		in.Currency = "lkr"
	})
	require.Equal(t, models.CurrencyLKR, expense.Currency)
	require.Equal(t, 320.0, expense.ExchangeRate)
	require.Equal(t, 100.0, expense.AmountInUSD)

	jpy := f.create(t, f.exporter, func(in *ExpenseInput) { in.Amount = 14000 })
	require.Equal(t, 140.0, jpy.ExchangeRate)
	require.Equal(t, 100.0, jpy.AmountInUSD)

	code := "GBP"
	_, err = f.svc.Update(ctx, principalOf(f.exporter), expense.ID, ExpenseUpdate{Currency: &code})
	require.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestCreateExpenseRequiresExporter(t *testing.T) {
	f := newExpenseFixture(t)

	_, err := f.svc.Create(context.Background(), principalOf(f.local), ExpenseInput{
		Category: models.CategoryOther,
		Title:    "Nope",
		Amount:   1,
		Currency: "USD",
		Date:     time.Now(),
	})
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestCreateExpenseValidates(t *testing.T) {
	f := newExpenseFixture(t)
	ctx := context.Background()
	base := ExpenseInput{
		Category: models.CategoryOther,
		Title:    "Valid",
		Amount:   10,
		Currency: "USD",
		Date:     time.Now(),
	}

	cases := map[string]func(*ExpenseInput){
		"category": func(in *ExpenseInput) { in.Category = "fuel" },
		"title":    func(in *ExpenseInput) { in.Title = "  " },
		"amount":   func(in *ExpenseInput) { in.Amount = -1 },
		"currency": func(in *ExpenseInput) { in.Currency = "GBP" },
		"date":     func(in *ExpenseInput) { in.Date = time.Time{} },
		"status":   func(in *ExpenseInput) { in.Status = "archived" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			input := base
			mutate(&input)
			_, err := f.svc.Create(ctx, principalOf(f.exporter), input)
			require.ErrorIs(t, err, apperrors.ErrValidationFailed)
		})
	}
}

func TestGetExpenseAppliesPolicy(t *testing.T) {
	f := newExpenseFixture(t)
	ctx := context.Background()
	expense := f.create(t, f.exporter, nil)

	_, err := f.svc.Get(ctx, principalOf(f.exporter), expense.ID)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, principalOf(f.admin), expense.ID)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, principalOf(f.other), expense.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.svc.Get(ctx, principalOf(f.local), expense.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.svc.Share(ctx, principalOf(f.exporter), expense.ID, []string{f.local.ID}, "")
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, principalOf(f.local), expense.ID)
	require.NoError(t, err)
	require.True(t, got.SharedWithLocal)

	_, err = f.svc.Get(ctx, principalOf(f.local2), expense.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.svc.Get(ctx, principalOf(f.exporter), "missing")
	require.ErrorIs(t, err, ErrExpenseNotFound)
}

func TestUpdateExpenseRecomputesUSD(t *testing.T) {
	f := newExpenseFixture(t)
	ctx := context.Background()
	expense := f.create(t, f.exporter, nil)

	amount := 450000.0
	title := "  Revised freight "
	status := models.ExpensePending
	updated, err := f.svc.Update(ctx, principalOf(f.exporter), expense.ID, ExpenseUpdate{
		Amount: &amount,
		Title:  &title,
		Status: &status,
	})
	require.NoError(t, err)
	require.Equal(t, 3000.0, updated.AmountInUSD)
	require.Equal(t, "Revised freight", updated.Title)
	require.Equal(t, models.ExpensePending, updated.Status)
	require.Equal(t, f.exporter.ID, updated.ExporterID)

	code := "usd"
	updated, err = f.svc.Update(ctx, principalOf(f.exporter), expense.ID, ExpenseUpdate{Currency: &code})
	require.NoError(t, err)
	require.Equal(t, models.CurrencyUSD, updated.Currency)
	require.Equal(t, 450000.0, updated.AmountInUSD)
	require.Equal(t, 1.0, updated.ExchangeRate)
}

func TestUpdateAndDeleteRequireOwnership(t *testing.T) {
	f := newExpenseFixture(t)
	ctx := context.Background()
	expense := f.create(t, f.exporter, nil)
	_, err := f.svc.Share(ctx, principalOf(f.exporter), expense.ID, []string{f.local.ID}, "")
	require.NoError(t, err)

	title := "Hijacked"
	_, err = f.svc.Update(ctx, principalOf(f.other), expense.ID, ExpenseUpdate{Title: &title})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.svc.Update(ctx, principalOf(f.local), expense.ID, ExpenseUpdate{Title: &title})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	require.ErrorIs(t, f.svc.Delete(ctx, principalOf(f.other), expense.ID), apperrors.ErrForbidden)
	require.ErrorIs(t, f.svc.Delete(ctx, principalOf(f.local), expense.ID), apperrors.ErrForbidden)

	require.NoError(t, f.svc.Delete(ctx, principalOf(f.exporter), expense.ID))
	_, err = f.svc.Get(ctx, principalOf(f.exporter), expense.ID)
	require.ErrorIs(t, err, ErrExpenseNotFound)

	var shares int64
	require.NoError(t, f.svc.db.Model(&models.ExpenseShare{}).Where("expense_id = ?", expense.ID).Count(&shares).Error)
	require.Zero(t, shares)
}

func TestShareIsIdempotent(t *testing.T) {
	f := newExpenseFixture(t)
	ctx := context.Background()
	expense := f.create(t, f.exporter, nil)

	shared, err := f.svc.Share(ctx, principalOf(f.exporter), expense.ID, []string{f.local.ID, f.local.ID}, "please review")
	require.NoError(t, err)
	require.True(t, shared.SharedWithLocal)
	require.Len(t, shared.Shares, 1)
	require.Equal(t, models.SharePending, shared.Shares[0].Status)
	require.Equal(t, "please review", shared.Shares[0].Notes)

	shared, err = f.svc.Share(ctx, principalOf(f.exporter), expense.ID, []string{f.local.ID, f.local2.ID}, "")
	require.NoError(t, err)
	require.Len(t, shared.Shares, 2)
	require.True(t, shared.IsSharedWith(f.local.ID))
	require.True(t, shared.IsSharedWith(f.local2.ID))
}

func TestShareRejectsInvalidTargets(t *testing.T) {
	f := newExpenseFixture(t)
	ctx := context.Background()
	expense := f.create(t, f.exporter, nil)
	inactive := seedUser(t, f.svc.db, "inactive@example.lk", models.RoleLocal, false)

	cases := map[string][]string{
		"exporter": {f.other.ID},
		"inactive": {inactive.ID},
		"unknown":  {f.local.ID, "missing"},
	}
	for name, ids := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Share(ctx, principalOf(f.exporter), expense.ID, ids, "")
			require.ErrorIs(t, err, ErrInvalidShareTargets)
		})
	}

	_, err := f.svc.Share(ctx, principalOf(f.exporter), expense.ID, nil, "")
	require.ErrorIs(t, err, apperrors.ErrValidationFailed)

	_, err = f.svc.Share(ctx, principalOf(f.other), expense.ID, []string{f.local.ID}, "")
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	reloaded, err := f.svc.Get(ctx, principalOf(f.exporter), expense.ID)
	require.NoError(t, err)
	require.Empty(t, reloaded.Shares)
	require.False(t, reloaded.SharedWithLocal)
}

func TestUpdateShareStatus(t *testing.T) {
	f := newExpenseFixture(t)
	ctx := context.Background()
	expense := f.create(t, f.exporter, nil)
	_, err := f.svc.Share(ctx, principalOf(f.exporter), expense.ID, []string{f.local.ID}, "")
	require.NoError(t, err)

	updated, err := f.svc.UpdateShareStatus(ctx, principalOf(f.local), expense.ID, f.local.ID, models.ShareAccepted, "looks right")
	require.NoError(t, err)
	share := updated.ShareFor(f.local.ID)
	require.NotNil(t, share)
	require.Equal(t, models.ShareAccepted, share.Status)
	require.Equal(t, "looks right", share.Notes)

	_, err = f.svc.UpdateShareStatus(ctx, principalOf(f.exporter), expense.ID, f.local.ID, models.ShareRequestedInfo, "")
	require.NoError(t, err)

	_, err = f.svc.UpdateShareStatus(ctx, principalOf(f.local2), expense.ID, f.local.ID, models.ShareRejected, "")
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.svc.UpdateShareStatus(ctx, principalOf(f.local2), expense.ID, f.local2.ID, models.ShareRejected, "")
	require.ErrorIs(t, err, ErrShareNotFound)

	_, err = f.svc.UpdateShareStatus(ctx, principalOf(f.local), expense.ID, f.local.ID, "maybe", "")
	require.ErrorIs(t, err, apperrors.ErrValidationFailed)
}

func TestListForExporterFilters(t *testing.T) {
	f := newExpenseFixture(t)
	ctx := context.Background()

	f.create(t, f.exporter, func(in *ExpenseInput) {
		in.Title = "Auction purchase"
		in.Category = models.CategoryVehiclePurchase
		in.Date = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
		in.VehicleVIN = "NZE161-100"
	})
	second := f.create(t, f.exporter, func(in *ExpenseInput) {
		in.Date = time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
		in.InvoiceNumber = "INV-42"
	})
	f.create(t, f.exporter, func(in *ExpenseInput) {
		in.Date = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
		in.Status = models.ExpensePaid
	})
	f.create(t, f.other, nil)
	_, err := f.svc.Share(ctx, principalOf(f.exporter), second.ID, []string{f.local.ID}, "")
	require.NoError(t, err)

	all, total, err := f.svc.ListForExporter(ctx, f.exporter.ID, ExpenseFilters{})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, all, 3)
	require.True(t, all[0].Date.After(all[1].Date))
	require.True(t, all[1].Date.After(all[2].Date))

	byCategory, total, err := f.svc.ListForExporter(ctx, f.exporter.ID, ExpenseFilters{Category: models.CategoryVehiclePurchase})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "Auction purchase", byCategory[0].Title)

	_, total, err = f.svc.ListForExporter(ctx, f.exporter.ID, ExpenseFilters{Status: models.ExpensePaid})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)

	shared := true
	sharedOnly, total, err := f.svc.ListForExporter(ctx, f.exporter.ID, ExpenseFilters{Shared: &shared})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, second.ID, sharedOnly[0].ID)

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)
	_, total, err = f.svc.ListForExporter(ctx, f.exporter.ID, ExpenseFilters{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)

	found, total, err := f.svc.ListForExporter(ctx, f.exporter.ID, ExpenseFilters{Search: "inv-42"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, second.ID, found[0].ID)

	_, total, err = f.svc.ListForExporter(ctx, f.exporter.ID, ExpenseFilters{Search: "nze161"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)

	paged, total, err := f.svc.ListForExporter(ctx, f.exporter.ID, ExpenseFilters{Page: Page{Page: 2, PerPage: 2}})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, paged, 1)
}

func TestListSharedOnlyReturnsSharedExpenses(t *testing.T) {
	f := newExpenseFixture(t)
	ctx := context.Background()

	first := f.create(t, f.exporter, nil)
	second := f.create(t, f.other, nil)
	f.create(t, f.exporter, nil)

	_, err := f.svc.Share(ctx, principalOf(f.exporter), first.ID, []string{f.local.ID}, "")
	require.NoError(t, err)
	_, err = f.svc.Share(ctx, principalOf(f.other), second.ID, []string{f.local.ID, f.local2.ID}, "")
	require.NoError(t, err)
	_, err = f.svc.UpdateShareStatus(ctx, principalOf(f.local), second.ID, f.local.ID, models.ShareAccepted, "")
	require.NoError(t, err)

	expenses, total, err := f.svc.ListShared(ctx, f.local.ID, ExpenseFilters{})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, expenses, 2)

	expenses, total, err = f.svc.ListShared(ctx, f.local.ID, ExpenseFilters{ShareStatus: models.ShareAccepted})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, second.ID, expenses[0].ID)

	expenses, total, err = f.svc.ListShared(ctx, f.local.ID, ExpenseFilters{ExporterID: f.exporter.ID})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, first.ID, expenses[0].ID)

	_, total, err = f.svc.ListShared(ctx, f.local2.ID, ExpenseFilters{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestListAllReturnsEveryExpense(t *testing.T) {
	f := newExpenseFixture(t)
	f.create(t, f.exporter, nil)
	f.create(t, f.other, nil)

	expenses, total, err := f.svc.ListAll(context.Background(), ExpenseFilters{})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, expenses, 2)

	_, total, err = f.svc.ListAll(context.Background(), ExpenseFilters{ExporterID: f.other.ID})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestStatistics(t *testing.T) {
	f := newExpenseFixture(t)
	ctx := context.Background()

	empty, err := f.svc.Statistics(ctx, f.exporter.ID, ExpenseFilters{})
	require.NoError(t, err)
	require.Zero(t, empty.TotalExpenses)
	require.Zero(t, empty.AverageAmount)
	require.Empty(t, empty.CategoryBreakdown)

	f.create(t, f.exporter, func(in *ExpenseInput) {
		in.Category = models.CategoryVehiclePurchase
		in.Amount = 1500000
	})
	shared := f.create(t, f.exporter, func(in *ExpenseInput) { in.Amount = 300000 })
	f.create(t, f.exporter, func(in *ExpenseInput) { in.Amount = 150000 })
	f.create(t, f.other, func(in *ExpenseInput) { in.Amount = 999999 })
	_, err = f.svc.Share(ctx, principalOf(f.exporter), shared.ID, []string{f.local.ID}, "")
	require.NoError(t, err)

	stats, err := f.svc.Statistics(ctx, f.exporter.ID, ExpenseFilters{})
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.TotalExpenses)
	require.Equal(t, 13000.0, stats.TotalAmount)
	require.EqualValues(t, 1, stats.SharedExpenses)
	require.Equal(t, 4333.33, stats.AverageAmount)
	require.Len(t, stats.CategoryBreakdown, 2)
	require.Equal(t, CategoryTotal{Category: models.CategoryVehiclePurchase, Count: 1, Amount: 10000}, stats.CategoryBreakdown[0])
	require.Equal(t, CategoryTotal{Category: models.CategoryFreightShipping, Count: 2, Amount: 3000}, stats.CategoryBreakdown[1])

	freight, err := f.svc.Statistics(ctx, f.exporter.ID, ExpenseFilters{Category: models.CategoryFreightShipping})
	require.NoError(t, err)
	require.EqualValues(t, 2, freight.TotalExpenses)
	require.Equal(t, 3000.0, freight.TotalAmount)
}
