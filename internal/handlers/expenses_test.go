package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vexpense/vexpense/internal/handlers/testutil"
	"github.com/vexpense/vexpense/internal/models"
)

type expensePayload struct {
	ID              string  `json:"id"`
	ExporterID      string  `json:"exporterId"`
	Title           string  `json:"title"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	AmountInUSD     float64 `json:"amountInUsd"`
	Status          string  `json:"status"`
	SharedWithLocal bool    `json:"sharedWithLocal"`
	SharedWith      []struct {
		UserID string `json:"userId"`
		Status string `json:"status"`
	} `json:"sharedWith"`
}

type expenseFixture struct {
	env      *testutil.Env
	exporter testutil.LoginResult
	other    testutil.LoginResult
	local    testutil.LoginResult
	outsider testutil.LoginResult
	admin    testutil.LoginResult
}

func newExpenseFixture(t *testing.T) expenseFixture {
	t.Helper()

	env := testutil.NewEnv(t)
	env.CreateUser("exporter@example.com", models.RoleExporter)
	env.CreateUser("other@example.com", models.RoleExporter)
	env.CreateUser("local@example.com", models.RoleLocal)
	env.CreateUser("outsider@example.com", models.RoleLocal)
	env.CreateUser("admin@example.com", models.RoleAdmin)

	return expenseFixture{
		env:      env,
		exporter: env.Login("exporter@example.com", testutil.DefaultPassword),
		other:    env.Login("other@example.com", testutil.DefaultPassword),
		local:    env.Login("local@example.com", testutil.DefaultPassword),
		outsider: env.Login("outsider@example.com", testutil.DefaultPassword),
		admin:    env.Login("admin@example.com", testutil.DefaultPassword),
	}
}

func (f expenseFixture) create(t *testing.T, token string, body map[string]any) expensePayload {
	t.Helper()

	w := f.env.Request(http.MethodPost, "/api/expenses", body, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var out struct {
		Expense expensePayload `json:"expense"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &out)
	return out.Expense
}

func freightBody(title string, amount float64) map[string]any {
	return map[string]any{
		"category": "freight_shipping",
		"title":    title,
		"amount":   amount,
		"currency": "JPY",
		"date":     "2024-03-15",
	}
}

func TestExpenseCreateConvertsToUSD(t *testing.T) {
	f := newExpenseFixture(t)

	expense := f.create(t, f.exporter.Token, freightBody("Ocean freight", 300000))
	require.Equal(t, f.exporter.User.ID, expense.ExporterID)
	require.Equal(t, "JPY", expense.Currency)
	require.InDelta(t, 2000, expense.AmountInUSD, 0.001)
	require.Equal(t, "draft", expense.Status)
	require.False(t, expense.SharedWithLocal)
}

func TestExpenseCreateValidation(t *testing.T) {
	f := newExpenseFixture(t)

	missingAmount := map[string]any{"category": "insurance", "title": "Cover", "date": "2024-03-15"}
	w := f.env.Request(http.MethodPost, "/api/expenses", missingAmount, f.exporter.Token)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.Equal(t, "VALIDATION_FAILED", testutil.DecodeResponse(t, w).Error.Code)

	badDate := freightBody("Freight", 10)
	badDate["date"] = "15/03/2024"
	w = f.env.Request(http.MethodPost, "/api/expenses", badDate, f.exporter.Token)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	badCategory := freightBody("Freight", 10)
	badCategory["category"] = "snacks"
	w = f.env.Request(http.MethodPost, "/api/expenses", badCategory, f.exporter.Token)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	sterling := freightBody("Freight", 10)
	sterling["currency"] = "GBP"
	w = f.env.Request(http.MethodPost, "/api/expenses", sterling, f.exporter.Token)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	require.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
	require.Contains(t, resp.Error.Message, "currency")
}

func TestExpenseCurrencyIsCaseInsensitive(t *testing.T) {
	f := newExpenseFixture(t)

	body := freightBody("Colombo port handling", 32000)
	body["currency"] = "lkr"
	expense := f.create(t, f.exporter.Token, body)
	require.Equal(t, "LKR", expense.Currency)
	require.InDelta(t, 100, expense.AmountInUSD, 0.001)

	w := f.env.Request(http.MethodPut, "/api/expenses/"+expense.ID, map[string]any{"currency": "BRL"}, f.exporter.Token)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestExpenseRoutesAreRoleGated(t *testing.T) {
	f := newExpenseFixture(t)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
	}{
		{"local cannot create", http.MethodPost, "/api/expenses", f.local.Token, freightBody("Nope", 1)},
		{"admin cannot create", http.MethodPost, "/api/expenses", f.admin.Token, freightBody("Nope", 1)},
		{"local cannot list own", http.MethodGet, "/api/expenses", f.local.Token, nil},
		{"exporter cannot read shared inbox", http.MethodGet, "/api/expenses/shared/me", f.exporter.Token, nil},
		{"exporter cannot list all", http.MethodGet, "/api/expenses/admin/all", f.exporter.Token, nil},
		{"local cannot list all", http.MethodGet, "/api/expenses/admin/all", f.local.Token, nil},
		{"local cannot see statistics", http.MethodGet, "/api/expenses/statistics", f.local.Token, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.env.Request(tc.method, tc.path, tc.body, tc.token)
			require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
			require.Equal(t, "FORBIDDEN", testutil.DecodeResponse(t, w).Error.Code)
		})
	}
}

func TestExpenseOwnershipAndSharing(t *testing.T) {
	f := newExpenseFixture(t)
	expense := f.create(t, f.exporter.Token, freightBody("Container to Colombo", 150000))
	path := "/api/expenses/" + expense.ID

	// Before sharing only the owner and the admin can read it.
	require.Equal(t, http.StatusOK, f.env.Request(http.MethodGet, path, nil, f.exporter.Token).Code)
	require.Equal(t, http.StatusOK, f.env.Request(http.MethodGet, path, nil, f.admin.Token).Code)
	require.Equal(t, http.StatusForbidden, f.env.Request(http.MethodGet, path, nil, f.other.Token).Code)
	require.Equal(t, http.StatusForbidden, f.env.Request(http.MethodGet, path, nil, f.local.Token).Code)

	// Another exporter cannot modify or share it.
	w := f.env.Request(http.MethodPut, path, map[string]any{"title": "Hijacked"}, f.other.Token)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	w = f.env.Request(http.MethodPost, path+"/share", map[string]any{"userIds": []string{f.local.User.ID}}, f.other.Token)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	// Sharing with an exporter is rejected.
	w = f.env.Request(http.MethodPost, path+"/share", map[string]any{"userIds": []string{f.other.User.ID}}, f.exporter.Token)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	require.Equal(t, "INVALID_SHARE_TARGETS", testutil.DecodeResponse(t, w).Error.Code)

	w = f.env.Request(http.MethodPost, path+"/share", map[string]any{
		"userIds": []string{f.local.User.ID},
		"notes":   "Please confirm arrival",
	}, f.exporter.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var shared struct {
		Expense expensePayload `json:"expense"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &shared)
	require.True(t, shared.Expense.SharedWithLocal)
	require.Len(t, shared.Expense.SharedWith, 1)
	require.Equal(t, "pending", shared.Expense.SharedWith[0].Status)

	// The shared local user may read, the other local user still may not.
	require.Equal(t, http.StatusOK, f.env.Request(http.MethodGet, path, nil, f.local.Token).Code)
	require.Equal(t, http.StatusForbidden, f.env.Request(http.MethodGet, path, nil, f.outsider.Token).Code)

	// Reading never grants writing.
	w = f.env.Request(http.MethodPut, path, map[string]any{"title": "Edited"}, f.local.Token)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	w = f.env.Request(http.MethodDelete, path, nil, f.local.Token)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	// The shared user answers the share.
	w = f.env.Request(http.MethodPut, path+"/share/"+f.local.User.ID, map[string]any{"status": "accepted"}, f.local.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &shared)
	require.Equal(t, "accepted", shared.Expense.SharedWith[0].Status)

	// Someone without a share cannot answer on behalf of the shared user.
	w = f.env.Request(http.MethodPut, path+"/share/"+f.local.User.ID, map[string]any{"status": "rejected"}, f.outsider.Token)
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	inbox := f.env.Request(http.MethodGet, "/api/expenses/shared/me?status=accepted", nil, f.local.Token)
	require.Equal(t, http.StatusOK, inbox.Code, inbox.Body.String())
	resp := testutil.DecodeResponse(t, inbox)
	var listed struct {
		Expenses []expensePayload `json:"expenses"`
	}
	testutil.DecodeInto(t, resp.Data, &listed)
	require.Len(t, listed.Expenses, 1)
	require.Equal(t, expense.ID, listed.Expenses[0].ID)
	require.Equal(t, 1, resp.Meta.Total)

	empty := f.env.Request(http.MethodGet, "/api/expenses/shared/me", nil, f.outsider.Token)
	require.Equal(t, http.StatusOK, empty.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, empty).Data, &listed)
	require.Empty(t, listed.Expenses)
}

func TestExpenseUpdateAndDelete(t *testing.T) {
	f := newExpenseFixture(t)
	expense := f.create(t, f.exporter.Token, freightBody("Inspection", 15000))
	path := "/api/expenses/" + expense.ID

	w := f.env.Request(http.MethodPut, path, map[string]any{"amount": 30000, "status": "approved"}, f.exporter.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated struct {
		Expense expensePayload `json:"expense"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &updated)
	require.InDelta(t, 200, updated.Expense.AmountInUSD, 0.001)
	require.Equal(t, "approved", updated.Expense.Status)

	w = f.env.Request(http.MethodDelete, path, nil, f.exporter.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.env.Request(http.MethodGet, path, nil, f.exporter.Token)
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	require.Equal(t, "EXPENSE_NOT_FOUND", testutil.DecodeResponse(t, w).Error.Code)
}

func TestExpenseListingsAndStatistics(t *testing.T) {
	f := newExpenseFixture(t)
	f.create(t, f.exporter.Token, freightBody("Freight A", 150000))
	f.create(t, f.exporter.Token, freightBody("Freight B", 300000))
	insurance := freightBody("Marine cover", 100)
	insurance["category"] = "insurance"
	insurance["currency"] = "USD"
	f.create(t, f.exporter.Token, insurance)
	f.create(t, f.other.Token, freightBody("Someone else", 1500))

	w := f.env.Request(http.MethodGet, "/api/expenses?category=freight_shipping&limit=1", nil, f.exporter.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	var page struct {
		Expenses []expensePayload `json:"expenses"`
	}
	testutil.DecodeInto(t, resp.Data, &page)
	require.Len(t, page.Expenses, 1)
	require.Equal(t, 2, resp.Meta.Total)
	require.Equal(t, 2, resp.Meta.TotalPages)

	w = f.env.Request(http.MethodGet, "/api/expenses?search=marine", nil, f.exporter.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &page)
	require.Len(t, page.Expenses, 1)
	require.Equal(t, "Marine cover", page.Expenses[0].Title)

	w = f.env.Request(http.MethodGet, "/api/expenses?startDate=not-a-date", nil, f.exporter.Token)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = f.env.Request(http.MethodGet, "/api/expenses/admin/all", nil, f.admin.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, 4, testutil.DecodeResponse(t, w).Meta.Total)

	w = f.env.Request(http.MethodGet, "/api/expenses/statistics", nil, f.exporter.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stats struct {
		Statistics struct {
			TotalExpenses     int64   `json:"totalExpenses"`
			TotalAmount       float64 `json:"totalAmount"`
			SharedExpenses    int64   `json:"sharedExpenses"`
			AverageAmount     float64 `json:"averageAmount"`
			CategoryBreakdown []struct {
				Category string  `json:"category"`
				Count    int64   `json:"count"`
				Amount   float64 `json:"amount"`
			} `json:"categoryBreakdown"`
		} `json:"statistics"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &stats)
	require.EqualValues(t, 3, stats.Statistics.TotalExpenses)
	require.InDelta(t, 3100, stats.Statistics.TotalAmount, 0.001)
	require.Zero(t, stats.Statistics.SharedExpenses)
	require.Len(t, stats.Statistics.CategoryBreakdown, 2)
	require.Equal(t, "freight_shipping", stats.Statistics.CategoryBreakdown[0].Category)
}
