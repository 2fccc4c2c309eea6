package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vexpense/vexpense/internal/models"
	"github.com/vexpense/vexpense/internal/services"
	apperrors "github.com/vexpense/vexpense/pkg/errors"
	"github.com/vexpense/vexpense/pkg/response"
)

// ExpenseHandler exposes expense CRUD, sharing and reporting.
type ExpenseHandler struct {
	service *services.ExpenseService
}

// NewExpenseHandler constructs an ExpenseHandler.
func NewExpenseHandler(service *services.ExpenseService) (*ExpenseHandler, error) {
	if service == nil {
		return nil, errors.New("expense handler: expense service is required")
	}
	return &ExpenseHandler{service: service}, nil
}

type createExpenseRequest struct {
	Category        string   `json:"category" validate:"required,oneof=vehicle_purchase freight_shipping packaging insurance customs_duty inspection documentation storage transportation other"`
	Title           string   `json:"title" validate:"required,max=200"`
	Description     string   `json:"description" validate:"max=1000"`
	Amount          *float64 `json:"amount" validate:"required,gte=0"`
	Currency        string   `json:"currency" validate:"omitempty,currency"`
	ExchangeRate    float64  `json:"exchangeRate" validate:"gte=0"`
	Date            string   `json:"date" validate:"required"`
	InvoiceNumber   string   `json:"invoiceNumber" validate:"max=100"`
	InvoiceDate     string   `json:"invoiceDate"`
	SupplierName    string   `json:"supplierName" validate:"max=200"`
	SupplierContact string   `json:"supplierContact" validate:"max=200"`
	VehicleVIN      string   `json:"vehicleVin" validate:"max=32"`
	VehicleMake     string   `json:"vehicleMake" validate:"max=60"`
	VehicleModel    string   `json:"vehicleModel" validate:"max=60"`
	VehicleYear     int      `json:"vehicleYear" validate:"omitempty,gte=1900,lte=2100"`
	TrackingNumber  string   `json:"trackingNumber" validate:"max=100"`
	Carrier         string   `json:"carrier" validate:"max=100"`
	Origin          string   `json:"origin" validate:"max=100"`
	Destination     string   `json:"destination" validate:"max=100"`
	Status          string   `json:"status" validate:"omitempty,oneof=draft pending approved rejected paid"`
	Tags            []string `json:"tags" validate:"max=20,dive,max=50"`
	Notes           string   `json:"notes" validate:"max=500"`
}

type updateExpenseRequest struct {
	Category        *string   `json:"category" validate:"omitempty,oneof=vehicle_purchase freight_shipping packaging insurance customs_duty inspection documentation storage transportation other"`
	Title           *string   `json:"title" validate:"omitempty,max=200"`
	Description     *string   `json:"description" validate:"omitempty,max=1000"`
	Amount          *float64  `json:"amount" validate:"omitempty,gte=0"`
	Currency        *string   `json:"currency" validate:"omitempty,currency"`
	ExchangeRate    *float64  `json:"exchangeRate" validate:"omitempty,gte=0"`
	Date            *string   `json:"date"`
	InvoiceNumber   *string   `json:"invoiceNumber" validate:"omitempty,max=100"`
	SupplierName    *string   `json:"supplierName" validate:"omitempty,max=200"`
	SupplierContact *string   `json:"supplierContact" validate:"omitempty,max=200"`
	VehicleVIN      *string   `json:"vehicleVin" validate:"omitempty,max=32"`
	VehicleMake     *string   `json:"vehicleMake" validate:"omitempty,max=60"`
	VehicleModel    *string   `json:"vehicleModel" validate:"omitempty,max=60"`
	VehicleYear     *int      `json:"vehicleYear" validate:"omitempty,gte=1900,lte=2100"`
	TrackingNumber  *string   `json:"trackingNumber" validate:"omitempty,max=100"`
	Carrier         *string   `json:"carrier" validate:"omitempty,max=100"`
	Origin          *string   `json:"origin" validate:"omitempty,max=100"`
	Destination     *string   `json:"destination" validate:"omitempty,max=100"`
	Status          *string   `json:"status" validate:"omitempty,oneof=draft pending approved rejected paid"`
	Tags            *[]string `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	Notes           *string   `json:"notes" validate:"omitempty,max=500"`
}

type shareExpenseRequest struct {
	UserIDs []string `json:"userIds" validate:"required,min=1,dive,required"`
	Notes   string   `json:"notes" validate:"max=500"`
}

type shareStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending accepted rejected requested_info"`
	Notes  string `json:"notes" validate:"max=500"`
}

// POST /api/expenses
func (h *ExpenseHandler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req createExpenseRequest
	if !bindAndValidate(c, &req) {
		return
	}

	date, err := parseDate("date", req.Date)
	if err != nil {
		response.Error(c, err)
		return
	}
	var invoiceDate *time.Time
	if strings.TrimSpace(req.InvoiceDate) != "" {
		parsed, err := parseDate("invoiceDate", req.InvoiceDate)
		if err != nil {
			response.Error(c, err)
			return
		}
		invoiceDate = &parsed
	}

	expense, err := h.service.Create(requestContext(c), p, services.ExpenseInput{
		Category:        models.ExpenseCategory(req.Category),
		Title:           req.Title,
		Description:     req.Description,
		Amount:          *req.Amount,
		Currency:        req.Currency,
		ExchangeRate:    req.ExchangeRate,
		Date:            date,
		InvoiceNumber:   req.InvoiceNumber,
		InvoiceDate:     invoiceDate,
		SupplierName:    req.SupplierName,
		SupplierContact: req.SupplierContact,
		VehicleVIN:      req.VehicleVIN,
		VehicleMake:     req.VehicleMake,
		VehicleModel:    req.VehicleModel,
		VehicleYear:     req.VehicleYear,
		TrackingNumber:  req.TrackingNumber,
		Carrier:         req.Carrier,
		Origin:          req.Origin,
		Destination:     req.Destination,
		Status:          models.ExpenseStatus(req.Status),
		Tags:            req.Tags,
		Notes:           req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"expense": expense})
}

// GET /api/expenses
func (h *ExpenseHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	filters, ok := expenseFilters(c)
	if !ok {
		return
	}

	expenses, total, err := h.service.ListForExporter(requestContext(c), p.UserID, filters)
	if err != nil {
		respondError(c, err)
		return
	}
	writeExpensePage(c, expenses, filters.Page, total)
}

// GET /api/expenses/shared/me
func (h *ExpenseHandler) ListShared(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	filters, ok := expenseFilters(c)
	if !ok {
		return
	}
	// On this route "status" refers to the caller's share, not the expense.
	filters.Status = ""
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := models.ShareStatus(raw)
		if !status.Valid() {
			response.Error(c, apperrors.NewValidationFailed("Invalid share status"))
			return
		}
		filters.ShareStatus = status
	}

	expenses, total, err := h.service.ListShared(requestContext(c), p.UserID, filters)
	if err != nil {
		respondError(c, err)
		return
	}
	writeExpensePage(c, expenses, filters.Page, total)
}

// GET /api/expenses/admin/all
func (h *ExpenseHandler) ListAll(c *gin.Context) {
	filters, ok := expenseFilters(c)
	if !ok {
		return
	}

	expenses, total, err := h.service.ListAll(requestContext(c), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	writeExpensePage(c, expenses, filters.Page, total)
}

// GET /api/expenses/statistics
func (h *ExpenseHandler) Statistics(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	filters, ok := expenseFilters(c)
	if !ok {
		return
	}

	stats, err := h.service.Statistics(requestContext(c), p.UserID, filters)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"statistics": stats})
}

// GET /api/expenses/:id
func (h *ExpenseHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	expense, err := h.service.Get(requestContext(c), p, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"expense": expense})
}

// PUT /api/expenses/:id
func (h *ExpenseHandler) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req updateExpenseRequest
	if !bindAndValidate(c, &req) {
		return
	}

	input := services.ExpenseUpdate{
		Title:           req.Title,
		Description:     req.Description,
		Amount:          req.Amount,
		Currency:        req.Currency,
		ExchangeRate:    req.ExchangeRate,
		InvoiceNumber:   req.InvoiceNumber,
		SupplierName:    req.SupplierName,
		SupplierContact: req.SupplierContact,
		VehicleVIN:      req.VehicleVIN,
		VehicleMake:     req.VehicleMake,
		VehicleModel:    req.VehicleModel,
		VehicleYear:     req.VehicleYear,
		TrackingNumber:  req.TrackingNumber,
		Carrier:         req.Carrier,
		Origin:          req.Origin,
		Destination:     req.Destination,
		Tags:            req.Tags,
		Notes:           req.Notes,
	}
	if req.Category != nil {
		category := models.ExpenseCategory(*req.Category)
		input.Category = &category
	}
	if req.Status != nil {
		status := models.ExpenseStatus(*req.Status)
		input.Status = &status
	}
	if req.Date != nil {
		date, err := parseDate("date", *req.Date)
		if err != nil {
			response.Error(c, err)
			return
		}
		input.Date = &date
	}

	expense, err := h.service.Update(requestContext(c), p, c.Param("id"), input)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"expense": expense})
}

// DELETE /api/expenses/:id
func (h *ExpenseHandler) Delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	if err := h.service.Delete(requestContext(c), p, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Expense deleted successfully")
}

// POST /api/expenses/:id/share
func (h *ExpenseHandler) Share(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req shareExpenseRequest
	if !bindAndValidate(c, &req) {
		return
	}

	expense, err := h.service.Share(requestContext(c), p, c.Param("id"), req.UserIDs, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"expense": expense})
}

// PUT /api/expenses/:id/share/:userId
func (h *ExpenseHandler) UpdateShareStatus(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req shareStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}

	expense, err := h.service.UpdateShareStatus(requestContext(c), p, c.Param("id"), c.Param("userId"),
		models.ShareStatus(req.Status), req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"expense": expense})
}

// expenseFilters reads the shared listing query parameters. It writes a 400
// and returns false on malformed input.
func expenseFilters(c *gin.Context) (services.ExpenseFilters, bool) {
	filters := services.ExpenseFilters{
		Page: services.Page{
			Page:    parseIntQuery(c, "page", 1),
			PerPage: parseIntQuery(c, "limit", 10),
		},
		Category:   models.ExpenseCategory(strings.TrimSpace(c.Query("category"))),
		Status:     models.ExpenseStatus(strings.TrimSpace(c.Query("status"))),
		Shared:     parseBoolQuery(c, "sharedWithLocal"),
		Search:     c.Query("search"),
		ExporterID: strings.TrimSpace(c.Query("exporterId")),
	}
	if filters.Category != "" && !validCategory(filters.Category) {
		response.Error(c, apperrors.NewValidationFailed("Invalid expense category"))
		return filters, false
	}

	var err error
	if filters.StartDate, err = parseDateQuery(c, "startDate", false); err != nil {
		response.Error(c, err)
		return filters, false
	}
	if filters.EndDate, err = parseDateQuery(c, "endDate", true); err != nil {
		response.Error(c, err)
		return filters, false
	}
	return filters, true
}

func writeExpensePage(c *gin.Context, expenses []models.Expense, page services.Page, total int64) {
	page = page.Normalise()
	response.SuccessWithMeta(c, http.StatusOK, gin.H{"expenses": expenses}, response.NewMeta(page.Page, page.PerPage, total))
}

func validCategory(category models.ExpenseCategory) bool {
	for _, known := range models.ExpenseCategories() {
		if known == category {
			return true
		}
	}
	return false
}

// parseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates.
func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	day, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, apperrors.NewValidationFailed(field + " must be a date (YYYY-MM-DD)")
	}
	return day, nil
}
