package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vexpense/vexpense/internal/currency"
	"github.com/vexpense/vexpense/internal/models"
	"github.com/vexpense/vexpense/internal/policy"
	apperrors "github.com/vexpense/vexpense/pkg/errors"
	"github.com/vexpense/vexpense/pkg/logger"
)

// CurrencyConverter converts expense amounts into USD.
type CurrencyConverter interface {
	ToUSD(amount float64, from string, override float64) (usd float64, rate float64, err error)
}

// ExpenseInput carries the fields of a new expense.
type ExpenseInput struct {
	Category        models.ExpenseCategory
	Title           string
	Description     string
	Amount          float64
	Currency        string
	ExchangeRate    float64
	Date            time.Time
	InvoiceNumber   string
	InvoiceDate     *time.Time
	SupplierName    string
	SupplierContact string
	VehicleVIN      string
	VehicleMake     string
	VehicleModel    string
	VehicleYear     int
	TrackingNumber  string
	Carrier         string
	Origin          string
	Destination     string
	Status          models.ExpenseStatus
	Tags            []string
	Notes           string
}

// ExpenseUpdate lists the attributes that may change on an existing expense.
type ExpenseUpdate struct {
	Category        *models.ExpenseCategory
	Title           *string
	Description     *string
	Amount          *float64
	Currency        *string
	ExchangeRate    *float64
	Date            *time.Time
	InvoiceNumber   *string
	SupplierName    *string
	SupplierContact *string
	VehicleVIN      *string
	VehicleMake     *string
	VehicleModel    *string
	VehicleYear     *int
	TrackingNumber  *string
	Carrier         *string
	Origin          *string
	Destination     *string
	Status          *models.ExpenseStatus
	Tags            *[]string
	Notes           *string
}

// ExpenseFilters narrows expense listings.
type ExpenseFilters struct {
	Page
	Category    models.ExpenseCategory
	Status      models.ExpenseStatus
	Shared      *bool
	StartDate   *time.Time
	EndDate     *time.Time
	Search      string
	ExporterID  string
	ShareStatus models.ShareStatus
}

// CategoryTotal aggregates one expense category.
type CategoryTotal struct {
	Category models.ExpenseCategory `json:"category"`
	Count    int64                  `json:"count"`
	Amount   float64                `json:"amount"`
}

// ExpenseStatistics summarises an exporter's expenses in USD.
type ExpenseStatistics struct {
	TotalExpenses     int64           `json:"totalExpenses"`
	TotalAmount       float64         `json:"totalAmount"`
	SharedExpenses    int64           `json:"sharedExpenses"`
	AverageAmount     float64         `json:"averageAmount"`
	CategoryBreakdown []CategoryTotal `json:"categoryBreakdown"`
}

// ExpenseService manages exporter expenses and their sharing with local users.
type ExpenseService struct {
	db        *gorm.DB
	converter CurrencyConverter
	now       func() time.Time
	log       *zap.Logger
}

// NewExpenseService constructs an ExpenseService.
func NewExpenseService(db *gorm.DB, converter CurrencyConverter) (*ExpenseService, error) {
	if db == nil {
		return nil, errors.New("expense service: db is required")
	}
	if converter == nil {
		return nil, errors.New("expense service: currency converter is required")
	}
	return &ExpenseService{
		db:        db,
		converter: converter,
		now:       time.Now,
		log:       logger.WithModule("expenses"),
	}, nil
}

// Create records a new expense owned by the calling exporter.
func (s *ExpenseService) Create(ctx context.Context, principal policy.Principal, input ExpenseInput) (*models.Expense, error) {
	ctx = ensureContext(ctx)

	if err := authorize(policy.RequireRole(principal, models.RoleExporter)); err != nil {
		return nil, err
	}

	expense := &models.Expense{
		ExporterID:      principal.UserID,
		Category:        input.Category,
		Title:           strings.TrimSpace(input.Title),
		Description:     strings.TrimSpace(input.Description),
		Amount:          input.Amount,
		Currency:        models.Currency(strings.ToUpper(strings.TrimSpace(input.Currency))),
		ExchangeRate:    input.ExchangeRate,
		Date:            input.Date.UTC(),
		InvoiceNumber:   strings.TrimSpace(input.InvoiceNumber),
		InvoiceDate:     input.InvoiceDate,
		SupplierName:    strings.TrimSpace(input.SupplierName),
		SupplierContact: strings.TrimSpace(input.SupplierContact),
		VehicleVIN:      strings.ToUpper(strings.TrimSpace(input.VehicleVIN)),
		VehicleMake:     strings.TrimSpace(input.VehicleMake),
		VehicleModel:    strings.TrimSpace(input.VehicleModel),
		VehicleYear:     input.VehicleYear,
		TrackingNumber:  strings.TrimSpace(input.TrackingNumber),
		Carrier:         strings.TrimSpace(input.Carrier),
		Origin:          strings.TrimSpace(input.Origin),
		Destination:     strings.TrimSpace(input.Destination),
		Status:          input.Status,
		Tags:            normaliseTags(input.Tags),
		Notes:           strings.TrimSpace(input.Notes),
		CreatedBy:       principal.UserID,
		UpdatedBy:       principal.UserID,
	}
	if expense.Currency == "" {
		expense.Currency = models.CurrencyJPY
	}
	if expense.Status == "" {
		expense.Status = models.ExpenseDraft
	}

	if err := s.validate(expense); err != nil {
		return nil, err
	}
	if err := s.applyUSD(expense); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(expense).Error; err != nil {
		return nil, fmt.Errorf("expense service: create expense: %w", err)
	}

	s.log.Info("expense created", zap.String("expense_id", expense.ID), zap.String("exporter_id", principal.UserID))
	return s.load(ctx, expense.ID)
}

// Get returns an expense the principal may read.
func (s *ExpenseService) Get(ctx context.Context, principal policy.Principal, id string) (*models.Expense, error) {
	ctx = ensureContext(ctx)

	expense, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(policy.RequireOwnResource(principal, expense, policy.AccessRead)); err != nil {
		return nil, err
	}
	return expense, nil
}

// Update changes an expense owned by the principal.
func (s *ExpenseService) Update(ctx context.Context, principal policy.Principal, id string, input ExpenseUpdate) (*models.Expense, error) {
	ctx = ensureContext(ctx)

	expense, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(policy.RequireOwnResource(principal, expense, policy.AccessWrite)); err != nil {
		return nil, err
	}

	applyExpenseUpdate(expense, input)
	expense.UpdatedBy = principal.UserID

	if err := s.validate(expense); err != nil {
		return nil, err
	}
	if input.Amount != nil || input.Currency != nil || input.ExchangeRate != nil {
		if err := s.applyUSD(expense); err != nil {
			return nil, err
		}
	}

	err = s.db.WithContext(ctx).
		Model(&models.Expense{}).
		Where("id = ?", expense.ID).
		Select("*").
		Omit(clause.Associations, "id", "exporter_id", "created_by", "created_at", "shared_with_local").
		Updates(expense).Error
	if err != nil {
		return nil, fmt.Errorf("expense service: update expense: %w", err)
	}

	s.log.Info("expense updated", zap.String("expense_id", id), zap.String("user_id", principal.UserID))
	return s.load(ctx, id)
}

// Delete removes an expense owned by the principal together with its shares.
func (s *ExpenseService) Delete(ctx context.Context, principal policy.Principal, id string) error {
	ctx = ensureContext(ctx)

	expense, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(policy.RequireOwnResource(principal, expense, policy.AccessWrite)); err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("expense_id = ?", id).Delete(&models.ExpenseShare{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Expense{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("expense service: delete expense: %w", err)
	}

	s.log.Info("expense deleted", zap.String("expense_id", id), zap.String("user_id", principal.UserID))
	return nil
}

// Share grants each of userIDs read access to the expense. Every target must
// be an active local user. Users already holding a share are left untouched.
func (s *ExpenseService) Share(ctx context.Context, principal policy.Principal, id string, userIDs []string, notes string) (*models.Expense, error) {
	ctx = ensureContext(ctx)

	expense, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(policy.RequireOwnResource(principal, expense, policy.AccessWrite)); err != nil {
		return nil, err
	}

	ids := normaliseIDs(userIDs)
	if len(ids) == 0 {
		return nil, apperrors.NewValidationFailed("At least one user ID is required")
	}

	var valid int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id IN ? AND role = ? AND is_active = ?", ids, models.RoleLocal, true).
		Count(&valid).Error; err != nil {
		return nil, fmt.Errorf("expense service: verify share targets: %w", err)
	}
	if valid != int64(len(ids)) {
		return nil, ErrInvalidShareTargets
	}

	now := s.now().UTC()
	shares := make([]models.ExpenseShare, 0, len(ids))
	for _, userID := range ids {
		if expense.IsSharedWith(userID) {
			continue
		}
		shares = append(shares, models.ExpenseShare{
			ExpenseID: id,
			UserID:    userID,
			SharedAt:  now,
			Status:    models.SharePending,
			Notes:     strings.TrimSpace(notes),
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(shares) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&shares).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.Expense{}).Where("id = ?", id).Updates(map[string]any{
			"shared_with_local": true,
			"updated_by":        principal.UserID,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("expense service: share expense: %w", err)
	}

	s.log.Info("expense shared",
		zap.String("expense_id", id),
		zap.Strings("user_ids", ids),
		zap.String("user_id", principal.UserID),
	)
	return s.load(ctx, id)
}

// UpdateShareStatus records the shared user's response. Only that user, the
// owning exporter or an administrator may change it.
func (s *ExpenseService) UpdateShareStatus(ctx context.Context, principal policy.Principal, id, shareUserID string, status models.ShareStatus, notes string) (*models.Expense, error) {
	ctx = ensureContext(ctx)

	if !status.Valid() {
		return nil, apperrors.NewValidationFailed("Status must be one of: pending, accepted, rejected, requested_info")
	}

	expense, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	share := expense.ShareFor(shareUserID)
	if share == nil {
		return nil, ErrShareNotFound
	}

	if principal.UserID != shareUserID {
		if err := authorize(policy.RequireOwnResource(principal, expense, policy.AccessWrite)); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Model(&models.ExpenseShare{}).
		Where("id = ?", share.ID).
		Updates(map[string]any{
			"status": status,
			"notes":  strings.TrimSpace(notes),
		}).Error; err != nil {
		return nil, fmt.Errorf("expense service: update share status: %w", err)
	}

	s.log.Info("share status updated",
		zap.String("expense_id", id),
		zap.String("share_user_id", shareUserID),
		zap.String("status", string(status)),
		zap.String("user_id", principal.UserID),
	)
	return s.load(ctx, id)
}

// ListForExporter lists the exporter's own expenses, newest first.
func (s *ExpenseService) ListForExporter(ctx context.Context, exporterID string, filters ExpenseFilters) ([]models.Expense, int64, error) {
	ctx = ensureContext(ctx)
	filters.ExporterID = exporterID
	return s.list(ctx, s.db.WithContext(ctx).Model(&models.Expense{}), filters)
}

// ListShared lists expenses shared with the local user, optionally narrowed
// to a share status or a single exporter.
func (s *ExpenseService) ListShared(ctx context.Context, userID string, filters ExpenseFilters) ([]models.Expense, int64, error) {
	ctx = ensureContext(ctx)

	shares := s.db.Model(&models.ExpenseShare{}).Select("expense_id").Where("user_id = ?", userID)
	if filters.ShareStatus != "" {
		shares = shares.Where("status = ?", filters.ShareStatus)
	}

	query := s.db.WithContext(ctx).Model(&models.Expense{}).
		Where("shared_with_local = ?", true).
		Where("id IN (?)", shares)
	filters.Shared = nil
	return s.list(ctx, query, filters)
}

// ListAll lists every expense. It is reserved for administrators by the router.
func (s *ExpenseService) ListAll(ctx context.Context, filters ExpenseFilters) ([]models.Expense, int64, error) {
	ctx = ensureContext(ctx)
	return s.list(ctx, s.db.WithContext(ctx).Model(&models.Expense{}), filters)
}

// Statistics aggregates the exporter's expenses in USD.
func (s *ExpenseService) Statistics(ctx context.Context, exporterID string, filters ExpenseFilters) (*ExpenseStatistics, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Expense{}).Where("exporter_id = ?", exporterID)
	if filters.Category != "" {
		query = query.Where("category = ?", filters.Category)
	}
	if filters.StartDate != nil {
		query = query.Where("date >= ?", filters.StartDate.UTC())
	}
	if filters.EndDate != nil {
		query = query.Where("date <= ?", filters.EndDate.UTC())
	}

	var rows []struct {
		Category models.ExpenseCategory
		Count    int64
		Amount   float64
		Shared   int64
	}
	err := query.
		Select("category, COUNT(*) AS count, COALESCE(SUM(amount_in_usd), 0) AS amount, " +
			"COALESCE(SUM(CASE WHEN shared_with_local THEN 1 ELSE 0 END), 0) AS shared").
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("expense service: statistics: %w", err)
	}

	stats := &ExpenseStatistics{CategoryBreakdown: make([]CategoryTotal, 0, len(rows))}
	for _, row := range rows {
		stats.TotalExpenses += row.Count
		stats.TotalAmount += row.Amount
		stats.SharedExpenses += row.Shared
		stats.CategoryBreakdown = append(stats.CategoryBreakdown, CategoryTotal{
			Category: row.Category,
			Count:    row.Count,
			Amount:   currency.Round(row.Amount),
		})
	}
	sort.Slice(stats.CategoryBreakdown, func(i, j int) bool {
		return stats.CategoryBreakdown[i].Amount > stats.CategoryBreakdown[j].Amount
	})

	if stats.TotalExpenses > 0 {
		stats.AverageAmount = currency.Round(stats.TotalAmount / float64(stats.TotalExpenses))
	}
	stats.TotalAmount = currency.Round(stats.TotalAmount)
	return stats, nil
}

func (s *ExpenseService) list(ctx context.Context, query *gorm.DB, filters ExpenseFilters) ([]models.Expense, int64, error) {
	page := filters.Page.Normalise()

	if filters.ExporterID != "" {
		query = query.Where("exporter_id = ?", filters.ExporterID)
	}
	if filters.Category != "" {
		query = query.Where("category = ?", filters.Category)
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.Shared != nil {
		query = query.Where("shared_with_local = ?", *filters.Shared)
	}
	if filters.StartDate != nil {
		query = query.Where("date >= ?", filters.StartDate.UTC())
	}
	if filters.EndDate != nil {
		query = query.Where("date <= ?", filters.EndDate.UTC())
	}
	if strings.TrimSpace(filters.Search) != "" {
		pattern := likePattern(filters.Search)
		query = query.Where(
			`LOWER(title) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!' OR LOWER(invoice_number) LIKE ? ESCAPE '!' OR LOWER(vehicle_vin) LIKE ? ESCAPE '!'`,
			pattern, pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("expense service: count expenses: %w", err)
	}

	var expenses []models.Expense
	err := query.
		Preload("Exporter").
		Preload("Shares.User").
		Order("date DESC").
		Order("created_at DESC").
		Offset(page.offset()).
		Limit(page.PerPage).
		Find(&expenses).Error
	if err != nil {
		return nil, 0, fmt.Errorf("expense service: list expenses: %w", err)
	}
	return expenses, total, nil
}

func (s *ExpenseService) load(ctx context.Context, id string) (*models.Expense, error) {
	var expense models.Expense
	err := s.db.WithContext(ctx).
		Preload("Exporter").
		Preload("Shares", func(db *gorm.DB) *gorm.DB { return db.Order("shared_at ASC") }).
		Preload("Shares.User").
		Take(&expense, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrExpenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("expense service: load expense: %w", err)
	}
	return &expense, nil
}

func (s *ExpenseService) validate(expense *models.Expense) error {
	switch {
	case !validCategory(expense.Category):
		return apperrors.NewValidationFailed("Invalid expense category")
	case expense.Title == "":
		return apperrors.NewValidationFailed("Title is required")
	case len(expense.Title) > 200:
		return apperrors.NewValidationFailed("Title cannot exceed 200 characters")
	case len(expense.Description) > 1000:
		return apperrors.NewValidationFailed("Description cannot exceed 1000 characters")
	case len(expense.Notes) > 500:
		return apperrors.NewValidationFailed("Notes cannot exceed 500 characters")
	case expense.Amount < 0:
		return apperrors.NewValidationFailed("Amount must be positive")
	case !expense.Currency.Valid():
		return errUnsupportedCurrency
	case expense.Date.IsZero():
		return apperrors.NewValidationFailed("Expense date is required")
	case !validStatus(expense.Status):
		return apperrors.NewValidationFailed("Invalid expense status")
	}
	return nil
}

func (s *ExpenseService) applyUSD(expense *models.Expense) error {
	usd, rate, err := s.converter.ToUSD(expense.Amount, expense.Currency.String(), expense.ExchangeRate)
	if err != nil {
		if errors.Is(err, currency.ErrUnsupportedCurrency) {
			return errUnsupportedCurrency
		}
		return fmt.Errorf("expense service: convert amount: %w", err)
	}
	expense.AmountInUSD = usd
	expense.ExchangeRate = rate
	return nil
}

func applyExpenseUpdate(expense *models.Expense, in ExpenseUpdate) {
	if in.Category != nil {
		expense.Category = *in.Category
	}
	if v := trimPtr(in.Title); v != nil {
		expense.Title = *v
	}
	if v := trimPtr(in.Description); v != nil {
		expense.Description = *v
	}
	if in.Amount != nil {
		expense.Amount = *in.Amount
	}
	if v := trimPtr(in.Currency); v != nil {
		expense.Currency = models.Currency(strings.ToUpper(*v))
		if in.ExchangeRate == nil {
			expense.ExchangeRate = 0
		}
	}
	if in.ExchangeRate != nil {
		expense.ExchangeRate = *in.ExchangeRate
	}
	if in.Date != nil {
		expense.Date = in.Date.UTC()
	}
	if v := trimPtr(in.InvoiceNumber); v != nil {
		expense.InvoiceNumber = *v
	}
	if v := trimPtr(in.SupplierName); v != nil {
		expense.SupplierName = *v
	}
	if v := trimPtr(in.SupplierContact); v != nil {
		expense.SupplierContact = *v
	}
	if v := trimPtr(in.VehicleVIN); v != nil {
		expense.VehicleVIN = strings.ToUpper(*v)
	}
	if v := trimPtr(in.VehicleMake); v != nil {
		expense.VehicleMake = *v
	}
	if v := trimPtr(in.VehicleModel); v != nil {
		expense.VehicleModel = *v
	}
	if in.VehicleYear != nil {
		expense.VehicleYear = *in.VehicleYear
	}
	if v := trimPtr(in.TrackingNumber); v != nil {
		expense.TrackingNumber = *v
	}
	if v := trimPtr(in.Carrier); v != nil {
		expense.Carrier = *v
	}
	if v := trimPtr(in.Origin); v != nil {
		expense.Origin = *v
	}
	if v := trimPtr(in.Destination); v != nil {
		expense.Destination = *v
	}
	if in.Status != nil {
		expense.Status = *in.Status
	}
	if in.Tags != nil {
		expense.Tags = normaliseTags(*in.Tags)
	}
	if v := trimPtr(in.Notes); v != nil {
		expense.Notes = *v
	}
}

// authorize converts a policy denial into the API's forbidden error.
func authorize(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, policy.ErrForbidden) {
		return apperrors.ErrForbidden.WithInternal(err)
	}
	return err
}

func validCategory(category models.ExpenseCategory) bool {
	for _, c := range models.ExpenseCategories() {
		if c == category {
			return true
		}
	}
	return false
}

func validStatus(status models.ExpenseStatus) bool {
	switch status {
	case models.ExpenseDraft, models.ExpensePending, models.ExpenseApproved, models.ExpenseRejected, models.ExpensePaid:
		return true
	}
	return false
}

func normaliseTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
