package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vexpense/vexpense/internal/models"
	"github.com/vexpense/vexpense/internal/policy"
	apperrors "github.com/vexpense/vexpense/pkg/errors"
	"github.com/vexpense/vexpense/pkg/logger"
)

// PartInput carries the fields of a new part.
type PartInput struct {
	PartNumber     string
	Name           string
	Description    string
	Category       models.PartCategory
	Vehicle        models.PartVehicle
	Specifications models.PartSpecifications
	Cost           float64
	Currency       string
	Markup         float64
	Quantity       int
	MinimumStock   int
	Location       string
	Tags           []string
}

// PartUpdate lists the attributes that may change on an existing part.
type PartUpdate struct {
	Name         *string
	Description  *string
	Category     *models.PartCategory
	Vehicle      *models.PartVehicle
	Condition    *models.PartCondition
	Cost         *float64
	Currency     *string
	Markup       *float64
	MinimumStock *int
	Location     *string
	Tags         *[]string
	IsActive     *bool
}

// PartFilters narrows part listings.
type PartFilters struct {
	Page
	ExporterID string
	Category   models.PartCategory
	Condition  models.PartCondition
	LowStock   bool
	Search     string
}

// PartService manages exporters' spare part inventory.
type PartService struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.Logger
}

// NewPartService constructs a PartService.
func NewPartService(db *gorm.DB) (*PartService, error) {
	if db == nil {
		return nil, errors.New("part service: db is required")
	}
	return &PartService{
		db:  db,
		now: time.Now,
		log: logger.WithModule("parts"),
	}, nil
}

// Create adds a part to the calling exporter's inventory.
func (s *PartService) Create(ctx context.Context, principal policy.Principal, input PartInput) (*models.Part, error) {
	ctx = ensureContext(ctx)

	if err := authorize(policy.RequireRole(principal, models.RoleExporter)); err != nil {
		return nil, err
	}

	part := &models.Part{
		ExporterID:  principal.UserID,
		PartNumber:  strings.ToUpper(strings.TrimSpace(input.PartNumber)),
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Category:    input.Category,
		Vehicle:     trimVehicle(input.Vehicle),
		Specifications: models.PartSpecifications{
			Weight:     input.Specifications.Weight,
			Dimensions: strings.TrimSpace(input.Specifications.Dimensions),
			Material:   strings.TrimSpace(input.Specifications.Material),
			Color:      strings.TrimSpace(input.Specifications.Color),
			Condition:  input.Specifications.Condition,
		},
		Pricing: models.PartPricing{
			Cost:     input.Cost,
			Currency: models.Currency(strings.ToUpper(strings.TrimSpace(input.Currency))),
			Markup:   input.Markup,
		},
		Inventory: models.PartInventory{
			MinimumStock: input.MinimumStock,
			Location:     strings.TrimSpace(input.Location),
		},
		Tags:      normaliseTags(input.Tags),
		IsActive:  true,
		CreatedBy: principal.UserID,
		UpdatedBy: principal.UserID,
	}
	if part.Category == "" {
		part.Category = models.PartOther
	}
	if part.Specifications.Condition == "" {
		part.Specifications.Condition = models.ConditionUsed
	}
	if part.Pricing.Currency == "" {
		part.Pricing.Currency = models.CurrencyJPY
	}
	switch {
	case input.Quantity < 0:
		return nil, apperrors.NewValidationFailed("Quantity cannot be negative")
	case input.Quantity > 0:
		_ = part.AdjustInventory(models.InventorySet, input.Quantity, s.now())
	}
	part.ApplyPricing()

	if err := validatePart(part); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(part).Error
	if isUniqueConstraintError(err) {
		return nil, ErrPartNumberExists.WithInternal(err)
	}
	if err != nil {
		return nil, fmt.Errorf("part service: create part: %w", err)
	}

	s.log.Info("part created", zap.String("part_id", part.ID), zap.String("exporter_id", principal.UserID))
	return s.load(ctx, part.ID)
}

// Get returns a part the principal may read.
func (s *PartService) Get(ctx context.Context, principal policy.Principal, id string) (*models.Part, error) {
	ctx = ensureContext(ctx)

	part, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(policy.RequireOwnResource(principal, part, policy.AccessRead)); err != nil {
		return nil, err
	}
	return part, nil
}

// Update changes a part owned by the principal and recomputes its selling price.
func (s *PartService) Update(ctx context.Context, principal policy.Principal, id string, input PartUpdate) (*models.Part, error) {
	ctx = ensureContext(ctx)

	part, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(policy.RequireOwnResource(principal, part, policy.AccessWrite)); err != nil {
		return nil, err
	}

	applyPartUpdate(part, input)
	part.ApplyPricing()
	part.UpdatedBy = principal.UserID

	if err := validatePart(part); err != nil {
		return nil, err
	}
	if err := s.save(ctx, part); err != nil {
		return nil, err
	}

	s.log.Info("part updated", zap.String("part_id", id), zap.String("user_id", principal.UserID))
	return s.load(ctx, id)
}

// AdjustInventory adds, subtracts or sets the stock of a part owned by the principal.
func (s *PartService) AdjustInventory(ctx context.Context, principal policy.Principal, id string, op models.InventoryOperation, quantity int) (*models.Part, error) {
	ctx = ensureContext(ctx)

	part, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(policy.RequireOwnResource(principal, part, policy.AccessWrite)); err != nil {
		return nil, err
	}

	if err := part.AdjustInventory(op, quantity, s.now()); err != nil {
		return nil, apperrors.NewValidationFailed("Operation must be add, subtract or set with a non-negative quantity")
	}
	part.UpdatedBy = principal.UserID
	if err := s.save(ctx, part); err != nil {
		return nil, err
	}

	s.log.Info("part inventory adjusted",
		zap.String("part_id", id),
		zap.String("operation", string(op)),
		zap.Int("quantity", part.Inventory.Quantity),
	)
	return s.load(ctx, id)
}

// Delete removes a part owned by the principal.
func (s *PartService) Delete(ctx context.Context, principal policy.Principal, id string) error {
	ctx = ensureContext(ctx)

	part, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(policy.RequireOwnResource(principal, part, policy.AccessWrite)); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&models.Part{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("part service: delete part: %w", err)
	}

	s.log.Info("part deleted", zap.String("part_id", id), zap.String("user_id", principal.UserID))
	return nil
}

// List lists parts, newest first. Exporter-scoped listings set ExporterID.
func (s *PartService) List(ctx context.Context, filters PartFilters) ([]models.Part, int64, error) {
	ctx = ensureContext(ctx)
	page := filters.Page.Normalise()

	query := s.db.WithContext(ctx).Model(&models.Part{})
	if filters.ExporterID != "" {
		query = query.Where("exporter_id = ?", filters.ExporterID)
	}
	if filters.Category != "" {
		query = query.Where("category = ?", filters.Category)
	}
	if filters.Condition != "" {
		query = query.Where("spec_condition = ?", filters.Condition)
	}
	if filters.LowStock {
		query = query.Where("inventory_quantity <= inventory_minimum_stock")
	}
	if strings.TrimSpace(filters.Search) != "" {
		pattern := likePattern(filters.Search)
		query = query.Where(
			`LOWER(name) LIKE ? ESCAPE '!' OR LOWER(part_number) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!'`,
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("part service: count parts: %w", err)
	}

	var parts []models.Part
	err := query.
		Order("created_at DESC").
		Offset(page.offset()).
		Limit(page.PerPage).
		Find(&parts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("part service: list parts: %w", err)
	}
	return parts, total, nil
}

func (s *PartService) save(ctx context.Context, part *models.Part) error {
	err := s.db.WithContext(ctx).
		Model(&models.Part{}).
		Where("id = ?", part.ID).
		Select("*").
		Omit(clause.Associations, "id", "exporter_id", "part_number", "created_by", "created_at").
		Updates(part).Error
	if err != nil {
		return fmt.Errorf("part service: update part: %w", err)
	}
	return nil
}

func (s *PartService) load(ctx context.Context, id string) (*models.Part, error) {
	var part models.Part
	err := s.db.WithContext(ctx).Preload("Exporter").Take(&part, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("part service: load part: %w", err)
	}
	return &part, nil
}

func validatePart(part *models.Part) error {
	switch {
	case part.PartNumber == "":
		return apperrors.NewValidationFailed("Part number is required")
	case part.Name == "":
		return apperrors.NewValidationFailed("Part name is required")
	case len(part.Name) > 200:
		return apperrors.NewValidationFailed("Part name cannot exceed 200 characters")
	case len(part.Description) > 1000:
		return apperrors.NewValidationFailed("Description cannot exceed 1000 characters")
	case !part.Category.Valid():
		return apperrors.NewValidationFailed("Invalid part category")
	case !part.Specifications.Condition.Valid():
		return apperrors.NewValidationFailed("Invalid part condition")
	case part.Pricing.Cost < 0 || math.IsNaN(part.Pricing.Cost):
		return apperrors.NewValidationFailed("Cost cannot be negative")
	case part.Pricing.Markup < 0:
		return apperrors.NewValidationFailed("Markup cannot be negative")
	case !part.Pricing.Currency.Valid():
		return errUnsupportedCurrency
	case part.Inventory.MinimumStock < 0:
		return apperrors.NewValidationFailed("Minimum stock cannot be negative")
	case part.Vehicle.YearStart != 0 && part.Vehicle.YearEnd != 0 && part.Vehicle.YearEnd < part.Vehicle.YearStart:
		return apperrors.NewValidationFailed("Vehicle year range is invalid")
	}
	return nil
}

func applyPartUpdate(part *models.Part, in PartUpdate) {
	if v := trimPtr(in.Name); v != nil {
		part.Name = *v
	}
	if v := trimPtr(in.Description); v != nil {
		part.Description = *v
	}
	if in.Category != nil {
		part.Category = *in.Category
	}
	if in.Vehicle != nil {
		part.Vehicle = trimVehicle(*in.Vehicle)
	}
	if in.Condition != nil {
		part.Specifications.Condition = *in.Condition
	}
	if in.Cost != nil {
		part.Pricing.Cost = *in.Cost
	}
	if v := trimPtr(in.Currency); v != nil {
		part.Pricing.Currency = models.Currency(strings.ToUpper(*v))
	}
	if in.Markup != nil {
		part.Pricing.Markup = *in.Markup
	}
	if in.MinimumStock != nil {
		part.Inventory.MinimumStock = *in.MinimumStock
	}
	if v := trimPtr(in.Location); v != nil {
		part.Inventory.Location = *v
	}
	if in.Tags != nil {
		part.Tags = normaliseTags(*in.Tags)
	}
	if in.IsActive != nil {
		part.IsActive = *in.IsActive
	}
}

func trimVehicle(in models.PartVehicle) models.PartVehicle {
	return models.PartVehicle{
		Make:      strings.TrimSpace(in.Make),
		Model:     strings.TrimSpace(in.Model),
		YearStart: in.YearStart,
		YearEnd:   in.YearEnd,
		VIN:       strings.ToUpper(strings.TrimSpace(in.VIN)),
	}
}
