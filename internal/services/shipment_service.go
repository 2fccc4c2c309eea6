package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
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

var (
	shipmentContentTypes  = []string{"vehicle", "parts", "documents", "other"}
	shipmentDocumentTypes = []string{"bill_of_lading", "invoice", "packing_list", "certificate", "other"}
)

// ShipmentInput carries the fields of a new shipment.
type ShipmentInput struct {
	TrackingNumber  string
	Carrier         models.ContactInfo
	Origin          models.ShipmentEndpoint
	Destination     models.ShipmentEndpoint
	Contents        []models.ShipmentItem
	Schedule        models.ShipmentSchedule
	Method          models.ShippingMethod
	Cost            float64
	Currency        string
	Insured         bool
	InsuranceAmount float64
	Documents       []models.ShipmentDocument
	Notes           string
}

// ShipmentUpdate lists the attributes that may change on an existing shipment.
// Status only moves through tracking updates.
type ShipmentUpdate struct {
	Carrier         *models.ContactInfo
	Origin          *models.ShipmentEndpoint
	Destination     *models.ShipmentEndpoint
	Contents        *[]models.ShipmentItem
	Schedule        *models.ShipmentSchedule
	Method          *models.ShippingMethod
	Cost            *float64
	Currency        *string
	Insured         *bool
	InsuranceAmount *float64
	Notes           *string
}

// TrackingInput is one status report for a shipment.
type TrackingInput struct {
	Status   models.ShipmentStatus
	Location string
	Notes    string
}

// ShipmentFilters narrows shipment listings.
type ShipmentFilters struct {
	Page
	ExporterID string
	Status     models.ShipmentStatus
	Search     string
}

// ShipmentService manages exporters' shipments and their tracking history.
type ShipmentService struct {
	db        *gorm.DB
	converter CurrencyConverter
	now       func() time.Time
	log       *zap.Logger
}

// NewShipmentService constructs a ShipmentService.
func NewShipmentService(db *gorm.DB, converter CurrencyConverter) (*ShipmentService, error) {
	if db == nil {
		return nil, errors.New("shipment service: db is required")
	}
	if converter == nil {
		return nil, errors.New("shipment service: currency converter is required")
	}
	return &ShipmentService{
		db:        db,
		converter: converter,
		now:       time.Now,
		log:       logger.WithModule("shipments"),
	}, nil
}

// Create records a new pending shipment owned by the calling exporter.
func (s *ShipmentService) Create(ctx context.Context, principal policy.Principal, input ShipmentInput) (*models.Shipment, error) {
	ctx = ensureContext(ctx)

	if err := authorize(policy.RequireRole(principal, models.RoleExporter)); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	shipment := &models.Shipment{
		ExporterID:     principal.UserID,
		TrackingNumber: strings.ToUpper(strings.TrimSpace(input.TrackingNumber)),
		Carrier:        trimContact(input.Carrier),
		Origin:         trimEndpoint(input.Origin),
		Destination:    trimEndpoint(input.Destination),
		Contents:       input.Contents,
		Schedule:       input.Schedule,
		Status:         models.ShipmentPending,
		Shipping: models.ShippingTerms{
			Method:          input.Method,
			Cost:            input.Cost,
			Currency:        models.Currency(strings.ToUpper(strings.TrimSpace(input.Currency))),
			Insured:         input.Insured,
			InsuranceAmount: input.InsuranceAmount,
		},
		Notes:     strings.TrimSpace(input.Notes),
		CreatedBy: principal.UserID,
		UpdatedBy: principal.UserID,
	}
	if shipment.Shipping.Currency == "" {
		shipment.Shipping.Currency = models.CurrencyJPY
	}
	for _, doc := range input.Documents {
		doc.UploadedAt = now
		shipment.Documents = append(shipment.Documents, doc)
	}
	shipment.Tracking = append(shipment.Tracking, models.TrackingEvent{
		Status:    models.ShipmentPending,
		Location:  shipment.Origin.Address.City,
		Timestamp: now,
		Notes:     "Shipment created",
	})

	if err := s.prepare(shipment); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Omit(clause.Associations).Create(shipment).Error
	if isUniqueConstraintError(err) {
		return nil, ErrTrackingNumberExists.WithInternal(err)
	}
	if err != nil {
		return nil, fmt.Errorf("shipment service: create shipment: %w", err)
	}

	s.log.Info("shipment created", zap.String("shipment_id", shipment.ID), zap.String("exporter_id", principal.UserID))
	return s.load(ctx, shipment.ID)
}

// Get returns a shipment the principal may read.
func (s *ShipmentService) Get(ctx context.Context, principal policy.Principal, id string) (*models.Shipment, error) {
	ctx = ensureContext(ctx)

	shipment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(policy.RequireOwnResource(principal, shipment, policy.AccessRead)); err != nil {
		return nil, err
	}
	return shipment, nil
}

// Update changes a shipment owned by the principal.
func (s *ShipmentService) Update(ctx context.Context, principal policy.Principal, id string, input ShipmentUpdate) (*models.Shipment, error) {
	ctx = ensureContext(ctx)

	shipment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(policy.RequireOwnResource(principal, shipment, policy.AccessWrite)); err != nil {
		return nil, err
	}

	applyShipmentUpdate(shipment, input)
	shipment.UpdatedBy = principal.UserID
	if err := s.prepare(shipment); err != nil {
		return nil, err
	}
	if err := s.save(ctx, shipment); err != nil {
		return nil, err
	}

	s.log.Info("shipment updated", zap.String("shipment_id", id), zap.String("user_id", principal.UserID))
	return s.load(ctx, id)
}

// AddTracking appends a tracking event and moves the shipment to its status.
func (s *ShipmentService) AddTracking(ctx context.Context, principal policy.Principal, id string, input TrackingInput) (*models.Shipment, error) {
	ctx = ensureContext(ctx)

	if !input.Status.Valid() {
		return nil, apperrors.NewValidationFailed("Invalid shipment status")
	}

	shipment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(policy.RequireOwnResource(principal, shipment, policy.AccessWrite)); err != nil {
		return nil, err
	}

	shipment.AddTrackingEvent(models.TrackingEvent{
		Status:    input.Status,
		Location:  strings.TrimSpace(input.Location),
		Timestamp: s.now().UTC(),
		Notes:     strings.TrimSpace(input.Notes),
	})
	shipment.UpdatedBy = principal.UserID
	if err := s.save(ctx, shipment); err != nil {
		return nil, err
	}

	s.log.Info("shipment tracking updated",
		zap.String("shipment_id", id),
		zap.String("status", string(input.Status)),
		zap.String("user_id", principal.UserID),
	)
	return s.load(ctx, id)
}

// Delete removes a shipment owned by the principal.
func (s *ShipmentService) Delete(ctx context.Context, principal policy.Principal, id string) error {
	ctx = ensureContext(ctx)

	shipment, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(policy.RequireOwnResource(principal, shipment, policy.AccessWrite)); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&models.Shipment{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("shipment service: delete shipment: %w", err)
	}

	s.log.Info("shipment deleted", zap.String("shipment_id", id), zap.String("user_id", principal.UserID))
	return nil
}

// List lists shipments, newest first. Exporter-scoped listings set ExporterID.
func (s *ShipmentService) List(ctx context.Context, filters ShipmentFilters) ([]models.Shipment, int64, error) {
	ctx = ensureContext(ctx)
	page := filters.Page.Normalise()

	query := s.db.WithContext(ctx).Model(&models.Shipment{})
	if filters.ExporterID != "" {
		query = query.Where("exporter_id = ?", filters.ExporterID)
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if strings.TrimSpace(filters.Search) != "" {
		pattern := likePattern(filters.Search)
		query = query.Where(
			`LOWER(tracking_number) LIKE ? ESCAPE '!' OR LOWER(carrier_name) LIKE ? ESCAPE '!'`,
			pattern, pattern,
		)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("shipment service: count shipments: %w", err)
	}

	var shipments []models.Shipment
	err := query.
		Order("created_at DESC").
		Offset(page.offset()).
		Limit(page.PerPage).
		Find(&shipments).Error
	if err != nil {
		return nil, 0, fmt.Errorf("shipment service: list shipments: %w", err)
	}
	return shipments, total, nil
}

// prepare validates the shipment and derives its declared value in USD.
// Content lines without a currency inherit the shipping currency.
func (s *ShipmentService) prepare(shipment *models.Shipment) error {
	switch {
	case shipment.TrackingNumber == "":
		return apperrors.NewValidationFailed("Tracking number is required")
	case shipment.Carrier.Name == "":
		return apperrors.NewValidationFailed("Carrier name is required")
	case !shipment.Shipping.Method.Valid():
		return apperrors.NewValidationFailed("Shipping method must be one of: air, sea, land, express")
	case shipment.Shipping.Cost < 0:
		return apperrors.NewValidationFailed("Shipping cost cannot be negative")
	case !shipment.Shipping.Currency.Valid():
		return errUnsupportedCurrency
	case len(shipment.Notes) > 1000:
		return apperrors.NewValidationFailed("Notes cannot exceed 1000 characters")
	}
	for _, doc := range shipment.Documents {
		if !slices.Contains(shipmentDocumentTypes, doc.Type) {
			return apperrors.NewValidationFailed("Invalid shipment document type")
		}
	}

	var declared float64
	for i := range shipment.Contents {
		item := &shipment.Contents[i]
		item.Description = strings.TrimSpace(item.Description)
		item.Currency = models.Currency(strings.ToUpper(strings.TrimSpace(item.Currency.String())))
		if item.Currency == "" {
			item.Currency = shipment.Shipping.Currency
		}
		switch {
		case !slices.Contains(shipmentContentTypes, item.Type):
			return apperrors.NewValidationFailed("Invalid shipment content type")
		case item.Quantity < 0 || item.Value < 0 || item.Weight < 0:
			return apperrors.NewValidationFailed("Shipment contents cannot have negative quantities")
		case !item.Currency.Valid():
			return errUnsupportedCurrency
		}

		usd, _, err := s.converter.ToUSD(item.Value, item.Currency.String(), 0)
		if err != nil {
			if errors.Is(err, currency.ErrUnsupportedCurrency) {
				return errUnsupportedCurrency
			}
			return fmt.Errorf("shipment service: convert contents: %w", err)
		}
		declared += usd
	}
	shipment.DeclaredValueUSD = currency.Round(declared)
	return nil
}

func (s *ShipmentService) save(ctx context.Context, shipment *models.Shipment) error {
	err := s.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("id = ?", shipment.ID).
		Select("*").
		Omit(clause.Associations, "id", "exporter_id", "tracking_number", "created_by", "created_at").
		Updates(shipment).Error
	if err != nil {
		return fmt.Errorf("shipment service: update shipment: %w", err)
	}
	return nil
}

func (s *ShipmentService) load(ctx context.Context, id string) (*models.Shipment, error) {
	var shipment models.Shipment
	err := s.db.WithContext(ctx).Preload("Exporter").Take(&shipment, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrShipmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("shipment service: load shipment: %w", err)
	}
	return &shipment, nil
}

func applyShipmentUpdate(shipment *models.Shipment, in ShipmentUpdate) {
	if in.Carrier != nil {
		shipment.Carrier = trimContact(*in.Carrier)
	}
	if in.Origin != nil {
		shipment.Origin = trimEndpoint(*in.Origin)
	}
	if in.Destination != nil {
		shipment.Destination = trimEndpoint(*in.Destination)
	}
	if in.Contents != nil {
		shipment.Contents = *in.Contents
	}
	if in.Schedule != nil {
		actual := shipment.Schedule.ActualArrival
		shipment.Schedule = *in.Schedule
		if shipment.Schedule.ActualArrival == nil {
			shipment.Schedule.ActualArrival = actual
		}
	}
	if in.Method != nil {
		shipment.Shipping.Method = *in.Method
	}
	if in.Cost != nil {
		shipment.Shipping.Cost = *in.Cost
	}
	if v := trimPtr(in.Currency); v != nil {
		shipment.Shipping.Currency = models.Currency(strings.ToUpper(*v))
	}
	if in.Insured != nil {
		shipment.Shipping.Insured = *in.Insured
	}
	if in.InsuranceAmount != nil {
		shipment.Shipping.InsuranceAmount = *in.InsuranceAmount
	}
	if v := trimPtr(in.Notes); v != nil {
		shipment.Notes = *v
	}
}

func trimEndpoint(in models.ShipmentEndpoint) models.ShipmentEndpoint {
	return models.ShipmentEndpoint{
		Address: trimAddress(in.Address),
		Contact: trimContact(in.Contact),
	}
}
