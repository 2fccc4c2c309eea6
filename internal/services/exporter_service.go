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

// ExporterProfileInput carries the editable fields of an exporter profile.
type ExporterProfileInput struct {
	CompanyName        string
	RegistrationNumber string
	TaxID              string
	Address            models.Address
	Contact            models.ContactInfo
	BusinessType       models.BusinessType
	Specialties        []string
	YearsInBusiness    int
	AnnualVolume       string
	PreferredCurrency  string
	Language           string
	Timezone           string
}

// ExporterFilters narrows exporter listings.
type ExporterFilters struct {
	Page
	Verified     *bool
	BusinessType models.BusinessType
	Search       string

	activeOnly bool
}

// ExporterStatistics summarises an exporter's activity across modules.
type ExporterStatistics struct {
	TotalExpenses   int64      `json:"totalExpenses"`
	TotalAmount     float64    `json:"totalAmount"`
	SharedExpenses  int64      `json:"sharedExpenses"`
	LastActivity    *time.Time `json:"lastActivity,omitempty"`
	TotalParts      int64      `json:"totalParts"`
	LowStockParts   int64      `json:"lowStockParts"`
	OpenShipments   int64      `json:"openShipments"`
	TotalShipments  int64      `json:"totalShipments"`
	IsVerified      bool       `json:"isVerified"`
	DocumentsOnFile int        `json:"documentsOnFile"`
}

// ExporterService manages exporter company profiles and their verification.
type ExporterService struct {
	db  *gorm.DB
	now func() time.Time
	log *zap.Logger
}

// NewExporterService constructs an ExporterService.
func NewExporterService(db *gorm.DB) (*ExporterService, error) {
	if db == nil {
		return nil, errors.New("exporter service: db is required")
	}
	return &ExporterService{
		db:  db,
		now: time.Now,
		log: logger.WithModule("exporters"),
	}, nil
}

// Profile returns the profile of the given exporter.
func (s *ExporterService) Profile(ctx context.Context, userID string) (*models.ExporterProfile, error) {
	ctx = ensureContext(ctx)
	return s.loadByUser(ctx, userID)
}

// UpsertProfile creates the caller's profile or replaces its editable fields.
// Verification state and documents survive an update.
func (s *ExporterService) UpsertProfile(ctx context.Context, principal policy.Principal, input ExporterProfileInput) (*models.ExporterProfile, error) {
	ctx = ensureContext(ctx)

	if err := authorize(policy.RequireRole(principal, models.RoleExporter)); err != nil {
		return nil, err
	}

	profile, err := s.loadByUser(ctx, principal.UserID)
	created := errors.Is(err, ErrExporterNotFound)
	switch {
	case created:
		profile = &models.ExporterProfile{UserID: principal.UserID, IsActive: true}
	case err != nil:
		return nil, err
	}

	profile.CompanyName = strings.TrimSpace(input.CompanyName)
	profile.RegistrationNumber = strings.TrimSpace(input.RegistrationNumber)
	profile.TaxID = strings.TrimSpace(input.TaxID)
	profile.Address = trimAddress(input.Address)
	profile.Contact = trimContact(input.Contact)
	profile.BusinessType = input.BusinessType
	profile.Specialties = normaliseTags(input.Specialties)
	profile.YearsInBusiness = input.YearsInBusiness
	profile.AnnualVolume = strings.TrimSpace(input.AnnualVolume)
	profile.PreferredCurrency = models.Currency(strings.ToUpper(strings.TrimSpace(input.PreferredCurrency)))
	profile.Language = strings.TrimSpace(input.Language)
	profile.Timezone = strings.TrimSpace(input.Timezone)
	profile.ApplyDefaults()

	if err := validateExporterProfile(profile); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx).Omit(clause.Associations)
	if created {
		err = db.Create(profile).Error
	} else {
		err = db.Save(profile).Error
	}
	if isUniqueConstraintError(err) {
		return nil, ErrRegistrationExists.WithInternal(err)
	}
	if err != nil {
		return nil, fmt.Errorf("exporter service: save profile: %w", err)
	}

	s.log.Info("exporter profile saved",
		zap.String("user_id", principal.UserID),
		zap.Bool("created", created),
	)
	return s.loadByUser(ctx, principal.UserID)
}

// AddDocument attaches a verification document to the caller's profile,
// replacing any earlier document of the same type.
func (s *ExporterService) AddDocument(ctx context.Context, principal policy.Principal, docType models.DocumentType, url string) (*models.ExporterProfile, error) {
	ctx = ensureContext(ctx)

	if err := authorize(policy.RequireRole(principal, models.RoleExporter)); err != nil {
		return nil, err
	}
	url = strings.TrimSpace(url)
	switch {
	case !docType.Valid():
		return nil, apperrors.NewValidationFailed("Invalid document type")
	case url == "":
		return nil, apperrors.NewValidationFailed("Document URL is required")
	}

	profile, err := s.loadByUser(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}

	profile.UpsertDocument(models.VerificationDocument{
		Type:       docType,
		URL:        url,
		UploadedAt: s.now().UTC(),
	})
	if err := s.db.WithContext(ctx).Model(&models.ExporterProfile{}).
		Where("id = ?", profile.ID).
		Update("documents", profile.Documents).Error; err != nil {
		return nil, fmt.Errorf("exporter service: store document: %w", err)
	}

	s.log.Info("exporter document uploaded",
		zap.String("user_id", principal.UserID),
		zap.String("document_type", string(docType)),
	)
	return profile, nil
}

// Verify marks the exporter's profile as verified. Only administrators may verify.
func (s *ExporterService) Verify(ctx context.Context, principal policy.Principal, userID string) (*models.ExporterProfile, error) {
	ctx = ensureContext(ctx)

	if err := authorize(policy.RequireRole(principal, models.RoleAdmin)); err != nil {
		return nil, err
	}

	profile, err := s.loadByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).Model(&models.ExporterProfile{}).
		Where("id = ?", profile.ID).
		Updates(map[string]any{
			"is_verified": true,
			"verified_at": now,
			"verified_by": principal.UserID,
		}).Error; err != nil {
		return nil, fmt.Errorf("exporter service: verify profile: %w", err)
	}

	s.log.Info("exporter verified", zap.String("user_id", userID), zap.String("verified_by", principal.UserID))
	return s.loadByUser(ctx, userID)
}

// ListPublic lists verified, active exporters ordered by company name.
func (s *ExporterService) ListPublic(ctx context.Context, filters ExporterFilters) ([]models.ExporterProfile, int64, error) {
	verified := true
	filters.Verified = &verified
	filters.activeOnly = true
	return s.List(ctx, filters)
}

// List lists exporter profiles. Unfiltered listings are reserved for administrators by the router.
func (s *ExporterService) List(ctx context.Context, filters ExporterFilters) ([]models.ExporterProfile, int64, error) {
	ctx = ensureContext(ctx)
	page := filters.Page.Normalise()

	query := s.db.WithContext(ctx).Model(&models.ExporterProfile{})
	if filters.activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if filters.Verified != nil {
		query = query.Where("is_verified = ?", *filters.Verified)
	}
	if filters.BusinessType != "" {
		query = query.Where("business_type = ?", filters.BusinessType)
	}
	if strings.TrimSpace(filters.Search) != "" {
		pattern := likePattern(filters.Search)
		query = query.Where(
			`LOWER(company_name) LIKE ? ESCAPE '!' OR LOWER(registration_number) LIKE ? ESCAPE '!'`,
			pattern, pattern,
		)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("exporter service: count profiles: %w", err)
	}

	var profiles []models.ExporterProfile
	err := query.
		Preload("User").
		Order("company_name ASC").
		Offset(page.offset()).
		Limit(page.PerPage).
		Find(&profiles).Error
	if err != nil {
		return nil, 0, fmt.Errorf("exporter service: list profiles: %w", err)
	}
	return profiles, total, nil
}

// Statistics recomputes the exporter's activity from expenses, parts and shipments.
func (s *ExporterService) Statistics(ctx context.Context, userID string) (*ExporterStatistics, error) {
	ctx = ensureContext(ctx)

	profile, err := s.loadByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats := &ExporterStatistics{
		IsVerified:      profile.IsVerified,
		DocumentsOnFile: len(profile.Documents),
	}

	var totals struct {
		Count  int64
		Amount float64
		Shared int64
	}
	expenses := s.db.WithContext(ctx).Model(&models.Expense{}).Where("exporter_id = ?", userID)
	if err := expenses.Session(&gorm.Session{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount_in_usd), 0) AS amount, " +
			"COALESCE(SUM(CASE WHEN shared_with_local THEN 1 ELSE 0 END), 0) AS shared").
		Scan(&totals).Error; err != nil {
		return nil, fmt.Errorf("exporter service: expense totals: %w", err)
	}
	stats.TotalExpenses = totals.Count
	stats.TotalAmount = currency.Round(totals.Amount)
	stats.SharedExpenses = totals.Shared

	var latest []time.Time
	if err := expenses.Session(&gorm.Session{}).
		Order("updated_at DESC").
		Limit(1).
		Pluck("updated_at", &latest).Error; err != nil {
		return nil, fmt.Errorf("exporter service: last activity: %w", err)
	}
	if len(latest) == 1 {
		stats.LastActivity = &latest[0]
	}

	parts := s.db.WithContext(ctx).Model(&models.Part{}).Where("exporter_id = ? AND is_active = ?", userID, true)
	if err := parts.Session(&gorm.Session{}).Count(&stats.TotalParts).Error; err != nil {
		return nil, fmt.Errorf("exporter service: count parts: %w", err)
	}
	if err := parts.Session(&gorm.Session{}).
		Where("inventory_quantity <= inventory_minimum_stock").
		Count(&stats.LowStockParts).Error; err != nil {
		return nil, fmt.Errorf("exporter service: count low stock: %w", err)
	}

	shipments := s.db.WithContext(ctx).Model(&models.Shipment{}).Where("exporter_id = ?", userID)
	if err := shipments.Session(&gorm.Session{}).Count(&stats.TotalShipments).Error; err != nil {
		return nil, fmt.Errorf("exporter service: count shipments: %w", err)
	}
	if err := shipments.Session(&gorm.Session{}).
		Where("status NOT IN ?", []models.ShipmentStatus{models.ShipmentDelivered, models.ShipmentCancelled}).
		Count(&stats.OpenShipments).Error; err != nil {
		return nil, fmt.Errorf("exporter service: count open shipments: %w", err)
	}
	return stats, nil
}

func (s *ExporterService) loadByUser(ctx context.Context, userID string) (*models.ExporterProfile, error) {
	var profile models.ExporterProfile
	err := s.db.WithContext(ctx).
		Preload("User").
		Take(&profile, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrExporterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("exporter service: load profile: %w", err)
	}
	return &profile, nil
}

func validateExporterProfile(profile *models.ExporterProfile) error {
	switch {
	case profile.CompanyName == "":
		return apperrors.NewValidationFailed("Company name is required")
	case len(profile.CompanyName) > 100:
		return apperrors.NewValidationFailed("Company name cannot exceed 100 characters")
	case profile.RegistrationNumber == "":
		return apperrors.NewValidationFailed("Company registration number is required")
	case !profile.BusinessType.Valid():
		return apperrors.NewValidationFailed("Invalid business type")
	case profile.YearsInBusiness < 0:
		return apperrors.NewValidationFailed("Years in business cannot be negative")
	case profile.AnnualVolume != "" && !slices.Contains(models.AnnualVolumes(), profile.AnnualVolume):
		return apperrors.NewValidationFailed("Invalid annual volume")
	case !profile.PreferredCurrency.Valid():
		return errUnsupportedCurrency
	case profile.Language != "ja" && profile.Language != "en":
		return apperrors.NewValidationFailed("Language must be ja or en")
	}
	for _, specialty := range profile.Specialties {
		if !slices.Contains(models.ExporterSpecialties(), specialty) {
			return apperrors.NewValidationFailed("Invalid specialty: " + specialty)
		}
	}
	return nil
}

func trimAddress(in models.Address) models.Address {
	return models.Address{
		Street:     strings.TrimSpace(in.Street),
		City:       strings.TrimSpace(in.City),
		State:      strings.TrimSpace(in.State),
		Country:    strings.TrimSpace(in.Country),
		PostalCode: strings.TrimSpace(in.PostalCode),
	}
}

func trimContact(in models.ContactInfo) models.ContactInfo {
	return models.ContactInfo{
		Name:    strings.TrimSpace(in.Name),
		Phone:   strings.TrimSpace(in.Phone),
		Email:   strings.ToLower(strings.TrimSpace(in.Email)),
		Website: strings.TrimSpace(in.Website),
	}
}
