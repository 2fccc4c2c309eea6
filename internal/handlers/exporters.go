package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vexpense/vexpense/internal/models"
	"github.com/vexpense/vexpense/internal/services"
	apperrors "github.com/vexpense/vexpense/pkg/errors"
	"github.com/vexpense/vexpense/pkg/response"
)

// ExporterHandler exposes exporter company profiles and their verification.
type ExporterHandler struct {
	service *services.ExporterService
}

// NewExporterHandler constructs an ExporterHandler.
func NewExporterHandler(service *services.ExporterService) (*ExporterHandler, error) {
	if service == nil {
		return nil, errors.New("exporter handler: exporter service is required")
	}
	return &ExporterHandler{service: service}, nil
}

type addressRequest struct {
	Street     string `json:"street" validate:"required,max=200"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"required,max=100"`
	Country    string `json:"country" validate:"max=100"`
	PostalCode string `json:"postalCode" validate:"required,max=20"`
}

type contactRequest struct {
	Name    string `json:"name" validate:"max=100"`
	Phone   string `json:"phone" validate:"max=40"`
	Email   string `json:"email" validate:"omitempty,email"`
	Website string `json:"website" validate:"omitempty,url"`
}

type exporterProfileRequest struct {
	Company struct {
		Name               string         `json:"name" validate:"required,max=100"`
		RegistrationNumber string         `json:"registrationNumber" validate:"required,max=100"`
		TaxID              string         `json:"taxId" validate:"max=100"`
		Address            addressRequest `json:"address"`
		Contact            contactRequest `json:"contact"`
	} `json:"company"`
	Business struct {
		Type            string   `json:"type" validate:"omitempty,oneof=vehicle_exporter parts_supplier both"`
		Specialties     []string `json:"specialties" validate:"max=5,dive,oneof=cars trucks motorcycles parts accessories"`
		YearsInBusiness int      `json:"yearsInBusiness" validate:"gte=0"`
		AnnualVolume    string   `json:"annualVolume" validate:"omitempty,oneof=1-50 51-100 101-500 500+"`
	} `json:"business"`
	Preferences struct {
		Currency string `json:"currency" validate:"omitempty,currency"`
		Language string `json:"language" validate:"omitempty,oneof=ja en"`
		Timezone string `json:"timezone" validate:"max=64"`
	} `json:"preferences"`
}

type exporterDocumentRequest struct {
	DocumentType string `json:"documentType" validate:"required,oneof=business_license tax_certificate export_license insurance"`
	URL          string `json:"url" validate:"required,url"`
}

// GET /api/exporters/public
func (h *ExporterHandler) ListPublic(c *gin.Context) {
	filters := exporterFilters(c)
	filters.Verified = nil

	profiles, total, err := h.service.ListPublic(requestContext(c), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	writeExporterPage(c, profiles, filters.Page, total)
}

// GET /api/exporters/profile
func (h *ExporterHandler) Profile(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	profile, err := h.service.Profile(requestContext(c), p.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exporter": profile})
}

// PUT /api/exporters/profile
func (h *ExporterHandler) UpdateProfile(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req exporterProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	profile, err := h.service.UpsertProfile(requestContext(c), p, services.ExporterProfileInput{
		CompanyName:        req.Company.Name,
		RegistrationNumber: req.Company.RegistrationNumber,
		TaxID:              req.Company.TaxID,
		Address:            models.Address(req.Company.Address),
		Contact:            models.ContactInfo(req.Company.Contact),
		BusinessType:       models.BusinessType(req.Business.Type),
		Specialties:        req.Business.Specialties,
		YearsInBusiness:    req.Business.YearsInBusiness,
		AnnualVolume:       req.Business.AnnualVolume,
		PreferredCurrency:  req.Preferences.Currency,
		Language:           req.Preferences.Language,
		Timezone:           req.Preferences.Timezone,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exporter": profile})
}

// GET /api/exporters/statistics
func (h *ExporterHandler) Statistics(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	stats, err := h.service.Statistics(requestContext(c), p.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"statistics": stats})
}

// POST /api/exporters/documents
func (h *ExporterHandler) UploadDocument(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req exporterDocumentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	profile, err := h.service.AddDocument(requestContext(c), p, models.DocumentType(req.DocumentType), req.URL)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exporter": profile})
}

// GET /api/exporters
func (h *ExporterHandler) List(c *gin.Context) {
	filters := exporterFilters(c)
	if filters.BusinessType != "" && !filters.BusinessType.Valid() {
		response.Error(c, apperrors.NewValidationFailed("Invalid business type"))
		return
	}

	profiles, total, err := h.service.List(requestContext(c), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	writeExporterPage(c, profiles, filters.Page, total)
}

// GET /api/exporters/:userId
func (h *ExporterHandler) Get(c *gin.Context) {
	profile, err := h.service.Profile(requestContext(c), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exporter": profile})
}

// PUT /api/exporters/:userId/verify
func (h *ExporterHandler) Verify(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	profile, err := h.service.Verify(requestContext(c), p, c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exporter": profile})
}

func exporterFilters(c *gin.Context) services.ExporterFilters {
	return services.ExporterFilters{
		Page: services.Page{
			Page:    parseIntQuery(c, "page", 1),
			PerPage: parseIntQuery(c, "limit", 10),
		},
		Verified:     parseBoolQuery(c, "verified"),
		BusinessType: models.BusinessType(strings.TrimSpace(c.Query("businessType"))),
		Search:       c.Query("search"),
	}
}

func writeExporterPage(c *gin.Context, profiles []models.ExporterProfile, page services.Page, total int64) {
	page = page.Normalise()
	response.SuccessWithMeta(c, http.StatusOK, gin.H{"exporters": profiles}, response.NewMeta(page.Page, page.PerPage, total))
}
