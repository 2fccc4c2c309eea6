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

// PartHandler exposes the spare part inventory of exporters.
type PartHandler struct {
	service *services.PartService
}

// NewPartHandler constructs a PartHandler.
func NewPartHandler(service *services.PartService) (*PartHandler, error) {
	if service == nil {
		return nil, errors.New("part handler: part service is required")
	}
	return &PartHandler{service: service}, nil
}

type partVehicleRequest struct {
	Make      string `json:"make" validate:"max=60"`
	Model     string `json:"model" validate:"max=60"`
	YearStart int    `json:"yearStart" validate:"omitempty,gte=1900,lte=2100"`
	YearEnd   int    `json:"yearEnd" validate:"omitempty,gte=1900,lte=2100"`
	VIN       string `json:"vin" validate:"max=32"`
}

type createPartRequest struct {
	PartNumber     string             `json:"partNumber" validate:"required,max=100"`
	Name           string             `json:"name" validate:"required,max=200"`
	Description    string             `json:"description" validate:"max=1000"`
	Category       string             `json:"category" validate:"omitempty,oneof=engine transmission brake suspension electrical body interior exterior other"`
	Vehicle        partVehicleRequest `json:"vehicle"`
	Specifications struct {
		Weight     float64 `json:"weight" validate:"gte=0"`
		Dimensions string  `json:"dimensions" validate:"max=100"`
		Material   string  `json:"material" validate:"max=100"`
		Color      string  `json:"color" validate:"max=50"`
		Condition  string  `json:"condition" validate:"omitempty,oneof=new used refurbished"`
	} `json:"specifications"`
	Pricing struct {
		Cost     *float64 `json:"cost" validate:"required,gte=0"`
		Currency string   `json:"currency" validate:"omitempty,currency"`
		Markup   float64  `json:"markup" validate:"gte=0"`
	} `json:"pricing"`
	Inventory struct {
		Quantity     int    `json:"quantity" validate:"gte=0"`
		MinimumStock int    `json:"minimumStock" validate:"gte=0"`
		Location     string `json:"location" validate:"max=100"`
	} `json:"inventory"`
	Tags []string `json:"tags" validate:"max=20,dive,max=50"`
}

type updatePartRequest struct {
	Name         *string             `json:"name" validate:"omitempty,max=200"`
	Description  *string             `json:"description" validate:"omitempty,max=1000"`
	Category     *string             `json:"category" validate:"omitempty,oneof=engine transmission brake suspension electrical body interior exterior other"`
	Vehicle      *partVehicleRequest `json:"vehicle"`
	Condition    *string             `json:"condition" validate:"omitempty,oneof=new used refurbished"`
	Cost         *float64            `json:"cost" validate:"omitempty,gte=0"`
	Currency     *string             `json:"currency" validate:"omitempty,currency"`
	Markup       *float64            `json:"markup" validate:"omitempty,gte=0"`
	MinimumStock *int                `json:"minimumStock" validate:"omitempty,gte=0"`
	Location     *string             `json:"location" validate:"omitempty,max=100"`
	Tags         *[]string           `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	IsActive     *bool               `json:"isActive"`
}

type inventoryRequest struct {
	Operation string `json:"operation" validate:"required,oneof=add subtract set"`
	Quantity  *int   `json:"quantity" validate:"required,gte=0"`
}

// POST /api/parts
func (h *PartHandler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req createPartRequest
	if !bindAndValidate(c, &req) {
		return
	}

	specs := req.Specifications
	part, err := h.service.Create(requestContext(c), p, services.PartInput{
		PartNumber:  req.PartNumber,
		Name:        req.Name,
		Description: req.Description,
		Category:    models.PartCategory(req.Category),
		Vehicle:     models.PartVehicle(req.Vehicle),
		Specifications: models.PartSpecifications{
			Weight:     specs.Weight,
			Dimensions: specs.Dimensions,
			Material:   specs.Material,
			Color:      specs.Color,
			Condition:  models.PartCondition(specs.Condition),
		},
		Cost:         *req.Pricing.Cost,
		Currency:     req.Pricing.Currency,
		Markup:       req.Pricing.Markup,
		Quantity:     req.Inventory.Quantity,
		MinimumStock: req.Inventory.MinimumStock,
		Location:     req.Inventory.Location,
		Tags:         req.Tags,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"part": part})
}

// GET /api/parts
//
// Exporters see their own inventory; administrators see every part and may
// narrow it with exporterId.
func (h *PartHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	filters := services.PartFilters{
		Page: services.Page{
			Page:    parseIntQuery(c, "page", 1),
			PerPage: parseIntQuery(c, "limit", 10),
		},
		ExporterID: p.UserID,
		Category:   models.PartCategory(strings.TrimSpace(c.Query("category"))),
		Condition:  models.PartCondition(strings.TrimSpace(c.Query("condition"))),
		Search:     c.Query("search"),
	}
	if p.Role == models.RoleAdmin {
		filters.ExporterID = strings.TrimSpace(c.Query("exporterId"))
	}
	if lowStock := parseBoolQuery(c, "lowStock"); lowStock != nil {
		filters.LowStock = *lowStock
	}
	if filters.Category != "" && !filters.Category.Valid() {
		response.Error(c, apperrors.NewValidationFailed("Invalid part category"))
		return
	}
	if filters.Condition != "" && !filters.Condition.Valid() {
		response.Error(c, apperrors.NewValidationFailed("Invalid part condition"))
		return
	}

	parts, total, err := h.service.List(requestContext(c), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	page := filters.Page.Normalise()
	response.SuccessWithMeta(c, http.StatusOK, gin.H{"parts": parts}, response.NewMeta(page.Page, page.PerPage, total))
}

// GET /api/parts/:id
func (h *PartHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	part, err := h.service.Get(requestContext(c), p, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"part": part})
}

// PUT /api/parts/:id
func (h *PartHandler) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req updatePartRequest
	if !bindAndValidate(c, &req) {
		return
	}

	input := services.PartUpdate{
		Name:         req.Name,
		Description:  req.Description,
		Cost:         req.Cost,
		Currency:     req.Currency,
		Markup:       req.Markup,
		MinimumStock: req.MinimumStock,
		Location:     req.Location,
		Tags:         req.Tags,
		IsActive:     req.IsActive,
	}
	if req.Category != nil {
		category := models.PartCategory(*req.Category)
		input.Category = &category
	}
	if req.Condition != nil {
		condition := models.PartCondition(*req.Condition)
		input.Condition = &condition
	}
	if req.Vehicle != nil {
		vehicle := models.PartVehicle(*req.Vehicle)
		input.Vehicle = &vehicle
	}

	part, err := h.service.Update(requestContext(c), p, c.Param("id"), input)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"part": part})
}

// PATCH /api/parts/:id/inventory
func (h *PartHandler) AdjustInventory(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req inventoryRequest
	if !bindAndValidate(c, &req) {
		return
	}

	part, err := h.service.AdjustInventory(requestContext(c), p, c.Param("id"),
		models.InventoryOperation(req.Operation), *req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"part": part})
}

// DELETE /api/parts/:id
func (h *PartHandler) Delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	if err := h.service.Delete(requestContext(c), p, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Part deleted successfully")
}
