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

// ShipmentHandler exposes exporters' shipments and their tracking history.
type ShipmentHandler struct {
	service *services.ShipmentService
}

// NewShipmentHandler constructs a ShipmentHandler.
func NewShipmentHandler(service *services.ShipmentService) (*ShipmentHandler, error) {
	if service == nil {
		return nil, errors.New("shipment handler: shipment service is required")
	}
	return &ShipmentHandler{service: service}, nil
}

type endpointRequest struct {
	Address struct {
		Street     string `json:"street" validate:"max=200"`
		City       string `json:"city" validate:"max=100"`
		State      string `json:"state" validate:"max=100"`
		Country    string `json:"country" validate:"max=100"`
		PostalCode string `json:"postalCode" validate:"max=20"`
	} `json:"address"`
	Contact contactRequest `json:"contact"`
}

func (r endpointRequest) endpoint() models.ShipmentEndpoint {
	return models.ShipmentEndpoint{
		Address: models.Address(r.Address),
		Contact: models.ContactInfo(r.Contact),
	}
}

type shipmentItemRequest struct {
	Type        string  `json:"type" validate:"required,oneof=vehicle parts documents other"`
	Description string  `json:"description" validate:"max=200"`
	Quantity    int     `json:"quantity" validate:"gte=0"`
	Weight      float64 `json:"weight" validate:"gte=0"`
	Value       float64 `json:"value" validate:"gte=0"`
	Currency    string  `json:"currency" validate:"omitempty,currency"`
}

type scheduleRequest struct {
	PickupDate       string `json:"pickupDate"`
	DepartureDate    string `json:"departureDate"`
	EstimatedArrival string `json:"estimatedArrival"`
	ActualArrival    string `json:"actualArrival"`
}

type shippingRequest struct {
	Method          string   `json:"method" validate:"required,oneof=air sea land express"`
	Cost            float64  `json:"cost" validate:"gte=0"`
	Currency        string   `json:"currency" validate:"omitempty,currency"`
	Insured         bool     `json:"insured"`
	InsuranceAmount *float64 `json:"insuranceAmount" validate:"omitempty,gte=0"`
}

type createShipmentRequest struct {
	TrackingNumber string                `json:"trackingNumber" validate:"required,max=100"`
	Carrier        contactRequest        `json:"carrier"`
	Origin         endpointRequest       `json:"origin"`
	Destination    endpointRequest       `json:"destination"`
	Contents       []shipmentItemRequest `json:"contents" validate:"max=100,dive"`
	Schedule       scheduleRequest       `json:"schedule"`
	Shipping       shippingRequest       `json:"shipping"`
	Documents      []struct {
		Type string `json:"type" validate:"required,oneof=bill_of_lading invoice packing_list certificate other"`
		Name string `json:"name" validate:"max=200"`
		URL  string `json:"url" validate:"required,url"`
	} `json:"documents" validate:"max=20,dive"`
	Notes string `json:"notes" validate:"max=1000"`
}

type updateShipmentRequest struct {
	Carrier     *contactRequest        `json:"carrier"`
	Origin      *endpointRequest       `json:"origin"`
	Destination *endpointRequest       `json:"destination"`
	Contents    *[]shipmentItemRequest `json:"contents" validate:"omitempty,max=100,dive"`
	Schedule    *scheduleRequest       `json:"schedule"`
	Method      *string                `json:"method" validate:"omitempty,oneof=air sea land express"`
	Cost        *float64               `json:"cost" validate:"omitempty,gte=0"`
	Currency    *string                `json:"currency" validate:"omitempty,currency"`
	Insured     *bool                  `json:"insured"`
	Notes       *string                `json:"notes" validate:"omitempty,max=1000"`
}

type trackingRequest struct {
	Status   string `json:"status" validate:"required,oneof=pending picked_up in_transit customs_clearance delivered delayed cancelled"`
	Location string `json:"location" validate:"max=200"`
	Notes    string `json:"notes" validate:"max=500"`
}

// POST /api/shipments
func (h *ShipmentHandler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req createShipmentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if strings.TrimSpace(req.Carrier.Name) == "" {
		response.Error(c, apperrors.NewValidationFailed("Carrier name is required"))
		return
	}

	schedule, err := req.Schedule.schedule()
	if err != nil {
		response.Error(c, err)
		return
	}

	input := services.ShipmentInput{
		TrackingNumber: req.TrackingNumber,
		Carrier:        models.ContactInfo(req.Carrier),
		Origin:         req.Origin.endpoint(),
		Destination:    req.Destination.endpoint(),
		Contents:       shipmentItems(req.Contents),
		Schedule:       schedule,
		Method:         models.ShippingMethod(req.Shipping.Method),
		Cost:           req.Shipping.Cost,
		Currency:       req.Shipping.Currency,
		Insured:        req.Shipping.Insured,
		Notes:          req.Notes,
	}
	if req.Shipping.InsuranceAmount != nil {
		input.InsuranceAmount = *req.Shipping.InsuranceAmount
	}
	for _, doc := range req.Documents {
		input.Documents = append(input.Documents, models.ShipmentDocument{Type: doc.Type, Name: doc.Name, URL: doc.URL})
	}

	shipment, err := h.service.Create(requestContext(c), p, input)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"shipment": shipment})
}

// GET /api/shipments
//
// Exporters see their own shipments; administrators see every shipment and
// may narrow it with exporterId.
func (h *ShipmentHandler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	filters := services.ShipmentFilters{
		Page: services.Page{
			Page:    parseIntQuery(c, "page", 1),
			PerPage: parseIntQuery(c, "limit", 10),
		},
		ExporterID: p.UserID,
		Status:     models.ShipmentStatus(strings.TrimSpace(c.Query("status"))),
		Search:     c.Query("search"),
	}
	if p.Role == models.RoleAdmin {
		filters.ExporterID = strings.TrimSpace(c.Query("exporterId"))
	}
	if filters.Status != "" && !filters.Status.Valid() {
		response.Error(c, apperrors.NewValidationFailed("Invalid shipment status"))
		return
	}

	shipments, total, err := h.service.List(requestContext(c), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	page := filters.Page.Normalise()
	response.SuccessWithMeta(c, http.StatusOK, gin.H{"shipments": shipments}, response.NewMeta(page.Page, page.PerPage, total))
}

// GET /api/shipments/:id
func (h *ShipmentHandler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	shipment, err := h.service.Get(requestContext(c), p, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"shipment": shipment})
}

// PUT /api/shipments/:id
func (h *ShipmentHandler) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req updateShipmentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	input := services.ShipmentUpdate{
		Cost:     req.Cost,
		Currency: req.Currency,
		Insured:  req.Insured,
		Notes:    req.Notes,
	}
	if req.Carrier != nil {
		carrier := models.ContactInfo(*req.Carrier)
		input.Carrier = &carrier
	}
	if req.Origin != nil {
		origin := req.Origin.endpoint()
		input.Origin = &origin
	}
	if req.Destination != nil {
		destination := req.Destination.endpoint()
		input.Destination = &destination
	}
	if req.Contents != nil {
		contents := shipmentItems(*req.Contents)
		input.Contents = &contents
	}
	if req.Schedule != nil {
		schedule, err := req.Schedule.schedule()
		if err != nil {
			response.Error(c, err)
			return
		}
		input.Schedule = &schedule
	}
	if req.Method != nil {
		method := models.ShippingMethod(*req.Method)
		input.Method = &method
	}

	shipment, err := h.service.Update(requestContext(c), p, c.Param("id"), input)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"shipment": shipment})
}

// POST /api/shipments/:id/tracking
func (h *ShipmentHandler) AddTracking(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req trackingRequest
	if !bindAndValidate(c, &req) {
		return
	}

	shipment, err := h.service.AddTracking(requestContext(c), p, c.Param("id"), services.TrackingInput{
		Status:   models.ShipmentStatus(req.Status),
		Location: req.Location,
		Notes:    req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"shipment": shipment})
}

// DELETE /api/shipments/:id
func (h *ShipmentHandler) Delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	if err := h.service.Delete(requestContext(c), p, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Shipment deleted successfully")
}

func (r scheduleRequest) schedule() (models.ShipmentSchedule, error) {
	var out models.ShipmentSchedule
	fields := []struct {
		name  string
		value string
		dest  **time.Time
	}{
		{"pickupDate", r.PickupDate, &out.PickupDate},
		{"departureDate", r.DepartureDate, &out.DepartureDate},
		{"estimatedArrival", r.EstimatedArrival, &out.EstimatedArrival},
		{"actualArrival", r.ActualArrival, &out.ActualArrival},
	}
	for _, field := range fields {
		if strings.TrimSpace(field.value) == "" {
			continue
		}
		parsed, err := parseDate(field.name, field.value)
		if err != nil {
			return out, err
		}
		*field.dest = &parsed
	}
	return out, nil
}

func shipmentItems(in []shipmentItemRequest) []models.ShipmentItem {
	out := make([]models.ShipmentItem, 0, len(in))
	for _, item := range in {
		out = append(out, models.ShipmentItem{
			Type:        item.Type,
			Description: item.Description,
			Quantity:    item.Quantity,
			Weight:      item.Weight,
			Value:       item.Value,
			Currency:    models.Currency(item.Currency),
		})
	}
	return out
}
