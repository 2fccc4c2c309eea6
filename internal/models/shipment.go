package models

import (
	"time"

	"gorm.io/datatypes"
)

// ShipmentStatus tracks a shipment through transit.
type ShipmentStatus string

const (
	ShipmentPending          ShipmentStatus = "pending"
	ShipmentPickedUp         ShipmentStatus = "picked_up"
	ShipmentInTransit        ShipmentStatus = "in_transit"
	ShipmentCustomsClearance ShipmentStatus = "customs_clearance"
	ShipmentDelivered        ShipmentStatus = "delivered"
	ShipmentDelayed          ShipmentStatus = "delayed"
	ShipmentCancelled        ShipmentStatus = "cancelled"
)

// Valid reports whether s is a known shipment status.
func (s ShipmentStatus) Valid() bool {
	switch s {
	case ShipmentPending, ShipmentPickedUp, ShipmentInTransit, ShipmentCustomsClearance,
		ShipmentDelivered, ShipmentDelayed, ShipmentCancelled:
		return true
	}
	return false
}

// ShippingMethod is the transport mode of a shipment.
type ShippingMethod string

const (
	ShippingAir     ShippingMethod = "air"
	ShippingSea     ShippingMethod = "sea"
	ShippingLand    ShippingMethod = "land"
	ShippingExpress ShippingMethod = "express"
)

// Valid reports whether m is a known shipping method.
func (m ShippingMethod) Valid() bool {
	switch m {
	case ShippingAir, ShippingSea, ShippingLand, ShippingExpress:
		return true
	}
	return false
}

// ShipmentItem is one line of a shipment's contents.
type ShipmentItem struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Quantity    int      `json:"quantity"`
	Weight      float64  `json:"weight,omitempty"`
	Value       float64  `json:"value,omitempty"`
	Currency    Currency `json:"currency,omitempty"`
}

// ShipmentDocument is a transport document attached to a shipment.
type ShipmentDocument struct {
	Type       string    `json:"type"`
	Name       string    `json:"name,omitempty"`
	URL        string    `json:"url"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// TrackingEvent records one status change of a shipment.
type TrackingEvent struct {
	Status    ShipmentStatus `json:"status"`
	Location  string         `json:"location,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Notes     string         `json:"notes,omitempty"`
}

// ShipmentEndpoint is the origin or destination of a shipment.
type ShipmentEndpoint struct {
	Address Address     `gorm:"embedded;embeddedPrefix:address_" json:"address"`
	Contact ContactInfo `gorm:"embedded;embeddedPrefix:contact_" json:"contact"`
}

// ShipmentSchedule holds the planned and actual milestones.
type ShipmentSchedule struct {
	PickupDate       *time.Time `json:"pickupDate,omitempty"`
	DepartureDate    *time.Time `json:"departureDate,omitempty"`
	EstimatedArrival *time.Time `json:"estimatedArrival,omitempty"`
	ActualArrival    *time.Time `json:"actualArrival,omitempty"`
}

// ShippingTerms describes how a shipment travels and what it costs.
type ShippingTerms struct {
	Method          ShippingMethod `gorm:"size:16;not null" json:"method"`
	Cost            float64        `json:"cost"`
	Currency        Currency       `gorm:"size:3;not null" json:"currency"`
	Insured         bool           `json:"insured"`
	InsuranceAmount float64        `json:"insuranceAmount,omitempty"`
}

// Shipment is a consignment sent by an exporter.
type Shipment struct {
	BaseModel

	ExporterID string `gorm:"type:uuid;not null;index" json:"exporterId"`
	Exporter   *User  `gorm:"foreignKey:ExporterID" json:"exporter,omitempty"`

	TrackingNumber string           `gorm:"size:100;not null;uniqueIndex" json:"trackingNumber"`
	Carrier        ContactInfo      `gorm:"embedded;embeddedPrefix:carrier_" json:"carrier"`
	Origin         ShipmentEndpoint `gorm:"embedded;embeddedPrefix:origin_" json:"origin"`
	Destination    ShipmentEndpoint `gorm:"embedded;embeddedPrefix:destination_" json:"destination"`

	Contents         datatypes.JSONSlice[ShipmentItem] `json:"contents"`
	DeclaredValueUSD float64                           `gorm:"column:declared_value_usd" json:"declaredValueUsd"`

	Schedule  ShipmentSchedule                      `gorm:"embedded;embeddedPrefix:schedule_" json:"schedule"`
	Status    ShipmentStatus                        `gorm:"size:24;not null;index" json:"status"`
	Shipping  ShippingTerms                         `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping"`
	Documents datatypes.JSONSlice[ShipmentDocument] `json:"documents"`
	Tracking  datatypes.JSONSlice[TrackingEvent]    `json:"tracking"`
	Notes     string                                `gorm:"size:1000" json:"notes,omitempty"`

	CreatedBy string `gorm:"type:uuid;not null" json:"createdBy"`
	UpdatedBy string `gorm:"type:uuid" json:"updatedBy,omitempty"`
}

// OwnerID returns the exporter that owns the shipment.
func (s *Shipment) OwnerID() string {
	return s.ExporterID
}

// IsSharedWith always reports false; shipments are never shared.
func (s *Shipment) IsSharedWith(string) bool {
	return false
}

// AddTrackingEvent appends event and moves the shipment to its status. The
// first delivered event stamps the actual arrival.
func (s *Shipment) AddTrackingEvent(event TrackingEvent) {
	s.Tracking = append(s.Tracking, event)
	s.Status = event.Status
	if event.Status == ShipmentDelivered && s.Schedule.ActualArrival == nil {
		arrived := event.Timestamp
		s.Schedule.ActualArrival = &arrived
	}
}
