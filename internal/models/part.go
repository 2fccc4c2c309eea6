package models

import (
	"errors"
	"math"
	"time"

	"gorm.io/datatypes"
)

// PartCategory classifies a spare part.
type PartCategory string

const (
	PartEngine       PartCategory = "engine"
	PartTransmission PartCategory = "transmission"
	PartBrake        PartCategory = "brake"
	PartSuspension   PartCategory = "suspension"
	PartElectrical   PartCategory = "electrical"
	PartBody         PartCategory = "body"
	PartInterior     PartCategory = "interior"
	PartExterior     PartCategory = "exterior"
	PartOther        PartCategory = "other"
)

// PartCategories lists every part category.
func PartCategories() []PartCategory {
	return []PartCategory{
		PartEngine, PartTransmission, PartBrake, PartSuspension, PartElectrical,
		PartBody, PartInterior, PartExterior, PartOther,
	}
}

// Valid reports whether c is a known part category.
func (c PartCategory) Valid() bool {
	for _, known := range PartCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// PartCondition describes the wear state of a part.
type PartCondition string

const (
	ConditionNew         PartCondition = "new"
	ConditionUsed        PartCondition = "used"
	ConditionRefurbished PartCondition = "refurbished"
)

// Valid reports whether c is a known condition.
func (c PartCondition) Valid() bool {
	switch c {
	case ConditionNew, ConditionUsed, ConditionRefurbished:
		return true
	}
	return false
}

// InventoryOperation is the kind of stock adjustment applied to a part.
type InventoryOperation string

const (
	InventoryAdd      InventoryOperation = "add"
	InventorySubtract InventoryOperation = "subtract"
	InventorySet      InventoryOperation = "set"
)

// ErrInvalidInventoryOperation is returned by AdjustInventory for unknown operations or negative quantities.
var ErrInvalidInventoryOperation = errors.New("invalid inventory operation")

// PartVehicle names the vehicle a part fits.
type PartVehicle struct {
	Make      string `gorm:"size:60" json:"make,omitempty"`
	Model     string `gorm:"size:60" json:"model,omitempty"`
	YearStart int    `json:"yearStart,omitempty"`
	YearEnd   int    `json:"yearEnd,omitempty"`
	VIN       string `gorm:"column:vin;size:32" json:"vin,omitempty"`
}

// PartSpecifications describes the physical part.
type PartSpecifications struct {
	Weight     float64       `json:"weight,omitempty"`
	Dimensions string        `gorm:"size:100" json:"dimensions,omitempty"`
	Material   string        `gorm:"size:100" json:"material,omitempty"`
	Color      string        `gorm:"size:50" json:"color,omitempty"`
	Condition  PartCondition `gorm:"size:16;not null;index" json:"condition"`
}

// PartPricing carries the cost and derived selling price of a part.
type PartPricing struct {
	Cost         float64  `gorm:"not null" json:"cost"`
	Currency     Currency `gorm:"size:3;not null" json:"currency"`
	Markup       float64  `json:"markup"`
	SellingPrice float64  `json:"sellingPrice"`
}

// PartInventory tracks stock on hand.
type PartInventory struct {
	Quantity      int        `gorm:"not null" json:"quantity"`
	MinimumStock  int        `json:"minimumStock"`
	Location      string     `gorm:"size:100" json:"location,omitempty"`
	LastRestocked *time.Time `json:"lastRestocked,omitempty"`
}

// Part is a spare part in an exporter's inventory.
type Part struct {
	BaseModel

	ExporterID string `gorm:"type:uuid;not null;index" json:"exporterId"`
	Exporter   *User  `gorm:"foreignKey:ExporterID" json:"exporter,omitempty"`

	PartNumber  string       `gorm:"size:100;not null;uniqueIndex" json:"partNumber"`
	Name        string       `gorm:"size:200;not null" json:"name"`
	Description string       `gorm:"size:1000" json:"description,omitempty"`
	Category    PartCategory `gorm:"size:32;not null;index" json:"category"`

	Vehicle        PartVehicle        `gorm:"embedded;embeddedPrefix:vehicle_" json:"vehicle"`
	Specifications PartSpecifications `gorm:"embedded;embeddedPrefix:spec_" json:"specifications"`
	Pricing        PartPricing        `gorm:"embedded;embeddedPrefix:pricing_" json:"pricing"`
	Inventory      PartInventory      `gorm:"embedded;embeddedPrefix:inventory_" json:"inventory"`

	Tags     datatypes.JSONSlice[string] `json:"tags"`
	IsActive bool                        `gorm:"not null;index" json:"isActive"`

	CreatedBy string `gorm:"type:uuid;not null" json:"createdBy"`
	UpdatedBy string `gorm:"type:uuid" json:"updatedBy,omitempty"`
}

// OwnerID returns the exporter that owns the part.
func (p *Part) OwnerID() string {
	return p.ExporterID
}

// IsSharedWith always reports false; parts are never shared.
func (p *Part) IsSharedWith(string) bool {
	return false
}

// ApplyPricing derives the selling price from cost and markup percentage.
func (p *Part) ApplyPricing() {
	price := p.Pricing.Cost * (1 + p.Pricing.Markup/100)
	p.Pricing.SellingPrice = math.Round(price*100) / 100
}

// LowStock reports whether stock is at or below the minimum.
func (p *Part) LowStock() bool {
	return p.Inventory.Quantity <= p.Inventory.MinimumStock
}

// AdjustInventory applies op to the stock level. Subtraction floors at zero;
// additions and explicit sets stamp the restock time.
func (p *Part) AdjustInventory(op InventoryOperation, quantity int, now time.Time) error {
	if quantity < 0 {
		return ErrInvalidInventoryOperation
	}
	switch op {
	case InventoryAdd:
		p.Inventory.Quantity += quantity
	case InventorySubtract:
		p.Inventory.Quantity = max(0, p.Inventory.Quantity-quantity)
		return nil
	case InventorySet:
		p.Inventory.Quantity = quantity
	default:
		return ErrInvalidInventoryOperation
	}
	restocked := now.UTC()
	p.Inventory.LastRestocked = &restocked
	return nil
}
