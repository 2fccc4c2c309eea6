package models

import (
	"time"

	"gorm.io/datatypes"
)

// ExpenseCategory classifies an expense.
type ExpenseCategory string

const (
	CategoryVehiclePurchase ExpenseCategory = "vehicle_purchase"
	CategoryFreightShipping ExpenseCategory = "freight_shipping"
	CategoryPackaging       ExpenseCategory = "packaging"
	CategoryInsurance       ExpenseCategory = "insurance"
	CategoryCustomsDuty     ExpenseCategory = "customs_duty"
	CategoryInspection      ExpenseCategory = "inspection"
	CategoryDocumentation   ExpenseCategory = "documentation"
	CategoryStorage         ExpenseCategory = "storage"
	CategoryTransportation  ExpenseCategory = "transportation"
	CategoryOther           ExpenseCategory = "other"
)

// ExpenseStatus tracks the approval lifecycle of an expense.
type ExpenseStatus string

const (
	ExpenseDraft    ExpenseStatus = "draft"
	ExpensePending  ExpenseStatus = "pending"
	ExpenseApproved ExpenseStatus = "approved"
	ExpenseRejected ExpenseStatus = "rejected"
	ExpensePaid     ExpenseStatus = "paid"
)

// Expense is a cost recorded by an exporter, optionally shared with local users.
type Expense struct {
	BaseModel

	ExporterID string `gorm:"type:uuid;not null;index" json:"exporterId"`
	Exporter   *User  `gorm:"foreignKey:ExporterID" json:"exporter,omitempty"`

	Category    ExpenseCategory `gorm:"size:32;not null;index" json:"category"`
	Title       string          `gorm:"size:200;not null" json:"title"`
	Description string          `gorm:"size:1000" json:"description,omitempty"`

	Amount       float64   `gorm:"not null" json:"amount"`
	Currency     Currency  `gorm:"size:3;not null" json:"currency"`
	ExchangeRate float64   `json:"exchangeRate"`
	AmountInUSD  float64   `gorm:"column:amount_in_usd;not null" json:"amountInUsd"`
	Date         time.Time `gorm:"not null;index" json:"date"`

	InvoiceNumber   string     `gorm:"size:100" json:"invoiceNumber,omitempty"`
	InvoiceDate     *time.Time `json:"invoiceDate,omitempty"`
	SupplierName    string     `json:"supplierName,omitempty"`
	SupplierContact string     `json:"supplierContact,omitempty"`

	VehicleVIN   string `gorm:"column:vehicle_vin;size:32;index" json:"vehicleVin,omitempty"`
	VehicleMake  string `json:"vehicleMake,omitempty"`
	VehicleModel string `json:"vehicleModel,omitempty"`
	VehicleYear  int    `json:"vehicleYear,omitempty"`

	TrackingNumber string `gorm:"size:100;index" json:"trackingNumber,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
	Origin         string `json:"origin,omitempty"`
	Destination    string `json:"destination,omitempty"`

	SharedWithLocal bool           `gorm:"index" json:"sharedWithLocal"`
	Shares          []ExpenseShare `gorm:"foreignKey:ExpenseID;constraint:OnDelete:CASCADE" json:"sharedWith"`

	Status ExpenseStatus               `gorm:"size:16;not null;index" json:"status"`
	Tags   datatypes.JSONSlice[string] `json:"tags"`
	Notes  string                      `gorm:"size:500" json:"notes,omitempty"`

	CreatedBy string `gorm:"type:uuid;not null" json:"createdBy"`
	UpdatedBy string `gorm:"type:uuid" json:"updatedBy,omitempty"`
}

// OwnerID returns the exporter that owns the expense.
func (e *Expense) OwnerID() string {
	return e.ExporterID
}

// IsSharedWith reports whether userID holds a share row for this expense.
// Shares must be preloaded.
func (e *Expense) IsSharedWith(userID string) bool {
	return e.ShareFor(userID) != nil
}

// ShareFor returns the share row for userID, or nil.
func (e *Expense) ShareFor(userID string) *ExpenseShare {
	for i := range e.Shares {
		if e.Shares[i].UserID == userID {
			return &e.Shares[i]
		}
	}
	return nil
}

// ExpenseCategories lists every category.
func ExpenseCategories() []ExpenseCategory {
	return []ExpenseCategory{
		CategoryVehiclePurchase, CategoryFreightShipping, CategoryPackaging,
		CategoryInsurance, CategoryCustomsDuty, CategoryInspection,
		CategoryDocumentation, CategoryStorage, CategoryTransportation, CategoryOther,
	}
}
