package models

import (
	"time"

	"gorm.io/datatypes"
)

// BusinessType describes what an exporter trades in.
type BusinessType string

const (
	BusinessVehicleExporter BusinessType = "vehicle_exporter"
	BusinessPartsSupplier   BusinessType = "parts_supplier"
	BusinessBoth            BusinessType = "both"
)

// Valid reports whether b is a known business type.
func (b BusinessType) Valid() bool {
	switch b {
	case BusinessVehicleExporter, BusinessPartsSupplier, BusinessBoth:
		return true
	}
	return false
}

// DocumentType classifies a verification document.
type DocumentType string

const (
	DocumentBusinessLicense DocumentType = "business_license"
	DocumentTaxCertificate  DocumentType = "tax_certificate"
	DocumentExportLicense   DocumentType = "export_license"
	DocumentInsurance       DocumentType = "insurance"
)

// Valid reports whether d is a known verification document type.
func (d DocumentType) Valid() bool {
	switch d {
	case DocumentBusinessLicense, DocumentTaxCertificate, DocumentExportLicense, DocumentInsurance:
		return true
	}
	return false
}

// Address is a postal address stored inline on its owner.
type Address struct {
	Street     string `gorm:"size:200" json:"street"`
	City       string `gorm:"size:100" json:"city"`
	State      string `gorm:"size:100" json:"state"`
	Country    string `gorm:"size:100" json:"country"`
	PostalCode string `gorm:"size:20" json:"postalCode"`
}

// ContactInfo is a set of contact details stored inline on its owner.
type ContactInfo struct {
	Name    string `gorm:"size:100" json:"name,omitempty"`
	Phone   string `gorm:"size:40" json:"phone,omitempty"`
	Email   string `gorm:"size:254" json:"email,omitempty"`
	Website string `gorm:"size:200" json:"website,omitempty"`
}

// VerificationDocument is a document an exporter uploaded for verification.
type VerificationDocument struct {
	Type       DocumentType `json:"type"`
	URL        string       `json:"url"`
	UploadedAt time.Time    `json:"uploadedAt"`
	Verified   bool         `json:"verified"`
}

// ExporterProfile holds the company details of an exporter account. Each
// exporter has at most one.
type ExporterProfile struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;uniqueIndex" json:"userId"`
	User   *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`

	CompanyName        string      `gorm:"size:100;not null;index" json:"companyName"`
	RegistrationNumber string      `gorm:"size:100;not null;uniqueIndex" json:"registrationNumber"`
	TaxID              string      `gorm:"size:100" json:"taxId,omitempty"`
	Address            Address     `gorm:"embedded;embeddedPrefix:address_" json:"address"`
	Contact            ContactInfo `gorm:"embedded;embeddedPrefix:contact_" json:"contact"`

	BusinessType    BusinessType                `gorm:"size:32;not null;index" json:"businessType"`
	Specialties     datatypes.JSONSlice[string] `json:"specialties"`
	YearsInBusiness int                         `json:"yearsInBusiness,omitempty"`
	AnnualVolume    string                      `gorm:"size:16" json:"annualVolume,omitempty"`

	IsVerified bool                                      `gorm:"index" json:"isVerified"`
	VerifiedAt *time.Time                                `json:"verifiedAt,omitempty"`
	VerifiedBy string                                    `gorm:"type:uuid" json:"verifiedBy,omitempty"`
	Documents  datatypes.JSONSlice[VerificationDocument] `json:"documents"`

	PreferredCurrency Currency `gorm:"size:3;not null" json:"preferredCurrency"`
	Language          string   `gorm:"size:5;not null" json:"language"`
	Timezone          string   `gorm:"size:64;not null" json:"timezone"`

	IsActive bool `gorm:"not null;index" json:"isActive"`
}

// ApplyDefaults fills the preference fields a new profile starts with.
func (p *ExporterProfile) ApplyDefaults() {
	if p.Address.Country == "" {
		p.Address.Country = "Japan"
	}
	if p.PreferredCurrency == "" {
		p.PreferredCurrency = CurrencyJPY
	}
	if p.Language == "" {
		p.Language = "ja"
	}
	if p.Timezone == "" {
		p.Timezone = "Asia/Tokyo"
	}
	if p.BusinessType == "" {
		p.BusinessType = BusinessVehicleExporter
	}
}

// UpsertDocument stores doc, replacing an earlier document of the same type.
func (p *ExporterProfile) UpsertDocument(doc VerificationDocument) {
	for i := range p.Documents {
		if p.Documents[i].Type == doc.Type {
			p.Documents[i] = doc
			return
		}
	}
	p.Documents = append(p.Documents, doc)
}

// ExporterSpecialties lists the specialties a profile may declare.
func ExporterSpecialties() []string {
	return []string{"cars", "trucks", "motorcycles", "parts", "accessories"}
}

// AnnualVolumes lists the accepted annual volume brackets.
func AnnualVolumes() []string {
	return []string{"1-50", "51-100", "101-500", "500+"}
}
