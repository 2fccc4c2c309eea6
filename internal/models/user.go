package models

import (
	"strings"
	"time"
)

// User is an account of an exporter, a local importer or an administrator.
// Accounts are disabled through IsActive and never hard-deleted.
type User struct {
	BaseModel

	Email    string `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Password string `gorm:"not null" json:"-"`

	FirstName string `gorm:"size:50;not null" json:"firstName"`
	LastName  string `gorm:"size:50;not null" json:"lastName"`
	Role      Role   `gorm:"size:32;not null;index" json:"role"`

	CompanyName    string `gorm:"size:100;index" json:"companyName,omitempty"`
	CompanyPhone   string `json:"companyPhone,omitempty"`
	CompanyWebsite string `json:"companyWebsite,omitempty"`
	CompanyCountry string `json:"companyCountry,omitempty"`

	Phone             string `json:"phone,omitempty"`
	Timezone          string `gorm:"size:64" json:"timezone"`
	Language          string `gorm:"size:8" json:"language"`
	PreferredCurrency string `gorm:"size:3" json:"preferredCurrency"`

	NotifyEmail          bool `json:"notifyEmail"`
	NotifyExpenseShared  bool `json:"notifyExpenseShared"`
	NotifyExpenseUpdated bool `json:"notifyExpenseUpdated"`

	IsActive      bool       `gorm:"index" json:"isActive"`
	EmailVerified bool       `json:"emailVerified"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`

	Sessions []Session `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NormalizeEmail lower-cases and trims an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ApplyDefaults fills profile fields that have a documented default.
func (u *User) ApplyDefaults() {
	u.Email = NormalizeEmail(u.Email)
	if u.Timezone == "" {
		u.Timezone = "UTC"
	}
	if u.Language == "" {
		u.Language = "en"
	}
	if u.PreferredCurrency == "" {
		u.PreferredCurrency = "USD"
	}
}
