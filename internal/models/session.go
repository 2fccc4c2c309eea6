package models

import "time"

// Session is one login on one device. The raw bearer and refresh tokens are
// never stored; TokenHash and RefreshTokenHash hold their SHA-256 digests.
type Session struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;index" json:"userId"`
	User   *User  `gorm:"foreignKey:UserID" json:"-"`

	TokenHash        string `gorm:"size:64;not null;index" json:"-"`
	RefreshTokenHash string `gorm:"size:64;not null;uniqueIndex" json:"-"`

	UserAgent  string `json:"userAgent"`
	IPAddress  string `gorm:"size:64" json:"ipAddress"`
	DeviceType string `gorm:"size:16" json:"deviceType"`
	Browser    string `gorm:"size:32" json:"browser"`
	OS         string `gorm:"column:os;size:32" json:"os"`

	IsActive     bool      `gorm:"index" json:"isActive"`
	ExpiresAt    time.Time `gorm:"index" json:"expiresAt"`
	LastActivity time.Time `gorm:"index" json:"lastActivity"`
}

// IsValidAt reports whether the session may still authenticate requests at now.
func (s *Session) IsValidAt(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}
