package models

import "time"

// ShareStatus is the local user's response to a shared expense.
type ShareStatus string

const (
	SharePending       ShareStatus = "pending"
	ShareAccepted      ShareStatus = "accepted"
	ShareRejected      ShareStatus = "rejected"
	ShareRequestedInfo ShareStatus = "requested_info"
)

// Valid reports whether s is a known share status.
func (s ShareStatus) Valid() bool {
	switch s {
	case SharePending, ShareAccepted, ShareRejected, ShareRequestedInfo:
		return true
	}
	return false
}

// ExpenseShare grants a local user read access to an expense.
type ExpenseShare struct {
	BaseModel

	ExpenseID string      `gorm:"type:uuid;not null;uniqueIndex:idx_expense_share_user" json:"expenseId"`
	UserID    string      `gorm:"type:uuid;not null;uniqueIndex:idx_expense_share_user;index" json:"userId"`
	User      *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	SharedAt  time.Time   `json:"sharedAt"`
	Status    ShareStatus `gorm:"size:16;not null" json:"status"`
	Notes     string      `gorm:"size:500" json:"notes,omitempty"`
}
