package models

import (
	"time"

	"gorm.io/gorm"
)

// Provider records how an account was created.
type Provider string

const (
	ProviderCredentials Provider = "credentials"
	ProviderGoogle      Provider = "google"
)

// User represents an account. Users are never hard-deleted.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name  string `gorm:"size:255" json:"name"`
	Email string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	// Phone is stored in E.164 form; NULL when absent so the unique index
	// only applies to real numbers.
	Phone    *string  `gorm:"uniqueIndex;size:32" json:"phone,omitempty"`
	Password string   `gorm:"size:255" json:"-"`
	Verified bool     `gorm:"not null;default:false" json:"verified"`
	Provider Provider `gorm:"size:20;not null;default:'credentials'" json:"provider"`

	VerifyToken      string     `gorm:"size:512" json:"-"`
	ResetToken       string     `gorm:"size:512;index" json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`
}
