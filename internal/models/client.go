package models

import "time"

type ClientCategory string

const (
	ClientCategoryIndividual ClientCategory = "individual"
	ClientCategoryCompany    ClientCategory = "company"
	ClientCategoryAgency     ClientCategory = "agency"
	ClientCategoryNonprofit  ClientCategory = "nonprofit"
	ClientCategoryOther      ClientCategory = "other"
)

var ClientCategories = []ClientCategory{
	ClientCategoryIndividual, ClientCategoryCompany, ClientCategoryAgency,
	ClientCategoryNonprofit, ClientCategoryOther,
}

type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
	ClientStatusClosed   ClientStatus = "closed"
)

var ClientStatuses = []ClientStatus{ClientStatusActive, ClientStatusInactive, ClientStatusClosed}

// Client is a customer record owned by one user.
type Client struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	UserID uint `gorm:"index;not null" json:"userId"`

	Name     string         `gorm:"size:255;not null" json:"name"`
	Email    string         `gorm:"size:255;not null" json:"email"`
	Company  string         `gorm:"size:255" json:"company,omitempty"`
	Phone    string         `gorm:"size:50" json:"phone,omitempty"`
	Category ClientCategory `gorm:"size:20;not null;default:'individual'" json:"category"`
	Status   ClientStatus   `gorm:"size:20;not null;default:'active';index" json:"status"`
	Deadline *time.Time     `json:"deadline,omitempty"`
	Notes    string         `gorm:"type:text" json:"notes,omitempty"`
}

func (c *Client) OwnerID() uint { return c.UserID }
