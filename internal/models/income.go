package models

import "time"

type IncomeType string

const (
	IncomeTypeFreelance  IncomeType = "freelance"
	IncomeTypeSalary     IncomeType = "salary"
	IncomeTypeBusiness   IncomeType = "business"
	IncomeTypeInvestment IncomeType = "investment"
	IncomeTypeRental     IncomeType = "rental"
	IncomeTypeOther      IncomeType = "other"
)

var IncomeTypes = []IncomeType{
	IncomeTypeFreelance, IncomeTypeSalary, IncomeTypeBusiness,
	IncomeTypeInvestment, IncomeTypeRental, IncomeTypeOther,
}

type Frequency string

const (
	FrequencyOneTime   Frequency = "one-time"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

var Frequencies = []Frequency{
	FrequencyOneTime, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly,
}

// IncomeSource is a recurring or one-off source of revenue.
type IncomeSource struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	UserID uint `gorm:"index;not null" json:"userId"`

	Name        string     `gorm:"size:255;not null" json:"name"`
	Type        IncomeType `gorm:"size:20;not null;default:'freelance'" json:"type"`
	Amount      float64    `gorm:"not null;default:0" json:"amount"`
	Frequency   Frequency  `gorm:"size:20;not null;default:'monthly'" json:"frequency"`
	IsActive    bool       `gorm:"not null" json:"isActive"`
	Description string     `gorm:"type:text" json:"description,omitempty"`

	Payments []Payment `gorm:"polymorphic:Owner;polymorphicValue:income_sources" json:"payments"`
}

func (s *IncomeSource) OwnerID() uint { return s.UserID }

// Received totals the payments recorded against the source.
func (s *IncomeSource) Received() float64 { return SumPayments(s.Payments) }
