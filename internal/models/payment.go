package models

import (
	"math"
	"time"
)

// Owner types stored in Payment.OwnerType.
const (
	PaymentOwnerIncome = "income_sources"
	PaymentOwnerTask   = "tasks"
)

// Payment is money received against an income source or a task.
// OwnerType/OwnerID form the gorm polymorphic reference.
type Payment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	OwnerID   uint   `gorm:"index:idx_payment_owner;not null" json:"-"`
	OwnerType string `gorm:"index:idx_payment_owner;size:32;not null" json:"-"`

	Amount float64   `gorm:"not null" json:"amount"`
	Date   time.Time `gorm:"not null" json:"date"`
	Method string    `gorm:"size:50" json:"method,omitempty"`
	Note   string    `gorm:"size:500" json:"note,omitempty"`
}

// SumPayments totals the payment amounts.
func SumPayments(ps []Payment) float64 {
	var total float64
	for _, p := range ps {
		total += p.Amount
	}
	return total
}

// RoundCents rounds v to two decimals so sums of fractional payments compare
// exactly. Negative zero is normalized.
func RoundCents(v float64) float64 {
	r := math.Round(v*100) / 100
	if r == 0 {
		return 0
	}
	return r
}
