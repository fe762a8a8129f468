package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// InvoiceStatus represents the status of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

var InvoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft, InvoiceStatusPending, InvoiceStatusPaid,
	InvoiceStatusOverdue, InvoiceStatusCancelled,
}

// InvoicePrefix starts every human-readable invoice id.
const InvoicePrefix = "INV-"

// Invoice represents a billing invoice. InvoiceID is unique per user.
type Invoice struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	UserID    uint   `gorm:"not null;uniqueIndex:idx_invoice_user_number" json:"userId"`
	InvoiceID string `gorm:"size:32;not null;uniqueIndex:idx_invoice_user_number" json:"invoiceId"`

	ClientID   *uint         `gorm:"index" json:"clientId,omitempty"`
	Client     *Client       `gorm:"foreignKey:ClientID" json:"-"`
	ClientName string        `gorm:"size:255;not null" json:"clientName"`
	Amount     float64       `gorm:"not null;default:0" json:"amount"`
	Status     InvoiceStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	IssueDate  time.Time     `gorm:"not null" json:"issueDate"`
	DueDate    *time.Time    `json:"dueDate,omitempty"`

	Description string `gorm:"type:text" json:"description,omitempty"`
}

func (i *Invoice) OwnerID() uint { return i.UserID }

// InvoiceCounter holds the last issued invoice sequence per user.
type InvoiceCounter struct {
	UserID uint `gorm:"primaryKey;autoIncrement:false"`
	Seq    int  `gorm:"not null"`
}

// FormatInvoiceID renders seq as INV-NNN (at least three digits).
func FormatInvoiceID(seq int) string {
	return fmt.Sprintf("%s%03d", InvoicePrefix, seq)
}

// ParseInvoiceSeq extracts the numeric suffix of an invoice id, or 0.
func ParseInvoiceSeq(id string) int {
	rest, ok := strings.CutPrefix(id, InvoicePrefix)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
