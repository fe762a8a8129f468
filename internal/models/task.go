package models

import "time"

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

var TaskStatuses = []TaskStatus{
	TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled,
}

type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

var PaymentStatuses = []PaymentStatus{PaymentStatusUnpaid, PaymentStatusPartial, PaymentStatusPaid}

// Task is a unit of billable work, optionally linked to a client and an
// income source.
type Task struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	UserID uint `gorm:"index;not null" json:"userId"`

	ClientID       *uint         `gorm:"index" json:"clientId,omitempty"`
	Client         *Client       `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	IncomeSourceID *uint         `gorm:"index" json:"incomeSourceId,omitempty"`
	IncomeSource   *IncomeSource `gorm:"foreignKey:IncomeSourceID" json:"incomeSource,omitempty"`

	Name          string        `gorm:"size:255;not null" json:"name"`
	Description   string        `gorm:"type:text" json:"description,omitempty"`
	Amount        float64       `gorm:"not null;default:0" json:"amount"`
	DueDate       time.Time     `gorm:"not null;index" json:"dueDate"`
	Status        TaskStatus    `gorm:"size:20;not null;default:'pending'" json:"status"`
	PaymentStatus PaymentStatus `gorm:"size:20;not null;default:'unpaid'" json:"paymentStatus"`

	Payments []Payment `gorm:"polymorphic:Owner;polymorphicValue:tasks" json:"payments"`

	// RemainingAmount is derived from Amount and Payments.
	RemainingAmount float64 `gorm:"-" json:"remainingAmount"`
}

func (t *Task) OwnerID() uint { return t.UserID }

// Derive recomputes RemainingAmount at cent precision.
func (t *Task) Derive() {
	t.RemainingAmount = RoundCents(t.Amount - SumPayments(t.Payments))
}

// ApplyPayment appends p and re-derives the payment status: paid once
// nothing remains, partial once something was paid.
func (t *Task) ApplyPayment(p Payment) {
	t.Payments = append(t.Payments, p)
	t.Derive()
	switch {
	case t.RemainingAmount <= 0:
		t.PaymentStatus = PaymentStatusPaid
	case RoundCents(SumPayments(t.Payments)) > 0:
		t.PaymentStatus = PaymentStatusPartial
	}
}
