package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/diewo77/freelance-desk/internal/apperr"
	"github.com/diewo77/freelance-desk/internal/db"
	"github.com/diewo77/freelance-desk/internal/models"
)

// MsgDuplicateInvoiceID is returned when a generated invoice id collides.
const MsgDuplicateInvoiceID = "Invoice ID already exists, please try again"

type InvoiceService struct {
	db *gorm.DB
}

func NewInvoiceService(db *gorm.DB) *InvoiceService {
	return &InvoiceService{db: db}
}

// NextInvoiceID advances the user's counter inside tx and returns the new
// id. A missing counter is seeded from the most recently created invoice.
func NextInvoiceID(tx *gorm.DB, userID uint) (string, error) {
	res := tx.Model(&models.InvoiceCounter{}).
		Where("user_id = ?", userID).
		UpdateColumn("seq", gorm.Expr("seq + 1"))
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		var last models.Invoice
		if err := tx.Where("user_id = ?", userID).
			Order("created_at DESC, id DESC").Limit(1).Find(&last).Error; err != nil {
			return "", err
		}
		counter := models.InvoiceCounter{UserID: userID, Seq: models.ParseInvoiceSeq(last.InvoiceID) + 1}
		if err := tx.Create(&counter).Error; err != nil {
			return "", err
		}
		return models.FormatInvoiceID(counter.Seq), nil
	}
	var counter models.InvoiceCounter
	if err := tx.Where("user_id = ?", userID).First(&counter).Error; err != nil {
		return "", err
	}
	return models.FormatInvoiceID(counter.Seq), nil
}

// Create assigns the next invoice id and stores inv for userID. Any id
// collision is reported as a validation error; there is no retry.
func (s *InvoiceService) Create(ctx context.Context, userID uint, inv *models.Invoice) error {
	inv.UserID = userID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := NextInvoiceID(tx, userID)
		if err != nil {
			return err
		}
		inv.InvoiceID = id
		return tx.Create(inv).Error
	})
	if err == nil {
		return nil
	}
	if db.IsDuplicate(err) {
		return apperr.Validation(MsgDuplicateInvoiceID, nil)
	}
	return apperr.Internal("create invoice", err)
}

// InvoiceTotals summarizes a user's invoices by state.
type InvoiceTotals struct {
	Revenue     float64 `json:"revenue"`
	Outstanding float64 `json:"outstanding"`
	Overdue     float64 `json:"overdue"`
}

// Totals sums paid, open and overdue invoice amounts for userID.
func (s *InvoiceService) Totals(ctx context.Context, userID uint) (InvoiceTotals, error) {
	var rows []struct {
		Status models.InvoiceStatus
		Total  float64
	}
	err := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Select("status, COALESCE(SUM(amount), 0) AS total").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return InvoiceTotals{}, err
	}
	var t InvoiceTotals
	for _, r := range rows {
		switch r.Status {
		case models.InvoiceStatusPaid:
			t.Revenue += r.Total
		case models.InvoiceStatusPending:
			t.Outstanding += r.Total
		case models.InvoiceStatusOverdue:
			t.Outstanding += r.Total
			t.Overdue += r.Total
		}
	}
	return t, nil
}
