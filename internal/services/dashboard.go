package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/diewo77/freelance-desk/internal/models"
)

// Summary is the data shown on the dashboard.
type Summary struct {
	Clients        int64
	ActiveIncome   int64
	OpenTasks      int64
	Invoices       int64
	Totals         InvoiceTotals
	UpcomingTasks  []models.Task
	RecentInvoices []models.Invoice
}

type DashboardService struct {
	db       *gorm.DB
	invoices *InvoiceService
}

func NewDashboardService(db *gorm.DB, invoices *InvoiceService) *DashboardService {
	return &DashboardService{db: db, invoices: invoices}
}

// Summary collects counts, invoice totals and the next few open tasks.
func (s *DashboardService) Summary(ctx context.Context, userID uint) (Summary, error) {
	var out Summary
	q := s.db.WithContext(ctx)
	if err := q.Model(&models.Client{}).Where("user_id = ?", userID).Count(&out.Clients).Error; err != nil {
		return out, err
	}
	if err := q.Model(&models.IncomeSource{}).Where("user_id = ? AND is_active = ?", userID, true).Count(&out.ActiveIncome).Error; err != nil {
		return out, err
	}
	open := []models.TaskStatus{models.TaskStatusPending, models.TaskStatusInProgress}
	if err := q.Model(&models.Task{}).Where("user_id = ? AND status IN ?", userID, open).Count(&out.OpenTasks).Error; err != nil {
		return out, err
	}
	if err := q.Model(&models.Invoice{}).Where("user_id = ?", userID).Count(&out.Invoices).Error; err != nil {
		return out, err
	}
	totals, err := s.invoices.Totals(ctx, userID)
	if err != nil {
		return out, err
	}
	out.Totals = totals

	if err := q.Where("user_id = ? AND status IN ?", userID, open).
		Preload("Payments").
		Order("due_date ASC").Limit(5).Find(&out.UpcomingTasks).Error; err != nil {
		return out, err
	}
	for i := range out.UpcomingTasks {
		out.UpcomingTasks[i].Derive()
	}
	if err := q.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").Limit(5).Find(&out.RecentInvoices).Error; err != nil {
		return out, err
	}
	return out, nil
}
