package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/freelance-desk/gate"
	"github.com/diewo77/freelance-desk/httpx"
	"github.com/diewo77/freelance-desk/internal/apperr"
	"github.com/diewo77/freelance-desk/internal/models"
	"github.com/diewo77/freelance-desk/internal/services"
	"github.com/diewo77/freelance-desk/validation"
)

const msgInvoiceNotFound = "Invoice not found"

type InvoiceHandler struct {
	db       *gorm.DB
	gate     *gate.Gate[uint]
	invoices *services.InvoiceService
	log      *zap.Logger
}

func NewInvoiceHandler(db *gorm.DB, g *gate.Gate[uint], invoices *services.InvoiceService, log *zap.Logger) *InvoiceHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &InvoiceHandler{db: db, gate: g, invoices: invoices, log: log}
}

// invoiceRequest is the create/update body. The invoice id is always
// generated and cannot be set by callers.
type invoiceRequest struct {
	ClientID    *uint                 `json:"clientId"`
	ClientName  *string               `json:"clientName"`
	Amount      *float64              `json:"amount"`
	Status      *models.InvoiceStatus `json:"status"`
	IssueDate   *Date                 `json:"issueDate"`
	DueDate     *Date                 `json:"dueDate"`
	Description *string               `json:"description"`
}

func (req *invoiceRequest) apply(inv *models.Invoice) {
	if req.ClientID != nil {
		inv.ClientID = optionalID(*req.ClientID)
	}
	if req.ClientName != nil {
		inv.ClientName = strings.TrimSpace(*req.ClientName)
	}
	if req.Amount != nil {
		inv.Amount = *req.Amount
	}
	if req.Status != nil {
		inv.Status = *req.Status
	}
	if req.IssueDate != nil {
		inv.IssueDate = req.IssueDate.Time
	}
	if req.DueDate != nil {
		inv.DueDate = req.DueDate.Ptr()
	}
	if req.Description != nil {
		inv.Description = *req.Description
	}
}

// resolveClient validates inv and copies the linked client's name onto it.
func (h *InvoiceHandler) resolveClient(ctx context.Context, inv *models.Invoice) error {
	v := make(validation.Violations)
	if inv.ClientID != nil {
		var client models.Client
		err := h.db.WithContext(ctx).Where("id = ? AND user_id = ?", *inv.ClientID, inv.UserID).First(&client).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			v["clientId"] = "not_found"
		case err != nil:
			return apperr.Internal("load invoice client", err)
		default:
			inv.ClientName = client.Name
		}
	}
	validation.Required("clientName", inv.ClientName, v)
	validation.NonNegative("amount", inv.Amount, v)
	validation.OneOf("status", inv.Status, models.InvoiceStatuses, v)
	validation.RequiredTime("issueDate", &inv.IssueDate, v)
	if inv.DueDate != nil && inv.DueDate.Before(inv.IssueDate) {
		v["dueDate"] = "before_issue_date"
	}
	if !v.Empty() {
		return apperr.Validation("validation failed", v)
	}
	return nil
}

func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.list(r)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

func (h *InvoiceHandler) list(r *http.Request) ([]models.Invoice, error) {
	v := make(validation.Violations)
	status := models.InvoiceStatus(r.URL.Query().Get("status"))
	validation.OneOf("status", status, models.InvoiceStatuses, v)
	from, to := dateRange(r, v)
	if !v.Empty() {
		return nil, apperr.Validation("invalid filter", v)
	}
	db := h.db.WithContext(r.Context()).Where("user_id = ?", currentUser(r))
	if status != "" {
		db = db.Where("status = ?", status)
	}
	db = applyRange(db, "issue_date", from, to)
	return h.find(db)
}

func (h *InvoiceHandler) find(db *gorm.DB) ([]models.Invoice, error) {
	invoices := []models.Invoice{}
	if err := db.Order("created_at DESC").Order("id DESC").Find(&invoices).Error; err != nil {
		return nil, apperr.Internal("list invoices", err)
	}
	return invoices, nil
}

func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	inv := models.Invoice{
		UserID:    currentUser(r),
		Status:    models.InvoiceStatusPending,
		IssueDate: time.Now().UTC().Truncate(24 * time.Hour),
	}
	req.apply(&inv)
	if err := h.resolveClient(r.Context(), &inv); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.invoices.Create(r.Context(), inv.UserID, &inv); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	h.log.Info("invoice created", zap.Uint("user_id", inv.UserID), zap.String("invoice_id", inv.InvoiceID))
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	inv, err := findOwned[models.Invoice](r, h.db, h.gate, ResourceInvoice, gate.ActionView, msgInvoiceNotFound)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	inv, err := findOwned[models.Invoice](r, h.db, h.gate, ResourceInvoice, gate.ActionUpdate, msgInvoiceNotFound)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	var req invoiceRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	req.apply(inv)
	if err := h.resolveClient(r.Context(), inv); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.db.WithContext(r.Context()).Omit(clause.Associations).Save(inv).Error; err != nil {
		httpx.WriteError(w, h.log, apperr.Internal("update invoice", err))
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

// Delete removes the invoice and responds with the user's remaining invoices.
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	inv, err := findOwned[models.Invoice](r, h.db, h.gate, ResourceInvoice, gate.ActionDelete, msgInvoiceNotFound)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.db.WithContext(r.Context()).Delete(inv).Error; err != nil {
		httpx.WriteError(w, h.log, apperr.Internal("delete invoice", err))
		return
	}
	invoices, err := h.find(h.db.WithContext(r.Context()).Where("user_id = ?", inv.UserID))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoices)
}
