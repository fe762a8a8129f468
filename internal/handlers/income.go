package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/freelance-desk/gate"
	"github.com/diewo77/freelance-desk/httpx"
	"github.com/diewo77/freelance-desk/internal/apperr"
	"github.com/diewo77/freelance-desk/internal/models"
	"github.com/diewo77/freelance-desk/validation"
)

const msgIncomeNotFound = "Income source not found"

type IncomeHandler struct {
	db   *gorm.DB
	gate *gate.Gate[uint]
	log  *zap.Logger
}

func NewIncomeHandler(db *gorm.DB, g *gate.Gate[uint], log *zap.Logger) *IncomeHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &IncomeHandler{db: db, gate: g, log: log}
}

type incomeRequest struct {
	Name        *string            `json:"name"`
	Type        *models.IncomeType `json:"type"`
	Amount      *float64           `json:"amount"`
	Frequency   *models.Frequency  `json:"frequency"`
	IsActive    *bool              `json:"isActive"`
	Description *string            `json:"description"`
}

func (req *incomeRequest) apply(s *models.IncomeSource) {
	if req.Name != nil {
		s.Name = strings.TrimSpace(*req.Name)
	}
	if req.Type != nil {
		s.Type = *req.Type
	}
	if req.Amount != nil {
		s.Amount = *req.Amount
	}
	if req.Frequency != nil {
		s.Frequency = *req.Frequency
	}
	if req.IsActive != nil {
		s.IsActive = *req.IsActive
	}
	if req.Description != nil {
		s.Description = *req.Description
	}
}

func validateIncome(s *models.IncomeSource) validation.Violations {
	v := make(validation.Violations)
	validation.Required("name", s.Name, v)
	validation.OneOf("type", s.Type, models.IncomeTypes, v)
	validation.NonNegative("amount", s.Amount, v)
	validation.OneOf("frequency", s.Frequency, models.Frequencies, v)
	return v
}

// paymentRequest is the body of the payment endpoints.
type paymentRequest struct {
	Amount *float64 `json:"amount"`
	Date   *Date    `json:"date"`
	Method *string  `json:"method"`
	Note   *string  `json:"note"`
}

func (req *paymentRequest) payment(now time.Time) (models.Payment, error) {
	v := make(validation.Violations)
	if req.Amount == nil {
		v["amount"] = "required"
	} else {
		validation.PositiveFloat("amount", *req.Amount, v)
	}
	if !v.Empty() {
		return models.Payment{}, apperr.Validation("validation failed", v)
	}
	p := models.Payment{Amount: *req.Amount, Date: now, Method: trimmed(req.Method), Note: trimmed(req.Note)}
	if req.Date != nil {
		p.Date = req.Date.Time
	}
	return p, nil
}

func (h *IncomeHandler) List(w http.ResponseWriter, r *http.Request) {
	sources, err := h.list(r)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sources)
}

func (h *IncomeHandler) list(r *http.Request) ([]models.IncomeSource, error) {
	q := r.URL.Query()
	v := make(validation.Violations)
	typ := models.IncomeType(q.Get("type"))
	freq := models.Frequency(q.Get("frequency"))
	validation.OneOf("type", typ, models.IncomeTypes, v)
	validation.OneOf("frequency", freq, models.Frequencies, v)
	var active *bool
	if s := q.Get("active"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			v["active"] = "invalid_value"
		} else {
			active = &b
		}
	}
	from, to := dateRange(r, v)
	if !v.Empty() {
		return nil, apperr.Validation("invalid filter", v)
	}

	db := h.db.WithContext(r.Context()).Preload("Payments").Where("user_id = ?", currentUser(r))
	if typ != "" {
		db = db.Where("type = ?", typ)
	}
	if freq != "" {
		db = db.Where("frequency = ?", freq)
	}
	if active != nil {
		db = db.Where("is_active = ?", *active)
	}
	db = applyRange(db, "created_at", from, to)
	sources := []models.IncomeSource{}
	if err := db.Order("created_at DESC").Find(&sources).Error; err != nil {
		return nil, apperr.Internal("list income sources", err)
	}
	return sources, nil
}

func (h *IncomeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req incomeRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	source := models.IncomeSource{
		UserID:    currentUser(r),
		Type:      models.IncomeTypeFreelance,
		Frequency: models.FrequencyMonthly,
		IsActive:  true,
	}
	req.apply(&source)
	if v := validateIncome(&source); !v.Empty() {
		httpx.WriteError(w, h.log, apperr.Validation("validation failed", v))
		return
	}
	if err := h.db.WithContext(r.Context()).Create(&source).Error; err != nil {
		httpx.WriteError(w, h.log, apperr.Internal("create income source", err))
		return
	}
	source.Payments = []models.Payment{}
	httpx.JSON(w, http.StatusCreated, source)
}

func (h *IncomeHandler) Get(w http.ResponseWriter, r *http.Request) {
	source, err := findOwned[models.IncomeSource](r, h.db, h.gate, ResourceIncome, gate.ActionView, msgIncomeNotFound, "Payments")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, source)
}

func (h *IncomeHandler) Update(w http.ResponseWriter, r *http.Request) {
	source, err := findOwned[models.IncomeSource](r, h.db, h.gate, ResourceIncome, gate.ActionUpdate, msgIncomeNotFound, "Payments")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	var req incomeRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	req.apply(source)
	if v := validateIncome(source); !v.Empty() {
		httpx.WriteError(w, h.log, apperr.Validation("validation failed", v))
		return
	}
	// Omit associations so Save does not upsert the preloaded payments.
	if err := h.db.WithContext(r.Context()).Omit(clause.Associations).Save(source).Error; err != nil {
		httpx.WriteError(w, h.log, apperr.Internal("update income source", err))
		return
	}
	httpx.JSON(w, http.StatusOK, source)
}

// Delete removes the source with its payments and unlinks its tasks.
func (h *IncomeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	source, err := findOwned[models.IncomeSource](r, h.db, h.gate, ResourceIncome, gate.ActionDelete, msgIncomeNotFound)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Task{}).Where("income_source_id = ?", source.ID).Update("income_source_id", nil).Error; err != nil {
			return err
		}
		if err := deletePayments(tx, models.PaymentOwnerIncome, source.ID); err != nil {
			return err
		}
		return tx.Delete(source).Error
	})
	if err != nil {
		httpx.WriteError(w, h.log, apperr.Internal("delete income source", err))
		return
	}
	httpx.JSON(w, http.StatusOK, deletedMessage("Income source"))
}

// AddPayment records a payment against the source and returns the source.
func (h *IncomeHandler) AddPayment(w http.ResponseWriter, r *http.Request) {
	source, err := findOwned[models.IncomeSource](r, h.db, h.gate, ResourceIncome, gate.ActionUpdate, msgIncomeNotFound, "Payments")
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	var req paymentRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	payment, err := req.payment(time.Now())
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	payment.OwnerID = source.ID
	payment.OwnerType = models.PaymentOwnerIncome
	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		return tx.Model(source).Update("updated_at", time.Now()).Error
	})
	if err != nil {
		httpx.WriteError(w, h.log, apperr.Internal("add income payment", err))
		return
	}
	source.Payments = append(source.Payments, payment)
	httpx.JSON(w, http.StatusOK, source)
}

func deletePayments(tx *gorm.DB, ownerType string, ownerID uint) error {
	return tx.Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).Delete(&models.Payment{}).Error
}
