package handlers

import (
	"context"
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

const msgTaskNotFound = "Task not found"

var taskPreloads = []string{"Client", "IncomeSource", "Payments"}

type TaskHandler struct {
	db   *gorm.DB
	gate *gate.Gate[uint]
	log  *zap.Logger
}

func NewTaskHandler(db *gorm.DB, g *gate.Gate[uint], log *zap.Logger) *TaskHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskHandler{db: db, gate: g, log: log}
}

// taskRequest is the create/update body. A zero clientId or incomeSourceId
// unlinks the task.
type taskRequest struct {
	Name           *string               `json:"name"`
	Description    *string               `json:"description"`
	Amount         *float64              `json:"amount"`
	DueDate        *Date                 `json:"dueDate"`
	Status         *models.TaskStatus    `json:"status"`
	PaymentStatus  *models.PaymentStatus `json:"paymentStatus"`
	ClientID       *uint                 `json:"clientId"`
	IncomeSourceID *uint                 `json:"incomeSourceId"`
}

func (req *taskRequest) apply(t *models.Task) {
	if req.Name != nil {
		t.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Amount != nil {
		t.Amount = *req.Amount
	}
	if req.DueDate != nil {
		t.DueDate = req.DueDate.Time
	}
	if req.Status != nil {
		t.Status = *req.Status
	}
	if req.PaymentStatus != nil {
		t.PaymentStatus = *req.PaymentStatus
	}
	if req.ClientID != nil {
		t.ClientID = optionalID(*req.ClientID)
		t.Client = nil
	}
	if req.IncomeSourceID != nil {
		t.IncomeSourceID = optionalID(*req.IncomeSourceID)
		t.IncomeSource = nil
	}
}

func optionalID(id uint) *uint {
	if id == 0 {
		return nil
	}
	return &id
}

// validateTask checks fields and that linked records belong to userID.
func (h *TaskHandler) validateTask(ctx context.Context, t *models.Task) (validation.Violations, error) {
	v := make(validation.Violations)
	validation.Required("name", t.Name, v)
	validation.RequiredTime("dueDate", &t.DueDate, v)
	validation.NonNegative("amount", t.Amount, v)
	validation.OneOf("status", t.Status, models.TaskStatuses, v)
	validation.OneOf("paymentStatus", t.PaymentStatus, models.PaymentStatuses, v)
	if t.ClientID != nil {
		ok, err := ownsRecord(ctx, h.db, &models.Client{}, *t.ClientID, t.UserID)
		if err != nil {
			return nil, err
		}
		if !ok {
			v["clientId"] = "not_found"
		}
	}
	if t.IncomeSourceID != nil {
		ok, err := ownsRecord(ctx, h.db, &models.IncomeSource{}, *t.IncomeSourceID, t.UserID)
		if err != nil {
			return nil, err
		}
		if !ok {
			v["incomeSourceId"] = "not_found"
		}
	}
	return v, nil
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.list(r)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) list(r *http.Request) ([]models.Task, error) {
	q := r.URL.Query()
	v := make(validation.Violations)
	status := models.TaskStatus(q.Get("status"))
	payStatus := models.PaymentStatus(q.Get("paymentStatus"))
	validation.OneOf("status", status, models.TaskStatuses, v)
	validation.OneOf("paymentStatus", payStatus, models.PaymentStatuses, v)
	var clientID uint64
	if s := q.Get("clientId"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			v["clientId"] = "invalid_value"
		}
		clientID = id
	}
	from, to := dateRange(r, v)
	if !v.Empty() {
		return nil, apperr.Validation("invalid filter", v)
	}

	db := h.db.WithContext(r.Context()).Where("tasks.user_id = ?", currentUser(r))
	for _, p := range taskPreloads {
		db = db.Preload(p)
	}
	if status != "" {
		db = db.Where("status = ?", status)
	}
	if payStatus != "" {
		db = db.Where("payment_status = ?", payStatus)
	}
	if clientID != 0 {
		db = db.Where("client_id = ?", clientID)
	}
	db = applyRange(db, "due_date", from, to)
	tasks := []models.Task{}
	if err := db.Order("due_date ASC").Find(&tasks).Error; err != nil {
		return nil, apperr.Internal("list tasks", err)
	}
	for i := range tasks {
		tasks[i].Derive()
	}
	return tasks, nil
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	task := models.Task{
		UserID:        currentUser(r),
		Status:        models.TaskStatusPending,
		PaymentStatus: models.PaymentStatusUnpaid,
	}
	req.apply(&task)
	if err := h.save(r.Context(), &task, true); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := findOwned[models.Task](r, h.db, h.gate, ResourceTask, gate.ActionView, msgTaskNotFound, taskPreloads...)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	task.Derive()
	httpx.JSON(w, http.StatusOK, task)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	task, err := findOwned[models.Task](r, h.db, h.gate, ResourceTask, gate.ActionUpdate, msgTaskNotFound)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	var req taskRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	req.apply(task)
	if err := h.save(r.Context(), task, false); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, task)
}

// save validates and stores t, then reloads it with its associations.
func (h *TaskHandler) save(ctx context.Context, t *models.Task, create bool) error {
	v, err := h.validateTask(ctx, t)
	if err != nil {
		return apperr.Internal("validate task", err)
	}
	if !v.Empty() {
		return apperr.Validation("validation failed", v)
	}
	db := h.db.WithContext(ctx).Omit(clause.Associations)
	if create {
		err = db.Create(t).Error
	} else {
		err = db.Save(t).Error
	}
	if err != nil {
		return apperr.Internal("save task", err)
	}
	return h.reload(ctx, t)
}

func (h *TaskHandler) reload(ctx context.Context, t *models.Task) error {
	db := h.db.WithContext(ctx)
	for _, p := range taskPreloads {
		db = db.Preload(p)
	}
	var fresh models.Task
	if err := db.First(&fresh, t.ID).Error; err != nil {
		return apperr.Internal("reload task", err)
	}
	fresh.Derive()
	*t = fresh
	return nil
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	task, err := findOwned[models.Task](r, h.db, h.gate, ResourceTask, gate.ActionDelete, msgTaskNotFound)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := deletePayments(tx, models.PaymentOwnerTask, task.ID); err != nil {
			return err
		}
		return tx.Delete(task).Error
	})
	if err != nil {
		httpx.WriteError(w, h.log, apperr.Internal("delete task", err))
		return
	}
	httpx.JSON(w, http.StatusOK, deletedMessage("Task"))
}

// AddPayment records a payment against the task and updates its payment
// status.
func (h *TaskHandler) AddPayment(w http.ResponseWriter, r *http.Request) {
	task, err := findOwned[models.Task](r, h.db, h.gate, ResourceTask, gate.ActionUpdate, msgTaskNotFound, "Payments")
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
	payment.OwnerID = task.ID
	payment.OwnerType = models.PaymentOwnerTask
	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		task.ApplyPayment(payment)
		return tx.Model(task).Update("payment_status", task.PaymentStatus).Error
	})
	if err != nil {
		httpx.WriteError(w, h.log, apperr.Internal("add task payment", err))
		return
	}
	if err := h.reload(r.Context(), task); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, task)
}
