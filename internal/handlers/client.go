package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/freelance-desk/gate"
	"github.com/diewo77/freelance-desk/httpx"
	"github.com/diewo77/freelance-desk/internal/apperr"
	"github.com/diewo77/freelance-desk/internal/models"
	"github.com/diewo77/freelance-desk/validation"
)

const msgClientNotFound = "Client not found"

type ClientHandler struct {
	db   *gorm.DB
	gate *gate.Gate[uint]
	log  *zap.Logger
}

func NewClientHandler(db *gorm.DB, g *gate.Gate[uint], log *zap.Logger) *ClientHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ClientHandler{db: db, gate: g, log: log}
}

// clientRequest is the create/update body. Nil fields are left untouched
// on update.
type clientRequest struct {
	Name     *string                `json:"name"`
	Email    *string                `json:"email"`
	Company  *string                `json:"company"`
	Phone    *string                `json:"phone"`
	Category *models.ClientCategory `json:"category"`
	Status   *models.ClientStatus   `json:"status"`
	Deadline *Date                  `json:"deadline"`
	Notes    *string                `json:"notes"`
}

func (req *clientRequest) apply(c *models.Client) {
	if req.Name != nil {
		c.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		c.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Company != nil {
		c.Company = trimmed(req.Company)
	}
	if req.Phone != nil {
		c.Phone = trimmed(req.Phone)
	}
	if req.Category != nil {
		c.Category = *req.Category
	}
	if req.Status != nil {
		c.Status = *req.Status
	}
	if req.Deadline != nil {
		c.Deadline = req.Deadline.Ptr()
	}
	if req.Notes != nil {
		c.Notes = *req.Notes
	}
}

func validateClient(c *models.Client) validation.Violations {
	v := make(validation.Violations)
	validation.Required("name", c.Name, v)
	validation.Required("email", c.Email, v)
	validation.Email("email", c.Email, v)
	validation.OneOf("category", c.Category, models.ClientCategories, v)
	validation.OneOf("status", c.Status, models.ClientStatuses, v)
	return v
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.list(r)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, clients)
}

func (h *ClientHandler) list(r *http.Request) ([]models.Client, error) {
	q := r.URL.Query()
	v := make(validation.Violations)
	status := models.ClientStatus(q.Get("status"))
	category := models.ClientCategory(q.Get("category"))
	validation.OneOf("status", status, models.ClientStatuses, v)
	validation.OneOf("category", category, models.ClientCategories, v)
	if !v.Empty() {
		return nil, apperr.Validation("invalid filter", v)
	}

	db := h.db.WithContext(r.Context()).Where("user_id = ?", currentUser(r))
	if status != "" {
		db = db.Where("status = ?", status)
	}
	if category != "" {
		db = db.Where("category = ?", category)
	}
	clients := []models.Client{}
	if err := db.Order("created_at DESC").Find(&clients).Error; err != nil {
		return nil, apperr.Internal("list clients", err)
	}
	return clients, nil
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	client := models.Client{
		UserID:   currentUser(r),
		Category: models.ClientCategoryIndividual,
		Status:   models.ClientStatusActive,
	}
	req.apply(&client)
	if v := validateClient(&client); !v.Empty() {
		httpx.WriteError(w, h.log, apperr.Validation("validation failed", v))
		return
	}
	if err := h.db.WithContext(r.Context()).Create(&client).Error; err != nil {
		httpx.WriteError(w, h.log, apperr.Internal("create client", err))
		return
	}
	httpx.JSON(w, http.StatusCreated, client)
}

func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	client, err := findOwned[models.Client](r, h.db, h.gate, ResourceClient, gate.ActionView, msgClientNotFound)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	client, err := findOwned[models.Client](r, h.db, h.gate, ResourceClient, gate.ActionUpdate, msgClientNotFound)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	var req clientRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	req.apply(client)
	if v := validateClient(client); !v.Empty() {
		httpx.WriteError(w, h.log, apperr.Validation("validation failed", v))
		return
	}
	if err := h.db.WithContext(r.Context()).Save(client).Error; err != nil {
		httpx.WriteError(w, h.log, apperr.Internal("update client", err))
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}

// Delete removes the client and detaches its tasks and invoices.
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	client, err := findOwned[models.Client](r, h.db, h.gate, ResourceClient, gate.ActionDelete, msgClientNotFound)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Task{}).Where("client_id = ?", client.ID).Update("client_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Invoice{}).Where("client_id = ?", client.ID).Update("client_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(client).Error
	})
	if err != nil {
		httpx.WriteError(w, h.log, apperr.Internal("delete client", err))
		return
	}
	httpx.JSON(w, http.StatusOK, deletedMessage("Client"))
}
