package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/freelance-desk/internal/models"
)

func TestClientCreate(t *testing.T) {
	conn := setupTestDB(t)
	u := seedUser(t, conn, "jane@example.com")
	h := NewClientHandler(conn, NewOwnershipGate(), nil)

	rec := serve(t, h.Create, http.MethodPost, "/api/clients", "/api/clients",
		map[string]any{"name": "Acme", "email": "Billing@Acme.test", "category": "company", "deadline": "2026-12-31"}, u.ID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := decode[models.Client](t, rec)
	assert.NotZero(t, c.ID)
	assert.Equal(t, u.ID, c.UserID)
	assert.Equal(t, "billing@acme.test", c.Email)
	assert.Equal(t, models.ClientCategoryCompany, c.Category)
	assert.Equal(t, models.ClientStatusActive, c.Status)
	require.NotNil(t, c.Deadline)
	assert.Equal(t, "2026-12-31", c.Deadline.Format("2006-01-02"))
}

func TestClientCreateValidation(t *testing.T) {
	conn := setupTestDB(t)
	u := seedUser(t, conn, "jane@example.com")
	h := NewClientHandler(conn, NewOwnershipGate(), nil)

	rec := serve(t, h.Create, http.MethodPost, "/api/clients", "/api/clients",
		map[string]any{"email": "not-an-email", "status": "archived"}, u.ID)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorBody](t, rec)
	assert.Equal(t, "required", body.Details["name"])
	assert.Equal(t, "invalid_email", body.Details["email"])
	assert.Equal(t, "invalid_value", body.Details["status"])

	rec = serve(t, h.Create, http.MethodPost, "/api/clients", "/api/clients", `{"name":"x","bogus":1}`, u.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var count int64
	conn.Model(&models.Client{}).Count(&count)
	assert.Zero(t, count)
}

func TestClientListFiltersAndScope(t *testing.T) {
	conn := setupTestDB(t)
	u := seedUser(t, conn, "jane@example.com")
	other := seedUser(t, conn, "other@example.com")
	require.NoError(t, conn.Create(&[]models.Client{
		{UserID: u.ID, Name: "A", Email: "a@x.test", Category: models.ClientCategoryCompany, Status: models.ClientStatusActive},
		{UserID: u.ID, Name: "B", Email: "b@x.test", Category: models.ClientCategoryAgency, Status: models.ClientStatusInactive},
		{UserID: other.ID, Name: "C", Email: "c@x.test", Category: models.ClientCategoryCompany, Status: models.ClientStatusActive},
	}).Error)
	h := NewClientHandler(conn, NewOwnershipGate(), nil)

	rec := serve(t, h.List, http.MethodGet, "/api/clients", "/api/clients", nil, u.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.Client](t, rec), 2)

	rec = serve(t, h.List, http.MethodGet, "/api/clients", "/api/clients?status=active&category=company", nil, u.ID)
	list := decode[[]models.Client](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "A", list[0].Name)

	rec = serve(t, h.List, http.MethodGet, "/api/clients", "/api/clients?status=gone", nil, u.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClientGetUpdateDelete(t *testing.T) {
	conn := setupTestDB(t)
	u := seedUser(t, conn, "jane@example.com")
	other := seedUser(t, conn, "other@example.com")
	c := models.Client{UserID: u.ID, Name: "Acme", Email: "a@acme.test", Category: models.ClientCategoryCompany, Status: models.ClientStatusActive, Notes: "keep"}
	require.NoError(t, conn.Create(&c).Error)
	task := models.Task{UserID: u.ID, ClientID: &c.ID, Name: "Build", DueDate: mustDate(t, "2026-11-01")}
	require.NoError(t, conn.Create(&task).Error)
	h := NewClientHandler(conn, NewOwnershipGate(), nil)
	path := "/api/clients/{id}"
	target := "/api/clients/" + itoa(c.ID)

	rec := serve(t, h.Get, http.MethodGet, path, target, nil, other.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, msgClientNotFound, decode[errorBody](t, rec).Error)

	rec = serve(t, h.Update, http.MethodPut, path, target, map[string]any{"status": "closed"}, u.ID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[models.Client](t, rec)
	assert.Equal(t, models.ClientStatusClosed, updated.Status)
	assert.Equal(t, "Acme", updated.Name)
	assert.Equal(t, "keep", updated.Notes)

	rec = serve(t, h.Update, http.MethodPut, path, target, map[string]any{"category": "alien"}, u.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, h.Delete, http.MethodDelete, path, target, nil, u.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Client deleted successfully"}`, rec.Body.String())

	var reloaded models.Task
	require.NoError(t, conn.First(&reloaded, task.ID).Error)
	assert.Nil(t, reloaded.ClientID)

	rec = serve(t, h.Delete, http.MethodDelete, path, target, nil, u.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
