// Package handlers implements the JSON API and the server-rendered pages.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/diewo77/freelance-desk/auth"
	"github.com/diewo77/freelance-desk/gate"
	"github.com/diewo77/freelance-desk/internal/apperr"
	"github.com/diewo77/freelance-desk/validation"
)

// Resource names registered on the ownership gate.
const (
	ResourceClient  = "client"
	ResourceIncome  = "income"
	ResourceTask    = "task"
	ResourceInvoice = "invoice"
)

// NewOwnershipGate registers the ownership policy for every resource.
func NewOwnershipGate() *gate.Gate[uint] {
	g := gate.NewGate[uint]()
	for _, r := range []string{ResourceClient, ResourceIncome, ResourceTask, ResourceInvoice} {
		g.Register(r, gate.OwnershipPolicy{})
	}
	return g
}

func currentUser(r *http.Request) uint {
	uid, _ := auth.UserIDFromContext(r.Context())
	return uid
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// findOwned loads the {id} record and checks it against the ownership gate.
// Missing and foreign records are both reported as notFound.
func findOwned[T any, PT interface {
	*T
	gate.Ownable
}](r *http.Request, db *gorm.DB, g *gate.Gate[uint], resource string, action gate.Action, notFound string, preloads ...string) (PT, error) {
	id, ok := pathID(r)
	if !ok {
		return nil, apperr.NotFound(notFound)
	}
	var rec T
	q := db.WithContext(r.Context())
	for _, p := range preloads {
		q = q.Preload(p)
	}
	if err := q.First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(notFound)
		}
		return nil, apperr.Internal("load "+resource, err)
	}
	if err := g.Authorize(r.Context(), currentUser(r), action, resource, PT(&rec)); err != nil {
		return nil, apperr.NotFound(notFound)
	}
	return PT(&rec), nil
}

// ownsRecord reports whether the row with id in model's table belongs to userID.
func ownsRecord(ctx context.Context, db *gorm.DB, model any, id, userID uint) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(model).Where("id = ? AND user_id = ?", id, userID).Count(&count).Error
	return count > 0, err
}

// Date accepts "2006-01-02" or RFC 3339 in JSON bodies.
type Date struct{ time.Time }

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := parseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d *Date) Ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// dateRange reads the from/to query parameters. to is inclusive of the
// whole day when given as a plain date.
func dateRange(r *http.Request, v validation.Violations) (from, to *time.Time) {
	q := r.URL.Query()
	if s := q.Get("from"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			v["from"] = "invalid_date"
		} else {
			from = &t
		}
	}
	if s := q.Get("to"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			v["to"] = "invalid_date"
		} else {
			if len(strings.TrimSpace(s)) == len("2006-01-02") {
				t = t.Add(24*time.Hour - time.Nanosecond)
			}
			to = &t
		}
	}
	return from, to
}

func applyRange(q *gorm.DB, column string, from, to *time.Time) *gorm.DB {
	if from != nil {
		q = q.Where(column+" >= ?", *from)
	}
	if to != nil {
		q = q.Where(column+" <= ?", *to)
	}
	return q
}

// trimmed returns the trimmed value of an optional string.
func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// deletedMessage is the body returned by successful deletes.
func deletedMessage(kind string) map[string]string {
	return map[string]string{"message": kind + " deleted successfully"}
}
