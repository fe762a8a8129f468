package validation

import (
	"testing"
	"time"
)

func TestValidators(t *testing.T) {
	v := make(Violations)
	Required("name", "  ", v)
	NonNegative("amount", -1, v)
	PositiveFloat("payment", 0, v)
	MinLen("password", "short", 8, v)
	Email("email", "not-an-email", v)
	OneOf("status", "archived", []string{"active", "inactive", "closed"}, v)
	RequiredTime("dueDate", nil, v)

	want := map[string]string{
		"name":     "required",
		"amount":   "must_not_be_negative",
		"payment":  "must_be_positive",
		"password": "too_short",
		"email":    "invalid_email",
		"status":   "invalid_value",
		"dueDate":  "required",
	}
	for field, code := range want {
		if v[field] != code {
			t.Errorf("%s: got %q, want %q", field, v[field], code)
		}
	}
	if v.Empty() {
		t.Fatal("expected violations")
	}
}

func TestValidatorsAccept(t *testing.T) {
	v := make(Violations)
	now := time.Now()
	Required("name", "Acme", v)
	NonNegative("amount", 0, v)
	Email("email", "jane@example.com", v)
	Email("optional", "", v)
	OneOf("status", "", []string{"active"}, v)
	OneOf("status2", "active", []string{"active"}, v)
	RequiredTime("dueDate", &now, v)
	if !v.Empty() {
		t.Fatalf("unexpected violations: %v", v)
	}
}
