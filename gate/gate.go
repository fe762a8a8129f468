// Package gate holds the two authorization checkpoints of the app:
// the route gate, which decides per request whether a path needs a session,
// and the resource Gate, which checks that a loaded record belongs to the
// session user before it is read or changed.
//
// The resource Gate is generic over the subject type:
//   - Gate[uint] for user ID based checks
//   - Gate[*Claims] or any comparable subject elsewhere
package gate

import (
	"context"
	"errors"
)

// Action describes the kind of operation performed on a resource.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"
)

// Sentinel errors returned by Gate.Authorize.
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNoPolicyDefined = errors.New("no policy defined for resource")
)

// Policy defines authorization rules for one resource type.
// For list/create, resource may be nil.
type Policy[U any] interface {
	Can(ctx context.Context, user U, action Action, resource any) bool
}

// Gate is a registry of policies keyed by resource type.
type Gate[U comparable] struct {
	policies map[string]Policy[U]
}

// NewGate creates an empty Gate.
func NewGate[U comparable]() *Gate[U] {
	return &Gate[U]{policies: make(map[string]Policy[U])}
}

// Register adds or replaces the policy for resourceType.
func (g *Gate[U]) Register(resourceType string, p Policy[U]) *Gate[U] {
	g.policies[resourceType] = p
	return g
}

// Authorize returns ErrUnauthorized for a zero user or a denied action and
// ErrNoPolicyDefined when resourceType is unknown.
func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string, resource any) error {
	var zero U
	if user == zero {
		return ErrUnauthorized
	}
	p, ok := g.policies[resourceType]
	if !ok {
		return ErrNoPolicyDefined
	}
	if !p.Can(ctx, user, action, resource) {
		return ErrUnauthorized
	}
	return nil
}

// Can reports whether Authorize would succeed.
func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, user, action, resourceType, resource) == nil
}

// Ownable is implemented by records that belong to a single user.
type Ownable interface {
	OwnerID() uint
}

// OwnershipPolicy allows an action when the record belongs to the user.
// A nil resource (list/create) is always allowed; a resource that is not
// Ownable is denied.
type OwnershipPolicy struct{}

func (OwnershipPolicy) Can(_ context.Context, userID uint, _ Action, resource any) bool {
	if resource == nil {
		return true
	}
	o, ok := resource.(Ownable)
	if !ok {
		return false
	}
	return o.OwnerID() == userID
}
