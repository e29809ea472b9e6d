// Package events implements the synchronous domain event dispatch used by
// the persistence orchestration layer. Handlers are registered per domain
// against one of three event shapes: pre-persist update ("updating"),
// post-persist update ("updated"), and user-originated update
// ("route updated"), optionally narrowed to a single changed field.
//
// Dispatch is deliberately plain: handlers run synchronously, in
// registration order, on the caller's goroutine, sharing the caller's
// transaction handle. The first handler error aborts dispatch and propagates
// to the caller, which is expected to roll back the enclosing transaction.
// There is no partial application: either every handler for a mutation
// completes or the mutation is abandoned.
package events

import (
	"gorm.io/gorm"
)

// Patch is the minimal view of a partial update the registry needs: the set
// of field names present, used to select field-narrowed handlers.
type Patch interface {
	FieldNames() []string
}

// UpdatingHandler runs before an entity mutation is persisted. It receives
// the pre-mutation entity and the in-flight patch, which it may rewrite.
// This is the only point at which the patch is mutable.
type UpdatingHandler[E any, P Patch] func(tx *gorm.DB, before E, patch P) error

// UpdatedHandler runs after an entity mutation is persisted, inside the same
// transaction, with the pre- and post-mutation entity. The patch is frozen
// by this point; handlers must not retain either entity past the call.
type UpdatedHandler[E any] func(tx *gorm.DB, before, updated E) error

// RouteUpdatedHandler runs for mutations that originated from a user-facing
// route, carrying the acting user's id. It is only ever fired by the
// orchestrating caller, after dao-level handling, in the same transaction.
type RouteUpdatedHandler[E any] func(tx *gorm.DB, actorID string, before, updated E) error

// Registry routes domain events for a single entity type to its registered
// handlers. One Registry instance per domain; construct with NewRegistry and
// register handlers at process start, before serving traffic. Registration
// is not safe for concurrent use with dispatch.
type Registry[E any, P Patch] struct {
	domain string

	updating          []UpdatingHandler[E, P]
	updated           []UpdatedHandler[E]
	updatedField      map[string][]UpdatedHandler[E]
	routeUpdated      []RouteUpdatedHandler[E]
	routeUpdatedField map[string][]RouteUpdatedHandler[E]
}

// NewRegistry returns an empty registry for the named domain.
func NewRegistry[E any, P Patch](domain string) *Registry[E, P] {
	return &Registry[E, P]{
		domain:            domain,
		updatedField:      map[string][]UpdatedHandler[E]{},
		routeUpdatedField: map[string][]RouteUpdatedHandler[E]{},
	}
}

// Domain returns the entity name this registry dispatches for.
func (r *Registry[E, P]) Domain() string { return r.domain }

// OnUpdating registers a pre-persist handler.
func (r *Registry[E, P]) OnUpdating(h UpdatingHandler[E, P]) {
	r.updating = append(r.updating, h)
}

// OnUpdated registers a wildcard post-persist handler, fired for every
// mutation regardless of which fields changed.
func (r *Registry[E, P]) OnUpdated(h UpdatedHandler[E]) {
	r.updated = append(r.updated, h)
}

// OnUpdatedField registers a post-persist handler fired only when field is
// present in the mutation's patch.
func (r *Registry[E, P]) OnUpdatedField(field string, h UpdatedHandler[E]) {
	r.updatedField[field] = append(r.updatedField[field], h)
}

// OnRouteUpdated registers a wildcard route-level handler.
func (r *Registry[E, P]) OnRouteUpdated(h RouteUpdatedHandler[E]) {
	r.routeUpdated = append(r.routeUpdated, h)
}

// OnRouteUpdatedField registers a route-level handler fired only when field
// is present in the mutation's patch.
func (r *Registry[E, P]) OnRouteUpdatedField(field string, h RouteUpdatedHandler[E]) {
	r.routeUpdatedField[field] = append(r.routeUpdatedField[field], h)
}

// FireUpdating dispatches the pre-persist event. Handlers may rewrite patch.
func (r *Registry[E, P]) FireUpdating(tx *gorm.DB, before E, patch P) error {
	for _, h := range r.updating {
		if err := h(tx, before, patch); err != nil {
			return err
		}
	}
	return nil
}

// FireUpdated dispatches the post-persist event: wildcard handlers first,
// then, for each field present in the frozen patch, that field's handlers.
func (r *Registry[E, P]) FireUpdated(tx *gorm.DB, before, updated E, fields []string) error {
	for _, h := range r.updated {
		if err := h(tx, before, updated); err != nil {
			return err
		}
	}
	for _, f := range fields {
		for _, h := range r.updatedField[f] {
			if err := h(tx, before, updated); err != nil {
				return err
			}
		}
	}
	return nil
}

// FireRouteUpdated dispatches the route-level event with the acting user's
// id: wildcard handlers first, then field handlers in patch order.
func (r *Registry[E, P]) FireRouteUpdated(tx *gorm.DB, actorID string, before, updated E, fields []string) error {
	for _, h := range r.routeUpdated {
		if err := h(tx, actorID, before, updated); err != nil {
			return err
		}
	}
	for _, f := range fields {
		for _, h := range r.routeUpdatedField[f] {
			if err := h(tx, actorID, before, updated); err != nil {
				return err
			}
		}
	}
	return nil
}
