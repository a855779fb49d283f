package usecase

import (
	"context"
	"time"

	"github.com/centralrestaurante/amigo-central/domain"
)

// ToolHandler executes one tool. userID is the trusted caller identity, never
// a value taken from args. Validation failures are returned as outcomes; a Go
// error means the handler itself faulted.
type ToolHandler interface {
	Declaration() domain.ToolDeclaration
	Handle(ctx context.Context, userID int64, args map[string]any) (domain.ToolOutcome, error)
}

// ToolRegistry is the fixed set of tools advertised to the model.
type ToolRegistry struct {
	handlers map[string]ToolHandler
	order    []string
}

func NewToolRegistry(handlers ...ToolHandler) *ToolRegistry {
	r := &ToolRegistry{handlers: make(map[string]ToolHandler, len(handlers))}
	for _, h := range handlers {
		name := h.Declaration().Name
		if _, dup := r.handlers[name]; !dup {
			r.order = append(r.order, name)
		}
		r.handlers[name] = h
	}
	return r
}

// NewConciergeTools registers save_dietary_profile and create_reservation.
func NewConciergeTools(store domain.Store, restaurantTZ *time.Location) *ToolRegistry {
	return NewToolRegistry(
		NewSaveProfileTool(store),
		NewCreateReservationTool(store, restaurantTZ),
	)
}

func (r *ToolRegistry) Lookup(name string) (ToolHandler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Declarations lists the tools in registration order.
func (r *ToolRegistry) Declarations() []domain.ToolDeclaration {
	decls := make([]domain.ToolDeclaration, 0, len(r.order))
	for _, name := range r.order {
		decls = append(decls, r.handlers[name].Declaration())
	}
	return decls
}
