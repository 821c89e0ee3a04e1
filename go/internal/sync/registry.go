package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"

	"github.com/feltworks/tourneyclock/go/internal/models"
)

// ErrUnknownEntityType is returned when no apply handler is registered for a
// change's entity type.
var ErrUnknownEntityType = errors.New("unknown entity type")

// ApplyFunc applies one tracked change to the canonical store.
type ApplyFunc func(ctx context.Context, change models.ChangeRecord) error

// Registry dispatches changes to per-entity-type apply handlers. Adding an
// entity type means registering a handler, not touching the dispatcher.
type Registry struct {
	mu       gosync.RWMutex
	handlers map[string]ApplyFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]ApplyFunc)}
}

// Register installs the apply handler for an entity type, replacing any
// previous one.
func (r *Registry) Register(entityType string, fn ApplyFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[entityType] = fn
}

// Apply routes the change to its entity type's handler.
func (r *Registry) Apply(ctx context.Context, change models.ChangeRecord) error {
	r.mu.RLock()
	fn, ok := r.handlers[change.EntityType]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEntityType, change.EntityType)
	}
	return fn(ctx, change)
}
