// Package robot dispatches netmail addressed to a mailbox name at this
// station (e.g. "ping") to a registered handler instead of routing it.
package robot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/stlalpha/v3toss/internal/ftn"
)

// ErrDuplicate is returned when a name is registered twice.
var ErrDuplicate = errors.New("robot: duplicate registration")

// Handler processes one message addressed to its mailbox.
type Handler interface {
	Execute(ctx context.Context, msg *ftn.Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *ftn.Message) error

func (f HandlerFunc) Execute(ctx context.Context, msg *ftn.Message) error {
	return f(ctx, msg)
}

// Error wraps a failure raised by a robot.
type Error struct {
	Robot string
	Err   error
}

func (e *Error) Error() string {
	return "robot " + e.Robot + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Registry maps mailbox names to handlers. Names are case-insensitive.
// Handlers are registered at startup; lookups are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds h under name.
func (r *Registry) Register(name string, h Handler) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return fmt.Errorf("robot: empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.handlers[key] = h
	return nil
}

// Lookup returns the handler for a mailbox name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[strings.ToLower(strings.TrimSpace(name))]
	return h, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Execute runs h and converts both returned errors and panics into *Error.
func Execute(ctx context.Context, name string, h Handler, msg *ftn.Message) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &Error{Robot: name, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	if e := h.Execute(ctx, msg); e != nil {
		return &Error{Robot: name, Err: e}
	}
	return nil
}
