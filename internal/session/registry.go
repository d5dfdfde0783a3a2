package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Factory builds a fresh portal variant; every call yields an isolated browser context.
type Factory func(ctx context.Context) (Portal, error)

// Registry keeps a mapping from portal names to their factories.
type Registry struct {
	factories map[string]Factory
	policy    Policy
	logger    *slog.Logger
}

// NewRegistry builds an empty registry whose sessions share one retry policy.
func NewRegistry(policy Policy, logger *slog.Logger) *Registry {
	return &Registry{factories: map[string]Factory{}, policy: policy, logger: logger}
}

// Register adds or replaces a portal factory.
func (r *Registry) Register(name string, factory Factory) {
	if r.factories == nil {
		r.factories = map[string]Factory{}
	}
	r.factories[name] = factory
}

// Resolve returns a factory by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Factory, error) {
	if factory, ok := r.factories[name]; ok {
		return factory, nil
	}
	return nil, fmt.Errorf("portal %s is not registered", name)
}

// Names lists registered portals in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open builds a new logged-out session for the named portal.
func (r *Registry) Open(ctx context.Context, name string) (*Session, error) {
	factory, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}

	portal, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("open portal %s: %w", name, err)
	}

	logger := r.logger
	if logger != nil {
		logger = logger.With("portal", name)
	}
	return New(portal, r.policy, logger), nil
}
