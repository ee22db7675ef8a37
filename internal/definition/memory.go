package definition

import (
	"context"
	"sync"

	"github.com/petrijr/formflow/pkg/api"
)

// InMemoryProvider serves definitions registered with Put.
type InMemoryProvider struct {
	mu   sync.RWMutex
	defs map[string]api.FlowDefinition
}

var _ api.DefinitionProvider = (*InMemoryProvider)(nil)

func NewInMemoryProvider() *InMemoryProvider {
	return &InMemoryProvider{defs: make(map[string]api.FlowDefinition)}
}

// Put registers def for route, replacing any previous definition.
func (p *InMemoryProvider) Put(route string, def api.FlowDefinition) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.defs[api.NormalizeRoute(route)] = def
}

func (p *InMemoryProvider) GetFormDefinition(ctx context.Context, route string) (api.FlowDefinition, error) {
	route = api.NormalizeRoute(route)

	p.mu.RLock()
	defer p.mu.RUnlock()

	def, ok := p.defs[route]
	if !ok {
		return api.FlowDefinition{}, &api.DefinitionError{Route: route, Err: api.ErrDefinitionNotFound}
	}
	return def, nil
}
