package extraction

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Settings carries what a strategy factory may need. Each strategy reads its own fields.
type Settings struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	ReplayPath string
}

// Factory creates an Extractor from settings
type Factory func(settings Settings) (Extractor, error)

// Registry manages extraction strategy factories
type Registry interface {
	// Register adds a new strategy factory
	Register(strategy string, factory Factory) error
	// Create instantiates the named strategy using the provided settings
	Create(strategy string, settings Settings) (Extractor, error)
	// ListStrategies returns the registered strategy names, sorted
	ListStrategies() []string
}

type registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a registry preloaded with the given factories
func NewRegistry(factories map[string]Factory) Registry {
	r := &registry{
		factories: make(map[string]Factory, len(factories)),
	}
	for name, f := range factories {
		r.factories[name] = f
	}
	return r
}

// DefaultRegistry knows the built-in strategies.
func DefaultRegistry() Registry {
	return NewRegistry(map[string]Factory{
		RulesStrategy:  RulesFactory,
		ModelStrategy:  ModelFactory,
		ReplayStrategy: ReplayFactory,
	})
}

func (r *registry) Register(strategy string, factory Factory) error {
	if strategy == "" {
		return fmt.Errorf("strategy name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[strategy]; exists {
		return fmt.Errorf("strategy %q is already registered", strategy)
	}

	r.factories[strategy] = factory
	return nil
}

func (r *registry) Create(strategy string, settings Settings) (Extractor, error) {
	r.mu.RLock()
	factory, exists := r.factories[strategy]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("strategy %q is not registered", strategy)
	}

	return factory(settings)
}

func (r *registry) ListStrategies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	strategies := make([]string, 0, len(r.factories))
	for strategy := range r.factories {
		strategies = append(strategies, strategy)
	}
	sort.Strings(strategies)
	return strategies
}
