package match

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dkeye/Matchbox/internal/domain"
)

// Registry maps algorithm names to implementations and configuration
// tokens to applications.
type Registry struct {
	mu         sync.RWMutex
	algorithms map[string]Algorithm
	apps       map[string]domain.Application
	fallback   string
}

func NewRegistry(defaultAlgorithm string) *Registry {
	return &Registry{
		algorithms: make(map[string]Algorithm),
		apps:       make(map[string]domain.Application),
		fallback:   defaultAlgorithm,
	}
}

func (r *Registry) Register(a Algorithm) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.algorithms[a.Name()] = a
}

func (r *Registry) RegisterApplication(app domain.Application) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app.Name = strings.ToLower(app.Name)
	r.apps[app.Name] = app
}

// Application resolves a configuration token, ignoring case. Unknown
// tokens get the default algorithm and no capacity limit.
func (r *Registry) Application(token string) domain.Application {
	key := strings.ToLower(token)
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.apps[key]
	if !ok {
		app = domain.Application{Name: key}
	}
	if app.Algorithm == "" {
		app.Algorithm = r.fallback
	}
	return app
}

func (r *Registry) Lookup(name string) (Algorithm, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.fallback
	}
	a, ok := r.algorithms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
	return a, nil
}
