package modules

import (
	"fmt"
	"sort"
	"sync"

	"linkvm/pkg/errors"
)

// Providers selects among registered providers in priority order.
type Providers struct {
	list  []Provider
	mutex sync.RWMutex
}

// NewProviders creates a provider set ordered by priority.
func NewProviders(providers ...Provider) *Providers {
	ps := &Providers{}
	for _, p := range providers {
		ps.Add(p)
	}
	return ps
}

// Add registers a provider and re-sorts by priority.
func (ps *Providers) Add(p Provider) {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	ps.list = append(ps.list, p)
	sort.SliceStable(ps.list, func(i, j int) bool {
		return ps.list[i].Priority() < ps.list[j].Priority()
	})
}

// List returns the providers in resolution order.
func (ps *Providers) List() []Provider {
	ps.mutex.RLock()
	defer ps.mutex.RUnlock()

	return append([]Provider(nil), ps.list...)
}

// Provide asks each provider that claims url, in priority order, until one
// succeeds. Not-found answers fall through to the next provider; any other
// failure is returned immediately.
func (ps *Providers) Provide(url string) (*Module, error) {
	for _, p := range ps.List() {
		if !p.CanProvide(url) {
			continue
		}
		mod, err := p.Provide(url)
		if err == nil {
			if mod.Provider == "" {
				mod.Provider = p.Name()
			}
			return mod, nil
		}
		if !errors.Is(err, errors.ErrModuleNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s: %w", url, errors.ErrModuleNotFound)
}
