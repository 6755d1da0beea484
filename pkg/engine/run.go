package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"linkvm/pkg/modules"
	"linkvm/pkg/unit"
	"linkvm/pkg/vm"
)

// Load returns the compiled unit for url, loading it if needed.
func (e *Engine) Load(url string) (*unit.ExecutableUnit, error) {
	dep := e.LoadModule(url, nil)
	if e.HasException() {
		return nil, e.CatchException()
	}
	cm, ok := dep.(unit.CompiledModule)
	if !ok {
		return nil, fmt.Errorf("%s is a native module", url)
	}
	return cm.Unit, nil
}

// Instantiate loads and links the module graph rooted at url.
func (e *Engine) Instantiate(url string) (*unit.ModuleRecord, error) {
	u, err := e.Load(url)
	if err != nil {
		return nil, err
	}
	record, ok := u.Instantiate()
	if e.HasException() {
		return nil, e.CatchException()
	}
	if !ok {
		return nil, fmt.Errorf("%s has no root function", url)
	}
	return record, nil
}

// RunModule instantiates url and evaluates it along with its dependencies.
func (e *Engine) RunModule(url string) (*unit.ModuleRecord, error) {
	record, err := e.Instantiate(url)
	if err != nil {
		return nil, err
	}
	e.log.Info("running module", zap.String("url", url))
	record.Unit().Evaluate()
	if e.HasException() {
		return nil, e.CatchException()
	}
	return record, nil
}

// Exports instantiates url and returns the current value of every name it
// exports. Names that resolve to nothing are left out.
func (e *Engine) Exports(url string) (map[string]vm.Value, error) {
	record, err := e.Instantiate(url)
	if err != nil {
		return nil, err
	}
	u := record.Unit()
	values := make(map[string]vm.Value)
	for _, name := range u.ExportedNames() {
		if slot := u.ResolveExport(name); slot != nil {
			values[name] = *slot
		}
	}
	return values, nil
}

// Prefetch loads the module graphs rooted at urls ahead of linking, using a
// bounded pool of provider workers, and registers every unit it finds.
func (e *Engine) Prefetch(ctx context.Context, urls ...string) (*modules.Graph, error) {
	p := modules.NewPrefetcher(e.providers, e.workers)
	fetched, err := p.Prefetch(ctx, urls...)
	for _, url := range p.Graph().TopologicalOrder() {
		if mod := fetched[url]; mod != nil && e.ModuleForURL(url) == nil {
			e.register(url, mod)
		}
	}
	stats := p.Stats()
	e.log.Info("prefetched modules",
		zap.Int64("completed", stats.Completed),
		zap.Int64("cached", stats.Cached),
		zap.Int64("missing", stats.Missing),
		zap.Duration("avg", stats.AverageTime))
	return p.Graph(), err
}
