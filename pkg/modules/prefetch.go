package modules

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"linkvm/pkg/errors"
)

// PrefetchResult is the outcome of fetching one module.
type PrefetchResult struct {
	URL      string
	Module   *Module
	Err      error
	Duration time.Duration
	WorkerID int
}

// PrefetchStats contains statistics about a prefetch run
type PrefetchStats struct {
	WorkerCount int           // Number of workers
	Submitted   int64         // Modules handed to workers
	Completed   int64         // Modules provided successfully
	Cached      int64         // Completed modules served from the unit cache
	Missing     int64         // Requests no provider could serve
	Failed      int64         // Requests that failed for another reason
	TotalTime   time.Duration // Sum of per-module provide time
	AverageTime time.Duration // Average provide time
}

// Prefetcher loads a module graph ahead of linking. A bounded pool of
// workers asks the providers for each URL and follows the module requests
// of every unit it receives, so the engine finds the whole graph ready.
type Prefetcher struct {
	providers  *Providers
	numWorkers int
	graph      *Graph

	submitted atomic.Int64
	completed atomic.Int64
	cached    atomic.Int64
	missing   atomic.Int64
	failed    atomic.Int64
	totalTime atomic.Int64
}

// NewPrefetcher creates a prefetcher. numWorkers <= 0 uses one worker per CPU.
func NewPrefetcher(providers *Providers, numWorkers int) *Prefetcher {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &Prefetcher{
		providers:  providers,
		numWorkers: numWorkers,
		graph:      NewGraph(),
	}
}

// Graph returns the request graph discovered so far.
func (p *Prefetcher) Graph() *Graph {
	return p.graph
}

// Prefetch fetches roots and everything they transitively request. URLs no
// provider serves are left out of the result without failing the run, since
// the host may register them as native modules. The first other failure is
// returned along with whatever was fetched.
func (p *Prefetcher) Prefetch(ctx context.Context, roots ...string) (map[string]*Module, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan string)
	results := make(chan PrefetchResult)

	var wg sync.WaitGroup
	for i := 0; i < p.numWorkers; i++ {
		wg.Add(1)
		go p.worker(ctx, i, jobs, results, &wg)
	}

	fetched := make(map[string]*Module)
	seen := make(map[string]bool)
	var queue []string
	enqueue := func(url string) {
		if seen[url] {
			return
		}
		seen[url] = true
		p.graph.AddModule(url)
		queue = append(queue, url)
	}
	for _, url := range roots {
		enqueue(url)
	}

	var failures []PrefetchResult
	pending := 0
	for len(queue) > 0 || pending > 0 {
		var send chan<- string
		var next string
		if len(queue) > 0 {
			send = jobs
			next = queue[0]
		}

		select {
		case send <- next:
			queue = queue[1:]
			pending++
			p.submitted.Add(1)

		case r := <-results:
			pending--
			p.totalTime.Add(int64(r.Duration))
			switch {
			case r.Err == nil:
				p.completed.Add(1)
				if r.Module.Cached {
					p.cached.Add(1)
				}
				fetched[r.URL] = r.Module
				for _, request := range r.Module.Unit.ModuleRequestURLs() {
					dep := ResolveURL(request, r.URL)
					p.graph.AddDependency(r.URL, dep)
					enqueue(dep)
				}
			case errors.Is(r.Err, errors.ErrModuleNotFound):
				p.missing.Add(1)
				Logger().Debug("prefetch: no provider", zap.String("url", r.URL))
			default:
				p.failed.Add(1)
				failures = append(failures, r)
			}

		case <-ctx.Done():
			// Workers still inside a provider exit once it returns.
			close(jobs)
			return fetched, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	if len(failures) > 0 {
		sort.Slice(failures, func(i, j int) bool { return failures[i].URL < failures[j].URL })
		return fetched, fmt.Errorf("prefetch failed for %d module(s): %w", len(failures), failures[0].Err)
	}
	return fetched, nil
}

func (p *Prefetcher) worker(ctx context.Context, id int, jobs <-chan string, results chan<- PrefetchResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for url := range jobs {
		start := time.Now()
		mod, err := p.providers.Provide(url)
		r := PrefetchResult{URL: url, Module: mod, Err: err, Duration: time.Since(start), WorkerID: id}

		select {
		case results <- r:
		case <-ctx.Done():
			return
		}
	}
}

// Stats returns statistics accumulated over every Prefetch call.
func (p *Prefetcher) Stats() PrefetchStats {
	stats := PrefetchStats{
		WorkerCount: p.numWorkers,
		Submitted:   p.submitted.Load(),
		Completed:   p.completed.Load(),
		Cached:      p.cached.Load(),
		Missing:     p.missing.Load(),
		Failed:      p.failed.Load(),
		TotalTime:   time.Duration(p.totalTime.Load()),
	}
	if done := stats.Completed + stats.Missing + stats.Failed; done > 0 {
		stats.AverageTime = stats.TotalTime / time.Duration(done)
	}
	return stats
}
