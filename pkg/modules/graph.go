package modules

import (
	"sort"
	"sync"
)

// Graph records module request edges between URLs. It is safe for
// concurrent use.
type Graph struct {
	modules   map[string]bool     // Known modules
	depGraph  map[string][]string // Module -> requested modules, in request order
	depCounts map[string]int      // Module -> number of requesting modules
	depDepths map[string]int      // Memoized depths
	mutex     sync.RWMutex
}

// NewGraph creates an empty dependency graph.
func NewGraph() *Graph {
	return &Graph{
		modules:   make(map[string]bool),
		depGraph:  make(map[string][]string),
		depCounts: make(map[string]int),
		depDepths: make(map[string]int),
	}
}

// AddModule records url without any edges.
func (g *Graph) AddModule(url string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.modules[url] = true
}

// AddDependency records that from requests to. Duplicate edges are ignored.
func (g *Graph) AddDependency(from, to string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.modules[from] = true
	g.modules[to] = true
	for _, dep := range g.depGraph[from] {
		if dep == to {
			return
		}
	}
	g.depGraph[from] = append(g.depGraph[from], to)
	g.depCounts[to]++

	g.depDepths = make(map[string]int)
}

// Has reports whether url is known.
func (g *Graph) Has(url string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return g.modules[url]
}

// Dependencies returns the modules url requests, in request order.
func (g *Graph) Dependencies(url string) []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return append([]string(nil), g.depGraph[url]...)
}

// ImportCount returns how many modules request url.
func (g *Graph) ImportCount(url string) int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return g.depCounts[url]
}

// Modules returns every known URL, sorted.
func (g *Graph) Modules() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return g.sortedModules()
}

func (g *Graph) sortedModules() []string {
	urls := make([]string, 0, len(g.modules))
	for url := range g.modules {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// Depth returns the length of the longest request chain below url. Edges
// closing a cycle do not count.
func (g *Graph) Depth(url string) int {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return g.depth(url, make(map[string]bool))
}

func (g *Graph) depth(url string, onPath map[string]bool) int {
	root := len(onPath) == 0
	if d, ok := g.depDepths[url]; ok && root {
		return d
	}
	onPath[url] = true
	defer delete(onPath, url)

	deepest := 0
	for _, dep := range g.depGraph[url] {
		if onPath[dep] {
			continue
		}
		if d := g.depth(dep, onPath) + 1; d > deepest {
			deepest = d
		}
	}
	if root {
		g.depDepths[url] = deepest
	}
	return deepest
}

// TopologicalOrder lists every module after the modules it requests. Cycles
// are broken at the edge that would revisit a module still on the DFS path,
// which is the order module evaluation uses.
func (g *Graph) TopologicalOrder() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	order := make([]string, 0, len(g.modules))
	visited := make(map[string]bool, len(g.modules))
	var visit func(url string)
	visit = func(url string) {
		if visited[url] {
			return
		}
		visited[url] = true
		for _, dep := range g.depGraph[url] {
			visit(dep)
		}
		order = append(order, url)
	}
	for _, url := range g.sortedModules() {
		visit(url)
	}
	return order
}

// Cycles returns the modules that take part in at least one request cycle,
// sorted.
func (g *Graph) Cycles() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	// Tarjan's strongly connected components.
	index := 0
	indices := make(map[string]int)
	lowlink := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string
	var cyclic []string

	var strongConnect func(url string)
	strongConnect = func(url string) {
		indices[url] = index
		lowlink[url] = index
		index++
		stack = append(stack, url)
		onStack[url] = true

		selfLoop := false
		for _, dep := range g.depGraph[url] {
			if dep == url {
				selfLoop = true
			}
			if _, seen := indices[dep]; !seen {
				strongConnect(dep)
				lowlink[url] = min(lowlink[url], lowlink[dep])
			} else if onStack[dep] {
				lowlink[url] = min(lowlink[url], indices[dep])
			}
		}

		if lowlink[url] != indices[url] {
			return
		}
		var component []string
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			component = append(component, top)
			if top == url {
				break
			}
		}
		if len(component) > 1 || selfLoop {
			cyclic = append(cyclic, component...)
		}
	}

	for _, url := range g.sortedModules() {
		if _, seen := indices[url]; !seen {
			strongConnect(url)
		}
	}
	sort.Strings(cyclic)
	return cyclic
}

// GraphStats summarizes a dependency graph.
type GraphStats struct {
	TotalModules      int      // Known modules
	TotalDependencies int      // Request edges
	MaxDepth          int      // Longest acyclic request chain
	CircularDeps      []string // Modules on a request cycle
}

// Stats returns graph statistics.
func (g *Graph) Stats() GraphStats {
	stats := GraphStats{CircularDeps: g.Cycles()}
	for _, url := range g.Modules() {
		if d := g.Depth(url); d > stats.MaxDepth {
			stats.MaxDepth = d
		}
	}

	g.mutex.RLock()
	defer g.mutex.RUnlock()
	stats.TotalModules = len(g.modules)
	for _, deps := range g.depGraph {
		stats.TotalDependencies += len(deps)
	}
	return stats
}
