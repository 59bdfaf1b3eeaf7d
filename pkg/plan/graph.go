package plan

import (
	"fmt"
	"sort"
)

// Graph is the dependency graph of resource requests for one deployment
// operation. The dependency set must form a DAG.
type Graph struct {
	// All requests in the graph
	Requests map[string]*Request

	// App is the service name the graph was planned for
	App string

	// Region the deployment targets
	Region string

	// Insertion order, kept so listings are stable
	order []string
}

// NewGraph creates a new empty graph.
func NewGraph(app, region string) *Graph {
	return &Graph{
		Requests: make(map[string]*Request),
		App:      app,
		Region:   region,
	}
}

// Add adds a request to the graph.
func (g *Graph) Add(req *Request) error {
	if _, exists := g.Requests[req.ID]; exists {
		return fmt.Errorf("request %s already exists", req.ID)
	}
	g.Requests[req.ID] = req
	g.order = append(g.order, req.ID)
	return nil
}

// Get returns a request by ID.
func (g *Graph) Get(id string) *Request {
	return g.Requests[id]
}

// Len returns the number of requests in the graph.
func (g *Graph) Len() int {
	return len(g.Requests)
}

// AddEdge adds a dependency edge from dependent to dependency.
func (g *Graph) AddEdge(dependentID, dependencyID string) error {
	dependent := g.Get(dependentID)
	if dependent == nil {
		return fmt.Errorf("dependent request %s not found", dependentID)
	}

	dependency := g.Get(dependencyID)
	if dependency == nil {
		return fmt.Errorf("dependency request %s not found", dependencyID)
	}

	dependent.AddDependency(dependencyID)
	dependency.AddDependent(dependentID)

	return nil
}

// List returns all requests in insertion order.
func (g *Graph) List() []*Request {
	result := make([]*Request, 0, len(g.order))
	for _, id := range g.order {
		result = append(result, g.Requests[id])
	}
	return result
}

// ByKind returns all requests of a specific kind, in insertion order.
func (g *Graph) ByKind(kind Kind) []*Request {
	var result []*Request
	for _, req := range g.List() {
		if req.Kind == kind {
			result = append(result, req)
		}
	}
	return result
}

// TopologicalSort returns requests in topological order (dependencies
// first) using Kahn's algorithm. Ties among independent requests carry
// no defined ordering beyond determinism of the sort.
func (g *Graph) TopologicalSort() ([]*Request, error) {
	inDegree := make(map[string]int)
	for id := range g.Requests {
		inDegree[id] = len(g.Requests[id].DependsOn)
	}

	// Start with requests that have no dependencies
	var queue []string
	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}

	// Sort queue for deterministic order
	sort.Strings(queue)

	var result []*Request
	for len(queue) > 0 {
		// Pop first element
		id := queue[0]
		queue = queue[1:]

		req := g.Requests[id]
		result = append(result, req)

		// Reduce in-degree of dependents
		for _, dependentID := range req.DependedOnBy {
			inDegree[dependentID]--
			if inDegree[dependentID] == 0 {
				queue = append(queue, dependentID)
				// Re-sort for determinism
				sort.Strings(queue)
			}
		}
	}

	// Check for cycles
	if len(result) != len(g.Requests) {
		processed := make(map[string]bool)
		for _, r := range result {
			processed[r.ID] = true
		}

		var cycleIDs []string
		for id := range g.Requests {
			if !processed[id] {
				cycleIDs = append(cycleIDs, id)
			}
		}
		sort.Strings(cycleIDs)

		var details string
		for _, id := range cycleIDs {
			req := g.Requests[id]
			if len(req.DependsOn) > 0 {
				details += fmt.Sprintf("\n  %s depends on: %v", id, req.DependsOn)
			}
		}

		return nil, fmt.Errorf("dependency cycle detected involving %d requests: %v%s",
			len(cycleIDs), cycleIDs, details)
	}

	return result, nil
}

// AllCompleted returns true if every request completed or was skipped.
func (g *Graph) AllCompleted() bool {
	for _, req := range g.Requests {
		if req.State != StateCompleted && req.State != StateSkipped {
			return false
		}
	}
	return true
}

// HasFailed returns true if any request has failed.
func (g *Graph) HasFailed() bool {
	for _, req := range g.Requests {
		if req.State == StateFailed {
			return true
		}
	}
	return false
}
