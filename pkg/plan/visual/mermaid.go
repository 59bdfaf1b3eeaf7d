// Package visual renders request graphs as Mermaid flowcharts for the
// plan command and for embedding in docs.
package visual

import (
	"fmt"
	"sort"
	"strings"

	"github.com/davidthor/shipctl/pkg/plan"
)

// MermaidOptions controls how a graph is rendered.
type MermaidOptions struct {
	// Direction is the flowchart direction: "TD" or "LR". Defaults to
	// "TD" if empty.
	Direction string

	// Title is an optional diagram title.
	Title string
}

// RenderMermaid generates a Mermaid flowchart from a request graph. The
// output is deterministic for a given graph.
func RenderMermaid(g *plan.Graph, opts MermaidOptions) (string, error) {
	if g == nil {
		return "", fmt.Errorf("graph is nil")
	}

	direction := opts.Direction
	if direction == "" {
		direction = "TD"
	}

	sorted, err := g.TopologicalSort()
	if err != nil {
		return "", fmt.Errorf("failed to sort graph: %w", err)
	}

	var b strings.Builder

	if opts.Title != "" {
		b.WriteString(fmt.Sprintf("---\ntitle: %s\n---\n", opts.Title))
	}
	b.WriteString(fmt.Sprintf("flowchart %s\n", direction))

	displayIDs := make(map[string]string, len(sorted))
	for _, req := range sorted {
		displayIDs[req.ID] = sanitizeMermaidID(req.ID)
	}

	for _, req := range sorted {
		label := fmt.Sprintf("%s/%s", req.Kind, req.Name)
		b.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", displayIDs[req.ID], escapeMermaidLabel(label)))
	}

	b.WriteString("\n")

	for _, req := range sorted {
		deps := make([]string, len(req.DependsOn))
		copy(deps, req.DependsOn)
		sort.Strings(deps)

		for _, depID := range deps {
			if depDID, ok := displayIDs[depID]; ok {
				b.WriteString(fmt.Sprintf("    %s --> %s\n", depDID, displayIDs[req.ID]))
			}
		}
	}

	return b.String(), nil
}

// sanitizeMermaidID converts a request ID like "app/kind/name" into a
// Mermaid-safe identifier.
func sanitizeMermaidID(id string) string {
	return strings.ReplaceAll(id, "/", "--")
}

func escapeMermaidLabel(s string) string {
	return strings.ReplaceAll(s, `"`, `#quot;`)
}
