// Package target computes, per link target, the transitive closure of
// contributing translation-unit outputs by walking library dependencies.
package target

import (
	"fmt"
	"slices"
	"sort"

	"recap/pkg/cdb"
)

// Graph expands link targets into their transitive object sets. Expansions
// are memoized, so repeated references cost O(1) after the first walk. The
// graph never mutates the linking database it was built from.
type Graph struct {
	targets map[string]cdb.Target
	memo    map[string][]string
}

// New builds a graph over the parsed linking database.
func New(targets map[string]cdb.Target) *Graph {
	return &Graph{
		targets: targets,
		memo:    make(map[string][]string, len(targets)),
	}
}

// Expand returns every translation-unit output the target transitively
// depends on: its own object list plus the expansion of each library
// dependency that is itself a known link target. Libraries absent from the
// linking database contribute nothing and are not an error. Cyclic library
// dependencies are reported rather than walked forever.
func (g *Graph) Expand(output string) ([]string, error) {
	return g.expand(output, make(map[string]bool))
}

func (g *Graph) expand(output string, visiting map[string]bool) ([]string, error) {
	if deps, ok := g.memo[output]; ok {
		return deps, nil
	}
	if visiting[output] {
		return nil, fmt.Errorf("cyclic link dependency through %s", output)
	}
	visiting[output] = true
	defer delete(visiting, output)

	t, ok := g.targets[output]
	if !ok {
		return nil, nil
	}
	deps := slices.Clone(t.Objects)
	for _, lib := range t.Libraries {
		if _, known := g.targets[lib]; !known {
			continue
		}
		sub, err := g.expand(lib, visiting)
		if err != nil {
			return nil, err
		}
		deps = append(deps, sub...)
	}
	g.memo[output] = deps
	return deps, nil
}

// All expands every target in the linking database, returning target output
// paths in sorted order alongside their dependency sets.
func (g *Graph) All() (map[string][]string, error) {
	all := make(map[string][]string, len(g.targets))
	outputs := make([]string, 0, len(g.targets))
	for out := range g.targets {
		outputs = append(outputs, out)
	}
	sort.Strings(outputs)
	for _, out := range outputs {
		deps, err := g.Expand(out)
		if err != nil {
			return nil, err
		}
		all[out] = deps
	}
	return all, nil
}
