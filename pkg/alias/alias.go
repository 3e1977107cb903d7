// Package alias collapses the rename chains observed during a build capture
// (compile -> generate assembly -> assemble -> archive/link handoffs) into
// one stable final name per original source file.
package alias

import (
	"encoding/json"
	"path/filepath"
	"slices"
	"strings"

	"recap/pkg/classify"
)

// Collector accumulates rename edges across one build capture. Archiver and
// linker outputs assign their full input list; internal-stage edges append
// one destination at a time.
type Collector struct {
	edges map[string][]string
	order []string
}

// NewCollector returns an empty edge collector.
func NewCollector() *Collector {
	return &Collector{edges: make(map[string][]string)}
}

// Append adds destinations to the edge list of src, keeping earlier ones.
func (c *Collector) Append(src string, dsts ...string) {
	if _, ok := c.edges[src]; !ok {
		c.order = append(c.order, src)
	}
	c.edges[src] = append(c.edges[src], dsts...)
}

// Assign replaces the edge list of src, as an archiver or linker output
// supersedes anything recorded for the same path.
func (c *Collector) Assign(src string, dsts []string) {
	if _, ok := c.edges[src]; !ok {
		c.order = append(c.order, src)
	}
	c.edges[src] = slices.Clone(dsts)
}

// Map is the simplified alias map. Source files (and other multi-destination
// keys) resolve to a chain of candidate names; every individually observed
// destination maps to its canonical spelling.
type Map struct {
	Chains map[string][]string
	Names  map[string]string
}

// Simplify resolves the accumulated edges into a final map. Destinations of
// compilable sources that are not object files are substituted with their own
// last recorded destination (one hop, matching the fixed number of toolchain
// stages). Destinations under the scratch area are rewritten to
// "<source>.<basename>" so the name is collision free and build independent;
// the scratch path itself then maps to the rewritten name. Keys that are
// assembler intermediates are dropped. Simplify does not mutate the
// collector, so repeated calls yield identical maps.
func (c *Collector) Simplify() *Map {
	edges := make(map[string][]string, len(c.edges))
	for k, v := range c.edges {
		edges[k] = slices.Clone(v)
	}
	m := &Map{
		Chains: make(map[string][]string),
		Names:  make(map[string]string),
	}
	for _, src := range c.order {
		switch {
		case classify.SourcePattern.MatchString(src):
			chain := make([]string, 0, len(edges[src]))
			for _, dst := range edges[src] {
				if !classify.ObjectPattern.MatchString(dst) {
					if next := edges[dst]; len(next) > 0 {
						edges[dst] = next[:len(next)-1]
						dst = next[len(next)-1]
					}
				}
				if strings.HasPrefix(dst, classify.ScratchPrefix) {
					stable := src + "." + filepath.Base(dst)
					m.Names[dst] = stable
					dst = stable
				} else {
					m.Names[dst] = dst
				}
				chain = append(chain, dst)
			}
			m.Chains[src] = chain
		case classify.AsmPattern.MatchString(src):
			// assembler intermediates carry no stable name of their own
		default:
			m.Chains[src] = slices.Clone(edges[src])
		}
	}
	return m
}

// Resolve returns the canonical name recorded for path.
func (m *Map) Resolve(path string) (string, bool) {
	name, ok := m.Names[path]
	return name, ok
}

// Candidates returns the resolved destination chain recorded for path.
func (m *Map) Candidates(path string) ([]string, bool) {
	chain, ok := m.Chains[path]
	return chain, ok
}

// Has reports whether path was observed at all during the capture.
func (m *Map) Has(path string) bool {
	if _, ok := m.Names[path]; ok {
		return true
	}
	_, ok := m.Chains[path]
	return ok
}

// MarshalJSON flattens the map into one object, chains as arrays and
// canonical names as strings, for the persisted name mapping file.
func (m *Map) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Chains)+len(m.Names))
	for k, v := range m.Names {
		out[k] = v
	}
	for k, v := range m.Chains {
		out[k] = v
	}
	return json.Marshal(out)
}
