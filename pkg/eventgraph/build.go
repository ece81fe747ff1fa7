package eventgraph

import (
	"fmt"

	"github.com/dd0wney/stormcheck/pkg/corpus"
	"github.com/dd0wney/stormcheck/pkg/fbt"
)

// Stats describes what Build did with the declared wiring.
type Stats struct {
	WiringEntries int
	// InterfaceWires target the enclosing block's own outputs; they add no edge.
	InterfaceWires int
	Unresolved     int
}

// Build resolves instance-level wiring into type-level edges.
//
// Every definition becomes a node. For each wiring entry whose destination
// is an instance event, the instance is looked up in the same definition and
// an edge definition -> instance type is added. Destinations on the block's
// own interface produce no edge. Unknown instances and instance types that
// are not part of the corpus drop the edge and yield an UNRESOLVED_REFERENCE
// warning; Build never fails. Runs in O(total wiring entries).
func Build(defs []*fbt.BlockDefinition) (*Graph, []corpus.Warning, Stats) {
	var stats Stats
	var warnings []corpus.Warning

	b := newBuilder()
	for _, def := range defs {
		b.addNode(def.TypeName)
	}
	b.freeze()

	for _, def := range defs {
		instances := make(map[string]string, len(def.Instances))
		for _, inst := range def.Instances {
			instances[inst.Name] = inst.Type
		}

		for _, wire := range def.Wiring {
			stats.WiringEntries++
			dst := wire.Destination
			if dst.IsInterface() {
				stats.InterfaceWires++
				continue
			}

			typ, ok := instances[dst.Instance]
			if !ok {
				stats.Unresolved++
				warnings = append(warnings, unresolved(def,
					fmt.Sprintf("wire %s -> %s targets undeclared instance %q", wire.Source, dst, dst.Instance)))
				continue
			}
			if _, known := b.g.index[typ]; !known {
				stats.Unresolved++
				warnings = append(warnings, unresolved(def,
					fmt.Sprintf("wire %s -> %s targets instance of type %s, which is not in the corpus", wire.Source, dst, typ)))
				continue
			}
			b.addEdge(def.TypeName, typ)
		}
	}

	corpus.SortWarnings(warnings)
	return b.finish(), warnings, stats
}

func unresolved(def *fbt.BlockDefinition, msg string) corpus.Warning {
	return corpus.Warning{
		Kind:    corpus.WarnUnresolvedReference,
		Path:    def.Path,
		Subject: def.TypeName,
		Message: msg,
	}
}
