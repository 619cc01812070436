package events

import "sort"

// GraphFlow is one edge set of the dataflow graph: a flow reading its inputs
// and writing one dataset.
type GraphFlow struct {
	Name   string   `json:"name" yaml:"name"`
	Output string   `json:"output_dataset" yaml:"output_dataset"`
	Type   string   `json:"flow_type,omitempty" yaml:"flow_type,omitempty"`
	Inputs []string `json:"input_datasets,omitempty" yaml:"input_datasets,omitempty"`
}

// Graph is the dataflow graph of the most recent update that defined flows.
type Graph struct {
	UpdateID string      `json:"update_id,omitempty" yaml:"update_id,omitempty"`
	Flows    []GraphFlow `json:"flows" yaml:"flows"`
}

// Datasets lists every dataset the graph reads or writes, sorted.
func (g Graph) Datasets() []string {
	set := map[string]struct{}{}
	for _, f := range g.Flows {
		if f.Output != "" {
			set[f.Output] = struct{}{}
		}
		for _, in := range f.Inputs {
			set[in] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// BuildGraph assembles the graph from flow_definition events. Only the
// definitions of the newest defining update are used; a flow defined twice
// in that update keeps its last definition.
func BuildGraph(evs []Event) Graph {
	var defs []FlowDefinition
	var latest Event
	for _, e := range evs {
		fd, ok := Classify(e).(FlowDefinition)
		if !ok {
			continue
		}
		defs = append(defs, fd)
		if latest.Timestamp.IsZero() || !e.Timestamp.Before(latest.Timestamp) {
			latest = e
		}
	}
	g := Graph{UpdateID: latest.Origin.UpdateID, Flows: []GraphFlow{}}
	if len(defs) == 0 {
		return g
	}

	index := map[string]int{}
	for _, fd := range defs {
		if fd.Origin.UpdateID != g.UpdateID {
			continue
		}
		name := fd.Origin.FlowName
		if name == "" {
			name = fd.OutputDataset
		}
		f := GraphFlow{Name: name, Output: fd.OutputDataset, Type: fd.FlowType, Inputs: fd.InputDatasets}
		if i, ok := index[name]; ok {
			g.Flows[i] = f
			continue
		}
		index[name] = len(g.Flows)
		g.Flows = append(g.Flows, f)
	}
	sort.SliceStable(g.Flows, func(i, j int) bool { return g.Flows[i].Name < g.Flows[j].Name })
	return g
}
