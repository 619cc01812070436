package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func flowDef(update, flow string, sec int, details string) Event {
	return Event{
		ID:        update + "/" + flow,
		Timestamp: time.Date(2024, 3, 1, 12, 0, sec, 0, time.UTC),
		Type:      TypeFlowDefinition,
		Origin:    Origin{UpdateID: update, FlowName: flow},
		Details:   []byte(details),
	}
}

func TestBuildGraph_UsesNewestUpdate(t *testing.T) {
	evs := []Event{
		flowDef("u1", "stale", 1, `{"flow_definition":{"output_dataset":"stale"}}`),
		flowDef("u2", "silver", 5, `{"flow_definition":{"output_dataset":"silver","flow_type":"COMPLETE","input_datasets":["bronze"]}}`),
		flowDef("u2", "bronze", 4, `{"flow_definition":{"output_dataset":"bronze","input_datasets":[{"name":"raw_files"}]}}`),
		{ID: "x", Type: TypeFlowProgress, Timestamp: time.Date(2024, 3, 1, 12, 0, 9, 0, time.UTC)},
	}

	g := BuildGraph(evs)
	require.Equal(t, "u2", g.UpdateID)
	require.Len(t, g.Flows, 2)
	require.Equal(t, GraphFlow{Name: "bronze", Output: "bronze", Inputs: []string{"raw_files"}}, g.Flows[0])
	require.Equal(t, GraphFlow{Name: "silver", Output: "silver", Type: "COMPLETE", Inputs: []string{"bronze"}}, g.Flows[1])
	require.Equal(t, []string{"bronze", "raw_files", "silver"}, g.Datasets())
}

func TestBuildGraph_NoDefinitions(t *testing.T) {
	g := BuildGraph(nil)
	require.Empty(t, g.UpdateID)
	require.NotNil(t, g.Flows)
	require.Empty(t, g.Flows)
}
