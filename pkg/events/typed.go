package events

import (
	"encoding/json"
	"strconv"
	"strings"
)

// TypedEvent is the closed set of event variants. The set is sealed by the
// unexported marker method; Classify is the only constructor.
type TypedEvent interface {
	Kind() Type
	Base() Event
	isTypedEvent()
}

type FlowProgress struct {
	Event
	FlowName string
	Status   string
}

type CreateUpdate struct {
	Event
	Cause       string
	FullRefresh bool
}

type UpdateProgress struct {
	Event
	State string
}

type FlowDefinition struct {
	Event
	OutputDataset string
	FlowType      string
	InputDatasets []string
}

type DatasetDefinition struct {
	Event
	DatasetType string
}

type GraphCreated struct {
	Event
}

type MaintenanceProgress struct {
	Event
	State string
}

type Other struct {
	Event
}

func (FlowProgress) Kind() Type        { return TypeFlowProgress }
func (CreateUpdate) Kind() Type        { return TypeCreateUpdate }
func (UpdateProgress) Kind() Type      { return TypeUpdateProgress }
func (FlowDefinition) Kind() Type      { return TypeFlowDefinition }
func (DatasetDefinition) Kind() Type   { return TypeDatasetDefinition }
func (GraphCreated) Kind() Type        { return TypeGraphCreated }
func (MaintenanceProgress) Kind() Type { return TypeMaintenanceProgress }
func (Other) Kind() Type               { return TypeOther }

func (e FlowProgress) Base() Event        { return e.Event }
func (e CreateUpdate) Base() Event        { return e.Event }
func (e UpdateProgress) Base() Event      { return e.Event }
func (e FlowDefinition) Base() Event      { return e.Event }
func (e DatasetDefinition) Base() Event   { return e.Event }
func (e GraphCreated) Base() Event        { return e.Event }
func (e MaintenanceProgress) Base() Event { return e.Event }
func (e Other) Base() Event               { return e.Event }

func (FlowProgress) isTypedEvent()        {}
func (CreateUpdate) isTypedEvent()        {}
func (UpdateProgress) isTypedEvent()      {}
func (FlowDefinition) isTypedEvent()      {}
func (DatasetDefinition) isTypedEvent()   {}
func (GraphCreated) isTypedEvent()        {}
func (MaintenanceProgress) isTypedEvent() {}
func (Other) isTypedEvent()               {}

// Classify maps an event onto its variant. It is total: unknown or missing
// types become Other, and undecodable details leave the variant fields empty.
func Classify(e Event) TypedEvent {
	switch e.Type {
	case TypeFlowProgress:
		var d struct {
			FlowProgress struct {
				Status string `json:"status"`
			} `json:"flow_progress"`
		}
		decodeDetails(e.Details, &d)
		return FlowProgress{Event: e, FlowName: e.Origin.FlowName, Status: strings.ToUpper(d.FlowProgress.Status)}
	case TypeCreateUpdate:
		var d struct {
			CreateUpdate struct {
				Cause       string   `json:"cause"`
				FullRefresh flexBool `json:"full_refresh"`
			} `json:"create_update"`
		}
		decodeDetails(e.Details, &d)
		return CreateUpdate{Event: e, Cause: d.CreateUpdate.Cause, FullRefresh: bool(d.CreateUpdate.FullRefresh)}
	case TypeUpdateProgress:
		var d struct {
			UpdateProgress struct {
				State string `json:"state"`
			} `json:"update_progress"`
		}
		decodeDetails(e.Details, &d)
		return UpdateProgress{Event: e, State: strings.ToUpper(d.UpdateProgress.State)}
	case TypeFlowDefinition:
		var d struct {
			FlowDefinition struct {
				OutputDataset string       `json:"output_dataset"`
				FlowType      string       `json:"flow_type"`
				InputDatasets datasetNames `json:"input_datasets"`
			} `json:"flow_definition"`
		}
		decodeDetails(e.Details, &d)
		return FlowDefinition{
			Event:         e,
			OutputDataset: d.FlowDefinition.OutputDataset,
			FlowType:      d.FlowDefinition.FlowType,
			InputDatasets: []string(d.FlowDefinition.InputDatasets),
		}
	case TypeDatasetDefinition:
		var d struct {
			DatasetDefinition struct {
				DatasetType string `json:"dataset_type"`
			} `json:"dataset_definition"`
		}
		decodeDetails(e.Details, &d)
		return DatasetDefinition{Event: e, DatasetType: d.DatasetDefinition.DatasetType}
	case TypeGraphCreated:
		return GraphCreated{Event: e}
	case TypeMaintenanceProgress:
		var d struct {
			MaintenanceProgress struct {
				State string `json:"state"`
			} `json:"maintenance_progress"`
		}
		decodeDetails(e.Details, &d)
		return MaintenanceProgress{Event: e, State: strings.ToUpper(d.MaintenanceProgress.State)}
	default:
		return Other{Event: e}
	}
}

func decodeDetails(raw json.RawMessage, into any) {
	if !isPopulated(raw) {
		return
	}
	_ = json.Unmarshal(raw, into)
}

// flexBool decodes both JSON booleans and the quoted "true"/"false" strings the
// feed emits inside update configs.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = flexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	*b = flexBool(parsed)
	return nil
}

// datasetNames accepts input dataset lists given as plain names or as objects
// carrying a name.
type datasetNames []string

func (n *datasetNames) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(r, &obj); err == nil && obj.Name != "" {
			out = append(out, obj.Name)
		}
	}
	*n = out
	return nil
}
