package events

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// RawPage is the wire form of one events listing. Older endpoints return each
// event as an embedded JSON string under events_json.
type RawPage struct {
	Events        []json.RawMessage `json:"events,omitempty"`
	EventsJSON    []string          `json:"events_json,omitempty"`
	NextPageToken string            `json:"next_page_token,omitempty"`
	PrevPageToken string            `json:"prev_page_token,omitempty"`
}

type Page struct {
	Events        []Event
	NextPageToken string
	PrevPageToken string
}

// ParsePage decodes a full listing response body.
func ParsePage(body []byte) (*Page, error) {
	var raw RawPage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Wrap(err, "parse events page")
	}
	return raw.Decode()
}

func (r RawPage) Decode() (*Page, error) {
	p := &Page{
		Events:        make([]Event, 0, len(r.Events)+len(r.EventsJSON)),
		NextPageToken: r.NextPageToken,
		PrevPageToken: r.PrevPageToken,
	}
	for i, raw := range r.Events {
		ev, err := Parse(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "event %d", i)
		}
		p.Events = append(p.Events, ev)
	}
	for i, raw := range r.EventsJSON {
		ev, err := ParseString(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "events_json %d", i)
		}
		p.Events = append(p.Events, ev)
	}
	return p, nil
}

// GroupByType buckets events by variant. Every known type and TypeOther has a
// key, even when empty.
func GroupByType(evs []Event) map[Type][]TypedEvent {
	out := make(map[Type][]TypedEvent, len(KnownTypes)+1)
	for _, t := range KnownTypes {
		out[t] = []TypedEvent{}
	}
	out[TypeOther] = []TypedEvent{}
	for _, ev := range evs {
		te := Classify(ev)
		out[te.Kind()] = append(out[te.Kind()], te)
	}
	return out
}
