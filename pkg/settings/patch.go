package settings

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// Patch edits a settings document with dotted keys. Below "configuration."
// the rest of the key is taken verbatim, since configuration keys contain dots
// themselves ("pipelines.enzyme.enabled").
type Patch struct {
	Set   map[string]any `json:"set,omitempty"`
	Unset []string       `json:"unset,omitempty"`
}

// ParseAssignment splits "key=value". The value is read as JSON when it is
// valid JSON and as a plain string otherwise, so "true" and "5" keep their
// types while "dev" stays a string.
func ParseAssignment(s string) (string, any, error) {
	key, raw, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, errors.Errorf("expected key=value, got %q", s)
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return key, v, nil
	}
	return key, raw, nil
}

// Apply returns a patched copy of s. Unknown top-level keys are rejected.
func Apply(s *PipelineSettings, p Patch) (*PipelineSettings, error) {
	if s == nil {
		s = &PipelineSettings{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "marshal settings")
	}
	doc := map[string]any{}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, errors.Wrap(err, "decode settings")
	}

	for _, key := range p.Unset {
		if err := unsetDotted(doc, key); err != nil {
			return nil, err
		}
	}
	for key, value := range p.Set {
		if err := setDotted(doc, key, value); err != nil {
			return nil, err
		}
	}

	b, err = json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "marshal patched settings")
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var out PipelineSettings
	if err := dec.Decode(&out); err != nil {
		return nil, errors.Wrap(err, "apply settings patch")
	}
	return &out, nil
}

func splitKey(dotted string) []string {
	if rest, ok := strings.CutPrefix(dotted, "configuration."); ok && rest != "" {
		return []string{"configuration", rest}
	}
	raw := strings.Split(dotted, ".")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setDotted(doc map[string]any, dotted string, value any) error {
	parts := splitKey(dotted)
	if len(parts) == 0 {
		return errors.New("empty settings key")
	}
	if parts[0] == "configuration" && len(parts) == 2 {
		// configuration is a string map
		if _, isString := value.(string); !isString {
			b, _ := json.Marshal(value)
			value = string(b)
		}
	}

	current := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part]
		if !ok || next == nil {
			child := map[string]any{}
			current[part] = child
			current = child
			continue
		}
		asMap, ok := next.(map[string]any)
		if !ok {
			return errors.Errorf("cannot set %q: %q is not an object", dotted, part)
		}
		current = asMap
	}
	current[parts[len(parts)-1]] = value
	return nil
}

func unsetDotted(doc map[string]any, dotted string) error {
	parts := splitKey(dotted)
	if len(parts) == 0 {
		return errors.New("empty settings key")
	}
	current := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part]
		if !ok {
			return nil
		}
		asMap, ok := next.(map[string]any)
		if !ok {
			return errors.Errorf("cannot unset %q: %q is not an object", dotted, part)
		}
		current = asMap
	}
	delete(current, parts[len(parts)-1])
	return nil
}
