package tui

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Envelope is one bus message: the payload kind and its JSON body.
type Envelope struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Seal encodes payload under kind. A nil payload yields a bare kind.
func Seal(kind string, payload any) ([]byte, error) {
	if kind == "" {
		return nil, errors.New("envelope without kind")
	}
	env := Envelope{Kind: kind}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s payload", kind)
		}
		env.Payload = b
	}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s envelope", kind)
	}
	return b, nil
}

func OpenEnvelope(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, errors.Wrap(err, "decode envelope")
	}
	if env.Kind == "" {
		return Envelope{}, errors.New("envelope without kind")
	}
	return env, nil
}

func (e Envelope) Decode(out any) error {
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return errors.Wrapf(err, "decode %s payload", e.Kind)
	}
	return nil
}
