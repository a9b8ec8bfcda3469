// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope carries one payload to the distribution layer.
type Envelope struct {
	ID        uuid.UUID
	Module    string
	Interface string
	Timestamp time.Time
	// Pid is the process that produced the kernel record.
	Pid     int32
	Payload Payload
}

// NewEnvelope stamps a payload with a fresh id.
func NewEnvelope(module, iface string, ts time.Time, pid int32, p Payload) Envelope {
	return Envelope{
		ID:        uuid.New(),
		Module:    module,
		Interface: iface,
		Timestamp: ts,
		Pid:       pid,
		Payload:   p,
	}
}

type envelopeJSON struct {
	ID        uuid.UUID       `json:"id"`
	Module    string          `json:"module"`
	Interface string          `json:"interface"`
	Timestamp time.Time       `json:"timestamp"`
	Pid       int32           `json:"pid"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
}

// MarshalJSON flattens the payload arm under "kind" and "payload".
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("envelope %s has no payload", e.ID)
	}
	body, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelopeJSON{
		ID:        e.ID,
		Module:    e.Module,
		Interface: e.Interface,
		Timestamp: e.Timestamp,
		Pid:       e.Pid,
		Kind:      e.Payload.Kind(),
		Payload:   body,
	})
}

// UnmarshalJSON restores the concrete payload arm from "kind".
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw envelopeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var (
		p   Payload
		err error
	)
	switch raw.Kind {
	case KindBind:
		p, err = decodeArm[Bind](raw.Payload)
	case KindListen:
		p, err = decodeArm[Listen](raw.Payload)
	case KindConnect:
		p, err = decodeArm[Connect](raw.Payload)
	case KindAccept:
		p, err = decodeArm[Accept](raw.Payload)
	case KindSend:
		p, err = decodeArm[Send](raw.Payload)
	case KindReceive:
		p, err = decodeArm[Receive](raw.Payload)
	case KindClose:
		p, err = decodeArm[Close](raw.Payload)
	default:
		return fmt.Errorf("unknown payload kind %q", raw.Kind)
	}
	if err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", raw.Kind, err)
	}

	*e = Envelope{
		ID:        raw.ID,
		Module:    raw.Module,
		Interface: raw.Interface,
		Timestamp: raw.Timestamp,
		Pid:       raw.Pid,
		Payload:   p,
	}
	return nil
}

func decodeArm[T Payload](data []byte) (Payload, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
