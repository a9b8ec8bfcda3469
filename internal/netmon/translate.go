// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netmon

import (
	"fmt"

	"grimm.is/netcapture/internal/ebpf/types"
	"grimm.is/netcapture/internal/errors"
	"grimm.is/netcapture/internal/event"
)

// TranslationError reports a record that decoded but cannot be turned
// into a payload. The event is dropped; the pipeline continues.
type TranslationError struct {
	Kind event.Kind
	Err  error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("failed to translate %s event: %v", e.Kind, e.Err)
}

func (e *TranslationError) Unwrap() error {
	return e.Err
}

// Translate maps a captured record onto the payload taxonomy. Send and
// Receive fail with a *TranslationError when their data reference does not
// fit the record buffer; the payload is still returned alongside the error
// so Len can be inspected, but it must not be delivered. Every other
// variant always succeeds.
func Translate(ev *types.Event) (event.Payload, error) {
	switch v := ev.Payload.(type) {
	case types.Bind:
		return event.Bind{Address: ToHost(v.Addr), IsTCP: v.Proto == types.ProtoTCP}, nil

	case types.Listen:
		return event.Listen{Address: ToHost(v.Addr)}, nil

	case types.Connect:
		return event.Connect{Destination: ToHost(v.Dst), IsTCP: v.Proto == types.ProtoTCP}, nil

	case types.Accept:
		return event.Accept{Source: ToHost(v.Src), Destination: ToHost(v.Dst)}, nil

	case types.Send:
		p := event.Send{
			Source:      ToHost(v.Src),
			Destination: ToHost(v.Dst),
			Len:         int(v.DataLen),
			IsTCP:       v.Proto == types.ProtoTCP,
		}
		return p, resolve(event.KindSend, v.Data, ev.Buffer)

	case types.Receive:
		p := event.Receive{
			Source:      ToHost(v.Src),
			Destination: ToHost(v.Dst),
			Len:         int(v.DataLen),
			IsTCP:       v.Proto == types.ProtoTCP,
		}
		return p, resolve(event.KindReceive, v.Data, ev.Buffer)

	case types.Close:
		return event.Close{Source: ToHost(v.Src), Destination: ToHost(v.Dst)}, nil
	}

	return nil, &TranslationError{
		Err: errors.Errorf(errors.KindInternal, "unsupported event %T", ev.Payload),
	}
}

// resolve checks the data reference. Payloads only report lengths, so the
// bytes themselves are not kept.
func resolve(kind event.Kind, idx types.BufferIndex, buf []byte) error {
	if _, err := idx.Resolve(buf); err != nil {
		return &TranslationError{
			Kind: kind,
			Err:  errors.Wrap(err, errors.KindMalformed, "data buffer unavailable"),
		}
	}
	return nil
}
