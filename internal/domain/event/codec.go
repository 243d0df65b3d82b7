package event

import (
	"encoding/json"
	"fmt"
)

// Encode serializes the event payload for storage.
func Encode(e Event) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.EventType(), err)
	}
	return b, nil
}

// Redacted returns e without password hashes, for payloads leaving the service.
func Redacted(e Event) Event {
	switch ev := e.(type) {
	case AccountCreated:
		ev.PasswordHash = ""
		return ev
	case PasswordChanged:
		ev.PasswordHash = ""
		return ev
	}
	return e
}

// Decode rebuilds an event from its stored type name and payload.
func Decode(t Type, payload []byte) (Event, error) {
	var (
		e   Event
		err error
	)
	switch t {
	case TypeAccountCreated:
		var ev AccountCreated
		err = json.Unmarshal(payload, &ev)
		e = ev
	case TypeAccountUpdated:
		var ev AccountUpdated
		err = json.Unmarshal(payload, &ev)
		e = ev
	case TypeAccountDeleted:
		var ev AccountDeleted
		err = json.Unmarshal(payload, &ev)
		e = ev
	case TypePasswordChanged:
		var ev PasswordChanged
		err = json.Unmarshal(payload, &ev)
		e = ev
	case TypeAccountApproved:
		var ev AccountApproved
		err = json.Unmarshal(payload, &ev)
		e = ev
	case TypeAccountBlocked:
		var ev AccountBlocked
		err = json.Unmarshal(payload, &ev)
		e = ev
	case TypeRolesGranted:
		var ev RolesGranted
		err = json.Unmarshal(payload, &ev)
		e = ev
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, err)
	}
	return e, nil
}
