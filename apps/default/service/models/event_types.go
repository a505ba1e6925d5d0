package models

import (
	"fmt"
	"sort"

	"github.com/antinvestor/service-signal/apps/default/service"
)

// EventType is one of the kinds of protocol notifications the engine emits.
// The set is closed; the dispatch tables in the normalizer and the connection
// registry switch exhaustively over it.
type EventType string

const (
	EventTypeMessage       EventType = "message"
	EventTypeConfiguration EventType = "configuration"
	EventTypeGroup         EventType = "group"
	EventTypeContact       EventType = "contact"
	EventTypeVerified      EventType = "verified"
	EventTypeSent          EventType = "sent"
	EventTypeDelivery      EventType = "delivery"
	EventTypeRead          EventType = "read"
	EventTypeError         EventType = "error"
	EventTypeClose         EventType = "close"
	EventTypeReconnect     EventType = "reconnect"
)

// AllEventTypes lists every subscribable event type in canonical order.
//
//nolint:gochecknoglobals // closed enumeration, never mutated
var AllEventTypes = []EventType{
	EventTypeClose,
	EventTypeConfiguration,
	EventTypeContact,
	EventTypeDelivery,
	EventTypeError,
	EventTypeGroup,
	EventTypeMessage,
	EventTypeRead,
	EventTypeReconnect,
	EventTypeSent,
	EventTypeVerified,
}

// Valid reports whether et is a member of the closed enumeration.
func (et EventType) Valid() bool {
	switch et {
	case EventTypeMessage, EventTypeConfiguration, EventTypeGroup,
		EventTypeContact, EventTypeVerified, EventTypeSent,
		EventTypeDelivery, EventTypeRead, EventTypeError,
		EventTypeClose, EventTypeReconnect:
		return true
	default:
		return false
	}
}

// ParseEventTypes validates raw event type names and returns them
// de-duplicated and sorted.
func ParseEventTypes(names []string) ([]EventType, error) {
	types := make([]EventType, 0, len(names))
	for _, name := range names {
		et := EventType(name)
		if !et.Valid() {
			return nil, fmt.Errorf("%w: %s", service.ErrIllegalEventType, name)
		}
		types = append(types, et)
	}
	return NormalizeEventTypes(types), nil
}

// NormalizeEventTypes de-duplicates and sorts the given event types.
func NormalizeEventTypes(types []EventType) []EventType {
	seen := make(map[EventType]bool, len(types))
	out := make([]EventType, 0, len(types))
	for _, et := range types {
		if seen[et] {
			continue
		}
		seen[et] = true
		out = append(out, et)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
