// Package protocol defines the contract this service holds against the
// external Signal protocol engine. The engine owns key exchange, encryption
// and session state; this service only opens stores, connects handles and
// subscribes to events.
package protocol

import (
	"context"

	"github.com/antinvestor/service-signal/apps/default/service/models"
)

// Engine is the connect/send/receive/close surface of the protocol
// implementation. All calls suspend on network or persistence I/O.
type Engine interface {
	// OpenStore opens the persistence-backed protocol store scoped to one
	// account and loads any persisted protocol state.
	OpenStore(ctx context.Context, clientID, tel string) (Store, error)

	ConnectSender(ctx context.Context, store Store) (Sender, error)
	ConnectReceiver(ctx context.Context, store Store) (Receiver, error)
}

// Store holds persisted protocol state for one account. The engine reads and
// writes opaque records; the keys and their meaning belong to the engine.
type Store interface {
	Load(ctx context.Context, recordType, id string) (map[string]any, bool, error)
	Save(ctx context.Context, recordType, id string, record map[string]any) error
	Delete(ctx context.Context, recordType, id string) error
}

// Sender is the outbound handle of a live connection.
type Sender interface {
	Send(ctx context.Context, recipient string, message OutgoingMessage) error
}

// OutgoingMessage is a plaintext message handed to the engine for encryption
// and delivery.
type OutgoingMessage struct {
	Body        string
	Attachments []models.Attachment
}

// Receiver is the inbound handle of a live connection. Events are delivered
// to subscribed handlers in the order the engine emits them.
type Receiver interface {
	// Subscribe registers a handler for one event type and returns the token
	// needed to undo exactly that registration.
	Subscribe(eventType models.EventType, handler Handler) Subscription

	Close() error
}

// Subscription is the token returned at subscribe time. Cancelling it
// removes the one registration it stands for; structurally equal handlers
// registered separately keep their own tokens.
type Subscription interface {
	Cancel()
}

// Handler consumes one event. Handlers for the same receiver never run in
// parallel with each other.
type Handler func(ctx context.Context, event Event)

// Event is one protocol notification. Ack marks it handled with the engine;
// an acked event is never redelivered regardless of what the handler did
// with it.
type Event interface {
	Type() models.EventType
	Data() any
	Ack()
}
