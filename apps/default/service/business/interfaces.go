package business

import (
	"context"

	"github.com/antinvestor/service-signal/apps/default/service/models"
	"github.com/antinvestor/service-signal/apps/default/service/protocol"
)

// ConnectionRegistry manages the live messaging connections of all
// registered accounts. One connection exists per (clientID, tel) pair.
type ConnectionRegistry interface {
	// Connect tears down any existing connection for the account and
	// establishes a fresh one subscribed to the account's event types.
	Connect(ctx context.Context, account *models.Account) (*Connection, error)

	// Disconnect closes and removes the connection for the account.
	// Disconnecting an account with no live connection does nothing.
	Disconnect(ctx context.Context, clientID, tel string) error

	// UpdateEvents reconciles a live connection's subscriptions against the
	// account's desired event types. No connection means nothing to do.
	UpdateEvents(ctx context.Context, account *models.Account) error

	// GetConnection returns the live connection for the pair, if any.
	GetConnection(clientID, tel string) (*Connection, bool)

	// GetOrCreateConnection returns the live connection for the account,
	// establishing one if necessary.
	GetOrCreateConnection(ctx context.Context, account *models.Account) (*Connection, error)

	// StartUp connects every account marked as device-registered. The first
	// failing account aborts the whole sequence.
	StartUp(ctx context.Context) error

	// ShutDown disconnects every live connection.
	ShutDown(ctx context.Context)
}

// Dispatcher forwards one engine event to the owning client's webhook
// endpoint and acknowledges it with the engine once the delivery attempt
// has run its course.
type Dispatcher interface {
	Dispatch(ctx context.Context, clientID, tel string, event protocol.Event)
}

// MessageBusiness defines the business logic for outgoing messages.
type MessageBusiness interface {
	// SendMessage pushes a plaintext message through the account's live
	// connection, establishing one if necessary.
	SendMessage(ctx context.Context, account *models.Account, recipient string, message protocol.OutgoingMessage) error
}
