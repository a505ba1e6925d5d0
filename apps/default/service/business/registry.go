package business

import (
	"context"
	"fmt"
	"sync"

	"github.com/pitabwire/frame"
	"github.com/pitabwire/util"

	"github.com/antinvestor/service-signal/apps/default/service"
	"github.com/antinvestor/service-signal/apps/default/service/models"
	"github.com/antinvestor/service-signal/apps/default/service/protocol"
	"github.com/antinvestor/service-signal/apps/default/service/repository"
	"github.com/antinvestor/service-signal/internal/telemetry"
)

// Connection is one live messaging connection, owned by the registry and
// keyed by clientID/tel.
type Connection struct {
	ClientID string
	Tel      string

	sender   protocol.Sender
	receiver protocol.Receiver

	mu         sync.Mutex
	listeners  map[models.EventType]protocol.Subscription
	errorWatch protocol.Subscription
}

// Send pushes an outgoing message through this connection.
func (c *Connection) Send(ctx context.Context, recipient string, message protocol.OutgoingMessage) error {
	return c.sender.Send(ctx, recipient, message)
}

// EventTypes returns the event types this connection currently forwards.
func (c *Connection) EventTypes() []models.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()

	types := make([]models.EventType, 0, len(c.listeners))
	for eventType := range c.listeners {
		types = append(types, eventType)
	}
	return models.NormalizeEventTypes(types)
}

// syncListeners reconciles the live subscriptions against the desired event
// types. Subscriptions already in place are left untouched so their tokens
// stay valid.
func (c *Connection) syncListeners(desired []models.EventType, subscribe func(models.EventType) protocol.Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wanted := make(map[models.EventType]bool, len(desired))
	for _, eventType := range desired {
		wanted[eventType] = true
		if _, ok := c.listeners[eventType]; !ok {
			c.listeners[eventType] = subscribe(eventType)
		}
	}

	for eventType, sub := range c.listeners {
		if !wanted[eventType] {
			sub.Cancel()
			delete(c.listeners, eventType)
		}
	}
}

// teardown cancels every subscription and closes the receiver.
func (c *Connection) teardown(ctx context.Context) {
	c.mu.Lock()
	for eventType, sub := range c.listeners {
		sub.Cancel()
		delete(c.listeners, eventType)
	}
	if c.errorWatch != nil {
		c.errorWatch.Cancel()
		c.errorWatch = nil
	}
	c.mu.Unlock()

	if err := c.receiver.Close(); err != nil {
		util.Log(ctx).WithError(err).WithFields(map[string]any{
			"client_id": c.ClientID,
			"tel":       c.Tel,
		}).Error("failed to close receiver")
	}
}

type connectionRegistry struct {
	service     *frame.Service
	engine      protocol.Engine
	accountRepo repository.AccountRepository
	dispatcher  Dispatcher

	mu          sync.Mutex
	connections map[string]*Connection
}

// NewConnectionRegistry creates a registry over the given protocol engine.
// Incoming events on every connection are handed to the dispatcher.
func NewConnectionRegistry(
	svc *frame.Service,
	engine protocol.Engine,
	accountRepo repository.AccountRepository,
	dispatcher Dispatcher,
) ConnectionRegistry {
	return &connectionRegistry{
		service:     svc,
		engine:      engine,
		accountRepo: accountRepo,
		dispatcher:  dispatcher,
		connections: make(map[string]*Connection),
	}
}

func (cr *connectionRegistry) Connect(ctx context.Context, account *models.Account) (*Connection, error) {
	if account == nil || account.ClientID == "" {
		return nil, service.ErrUnspecifiedID
	}
	if account.Tel == "" {
		return nil, service.ErrAccountTelRequired
	}

	key := account.Key()

	// Remove any previous holder of the slot before its teardown suspends,
	// so a half-closed connection is never observable through the registry.
	cr.mu.Lock()
	previous := cr.connections[key]
	delete(cr.connections, key)
	cr.mu.Unlock()

	if previous != nil {
		previous.teardown(ctx)
		telemetry.ConnectionsReplacedCounter.Add(ctx, 1)
		util.Log(ctx).WithFields(map[string]any{
			"client_id": account.ClientID,
			"tel":       account.Tel,
		}).Debug("replaced existing connection")
	}

	conn, err := cr.establish(ctx, account)
	if err != nil {
		return nil, err
	}

	cr.mu.Lock()
	displaced := cr.connections[key]
	cr.connections[key] = conn
	cr.mu.Unlock()

	// A concurrent Connect for the same account may have won the slot in
	// the meantime. Newest connection wins; the loser is torn down.
	if displaced != nil {
		displaced.teardown(ctx)
		telemetry.ConnectionsReplacedCounter.Add(ctx, 1)
	}

	telemetry.ConnectionsOpenedCounter.Add(ctx, 1)
	util.Log(ctx).WithFields(map[string]any{
		"client_id":   account.ClientID,
		"tel":         account.Tel,
		"event_types": account.Events,
	}).Info("connection established")

	return conn, nil
}

// establish opens the protocol store and both connection handles, then
// subscribes the account's event types.
func (cr *connectionRegistry) establish(ctx context.Context, account *models.Account) (*Connection, error) {
	store, err := cr.engine.OpenStore(ctx, account.ClientID, account.Tel)
	if err != nil {
		return nil, fmt.Errorf("failed to open protocol store: %w", err)
	}

	sender, err := cr.engine.ConnectSender(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("failed to connect sender: %w", err)
	}

	receiver, err := cr.engine.ConnectReceiver(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("failed to connect receiver: %w", err)
	}

	conn := &Connection{
		ClientID:  account.ClientID,
		Tel:       account.Tel,
		sender:    sender,
		receiver:  receiver,
		listeners: make(map[models.EventType]protocol.Subscription),
	}

	// Engine errors are always watched for diagnostics, independent of
	// whether the client asked for error events.
	conn.errorWatch = receiver.Subscribe(models.EventTypeError, func(ctx context.Context, event protocol.Event) {
		util.Log(ctx).WithFields(map[string]any{
			"client_id": conn.ClientID,
			"tel":       conn.Tel,
			"error":     models.ReduceError(event.Data()),
		}).Error("engine reported an error event")
	})

	conn.syncListeners(account.EventTypes(), cr.subscriber(conn))

	return conn, nil
}

// subscriber returns the subscribe function used for a connection's webhook
// forwarding listeners.
func (cr *connectionRegistry) subscriber(conn *Connection) func(models.EventType) protocol.Subscription {
	return func(eventType models.EventType) protocol.Subscription {
		return conn.receiver.Subscribe(eventType, func(ctx context.Context, event protocol.Event) {
			telemetry.EventsReceivedCounter.Add(ctx, 1)
			cr.dispatcher.Dispatch(ctx, conn.ClientID, conn.Tel, event)
		})
	}
}

func (cr *connectionRegistry) Disconnect(ctx context.Context, clientID, tel string) error {
	key := clientID + "/" + tel

	cr.mu.Lock()
	conn, ok := cr.connections[key]
	delete(cr.connections, key)
	cr.mu.Unlock()

	if !ok {
		return nil
	}

	conn.teardown(ctx)
	telemetry.ConnectionsClosedCounter.Add(ctx, 1)
	util.Log(ctx).WithFields(map[string]any{
		"client_id": clientID,
		"tel":       tel,
	}).Info("connection closed")

	return nil
}

func (cr *connectionRegistry) UpdateEvents(ctx context.Context, account *models.Account) error {
	if account == nil || account.ClientID == "" {
		return service.ErrUnspecifiedID
	}

	conn, ok := cr.GetConnection(account.ClientID, account.Tel)
	if !ok {
		// Nothing live to reconcile; the account record already carries the
		// new event types for the next connect.
		return nil
	}

	conn.syncListeners(account.EventTypes(), cr.subscriber(conn))

	util.Log(ctx).WithFields(map[string]any{
		"client_id":   account.ClientID,
		"tel":         account.Tel,
		"event_types": account.Events,
	}).Debug("connection subscriptions reconciled")

	return nil
}

func (cr *connectionRegistry) GetConnection(clientID, tel string) (*Connection, bool) {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	conn, ok := cr.connections[clientID+"/"+tel]
	return conn, ok
}

func (cr *connectionRegistry) GetOrCreateConnection(ctx context.Context, account *models.Account) (*Connection, error) {
	if account == nil || account.ClientID == "" {
		return nil, service.ErrUnspecifiedID
	}

	if conn, ok := cr.GetConnection(account.ClientID, account.Tel); ok {
		return conn, nil
	}

	return cr.Connect(ctx, account)
}

func (cr *connectionRegistry) StartUp(ctx context.Context) error {
	accounts, err := cr.accountRepo.GetRegistered(ctx)
	if err != nil {
		return fmt.Errorf("failed to load registered accounts: %w", err)
	}

	for _, account := range accounts {
		if _, connectErr := cr.Connect(ctx, account); connectErr != nil {
			return fmt.Errorf("failed to connect account %s/%s: %w", account.ClientID, account.Tel, connectErr)
		}
	}

	util.Log(ctx).WithField("accounts", len(accounts)).Info("startup connections established")
	return nil
}

func (cr *connectionRegistry) ShutDown(ctx context.Context) {
	cr.mu.Lock()
	conns := make([]*Connection, 0, len(cr.connections))
	for key, conn := range cr.connections {
		conns = append(conns, conn)
		delete(cr.connections, key)
	}
	cr.mu.Unlock()

	for _, conn := range conns {
		conn.teardown(ctx)
		telemetry.ConnectionsClosedCounter.Add(ctx, 1)
	}

	util.Log(ctx).WithField("connections", len(conns)).Info("all connections closed")
}
