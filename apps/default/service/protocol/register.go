package protocol

import (
	"context"
	"errors"
	"sync"
)

// ErrNoEngine is returned by OpenEngine when no implementation was linked
// into the binary.
var ErrNoEngine = errors.New("no protocol engine registered")

// StoreProvider hands an engine the persistence-backed store for one
// account.
type StoreProvider func(clientID, tel string) Store

// EngineFactory builds the engine implementation at service boot.
type EngineFactory func(ctx context.Context, stores StoreProvider) (Engine, error)

//nolint:gochecknoglobals // engine registration follows the database/sql driver pattern
var (
	engineMu      sync.Mutex
	engineFactory EngineFactory
)

// RegisterEngine records the engine implementation linked into this binary.
// Engine packages call it from their init; only one engine may register.
func RegisterEngine(factory EngineFactory) {
	engineMu.Lock()
	defer engineMu.Unlock()

	if engineFactory != nil {
		panic("protocol: RegisterEngine called twice")
	}
	engineFactory = factory
}

// OpenEngine builds the registered engine over the given store provider.
func OpenEngine(ctx context.Context, stores StoreProvider) (Engine, error) {
	engineMu.Lock()
	factory := engineFactory
	engineMu.Unlock()

	if factory == nil {
		return nil, ErrNoEngine
	}
	return factory(ctx, stores)
}
