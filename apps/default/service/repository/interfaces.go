package repository

import (
	"context"

	"github.com/antinvestor/service-signal/apps/default/service/models"
	"github.com/pitabwire/frame/datastore"
)

// AccountRepository defines the interface for account data access operations.
// The connection registry consumes it read-only; mutation happens through the
// REST handlers.
type AccountRepository interface {
	datastore.BaseRepository[*models.Account]
	GetByClientAndTel(ctx context.Context, clientID, tel string) (*models.Account, error)
	GetByClientID(ctx context.Context, clientID string) ([]*models.Account, error)
	// GetRegistered returns every account flagged as device-registered,
	// across all clients. Used by registry startup.
	GetRegistered(ctx context.Context) ([]*models.Account, error)
}

// WebhookEndpointRepository defines the interface for webhook target lookups.
type WebhookEndpointRepository interface {
	datastore.BaseRepository[*models.WebhookEndpoint]
	GetByClientID(ctx context.Context, clientID string) (*models.WebhookEndpoint, error)
}

// StorageRecordRepository defines the interface for protocol engine state
// rows. Records are always scoped to one (clientID, tel) pair.
type StorageRecordRepository interface {
	datastore.BaseRepository[*models.StorageRecord]
	GetRecord(ctx context.Context, clientID, tel, recordType, recordID string) (*models.StorageRecord, error)
	DeleteRecord(ctx context.Context, clientID, tel, recordType, recordID string) error
	DeleteForAccount(ctx context.Context, clientID, tel string) error
}
