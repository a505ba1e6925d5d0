package repository

import (
	"context"

	"github.com/pitabwire/frame"
	framedata "github.com/pitabwire/frame/datastore"

	"github.com/antinvestor/service-signal/apps/default/service/models"
)

type webhookEndpointRepository struct {
	framedata.BaseRepository[*models.WebhookEndpoint]
}

// GetByID retrieves a webhook endpoint by its ID.
func (wr *webhookEndpointRepository) GetByID(ctx context.Context, id string) (*models.WebhookEndpoint, error) {
	endpoint := &models.WebhookEndpoint{}
	err := wr.Svc().DB(ctx, true).First(endpoint, "id = ?", id).Error
	return endpoint, err
}

// Save creates or updates a webhook endpoint.
func (wr *webhookEndpointRepository) Save(ctx context.Context, endpoint *models.WebhookEndpoint) error {
	return wr.Svc().DB(ctx, false).Save(endpoint).Error
}

// Delete soft deletes a webhook endpoint by its ID.
func (wr *webhookEndpointRepository) Delete(ctx context.Context, id string) error {
	endpoint, err := wr.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return wr.Svc().DB(ctx, false).Delete(endpoint).Error
}

// GetByClientID retrieves the webhook configuration for one client. Callers
// look this up at delivery time rather than caching it, so configuration
// changes apply from the next event onward.
func (wr *webhookEndpointRepository) GetByClientID(ctx context.Context, clientID string) (*models.WebhookEndpoint, error) {
	endpoint := &models.WebhookEndpoint{}
	err := wr.Svc().DB(ctx, true).
		Where("client_id = ?", clientID).
		First(endpoint).Error
	return endpoint, err
}

// NewWebhookEndpointRepository creates a new webhook endpoint repository instance.
func NewWebhookEndpointRepository(service *frame.Service) WebhookEndpointRepository {
	return &webhookEndpointRepository{
		BaseRepository: framedata.NewBaseRepository[*models.WebhookEndpoint](
			service, func() *models.WebhookEndpoint { return &models.WebhookEndpoint{} }),
	}
}
