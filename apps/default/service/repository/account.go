package repository

import (
	"context"

	"github.com/pitabwire/frame"
	framedata "github.com/pitabwire/frame/datastore"

	"github.com/antinvestor/service-signal/apps/default/service/models"
)

type accountRepository struct {
	framedata.BaseRepository[*models.Account]
}

// GetByID retrieves an account by its ID.
func (ar *accountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	account := &models.Account{}
	err := ar.Svc().DB(ctx, true).First(account, "id = ?", id).Error
	return account, err
}

// Save creates or updates an account.
func (ar *accountRepository) Save(ctx context.Context, account *models.Account) error {
	return ar.Svc().DB(ctx, false).Save(account).Error
}

// Delete soft deletes an account by its ID.
func (ar *accountRepository) Delete(ctx context.Context, id string) error {
	account, err := ar.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return ar.Svc().DB(ctx, false).Delete(account).Error
}

// GetByClientAndTel retrieves the account a client registered for a phone number.
func (ar *accountRepository) GetByClientAndTel(ctx context.Context, clientID, tel string) (*models.Account, error) {
	account := &models.Account{}
	err := ar.Svc().DB(ctx, true).
		Where("client_id = ? AND tel = ?", clientID, tel).
		First(account).Error
	return account, err
}

// GetByClientID retrieves all accounts belonging to one client.
func (ar *accountRepository) GetByClientID(ctx context.Context, clientID string) ([]*models.Account, error) {
	var accounts []*models.Account
	err := ar.Svc().DB(ctx, true).
		Where("client_id = ?", clientID).
		Order("tel ASC").
		Find(&accounts).Error
	return accounts, err
}

// GetRegistered retrieves every device-registered account across all clients.
func (ar *accountRepository) GetRegistered(ctx context.Context) ([]*models.Account, error) {
	var accounts []*models.Account
	err := ar.Svc().DB(ctx, true).
		Where("device_registered = ?", true).
		Order("client_id ASC, tel ASC").
		Find(&accounts).Error
	return accounts, err
}

// NewAccountRepository creates a new account repository instance.
func NewAccountRepository(service *frame.Service) AccountRepository {
	return &accountRepository{
		BaseRepository: framedata.NewBaseRepository[*models.Account](service, func() *models.Account { return &models.Account{} }),
	}
}
