package repository

import (
	"context"

	"github.com/pitabwire/frame"
	framedata "github.com/pitabwire/frame/datastore"

	"github.com/antinvestor/service-signal/apps/default/service/models"
)

type storageRecordRepository struct {
	framedata.BaseRepository[*models.StorageRecord]
}

// GetByID retrieves a storage record by its ID.
func (sr *storageRecordRepository) GetByID(ctx context.Context, id string) (*models.StorageRecord, error) {
	record := &models.StorageRecord{}
	err := sr.Svc().DB(ctx, true).First(record, "id = ?", id).Error
	return record, err
}

// Save creates or updates a storage record.
func (sr *storageRecordRepository) Save(ctx context.Context, record *models.StorageRecord) error {
	return sr.Svc().DB(ctx, false).Save(record).Error
}

// Delete soft deletes a storage record by its ID.
func (sr *storageRecordRepository) Delete(ctx context.Context, id string) error {
	record, err := sr.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return sr.Svc().DB(ctx, false).Delete(record).Error
}

// GetRecord retrieves one protocol state row scoped to an account.
func (sr *storageRecordRepository) GetRecord(
	ctx context.Context,
	clientID, tel, recordType, recordID string,
) (*models.StorageRecord, error) {
	record := &models.StorageRecord{}
	err := sr.Svc().DB(ctx, true).
		Where("client_id = ? AND tel = ? AND type = ? AND record_id = ?", clientID, tel, recordType, recordID).
		First(record).Error
	return record, err
}

// DeleteRecord hard deletes one protocol state row scoped to an account.
func (sr *storageRecordRepository) DeleteRecord(
	ctx context.Context,
	clientID, tel, recordType, recordID string,
) error {
	return sr.Svc().DB(ctx, false).
		Where("client_id = ? AND tel = ? AND type = ? AND record_id = ?", clientID, tel, recordType, recordID).
		Delete(&models.StorageRecord{}).Error
}

// DeleteForAccount removes every protocol state row belonging to an account.
// Called when the account itself is deleted.
func (sr *storageRecordRepository) DeleteForAccount(ctx context.Context, clientID, tel string) error {
	return sr.Svc().DB(ctx, false).
		Where("client_id = ? AND tel = ?", clientID, tel).
		Delete(&models.StorageRecord{}).Error
}

// NewStorageRecordRepository creates a new storage record repository instance.
func NewStorageRecordRepository(service *frame.Service) StorageRecordRepository {
	return &storageRecordRepository{
		BaseRepository: framedata.NewBaseRepository[*models.StorageRecord](
			service, func() *models.StorageRecord { return &models.StorageRecord{} }),
	}
}
