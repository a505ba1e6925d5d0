package protocol

import (
	"context"

	"github.com/pitabwire/frame/data"

	"github.com/antinvestor/service-signal/apps/default/service/models"
	"github.com/antinvestor/service-signal/apps/default/service/repository"
)

// accountStore is the persistence-backed Store handed to the protocol
// engine, scoped to a single (clientID, tel) pair. Concrete engines load
// their session and key state through it; the service never looks inside
// the records.
type accountStore struct {
	clientID string
	tel      string
	repo     repository.StorageRecordRepository
}

// NewAccountStore creates the Store for one account over persisted
// storage record rows.
func NewAccountStore(repo repository.StorageRecordRepository, clientID, tel string) Store {
	return &accountStore{
		clientID: clientID,
		tel:      tel,
		repo:     repo,
	}
}

func (as *accountStore) Load(ctx context.Context, recordType, id string) (map[string]any, bool, error) {
	record, err := as.repo.GetRecord(ctx, as.clientID, as.tel, recordType, id)
	if err != nil {
		if data.ErrorIsNoRows(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return record.Data, true, nil
}

func (as *accountStore) Save(ctx context.Context, recordType, id string, record map[string]any) error {
	existing, err := as.repo.GetRecord(ctx, as.clientID, as.tel, recordType, id)
	if err != nil {
		if !data.ErrorIsNoRows(err) {
			return err
		}
		existing = &models.StorageRecord{
			ClientID: as.clientID,
			Tel:      as.tel,
			Type:     recordType,
			RecordID: id,
		}
		existing.GenID(ctx)
	}

	existing.Data = data.JSONMap(record)
	return as.repo.Save(ctx, existing)
}

func (as *accountStore) Delete(ctx context.Context, recordType, id string) error {
	return as.repo.DeleteRecord(ctx, as.clientID, as.tel, recordType, id)
}
