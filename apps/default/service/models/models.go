package models

import (
	"strings"

	"github.com/pitabwire/frame/data"
)

// Account is a messaging identity a tenant wants bridged to webhooks.
// An account is owned by exactly one API client and identified by
// (client_id, tel); the pair also names its live connection.
type Account struct {
	data.BaseModel
	ClientID string `gorm:"type:varchar(50);uniqueIndex:idx_account_client_tel" json:"client_id"`
	Tel      string `gorm:"type:varchar(50);uniqueIndex:idx_account_client_tel" json:"tel"`
	Name     string `json:"name"`

	// Events holds the subscribed event types as a sorted, comma separated
	// list. Kept flat so the column stays readable and comparable in SQL.
	Events string `json:"events"`

	// DeviceRegistered is set once the account completed device linking with
	// the Signal servers. Only registered accounts are connected at startup.
	DeviceRegistered bool `json:"device_registered"`
}

// Key returns the canonical connection identity for this account.
func (a *Account) Key() string {
	return a.ClientID + "/" + a.Tel
}

// EventTypes returns the subscribed event types, de-duplicated and sorted.
func (a *Account) EventTypes() []EventType {
	if a.Events == "" {
		return nil
	}
	types, _ := ParseEventTypes(strings.Split(a.Events, ","))
	return types
}

// SetEventTypes stores the given event types on the account in canonical form.
func (a *Account) SetEventTypes(types []EventType) {
	names := make([]string, 0, len(types))
	for _, et := range NormalizeEventTypes(types) {
		names = append(names, string(et))
	}
	a.Events = strings.Join(names, ",")
}

// WebhookEndpoint is the per-client webhook configuration. It is looked up
// fresh on every delivery so that changes take effect on the next event.
type WebhookEndpoint struct {
	data.BaseModel
	ClientID string `gorm:"type:varchar(50);uniqueIndex:idx_webhook_endpoint_client" json:"client_id"`
	URI      string `json:"uri"`

	// Token is passed along in plain text as a query parameter of the
	// webhook call.
	Token string `json:"token"`

	// Secret is the HMAC key used for webhook payload signing.
	Secret string `json:"secret"`
}

// StorageRecord is a persisted piece of protocol engine state, scoped to one
// account. The engine's store adapter reads and writes these rows; this
// service never interprets Data.
type StorageRecord struct {
	data.BaseModel
	ClientID string `gorm:"type:varchar(50);uniqueIndex:idx_storage_record_scope" json:"client_id"`
	Tel      string `gorm:"type:varchar(50);uniqueIndex:idx_storage_record_scope" json:"tel"`
	Type     string `gorm:"type:varchar(50);uniqueIndex:idx_storage_record_scope" json:"type"`
	RecordID string `gorm:"type:varchar(250);uniqueIndex:idx_storage_record_scope" json:"record_id"`
	Data     data.JSONMap
}
