// Package handlers exposes the REST surface of the gateway. Authentication
// happens upstream; every request arrives with the client ID already
// resolved into a trusted header.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pitabwire/frame"
	"github.com/pitabwire/frame/data"
	"github.com/pitabwire/util"

	"github.com/antinvestor/service-signal/apps/default/config"
	"github.com/antinvestor/service-signal/apps/default/service"
	"github.com/antinvestor/service-signal/apps/default/service/business"
	"github.com/antinvestor/service-signal/apps/default/service/repository"
)

// SignalServer holds the handler dependencies for the REST routes.
type SignalServer struct {
	Service         *frame.Service
	Cfg             *config.SignalConfig
	Registry        business.ConnectionRegistry
	MessageBusiness business.MessageBusiness
	AccountRepo     repository.AccountRepository
	StorageRepo     repository.StorageRecordRepository
}

// NewSignalServer creates a SignalServer over the given registry and
// repositories.
func NewSignalServer(
	svc *frame.Service,
	cfg *config.SignalConfig,
	registry business.ConnectionRegistry,
	accountRepo repository.AccountRepository,
	storageRepo repository.StorageRecordRepository,
) *SignalServer {
	return &SignalServer{
		Service:         svc,
		Cfg:             cfg,
		Registry:        registry,
		MessageBusiness: business.NewMessageBusiness(registry),
		AccountRepo:     accountRepo,
		StorageRepo:     storageRepo,
	}
}

// RegisterRoutes attaches every REST route to the mux.
func (ss *SignalServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /accounts", ss.CreateAccount)
	mux.HandleFunc("GET /accounts", ss.GetAccounts)
	mux.HandleFunc("GET /accounts/{tel}", ss.GetAccount)
	mux.HandleFunc("PATCH /accounts/{tel}", ss.UpdateAccount)
	mux.HandleFunc("DELETE /accounts/{tel}", ss.DeleteAccount)
	mux.HandleFunc("POST /accounts/{tel}/messages", ss.SendMessage)
}

// clientID extracts the client identity the auth proxy resolved upstream.
func (ss *SignalServer) clientID(r *http.Request) string {
	return r.Header.Get(ss.Cfg.ClientIDHeader)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps internal errors onto the REST status codes.
func (ss *SignalServer) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var status int

	switch {
	case errors.Is(err, service.ErrAccountNotFound) || data.ErrorIsNoRows(err):
		status = http.StatusNotFound
		err = service.ErrAccountNotFound
	case errors.Is(err, service.ErrAccountExists):
		status = http.StatusConflict
	case errors.Is(err, service.ErrIllegalEventType),
		errors.Is(err, service.ErrAccountTelRequired),
		errors.Is(err, service.ErrMessageRecipientRequired),
		errors.Is(err, service.ErrMessageBodyRequired),
		errors.Is(err, service.ErrEmptyValueSupplied):
		status = http.StatusBadRequest
	default:
		util.Log(ctx).WithError(err).Error("internal server error")
		status = http.StatusInternalServerError
		err = errors.New("internal server error")
	}

	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// requireClient rejects requests that arrived without a resolved client
// identity.
func (ss *SignalServer) requireClient(w http.ResponseWriter, r *http.Request) (string, bool) {
	clientID := ss.clientID(r)
	if clientID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing client identity"})
		return "", false
	}
	return clientID, true
}
