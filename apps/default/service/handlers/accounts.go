package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pitabwire/frame/data"
	"github.com/pitabwire/util"

	"github.com/antinvestor/service-signal/apps/default/service"
	"github.com/antinvestor/service-signal/apps/default/service/models"
)

type accountBody struct {
	Tel    string             `json:"tel"`
	Name   string             `json:"name"`
	Events []models.EventType `json:"events"`
}

func accountResponse(account *models.Account) map[string]any {
	return map[string]any{"account": accountBody{
		Tel:    account.Tel,
		Name:   account.Name,
		Events: account.EventTypes(),
	}}
}

type createAccountRequest struct {
	Tel    string   `json:"tel"`
	Name   string   `json:"name"`
	Events []string `json:"events"`
}

// CreateAccount handles POST /accounts.
func (ss *SignalServer) CreateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clientID, ok := ss.requireClient(w, r)
	if !ok {
		return
	}

	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed request body"})
		return
	}

	if req.Tel == "" {
		ss.writeError(ctx, w, service.ErrAccountTelRequired)
		return
	}

	events, err := models.ParseEventTypes(req.Events)
	if err != nil {
		ss.writeError(ctx, w, err)
		return
	}

	existing, err := ss.AccountRepo.GetByClientAndTel(ctx, clientID, req.Tel)
	if err != nil && !data.ErrorIsNoRows(err) {
		ss.writeError(ctx, w, err)
		return
	}
	if existing != nil && err == nil {
		ss.writeError(ctx, w, service.ErrAccountExists)
		return
	}

	account := &models.Account{
		ClientID: clientID,
		Tel:      req.Tel,
		Name:     req.Name,
	}
	account.SetEventTypes(events)
	account.GenID(ctx)

	if err = ss.AccountRepo.Save(ctx, account); err != nil {
		ss.writeError(ctx, w, err)
		return
	}

	util.Log(ctx).WithFields(map[string]any{
		"client_id": clientID,
		"tel":       account.Tel,
	}).Info("account created")

	writeJSON(w, http.StatusCreated, accountResponse(account))
}

// GetAccounts handles GET /accounts.
func (ss *SignalServer) GetAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clientID, ok := ss.requireClient(w, r)
	if !ok {
		return
	}

	accounts, err := ss.AccountRepo.GetByClientID(ctx, clientID)
	if err != nil && !data.ErrorIsNoRows(err) {
		ss.writeError(ctx, w, err)
		return
	}

	list := make([]accountBody, 0, len(accounts))
	for _, account := range accounts {
		list = append(list, accountBody{
			Tel:    account.Tel,
			Name:   account.Name,
			Events: account.EventTypes(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"accounts": list})
}

// GetAccount handles GET /accounts/{tel}.
func (ss *SignalServer) GetAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clientID, ok := ss.requireClient(w, r)
	if !ok {
		return
	}

	account, err := ss.AccountRepo.GetByClientAndTel(ctx, clientID, r.PathValue("tel"))
	if err != nil {
		ss.writeError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, accountResponse(account))
}

type updateAccountRequest struct {
	Name   *string   `json:"name"`
	Events *[]string `json:"events"`
}

// UpdateAccount handles PATCH /accounts/{tel}. Absent fields are left
// untouched; an events change is reconciled onto the live connection.
func (ss *SignalServer) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clientID, ok := ss.requireClient(w, r)
	if !ok {
		return
	}

	account, err := ss.AccountRepo.GetByClientAndTel(ctx, clientID, r.PathValue("tel"))
	if err != nil {
		ss.writeError(ctx, w, err)
		return
	}

	var req updateAccountRequest
	if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed request body"})
		return
	}

	if req.Events != nil {
		events, parseErr := models.ParseEventTypes(*req.Events)
		if parseErr != nil {
			ss.writeError(ctx, w, parseErr)
			return
		}
		account.SetEventTypes(events)
	}

	if req.Name != nil {
		account.Name = *req.Name
	}

	if err = ss.AccountRepo.Save(ctx, account); err != nil {
		ss.writeError(ctx, w, err)
		return
	}

	// Reconcile the live connection, or establish one for a registered
	// account that is not yet connected.
	if _, live := ss.Registry.GetConnection(clientID, account.Tel); live {
		err = ss.Registry.UpdateEvents(ctx, account)
	} else if account.DeviceRegistered {
		_, err = ss.Registry.Connect(ctx, account)
	}
	if err != nil {
		ss.writeError(ctx, w, err)
		return
	}

	writeJSON(w, http.StatusOK, accountResponse(account))
}

// DeleteAccount handles DELETE /accounts/{tel}. The live connection is torn
// down and the account's protocol state removed with it.
func (ss *SignalServer) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clientID, ok := ss.requireClient(w, r)
	if !ok {
		return
	}

	account, err := ss.AccountRepo.GetByClientAndTel(ctx, clientID, r.PathValue("tel"))
	if err != nil {
		ss.writeError(ctx, w, err)
		return
	}

	if err = ss.Registry.Disconnect(ctx, clientID, account.Tel); err != nil {
		ss.writeError(ctx, w, err)
		return
	}

	if err = ss.StorageRepo.DeleteForAccount(ctx, clientID, account.Tel); err != nil {
		ss.writeError(ctx, w, err)
		return
	}

	if err = ss.AccountRepo.Delete(ctx, account.ID); err != nil {
		ss.writeError(ctx, w, err)
		return
	}

	util.Log(ctx).WithFields(map[string]any{
		"client_id": clientID,
		"tel":       account.Tel,
	}).Info("account deleted")

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
