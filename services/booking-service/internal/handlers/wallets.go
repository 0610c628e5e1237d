package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
)

func (a *API) getWallet(w http.ResponseWriter, r *http.Request) {
	wl, err := a.Wallet.Balance(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "customerID"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wl)
}

func (a *API) listTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			a.writeError(w, r, invalidRequest("limit must be an integer"))
			return
		}
		limit = n
	}
	txns, err := a.Wallet.Transactions(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "customerID"), limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if txns == nil {
		txns = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
}

type walletRequest struct {
	Amount  *decimal.Decimal `json:"amount"`
	Service string           `json:"service"`
}

func (a *API) decodeWalletRequest(w http.ResponseWriter, r *http.Request) (walletRequest, bool) {
	var req walletRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return req, false
	}
	if req.Amount == nil {
		a.writeError(w, r, invalidRequest("amount is required"))
		return req, false
	}
	return req, true
}

func (a *API) rechargeWallet(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeWalletRequest(w, r)
	if !ok {
		return
	}
	wl, err := a.Wallet.Recharge(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "customerID"), *req.Amount)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wl)
}

func (a *API) consumeWallet(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeWalletRequest(w, r)
	if !ok {
		return
	}
	wl, err := a.Wallet.Consume(r.Context(), actorFrom(r.Context()), chi.URLParam(r, "customerID"), req.Service, *req.Amount)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wl)
}
