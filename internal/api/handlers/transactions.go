package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dvloznov/financial-control/internal/api/middleware"
	"github.com/dvloznov/financial-control/internal/datastore"
	"github.com/dvloznov/financial-control/internal/domain"
	"github.com/dvloznov/financial-control/internal/logger"
	"github.com/go-chi/chi/v5"
)

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	store *datastore.Store
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(store *datastore.Store) *TransactionsHandler {
	return &TransactionsHandler{store: store}
}

// ListTransactions handles GET /api/v1/transacoes
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	filter := datastore.Filter{
		Type:     domain.TransactionType(query.Get("tipo")),
		Category: query.Get("categoria"),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		middleware.WriteError(w, http.StatusBadRequest, "tipo must be gasto or receita")
		return
	}

	var err error
	if s := query.Get("from"); s != "" {
		if filter.From, err = domain.ParseDate(s); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid from date format")
			return
		}
	}
	if s := query.Get("to"); s != "" {
		if filter.To, err = domain.ParseDate(s); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid to date format")
			return
		}
	}
	if s := query.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	transactions, err := h.store.ListTransactions(ctx, filter)
	if err != nil {
		writeErr(w, logger.FromContext(ctx), err, "Failed to list transactions")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

// CreateTransaction handles POST /api/v1/transacoes
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	in, ok := decodeTransaction(w, r)
	if !ok {
		return
	}

	created, err := h.store.AddTransaction(ctx, in)
	if err != nil {
		writeErr(w, logger.FromContext(ctx), err, "Failed to add transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, created)
}

// UpdateTransaction handles PUT /api/v1/transacoes/{id}
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := transactionID(w, r)
	if !ok {
		return
	}
	in, ok := decodeTransaction(w, r)
	if !ok {
		return
	}

	updated, err := h.store.UpdateTransaction(ctx, id, in)
	if err != nil {
		writeErr(w, logger.FromContext(ctx), err, "Failed to update transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, updated)
}

// DeleteTransaction handles DELETE /api/v1/transacoes/{id}.
// Deleting an unknown id succeeds.
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := transactionID(w, r)
	if !ok {
		return
	}
	if err := h.store.RemoveTransaction(ctx, id); err != nil {
		writeErr(w, logger.FromContext(ctx), err, "Failed to remove transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func transactionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid transaction id")
		return 0, false
	}
	return id, true
}

func decodeTransaction(w http.ResponseWriter, r *http.Request) (domain.NewTransaction, bool) {
	var in domain.NewTransaction
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return in, false
	}
	if !in.Type.Valid() {
		middleware.WriteError(w, http.StatusBadRequest, "tipo must be gasto or receita")
		return in, false
	}
	if !in.Amount.IsPositive() {
		middleware.WriteError(w, http.StatusBadRequest, "valor must be greater than zero")
		return in, false
	}
	return in, true
}
