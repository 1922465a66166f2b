/**
 * @description
 * This file contains the HTTP handlers for the PIX transaction endpoints.
 * Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/newcredit/pix-service/internal/app"
	"github.com/newcredit/pix-service/internal/domain"
	"github.com/newcredit/pix-service/internal/store"
)

// PixHandlers holds the application service that handlers will use.
type PixHandlers struct {
	service               *app.Service
	limiter               *app.RedisRateLimiter
	txRateLimitPerMin     int
	chargeRateLimitPerMin int
}

// NewPixHandlers creates a new instance of PixHandlers.
func NewPixHandlers(service *app.Service, limiter *app.RedisRateLimiter, txRateLimitPerMin, chargeRateLimitPerMin int) *PixHandlers {
	return &PixHandlers{
		service:               service,
		limiter:               limiter,
		txRateLimitPerMin:     txRateLimitPerMin,
		chargeRateLimitPerMin: chargeRateLimitPerMin,
	}
}

// consumeRateLimit applies the distributed limiter to one scope. Returns
// false after writing the 429 response when the caller is over the limit.
// Limiter failures fail open.
func (h *PixHandlers) consumeRateLimit(w http.ResponseWriter, r *http.Request, scope string, userID uuid.UUID, limit int) bool {
	if h.limiter == nil {
		return true
	}
	count, retryAfter, err := h.limiter.ConsumeRateLimit(r.Context(), scope, userID.String(), limit, time.Minute)
	if err != nil {
		log.Printf("level=warn component=api msg=\"rate limiter unavailable; allowing request\" scope=%s err=%v", scope, err)
		return true
	}
	if limit > 0 && count > limit {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		h.writeError(w, http.StatusTooManyRequests, "Too many requests, slow down")
		return false
	}
	return true
}

// CreateTransactionHandler handles requests to create a PIX transaction.
func (h *PixHandlers) CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}
	if !h.consumeRateLimit(w, r, "tx_create", userID, h.txRateLimitPerMin) {
		return
	}

	key := idempotencyKey(r)
	if key == "" {
		h.writeError(w, http.StatusBadRequest, "X-Idempotency-Key header is required")
		return
	}

	var req domain.CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=create_transaction outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := h.service.CreateTransaction(r.Context(), userID, key, correlationID(r), req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=create_transaction outcome=failed user_id=%s err=%v", userID, err)
		switch {
		case errors.Is(err, store.ErrInsufficientBalance):
			h.writeError(w, http.StatusPaymentRequired, "Insufficient balance")
		case errors.Is(err, store.ErrChargeAlreadyPaid):
			h.writeError(w, http.StatusConflict, "Charge has already been paid")
		case errors.Is(err, store.ErrChargeNotPayable):
			h.writeError(w, http.StatusBadRequest, "Charge is not payable")
		case errors.Is(err, app.ErrInvalidKey),
			errors.Is(err, app.ErrInvalidValue),
			errors.Is(err, app.ErrScheduleInPast),
			errors.Is(err, app.ErrMissingIdempotencyKey):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, tx)
}

// ConfirmTransactionHandler handles provider-style settlement callbacks.
func (h *PixHandlers) ConfirmTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ConfirmTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TransactionID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "transaction_id is required")
		return
	}

	tx, err := h.service.ConfirmTransaction(r.Context(), req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=confirm_transaction outcome=failed transaction_id=%s err=%v", req.TransactionID, err)
		switch {
		case errors.Is(err, store.ErrTransactionNotFound):
			h.writeError(w, http.StatusNotFound, "Transaction not found")
		case errors.Is(err, app.ErrInvalidStateTransition):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, tx)
}

// GetTransactionHandler handles requests to fetch one transaction by UUID.
// Records owned by other accounts read as not found.
func (h *PixHandlers) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	transactionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction ID format")
		return
	}

	tx, err := h.service.GetTransaction(r.Context(), userID, transactionID)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			h.writeError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_transaction outcome=failed transaction_id=%s user_id=%s err=%v", transactionID, userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, tx)
}

// CancelTransactionHandler handles requests to cancel a scheduled transaction.
func (h *PixHandlers) CancelTransactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	transactionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid transaction ID format")
		return
	}

	tx, err := h.service.CancelTransaction(r.Context(), userID, transactionID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=cancel_transaction outcome=failed transaction_id=%s user_id=%s err=%v", transactionID, userID, err)
		switch {
		case errors.Is(err, store.ErrTransactionNotFound):
			h.writeError(w, http.StatusNotFound, "Transaction not found")
		case errors.Is(err, app.ErrInvalidStateTransition):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, tx)
}

// GetStatementHandler handles requests for the account statement.
func (h *PixHandlers) GetStatementHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	limit, err := parseOptionalInt(r.URL.Query().Get("limit"), 50)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	filter := domain.StatementFilter{
		Limit:  limit,
		Status: domain.TransactionStatus(r.URL.Query().Get("status")),
	}

	statement, err := h.service.GetStatement(r.Context(), userID, filter)
	if err != nil {
		log.Printf("level=error component=api endpoint=get_statement outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, statement)
}

// GetBalanceHandler handles requests for the derived account balance.
func (h *PixHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int64{"balance": h.service.GetBalance(r.Context(), userID)})
}

func parseOptionalInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, errors.New("invalid integer")
	}
	return value, nil
}

// writeJSON is a helper for writing JSON responses.
func (h *PixHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *PixHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
