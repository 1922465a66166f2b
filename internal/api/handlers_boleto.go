/**
 * @description
 * This file contains the HTTP handlers for boleto (bill payment) endpoints:
 * barcode lookup, payment, and payment history.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/newcredit/pix-service/internal/app"
	"github.com/newcredit/pix-service/internal/domain"
	"github.com/newcredit/pix-service/internal/store"
)

// QueryBoletoHandler handles barcode lookup requests.
func (h *PixHandlers) QueryBoletoHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.QueryBoletoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	details, err := h.service.QueryBoleto(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidBarcode):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrBoletoExpired):
			h.writeError(w, http.StatusNotFound, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, details)
}

// PayBoletoHandler handles balance-gated bill payments.
func (h *PixHandlers) PayBoletoHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	var req domain.PayBoletoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payment, err := h.service.PayBoleto(r.Context(), userID, correlationID(r), req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=pay_boleto outcome=failed user_id=%s err=%v", userID, err)
		switch {
		case errors.Is(err, store.ErrInsufficientBalance):
			h.writeError(w, http.StatusPaymentRequired, "Insufficient balance")
		case errors.Is(err, app.ErrInvalidBarcode), errors.Is(err, app.ErrInvalidValue):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, payment)
}

// ListBoletosHandler handles payment history requests.
func (h *PixHandlers) ListBoletosHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	payments, err := h.service.ListBoletos(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_boletos outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, payments)
}
