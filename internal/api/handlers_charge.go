/**
 * @description
 * This file contains the HTTP handlers for charge issuance and settlement.
 * A charge is a pending inbound record payable exactly once, either by
 * another account's transfer or through the confirmation endpoint that
 * models an external payer.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/newcredit/pix-service/internal/app"
	"github.com/newcredit/pix-service/internal/domain"
	"github.com/newcredit/pix-service/internal/store"
)

// IssueChargeHandler handles requests to generate a payable charge.
func (h *PixHandlers) IssueChargeHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}
	if !h.consumeRateLimit(w, r, "charge_issue", userID, h.chargeRateLimitPerMin) {
		return
	}

	var req domain.IssueChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	charge, err := h.service.IssueCharge(r.Context(), userID, correlationID(r), req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=issue_charge outcome=failed user_id=%s err=%v", userID, err)
		if errors.Is(err, app.ErrInvalidValue) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusCreated, charge)
}

// ConfirmChargeHandler handles requests to settle an open charge, modeling
// an external payer. Paying an already settled charge is a conflict.
func (h *PixHandlers) ConfirmChargeHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ConfirmChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ChargeID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "charge_id is required")
		return
	}

	tx, err := h.service.ConfirmCharge(r.Context(), correlationID(r), req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=confirm_charge outcome=failed charge_id=%s err=%v", req.ChargeID, err)
		switch {
		case errors.Is(err, store.ErrTransactionNotFound):
			h.writeError(w, http.StatusNotFound, "Charge not found")
		case errors.Is(err, store.ErrChargeAlreadyPaid):
			h.writeError(w, http.StatusConflict, "Charge has already been paid")
		case errors.Is(err, store.ErrChargeNotPayable):
			h.writeError(w, http.StatusBadRequest, "Charge is not payable")
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, tx)
}
