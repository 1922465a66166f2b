/**
 * @description
 * This file contains the HTTP handler for the fraud risk check endpoint.
 */

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/newcredit/pix-service/internal/app"
	"github.com/newcredit/pix-service/internal/domain"
)

// CheckFraudHandler evaluates a transaction context against the risk rules.
func (h *PixHandlers) CheckFraudHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.FraudCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	assessment, err := h.service.CheckFraud(req)
	if err != nil {
		if errors.Is(err, app.ErrInvalidFraudContext) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, assessment)
}
