/**
 * @description
 * This file contains the HTTP handlers for installment loan simulation.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/newcredit/pix-service/internal/app"
	"github.com/newcredit/pix-service/internal/domain"
)

// SimulateInstallmentsHandler handles Price-table simulation requests.
func (h *PixHandlers) SimulateInstallmentsHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.SimulateInstallmentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sim, err := h.service.SimulateInstallments(r.Context(), correlationID(r), req)
	if err != nil {
		if errors.Is(err, app.ErrInvalidSimulation) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("level=error component=api endpoint=simulate_installments outcome=failed err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusCreated, sim)
}

// ListSimulationsHandler handles simulation history requests.
func (h *PixHandlers) ListSimulationsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseOptionalInt(r.URL.Query().Get("limit"), 20)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	sims, err := h.service.ListSimulations(r.Context(), limit)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_simulations outcome=failed err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, sims)
}
