/**
 * @description
 * This file contains the HTTP handlers for card issuance and lifecycle
 * management. All operations are scoped to the authenticated user.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/newcredit/pix-service/internal/app"
	"github.com/newcredit/pix-service/internal/domain"
	"github.com/newcredit/pix-service/internal/store"
)

// CreateCardHandler handles card issuance requests.
func (h *PixHandlers) CreateCardHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	var req domain.CreateCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	card, err := h.service.CreateCard(r.Context(), userID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=create_card outcome=failed user_id=%s err=%v", userID, err)
		switch {
		case errors.Is(err, app.ErrInvalidCardType):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "User not found")
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, card)
}

// ListCardsHandler handles card listing requests.
func (h *PixHandlers) ListCardsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}

	cards, err := h.service.ListCards(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_cards outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, cards)
}

func (h *PixHandlers) cardIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	cardID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid card ID format")
		return uuid.Nil, false
	}
	return cardID, true
}

// GetCardHandler handles single card fetch requests.
func (h *PixHandlers) GetCardHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}
	cardID, ok := h.cardIDFromRequest(w, r)
	if !ok {
		return
	}

	card, err := h.service.GetCard(r.Context(), userID, cardID)
	if err != nil {
		if errors.Is(err, store.ErrCardNotFound) {
			h.writeError(w, http.StatusNotFound, "Card not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_card outcome=failed card_id=%s err=%v", cardID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, card)
}

// DeleteCardHandler handles card removal requests.
func (h *PixHandlers) DeleteCardHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}
	cardID, ok := h.cardIDFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteCard(r.Context(), userID, cardID); err != nil {
		if errors.Is(err, store.ErrCardNotFound) {
			h.writeError(w, http.StatusNotFound, "Card not found")
			return
		}
		log.Printf("level=error component=api endpoint=delete_card outcome=failed card_id=%s err=%v", cardID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Card deleted"})
}

// ToggleCardBlockHandler flips the blocked flag on a card.
func (h *PixHandlers) ToggleCardBlockHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}
	cardID, ok := h.cardIDFromRequest(w, r)
	if !ok {
		return
	}

	card, err := h.service.ToggleCardBlock(r.Context(), userID, cardID)
	if err != nil {
		if errors.Is(err, store.ErrCardNotFound) {
			h.writeError(w, http.StatusNotFound, "Card not found")
			return
		}
		log.Printf("level=error component=api endpoint=toggle_card_block outcome=failed card_id=%s err=%v", cardID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, card)
}

// UpdateCardLimitHandler handles limit adjustment requests.
func (h *PixHandlers) UpdateCardLimitHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return
	}
	cardID, ok := h.cardIDFromRequest(w, r)
	if !ok {
		return
	}

	var req domain.UpdateCardLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	card, err := h.service.UpdateCardLimit(r.Context(), userID, cardID, req.Limit)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrCardNotFound):
			h.writeError(w, http.StatusNotFound, "Card not found")
		case errors.Is(err, app.ErrInvalidValue):
			h.writeError(w, http.StatusBadRequest, "Limit must be positive")
		default:
			log.Printf("level=error component=api endpoint=update_card_limit outcome=failed card_id=%s err=%v", cardID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, card)
}
