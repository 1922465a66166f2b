/**
 * @description
 * This file contains the HTTP handlers for account registration and login.
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

// RegisterHandler handles account creation requests.
func (h *PixHandlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.Register(r.Context(), req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=register outcome=failed err=%v", err)
		switch {
		case errors.Is(err, store.ErrUserExists):
			h.writeError(w, http.StatusConflict, "An account with this document or email already exists")
		case errors.Is(err, app.ErrWeakPassword), errors.Is(err, app.ErrInvalidKey):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, user)
}

// LoginHandler handles credential authentication. The token is returned in
// the body and mirrored into an access_token cookie for the browser client.
func (h *PixHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, app.ErrInvalidCredentials) {
			h.writeError(w, http.StatusUnauthorized, "Invalid document or password")
			return
		}
		log.Printf("level=error component=api endpoint=login outcome=failed err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    resp.AccessToken,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	h.writeJSON(w, http.StatusOK, resp)
}
