package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tooldex/tooldex/internal/api/response"
	"github.com/tooldex/tooldex/internal/turnstile"
)

// registrationMessage is returned verbatim whether or not the email
// already holds an active key, so the endpoint cannot be used to probe
// which addresses are registered.
const registrationMessage = "If your address is eligible, your API key is on its way by email."

// Registrar issues API keys.
type Registrar interface {
	Register(ctx context.Context, name, email, token, remoteIP string) error
}

type registerKeyRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	TurnstileToken string `json:"turnstileToken"`
}

type registerKeyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NewRegisterKeyHandler returns the POST /v1/keys handler.
func NewRegisterKeyHandler(reg Registrar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerKeyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest,
				"INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if req.Name == "" {
			response.Error(w, http.StatusBadRequest,
				"INVALID_REQUEST", "name is required", nil)
			return
		}
		if req.Email == "" || !strings.Contains(req.Email, "@") {
			response.Error(w, http.StatusBadRequest,
				"INVALID_REQUEST", "email must be a valid address", nil)
			return
		}

		err := reg.Register(r.Context(), req.Name, req.Email, req.TurnstileToken, r.RemoteAddr)
		if err != nil {
			switch {
			case errors.Is(err, turnstile.ErrTokenInvalid):
				response.Error(w, http.StatusBadRequest,
					"INVALID_REQUEST", "Captcha verification failed", nil)
			case errors.Is(err, turnstile.ErrUnreachable):
				response.Error(w, http.StatusBadGateway,
					"CAPTCHA_UNAVAILABLE", "Captcha verification is temporarily unavailable", nil)
			default:
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "Failed to register API key", nil)
			}
			return
		}

		response.Flat(w, registerKeyResponse{Success: true, Message: registrationMessage})
	}
}
