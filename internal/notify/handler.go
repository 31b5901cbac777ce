package notify

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const corsAllowHeaders = "authorization, x-client-info, apikey, content-type"

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Handler serves the mail function endpoint on top of any Sender. POST requires
// "Authorization: Bearer <token>"; with an empty token every POST is refused.
func Handler(sender Sender, token, corsOrigin string, lg *zap.SugaredLogger) http.HandlerFunc {
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", corsOrigin)
		h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")

		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusOK)
			return
		case http.MethodPost:
		default:
			writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed", Message: r.Method})
			return
		}

		if !authorized(r, token) {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized", Message: "missing or invalid function token"})
			return
		}

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid payload", Message: err.Error()})
			return
		}
		if strings.TrimSpace(req.To) == "" {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid payload", Message: ErrMissingRecipient.Error()})
			return
		}

		res, err := sender.Send(r.Context(), req)
		if err != nil {
			lg.Errorw("send email failed", "type", req.Type, "to", req.To, "error", err)
			body := errorBody{Error: "Failed to send email", Message: err.Error()}
			var de *DeliveryError
			if errors.As(err, &de) {
				body.Details = de.Body
			}
			writeJSON(w, http.StatusInternalServerError, body)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func authorized(r *http.Request, token string) bool {
	if token == "" {
		return false
	}
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return false
	}
	got := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
