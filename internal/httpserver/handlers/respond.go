package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"stockroom/internal/alert"
	"stockroom/internal/auth"
	"stockroom/internal/company"
	"stockroom/internal/identity"
	"stockroom/internal/inventory"
	"stockroom/internal/profile"
)

func respondJSON(w http.ResponseWriter, v interface{}) {
	respondStatus(w, http.StatusOK, v)
}

func respondStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondStatus(w, status, map[string]string{"error": msg})
}

// respondErr maps package sentinel errors to a status; anything unknown is a 500.
func respondErr(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, identity.ErrInvalidSession),
		errors.Is(err, identity.ErrSessionExpired),
		errors.Is(err, identity.ErrSessionRevoked):
		return http.StatusUnauthorized
	case errors.Is(err, identity.ErrUserExists):
		return http.StatusConflict
	case errors.Is(err, identity.ErrInvalidInput),
		errors.Is(err, auth.ErrPasswordTooLong),
		errors.Is(err, profile.ErrInvalidRole),
		errors.Is(err, company.ErrNameRequired),
		errors.Is(err, company.ErrInvalidEmail),
		errors.Is(err, inventory.ErrNameRequired),
		errors.Is(err, inventory.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, inventory.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, profile.ErrNotFound),
		errors.Is(err, company.ErrNotFound),
		errors.Is(err, inventory.ErrNotFound),
		errors.Is(err, alert.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func actorFrom(r *http.Request) inventory.Actor {
	c := auth.FromContext(r.Context())
	return inventory.Actor{ID: c.Subject, CompanyID: c.CompanyID, IsAdmin: c.IsAdmin}
}
