package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"stockroom/internal/auth"
	"stockroom/internal/profile"
)

// ListProfiles returns every profile in the caller's company.
func ListProfiles(profiles profile.Store, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := auth.FromContext(r.Context())
		if c.CompanyID == "" {
			respondJSON(w, []any{})
			return
		}
		ps, err := profiles.ListByCompany(r.Context(), c.CompanyID)
		if err != nil {
			lg.Errorw("list profiles", "company_id", c.CompanyID, "error", err)
			respondErr(w, err)
			return
		}
		respondJSON(w, ps)
	}
}

var errForeignProfile = errors.New("profile belongs to another company")

// UpdateProfile changes role and company membership. Admins may claim unassigned
// profiles into their own company and release their own members.
func UpdateProfile(profiles profile.Store, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			Role      *string `json:"role"`
			CompanyID *string `json:"company_id"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		c := auth.FromContext(r.Context())
		target, err := profiles.Get(r.Context(), id)
		if err != nil {
			respondErr(w, err)
			return
		}
		if target.CompanyID != nil && *target.CompanyID != c.CompanyID {
			respondError(w, http.StatusForbidden, errForeignProfile.Error())
			return
		}
		if req.CompanyID != nil && *req.CompanyID != "" && *req.CompanyID != c.CompanyID {
			respondError(w, http.StatusForbidden, errForeignProfile.Error())
			return
		}
		p, err := profiles.Update(r.Context(), id, req.Role, req.CompanyID)
		if err != nil {
			respondErr(w, err)
			return
		}
		lg.Infow("profile updated", "by", c.Subject, "profile_id", id, "role", p.Role)
		respondJSON(w, p)
	}
}
