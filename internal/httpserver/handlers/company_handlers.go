package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"stockroom/internal/auth"
	"stockroom/internal/company"
	"stockroom/internal/profile"
)

// CreateCompany creates a company for an admin who has none yet and joins them to it.
func CreateCompany(companies *company.Service, profiles profile.Store, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name       string `json:"name"`
			AdminEmail string `json:"admin_email"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		c := auth.FromContext(r.Context())
		if c.CompanyID != "" {
			respondError(w, http.StatusConflict, "already a member of a company")
			return
		}
		if req.AdminEmail == "" {
			req.AdminEmail = c.Email
		}
		co, err := companies.Create(r.Context(), req.Name, req.AdminEmail)
		if err != nil {
			respondErr(w, err)
			return
		}
		if _, err := profiles.Update(r.Context(), c.Subject, nil, &co.ID); err != nil {
			lg.Errorw("company created but admin not joined", "company_id", co.ID, "user_id", c.Subject, "error", err)
			respondErr(w, err)
			return
		}
		respondStatus(w, http.StatusCreated, co)
	}
}

func GetCompany(companies *company.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := auth.FromContext(r.Context())
		if c.CompanyID == "" {
			respondError(w, http.StatusNotFound, company.ErrNotFound.Error())
			return
		}
		co, err := companies.Get(r.Context(), c.CompanyID)
		if err != nil {
			respondErr(w, err)
			return
		}
		respondJSON(w, co)
	}
}

func UpdateCompanySettings(companies *company.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req company.Settings
		if !decodeJSON(w, r, &req) {
			return
		}
		c := auth.FromContext(r.Context())
		if c.CompanyID == "" {
			respondError(w, http.StatusNotFound, company.ErrNotFound.Error())
			return
		}
		co, err := companies.UpdateSettings(r.Context(), c.CompanyID, req)
		if err != nil {
			respondErr(w, err)
			return
		}
		lg.Infow("company settings updated", "company_id", co.ID, "by", c.Subject, "alerts_enabled", co.AlertsEnabled())
		respondJSON(w, co)
	}
}
