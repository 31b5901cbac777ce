package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"stockroom/internal/auth"
	"stockroom/internal/company"
	"stockroom/internal/identity"
	"stockroom/internal/models"
	"stockroom/internal/profile"
	"stockroom/internal/session"
)

type stateResponse struct {
	session.State
	Notices []session.Notice `json:"notices,omitempty"`
}

func stateBody(b *session.Bridge, n *session.Notices) stateResponse {
	return stateResponse{State: b.State(), Notices: n.List()}
}

type signUpReq struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Role        string  `json:"role,omitempty"`
	CompanyID   *string `json:"company_id,omitempty"`
	CompanyName string  `json:"company_name,omitempty"`
}

var errAdminJoin = errors.New("admins cannot join an existing company at sign-up")

// SignUp creates a credential and its profile. An admin signing up with company_name
// gets a new company with their address as the alert recipient; an admin never joins an
// existing company here. Technicians may name an existing company_id.
func SignUp(idp *identity.Service, profiles session.ProfileStore, companies *company.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signUpReq
		if !decodeJSON(w, r, &req) {
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Email == "" || req.Password == "" {
			respondErr(w, identity.ErrInvalidInput)
			return
		}
		req.Role = strings.TrimSpace(req.Role)
		if req.CompanyID != nil && strings.TrimSpace(*req.CompanyID) == "" {
			req.CompanyID = nil
		}
		fields := profile.Fields{FirstName: req.FirstName, LastName: req.LastName, Role: req.Role, CompanyID: req.CompanyID}
		if _, err := profile.New("", req.Email, fields); err != nil {
			respondErr(w, err)
			return
		}
		if req.CompanyID != nil {
			if req.Role == models.RoleAdmin {
				respondError(w, http.StatusForbidden, errAdminJoin.Error())
				return
			}
			if _, err := companies.Get(r.Context(), *req.CompanyID); err != nil {
				respondErr(w, err)
				return
			}
		}
		if req.Role == models.RoleAdmin && strings.TrimSpace(req.CompanyName) != "" {
			c, err := companies.Create(r.Context(), req.CompanyName, req.Email)
			if err != nil {
				respondErr(w, err)
				return
			}
			fields.CompanyID = &c.ID
		}

		notices := &session.Notices{}
		b := session.NewBridge(idp.Client(""), profiles, notices, lg)
		b.Start(r.Context())
		defer b.Close()

		if _, err := b.SignUp(r.Context(), req.Email, req.Password, fields); err != nil {
			respondErr(w, err)
			return
		}
		respondStatus(w, http.StatusCreated, stateBody(b, notices))
	}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func Login(idp *identity.Service, profiles session.ProfileStore, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if !decodeJSON(w, r, &req) {
			return
		}
		notices := &session.Notices{}
		b := session.NewBridge(idp.Client(""), profiles, notices, lg)
		b.Start(r.Context())
		defer b.Close()

		if _, err := b.SignIn(r.Context(), req.Email, req.Password); err != nil {
			respondErr(w, err)
			return
		}
		respondJSON(w, stateBody(b, notices))
	}
}

// Session returns the bridge state resolved by the session middleware.
func Session() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, notices := session.FromContext(r.Context())
		if b == nil {
			respondError(w, http.StatusUnauthorized, "no session")
			return
		}
		respondJSON(w, stateBody(b, notices))
	}
}

func Logout(lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, _ := session.FromContext(r.Context())
		if b == nil {
			respondError(w, http.StatusUnauthorized, "no session")
			return
		}
		if err := b.SignOut(r.Context()); err != nil {
			lg.Warnw("logout", "user_id", auth.Subject(r.Context()), "error", err)
		}
		respondJSON(w, map[string]any{"signed_out": true})
	}
}

// Refresh swaps the presented token for a new one and revokes the old session.
func Refresh(idp *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := auth.BearerToken(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		s, err := idp.Client(raw).Refresh(r.Context())
		if err != nil {
			respondErr(w, err)
			return
		}
		respondJSON(w, s)
	}
}

func Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, _ := session.FromContext(r.Context())
		if b == nil {
			respondError(w, http.StatusUnauthorized, "no session")
			return
		}
		st := b.State()
		if st.Profile == nil {
			respondError(w, http.StatusNotFound, profile.ErrNotFound.Error())
			return
		}
		respondJSON(w, st.Profile)
	}
}
