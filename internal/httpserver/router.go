package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"stockroom/internal/alert"
	"stockroom/internal/auth"
	"stockroom/internal/company"
	"stockroom/internal/httpserver/handlers"
	"stockroom/internal/identity"
	"stockroom/internal/inventory"
	"stockroom/internal/metrics"
	"stockroom/internal/notify"
	"stockroom/internal/profile"
	"stockroom/internal/session"
)

// Deps is everything the router wires into handlers.
type Deps struct {
	DB         *gorm.DB
	Identity   *identity.Service
	Profiles   profile.Store
	Companies  *company.Service
	Inventory  *inventory.Service
	Outbox     *alert.Outbox
	Mail       notify.Sender
	MailToken  string
	CORSOrigin string
	Metrics    *metrics.Metrics
	Log        *zap.SugaredLogger
}

func NewRouter(d Deps) http.Handler {
	lg := d.Log
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger(lg), middleware.Recoverer)

	r.Get("/healthz", handlers.Healthz())
	r.Get("/readyz", handlers.Readyz(d.DB))
	r.Handle("/metrics", d.Metrics.Handler())
	r.HandleFunc("/functions/v1/send-email", notify.Handler(d.Mail, d.MailToken, d.CORSOrigin, lg))

	r.Post("/v1/auth/signup", handlers.SignUp(d.Identity, d.Profiles, d.Companies, lg))
	r.Post("/v1/auth/login", handlers.Login(d.Identity, d.Profiles, lg))
	r.Post("/v1/auth/refresh", handlers.Refresh(d.Identity))

	r.Group(func(protected chi.Router) {
		protected.Use(session.Middleware(d.Identity, d.Profiles, lg))
		protected.Get("/v1/auth/session", handlers.Session())
		protected.Post("/v1/auth/logout", handlers.Logout(lg))
		protected.Get("/v1/me", handlers.Me())
		protected.Get("/v1/company", handlers.GetCompany(d.Companies))

		protected.Get("/v1/items", handlers.ListItems(d.Inventory, lg))
		protected.Post("/v1/items", handlers.CreateItem(d.Inventory, lg))
		protected.Get("/v1/items/{id}", handlers.GetItem(d.Inventory))
		protected.Patch("/v1/items/{id}", handlers.UpdateItem(d.Inventory))
		protected.Post("/v1/items/{id}/quantity", handlers.ChangeQuantity(d.Inventory, lg))
		protected.Delete("/v1/items/{id}", handlers.DeleteItem(d.Inventory))
		protected.Get("/v1/movements", handlers.Movements(d.Inventory, lg))

		protected.Group(func(admin chi.Router) {
			admin.Use(auth.RequireRole("admin"))
			admin.Post("/v1/admin/company", handlers.CreateCompany(d.Companies, d.Profiles, lg))
			admin.Patch("/v1/admin/company", handlers.UpdateCompanySettings(d.Companies, lg))
			admin.Get("/v1/admin/profiles", handlers.ListProfiles(d.Profiles, lg))
			admin.Patch("/v1/admin/profiles/{id}", handlers.UpdateProfile(d.Profiles, lg))
			admin.Get("/v1/admin/alerts", handlers.AlertIntents(d.Outbox, lg))
		})
	})
	return r
}
