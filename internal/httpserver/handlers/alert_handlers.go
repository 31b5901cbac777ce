package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"stockroom/internal/alert"
	"stockroom/internal/auth"
)

// AlertIntents shows recent outbox rows for the admin's company, optionally by status.
func AlertIntents(outbox *alert.Outbox, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit <= 0 || limit > 200 {
			limit = 50
		}
		c := auth.FromContext(r.Context())
		rows, err := outbox.List(r.Context(), c.CompanyID, q.Get("status"), limit)
		if err != nil {
			lg.Errorw("list alert intents", "company_id", c.CompanyID, "error", err)
			respondErr(w, err)
			return
		}
		respondJSON(w, rows)
	}
}
