package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"stockroom/internal/auth"
	"stockroom/internal/inventory"
)

// Movements lists the caller's stock movements; admins pass all=1 for the whole company.
func Movements(items *inventory.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		f := inventory.MovementFilter{
			ItemID: q.Get("item_id"),
			All:    q.Get("all") == "1" && auth.FromContext(r.Context()).HasRole("admin"),
			Limit:  limit,
		}
		rows, err := items.Movements(r.Context(), actorFrom(r), f)
		if err != nil {
			lg.Errorw("list movements", "error", err)
			respondErr(w, err)
			return
		}
		respondJSON(w, rows)
	}
}
