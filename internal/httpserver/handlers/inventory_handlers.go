package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"stockroom/internal/inventory"
	"stockroom/internal/models"
)

func CreateItem(items *inventory.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req inventory.CreateInput
		if !decodeJSON(w, r, &req) {
			return
		}
		it, err := items.Create(r.Context(), actorFrom(r), req)
		if err != nil {
			respondErr(w, err)
			return
		}
		respondStatus(w, http.StatusCreated, it)
	}
}

func ListItems(items *inventory.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := inventory.ListFilter{TechnicianID: q.Get("technician_id"), LowOnly: q.Get("low") == "1"}
		list, err := items.List(r.Context(), actorFrom(r), f)
		if err != nil {
			lg.Errorw("list items", "error", err)
			respondErr(w, err)
			return
		}
		respondJSON(w, list)
	}
}

func GetItem(items *inventory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		it, err := items.Get(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
		if err != nil {
			respondErr(w, err)
			return
		}
		respondJSON(w, it)
	}
}

func UpdateItem(items *inventory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req inventory.UpdateInput
		if !decodeJSON(w, r, &req) {
			return
		}
		it, err := items.Update(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req)
		if err != nil {
			respondErr(w, err)
			return
		}
		respondJSON(w, it)
	}
}

type quantityReq struct {
	inventory.QuantityChange
	Quantity *int `json:"quantity,omitempty"`
	Delta    *int `json:"delta,omitempty"`
}

// ChangeQuantity accepts either an absolute quantity or a delta, not both.
func ChangeQuantity(items *inventory.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req quantityReq
		if !decodeJSON(w, r, &req) {
			return
		}
		id := chi.URLParam(r, "id")
		actor := actorFrom(r)

		var it *models.InventoryItem
		var err error
		switch {
		case req.Quantity != nil && req.Delta == nil:
			it, err = items.SetQuantity(r.Context(), actor, id, *req.Quantity, req.QuantityChange)
		case req.Delta != nil && req.Quantity == nil:
			it, err = items.Adjust(r.Context(), actor, id, *req.Delta, req.QuantityChange)
		default:
			respondError(w, http.StatusBadRequest, "exactly one of quantity or delta required")
			return
		}
		if err != nil {
			respondErr(w, err)
			return
		}
		lg.Infow("quantity changed", "item_id", id, "actor", actor.ID, "reason", req.Reason)
		respondJSON(w, it)
	}
}

func DeleteItem(items *inventory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := items.Delete(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
			respondErr(w, err)
			return
		}
		respondJSON(w, map[string]any{"deleted": true})
	}
}
