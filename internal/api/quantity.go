package api

import (
	"database/sql"
	"net/http"

	"github.com/pantrylog/pantrylog/internal/lifecycle"
	"github.com/pantrylog/pantrylog/internal/model"
	"github.com/pantrylog/pantrylog/internal/store"
	"github.com/pantrylog/pantrylog/internal/units"
)

// QuantityHandler handles the quantity endpoints.
type QuantityHandler struct {
	DB  *sql.DB
	Svc *lifecycle.Service
}

type setQuantityRequest struct {
	QtyType  string `json:"qty_type"`
	QtyUnit  string `json:"qty_unit"`
	QtyValue string `json:"qty_value"`
}

type adjustQuantityRequest struct {
	Delta float64 `json:"delta"`
	Unit  string  `json:"unit"`
}

// quantityResponse reports the outcome of a quantity write. Deleted means
// the item no longer exists; Item is nil in that case.
type quantityResponse struct {
	Deleted bool        `json:"deleted"`
	Item    *model.Item `json:"item,omitempty"`
}

// Set handles PUT /api/items/{id}/quantity. Setting zero is rejected here:
// an explicit quantity write keeps the item, running it out goes through
// adjust.
func (h *QuantityHandler) Set(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id := r.PathValue("id")

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil || item.UserID != claims.UserID {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	var req setQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	qty, err := parseQuantity(req.QtyType, req.QtyUnit, req.QtyValue)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "quantity must be a number")
		return
	}
	if qty == nil {
		jsonError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	res, err := h.Svc.SetQuantity(r.Context(), id, *qty)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to set quantity")
		return
	}

	h.respond(w, r, id, res)
}

// Adjust handles POST /api/items/{id}/quantity/adjust.
func (h *QuantityHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	id := r.PathValue("id")

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item != nil && item.UserID != claims.UserID {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	// A missing item falls through: adjusting something already consumed is
	// a clean "deleted" answer, not an error.

	var req adjustQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Delta == 0 {
		jsonError(w, http.StatusBadRequest, "non-zero delta required")
		return
	}

	res, err := h.Svc.Adjust(r.Context(), id, store.AdjustInput{Delta: req.Delta, Unit: req.Unit})
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to adjust quantity")
		return
	}

	h.respond(w, r, id, res)
}

func (h *QuantityHandler) respond(w http.ResponseWriter, r *http.Request, id string, res store.QuantityResult) {
	if res.Deleted {
		jsonResponse(w, http.StatusOK, quantityResponse{Deleted: true})
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	jsonResponse(w, http.StatusOK, quantityResponse{Item: item})
}

// QuickSteps handles GET /api/quick-steps: the adjustment shortcuts for a
// quantity type.
func (h *QuantityHandler) QuickSteps(w http.ResponseWriter, r *http.Request) {
	qtyType := model.ClampQtyType(model.QtyType(r.URL.Query().Get("type")))
	jsonResponse(w, http.StatusOK, map[string]any{
		"type":  qtyType,
		"steps": units.QuickSteps(qtyType),
	})
}
