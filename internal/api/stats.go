package api

import (
	"database/sql"
	"net/http"

	"github.com/pantrylog/pantrylog/internal/store"
)

// StatsHandler handles the dashboard counters.
type StatsHandler struct {
	DB *sql.DB
}

// Counters handles GET /api/stats.
func (h *StatsHandler) Counters(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	counters, err := store.GetCounters(r.Context(), h.DB, claims.UserID)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get counters")
		return
	}
	jsonResponse(w, http.StatusOK, counters)
}
