// README: Completed order archive listing.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"brigade/internal/modules/history"
	"brigade/internal/types"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

type HistoryReader interface {
	ListByRestaurant(ctx context.Context, restaurantID types.ID, limit int) ([]history.Record, error)
}

type HistoryHandler struct {
	history HistoryReader
}

func NewHistoryHandler(h HistoryReader) *HistoryHandler {
	return &HistoryHandler{history: h}
}

// List returns the most recently completed orders first.
func (h *HistoryHandler) List(c *gin.Context) {
	rid, ok := pathID(c, "rid")
	if !ok {
		return
	}
	limit := defaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	recs, err := h.history.ListByRestaurant(c.Request.Context(), rid, limit)
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	if recs == nil {
		recs = []history.Record{}
	}
	writeJSON(c, http.StatusOK, map[string]any{"restaurant_id": rid, "orders": recs})
}
