// README: Stock ledger handlers for restaurant staff.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"brigade/internal/types"
)

type StockLedger interface {
	Snapshot(ctx context.Context, restaurantID types.ID) (map[string]int, error)
	SetQuantity(ctx context.Context, restaurantID types.ID, ingredient string, qty int) error
}

type StockHandler struct {
	stock StockLedger
}

func NewStockHandler(stock StockLedger) *StockHandler {
	return &StockHandler{stock: stock}
}

func (h *StockHandler) List(c *gin.Context) {
	rid, ok := pathID(c, "rid")
	if !ok {
		return
	}
	snap, err := h.stock.Snapshot(c.Request.Context(), rid)
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"restaurant_id": rid, "stock": snap})
}

type quantityReq struct {
	Quantity *int `json:"quantity"`
}

func (h *StockHandler) Set(c *gin.Context) {
	rid, ok := pathID(c, "rid")
	if !ok {
		return
	}
	ingredient := c.Param("ingredient")
	if ingredient == "" {
		writeError(c, http.StatusBadRequest, "missing ingredient")
		return
	}
	var req quantityReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity == nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.stock.SetQuantity(c.Request.Context(), rid, ingredient, *req.Quantity); err != nil {
		writeSchedulerError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"ingredient": ingredient, "quantity": *req.Quantity})
}
