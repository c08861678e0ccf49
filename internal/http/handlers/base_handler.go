// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"brigade/internal/modules/catalog"
	"brigade/internal/modules/kitchen"
	"brigade/internal/modules/order"
	"brigade/internal/modules/scheduler"
	"brigade/internal/modules/stock"
	"brigade/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID accepts catalog codes and uuids: letters, digits, '-' and '_', at most 64 chars.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

// pathID reads a path parameter and writes 400 when it is not a valid id.
func pathID(c *gin.Context, name string) (types.ID, bool) {
	v := c.Param(name)
	if !isValidID(v) {
		writeError(c, http.StatusBadRequest, "invalid "+name)
		return "", false
	}
	return types.ID(v), true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeSchedulerError maps order and scheduler errors to status codes.
func writeSchedulerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrBadRequest), errors.Is(err, stock.ErrNegativeQuantity):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound), errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, scheduler.ErrRestaurantUnknown):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrInvalidReference), errors.Is(err, scheduler.ErrNoEmployeeForStage):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, order.ErrInvalidState), errors.Is(err, order.ErrConflict),
		errors.Is(err, scheduler.ErrActiveOrder), errors.Is(err, scheduler.ErrQueueEmpty),
		errors.Is(err, scheduler.ErrNoActiveOrder), errors.Is(err, scheduler.ErrOrderIncomplete),
		errors.Is(err, scheduler.ErrStepNotAdvanced), errors.Is(err, scheduler.ErrStockRegistrationFailed),
		errors.Is(err, scheduler.ErrStaleStep),
		errors.Is(err, kitchen.ErrBusy):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
