// README: Order handlers: pending-order editing, registration and wait-time re-offer.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"brigade/internal/modules/order"
	"brigade/internal/modules/scheduler"
	"brigade/internal/types"
)

type OrderReader interface {
	Get(ctx context.Context, id types.ID) (*order.Order, error)
}

type OrderHandler struct {
	order     *order.Service
	orders    OrderReader
	scheduler *scheduler.Service
}

func NewOrderHandler(svc *order.Service, orders OrderReader, sched *scheduler.Service) *OrderHandler {
	return &OrderHandler{order: svc, orders: orders, scheduler: sched}
}

type orderView struct {
	OrderID        types.ID   `json:"order_id"`
	RestaurantID   types.ID   `json:"restaurant_id"`
	Status         string     `json:"status"`
	WaitTime       float64    `json:"wait_time"`
	TaxpayerNumber *string    `json:"taxpayer_number,omitempty"`
	Notes          string     `json:"notes"`
	ServiceType    string     `json:"service_type,omitempty"`
	Proposals      []types.ID `json:"proposals"`
	Menus          []types.ID `json:"menus"`
	CreatedAt      time.Time  `json:"created_at"`
	RegisteredAt   *time.Time `json:"registered_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func viewOf(o *order.Order) orderView {
	v := orderView{
		OrderID:        o.ID,
		RestaurantID:   o.RestaurantID,
		Status:         string(o.Status),
		WaitTime:       o.WaitTime,
		TaxpayerNumber: o.TaxpayerNumber,
		Notes:          o.Notes,
		ServiceType:    string(o.ServiceType),
		Proposals:      o.Proposals,
		Menus:          o.Menus,
		CreatedAt:      o.CreatedAt,
		RegisteredAt:   o.RegisteredAt,
		CompletedAt:    o.CompletedAt,
	}
	if v.Proposals == nil {
		v.Proposals = []types.ID{}
	}
	if v.Menus == nil {
		v.Menus = []types.ID{}
	}
	return v
}

func (h *OrderHandler) Create(c *gin.Context) {
	rid, ok := pathID(c, "rid")
	if !ok {
		return
	}
	id, err := h.order.Create(rid)
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"order_id": id, "status": order.StatusPending})
}

// lookup finds a pending order first, then a registered one of the same restaurant.
func (h *OrderHandler) lookup(c *gin.Context) (*order.Order, bool) {
	rid, id, ok := ids(c)
	if !ok {
		return nil, false
	}
	o, err := h.order.Get(id, rid)
	if errors.Is(err, order.ErrNotFound) {
		o, err = h.orders.Get(c.Request.Context(), id)
		if err == nil && o.RestaurantID != rid {
			err = order.ErrNotFound
		}
	}
	if err != nil {
		writeSchedulerError(c, err)
		return nil, false
	}
	return o, true
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, ok := h.lookup(c)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, viewOf(o))
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	rid, id, ok := ids(c)
	if !ok {
		return
	}
	h.order.Cancel(id, rid)
	c.Status(http.StatusNoContent)
}

type noteReq struct {
	Note string `json:"note"`
}

func (h *OrderHandler) AppendNote(c *gin.Context) {
	rid, id, ok := ids(c)
	if !ok {
		return
	}
	var req noteReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Note == "" {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.order.AppendNote(order.NoteCommand{OrderID: id, RestaurantID: rid, Note: req.Note}); err != nil {
		writeSchedulerError(c, err)
		return
	}
	h.respondPending(c, id, rid)
}

type taxpayerReq struct {
	Number string `json:"number"`
}

func (h *OrderHandler) SetTaxpayer(c *gin.Context) {
	rid, id, ok := ids(c)
	if !ok {
		return
	}
	var req taxpayerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.order.SetTaxpayerNumber(order.TaxpayerCommand{OrderID: id, RestaurantID: rid, Number: req.Number}); err != nil {
		writeSchedulerError(c, err)
		return
	}
	h.respondPending(c, id, rid)
}

type serviceTypeReq struct {
	ServiceType string `json:"service_type"`
}

func (h *OrderHandler) SetServiceType(c *gin.Context) {
	rid, id, ok := ids(c)
	if !ok {
		return
	}
	var req serviceTypeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.order.SetServiceType(order.ServiceTypeCommand{OrderID: id, RestaurantID: rid, ServiceType: req.ServiceType}); err != nil {
		writeSchedulerError(c, err)
		return
	}
	h.respondPending(c, id, rid)
}

type addItemReq struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func (h *OrderHandler) AddItem(c *gin.Context) {
	rid, id, ok := ids(c)
	if !ok {
		return
	}
	var req addItemReq
	if err := c.ShouldBindJSON(&req); err != nil || !isValidID(req.ID) {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.order.AddItem(c.Request.Context(), order.AddItemCommand{
		OrderID:      id,
		RestaurantID: rid,
		Kind:         order.ItemKind(req.Kind),
		ItemID:       types.ID(req.ID),
	})
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	h.respondPending(c, id, rid)
}

func (h *OrderHandler) Summary(c *gin.Context) {
	o, ok := h.lookup(c)
	if !ok {
		return
	}
	sum, err := h.order.Summarize(c.Request.Context(), o)
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{
		"order_id":  sum.OrderID,
		"total":     sum.Total.Amount.StringFixed(2),
		"currency":  sum.Total.Currency,
		"allergens": sum.Allergens,
		"items":     sum.Items,
	})
}

func (h *OrderHandler) Register(c *gin.Context) {
	rid, id, ok := ids(c)
	if !ok {
		return
	}
	o, err := h.scheduler.Register(c.Request.Context(), id, rid)
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOf(o))
}

type waitTimeReq struct {
	WaitTime *float64 `json:"wait_time"`
}

func (h *OrderHandler) SetWaitTime(c *gin.Context) {
	rid, id, ok := ids(c)
	if !ok {
		return
	}
	var req waitTimeReq
	if err := c.ShouldBindJSON(&req); err != nil || req.WaitTime == nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.scheduler.RegisterNewWaitTime(c.Request.Context(), *req.WaitTime, id, rid); err != nil {
		writeSchedulerError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"order_id": id, "wait_time": *req.WaitTime, "status": order.StatusQueued})
}

func (h *OrderHandler) respondPending(c *gin.Context, id, rid types.ID) {
	o, err := h.order.Get(id, rid)
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOf(o))
}

func ids(c *gin.Context) (types.ID, types.ID, bool) {
	rid, ok := pathID(c, "rid")
	if !ok {
		return "", "", false
	}
	id, ok := pathID(c, "id")
	if !ok {
		return "", "", false
	}
	return rid, id, true
}
