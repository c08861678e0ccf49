// README: Kitchen handlers: queue view, dispatch, single steps, completion and full runs.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"brigade/internal/modules/kitchen"
	"brigade/internal/modules/scheduler"
	"brigade/internal/types"
)

type KitchenHandler struct {
	scheduler *scheduler.Service
	driver    *kitchen.Driver
}

func NewKitchenHandler(sched *scheduler.Service, driver *kitchen.Driver) *KitchenHandler {
	return &KitchenHandler{scheduler: sched, driver: driver}
}

func (h *KitchenHandler) Queue(c *gin.Context) {
	rid, ok := pathID(c, "rid")
	if !ok {
		return
	}
	resp := map[string]any{
		"queued":   nonNil(h.scheduler.ListQueued(rid)),
		"deferred": nonNil(h.scheduler.Deferred(rid)),
	}
	if snap, ok := h.scheduler.ActiveSnapshot(rid); ok {
		resp["active"] = snap
	}
	writeJSON(c, http.StatusOK, resp)
}

func (h *KitchenHandler) Start(c *gin.Context) {
	rid, ok := pathID(c, "rid")
	if !ok {
		return
	}
	snap, err := h.scheduler.StartNext(c.Request.Context(), rid)
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, snap)
}

func (h *KitchenHandler) Next(c *gin.Context) {
	rid, ok := pathID(c, "rid")
	if !ok {
		return
	}
	if _, ok := h.scheduler.ActiveSnapshot(rid); !ok {
		writeSchedulerError(c, scheduler.ErrNoActiveOrder)
		return
	}
	step, ok := h.scheduler.GuardedRetrieveNext(rid)
	if !ok {
		writeJSON(c, http.StatusOK, map[string]any{"complete": true})
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"complete": false, "step": step})
}

// Step processes the next stage of the active order with the employee on that duty.
func (h *KitchenHandler) Step(c *gin.Context) {
	rid, ok := pathID(c, "rid")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	orderID, ok := h.scheduler.ActiveTracker(rid)
	if !ok {
		writeSchedulerError(c, scheduler.ErrNoActiveOrder)
		return
	}
	step, ok := h.scheduler.GuardedRetrieveNext(rid)
	if !ok {
		writeSchedulerError(c, scheduler.ErrOrderIncomplete)
		return
	}
	employeeID, err := h.scheduler.ObtainEmployeeForStage(ctx, rid, step.Stage)
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	res, err := h.scheduler.ProcessCurrentStep(ctx, rid, employeeID, step, orderID)
	if delayed, ok := scheduler.IsDelayed(err); ok {
		writeJSON(c, http.StatusAccepted, map[string]any{
			"order_id":            delayed.OrderID,
			"delayed":             true,
			"wait_time":           delayed.NewWaitTime,
			"missing_ingredients": delayed.Missing,
		})
		return
	}
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{
		"order_id":      orderID,
		"step":          step,
		"employee_id":   employeeID,
		"proposal_done": res.ProposalDone,
		"order_done":    res.OrderDone,
	})
}

func (h *KitchenHandler) Complete(c *gin.Context) {
	rid, ok := pathID(c, "rid")
	if !ok {
		return
	}
	o, err := h.scheduler.Complete(c.Request.Context(), rid)
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, viewOf(o))
}

// Run drives the current or next order to completion or delay within the request.
func (h *KitchenHandler) Run(c *gin.Context) {
	rid, ok := pathID(c, "rid")
	if !ok {
		return
	}
	out, err := h.driver.RunOrder(c.Request.Context(), rid)
	if err != nil {
		writeSchedulerError(c, err)
		return
	}
	status := http.StatusOK
	if out.Delayed != nil {
		status = http.StatusAccepted
	}
	writeJSON(c, status, out)
}

func nonNil(v []types.ID) []types.ID {
	if v == nil {
		return []types.ID{}
	}
	return v
}
