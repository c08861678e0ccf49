// README: Scheduler error taxonomy. OrderDelayedError is a control-flow signal, not a defect.
package scheduler

import (
	"errors"
	"fmt"
	"strings"

	"brigade/internal/modules/order"
	"brigade/internal/types"
)

var (
	ErrOrderNotFound    = order.ErrNotFound
	ErrInvalidReference = order.ErrInvalidReference

	// Fatal to the current preparation session: the active tracker is discarded.
	ErrStepNotAdvanced         = errors.New("step could not be advanced")
	ErrStockRegistrationFailed = errors.New("ingredient usage could not be registered")

	ErrActiveOrder        = errors.New("restaurant already has an order in preparation")
	ErrQueueEmpty         = errors.New("wait queue is empty")
	ErrNoActiveOrder      = errors.New("no order in preparation")
	ErrOrderIncomplete    = errors.New("order still has stages to prepare")
	ErrRestaurantUnknown  = errors.New("restaurant unknown")
	ErrNoEmployeeForStage = errors.New("no employee assigned to stage")
	ErrStaleStep          = errors.New("step was already processed")
)

// OrderDelayedError reports a stock shortfall at the first stage of a proposal.
// The tracker has been deferred and the order re-offered with NewWaitTime.
type OrderDelayedError struct {
	OrderID     types.ID `json:"order_id"`
	NewWaitTime float64  `json:"wait_time"`
	Missing     []string `json:"missing_ingredients"`
}

func (e *OrderDelayedError) Error() string {
	return fmt.Sprintf("order %s delayed to %.1f min, missing: %s",
		e.OrderID, e.NewWaitTime, strings.Join(e.Missing, ", "))
}
