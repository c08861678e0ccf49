// README: Initial wait-time estimate for a newly registered order.
package scheduler

import "math"

const (
	baseEstimateMin   = 5.0
	itemWeightMin     = 5.0
	perBusyKitchenMin = 2.0
)

// ItemFactor grows with the item count but saturates: 5·ln(n+1)·n/(n+1).
func ItemFactor(n int) float64 {
	if n <= 0 {
		return 0
	}
	f := float64(n)
	return itemWeightMin * math.Log(f+1) * f / (f + 1)
}

// InitialEstimate is the wait time assigned at registration. busyRestaurants counts
// every restaurant with a non-empty wait queue, not only the ordering one.
func InitialEstimate(items, busyRestaurants int) float64 {
	return baseEstimateMin + ItemFactor(items) + perBusyKitchenMin*float64(busyRestaurants)
}
