// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"brigade/internal/http/handlers"
	"brigade/internal/http/middleware"
	"brigade/internal/logger"
	"brigade/internal/modules/kitchen"
	"brigade/internal/modules/order"
	"brigade/internal/modules/scheduler"
)

type RouterDeps struct {
	Order     *order.Service
	Orders    handlers.OrderReader
	Scheduler *scheduler.Service
	Driver    *kitchen.Driver
	Stock     handlers.StockLedger
	History   handlers.HistoryReader
	Log       *logger.Logger
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(d.Log), middleware.Logging(d.Log))

	api := r.Group("/api/restaurants/:rid")

	orderHandler := handlers.NewOrderHandler(d.Order, d.Orders, d.Scheduler)
	api.POST("/orders", orderHandler.Create)
	api.GET("/orders/:id", orderHandler.Get)
	api.DELETE("/orders/:id", orderHandler.Cancel)
	api.POST("/orders/:id/notes", orderHandler.AppendNote)
	api.PUT("/orders/:id/taxpayer", orderHandler.SetTaxpayer)
	api.PUT("/orders/:id/service-type", orderHandler.SetServiceType)
	api.POST("/orders/:id/items", orderHandler.AddItem)
	api.GET("/orders/:id/summary", orderHandler.Summary)
	api.POST("/orders/:id/register", orderHandler.Register)
	api.PUT("/orders/:id/wait-time", orderHandler.SetWaitTime)

	kitchenHandler := handlers.NewKitchenHandler(d.Scheduler, d.Driver)
	api.GET("/queue", kitchenHandler.Queue)
	api.POST("/kitchen/start", kitchenHandler.Start)
	api.GET("/kitchen/next", kitchenHandler.Next)
	api.POST("/kitchen/step", kitchenHandler.Step)
	api.POST("/kitchen/complete", kitchenHandler.Complete)
	api.POST("/kitchen/run", kitchenHandler.Run)

	stockHandler := handlers.NewStockHandler(d.Stock)
	api.GET("/stock", stockHandler.List)
	api.PUT("/stock/:ingredient", stockHandler.Set)

	historyHandler := handlers.NewHistoryHandler(d.History)
	api.GET("/history", historyHandler.List)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return r
}
