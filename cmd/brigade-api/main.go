// README: Entry point; loads config, wires stores and the scheduler, starts the kitchen driver and HTTP server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"brigade/internal/config"
	httptransport "brigade/internal/http"
	"brigade/internal/infra"
	"brigade/internal/logger"
	"brigade/internal/modules/catalog"
	"brigade/internal/modules/history"
	"brigade/internal/modules/kitchen"
	"brigade/internal/modules/order"
	"brigade/internal/modules/scheduler"
	"brigade/internal/modules/staff"
	"brigade/internal/modules/stock"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLog := logger.New("brigade-api")

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		log.Fatal(err)
	}
	defer redisClient.Close()

	var events history.Publisher = history.NopPublisher{}
	if cfg.AMQP.URL != "" {
		broker, err := infra.NewAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Fatalf("amqp init: %v", err)
		}
		defer broker.Close()
		events = history.NewAMQPPublisher(broker, cfg.AMQP.Exchange)
	} else {
		appLog.Warn(ctx, "startup", "BRIGADE_AMQP_URL not set; kitchen events are not published", nil)
	}

	// the scheduler publishes under its per-restaurant lock; the outbox keeps the broker off that path
	outbox := history.NewOutbox(events, 1024, logger.New("events"))
	outboxDone := make(chan struct{})
	go func() {
		outbox.Run()
		close(outboxDone)
	}()

	catalogStore := catalog.NewStore(dbPool)
	stockStore := stock.NewStore(redisClient)
	historyStore := history.NewStore(dbPool)
	orderStore := order.NewStore(dbPool)
	pending := order.NewPending()

	orderSvc := order.NewService(pending, catalogStore)
	schedulerSvc := scheduler.NewService(scheduler.Deps{
		Pending: pending,
		Orders:  orderStore,
		Catalog: catalogStore,
		Stock:   stockStore,
		Staff:   staff.NewStore(dbPool),
		History: historyStore,
		Events:  outbox,
		Log:     logger.New("scheduler"),
	}, cfg.Kitchen)

	driver := kitchen.NewDriver(schedulerSvc, cfg.Kitchen, logger.New("kitchen"))

	gin.SetMode(gin.ReleaseMode)
	router := httptransport.NewRouter(httptransport.RouterDeps{
		Order:     orderSvc,
		Orders:    orderStore,
		Scheduler: schedulerSvc,
		Driver:    driver,
		Stock:     stockStore,
		History:   historyStore,
		Log:       appLog,
	})

	go driver.Run(ctx)

	appLog.Info(ctx, "startup", "listening", map[string]any{"addr": cfg.HTTP.Addr})
	if err := httptransport.NewServer(cfg.HTTP.Addr, router).Run(ctx); err != nil {
		log.Fatal(err)
	}
	driver.Wait()
	outbox.Close()
	<-outboxDone
}
