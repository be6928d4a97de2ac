package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chinmaymk2005/my-local-shop/config"
	"github.com/chinmaymk2005/my-local-shop/internal/api"
	"github.com/chinmaymk2005/my-local-shop/internal/broker"
	"github.com/chinmaymk2005/my-local-shop/internal/redisclient"
	"github.com/chinmaymk2005/my-local-shop/internal/scheduler"
	"github.com/chinmaymk2005/my-local-shop/internal/service"
	"github.com/chinmaymk2005/my-local-shop/internal/store"
	"github.com/chinmaymk2005/my-local-shop/internal/util"
	"github.com/chinmaymk2005/my-local-shop/internal/worker"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting localshop service")

	tp, err := util.InitTracer("localshop-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)
	inventoryClient := service.NewInventoryClient(db, redisClient)

	// The scheduler and the order service reference each other: the service
	// arms timers, the timers fire the service's expire path.
	var orderService *service.OrderService
	deadlines := scheduler.New(func(ctx context.Context, orderID int64) error {
		return orderService.ExpireOrder(ctx, orderID)
	}, cfg.Orders.ExpireRetries, cfg.Orders.ExpireRetryBackoff)

	orderService = service.NewOrderService(db, inventoryClient, deadlines, eventPublisher, cfg.Orders)
	shopService := service.NewShopService(db, inventoryClient, cfg.Geo.DefaultRadiusKm)

	ctx := context.Background()
	if err := inventoryClient.SyncStockToRedis(ctx); err != nil {
		log.Printf("Failed to seed stock counters: %v", err)
	}
	if err := orderService.RearmPending(ctx); err != nil {
		log.Printf("Failed to re-arm pending deadline timers: %v", err)
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	notifyConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	notifyWorker := worker.NewNotificationWorker(notifyConsumer)
	go func() {
		if err := notifyWorker.Start(workerCtx); err != nil {
			log.Printf("Notification worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(orderService, shopService, api.InsecureVerifier{})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	deadlines.Drain()
	workerCancel()
	notifyWorker.Stop()

	log.Println("Server exited")
}
