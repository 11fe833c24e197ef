package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/avetra/appointment-booking/internal/config"
	"github.com/avetra/appointment-booking/internal/database"
	"github.com/avetra/appointment-booking/internal/engine"
	"github.com/avetra/appointment-booking/internal/handler"
	"github.com/avetra/appointment-booking/internal/queue"
	"github.com/avetra/appointment-booking/internal/repository"
	"github.com/avetra/appointment-booking/internal/router"
	"github.com/avetra/appointment-booking/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable, caching and rate limiting disabled")
	}

	publisher := service.NewQueuePublisher(service.BrokerURL())
	defer publisher.Close()

	store := repository.NewStore(db)
	eng := engine.New(store,
		engine.WithHoldTTL(cfg.HoldTTL),
		engine.WithEventPublisher(publisher),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go eng.RunSweeper(ctx, cfg.SweepInterval)
	go func() {
		if err := queue.StartConsumer(service.BrokerURL()); err != nil {
			log.Printf("event consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	router.Register(e, router.Handlers{
		Holds:        handler.NewHoldHandler(eng),
		Bookings:     handler.NewBookingHandler(eng),
		Availability: handler.NewAvailabilityHandler(eng),
	}, cfg.JWTSecret, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	go func() {
		if err := e.Start(addr); err != nil {
			log.Printf("server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
