package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mkravets/parts_store/internal/cart"
	"github.com/mkravets/parts_store/internal/config"
	"github.com/mkravets/parts_store/internal/es"
	"github.com/mkravets/parts_store/internal/handlers"
	authhdl "github.com/mkravets/parts_store/internal/handlers/auth"
	carthdl "github.com/mkravets/parts_store/internal/handlers/cart"
	"github.com/mkravets/parts_store/internal/handlers/operator"
	"github.com/mkravets/parts_store/internal/handlers/storekeeper"
	"github.com/mkravets/parts_store/internal/logging"
	"github.com/mkravets/parts_store/internal/mykafka"
	"github.com/mkravets/parts_store/internal/orders"
	"github.com/mkravets/parts_store/internal/service"
	httpserver "github.com/mkravets/parts_store/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	jwtSecret := []byte(configuration.JWT_SECRET)
	refreshSecret := []byte(configuration.REFRESH_SECRET)

	producer := mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}

	engine := &orders.Engine{DB: db, Codes: orders.NewCodeSource()}
	sessions := cart.NewStore(24 * time.Hour)
	tokens := &service.TokenService{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), httpserver.RequestLogger(logger))

	deps := httpserver.Deps{
		DB:             db,
		AuthHandler:    &authhdl.AuthHandler{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret, Producer: producer},
		CatalogHandler: &handlers.CatalogHandler{DB: db},
		SearchHandler:  &handlers.SearchHandler{ES: esClient, Index: "product"},
		CartHandler:    &carthdl.CartHandler{DB: db, Engine: engine, Sessions: sessions, Producer: producer},
		OperatorHandler: &operator.OperatorHandler{
			DB: db, Engine: engine, Producer: producer,
		},
		StorekeeperHandler: &storekeeper.StorekeeperHandler{
			DB: db, Engine: engine, Producer: producer,
		},
		TokenService: tokens,
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         configuration.HTTP_ADDR,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := producer.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
