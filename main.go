package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expensight/cache"
	"expensight/config"
	"expensight/database"
	"expensight/middleware"
	"expensight/router"
	"expensight/service"
	"expensight/store"
)

// @title Expensight API
// @version 1.0
// @description Spending aggregation, budgets and analytics snapshots for personal expenses
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

var (
	configFile  string
	port        string
	showVersion bool
)

func init() {
	flag.StringVar(&configFile, "config", "", "external config file (optional)")
	flag.StringVar(&configFile, "c", "", "external config file (shorthand)")
	flag.StringVar(&port, "port", "", "listen port, e.g. 8080 or :8080")
	flag.StringVar(&port, "p", "", "listen port (shorthand)")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.BoolVar(&showVersion, "v", false, "print version (shorthand)")
}

func main() {
	flag.Parse()

	if showVersion {
		log.Println("expensight v1.0.0")
		return
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if port != "" {
		cfg.Server.Port = port
		log.Printf("port from command line: %s", port)
	}

	config.PrintConfig()

	if err := database.Init(cfg); err != nil {
		log.Fatalf("database init: %v", err)
	}

	middleware.InitJWT(cfg)

	st := store.New(database.GetDB())
	analysis := service.NewAnalysisService(st, cfg.Analytics)

	if cfg.AMQP.Enabled {
		publisher, err := service.NewAMQPPublisher(cfg.AMQP)
		if err != nil {
			log.Printf("warning: snapshot events disabled: %v", err)
		} else {
			defer publisher.Close()
			analysis.SetPublisher(publisher)
		}
	}
	if cfg.Email.Enabled {
		analysis.SetAlerter(service.NewEmailService(&cfg.Email))
	}

	coach := service.NewCoachService(cfg.Coach, analysis, st)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go cache.RunJanitor(ctx, time.Minute, analysis.Cache())

	r := router.SetupRouter(cfg, router.Services{
		Store:    st,
		Analysis: analysis,
		Coach:    coach,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: r,
	}

	log.Printf("==========================================")
	log.Printf("  expensight started")
	log.Printf("==========================================")
	log.Printf("  Swagger:  http://localhost%s/swagger/index.html", cfg.Server.Addr())
	log.Printf("  API:      http://localhost%s/api/v1/", cfg.Server.Addr())
	log.Printf("==========================================")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
