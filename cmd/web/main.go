package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"staffdesk.org/internal/auth"
	"staffdesk.org/internal/config"
	"staffdesk.org/internal/obs"
	"staffdesk.org/internal/store/pg"
	"staffdesk.org/internal/web"
)

var (
	version = "1.0.0"
	commit  = "unknown"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := pg.Open(cfg.Database.URL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	svc, err := auth.NewService(store, auth.WithBcryptCost(cfg.Auth.BcryptCost))
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	app := web.New(svc, web.ReadyProbe{DB: store.DB()}, version,
		web.WithLoginRateLimit(cfg.RateLimit.LoginBurst, cfg.RateLimit.LoginPerSecond))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting staffdesk %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = store.Close()
	log.Println("Stopped")
}
