package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skiff/internal/chat"
	"skiff/internal/config"
	"skiff/internal/httpserver"
	"skiff/internal/storage"
	"skiff/internal/sysinfo"

	"github.com/mdp/qrterminal/v3"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.LoadFromEnv()

	store, err := storage.New(cfg.UploadDir)
	if err != nil {
		log.Fatalf("storage init: %v", err)
	}

	hub := chat.NewHub(cfg.HistoryPath, cfg.HistoryLimit)
	sys := sysinfo.NewCollector(cfg.SysCacheTTL)

	r, err := httpserver.NewRouter(httpserver.RouterDeps{
		Config: cfg,
		Store:  store,
		Hub:    hub,
		Sys:    sys,
	})
	if err != nil {
		log.Fatalf("router init: %v", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
		// Only the header read is bounded. Body reads must run as long
		// as a 25 GB upload takes, and the chat socket stays open
		// indefinitely.
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Printf("skiffd listening on :%d (uploads in %s)", cfg.Port, cfg.UploadDir)
	printJoinBanner(cfg.Port)

	if err := g.Wait(); err != nil {
		log.Fatalf("server: %v", err)
	}
	log.Println("skiffd stopped")
}

// printJoinBanner logs the LAN URL and draws it as a terminal QR code
// so phones on the same network can join without typing an address.
func printJoinBanner(port int) {
	addr, err := sysinfo.LocalAddr()
	if err != nil {
		log.Printf("no lan address detected (%v); reachable on http://localhost:%d", err, port)
		return
	}
	url := fmt.Sprintf("http://%s:%d", addr, port)
	log.Printf("join on the local network: %s", url)
	qrterminal.GenerateWithConfig(url, qrterminal.Config{
		Level:      qrterminal.M,
		Writer:     os.Stdout,
		HalfBlocks: true,
		QuietZone:  1,
	})
}
