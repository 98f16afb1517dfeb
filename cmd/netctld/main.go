// netctld is a NetworkManager control daemon. It exposes Wi-Fi scanning and
// connection management, hotspot lifecycle and connected-device discovery as
// a REST API, driving nmcli underneath.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"netctld/internal/auth"
	"netctld/internal/config"
	"netctld/internal/handlers"
	"netctld/internal/managers"
	"netctld/internal/nmcli"
)

func main() {
	cfg := config.Get()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	log.Info().Str("version", cfg.Version).Str("nmcli", cfg.NmcliBin).Msg("starting netctld")

	nm := nmcli.NewRunner(cfg.NmcliBin)

	wifiMgr := managers.NewWifiManager(nm)
	infoMgr := managers.NewInfoManager(nm)
	hotspotMgr := managers.NewHotspotManager(nm)
	deviceMgr := managers.NewDeviceManager(cfg)

	h := handlers.NewHandlers(cfg)
	networkHandler := handlers.NewNetworkHandler(wifiMgr, infoMgr)
	hotspotHandler := handlers.NewHotspotHandler(hotspotMgr, deviceMgr, cfg.APInterface)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Public routes
	r.Get("/health", h.Health)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTSecret != "" {
			jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenExpiry)
			r.Use(auth.NewMiddleware(jwtService).RequireAuth)
			log.Info().Msg("API authentication enabled")
		} else {
			log.Warn().Msg("NETCTLD_JWT_SECRET not set, API authentication disabled")
		}

		r.Mount("/network", networkHandler.Routes())
		r.Mount("/hotspot", hotspotHandler.Routes())
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.ListenAddr()).Msg("API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
