// Copyright 2026 The switchroute Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the entry point for the switchroute server: an
// OpenAI-compatible gateway that routes each chat completion between a strong
// and a weak model.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/switchroute/internal/api"
	"github.com/traylinx/switchroute/internal/buildinfo"
	"github.com/traylinx/switchroute/internal/config"
	"github.com/traylinx/switchroute/internal/driver"
	"github.com/traylinx/switchroute/internal/embedding"
	"github.com/traylinx/switchroute/internal/knowledge"
	"github.com/traylinx/switchroute/internal/logging"
	"github.com/traylinx/switchroute/internal/provider"
	"github.com/traylinx/switchroute/internal/routing/difficulty"
	"github.com/traylinx/switchroute/internal/routing/semantic"
	"github.com/traylinx/switchroute/internal/store"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// A local .env is convenient in development; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logging.SetupBaseLogger(cfg.Debug)
	if err := logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogsDir); err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}
	log.Infof("switchroute %s (%s, built %s)", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	if err := run(cfg); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func run(cfg *config.Config) error {
	embedder := embedding.NewClient(embedding.Config{
		BaseURL: cfg.Embedding.BaseURL,
		APIKey:  cfg.Embedding.APIKey,
		Model:   cfg.Embedding.Model,
	})

	var weights *difficulty.Weights
	if cfg.Difficulty.WeightsFile != "" {
		var err error
		if weights, err = difficulty.LoadWeights(cfg.Difficulty.WeightsFile); err != nil {
			return err
		}
		log.WithField("file", cfg.Difficulty.WeightsFile).Info("Difficulty calibration loaded")
	} else {
		log.Info("No difficulty calibration configured, using the lexical scorer")
	}
	scorer := difficulty.NewScorer(embedder, weights)

	registry := provider.NewRegistry(nil)
	d := driver.New(registry, embedder, scorer, semantic.Options{
		SimilarityFloor: cfg.Semantic.SimilarityFloor,
		TopK:            cfg.Semantic.TopK,
	}, cfg.DifficultyThreshold())

	chats, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer chats.Close()

	kb, err := knowledge.NewStore(cfg.Knowledge.IndexesDir, embedder)
	if err != nil {
		return err
	}

	routes, err := semantic.NewRouteSource(cfg.Semantic.RoutesFile)
	if err != nil {
		return err
	}
	defer routes.Close()

	server := api.NewServer(cfg, d, registry, chats, kb, routes)
	httpServer := &http.Server{
		Addr:              server.Addr(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Infof("Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
