package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/local/medextract/internal/ai"
	cfgpkg "github.com/local/medextract/internal/config"
	"github.com/local/medextract/internal/extract"
	logpkg "github.com/local/medextract/internal/logger"
	"github.com/local/medextract/internal/metrics"
	"github.com/local/medextract/internal/orchestrator"
	"github.com/local/medextract/internal/server"
	"github.com/local/medextract/internal/sink"
	"github.com/local/medextract/internal/storage"
	"github.com/local/medextract/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	metrics.Init()

	// Status store (optional; pipeline works without Redis)
	var status store.StatusStore = store.NopStatus{}
	if cfg.Sink.RedisURL != "" {
		rs, err := store.NewRedisStatus(cfg.Sink.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, request status disabled")
		} else {
			defer rs.Close()
			status = rs
		}
	}

	// Artifact sink
	var snk sink.Sink = sink.NewLocal(cfg.Sink.LocalDir)
	if cfg.Sink.Backend == "s3" {
		if cfg.Sink.S3Bucket == "" {
			log.Fatal().Msg("SINK_BACKEND=s3 requires AWS_S3_BUCKET")
		}
		s3c, err := storage.NewS3Client(context.Background(), cfg.Sink.S3Bucket)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init S3 client")
		}
		snk = sink.NewS3(s3c, cfg.Sink.S3Password)
	}

	engine := extract.NewEngine(cfg.Extraction)
	if !engine.OCRAvailable() {
		log.Warn().Msg("tesseract not found, scanned documents will fail")
	}

	registry := ai.NewRegistry(cfg.Providers)
	pipeline := orchestrator.New(cfg, engine, registry, snk, status)

	srv := server.New(cfg.Server, pipeline, registry, status)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	mux.Handle("/metrics", metrics.Handler())

	httpSrv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux}

	go func() {
		log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	log.Info().Msg("shutdown complete")
}
