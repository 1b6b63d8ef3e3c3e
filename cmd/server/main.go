package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"radio-hls-relay/internal/platform/config"
	"radio-hls-relay/internal/platform/logger"
	"radio-hls-relay/internal/platform/metrics"
	"radio-hls-relay/internal/radio"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	stationsFile := config.GetEnv("STATIONS_FILE", "stations.yaml")

	relayCfg := radio.RelayConfig{
		BufferSeconds:   config.GetEnvFloat("BUFFER_SIZE_SECONDS", radio.DefaultBufferSeconds),
		PipeBufferBytes: config.GetEnvInt("PIPE_BUFFER_BYTES", radio.DefaultPipeBufferBytes),
		SegmentWindow:   config.GetEnvInt("SEGMENT_WINDOW", radio.DefaultSegmentWindow),
		PollFactor:      config.GetEnvFloat("POLL_INTERVAL_FACTOR", radio.DefaultPollFactor),
		FFmpegPath:      config.GetEnv("FFMPEG_PATH", "ffmpeg"),
	}

	log := logger.New(logLevel, logFormat)

	stations, err := radio.LoadStations(stationsFile)
	if err != nil {
		log.Error("load stations", "file", stationsFile, "error", err)
		os.Exit(1)
	}

	met := metrics.New()
	h := radio.NewHandler(stations, log, met, relayCfg)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(nil).ServeHTTP(w, r)
	})
	r.Get("/stations", h.ListStations)
	r.Get("/radio", h.GetRadio)
	r.Get("/radio/{radio_id}", h.GetRadio)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"stations", stations.Count(),
		"buffer_size_seconds", relayCfg.BufferSeconds,
		"ffmpeg_path", relayCfg.FFmpegPath,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
