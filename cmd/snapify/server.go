package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"snapify/internal/caption"
	"snapify/internal/config"
	"snapify/internal/database"
	"snapify/internal/handlers"
	"snapify/internal/ingest"
	"snapify/internal/middleware"
	"snapify/internal/objectstore"
	"snapify/internal/realtime"
	"snapify/internal/staging"
	"snapify/internal/transcode"
	"snapify/pkg/cache"
	"snapify/pkg/logger"
)

const maintenanceInterval = time.Hour

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.App.StartMessage {
		printSignature(cfg)
	}

	ctx, stop := signalContext()
	defer stop()

	// Connect DB
	store, err := database.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	store.StartMaintenance(ctx, maintenanceInterval)

	// Staging: anything left from a previous run belongs to no one.
	area, err := staging.NewArea(cfg.Upload.StagingDir)
	if err != nil {
		return err
	}
	if n, err := area.Sweep(); err != nil {
		logger.LogWarn("Boot sweep of %s failed: %v", area.Dir(), err)
	} else if n > 0 {
		logger.LogInfo("Removed %d leftover staged file(s)", n)
	}
	area.StartSweeper(ctx, cfg.SweepInterval(), cfg.StaleAfter())

	// Object store
	backend, err := objectstore.NewBackend(ctx, objectstore.Config{
		Driver:         cfg.Storage.Driver,
		Endpoint:       cfg.Storage.Endpoint,
		Bucket:         cfg.Storage.Bucket,
		AccessKey:      cfg.Storage.AccessKey,
		SecretKey:      cfg.Storage.SecretKey,
		Region:         cfg.Storage.Region,
		UseSSL:         cfg.Storage.UseSSL,
		ForcePathStyle: cfg.Storage.ForcePathStyle,
	})
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}
	urlCache := cache.New(cache.Options{
		Enabled:    cfg.Cache.Enabled,
		MaxEntries: cfg.Cache.MaxEntries,
		TTL:        cfg.PresignTTL(),
	})
	defer urlCache.Close()
	objects := objectstore.NewGateway(backend, objectstore.Options{
		PresignTTL: cfg.PresignTTL(),
		Timeout:    cfg.StorageTimeout(),
		URLs:       urlCache,
	})

	// Realtime
	hub := realtime.NewHub(cfg.Realtime.SubscriberBuffer)
	var relayPinger handlers.Pinger
	if cfg.Realtime.RedisURL != "" {
		relay, err := realtime.NewRedisRelay(ctx, cfg.Realtime.RedisURL, cfg.Realtime.RedisPrefix, hub)
		if err != nil {
			return fmt.Errorf("redis relay: %w", err)
		}
		defer relay.Close()
		hub.SetRelay(relay)
		go relay.Run(ctx)
		relayPinger = relay
	}
	ws := realtime.NewWSServer(hub, cfg.Security.CorsOrigins)

	// Transcoding
	ffmpeg := transcode.NewFFmpeg(cfg.Transcode.FFmpegPath)
	if err := ffmpeg.Check(); err != nil {
		logger.LogWarn("Video previews will fail: %v", err)
	}

	svc := ingest.NewService(ingest.Deps{
		Store:      store,
		Objects:    objects,
		Staging:    area,
		Notifier:   hub,
		Transcoder: ffmpeg,
		Options: transcode.Options{
			Height:       cfg.Transcode.Height,
			CRF:          cfg.Transcode.CRF,
			Preset:       cfg.Transcode.Preset,
			AudioBitrate: cfg.Transcode.AudioBitrate,
			Timeout:      cfg.TranscodeTimeout(),
		},
	})
	queue := transcode.NewQueue(cfg.Transcode.Workers, svc.ProcessJob)
	svc.AttachQueue(queue)

	h := handlers.New(handlers.Deps{
		Service:       svc,
		Store:         store,
		Objects:       objects,
		Queue:         queue,
		Hub:           hub,
		WS:            ws,
		Relay:         relayPinger,
		Captioner:     newCaptioner(cfg),
		MaxUploadSize: cfg.MaxUploadBytes(),
		Version:       cfg.App.Version,
	})

	limiter := middleware.NewRateLimiter(middleware.RateLimitOptions{
		Enabled:  cfg.Security.RateLimit.Enabled,
		Requests: cfg.Security.RateLimit.Requests,
		Window:   cfg.RateLimitWindow(),
		Burst:    cfg.Security.RateLimit.Burst,
	})
	limiter.StartCleanup(ctx)

	finalHandler := middleware.Chain(h.Routes(),
		limiter.Middleware,
		middleware.Cors(cfg.Security.CorsOrigins),
		middleware.Logger,
	)

	// No WriteTimeout: large uploads and websocket connections outlive any fixed bound.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           finalHandler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.LogServerStart(cfg.Server.Port, cfg.GetBaseUrl())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdown(server, queue, cfg.ShutdownTimeout())
	return nil
}

// shutdown stops accepting requests, then lets queued transcodes finish
// within the same grace period.
func shutdown(server *http.Server, queue *transcode.Queue, grace time.Duration) {
	logger.LogInfo("Shutting down (grace %s)...", grace)
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.LogWarn("HTTP shutdown: %v", err)
	}
	if err := queue.Shutdown(ctx); err != nil {
		st := queue.Stats()
		logger.LogWarn("Transcode queue not drained (%d pending, %d active); those items stay processing", st.Pending, st.Active)
		return
	}
	logger.LogSuccess("Shutdown complete")
}

func newCaptioner(cfg *config.Config) caption.Captioner {
	if !cfg.Caption.Enabled || cfg.Caption.APIKey == "" {
		logger.LogInfo("AI captions disabled; using default captions")
		return caption.Static{}
	}
	return caption.NewOpenAI(caption.Options{
		APIKey:  cfg.Caption.APIKey,
		BaseURL: cfg.Caption.BaseURL,
		Model:   cfg.Caption.Model,
		Timeout: cfg.CaptionTimeout(),
		MaxSide: cfg.Caption.MaxSide,
	})
}
