package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/relevohq/relevo/config"
	"github.com/relevohq/relevo/internal/api/handlers"
	"github.com/relevohq/relevo/internal/api/middleware"
	"github.com/relevohq/relevo/internal/api/routes"
	"github.com/relevohq/relevo/internal/audit"
	"github.com/relevohq/relevo/internal/janitor"
	"github.com/relevohq/relevo/internal/logger"
	"github.com/relevohq/relevo/internal/models"
	"github.com/relevohq/relevo/internal/privacy"
	"github.com/relevohq/relevo/internal/providers/stt"
	"github.com/relevohq/relevo/internal/pubsub"
	"github.com/relevohq/relevo/internal/refine"
	mongorepo "github.com/relevohq/relevo/internal/repositories/mongo"
	"github.com/relevohq/relevo/internal/segmenter"
	"github.com/relevohq/relevo/internal/services"
	"github.com/relevohq/relevo/internal/storage"
	"github.com/relevohq/relevo/internal/store"
	"github.com/relevohq/relevo/internal/vault"
	"github.com/relevohq/relevo/internal/workers"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Backing store for vault + audit
	var kv store.KV
	switch cfg.StoreDriver {
	case "redis":
		if err := config.InitRedis(); err != nil {
			log.WithError(err).Fatal("Redis init error")
		}
		kv = store.NewRedis(config.RedisClient)
	case "postgres":
		if err := config.InitPostgres(); err != nil {
			log.WithError(err).Fatal("PostgreSQL init error")
		}
		pg, err := store.NewPostgres(config.PostgresDB)
		if err != nil {
			log.WithError(err).Fatal("kv_records migration failed")
		}
		kv = pg
	default:
		kv = store.NewMemory()
	}
	log.WithField("driver", cfg.StoreDriver).Info("kv store ready")

	auditLog := audit.New(kv, audit.Config{
		TTL:       cfg.AuditTTL,
		MaxEvents: cfg.AuditMaxEvents,
		DetailMax: cfg.AuditDetailMax,
	}, logger.Component(log, "audit"))

	v, err := vault.New(kv, vault.Config{
		TTL:     cfg.VaultTTL,
		SealKey: cfg.VaultKey,
	}, auditLog, logger.Component(log, "vault"))
	if err != nil {
		log.WithError(err).Fatal("vault init error")
	}

	registry := privacy.NewRegistry(privacy.Config{
		RevealHold:   cfg.RevealHold,
		RevealWindow: cfg.RevealWindow,
		AutoLock:     cfg.AutoLock,
		Purge:        cfg.MemoryPurge,
	})
	registry.OnPurge = func(sessionID string) {
		auditLog.Append(context.Background(), models.AuditAllDataPurged, sessionID, "live session expired and purged")
	}

	refiner, err := refine.New(ctx, refine.Config{
		Provider:       cfg.Refiner,
		VertexProject:  cfg.VertexProject,
		VertexLocation: cfg.VertexLocation,
		VertexModel:    cfg.VertexModel,
	})
	if err != nil {
		log.WithError(err).Fatal("refiner init error")
	}
	log.WithField("refiner", refiner.Name()).Info("refiner ready")

	handoffSvc := services.NewHandoffService(services.HandoffConfig{
		Segmenter: segmenter.Config{
			SegmentDurationMs: cfg.SegmentDurationMs,
			MaxSegments:       cfg.SegmentMaxCount,
		},
		RefineTimeout:  cfg.RefineTimeout,
		PrivacyProfile: cfg.PrivacyProfile,
	}, refiner, registry, v, auditLog, logger.Component(log, "handoff"))

	// Dictation boundary is optional: it needs both Redis (stream + pub/sub)
	// and Mongo (chunk buffer). Without them the text path still works.
	var (
		events       services.EventPublisher
		wsHandler    *handlers.WSHandler
		dictationSvc services.DictationService
	)
	if os.Getenv("MONGO_URI") != "" {
		if config.RedisClient == nil {
			if err := config.InitRedis(); err != nil {
				log.WithError(err).Fatal("Redis init error (dictation boundary)")
			}
		}
		if err := config.InitMongo(); err != nil {
			log.WithError(err).Fatal("MongoDB init error")
		}
		if err := config.EnsureMongoIndexes(); err != nil {
			log.WithError(err).Fatal("Mongo index error")
		}

		dbName := os.Getenv("MONGO_DB")
		if dbName == "" {
			dbName = "relevo"
		}
		chunkRepo := mongorepo.NewChunkRepo(config.MongoClient.Database(dbName))

		var objects services.ObjectStore
		if cfg.GCSBucket != "" {
			gcs, err := storage.NewGCSUploader(ctx, cfg.GCSBucket)
			if err != nil {
				log.WithError(err).Fatal("GCS init error")
			}
			defer gcs.Close()
			objects = gcs
		}
		dictationSvc = services.NewDictationService(chunkRepo, cfg.ChunkTTL, objects, cfg.ChunkInlineMaxBytes)

		sttProvider, err := stt.NewGoogleSpeech(ctx)
		if err != nil {
			log.WithError(err).Fatal("speech client init error")
		}
		defer sttProvider.Close()

		pool := &workers.DictationWorkerPool{
			Redis:     config.RedisClient,
			Dictation: dictationSvc,
			STT:       sttProvider,
			Logger:    log,
		}
		if err := pool.Start(ctx); err != nil {
			log.WithError(err).Fatal("worker pool start error")
		}

		events = pubsub.NewRedisPublisher(config.RedisClient)
		wsHandler = handlers.NewWSHandler(dictationSvc, config.RedisClient, "")
		log.Info("dictation boundary enabled")
	}

	liveSvc := services.NewLiveService(registry, auditLog, events, logger.Component(log, "live"))

	j := &janitor.Janitor{
		Vault:    v,
		Audit:    auditLog,
		Registry: registry,
		Interval: cfg.JanitorInterval,
		Logger:   logger.Component(log, "janitor"),
	}
	go j.Run(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))

	routes.RegisterRoutes(r, routes.Deps{
		Handoff:     handlers.NewHandoffHandler(handoffSvc, dictationSvc),
		Live:        handlers.NewLiveHandler(liveSvc),
		Maintenance: handlers.NewMaintenanceHandler(auditLog, j),
		WS:          wsHandler,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("forced shutdown")
	}

	// Everything still live in memory disappears with the process; ending
	// the sessions explicitly keeps the audit trail complete.
	registry.EndAll()
}
