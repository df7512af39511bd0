package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"estateBack/internal/cache"
	"estateBack/internal/config"
	"estateBack/internal/events"
	"estateBack/internal/handlers"
	"estateBack/internal/repositories"
	"estateBack/internal/services"
	"estateBack/internal/storage"
)

type application struct {
	log            *zap.SugaredLogger
	db             *sql.DB
	listingHandler *handlers.ListingHandler
	photoHandler   *handlers.PhotoHandler
	listingCache   *cache.ListingCache
	publisher      *events.Publisher
}

func initializeApp(ctx context.Context, cfg config.Config, db *sql.DB, log *zap.SugaredLogger) (*application, error) {
	// Storage
	remote, err := newRemoteStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	local, err := storage.NewLocalStore(cfg.Storage.UploadsDir)
	if err != nil {
		return nil, err
	}
	resolver := &storage.Resolver{
		Local:         local,
		UploadTimeout: cfg.Storage.UploadTimeout,
		Log:           log,
	}
	if remote != nil {
		resolver.Remote = remote
	} else {
		log.Warnf("no remote photo storage configured, photos are kept in %s", local.Dir())
	}

	// Repositories
	listingRepo := &repositories.ListingRepository{DB: db}

	app := &application{
		log: log,
		db:  db,
	}

	// Services
	listingService := &services.ListingService{
		Store:             listingRepo,
		Photos:            resolver,
		Log:               log,
		PhotoBaseURL:      cfg.Server.PublicBaseURL,
		UploadConcurrency: cfg.Storage.UploadConcurrency,
		MaxPhotos:         cfg.Storage.MaxPhotos,
		MaxPhotoBytes:     cfg.Storage.MaxPhotoBytes,
	}

	if cfg.Redis.Addr != "" {
		c, err := cache.NewListingCache(ctx, &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.TTL)
		if err != nil {
			log.Warnf("listing cache disabled: %v", err)
		} else {
			app.listingCache = c
			listingService.Cache = c
		}
	}

	if cfg.NATS.URL != "" {
		p, err := events.NewPublisher(cfg.NATS.URL)
		if err != nil {
			log.Warnf("listing events disabled: %v", err)
		} else {
			app.publisher = p
			listingService.Events = p
		}
	}

	// Handlers
	app.listingHandler = &handlers.ListingHandler{
		Service:       listingService,
		Log:           log,
		MaxPhotoBytes: cfg.Storage.MaxPhotoBytes,
		MaxPhotos:     cfg.Storage.MaxPhotos,
	}
	app.photoHandler = &handlers.PhotoHandler{Service: listingService, Log: log}

	return app, nil
}

func newRemoteStore(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (storage.RemoteStore, error) {
	sc := cfg.Storage
	switch sc.Driver {
	case config.StorageS3:
		s, err := storage.NewS3Store(storage.S3Config{
			Endpoint:       sc.Endpoint,
			Region:         sc.Region,
			Bucket:         sc.Bucket,
			AccessKey:      sc.AccessKey,
			SecretKey:      sc.SecretKey,
			PublicURL:      sc.PublicURL,
			ForcePathStyle: sc.Endpoint != "",
		})
		if err != nil {
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
		return s, nil
	case config.StorageMinio:
		s, err := storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  sc.Endpoint,
			Region:    sc.Region,
			Bucket:    sc.Bucket,
			AccessKey: sc.AccessKey,
			SecretKey: sc.SecretKey,
			PublicURL: sc.PublicURL,
			UseSSL:    sc.UseSSL,
		}, log)
		if err != nil {
			// Boot without it; uploads go to disk.
			log.Errorf("minio storage unavailable, using local storage only: %v", err)
			return nil, nil
		}
		return s, nil
	}
	return nil, nil
}

func (app *application) close() {
	if app.publisher != nil {
		app.publisher.Close()
	}
	if app.listingCache != nil {
		if err := app.listingCache.Close(); err != nil {
			app.log.Warnf("close redis: %v", err)
		}
	}
}

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxIdleConns(35)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

func addSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}
