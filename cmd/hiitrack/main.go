package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hiidef/hiitrack/authn"
	"github.com/hiidef/hiitrack/bucket"
	"github.com/hiidef/hiitrack/config"
	"github.com/hiidef/hiitrack/handler"
	"github.com/hiidef/hiitrack/kernel"
	"github.com/hiidef/hiitrack/logger"
	"github.com/hiidef/hiitrack/property"
	"github.com/hiidef/hiitrack/router"
	"github.com/hiidef/hiitrack/store"
	"github.com/hiidef/hiitrack/user"
	"github.com/hiidef/hiitrack/writebuffer"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	log.Info().Str("env", cfg.Env).Msg("hiitrack starting")

	redisStore, err := store.NewRedis(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("redis init failed")
	}

	buf := writebuffer.New(redisStore, log, cfg.WriteBufferHighWaterMark)
	bucketCache := bucket.NewCache(cfg.BucketCacheCapacity)
	buckets := bucket.New(redisStore, bucketCache, log)
	users := user.New(redisStore, buckets, log)
	auth := authn.New(users, cfg.AuthCacheTTL, log)
	ker := kernel.New(redisStore, buf, log)
	props := property.New(redisStore)

	deps := &handler.Deps{
		Store:            redisStore,
		Users:            users,
		Buckets:          buckets,
		Kernel:           ker,
		Properties:       props,
		Log:              log,
		VisitorCookieTTL: cfg.VisitorCookieTTL,
	}

	r := router.New(cfg, log, deps, auth)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("hiitrack listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("hiitrack stopped gracefully")
	}
}
