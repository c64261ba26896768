// @title                       Kanso Streak API
// @version                     1.0
// @description                 Daily login streaks with username/password auth.
// @BasePath                    /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	_ "github.com/comitanigiacomo/kanso-streak/docs"
	"github.com/comitanigiacomo/kanso-streak/internal/adapters/cache"
	adapterHTTP "github.com/comitanigiacomo/kanso-streak/internal/adapters/handler/http"
	"github.com/comitanigiacomo/kanso-streak/internal/adapters/lock"
	"github.com/comitanigiacomo/kanso-streak/internal/adapters/repository"
	"github.com/comitanigiacomo/kanso-streak/internal/config"
	"github.com/comitanigiacomo/kanso-streak/internal/core/domain"
	"github.com/comitanigiacomo/kanso-streak/internal/core/services"
	"github.com/comitanigiacomo/kanso-streak/internal/core/workers"
	"github.com/comitanigiacomo/kanso-streak/internal/db"
	"github.com/comitanigiacomo/kanso-streak/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log := logger.New(cfg.AppName, cfg.Env)
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server exited with error")
	}
}

func run(cfg config.Config, log *logrus.Logger) error {
	startTime := time.Now()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("connecting to database")
	sqlDB, err := db.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if cfg.RunMigrations {
		log.Info("running migrations")
		if err := db.MigrateUp(cfg); err != nil {
			return err
		}
	}

	var rdb *redis.Client
	if cfg.RedisEnabled() {
		rdb, err = cache.NewRedisClient(ctx, cache.RedisOptions{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()
		log.WithField("host", cfg.RedisHost).Info("redis connected")
	} else {
		log.Warn("REDIS_HOST not set: running without cache, rate limiting or distributed lock")
	}

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	app, err := wire(workerCtx, cfg, log, sqlDB, rdb)
	if err != nil {
		cancelWorker()
		return err
	}
	app.StartTime = startTime

	srv := &http.Server{
		Addr:         cfg.HTTPAddress(),
		Handler:      adapterHTTP.NewRouter(app.RouterDependencies),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("kanso streak listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		cancelWorker()
		return err
	case <-ctx.Done():
	}

	log.Info("stop signal received, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}

	cancelWorker()
	if app.worker != nil {
		app.worker.Wait()
	}

	log.Info("server stopped gracefully")
	return nil
}

type application struct {
	adapterHTTP.RouterDependencies
	worker *workers.LeaderboardWorker
}

// wire builds the object graph. The leaderboard worker is started on ctx
// when Redis backs the ranking.
func wire(ctx context.Context, cfg config.Config, log *logrus.Logger, sqlDB *sqlx.DB, rdb *redis.Client) (*application, error) {
	var userRepo domain.UserRepository = repository.NewPostgresUserRepository(sqlDB)
	if rdb != nil {
		userRepo = repository.NewCachedUserRepository(userRepo, rdb, log)
	}

	policy, err := newPolicy(cfg)
	if err != nil {
		return nil, err
	}

	app := &application{}

	var board domain.Leaderboard
	var recorder services.ClaimRecorder
	if rdb != nil {
		board = cache.NewRedisLeaderboard(rdb)
		app.worker = workers.NewLeaderboardWorker(board, log, 0)
		app.worker.SeedFrom(repository.NewPostgresLeaderboard(sqlDB), policy.ActiveSince(time.Now().UTC()))
		app.worker.Start(ctx)
		recorder = app.worker
	} else {
		board = repository.NewPostgresLeaderboard(sqlDB)
	}

	tokens := services.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL, userRepo)
	streaks := services.NewStreakService(services.StreakServiceDeps{
		Repo:        userRepo,
		Locker:      newLocker(cfg, rdb, log),
		Policy:      policy,
		Leaderboard: board,
		Recorder:    recorder,
		Logger:      log,
	})

	app.RouterDependencies = adapterHTTP.RouterDependencies{
		AuthHandler:     adapterHTTP.NewAuthHandler(services.NewAuthService(userRepo, tokens)),
		StreakHandler:   adapterHTTP.NewStreakHandler(streaks),
		TokenService:    tokens,
		DB:              sqlDB,
		Redis:           rdb,
		Logger:          log,
		CORSOrigins:     cfg.CORSAllowedOrigins,
		RateLimit:       cfg.RateLimit,
		RateLimitWindow: cfg.RateLimitWindow,
	}
	return app, nil
}

func newPolicy(cfg config.Config) (domain.StreakPolicy, error) {
	if cfg.StreakWindow != config.StreakWindowCalendar {
		return domain.NewStreakPolicy(domain.ElapsedDayClassifier{}), nil
	}
	loc, err := cfg.Location()
	if err != nil {
		return domain.StreakPolicy{}, err
	}
	return domain.NewStreakPolicy(domain.CalendarDayClassifier{Location: loc}), nil
}

func newLocker(cfg config.Config, rdb *redis.Client, log logrus.FieldLogger) domain.UserLocker {
	if cfg.LockBackend == config.LockBackendRedis && rdb != nil {
		return lock.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait, log)
	}
	return lock.NewKeyedMutex()
}
