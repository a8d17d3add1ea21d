package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"studentattendance/internal/attendance"
	"studentattendance/internal/auth"
	"studentattendance/internal/config"
	"studentattendance/internal/course"
	"studentattendance/internal/dashboard"
	"studentattendance/internal/httpapi"
	"studentattendance/internal/httpmiddleware"
	"studentattendance/internal/identity"
	"studentattendance/internal/mail"
	"studentattendance/internal/media"
	"studentattendance/internal/metrics"
	"studentattendance/internal/queue"
	"studentattendance/internal/store"
)

func main() {
	cfg := config.Load()
	log := cfg.Logger()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("http server failed")
	}
}

func run(cfg config.App, log *logrus.Logger) error {
	ctx := context.Background()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.Migrate(ctx, db.Client, log); err != nil {
		return err
	}

	rdb := store.NewRedis(cfg.RedisAddr)
	defer rdb.Close()
	if !rdb.Healthy(ctx) {
		log.WithField("addr", cfg.RedisAddr).Warn("redis not reachable at startup")
	}

	// The memory queue has no consumer in this process, so check-ins are
	// not published at all.
	var events attendance.Publisher
	if cfg.QueueBackend == "memory" {
		log.Warn("memory queue selected: check-in events are not published")
	} else {
		events = queue.NewRedisQueue(rdb.Client, queue.DefaultKey, log)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	tokens := auth.NewTokens(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)

	users := identity.NewService(identity.NewRepository(db.Client), auth.NewHasher(cfg.BcryptCost), tokens, newMailer(cfg, log), log,
		identity.Options{VerificationTTL: cfg.VerificationTTL, ResetTTL: cfg.ResetTTL})
	courses := course.NewService(course.NewRepository(db.Client), log)
	att := attendance.NewService(attendance.NewRepository(db.Client), courses, log, attendance.Options{
		DefaultGraceMinutes: cfg.DefaultGraceMinutes,
		Events:              events,
		Metrics:             m,
	})

	router := httpapi.NewServer(httpapi.Deps{
		Log:         log,
		Tokens:      tokens,
		Identity:    users,
		Courses:     courses,
		Attendance:  att,
		Dashboard:   dashboard.NewService(users, courses, att),
		Images:      newUploader(cfg, log),
		Metrics:     m,
		Gatherer:    prometheus.DefaultGatherer,
		Limiter:     newLimiter(cfg, rdb),
		CORSOrigins: cfg.CORSOrigins,
		Checks: map[string]httpapi.Check{
			"db":    db.Healthy,
			"redis": rdb.Healthy,
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		log.Info("shutting down server")
	case err := <-errCh:
		return errors.Wrap(err, "listening")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server forced shutdown")
	}
	log.Info("server exited")
	return nil
}

func newMailer(cfg config.App, log logrus.FieldLogger) mail.Mailer {
	if cfg.MailBackend == "sendgrid" {
		if cfg.SendGridAPIKey != "" {
			return mail.NewSendGrid(cfg.SendGridAPIKey, cfg.AppName, cfg.MailFrom)
		}
		log.Warn("SENDGRID_API_KEY not set, falling back to console mail")
	}
	return mail.NewConsole(log, cfg.AppName)
}

func newLimiter(cfg config.App, rdb *store.Redis) httpmiddleware.Limiter {
	if cfg.RateLimitPerMin <= 0 {
		return nil
	}
	if cfg.RateLimitBackend == "redis" {
		return httpmiddleware.NewRedisWindow(rdb.Client, cfg.RateLimitPerMin)
	}
	return httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
}

func newUploader(cfg config.App, log logrus.FieldLogger) media.Uploader {
	if !cfg.CloudinaryEnabled() {
		log.Info("cloudinary not configured, image uploads disabled")
		return nil
	}
	log.WithField("cloud", cfg.CloudinaryCloudName).Info("cloudinary configured")
	return media.NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
}
