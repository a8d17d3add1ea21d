package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"studentattendance/internal/attendance"
	"studentattendance/internal/config"
	"studentattendance/internal/course"
	"studentattendance/internal/faceclient"
	"studentattendance/internal/metrics"
	"studentattendance/internal/queue"
	"studentattendance/internal/store"
	"studentattendance/internal/worker"
)

// Worker consumes check-in events and sweeps overdue sessions.
func main() {
	cfg := config.Load()
	log := cfg.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}
	defer db.Close()

	rdb := store.NewRedis(cfg.RedisAddr)
	defer rdb.Close()

	var q worker.Consumer
	if cfg.QueueBackend == "memory" {
		log.Warn("memory queue selected: only the sweeper does useful work")
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(rdb.Client, queue.DefaultKey, log)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	courses := course.NewService(course.NewRepository(db.Client), log)
	att := attendance.NewService(attendance.NewRepository(db.Client), courses, log, attendance.Options{
		DefaultGraceMinutes: cfg.DefaultGraceMinutes,
		Metrics:             m,
	})

	var verifier worker.Verifier
	switch {
	case cfg.FaceSkip:
		log.Info("FACE_SKIP set, face verification disabled")
	case cfg.FaceServiceURL == "":
		log.Warn("FACE_SERVICE_URL empty, face verification disabled")
	default:
		face := faceclient.New(cfg.FaceServiceURL, false)
		if err := face.Health(ctx); err != nil {
			log.WithError(err).Warn("face service not available, verification will be retried per event")
		} else {
			log.Info("face service connected")
		}
		verifier = face
	}

	sweeper := worker.NewSweeper(att, cfg.AutoCloseAfter, m, log)
	runner, err := sweeper.Schedule(ctx, cfg.SweepSchedule)
	if err != nil {
		log.WithError(err).Fatal("sweeper init failed")
	}
	defer func() { <-runner.Stop().Done() }()

	if err := worker.NewProcessor(att, verifier, log).Run(ctx, q); err != nil {
		log.WithError(err).Fatal("queue consume failed")
	}
}
