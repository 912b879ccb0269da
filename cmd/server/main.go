package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	"github.com/zillah777/fixia-platform-sub000/internal/alerts"
	"github.com/zillah777/fixia-platform-sub000/internal/config"
	"github.com/zillah777/fixia-platform-sub000/internal/jobs"
	"github.com/zillah777/fixia-platform-sub000/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := server.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	mailer := alerts.NewMailer(cfg.SMTP, cfg.Tuning.MailPerSecond, cfg.Tuning.MailBurst)
	deps := server.Deps{
		Store:     st,
		Tuning:    cfg.Tuning,
		JWTSecret: cfg.JWTSecret,
		AppURL:    cfg.AppURL,
	}

	// With Redis, dispatch and email go through asynq and the sweeps run
	// on its scheduler. Without it everything stays in-process.
	var queue *alerts.Queue
	if cfg.RedisAddr != "" {
		queue = alerts.NewQueue(cfg.RedisAddr)
		defer queue.Close()
		deps.Mail = queue
		deps.Dispatcher = queue
	} else {
		deps.Mail = alerts.InlineMail{Sender: mailer}
	}

	app := server.NewApp(deps)

	var runner *jobs.Runner
	var worker *alerts.Worker
	if queue != nil {
		worker = alerts.NewWorker(cfg.RedisAddr, alerts.WorkerDeps{
			Dispatcher:       app.Engine,
			Mailer:           mailer,
			SweepRequests:    app.Registry.SweepExpired,
			SweepObligations: app.Gate.SweepOverdue,
			SweepInterval:    cfg.Tuning.SweepInterval,
		})
		if err := worker.Start(); err != nil {
			log.Fatalf("worker: %v", err)
		}
	} else {
		runner = jobs.NewRunner(cfg.Tuning.SweepInterval,
			&jobs.Job{Name: "expire-requests", Run: app.Registry.SweepExpired},
			&jobs.Job{Name: "overdue-obligations", Run: app.Gate.SweepOverdue},
		)
		runner.Start(ctx)
	}

	e := app.Router()
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if worker != nil {
		worker.Shutdown()
	}
	if runner != nil {
		runner.Wait()
	}
	app.Wait()
}
