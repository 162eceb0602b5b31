package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/carebridge/whatsapp-booking/internal/appointment"
	"github.com/carebridge/whatsapp-booking/internal/comms"
	"github.com/carebridge/whatsapp-booking/internal/comms/whatsappclient"
	"github.com/carebridge/whatsapp-booking/internal/config"
	"github.com/carebridge/whatsapp-booking/internal/db"
	"github.com/carebridge/whatsapp-booking/internal/patient"
	"github.com/carebridge/whatsapp-booking/internal/reminder"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("reminder-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running reminder worker in env=%s hourly=%q daily=%q",
		cfg.Env, cfg.HourlySweepSpec, cfg.DailySweepSpec)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	transport, err := whatsappclient.New(whatsappclient.Config{
		APIURL:     cfg.WhatsAppAPIURL,
		AccountSID: cfg.WhatsAppAccountSID,
		AuthToken:  cfg.WhatsAppAuthToken,
		From:       cfg.WhatsAppFrom,
	})
	if err != nil {
		log.Fatalf("whatsapp client error: %v", err)
	}

	appts := appointment.NewPgRepository(pgPool)
	patients := patient.NewPgDirectory(pgPool)
	audit := comms.NewPgLog(pgPool)
	markers := reminder.NewPgMarkerStore(pgPool)

	svc := reminder.NewService(appts, patients, transport, audit, markers)

	// Catch up on anything due right now; the markers make rerunning a
	// window after a restart safe.
	runSweep(rootCtx, svc, reminder.WindowHourly, cfg.SweepTimeout)
	runSweep(rootCtx, svc, reminder.WindowDaily, cfg.SweepTimeout)

	c := cron.New()
	if _, err := c.AddFunc(cfg.HourlySweepSpec, func() {
		runSweep(rootCtx, svc, reminder.WindowHourly, cfg.SweepTimeout)
	}); err != nil {
		log.Fatalf("invalid hourly sweep spec %q: %v", cfg.HourlySweepSpec, err)
	}
	if _, err := c.AddFunc(cfg.DailySweepSpec, func() {
		runSweep(rootCtx, svc, reminder.WindowDaily, cfg.SweepTimeout)
	}); err != nil {
		log.Fatalf("invalid daily sweep spec %q: %v", cfg.DailySweepSpec, err)
	}

	c.Start()

	<-rootCtx.Done()
	log.Println("shutdown signal received, stopping reminder worker")

	// Let an in-flight sweep finish before exiting.
	<-c.Stop().Done()
}

func runSweep(ctx context.Context, svc *reminder.Service, window reminder.Window, budget time.Duration) {
	if ctx.Err() != nil {
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	start := time.Now()
	report, err := svc.RunSweep(runCtx, window)
	if err != nil {
		log.Printf("%s sweep error: %v", window, err)
		return
	}
	log.Printf("%s sweep complete in %s: due=%d sent=%d skipped=%d deduped=%d failed=%d",
		window, time.Since(start), report.Due, report.Sent, report.Skipped, report.Deduped, report.Failed)
}
