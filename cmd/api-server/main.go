package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/carebridge/whatsapp-booking/internal/api"
	"github.com/carebridge/whatsapp-booking/internal/appointment"
	"github.com/carebridge/whatsapp-booking/internal/comms"
	"github.com/carebridge/whatsapp-booking/internal/comms/whatsappclient"
	"github.com/carebridge/whatsapp-booking/internal/config"
	"github.com/carebridge/whatsapp-booking/internal/conversation"
	"github.com/carebridge/whatsapp-booking/internal/db"
	"github.com/carebridge/whatsapp-booking/internal/metrics"
	"github.com/carebridge/whatsapp-booking/internal/mood"
	"github.com/carebridge/whatsapp-booking/internal/offers"
	"github.com/carebridge/whatsapp-booking/internal/patient"
	redisclient "github.com/carebridge/whatsapp-booking/internal/redis"
	"github.com/carebridge/whatsapp-booking/internal/reminder"
)

const version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s", cfg.Env, cfg.HTTPPort)

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

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	transport, err := whatsappclient.New(whatsappclient.Config{
		APIURL:     cfg.WhatsAppAPIURL,
		AccountSID: cfg.WhatsAppAccountSID,
		AuthToken:  cfg.WhatsAppAuthToken,
		From:       cfg.WhatsAppFrom,
	})
	if err != nil {
		log.Fatalf("whatsapp client error: %v", err)
	}

	patients := patient.NewPgDirectory(pgPool)
	appts := appointment.NewPgRepository(pgPool)
	moods := mood.NewPgRepository(pgPool)
	audit := comms.NewPgLog(pgPool)
	markers := reminder.NewPgMarkerStore(pgPool)
	offerStore := offers.NewRedisStore(rdb, cfg.OfferTTL)
	locker := redisclient.NewRedisPatientLocker(rdb, cfg.LockTTL)

	booking := appointment.NewService(appts, locker, offerStore, cfg.ConflictWindow)
	engine := conversation.NewEngine(conversation.Config{
		Patients:  patients,
		Moods:     moods,
		Offers:    offerStore,
		Booking:   booking,
		Schedule:  appts,
		Transport: transport,
		Audit:     audit,
	})
	reminders := reminder.NewService(appts, patients, transport, audit, markers)

	router := api.NewRouter(api.RouterConfig{
		Engine:    engine,
		Reminders: reminders,
		CommLog:   audit,
		Metrics:   metrics.New(nil),
		PgPool:    pgPool,
		Redis:     rdb,
		Env:       cfg.Env,
		Version:   version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()
	log.Println("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
