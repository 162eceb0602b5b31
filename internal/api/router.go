package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/carebridge/whatsapp-booking/internal/comms"
	"github.com/carebridge/whatsapp-booking/internal/metrics"
)

type RouterConfig struct {
	Engine    ConversationEngine
	Reminders ReminderRunner
	CommLog   comms.Log
	Metrics   *metrics.Metrics
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Provider callback for inbound patient messages.
	r.Post("/webhooks/whatsapp", inboundWebhookHandler(cfg.Engine, cfg.Metrics))

	// Operator surface.
	r.Post("/ops/offers", offerSlotsHandler(cfg.Engine, cfg.Metrics))
	r.Post("/ops/offers/available", offerAvailableHandler(cfg.Engine, cfg.Metrics))
	r.Post("/ops/messages", customMessageHandler(cfg.Engine))
	r.Post("/ops/mood-prompt", moodPromptHandler(cfg.Engine))
	r.Post("/ops/reminders/run", runRemindersHandler(cfg.Reminders, cfg.Metrics))
	r.Get("/patients/{id}/communications", listCommunicationsHandler(cfg.CommLog))

	return r
}
