package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/whatsapp-booking/internal/config"
	"github.com/carebridge/whatsapp-booking/internal/db"
)

// The simulator drives the webhook the way a crowd of patients would: every
// patient gets the same short slot list, then all of them reply with a
// selection at once. At the end it checks Postgres directly for confirmed
// appointments closer together than the conflict window.

type SimConfig struct {
	APIBaseURL     string
	Duration       time.Duration
	Workers        int
	PatientLimit   int
	SlotCount      int
	PostgresDSN    string
	ConflictWindow time.Duration
}

type simPatient struct {
	ID    uuid.UUID
	Phone string
}

type OperationMetrics struct {
	Total     int64
	Booked    int64
	Rejected  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, booked, rejected bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case booked:
		atomic.AddInt64(&om.Booked, 1)
	case rejected:
		atomic.AddInt64(&om.Rejected, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Simulator struct {
	config   SimConfig
	patients []simPatient
	client   *http.Client
	metrics  OperationMetrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d patients=%d slots=%d",
		cfg.Duration, cfg.Workers, cfg.PatientLimit, cfg.SlotCount)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	patients, err := loadPatients(ctx, pgPool, cfg.PatientLimit)
	if err != nil {
		log.Fatalf("load patients: %v", err)
	}
	log.Printf("loaded %d patients", len(patients))

	sim := &Simulator{
		config:   cfg,
		patients: patients,
		client:   &http.Client{Timeout: 10 * time.Second},
	}

	if err := sim.offerContestedSlots(context.Background()); err != nil {
		log.Fatalf("offer slots: %v", err)
	}

	sim.Run()
	sim.PrintReport()

	if err := checkConflicts(context.Background(), pgPool, cfg.ConflictWindow); err != nil {
		log.Fatalf("conflict check: %v", err)
	}
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	return SimConfig{
		APIBaseURL:     getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:       getDuration("SIM_DURATION", 30*time.Second),
		Workers:        getInt("SIM_WORKERS", 10),
		PatientLimit:   getInt("SIM_PATIENT_LIMIT", 200),
		SlotCount:      getInt("SIM_SLOT_COUNT", 4),
		PostgresDSN:    baseCfg.PostgresDSN,
		ConflictWindow: baseCfg.ConflictWindow,
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.SlotCount <= 0 {
		return fmt.Errorf("SIM_SLOT_COUNT must be > 0")
	}
	return nil
}

func loadPatients(ctx context.Context, pool *pgxpool.Pool, limit int) ([]simPatient, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, cell_phone FROM patients
		WHERE cell_phone IS NOT NULL
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	var patients []simPatient
	for rows.Next() {
		var p simPatient
		if err := rows.Scan(&p.ID, &p.Phone); err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}

	if len(patients) == 0 {
		return nil, fmt.Errorf("no patients with phone numbers loaded; run cmd/seed first")
	}
	return patients, nil
}

// offerContestedSlots gives every patient the same few slots so selections
// collide on the conflict window and the reservation guard gets exercised.
func (s *Simulator) offerContestedSlots(ctx context.Context) error {
	day := time.Now().AddDate(0, 0, 1).Format("2006-01-02")

	type slotPayload struct {
		Date   string `json:"date"`
		Time   string `json:"time"`
		Reason string `json:"reason,omitempty"`
	}
	slots := make([]slotPayload, 0, s.config.SlotCount)
	for i := 0; i < s.config.SlotCount; i++ {
		slots = append(slots, slotPayload{
			Date: day,
			Time: fmt.Sprintf("%d:00 PM", 1+i*2),
		})
	}

	ids := make([]string, 0, len(s.patients))
	for _, p := range s.patients {
		ids = append(ids, p.ID.String())
	}

	body, err := json.Marshal(map[string]any{
		"patient_ids": ids,
		"slots":       slots,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/ops/offers", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("offer broadcast returned %d", resp.StatusCode)
	}
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			s.sendSelection(ctx, rng)
		}
	}
}

func (s *Simulator) sendSelection(ctx context.Context, rng *rand.Rand) {
	p := s.patients[rng.Intn(len(s.patients))]
	selection := strconv.Itoa(1 + rng.Intn(s.config.SlotCount))

	form := url.Values{
		"From": {"whatsapp:" + p.Phone},
		"Body": {selection},
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.config.APIBaseURL+"/webhooks/whatsapp", strings.NewReader(form.Encode()))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	booked := false
	rejected := false
	if err == nil {
		var out struct {
			Flow          string     `json:"flow"`
			Rejected      string     `json:"rejected"`
			AppointmentID *uuid.UUID `json:"appointment_id"`
		}
		if resp.StatusCode == http.StatusOK {
			_ = json.NewDecoder(resp.Body).Decode(&out)
			booked = out.AppointmentID != nil
			rejected = out.Rejected != "" || out.Flow == "logged"
		}
		resp.Body.Close()
	}

	s.metrics.Record(latency, booked, rejected)
}

// checkConflicts fails loudly if any two confirmed appointments sit closer
// together than the conflict window.
func checkConflicts(ctx context.Context, pool *pgxpool.Pool, window time.Duration) error {
	var count int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b
		  ON a.id < b.id
		 AND a.status = 'CONFIRMED'
		 AND b.status = 'CONFIRMED'
		 AND abs(extract(epoch FROM a.scheduled_at - b.scheduled_at)) < $1
	`, window.Seconds()).Scan(&count)
	if err != nil {
		return err
	}

	if count > 0 {
		return fmt.Errorf("found %d confirmed appointment pairs inside the %s window", count, window)
	}
	log.Printf("conflict check passed: no confirmed pairs inside %s", window)
	return nil
}

func (s *Simulator) PrintReport() {
	total := atomic.LoadInt64(&s.metrics.Total)
	if total == 0 {
		log.Println("no selections recorded")
		return
	}

	booked := atomic.LoadInt64(&s.metrics.Booked)
	rejected := atomic.LoadInt64(&s.metrics.Rejected)
	errs := atomic.LoadInt64(&s.metrics.Error)
	avg, min, max, p50, p95 := s.metrics.Stats()

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Selections: %d\n", total)
	fmt.Printf("  Booked: %d (%.1f%%)\n", booked, float64(booked)/float64(total)*100)
	fmt.Printf("  Rejected: %d (%.1f%%)\n", rejected, float64(rejected)/float64(total)*100)
	if errs > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errs, float64(errs)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
