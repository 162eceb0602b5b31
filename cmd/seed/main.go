package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/whatsapp-booking/internal/appointment"
	"github.com/carebridge/whatsapp-booking/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedAvailableSlots(context.Background(), pool, 14, 8); err != nil {
		log.Fatalf("seed available slots: %v", err)
	}

	log.Println("seed complete")
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			// E.164-ish numbers so the whatsapp prefix mapping has something
			// real to chew on. Uniqueness comes from the sequence suffix.
			phone := fmt.Sprintf("+1555%07d", i+1)

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, cell_phone, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, phone)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}

// seedAvailableSlots creates unclaimed AVAILABLE appointments over the next
// `days` days, `perDay` per day, on the hour between 9am and 5pm.
func seedAvailableSlots(ctx context.Context, pool *pgxpool.Pool, days, perDay int) error {
	log.Printf("seeding available slots: %d days x %d per day", days, perDay)

	reasons := []string{
		appointment.DefaultReason,
		"Follow-up",
		"Annual Physical",
		"Lab Review",
		"Vaccination",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	base := time.Now().Truncate(24 * time.Hour).Add(24 * time.Hour)
	for d := 0; d < days; d++ {
		day := base.AddDate(0, 0, d)
		for s := 0; s < perDay; s++ {
			hour := 9 + gofakeit.Number(0, 8)
			at := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, time.UTC)
			reason := reasons[gofakeit.Number(0, len(reasons)-1)]

			_, err := tx.Exec(ctx, `
				INSERT INTO appointments (id, patient_id, scheduled_at, reason, status, created_at, updated_at)
				VALUES ($1, NULL, $2, $3, $4, now(), now())
			`, uuid.New(), at, reason, appointment.StatusAvailable)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("available slots seeded")
	return nil
}
