// seed inserts sample gameplay telemetry for local development.
// Deterministic for a given -seed so repeated runs on a fresh DB agree.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"

	"magnos-hutch/backend/internal/config"
	"magnos-hutch/backend/internal/db"
	"magnos-hutch/backend/internal/session/repository"
	"magnos-hutch/backend/internal/session/service"
)

func main() {
	days := flag.Int("days", 14, "How many days back to spread sessions over")
	sessions := flag.Int("sessions", 300, "How many sessions to generate")
	users := flag.Int("users", 120, "How many distinct users to draw from")
	seed := flag.Int64("seed", 42, "RNG seed")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	store := repository.NewPostgresStore(conn)
	ctx := context.Background()

	existing, err := store.ListKnownDurations(ctx)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if len(existing) > 0 {
		log.Println("Seed already applied (sessions exist). Skipping.")
		os.Exit(0)
	}

	ingest := service.NewIngestService(store, 0, nil)
	rng := rand.New(rand.NewSource(*seed))
	now := time.Now().UTC()

	for i := 0; i < *sessions; i++ {
		userID := fmt.Sprintf("user-%03d", rng.Intn(*users))
		dayOffset := rng.Intn(*days)
		start := now.AddDate(0, 0, -dayOffset).Add(-time.Duration(rng.Intn(86400)) * time.Second)

		batch := service.Batch{
			SessionID: uuid.NewString(),
			UserID:    &userID,
			Events:    sessionTrail(rng, start),
		}
		if _, err := ingest.Ingest(ctx, batch); err != nil {
			log.Fatalf("seed session %d: %v", i, err)
		}
	}

	log.Printf("Seed completed: %d sessions over %d days for up to %d users.", *sessions, *days, *users)
}

// sessionTrail generates one session's event trail: a start, some mid-game
// activity, and usually a game_over carrying the final score. Roughly one in
// ten sessions is left unfinished to exercise open-session handling.
func sessionTrail(rng *rand.Rand, start time.Time) []service.EventInput {
	events := []service.EventInput{
		{Name: "game_start", TS: start},
	}

	score := 0
	ts := start
	for n := rng.Intn(8); n > 0; n-- {
		ts = ts.Add(time.Duration(2+rng.Intn(20)) * time.Second)
		if rng.Intn(2) == 0 {
			events = append(events, service.EventInput{Name: "jump", TS: ts})
		} else {
			score += 10 + rng.Intn(90)
			events = append(events, service.EventInput{
				Name:  "score",
				TS:    ts,
				Props: map[string]any{"points": score},
			})
		}
	}

	if rng.Intn(10) > 0 {
		ts = ts.Add(time.Duration(5+rng.Intn(120)) * time.Second)
		events = append(events, service.EventInput{
			Name:  "game_over",
			TS:    ts,
			Props: map[string]any{"final_score": score},
		})
	}
	return events
}
