package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/feltworks/tourneyclock/go/internal/dbconfig"
	"github.com/feltworks/tourneyclock/go/internal/models"
)

const minutes = int64(60_000)

// standardLevels is a common live structure: 20-minute levels with a
// 10-minute break after every fourth level.
func standardLevels() []models.BlindLevel {
	blinds := [][3]int{
		{25, 50, 0}, {50, 100, 0}, {100, 200, 0}, {100, 200, 200},
		{200, 400, 400}, {300, 600, 600}, {400, 800, 800}, {500, 1000, 1000},
		{600, 1200, 1200}, {800, 1600, 1600}, {1000, 2000, 2000}, {1500, 3000, 3000},
	}

	var levels []models.BlindLevel
	for i, b := range blinds {
		levels = append(levels, models.BlindLevel{
			Level:      len(levels) + 1,
			SmallBlind: b[0],
			BigBlind:   b[1],
			Ante:       b[2],
			DurationMs: 20 * minutes,
		})
		if (i+1)%4 == 0 {
			levels = append(levels, models.BlindLevel{
				Level:      len(levels) + 1,
				IsBreak:    true,
				DurationMs: 10 * minutes,
			})
		}
	}
	return levels
}

func main() {
	name := flag.String("name", "Main Event", "tournament name to seed")
	flag.Parse()

	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(context.Background(), cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	ctx := context.Background()
	tournamentID := uuid.New()
	scheduleID := uuid.New()

	if _, err := pool.Exec(ctx, `
        INSERT INTO tournaments (id, name, created_at, updated_at)
        VALUES ($1, $2, now(), now())
    `, tournamentID, *name); err != nil {
		fmt.Fprintf(os.Stderr, "error inserting tournament: %v\n", err)
		os.Exit(1)
	}

	if _, err := pool.Exec(ctx, `
        INSERT INTO blind_schedules (id, tournament_id, name, created_at, updated_at)
        VALUES ($1, $2, $3, now(), now())
    `, scheduleID, tournamentID, "Standard 20-minute structure"); err != nil {
		fmt.Fprintf(os.Stderr, "error inserting schedule: %v\n", err)
		os.Exit(1)
	}

	var inserted, errs int
	for _, l := range standardLevels() {
		if _, err := pool.Exec(ctx, `
            INSERT INTO blind_levels (
              schedule_id, level, small_blind, big_blind, ante, duration_ms, is_break
            ) VALUES ($1,$2,$3,$4,$5,$6,$7)
        `,
			scheduleID, l.Level, l.SmallBlind, l.BigBlind, l.Ante, l.DurationMs, l.IsBreak,
		); err != nil {
			fmt.Fprintf(os.Stderr, "error inserting level %d: %v\n", l.Level, err)
			errs++
			continue
		}
		inserted++
	}

	if _, err := pool.Exec(ctx, `
        UPDATE tournaments SET blind_schedule_id = $1, updated_at = now() WHERE id = $2
    `, scheduleID, tournamentID); err != nil {
		fmt.Fprintf(os.Stderr, "error linking schedule: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf(
		"Schedule seed complete: tournament %s, schedule %s, %d levels inserted, %d errors\n",
		tournamentID, scheduleID, inserted, errs,
	)
}
