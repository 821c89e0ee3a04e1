package main

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/feltworks/tourneyclock/go/internal/clock"
	"github.com/feltworks/tourneyclock/go/internal/gateway"
	"github.com/feltworks/tourneyclock/go/internal/models"
	"github.com/feltworks/tourneyclock/go/internal/sync"
	"github.com/feltworks/tourneyclock/go/internal/tournament"
)

type Services struct {
	Controller  *clock.Controller
	Ticker      *clock.Ticker
	Hub         *gateway.Hub
	Coordinator *sync.Coordinator
	Publisher   *gateway.JetStreamPublisher
}

func setupServices(database *sql.DB, config *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Transport layer

	tournamentRepo := tournament.NewRepository(database)
	tournamentApp := tournament.NewApp(tournamentRepo)

	hub := gateway.NewHub(gateway.DefaultHubConfig())
	sinks := []gateway.Sink{hub}

	var publisher *gateway.JetStreamPublisher
	if config.NATS.Enabled {
		jsCfg := gateway.DefaultJetStreamConfig()
		if config.NATS.URL != "" {
			jsCfg.URL = config.NATS.URL
		}
		jsCfg.StreamName = config.NATS.StreamName
		jsCfg.SubjectPrefix = config.NATS.SubjectPrefix

		p, err := gateway.NewJetStreamPublisher(jsCfg)
		if err != nil {
			return nil, err
		}
		publisher = p
		sinks = append(sinks, publisher)
	}

	// The ticker observes controller events to learn which tournaments are
	// live, and reads back through the controller on each tick. The read side
	// is bound through a closure because the two reference each other.
	var controller *clock.Controller
	ticker := clock.NewTicker(
		clock.StateReaderFunc(func(ctx context.Context, id uuid.UUID) (*models.ClockState, error) {
			return controller.GetState(ctx, id)
		}),
		nil,
		config.Clock.TickInterval,
	)

	controller = clock.NewController(
		clock.NewRepository(database),
		tournamentApp,
		clock.MultiBroadcaster{gateway.NewBroadcaster(sinks...), ticker},
		nil,
	)
	if config.Clock.MaxTickWindow != 0 {
		controller.SetMaxTickWindow(config.Clock.MaxTickWindow)
	}

	registry := sync.NewRegistry()
	registry.Register("tournament", tournamentApp.ApplyChange)
	registry.Register("blind_schedule", tournamentApp.ApplyScheduleChange)
	registry.Register("player_count", playerCountApplier(controller))

	coordinator := sync.NewCoordinator(sync.NewRepository(database), registry, nil)

	return &Services{
		Controller:  controller,
		Ticker:      ticker,
		Hub:         hub,
		Coordinator: coordinator,
		Publisher:   publisher,
	}, nil
}

// playerCountApplier maps synced player-count changes onto the controller so
// offline-entered eliminations land through the clock's single writer.
func playerCountApplier(controller *clock.Controller) sync.ApplyFunc {
	type payload struct {
		TotalPlayers     int `json:"total_players"`
		RemainingPlayers int `json:"remaining_players"`
	}
	return func(ctx context.Context, change models.ChangeRecord) error {
		id, err := uuid.Parse(change.EntityID)
		if err != nil {
			return err
		}
		var p payload
		if err := json.Unmarshal(change.Data, &p); err != nil {
			return err
		}
		_, err = controller.SetPlayerCounts(ctx, id, p.TotalPlayers, p.RemainingPlayers)
		if err != nil {
			log.Warn().Err(err).Str("tournament_id", id.String()).Msg("player count sync rejected")
		}
		return err
	}
}
