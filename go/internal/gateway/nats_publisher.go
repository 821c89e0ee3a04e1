package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration
	MaxMsgs         int64
	Replicas        int
	DuplicateWindow time.Duration
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "CLOCK_EVENTS",
		SubjectPrefix:   "clock.events",
		MaxReconnects:   -1, // Infinite
		ReconnectWait:   2 * time.Second,
		MaxAge:          24 * time.Hour,
		MaxMsgs:         -1, // No limit
		Replicas:        1,
		DuplicateWindow: 2 * time.Hour,
	}
}

// JetStreamPublisher relays clock events onto a JetStream stream so external
// consumers (payout boards, venue displays, analytics) can follow tournaments
// without holding a socket on this server. Deliver only enqueues; the actual
// publish runs on the Start goroutine, so a degraded broker never stalls the
// clock controller that is broadcasting.
type JetStreamPublisher struct {
	nc        *nats.Conn
	js        jetstream.JetStream
	config    JetStreamConfig
	publishCh chan publishJob
}

type publishJob struct {
	tournamentID uuid.UUID
	event        *ClockEvent
	data         []byte
}

func NewJetStreamPublisher(cfg JetStreamConfig) (*JetStreamPublisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &JetStreamPublisher{
		nc:        nc,
		js:        js,
		config:    cfg,
		publishCh: make(chan publishJob, 1000),
	}

	if err := p.ensureStream(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	return p, nil
}

func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Tournament clock event stream",
		Subjects:    []string{fmt.Sprintf("%s.>", p.config.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.config.MaxAge,
		MaxMsgs:     p.config.MaxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    p.config.Replicas,
		Duplicates:  p.config.DuplicateWindow,
	}

	stream, err := p.js.Stream(ctx, p.config.StreamName)
	if err != nil {
		if _, err = p.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().
			Str("stream", p.config.StreamName).
			Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !isStreamConfigEqual(info.Config, sc) {
		if _, err = p.js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		log.Info().
			Str("stream", p.config.StreamName).
			Msg("updated JetStream stream")
	}
	return nil
}

var _ Sink = (*JetStreamPublisher)(nil)

func (p *JetStreamPublisher) Name() string { return "jetstream" }

// Deliver enqueues the event for the Start goroutine and never blocks. When
// the queue is full (broker down long enough to back up 1000 events) the
// event is dropped; stream consumers recover state from the next event.
func (p *JetStreamPublisher) Deliver(tournamentID uuid.UUID, event *ClockEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	select {
	case p.publishCh <- publishJob{tournamentID: tournamentID, event: event, data: data}:
		return nil
	default:
		return fmt.Errorf("publish queue full, dropping event %s", event.ID)
	}
}

// Start drains the publish queue until ctx is cancelled.
func (p *JetStreamPublisher) Start(ctx context.Context) {
	log.Info().Str("stream", p.config.StreamName).Msg("starting JetStream publish loop")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping JetStream publish loop")
			return
		case job := <-p.publishCh:
			if err := p.publish(ctx, job); err != nil {
				log.Error().Err(err).
					Str("event_id", job.event.ID).
					Str("tournament_id", job.tournamentID.String()).
					Msg("failed to publish to JetStream")
			}
		}
	}
}

// publish sends one event with its id as the JetStream message id, so a
// redelivered broadcast deduplicates inside the stream's duplicate window.
func (p *JetStreamPublisher) publish(ctx context.Context, job publishJob) error {
	subject := fmt.Sprintf("%s.%s", p.config.SubjectPrefix, job.event.Type)

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ack, err := p.js.PublishMsg(pubCtx, &nats.Msg{
		Subject: subject,
		Data:    job.data,
		Header: nats.Header{
			"Event-Type":    []string{string(job.event.Type)},
			"Tournament-ID": []string{job.tournamentID.String()},
			"Event-ID":      []string{job.event.ID},
		},
	},
		jetstream.WithMsgID(job.event.ID),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", job.event.ID).
		Uint64("sequence", ack.Sequence).
		Msg("published to JetStream")
	return nil
}

func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

func isStreamConfigEqual(a, b jetstream.StreamConfig) bool {
	return a.Name == b.Name &&
		a.MaxAge == b.MaxAge &&
		a.MaxMsgs == b.MaxMsgs &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates
}
