// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/conveyor-media/conveyor/internal/config"
	"github.com/conveyor-media/conveyor/internal/eventstream"
	"github.com/conveyor-media/conveyor/internal/logging"
	"github.com/conveyor-media/conveyor/internal/notify"
	"github.com/conveyor-media/conveyor/internal/pipeline"
	"github.com/conveyor-media/conveyor/internal/server"
	"github.com/conveyor-media/conveyor/internal/source"
	"github.com/conveyor-media/conveyor/internal/step"
	"github.com/conveyor-media/conveyor/internal/store"
	"github.com/conveyor-media/conveyor/internal/supervisor"
	"github.com/conveyor-media/conveyor/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("conveyor exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Caller: cfg.Log.Caller,
	})
	logging.Info().Msg("starting conveyor")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Record store and idempotency ledger.
	db, err := store.Open(store.Options{
		Dir:      cfg.Store.Dir,
		InMemory: cfg.Store.InMemory,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("store close failed")
		}
	}()
	records := store.NewRecordStore(db)
	ledger := store.NewLedger(db, cfg.Store.LedgerRetention)

	// Transport: embedded NATS when configured, otherwise an external URL.
	natsURL := cfg.NATS.URL
	if cfg.NATS.EmbeddedServer {
		serverCfg := eventstream.DefaultServerConfig()
		serverCfg.StoreDir = cfg.NATS.StoreDir
		if host, port, err := splitNATSURL(cfg.NATS.URL); err == nil {
			serverCfg.Host = host
			serverCfg.Port = port
		}
		embedded, err := eventstream.NewEmbeddedServer(&serverCfg)
		if err != nil {
			return fmt.Errorf("start embedded nats: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := embedded.Shutdown(shutdownCtx); err != nil {
				logging.Error().Err(err).Msg("embedded nats shutdown failed")
			}
		}()
		natsURL = embedded.ClientURL()
		logging.Info().Str("url", natsURL).Msg("embedded nats ready")
	}

	// Provision both streams before any publishers or subscribers connect.
	eventInit, notifInit, err := provisionStreams(ctx, natsURL, cfg)
	if err != nil {
		return err
	}

	wmLogger := logging.NewWatermillAdapter()

	// Inbound storage events.
	subCfg := eventstream.DefaultSubscriberConfig(natsURL)
	subCfg.DurableName = cfg.NATS.DurableName
	subCfg.QueueGroup = cfg.NATS.QueueGroup
	subCfg.AckWaitTimeout = cfg.NATS.AckWait
	subCfg.MaxDeliver = cfg.NATS.MaxDeliver
	subCfg.MaxAckPending = cfg.NATS.MaxAckPending
	subscriber, err := eventstream.NewSubscriber(&subCfg, wmLogger)
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}

	src, err := source.NewWatermillSource(ctx, subscriber, eventstream.EventSubjects, source.BatchConfig{
		Size: cfg.Pipeline.BatchSize,
		Wait: cfg.Pipeline.BatchWait,
	})
	if err != nil {
		return fmt.Errorf("subscribe to events: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			logging.Error().Err(err).Msg("source close failed")
		}
	}()

	// Outbound notifications, breaker-protected.
	pubCfg := eventstream.DefaultPublisherConfig(natsURL)
	wmPublisher, err := eventstream.NewPublisher(&pubCfg, wmLogger)
	if err != nil {
		return fmt.Errorf("create publisher: %w", err)
	}
	publisher, err := notify.NewWatermillPublisher(wmPublisher, wmLogger)
	if err != nil {
		return fmt.Errorf("wrap publisher: %w", err)
	}
	publisher.WithCircuitBreaker("notifications", 5, 30*time.Second)
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("publisher close failed")
		}
	}()

	// Processing chain: accept policy first, then metadata extraction.
	ingestStep := step.NewChain("ingest",
		step.NewValidate(step.Policy{
			MaxSizeBytes: cfg.Policy.MaxSizeBytes,
			AllowedTypes: cfg.Policy.AllowedTypes,
		}),
		step.Metadata{},
	)

	orchestrator := pipeline.NewOrchestrator(records, ledger, ingestStep, publisher, pipeline.Config{
		StepTimeout: cfg.Pipeline.StepTimeout,
	})
	consumer := pipeline.NewConsumer(src, orchestrator)

	// Websocket tap on the notification stream.
	hub := websocket.NewHub()
	feedSubCfg := eventstream.DefaultSubscriberConfig(natsURL)
	feedSubCfg.StreamName = eventstream.NotificationStreamName
	feedSubCfg.DurableName = cfg.NATS.DurableName + "-ws"
	feedSubCfg.QueueGroup = cfg.NATS.QueueGroup + "-ws"
	feedSubscriber, err := eventstream.NewSubscriber(&feedSubCfg, wmLogger)
	if err != nil {
		return fmt.Errorf("create feed subscriber: %w", err)
	}
	defer func() {
		if err := feedSubscriber.Close(); err != nil {
			logging.Error().Err(err).Msg("feed subscriber close failed")
		}
	}()
	feed := websocket.NewFeed(feedSubscriber, hub, websocket.DefaultTopics())

	ready := func() error {
		checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if !eventInit.IsHealthy(checkCtx) {
			return errors.New("event stream unavailable")
		}
		if !notifInit.IsHealthy(checkCtx) {
			return errors.New("notification stream unavailable")
		}
		return nil
	}
	httpServer := server.New(cfg.Server, records, hub, ready)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddStorageService(supervisor.NewGCService(db, cfg.Store.GCInterval))
	tree.AddPipelineService(hub)
	tree.AddPipelineService(feed)
	tree.AddPipelineService(consumer)
	tree.AddOpsService(httpServer)

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("conveyor running")
	err = tree.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		logging.Info().Msg("conveyor stopped")
		return nil
	}
	return err
}

// provisionStreams creates or updates the event and notification streams.
func provisionStreams(ctx context.Context, natsURL string, cfg *config.Config) (*eventstream.StreamInitializer, *eventstream.StreamInitializer, error) {
	nc, err := natsgo.Connect(natsURL,
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream context: %w", err)
	}

	eventCfg := eventstream.DefaultStreamConfig()
	eventInit, err := eventstream.NewStreamInitializer(js, &eventCfg)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	if _, err := eventInit.EnsureStream(ctx); err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("provision event stream: %w", err)
	}

	notifCfg := eventstream.DefaultNotificationStreamConfig()
	notifInit, err := eventstream.NewStreamInitializer(js, &notifCfg)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	if _, err := notifInit.EnsureStream(ctx); err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("provision notification stream: %w", err)
	}

	logging.Info().
		Str("event_stream", eventstream.StreamName).
		Str("notification_stream", eventstream.NotificationStreamName).
		Msg("jetstream streams provisioned")
	return eventInit, notifInit, nil
}

// splitNATSURL extracts host and port from a nats:// URL for the embedded
// server's listen address.
func splitNATSURL(rawURL string) (string, int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, err
	}
	port := 4222
	if p := u.Port(); p != "" {
		if _, err := fmt.Sscanf(p, "%d", &port); err != nil {
			return "", 0, err
		}
	}
	host := u.Hostname()
	if host == "" {
		return "", 0, fmt.Errorf("no host in %q", rawURL)
	}
	return host, port, nil
}
