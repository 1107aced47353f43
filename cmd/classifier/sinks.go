package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mwvgroup/pittgoogle-user/internal/config"
	"github.com/mwvgroup/pittgoogle-user/internal/database"
	"github.com/mwvgroup/pittgoogle-user/internal/gcp"
	"github.com/mwvgroup/pittgoogle-user/internal/processor"
	"github.com/mwvgroup/pittgoogle-user/internal/producer"
)

// sinks holds the table writer and publisher for the configured backend.
type sinks struct {
	table     processor.TableWriter
	publisher processor.Publisher
	closers   []func() error
}

func (s *sinks) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			slog.Warn("Error closing sink", "error", err)
		}
	}
}

func openSinks(ctx context.Context, cfg *config.Config, names config.ResourceNames) (*sinks, error) {
	switch cfg.SinkBackend {
	case config.BackendGCP:
		return openGCP(ctx, cfg)
	case config.BackendKafka:
		return openKafka(ctx, cfg, names)
	default:
		return nil, fmt.Errorf("unknown sink backend %q", cfg.SinkBackend)
	}
}

// openGCP connects to BigQuery and Pub/Sub in the configured project.
func openGCP(ctx context.Context, cfg *config.Config) (*sinks, error) {
	opts, err := gcp.ClientOptions(ctx, cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	table, err := gcp.NewTableWriter(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}
	pub, err := gcp.NewPublisher(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}
	slog.Info("Connected to Google Cloud", "project", cfg.ProjectID)
	return &sinks{table: table, publisher: pub}, nil
}

// openKafka connects to PostgreSQL for the table and Kafka for the topic.
func openKafka(ctx context.Context, cfg *config.Config, names config.ResourceNames) (*sinks, error) {
	slog.Info("Connecting to PostgreSQL database")
	db, err := database.NewDB(cfg.PostgresDSN)
	if err != nil {
		slog.Info("Tip: Start Postgres with 'docker compose up -d postgres' or ensure Postgres is running")
		return nil, err
	}
	if err := db.EnsureTable(ctx, names.Table); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("Connecting to Kafka producer", "topic", names.Topic)
	prod, err := producer.NewProducer(cfg.KafkaBrokers, names.Topic)
	if err != nil {
		db.Close()
		slog.Info("Tip: Start Kafka with 'docker compose up -d kafka'")
		return nil, err
	}
	return &sinks{table: db, publisher: prod, closers: []func() error{prod.Close, db.Close}}, nil
}
