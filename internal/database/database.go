// Package database stores classification rows in PostgreSQL.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/mwvgroup/pittgoogle-user/internal/events"
)

// DB wraps a database connection and provides classification operations.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection using the provided DSN.
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Successfully connected to PostgreSQL database")

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		slog.Info("Closing database connection")
		return db.conn.Close()
	}
	return nil
}

// QuoteTable quotes a "dataset.table" name as a schema-qualified identifier.
func QuoteTable(table string) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// EnsureTable creates the dataset schema and the classification table if needed.
func (db *DB) EnsureTable(ctx context.Context, table string) error {
	if schema, _, ok := strings.Cut(table, "."); ok {
		if _, err := db.conn.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(schema)); err != nil {
			return fmt.Errorf("failed to create schema %s: %w", schema, err)
		}
	}

	query := `CREATE TABLE IF NOT EXISTS ` + QuoteTable(table) + ` (
		alert_id                   BIGINT NOT NULL,
		dia_object_id              TEXT NOT NULL,
		dia_source_id              BIGINT NOT NULL,
		probabilities              DOUBLE PRECISION[] NOT NULL,
		predicted_class            INTEGER NOT NULL,
		classified_at              TIMESTAMPTZ NOT NULL,
		broker_version             TEXT NOT NULL,
		classifier_name            TEXT NOT NULL,
		elasticc_publish_timestamp TIMESTAMPTZ,
		broker_ingest_timestamp    TIMESTAMPTZ,
		PRIMARY KEY (alert_id, classifier_name)
	)`
	if _, err := db.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

// Insert writes one classification row. A redelivered alert conflicts on
// (alert_id, classifier_name) and is skipped.
func (db *DB) Insert(ctx context.Context, table string, row *events.ClassificationRow) error {
	query := `
		INSERT INTO ` + QuoteTable(table) + ` (alert_id, dia_object_id, dia_source_id, probabilities, predicted_class,
			classified_at, broker_version, classifier_name, elasticc_publish_timestamp, broker_ingest_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (alert_id, classifier_name) DO NOTHING
	`

	res, err := db.conn.ExecContext(ctx, query,
		row.AlertID,
		row.ObjectID,
		row.SourceID,
		pq.Array(row.Probabilities),
		row.PredictedClass,
		row.Timestamp.UTC(),
		row.BrokerVersion,
		row.ClassifierName,
		nullTime(row.ElasticcPublishTimestamp),
		nullTime(row.BrokerIngestTimestamp),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to insert into %s: %v", events.ErrSinkError, table, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		slog.Debug("Classification already stored, skipping",
			"alert_id", row.AlertID,
			"table", table,
		)
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
