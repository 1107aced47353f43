// Package config provides configuration parsing and validation for the classifier service.
package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/mwvgroup/pittgoogle-user/internal/schemamap"
)

// Sink backends.
const (
	BackendGCP   = "gcp"
	BackendKafka = "kafka"
)

// NoTestID is the TESTID value of a production deployment.
const NoTestID = "False"

// Config holds all configuration parameters for the classifier service.
type Config struct {
	HTTPPort        string
	ProjectID       string
	TestID          string
	Survey          string
	Classifier      string
	ModelDir        string
	InferenceURL    string
	BrokerVersion   string
	SinkBackend     string
	CredentialsFile string
	KafkaBrokers    string
	PostgresDSN     string
	RedisAddr       string
	CacheTTL        time.Duration
	LogLevel        string
}

// Validate checks that all required configuration fields are set and have valid values.
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("http-port cannot be empty")
	}
	if c.Survey == "" {
		return fmt.Errorf("survey cannot be empty")
	}
	if _, err := schemamap.Load(c.Survey); err != nil {
		return fmt.Errorf("survey: %w", err)
	}
	if _, err := c.Profile(); err != nil {
		return err
	}
	if c.InferenceURL == "" {
		return fmt.Errorf("inference-url cannot be empty")
	}
	if c.BrokerVersion == "" {
		return fmt.Errorf("broker-version cannot be empty")
	}
	switch c.SinkBackend {
	case BackendGCP:
		if c.ProjectID == "" {
			return fmt.Errorf("project-id cannot be empty for the gcp backend")
		}
	case BackendKafka:
		if c.KafkaBrokers == "" {
			return fmt.Errorf("kafka-brokers cannot be empty for the kafka backend")
		}
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres-dsn cannot be empty for the kafka backend")
		}
	default:
		return fmt.Errorf("sink-backend must be %q or %q, got %q", BackendGCP, BackendKafka, c.SinkBackend)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache-ttl cannot be negative")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Profile returns the deployment profile for the configured classifier.
func (c *Config) Profile() (Profile, error) {
	return LookupProfile(c.Classifier)
}

// HasTestID reports whether resource names carry the test id.
func (c *Config) HasTestID() bool {
	return c.TestID != "" && c.TestID != NoTestID
}

// ResourceNames are the cloud resources a deployment writes to.
type ResourceNames struct {
	Dataset string
	Table   string
	Topic   string
}

// Names derives the deployment's dataset, table and topic.
func (c *Config) Names() (ResourceNames, error) {
	p, err := c.Profile()
	if err != nil {
		return ResourceNames{}, err
	}
	dataset := c.Survey + "_alerts"
	topic := c.Survey + "-" + p.TopicBase
	if c.HasTestID() {
		dataset += "_" + c.TestID
		topic += "-" + c.TestID
	}
	return ResourceNames{
		Dataset: dataset,
		Table:   dataset + "." + p.TableName,
		Topic:   topic,
	}, nil
}

// ModelPath returns the artifact path for profile p.
func (c *Config) ModelPath(p Profile) string {
	return filepath.Join(c.ModelDir, p.ModelPath)
}

// ParseLevel converts a log level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log-level must be debug, info, warn or error, got %q", s)
	}
}
