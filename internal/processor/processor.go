// Package processor runs one pushed alert through the classification pipeline:
// decode, format, classify, map to the taxonomy, then store and publish.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/mwvgroup/pittgoogle-user/internal/classifier"
	"github.com/mwvgroup/pittgoogle-user/internal/encoding"
	"github.com/mwvgroup/pittgoogle-user/internal/events"
	"github.com/mwvgroup/pittgoogle-user/internal/features"
	"github.com/mwvgroup/pittgoogle-user/internal/result"
	"github.com/mwvgroup/pittgoogle-user/internal/schemamap"
	"github.com/mwvgroup/pittgoogle-user/internal/taxonomy"
)

// BrokerName is written into every outgoing record.
const BrokerName = "Pitt-Google Broker"

// KafkaTimestampAttr carries the survey's publish time, in ms, on inbound messages.
const KafkaTimestampAttr = "kafka.timestamp"

// Counter names reported through MetricsRecorder.Increment.
const (
	CounterClassified        = "classified"
	CounterTableInsertErrors = "table_insert_errors"
	CounterPublishErrors     = "publish_errors"
	CounterCacheHits         = "cache_hits"
)

// Settings name the deployment's outputs and provenance.
type Settings struct {
	// Module is the deployment name; the predicted class is attached under it.
	Module           string
	Table            string
	Topic            string
	ClassifierName   string
	ClassifierParams string
	BrokerVersion    string
}

// Deps are the processor's collaborators. Metrics may be nil.
type Deps struct {
	Decoder    AlertDecoder
	SchemaMap  *schemamap.Map
	Policy     features.Policy
	Classifier classifier.Classifier
	Taxonomy   taxonomy.Mapping
	Classes    int
	Table      TableWriter
	Publisher  Publisher
	Metrics    MetricsRecorder
}

// Processor handles one push message at a time. It holds no per-request state.
type Processor struct {
	deps     Deps
	settings Settings
	metrics  MetricsRecorder
	now      func() time.Time
}

// Outcome is what happened to one alert.
type Outcome struct {
	Alert       *events.AlertRecord
	Result      *result.ClassificationResult
	Message     *events.OutgoingMessage
	Row         *events.ClassificationRow
	Publication *events.Publication
	FromCache   bool

	// Sink failures. They never make Process fail.
	TableErr   error
	PublishErr error
}

// New validates deps and returns a Processor.
func New(deps Deps, settings Settings) (*Processor, error) {
	switch {
	case deps.Decoder == nil:
		return nil, fmt.Errorf("decoder is required")
	case deps.SchemaMap == nil:
		return nil, fmt.Errorf("schema map is required")
	case deps.Classifier == nil:
		return nil, fmt.Errorf("classifier is required")
	case deps.Table == nil:
		return nil, fmt.Errorf("table writer is required")
	case deps.Publisher == nil:
		return nil, fmt.Errorf("publisher is required")
	}
	if err := deps.Taxonomy.Validate(deps.Classes); err != nil {
		return nil, err
	}
	if settings.Table == "" || settings.Topic == "" {
		return nil, fmt.Errorf("table and topic are required")
	}

	m := deps.Metrics
	if m == nil {
		m = &NoOpMetrics{}
	}
	return &Processor{deps: deps, settings: settings, metrics: m, now: time.Now}, nil
}

// Process classifies the alert in msg, then stores and publishes the result.
// Fatal errors wrap one of the events error classes and nothing is emitted.
func (p *Processor) Process(ctx context.Context, msg *events.PushMessage) (*Outcome, error) {
	start := p.now()
	p.metrics.RecordReceived()

	out, err := p.classify(ctx, msg)
	if err != nil {
		p.metrics.RecordError(ErrorClass(err))
		slog.Warn("Alert rejected",
			"message_id", msg.ID(),
			"error_class", ErrorClass(err),
			"error", err,
		)
		return nil, err
	}

	p.emit(ctx, out)

	p.metrics.Increment(CounterClassified)
	p.metrics.RecordProcessed(p.now().Sub(start))

	slog.Info("Classified alert",
		"alert_id", out.Alert.AlertID,
		"object_id", out.Alert.ObjectID,
		"source_id", out.Alert.SourceID,
		"predicted_class", out.Result.PredictedClass,
		"cached", out.FromCache,
	)
	return out, nil
}

// classify runs every step that can fail the request.
func (p *Processor) classify(ctx context.Context, msg *events.PushMessage) (*Outcome, error) {
	rec, err := p.deps.Decoder.Decode(msg.Data)
	if err != nil {
		return nil, err
	}

	table, err := features.Format(rec, p.deps.Policy)
	if err != nil {
		return nil, err
	}

	pred, err := p.deps.Classifier.Classify(ctx, table)
	if err != nil {
		return nil, err
	}
	if pred.FromCache {
		p.metrics.Increment(CounterCacheHits)
	}
	if len(pred.Probabilities) != p.deps.Classes {
		return nil, fmt.Errorf("%w: classifier returned %d probabilities, want %d",
			events.ErrClassificationUnavailable, len(pred.Probabilities), p.deps.Classes)
	}

	res, err := result.New(rec, pred.Probabilities, p.now())
	if err != nil {
		return nil, err
	}

	classes, err := p.deps.Taxonomy.Map(res.Probabilities)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", events.ErrClassificationUnavailable, err)
	}

	elasticcPublished, err := kafkaTimestamp(msg.Attributes)
	if err != nil {
		return nil, err
	}

	out := &events.OutgoingMessage{
		AlertID:                  rec.AlertID,
		DiaSourceID:              rec.SourceID,
		ElasticcPublishTimestamp: elasticcPublished,
		BrokerIngestTimestamp:    msg.PublishTime.UnixMilli(),
		BrokerName:               BrokerName,
		BrokerVersion:            p.settings.BrokerVersion,
		ClassifierName:           p.settings.ClassifierName,
		ClassifierParams:         p.settings.ClassifierParams,
		Classifications:          classes,
	}
	data, err := encoding.EncodeClassification(out)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Alert:   rec,
		Result:  res,
		Message: out,
		Row: &events.ClassificationRow{
			AlertID:                  rec.AlertID,
			ObjectID:                 rec.ObjectID,
			SourceID:                 rec.SourceID,
			Probabilities:            res.Probabilities,
			PredictedClass:           res.PredictedClass,
			Timestamp:                res.Timestamp,
			BrokerVersion:            p.settings.BrokerVersion,
			ClassifierName:           p.settings.ClassifierName,
			ElasticcPublishTimestamp: time.UnixMilli(elasticcPublished).UTC(),
			BrokerIngestTimestamp:    msg.PublishTime,
		},
		Publication: &events.Publication{
			Topic:      p.settings.Topic,
			Data:       data,
			Attributes: p.attributes(msg, rec, res),
			Key:        rec.ObjectID,
		},
		FromCache: pred.FromCache,
	}, nil
}

// emit writes the row, then publishes. Each sink is attempted exactly once
// and a failure in one does not skip the other.
func (p *Processor) emit(ctx context.Context, out *Outcome) {
	if err := p.deps.Table.Insert(ctx, p.settings.Table, out.Row); err != nil {
		out.TableErr = err
		p.metrics.Increment(CounterTableInsertErrors)
		slog.Warn("Table insert failed",
			"table", p.settings.Table,
			"alert_id", out.Alert.AlertID,
			"error", err,
		)
	}

	if err := p.deps.Publisher.Publish(ctx, out.Publication); err != nil {
		out.PublishErr = err
		p.metrics.Increment(CounterPublishErrors)
		slog.Error("Publish failed",
			"topic", p.settings.Topic,
			"alert_id", out.Alert.AlertID,
			"error", err,
		)
		return
	}
	p.metrics.RecordPublished()
}

// attributes are the inbound attributes plus ingest time, the alert's ids
// under the survey's names and the predicted class under the module name.
func (p *Processor) attributes(msg *events.PushMessage, rec *events.AlertRecord, res *result.ClassificationResult) map[string]string {
	attrs := make(map[string]string, len(msg.Attributes)+4)
	for k, v := range msg.Attributes {
		attrs[k] = v
	}
	attrs["brokerIngestTimestamp"] = strconv.FormatInt(msg.PublishTime.UnixMilli(), 10)
	m := p.deps.SchemaMap
	attrs[m.Key(schemamap.KeyObjectID)] = rec.ObjectID
	attrs[m.Key(schemamap.KeySourceID)] = strconv.FormatInt(rec.SourceID, 10)
	if p.settings.Module != "" {
		attrs[p.settings.Module] = strconv.Itoa(res.PredictedClass)
	}
	return attrs
}

func kafkaTimestamp(attrs map[string]string) (int64, error) {
	raw, ok := attrs[KafkaTimestampAttr]
	if !ok || raw == "" {
		return 0, fmt.Errorf("%w: message has no %s attribute", events.ErrSchemaViolation, KafkaTimestampAttr)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s attribute %q is not an integer", events.ErrSchemaViolation, KafkaTimestampAttr, raw)
	}
	return ms, nil
}

// ErrorClass names the error class of a fatal processing error.
func ErrorClass(err error) string {
	switch {
	case errors.Is(err, events.ErrBadRequest):
		return "bad_request"
	case errors.Is(err, events.ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, events.ErrClassificationUnavailable):
		return "classification_unavailable"
	case errors.Is(err, events.ErrSchemaViolation):
		return "schema_violation"
	default:
		return "internal"
	}
}
