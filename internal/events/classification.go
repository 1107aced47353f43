package events

import (
	"fmt"
	"time"
)

// Classification is one entry of the outgoing classifications list.
type Classification struct {
	ClassID     int32   `avro:"classId" json:"classId"`
	Probability float32 `avro:"probability" json:"probability"`
}

// OutgoingMessage is the brokerClassification record published downstream.
// Timestamps are milliseconds since the Unix epoch.
type OutgoingMessage struct {
	AlertID                  int64            `avro:"alertId" json:"alertId"`
	DiaSourceID              int64            `avro:"diaSourceId" json:"diaSourceId"`
	ElasticcPublishTimestamp int64            `avro:"elasticcPublishTimestamp" json:"elasticcPublishTimestamp"`
	BrokerIngestTimestamp    int64            `avro:"brokerIngestTimestamp" json:"brokerIngestTimestamp"`
	BrokerName               string           `avro:"brokerName" json:"brokerName"`
	BrokerVersion            string           `avro:"brokerVersion" json:"brokerVersion"`
	ClassifierName           string           `avro:"classifierName" json:"classifierName"`
	ClassifierParams         string           `avro:"classifierParams" json:"classifierParams"`
	Classifications          []Classification `avro:"classifications" json:"classifications"`
}

// ClassificationRow is the flat record inserted into the analytic table.
type ClassificationRow struct {
	AlertID                  int64
	ObjectID                 string
	SourceID                 int64
	Probabilities            []float64
	PredictedClass           int
	Timestamp                time.Time
	BrokerVersion            string
	ClassifierName           string
	ElasticcPublishTimestamp time.Time
	BrokerIngestTimestamp    time.Time
}

// ProbColumn returns the table column name for class index i.
func ProbColumn(i int) string {
	return fmt.Sprintf("prob_class%d", i)
}

// Values flattens the row into column name -> value, one prob_classN column per class.
func (r *ClassificationRow) Values() map[string]any {
	values := map[string]any{
		"alertId":                  r.AlertID,
		"diaObjectId":              r.ObjectID,
		"diaSourceId":              r.SourceID,
		"predicted_class":          r.PredictedClass,
		"timestamp":                r.Timestamp.UTC(),
		"brokerVersion":            r.BrokerVersion,
		"classifierName":           r.ClassifierName,
		"elasticcPublishTimestamp": r.ElasticcPublishTimestamp.UTC(),
		"brokerIngestTimestamp":    r.BrokerIngestTimestamp.UTC(),
	}
	for i, p := range r.Probabilities {
		values[ProbColumn(i)] = p
	}
	return values
}
