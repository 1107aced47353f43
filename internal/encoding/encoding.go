// Package encoding serializes outgoing classification records.
package encoding

import (
	_ "embed"
	"fmt"
	"math"

	"github.com/hamba/avro/v2"

	"github.com/mwvgroup/pittgoogle-user/internal/events"
)

// SchemaName is the outgoing record's schema.
const SchemaName = "elasticc.v0_9_1.brokerClassification"

//go:embed schemas/elasticc.v0_9_1.brokerClassification.avsc
var classificationSchemaJSON string

var classificationSchema = avro.MustParse(classificationSchemaJSON)

// Schema returns the parsed brokerClassification schema.
func Schema() avro.Schema {
	return classificationSchema
}

// EncodeClassification validates msg and returns its schemaless Avro encoding.
// Any failure is an ErrSchemaViolation.
func EncodeClassification(msg *events.OutgoingMessage) ([]byte, error) {
	if err := Validate(msg); err != nil {
		return nil, err
	}
	data, err := avro.Marshal(classificationSchema, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", events.ErrSchemaViolation, err)
	}
	return data, nil
}

// DecodeClassification reverses EncodeClassification.
func DecodeClassification(data []byte) (*events.OutgoingMessage, error) {
	var msg events.OutgoingMessage
	if err := avro.Unmarshal(classificationSchema, data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", SchemaName, err)
	}
	return &msg, nil
}

// Validate checks the fields the schema cannot express.
func Validate(msg *events.OutgoingMessage) error {
	if msg == nil {
		return fmt.Errorf("%w: nil message", events.ErrSchemaViolation)
	}
	switch {
	case msg.BrokerName == "":
		return fmt.Errorf("%w: brokerName is empty", events.ErrSchemaViolation)
	case msg.ClassifierName == "":
		return fmt.Errorf("%w: classifierName is empty", events.ErrSchemaViolation)
	case msg.ElasticcPublishTimestamp <= 0:
		return fmt.Errorf("%w: elasticcPublishTimestamp is not set", events.ErrSchemaViolation)
	case msg.BrokerIngestTimestamp <= 0:
		return fmt.Errorf("%w: brokerIngestTimestamp is not set", events.ErrSchemaViolation)
	case len(msg.Classifications) == 0:
		return fmt.Errorf("%w: classifications is empty", events.ErrSchemaViolation)
	}
	for i, c := range msg.Classifications {
		p := float64(c.Probability)
		if math.IsNaN(p) || p < 0 || p > 1 {
			return fmt.Errorf("%w: classifications[%d].probability is %v", events.ErrSchemaViolation, i, c.Probability)
		}
	}
	return nil
}
