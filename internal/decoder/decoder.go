// Package decoder turns raw Avro alert bytes into an events.AlertRecord.
//
// Surveys that publish container files (ZTF, DECAT) carry their own writer
// schema. ELAsTiCC publishes schemaless binary, decoded with the embedded
// alert schema.
package decoder

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/hamba/avro/v2"
	"github.com/hamba/avro/v2/ocf"

	"github.com/mwvgroup/pittgoogle-user/internal/events"
	"github.com/mwvgroup/pittgoogle-user/internal/schemamap"
)

//go:embed schemas/*.avsc
var schemaFiles embed.FS

// ocfMagic prefixes every Avro object container file.
var ocfMagic = []byte{'O', 'b', 'j', 1}

// Decoder decodes alerts for one survey.
type Decoder struct {
	schemaMap *schemamap.Map
	// schemaless is the reader schema for surveys that publish bare binary.
	// Nil when the survey only publishes container files.
	schemaless avro.Schema
}

// New returns a Decoder for the survey described by m.
func New(m *schemamap.Map) (*Decoder, error) {
	d := &Decoder{schemaMap: m}
	if m.SchemaName == "" {
		return d, nil
	}
	data, err := schemaFiles.ReadFile("schemas/" + m.SchemaName + ".avsc")
	if err != nil {
		// No embedded schema: the survey must publish container files.
		return d, nil
	}
	schema, err := avro.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema %s: %w", m.SchemaName, err)
	}
	d.schemaless = schema
	return d, nil
}

// Survey returns the survey this decoder serves.
func (d *Decoder) Survey() string {
	return d.schemaMap.Survey
}

// SchemaMap returns the survey's schema map.
func (d *Decoder) SchemaMap() *schemamap.Map {
	return d.schemaMap
}

// DecodeMap decodes data into a generic record. Union wrappers are removed
// so nullable fields hold their value or nil.
func (d *Decoder) DecodeMap(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty alert payload", events.ErrBadRequest)
	}
	if bytes.HasPrefix(data, ocfMagic) {
		return decodeContainer(data)
	}
	if d.schemaless == nil {
		return nil, fmt.Errorf("%w: %s alerts must be Avro container files", events.ErrBadRequest, d.schemaMap.Survey)
	}

	var rec map[string]any
	if err := avro.Unmarshal(d.schemaless, data, &rec); err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s alert: %v", events.ErrBadRequest, d.schemaMap.Survey, err)
	}
	out, _ := Normalize(d.schemaless, rec).(map[string]any)
	if out == nil {
		return nil, fmt.Errorf("%w: %s alert is not a record", events.ErrBadRequest, d.schemaMap.Survey)
	}
	return out, nil
}

func decodeContainer(data []byte) (map[string]any, error) {
	dec, err := ocf.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open Avro container: %v", events.ErrBadRequest, err)
	}
	if !dec.HasNext() {
		if err := dec.Error(); err != nil {
			return nil, fmt.Errorf("%w: failed to read Avro container: %v", events.ErrBadRequest, err)
		}
		return nil, fmt.Errorf("%w: Avro container holds no records", events.ErrBadRequest)
	}

	var rec map[string]any
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: failed to decode alert: %v", events.ErrBadRequest, err)
	}

	schema, err := avro.Parse(string(dec.Metadata()["avro.schema"]))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid writer schema: %v", events.ErrBadRequest, err)
	}
	out, _ := Normalize(schema, rec).(map[string]any)
	if out == nil {
		return nil, fmt.Errorf("%w: alert is not a record", events.ErrBadRequest)
	}
	return out, nil
}

// Decode decodes data and extracts identifiers and detections via the schema map.
func (d *Decoder) Decode(data []byte) (*events.AlertRecord, error) {
	raw, err := d.DecodeMap(data)
	if err != nil {
		return nil, err
	}
	return d.Extract(raw)
}

// Extract builds an AlertRecord from an already decoded alert.
func (d *Decoder) Extract(raw map[string]any) (*events.AlertRecord, error) {
	m := d.schemaMap

	sourceID, err := d.int64Field(schemamap.KeySourceID, raw)
	if err != nil {
		return nil, err
	}
	alertID := sourceID
	if m.Has(schemamap.KeyAlertID) {
		if alertID, err = d.int64Field(schemamap.KeyAlertID, raw); err != nil {
			return nil, err
		}
	}

	v, ok := m.Value(schemamap.KeyObjectID, raw)
	if !ok {
		return nil, d.missing(schemamap.KeyObjectID)
	}
	objectID, ok := AsString(v)
	if !ok {
		return nil, fmt.Errorf("%w: %s has type %T", events.ErrSchemaMismatch, d.path(schemamap.KeyObjectID), v)
	}

	v, ok = m.Value(schemamap.KeySource, raw)
	if !ok {
		return nil, d.missing(schemamap.KeySource)
	}
	source, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a record", events.ErrSchemaMismatch, d.path(schemamap.KeySource))
	}

	idField := m.Key(schemamap.KeySourceID)
	var detections []events.Detection
	if prv, ok := m.Value(schemamap.KeyPrvSources, raw); ok {
		list, ok := prv.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an array", events.ErrSchemaMismatch, d.path(schemamap.KeyPrvSources))
		}
		for _, item := range list {
			det, ok := item.(map[string]any)
			if !ok {
				continue
			}
			// Entries without a source id are upper limits, not detections.
			id, ok := AsInt64(det[idField])
			if !ok || id == sourceID {
				continue
			}
			detections = append(detections, events.Detection(det))
		}
	}
	detections = append(detections, events.Detection(source))

	return &events.AlertRecord{
		Survey:     m.Survey,
		AlertID:    alertID,
		ObjectID:   objectID,
		SourceID:   sourceID,
		Detections: detections,
		Raw:        raw,
	}, nil
}

func (d *Decoder) int64Field(key string, raw map[string]any) (int64, error) {
	v, ok := d.schemaMap.Value(key, raw)
	if !ok {
		return 0, d.missing(key)
	}
	n, ok := AsInt64(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s has type %T, want integer", events.ErrSchemaMismatch, d.path(key), v)
	}
	return n, nil
}

func (d *Decoder) path(key string) string {
	p, _ := d.schemaMap.Path(key)
	return p.String()
}

func (d *Decoder) missing(key string) error {
	return fmt.Errorf("%w: %s alert has no %s (%s)", events.ErrSchemaMismatch, d.schemaMap.Survey, key, d.path(key))
}
