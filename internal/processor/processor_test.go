package processor

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mwvgroup/pittgoogle-user/internal/alerttest"
	"github.com/mwvgroup/pittgoogle-user/internal/classifier"
	"github.com/mwvgroup/pittgoogle-user/internal/decoder"
	"github.com/mwvgroup/pittgoogle-user/internal/encoding"
	"github.com/mwvgroup/pittgoogle-user/internal/events"
	"github.com/mwvgroup/pittgoogle-user/internal/features"
	"github.com/mwvgroup/pittgoogle-user/internal/schemamap"
	"github.com/mwvgroup/pittgoogle-user/internal/taxonomy"
)

var (
	publishTime = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	fixedNow    = time.Date(2024, 5, 6, 7, 8, 10, 0, time.UTC)
)

type harness struct {
	proc    *Processor
	table   *FakeTable
	pub     *FakePublisher
	metrics *FakeMetrics
	clf     *classifier.Static
}

func newHarness(t *testing.T, survey, tax string, probs []float64) *harness {
	t.Helper()
	m, err := schemamap.Load(survey)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	dec, err := decoder.New(m)
	if err != nil {
		t.Fatalf("decoder.New() error = %v", err)
	}
	policy, err := features.PolicyFor(m)
	if err != nil {
		t.Fatalf("PolicyFor() error = %v", err)
	}
	mapping, err := taxonomy.Lookup(tax)
	if err != nil {
		t.Fatalf("taxonomy.Lookup() error = %v", err)
	}
	clf, err := classifier.NewStatic("stub", probs)
	if err != nil {
		t.Fatalf("NewStatic() error = %v", err)
	}

	h := &harness{table: &FakeTable{}, pub: &FakePublisher{}, metrics: NewFakeMetrics(), clf: clf}
	h.proc, err = New(Deps{
		Decoder:    dec,
		SchemaMap:  m,
		Policy:     policy,
		Classifier: clf,
		Taxonomy:   mapping,
		Classes:    mapping.Len(),
		Table:      h.table,
		Publisher:  h.pub,
		Metrics:    h.metrics,
	}, Settings{
		Module:           "microlia",
		Table:            survey + "_alerts.MicroLIA",
		Topic:            survey + "-MicroLIA",
		ClassifierName:   "MicroLIA_v2.6",
		ClassifierParams: "trained_model/MicroLIA_ensemble_model",
		BrokerVersion:    "v0.6",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.proc.now = func() time.Time { return fixedNow }
	return h
}

func pushMessage(data []byte) *events.PushMessage {
	return &events.PushMessage{
		Data:        data,
		Attributes:  map[string]string{KafkaTimestampAttr: "1714979280000", "schema": "ztf"},
		MessageID:   "1",
		PublishTime: publishTime,
	}
}

func ztfAlert(t *testing.T) []byte {
	fids := []int32{1, 1, 2, 2, 1}
	mags := []float32{20.1, 20.3, 19.8, 19.9, 20.0}
	pts := make([]alerttest.ZTFPoint, len(fids))
	for i := range fids {
		pts[i] = alerttest.ZTFPoint{JD: 2460000.5 + float64(i), Fid: fids[i], Mag: mags[i], MagErr: 0.05, ZP: 25}
	}
	return alerttest.EncodeZTF(t, alerttest.NewZTF("ZTF24abcdefg", 900, pts...))
}

// TestProcess_EndToEnd runs the five-detection ZTF alert through a stubbed MicroLIA.
func TestProcess_EndToEnd(t *testing.T) {
	h := newHarness(t, "ztf", "microlia/v1", []float64{0.9, 0.05, 0.03, 0.02})

	out, err := h.proc.Process(context.Background(), pushMessage(ztfAlert(t)))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if out.Result.PredictedClass != 0 {
		t.Errorf("PredictedClass = %d, want 0", out.Result.PredictedClass)
	}
	want := []events.Classification{
		{ClassID: 2321, Probability: 0.9},
		{ClassID: 2326, Probability: 0.05},
		{ClassID: 2235, Probability: 0.03},
		{ClassID: 2323, Probability: 0.02},
	}
	if diff := cmp.Diff(want, out.Message.Classifications); diff != "" {
		t.Errorf("Classifications mismatch (-want +got):\n%s", diff)
	}
	if out.Message.AlertID != 904 || out.Message.DiaSourceID != 904 {
		t.Errorf("ids = %d, %d, want 904, 904", out.Message.AlertID, out.Message.DiaSourceID)
	}
	if out.Message.ElasticcPublishTimestamp != 1714979280000 || out.Message.BrokerIngestTimestamp != publishTime.UnixMilli() {
		t.Errorf("timestamps = %d, %d", out.Message.ElasticcPublishTimestamp, out.Message.BrokerIngestTimestamp)
	}

	if h.table.Calls != 1 || h.pub.Calls != 1 {
		t.Fatalf("sink calls = %d, %d, want 1, 1", h.table.Calls, h.pub.Calls)
	}
	if h.table.Tables[0] != "ztf_alerts.MicroLIA" {
		t.Errorf("table = %s", h.table.Tables[0])
	}
	row := h.table.Rows[0]
	if row.ObjectID != "ZTF24abcdefg" || row.PredictedClass != 0 || !row.Timestamp.Equal(fixedNow) {
		t.Errorf("row = %+v", row)
	}

	pub := h.pub.Published[0]
	decoded, err := encoding.DecodeClassification(pub.Data)
	if err != nil {
		t.Fatalf("DecodeClassification() error = %v", err)
	}
	if diff := cmp.Diff(out.Message, decoded); diff != "" {
		t.Errorf("published record mismatch (-want +got):\n%s", diff)
	}
	wantAttrs := map[string]string{
		KafkaTimestampAttr:      "1714979280000",
		"schema":                "ztf",
		"brokerIngestTimestamp": "1714979289000",
		"objectId":              "ZTF24abcdefg",
		"candid":                "904",
		"microlia":              "0",
	}
	if diff := cmp.Diff(wantAttrs, pub.Attributes); diff != "" {
		t.Errorf("attributes mismatch (-want +got):\n%s", diff)
	}
	if pub.Topic != "ztf-MicroLIA" || pub.Key != "ZTF24abcdefg" {
		t.Errorf("topic, key = %s, %s", pub.Topic, pub.Key)
	}

	if h.metrics.Received != 1 || h.metrics.Processed != 1 || h.metrics.Published != 1 || h.metrics.Counters[CounterClassified] != 1 {
		t.Errorf("metrics = %+v", h.metrics)
	}
}

func TestProcess_FluxValues(t *testing.T) {
	h := newHarness(t, "ztf", "microlia/v1", []float64{0.9, 0.05, 0.03, 0.02})
	rec, err := h.proc.deps.Decoder.Decode(ztfAlert(t))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	table, err := features.Format(rec, h.proc.deps.Policy)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	mags := []float64{20.1, 20.3, 19.8, 19.9, 20.0}
	bands := []string{"g", "g", "r", "r", "g"}
	for i, row := range table.Rows {
		want := math.Pow(10, -0.4*(float64(float32(mags[i]))-25))
		if math.Abs(row.FLUXCAL-want) > 1e-9*want || row.FLT != bands[i] {
			t.Errorf("row %d = %+v, want flux %v band %s", i, row, want, bands[i])
		}
	}
}

// TestProcess_Idempotent checks that a redelivered alert produces identical output.
func TestProcess_Idempotent(t *testing.T) {
	h := newHarness(t, "ztf", "microlia/v1", []float64{0.4, 0.3, 0.2, 0.1})
	data := ztfAlert(t)

	first, err := h.proc.Process(context.Background(), pushMessage(data))
	if err != nil {
		t.Fatalf("first Process() error = %v", err)
	}
	second, err := h.proc.Process(context.Background(), pushMessage(data))
	if err != nil {
		t.Fatalf("second Process() error = %v", err)
	}

	if diff := cmp.Diff(first.Message, second.Message); diff != "" {
		t.Errorf("outgoing record differs on redelivery (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(h.pub.Published[0].Data, h.pub.Published[1].Data); diff != "" {
		t.Errorf("encoded bytes differ on redelivery")
	}
}

// TestProcess_TableFailureStillPublishes checks sink independence.
func TestProcess_TableFailureStillPublishes(t *testing.T) {
	h := newHarness(t, "ztf", "microlia/v1", []float64{0.9, 0.05, 0.03, 0.02})
	h.table.InsertErr = errors.New("bigquery unavailable")

	out, err := h.proc.Process(context.Background(), pushMessage(ztfAlert(t)))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out.TableErr == nil {
		t.Error("TableErr = nil")
	}
	if h.pub.Calls != 1 || len(h.pub.Published) != 1 {
		t.Errorf("publish calls = %d, want exactly 1", h.pub.Calls)
	}
	if h.metrics.Counters[CounterTableInsertErrors] != 1 {
		t.Errorf("table_insert_errors = %d", h.metrics.Counters[CounterTableInsertErrors])
	}
}

func TestProcess_PublishFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, "ztf", "microlia/v1", []float64{0.9, 0.05, 0.03, 0.02})
	h.pub.PublishErr = errors.New("topic not found")

	out, err := h.proc.Process(context.Background(), pushMessage(ztfAlert(t)))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out.PublishErr == nil || h.table.Calls != 1 {
		t.Errorf("PublishErr = %v, table calls = %d", out.PublishErr, h.table.Calls)
	}
	if h.metrics.Counters[CounterPublishErrors] != 1 || h.metrics.Published != 0 {
		t.Errorf("metrics = %+v", h.metrics)
	}
}

func TestProcess_FatalErrors(t *testing.T) {
	tests := []struct {
		name    string
		tax     string
		probs   []float64
		msg     func(t *testing.T) *events.PushMessage
		wantErr error
		class   string
	}{
		{
			name:    "undecodable alert",
			tax:     "microlia/v1",
			probs:   []float64{0.25, 0.25, 0.25, 0.25},
			msg:     func(t *testing.T) *events.PushMessage { return pushMessage([]byte("not avro")) },
			wantErr: events.ErrBadRequest,
			class:   "bad_request",
		},
		{
			name:  "missing kafka timestamp",
			tax:   "microlia/v1",
			probs: []float64{0.25, 0.25, 0.25, 0.25},
			msg: func(t *testing.T) *events.PushMessage {
				m := pushMessage(ztfAlert(t))
				delete(m.Attributes, KafkaTimestampAttr)
				return m
			},
			wantErr: events.ErrSchemaViolation,
			class:   "schema_violation",
		},
		{
			name:    "classifier emits wrong length",
			tax:     "microlia/v1",
			probs:   []float64{0.5, 0.5},
			msg:     func(t *testing.T) *events.PushMessage { return pushMessage(ztfAlert(t)) },
			wantErr: events.ErrClassificationUnavailable,
			class:   "classification_unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "ztf", tt.tax, tt.probs)
			_, err := h.proc.Process(context.Background(), tt.msg(t))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Process() error = %v, want %v", err, tt.wantErr)
			}
			if h.table.Calls != 0 || h.pub.Calls != 0 {
				t.Errorf("sink calls = %d, %d, want none", h.table.Calls, h.pub.Calls)
			}
			if h.metrics.Errors[tt.class] != 1 {
				t.Errorf("errors = %v, want %s", h.metrics.Errors, tt.class)
			}
		})
	}
}

func TestProcess_ElasticcSuperNNova(t *testing.T) {
	h := newHarness(t, "elasticc", "supernnova/v1", []float64{0.3, 0.7})
	alert := alerttest.NewElasticc(5, 6,
		alerttest.ElasticcPoint{MJD: 60100, Band: "r", Flux: 200, FluxErr: 20},
		alerttest.ElasticcPoint{MJD: 60101, Band: "i", Flux: 210, FluxErr: 21},
	)

	out, err := h.proc.Process(context.Background(), pushMessage(alerttest.EncodeElasticc(t, alert)))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	want := []events.Classification{{ClassID: 2222, Probability: 0.3}, {ClassID: 2220, Probability: 0.7}}
	if diff := cmp.Diff(want, out.Message.Classifications); diff != "" {
		t.Errorf("Classifications mismatch (-want +got):\n%s", diff)
	}
	attrs := h.pub.Published[0].Attributes
	if attrs["diaObjectId"] != "6" || attrs["diaSourceId"] != "501" || attrs["microlia"] != "1" {
		t.Errorf("attributes = %v", attrs)
	}
}

func TestNew_Validation(t *testing.T) {
	mapping, _ := taxonomy.Lookup("supernnova/v1")
	m, _ := schemamap.Load("elasticc")
	dec, _ := decoder.New(m)
	clf, _ := classifier.NewStatic("stub", []float64{0.5, 0.5})

	base := Deps{Decoder: dec, SchemaMap: m, Classifier: clf, Taxonomy: mapping, Classes: 2, Table: &FakeTable{}, Publisher: &FakePublisher{}}
	settings := Settings{Table: "d.t", Topic: "t"}

	if _, err := New(base, settings); err != nil {
		t.Fatalf("New() error = %v", err)
	}

	wrongClasses := base
	wrongClasses.Classes = 4
	if _, err := New(wrongClasses, settings); err == nil {
		t.Error("New() with mismatched taxonomy: want error")
	}
	noTable := base
	noTable.Table = nil
	if _, err := New(noTable, settings); err == nil {
		t.Error("New() without table writer: want error")
	}
	if _, err := New(base, Settings{}); err == nil {
		t.Error("New() without topic: want error")
	}
}

func TestErrorClass(t *testing.T) {
	if got := ErrorClass(errors.New("boom")); got != "internal" {
		t.Errorf("ErrorClass(plain) = %s", got)
	}
}
