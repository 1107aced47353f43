package processor

import (
	"context"
	"sync"
	"time"

	"github.com/mwvgroup/pittgoogle-user/internal/events"
)

// FakeTable is a test fake for TableWriter.
type FakeTable struct {
	mu        sync.Mutex
	Rows      []*events.ClassificationRow
	Tables    []string
	Calls     int
	InsertErr error
}

func (f *FakeTable) Insert(_ context.Context, table string, row *events.ClassificationRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.InsertErr != nil {
		return f.InsertErr
	}
	f.Tables = append(f.Tables, table)
	f.Rows = append(f.Rows, row)
	return nil
}

// FakePublisher is a test fake for Publisher.
type FakePublisher struct {
	mu         sync.Mutex
	Published  []*events.Publication
	Calls      int
	PublishErr error
}

func (f *FakePublisher) Publish(_ context.Context, pub *events.Publication) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.PublishErr != nil {
		return f.PublishErr
	}
	f.Published = append(f.Published, pub)
	return nil
}

// FakeMetrics is a test fake for MetricsRecorder.
type FakeMetrics struct {
	mu        sync.Mutex
	Received  int
	Processed int
	Published int
	Errors    map[string]int
	Counters  map[string]int
}

func NewFakeMetrics() *FakeMetrics {
	return &FakeMetrics{Errors: map[string]int{}, Counters: map[string]int{}}
}

func (f *FakeMetrics) RecordReceived() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Received++
}

func (f *FakeMetrics) RecordProcessed(_ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Processed++
}

func (f *FakeMetrics) RecordPublished() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Published++
}

func (f *FakeMetrics) RecordError(class string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[class]++
}

func (f *FakeMetrics) Increment(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Counters[name]++
}
