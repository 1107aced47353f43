package gcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/bigquery/v2"
	"google.golang.org/api/option"

	"github.com/mwvgroup/pittgoogle-user/internal/events"
)

// insertNamespace scopes deterministic insert ids.
var insertNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://pitt-broker.readthedocs.io/classifications"))

// TableWriter streams classification rows into BigQuery.
type TableWriter struct {
	svc     *bigquery.Service
	project string
}

// NewTableWriter creates a BigQuery writer for tables in project.
func NewTableWriter(ctx context.Context, project string, opts ...option.ClientOption) (*TableWriter, error) {
	if project == "" {
		return nil, fmt.Errorf("project cannot be empty")
	}
	svc, err := bigquery.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create bigquery service: %w", err)
	}
	return &TableWriter{svc: svc, project: project}, nil
}

// InsertID is the row's deduplication id. Redelivered alerts produce the same id.
func InsertID(row *events.ClassificationRow) string {
	name := fmt.Sprintf("%s/%d/%d", row.ClassifierName, row.AlertID, row.SourceID)
	return uuid.NewSHA1(insertNamespace, []byte(name)).String()
}

// Insert writes row into table, given as "dataset.table".
func (w *TableWriter) Insert(ctx context.Context, table string, row *events.ClassificationRow) error {
	dataset, tableID, ok := strings.Cut(table, ".")
	if !ok {
		return fmt.Errorf("%w: table %q is not dataset.table", events.ErrSinkError, table)
	}

	values := row.Values()
	record := make(map[string]bigquery.JsonValue, len(values))
	for k, v := range values {
		if t, ok := v.(time.Time); ok {
			if t.IsZero() {
				continue
			}
			v = t.UTC().Format(time.RFC3339Nano)
		}
		record[k] = v
	}

	req := &bigquery.TableDataInsertAllRequest{
		Rows: []*bigquery.TableDataInsertAllRequestRows{{
			InsertId: InsertID(row),
			Json:     record,
		}},
	}
	resp, err := w.svc.Tabledata.InsertAll(w.project, dataset, tableID, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: insert into %s failed: %v", events.ErrSinkError, table, err)
	}
	if len(resp.InsertErrors) > 0 {
		var msgs []string
		for _, ie := range resp.InsertErrors {
			for _, e := range ie.Errors {
				msgs = append(msgs, fmt.Sprintf("%s: %s", e.Reason, e.Message))
			}
		}
		return fmt.Errorf("%w: insert into %s rejected: %s", events.ErrSinkError, table, strings.Join(msgs, "; "))
	}

	slog.Debug("Inserted classification row", "table", table, "alert_id", row.AlertID)
	return nil
}
