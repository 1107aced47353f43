package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/mwvgroup/pittgoogle-user/internal/events"
)

func setupTestDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	return &DB{conn: conn}, mock
}

func testRow() *events.ClassificationRow {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &events.ClassificationRow{
		AlertID:                  1,
		ObjectID:                 "7",
		SourceID:                 3,
		Probabilities:            []float64{0.8, 0.2},
		PredictedClass:           0,
		Timestamp:                ts,
		BrokerVersion:            "v0.6",
		ClassifierName:           "SuperNNova_v1.3",
		ElasticcPublishTimestamp: ts.Add(-time.Minute),
	}
}

func TestNewDB(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		wantErr bool
	}{
		{name: "invalid DSN", dsn: "invalid-dsn", wantErr: true},
		{name: "unreachable", dsn: "postgres://u:p@127.0.0.1:1/db?sslmode=disable&connect_timeout=1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := NewDB(tt.dsn)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewDB() error = %v, wantErr %v", err, tt.wantErr)
			}
			if db != nil {
				db.Close()
			}
		})
	}
}

func TestDB_Close(t *testing.T) {
	db := &DB{conn: nil}
	if err := db.Close(); err != nil {
		t.Errorf("DB.Close() with nil conn should not return error, got %v", err)
	}
}

func TestQuoteTable(t *testing.T) {
	if got := QuoteTable("elasticc_alerts.SuperNNova"); got != `"elasticc_alerts"."SuperNNova"` {
		t.Errorf("QuoteTable() = %s", got)
	}
}

func TestDB_Insert(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(sqlmock.Sqlmock, *events.ClassificationRow)
		wantErr   bool
	}{
		{
			name: "inserted",
			setupMock: func(mock sqlmock.Sqlmock, row *events.ClassificationRow) {
				mock.ExpectExec(`INSERT INTO "elasticc_alerts"."SuperNNova"`).
					WithArgs(row.AlertID, row.ObjectID, row.SourceID, pq.Array(row.Probabilities), row.PredictedClass,
						row.Timestamp, row.BrokerVersion, row.ClassifierName, sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "already stored",
			setupMock: func(mock sqlmock.Sqlmock, _ *events.ClassificationRow) {
				mock.ExpectExec(`INSERT INTO`).WillReturnResult(sqlmock.NewResult(0, 0))
			},
		},
		{
			name: "database error",
			setupMock: func(mock sqlmock.Sqlmock, _ *events.ClassificationRow) {
				mock.ExpectExec(`INSERT INTO`).WillReturnError(errors.New("connection reset"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupTestDB(t)
			defer db.Close()
			row := testRow()
			tt.setupMock(mock, row)

			err := db.Insert(context.Background(), "elasticc_alerts.SuperNNova", row)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Insert() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, events.ErrSinkError) {
				t.Errorf("Insert() error = %v, want ErrSinkError", err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestDB_EnsureTable(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS "elasticc_alerts_test"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "elasticc_alerts_test"."MicroLIA"`).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := db.EnsureTable(context.Background(), "elasticc_alerts_test.MicroLIA"); err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
