package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/accioai/accio/internal/models"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

var rawContentColumns = []string{"id", "source_id", "title", "content", "url", "image_url", "published_at", "processed", "created_at", "category"}

func TestRawContentInsert(t *testing.T) {
	item := models.RawContent{
		SourceID:    "11111111-1111-1111-1111-111111111111",
		Title:       "Chips get faster",
		Content:     "Body",
		URL:         "https://example.com/a",
		PublishedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name       string
		respond    func(*sqlmock.ExpectedExec)
		wantInsert bool
		wantErr    bool
	}{
		{
			name:       "new row",
			respond:    func(e *sqlmock.ExpectedExec) { e.WillReturnResult(sqlmock.NewResult(0, 1)) },
			wantInsert: true,
		},
		{
			name:    "conflict does nothing",
			respond: func(e *sqlmock.ExpectedExec) { e.WillReturnResult(sqlmock.NewResult(0, 0)) },
		},
		{
			name:    "unique violation is a no-op",
			respond: func(e *sqlmock.ExpectedExec) { e.WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key"}) },
		},
		{
			name:    "other failure",
			respond: func(e *sqlmock.ExpectedExec) { e.WillReturnError(errors.New("connection reset")) },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)

			tt.respond(mock.ExpectExec(regexp.QuoteMeta("INSERT INTO raw_content")).
				WithArgs(sqlmock.AnyArg(), item.SourceID, item.Title, item.Content, item.URL, nil, item.PublishedAt, sqlmock.AnyArg()))

			inserted, err := NewRawContentRepository(db).Insert(context.Background(), item)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Insert() error = %v, wantErr %v", err, tt.wantErr)
			}
			if inserted != tt.wantInsert {
				t.Errorf("Insert() inserted = %v, want %v", inserted, tt.wantInsert)
			}
		})
	}
}

func TestListUnprocessedBySources(t *testing.T) {
	db, mock := newMock(t)

	ids := []string{"s1", "s2"}
	created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(rawContentColumns).
		AddRow("r1", "s1", "First", "one", "https://a/1", "", created, false, created, "technology").
		AddRow("r2", "s2", "Second", "two", "https://a/2", "https://img/2.png", created, false, created.Add(time.Minute), "technology")

	mock.ExpectQuery(regexp.QuoteMeta("r.source_id = ANY($1::uuid[])")).
		WithArgs(pq.Array(ids), 5).
		WillReturnRows(rows)

	items, err := NewRawContentRepository(db).ListUnprocessedBySources(context.Background(), ids, 5)
	if err != nil {
		t.Fatalf("ListUnprocessedBySources() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != "r1" || items[0].SourceCategory != "technology" {
		t.Errorf("unexpected first item: %+v", items[0])
	}
	if items[1].ImageURL != "https://img/2.png" {
		t.Errorf("expected image url on second item, got %q", items[1].ImageURL)
	}
}

func TestListUnprocessedBySourcesSkipsEmptyInput(t *testing.T) {
	db, _ := newMock(t)

	items, err := NewRawContentRepository(db).ListUnprocessedBySources(context.Background(), nil, 5)
	if err != nil || items != nil {
		t.Fatalf("expected no query for empty source list, got %v, %v", items, err)
	}
}

func TestListUnprocessedExcludingUsesEmptyArray(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("NOT (r.id = ANY($1::uuid[]))")).
		WithArgs("{}", 20).
		WillReturnRows(sqlmock.NewRows(rawContentColumns))

	items, err := NewRawContentRepository(db).ListUnprocessedExcluding(context.Background(), nil, 20)
	if err != nil {
		t.Fatalf("ListUnprocessedExcluding() error = %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}

func TestDeleteStaleUnprocessed(t *testing.T) {
	db, mock := newMock(t)

	cutoff := time.Now().Add(-7 * 24 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM raw_content WHERE processed = FALSE AND created_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := NewRawContentRepository(db).DeleteStaleUnprocessed(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("DeleteStaleUnprocessed() error = %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 rows deleted, got %d", n)
	}
}
