package database

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/accioai/accio/internal/models"
)

var sourceColumnNames = []string{"id", "name", "source_type", "source_url", "category", "is_active", "fetch_frequency_hours", "last_fetched_at"}

func TestListActive(t *testing.T) {
	db, mock := newMock(t)
	fetched := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE is_active = TRUE AND source_type = $1")).
		WithArgs("rss").
		WillReturnRows(sqlmock.NewRows(sourceColumnNames).
			AddRow("s1", "Hacker Feed", "rss", "https://feed/1", "technology", true, 6, fetched).
			AddRow("s2", "Lab Notes", "rss", "https://feed/2", "science", true, 12, nil))

	sources, err := NewSourceRepository(db).ListActive(context.Background(), models.SourceTypeRSS)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].LastFetchedAt == nil || !sources[0].LastFetchedAt.Equal(fetched) {
		t.Errorf("unexpected last_fetched_at: %v", sources[0].LastFetchedAt)
	}
	if sources[1].LastFetchedAt != nil {
		t.Errorf("expected nil last_fetched_at for never-fetched source")
	}
	if sources[1].SourceType != models.SourceTypeRSS {
		t.Errorf("unexpected source type %q", sources[1].SourceType)
	}
}

func TestListActiveByCategory(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE is_active = TRUE AND category = $1")).
		WithArgs("design").
		WillReturnRows(sqlmock.NewRows(sourceColumnNames))

	sources, err := NewSourceRepository(db).ListActiveByCategory(context.Background(), "design")
	if err != nil {
		t.Fatalf("ListActiveByCategory() error = %v", err)
	}
	if len(sources) != 0 {
		t.Fatalf("expected no sources, got %d", len(sources))
	}
}

func TestListAllIncludesInactive(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY category ASC, name ASC")).
		WillReturnRows(sqlmock.NewRows(sourceColumnNames).
			AddRow("s1", "Paused", "rss", "https://feed/1", "design", false, 24, nil))

	sources, err := NewSourceRepository(db).ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(sources) != 1 || sources[0].IsActive {
		t.Fatalf("unexpected sources: %+v", sources)
	}
}

func TestUpdateLastFetched(t *testing.T) {
	db, mock := newMock(t)
	at := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE content_sources SET last_fetched_at = $1 WHERE id = $2")).
		WithArgs(at, "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewSourceRepository(db).UpdateLastFetched(context.Background(), "s1", at); err != nil {
		t.Fatalf("UpdateLastFetched() error = %v", err)
	}
}

func TestUpsertSource(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (source_url) DO UPDATE")).
		WithArgs(sqlmock.AnyArg(), "Lab Notes", "rss", "https://feed/2", "science", true, 6).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("existing-id"))

	id, err := NewSourceRepository(db).Upsert(context.Background(), models.ContentSource{
		Name:       "Lab Notes",
		SourceType: models.SourceTypeRSS,
		SourceURL:  "https://feed/2",
		Category:   "science",
		IsActive:   true,
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if id != "existing-id" {
		t.Errorf("expected returned id, got %q", id)
	}
}

func TestUpsertRejectsUnknownType(t *testing.T) {
	db, _ := newMock(t)

	_, err := NewSourceRepository(db).Upsert(context.Background(), models.ContentSource{SourceType: "podcast"})
	if err == nil {
		t.Fatal("expected error for unknown source type")
	}
}
