package automation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/accioai/accio/internal/database"
	"github.com/accioai/accio/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore stands in for the Postgres repositories.
type memStore struct {
	mu sync.Mutex

	now         time.Time
	seq         int
	sources     []models.ContentSource
	raw         []models.RawContent
	cards       []models.ContentCard
	runs        map[string]*models.AutomationRun
	lastFetched map[string]time.Time

	listActiveErr error
	categoryErr   map[string]error
	fillErr       error
	deleteErr     error
	createRunErr  error
	completeErr   error
	publishErr    map[string]error
}

func newMemStore(now time.Time) *memStore {
	return &memStore{
		now:         now,
		runs:        make(map[string]*models.AutomationRun),
		lastFetched: make(map[string]time.Time),
		categoryErr: make(map[string]error),
		publishErr:  make(map[string]error),
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%03d", prefix, s.seq)
}

func (s *memStore) addSource(id, category string) {
	s.sources = append(s.sources, models.ContentSource{
		ID:         id,
		Name:       id,
		SourceType: models.SourceTypeRSS,
		SourceURL:  "https://feeds.example.com/" + id,
		Category:   category,
		IsActive:   true,
	})
}

func (s *memStore) addRaw(sourceID string, age time.Duration, processed bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID("raw")
	s.raw = append(s.raw, models.RawContent{
		ID:        id,
		SourceID:  sourceID,
		Title:     "Article " + id,
		Content:   "Body of " + id,
		URL:       "https://example.com/" + id,
		Processed: processed,
		CreatedAt: s.now.Add(-age),
	})
	return id
}

func (s *memStore) categoryOf(sourceID string) string {
	for _, src := range s.sources {
		if src.ID == sourceID {
			return src.Category
		}
	}
	return ""
}

func (s *memStore) ListActive(ctx context.Context, sourceType models.SourceType) ([]models.ContentSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listActiveErr != nil {
		return nil, s.listActiveErr
	}
	var out []models.ContentSource
	for _, src := range s.sources {
		if src.IsActive && src.SourceType == sourceType {
			out = append(out, src)
		}
	}
	return out, nil
}

func (s *memStore) ListActiveByCategory(ctx context.Context, category string) ([]models.ContentSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.categoryErr[category]; err != nil {
		return nil, err
	}
	var out []models.ContentSource
	for _, src := range s.sources {
		if src.IsActive && src.Category == category {
			out = append(out, src)
		}
	}
	return out, nil
}

func (s *memStore) UpdateLastFetched(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFetched[id] = at
	return nil
}

func (s *memStore) Insert(ctx context.Context, item models.RawContent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.raw {
		if r.SourceID == item.SourceID && r.URL == item.URL {
			return false, nil
		}
	}
	item.ID = s.nextID("raw")
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now
	}
	s.raw = append(s.raw, item)
	return true, nil
}

func (s *memStore) unprocessed(keep func(models.RawContent) bool, limit int) []models.RawContent {
	var out []models.RawContent
	for _, r := range s.raw {
		if !r.Processed && keep(r) {
			r.SourceCategory = s.categoryOf(r.SourceID)
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *memStore) ListUnprocessedBySources(ctx context.Context, sourceIDs []string, limit int) ([]models.RawContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := toSet(sourceIDs)
	return s.unprocessed(func(r models.RawContent) bool {
		_, ok := ids[r.SourceID]
		return ok
	}, limit), nil
}

func (s *memStore) ListUnprocessedExcluding(ctx context.Context, excludeIDs []string, limit int) ([]models.RawContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fillErr != nil {
		return nil, s.fillErr
	}
	ids := toSet(excludeIDs)
	return s.unprocessed(func(r models.RawContent) bool {
		_, excluded := ids[r.ID]
		return !excluded
	}, limit), nil
}

func (s *memStore) DeleteStaleUnprocessed(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	kept := s.raw[:0]
	var deleted int64
	for _, r := range s.raw {
		if !r.Processed && r.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.raw = kept
	return deleted, nil
}

func (s *memStore) Publish(ctx context.Context, card models.ContentCard) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.publishErr[card.RawContentID]; err != nil {
		return "", err
	}
	for i := range s.raw {
		if s.raw[i].ID != card.RawContentID {
			continue
		}
		if s.raw[i].Processed {
			return "", database.ErrAlreadyProcessed
		}
		s.raw[i].Processed = true
		card.ID = s.nextID("card")
		s.cards = append(s.cards, card)
		return card.ID, nil
	}
	return "", errors.New("raw content not found")
}

func (s *memStore) Create(ctx context.Context) (*models.AutomationRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createRunErr != nil {
		return nil, s.createRunErr
	}
	run := &models.AutomationRun{ID: s.nextID("run"), Status: models.RunStatusRunning, StartedAt: s.now}
	s.runs[run.ID] = run
	copied := *run
	return &copied, nil
}

func (s *memStore) running(id string) (*models.AutomationRun, error) {
	run, ok := s.runs[id]
	if !ok {
		return nil, database.ErrRunNotFound
	}
	if run.Status != models.RunStatusRunning {
		return nil, database.ErrRunNotRunning
	}
	return run, nil
}

func (s *memStore) SetFetched(ctx context.Context, id string, fetched int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, err := s.running(id)
	if err != nil {
		return err
	}
	run.ItemsFetched = fetched
	return nil
}

func (s *memStore) Complete(ctx context.Context, id string, fetched, processed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completeErr != nil {
		return s.completeErr
	}
	run, err := s.running(id)
	if err != nil {
		return err
	}
	now := s.now
	run.Status = models.RunStatusCompleted
	run.CompletedAt = &now
	run.ItemsFetched = fetched
	run.ItemsProcessed = processed
	return nil
}

func (s *memStore) Fail(ctx context.Context, id string, fetched, processed int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, err := s.running(id)
	if err != nil {
		return err
	}
	now := s.now
	run.Status = models.RunStatusFailed
	run.CompletedAt = &now
	run.ItemsFetched = fetched
	run.ItemsProcessed = processed
	run.ErrorMessage = message
	return nil
}

func (s *memStore) rawByURL(url string) *models.RawContent {
	for i := range s.raw {
		if s.raw[i].URL == url {
			return &s.raw[i]
		}
	}
	return nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// staticFetcher serves canned articles per feed URL.
type staticFetcher struct {
	mu     sync.Mutex
	feeds  map[string][]models.FetchedArticle
	called []string
}

func (f *staticFetcher) Fetch(ctx context.Context, feedURL, sourceID string) []models.FetchedArticle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called = append(f.called, feedURL)
	return f.feeds[feedURL]
}
