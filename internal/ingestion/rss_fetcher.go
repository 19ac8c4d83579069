package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/accioai/accio/internal/config"
	"github.com/accioai/accio/internal/database"
	"github.com/accioai/accio/internal/models"
	"github.com/accioai/accio/internal/retry"
)

const maxRetryAfter = 30 * time.Second

// ErrorRecorder persists ingestion failures for later review.
type ErrorRecorder interface {
	Store(ctx context.Context, e models.IngestionError) error
}

// RSSFetcher downloads a feed and normalizes its newest entries.
type RSSFetcher struct {
	client      *http.Client
	userAgent   string
	timeout     time.Duration
	maxItems    int
	retryPolicy retry.Policy
	errors      ErrorRecorder
	logger      *slog.Logger
	now         func() time.Time
}

// NewRSSFetcher builds a fetcher from feed configuration. recorder may be nil.
func NewRSSFetcher(cfg config.FeedConfig, recorder ErrorRecorder, logger *slog.Logger) *RSSFetcher {
	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.MaxRetries

	return &RSSFetcher{
		client:      &http.Client{Timeout: cfg.Timeout},
		userAgent:   cfg.UserAgent,
		timeout:     cfg.Timeout,
		maxItems:    cfg.MaxItems,
		retryPolicy: policy,
		errors:      recorder,
		logger:      logger,
		now:         time.Now,
	}
}

// Fetch returns up to maxItems normalized articles in feed order. Failures
// are logged and recorded, and yield an empty slice.
func (f *RSSFetcher) Fetch(ctx context.Context, feedURL, sourceID string) []models.FetchedArticle {
	f.logger.Info("fetching rss feed", "url", feedURL, "source_id", sourceID)

	feed, err := f.download(ctx, feedURL)
	if err != nil {
		f.logger.Error("rss fetch failed", "url", feedURL, "source_id", sourceID, "error", err)
		f.record(ctx, feedURL, sourceID, err)
		return []models.FetchedArticle{}
	}

	items := feed.Items
	if len(items) > f.maxItems {
		items = items[:f.maxItems]
	}

	articles := make([]models.FetchedArticle, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			continue
		}

		articles = append(articles, models.FetchedArticle{
			Title:       title,
			Content:     itemContent(item),
			URL:         link,
			PublishedAt: f.publishedAt(item),
			ImageURL:    itemImage(item),
		})
	}

	f.logger.Info("rss feed fetched", "url", feedURL, "count", len(articles))
	return articles
}

func (f *RSSFetcher) download(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	var feed *gofeed.Feed

	err := retry.Do(ctx, f.retryPolicy, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		parsed, err := f.get(attemptCtx, feedURL)
		if err != nil {
			return classifyFetchError(ctx, err)
		}
		feed = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return feed, nil
}

// rateLimitedError is a 429 answer carrying the server's Retry-After hint.
type rateLimitedError struct {
	gofeed.HTTPError
	retryAfter time.Duration
}

func (f *RSSFetcher) get(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := gofeed.HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, rateLimitedError{HTTPError: httpErr, retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}
		}
		return nil, httpErr
	}

	return gofeed.NewParser().Parse(resp.Body)
}

// parseRetryAfter reads delta-seconds or an HTTP date, capped at
// maxRetryAfter. Unusable values yield zero.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	var wait time.Duration
	if secs, err := strconv.Atoi(value); err == nil {
		wait = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(value); err == nil {
		wait = at.Sub(now)
	}

	if wait <= 0 {
		return 0
	}
	return min(wait, maxRetryAfter)
}

// classifyFetchError marks network failures, timeouts, 429 and 5xx as
// transient. Nothing is transient once the caller's context is done.
func classifyFetchError(parent context.Context, err error) error {
	if parent.Err() != nil {
		return err
	}

	var limited rateLimitedError
	if errors.As(err, &limited) {
		return retry.TransientAfter(err, limited.retryAfter)
	}

	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= 500 {
			return retry.Transient(err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Transient(err)
	}
	return err
}

func (f *RSSFetcher) record(ctx context.Context, feedURL, sourceID string, cause error) {
	if f.errors == nil {
		return
	}
	// The caller's context may already be cancelled; the record should
	// still land.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := f.errors.Store(storeCtx, models.IngestionError{
		Platform:  string(models.SourceTypeRSS),
		ErrorType: string(models.ErrorTypeRSSFetchFailed),
		URL:       feedURL,
		ErrorMsg:  cause.Error(),
		Metadata:  database.ErrorMetadata(map[string]interface{}{"source_id": sourceID}),
	})
	if err != nil {
		f.logger.Warn("failed to record ingestion error", "url", feedURL, "error", err)
	}
}

func (f *RSSFetcher) publishedAt(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	return f.now().UTC()
}

// itemContent prefers the plain-text snippet of the item body, then the raw
// body, then the description.
func itemContent(item *gofeed.Item) string {
	if snippet := htmlText(item.Content); snippet != "" {
		return snippet
	}
	if snippet := htmlText(item.Description); snippet != "" {
		return snippet
	}
	if item.Content != "" {
		return item.Content
	}
	return item.Description
}

func itemImage(item *gofeed.Item) string {
	if url := enclosureImage(item.Enclosures); url != "" {
		return url
	}
	if url := mediaThumbnail(item.Extensions); url != "" {
		return url
	}
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	if url := firstImgSrc(item.Content); url != "" {
		return url
	}
	return firstImgSrc(item.Description)
}

func enclosureImage(enclosures []*gofeed.Enclosure) string {
	var first string
	for _, enc := range enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
		if first == "" {
			first = enc.URL
		}
	}
	return first
}

func mediaThumbnail(extensions ext.Extensions) string {
	media, ok := extensions["media"]
	if !ok {
		return ""
	}
	if url := thumbnailURL(media["thumbnail"]); url != "" {
		return url
	}
	for _, group := range media["group"] {
		if url := thumbnailURL(group.Children["thumbnail"]); url != "" {
			return url
		}
	}
	return ""
}

func thumbnailURL(thumbs []ext.Extension) string {
	for _, t := range thumbs {
		if url := strings.TrimSpace(t.Attrs["url"]); url != "" {
			return url
		}
	}
	return ""
}

func htmlText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func firstImgSrc(fragment string) string {
	if !strings.Contains(fragment, "<img") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	return strings.TrimSpace(src)
}

