package news

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playmate/server/internal/apperr"
	"github.com/playmate/server/internal/model"
	"github.com/playmate/server/internal/observability/metrics"
	"github.com/playmate/server/internal/repo"
)

const (
	DefaultLimit = 20
	MaxLimit     = 50
	// maxPagesPerRun bounds one sync run against a misbehaving feed
	maxPagesPerRun = 10
)

// Syncer pulls articles from a Source into the article store
type Syncer struct {
	source   Source
	articles repo.ArticleRepo
	logger   *slog.Logger
	metrics  *metrics.Registry

	// mu serializes runs triggered by the ticker and by the admin endpoint
	mu sync.Mutex
}

func NewSyncer(source Source, articles repo.ArticleRepo, logger *slog.Logger, m *metrics.Registry) *Syncer {
	return &Syncer{source: source, articles: articles, logger: logger, metrics: m}
}

// Run fetches pages until the feed is exhausted or the page bound is hit,
// upserting each batch, and returns the number of articles written.
func (s *Syncer) Run(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	cursor := ""
	for page := 0; page < maxPagesPerRun; page++ {
		batch, err := s.source.Fetch(ctx, cursor)
		if err != nil {
			return total, fmt.Errorf("fetch page %d: %w", page, err)
		}
		if len(batch.Articles) > 0 {
			n, err := s.articles.UpsertMany(ctx, batch.Articles)
			if err != nil {
				return total, fmt.Errorf("store page %d: %w", page, err)
			}
			total += n
			s.metrics.NewsArticlesSyncedTotal.Add(float64(n))
		}
		if batch.NextCursor == "" || batch.NextCursor == cursor {
			break
		}
		cursor = batch.NextCursor
	}
	return total, nil
}

// Start runs the syncer immediately and then every interval until ctx is done.
// It returns a channel closed when the loop exits.
func (s *Syncer) Start(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			s.runLogged(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return done
}

func (s *Syncer) runLogged(ctx context.Context) {
	n, err := s.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.WarnContext(ctx, "news sync failed", slog.Int("written", n), slog.Any("error", err))
		return
	}
	s.logger.InfoContext(ctx, "news sync complete", slog.Int("written", n))
}

// Page is one page of the feed
type Page struct {
	Articles []model.Article
	Total    int
	HasMore  bool
}

// Service reads the stored feed
type Service struct {
	articles repo.ArticleRepo
}

func NewService(articles repo.ArticleRepo) *Service {
	return &Service{articles: articles}
}

// List returns articles newest first, optionally filtered by sport
func (s *Service) List(ctx context.Context, sport string, limit, offset int) (Page, error) {
	switch {
	case limit < 0:
		return Page{}, apperr.Validation("limit must not be negative")
	case limit == 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	if offset < 0 {
		return Page{}, apperr.Validation("offset must not be negative")
	}
	articles, total, err := s.articles.List(ctx, sport, limit, offset)
	if err != nil {
		return Page{}, apperr.Internal("list news", err)
	}
	return Page{Articles: articles, Total: total, HasMore: offset+len(articles) < total}, nil
}
