// Package news syncs sports articles from an external feed and serves them newest first.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/playmate/server/internal/model"
)

// Batch is one page of articles from a Source
type Batch struct {
	Articles []model.Article
	// NextCursor is empty when the feed is exhausted
	NextCursor string
}

// Source is an external news feed paged by an opaque cursor
type Source interface {
	Fetch(ctx context.Context, cursor string) (Batch, error)
}

// HTTPSource reads a JSON news API:
//
//	GET <url>?cursor=<c>  (X-Api-Key: <key>)
//	{"articles":[{"id","title","summary","url","imageUrl","source","sport","publishedAt"}],"nextCursor":"..."}
type HTTPSource struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPSource(baseURL, apiKey string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{url: baseURL, apiKey: apiKey, client: &http.Client{Timeout: timeout}}
}

type feedArticle struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	URL         string    `json:"url"`
	ImageURL    *string   `json:"imageUrl"`
	Source      string    `json:"source"`
	Sport       string    `json:"sport"`
	PublishedAt time.Time `json:"publishedAt"`
}

type feedPage struct {
	Articles   []feedArticle `json:"articles"`
	NextCursor string        `json:"nextCursor"`
}

func (s *HTTPSource) Fetch(ctx context.Context, cursor string) (Batch, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return Batch{}, fmt.Errorf("parse news url: %w", err)
	}
	if cursor != "" {
		q := u.Query()
		q.Set("cursor", cursor)
		u.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Batch{}, fmt.Errorf("build news request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-Api-Key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Batch{}, fmt.Errorf("fetch news: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Batch{}, fmt.Errorf("news api returned %d", resp.StatusCode)
	}

	var page feedPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return Batch{}, fmt.Errorf("decode news page: %w", err)
	}
	batch := Batch{NextCursor: page.NextCursor}
	for _, a := range page.Articles {
		if a.ID == "" || strings.TrimSpace(a.Title) == "" || a.URL == "" {
			continue
		}
		batch.Articles = append(batch.Articles, model.Article{
			ExternalID:  a.ID,
			Title:       strings.TrimSpace(a.Title),
			Summary:     strings.TrimSpace(a.Summary),
			URL:         a.URL,
			ImageURL:    a.ImageURL,
			Source:      a.Source,
			Sport:       strings.TrimSpace(a.Sport),
			PublishedAt: a.PublishedAt,
		})
	}
	return batch, nil
}
