package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/playmate/server/internal/apperr"
	"github.com/playmate/server/internal/httpx"
	"github.com/playmate/server/internal/news"
)

// NewsHandler serves the sports news feed
type NewsHandler struct {
	feed *news.Service
	// syncer is nil when no news source is configured
	syncer *news.Syncer
	logger *slog.Logger
}

func NewNewsHandler(feed *news.Service, syncer *news.Syncer, logger *slog.Logger) *NewsHandler {
	return &NewsHandler{feed: feed, syncer: syncer, logger: logger}
}

type newsResponse struct {
	Articles []articleResponse `json:"articles"`
	Total    int               `json:"total"`
	HasMore  bool              `json:"hasMore"`
}

type syncResponse struct {
	Written int `json:"written"`
}

// HandleList handles GET /news?limit&offset&sport
func (h *NewsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}
	offset, err := intParam(q.Get("offset"), "offset")
	if err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}

	page, err := h.feed.List(r.Context(), strings.TrimSpace(q.Get("sport")), limit, offset)
	if err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}
	resp := newsResponse{
		Articles: make([]articleResponse, 0, len(page.Articles)),
		Total:    page.Total,
		HasMore:  page.HasMore,
	}
	for _, a := range page.Articles {
		resp.Articles = append(resp.Articles, toArticleResponse(a))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleSync handles POST /admin/news/sync
func (h *NewsHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, "news source not configured")
		return
	}
	n, err := h.syncer.Run(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "manual news sync failed", slog.Int("written", n), slog.Any("error", err))
		httpx.WriteError(w, http.StatusBadGateway, "news sync failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, syncResponse{Written: n})
}

func intParam(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation(name + " must be an integer")
	}
	return n, nil
}
