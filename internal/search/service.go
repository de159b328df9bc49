// Package search answers user-directory queries with interest exclusion
// for authenticated viewers, and computes the matching facet universe.
package search

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/playmate/server/internal/apperr"
	"github.com/playmate/server/internal/cache"
	"github.com/playmate/server/internal/model"
	"github.com/playmate/server/internal/repo"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
	maxAge       = 120
)

// Params are raw search filters. Multi-value fields and their legacy
// single-value equivalents are merged.
type Params struct {
	Cities      []string
	Societies   []string
	Activities  []string
	SkillLevels []string
	Workplaces  []string

	City       string
	Society    string
	Activity   string
	SkillLevel string
	Workplace  string

	UserType string
	MinAge   *int
	MaxAge   *int
	Limit    int
	Offset   int
}

// ParamsFromQuery reads search filters from URL query values. Multi-value
// filters repeat their plural key (cities=a&cities=b) or pass a comma list;
// the singular keys are the legacy single-value form. "area" is an alias of society.
func ParamsFromQuery(q url.Values) (Params, error) {
	p := Params{
		Cities:      multi(q, "cities"),
		Societies:   append(multi(q, "societies"), multi(q, "areas")...),
		Activities:  multi(q, "activities"),
		SkillLevels: multi(q, "skillLevels"),
		Workplaces:  multi(q, "workplaces"),
		City:        q.Get("city"),
		Society:     firstNonEmpty(q.Get("society"), q.Get("area")),
		Activity:    q.Get("activity"),
		SkillLevel:  q.Get("skillLevel"),
		Workplace:   q.Get("workplace"),
		UserType:    q.Get("userType"),
	}
	var err error
	if p.MinAge, err = optionalInt(q, "minAge"); err != nil {
		return Params{}, err
	}
	if p.MaxAge, err = optionalInt(q, "maxAge"); err != nil {
		return Params{}, err
	}
	limit, err := optionalInt(q, "limit")
	if err != nil {
		return Params{}, err
	}
	if limit != nil {
		p.Limit = *limit
	}
	offset, err := optionalInt(q, "offset")
	if err != nil {
		return Params{}, err
	}
	if offset != nil {
		p.Offset = *offset
	}
	return p, nil
}

// Page is one page of results
type Page struct {
	Users   []model.User
	Total   int
	HasMore bool
	Limit   int
	Offset  int
}

// Service runs user searches
type Service struct {
	users  repo.UserRepo
	facets cache.FacetCache
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a search service. facets may be nil to disable caching.
func NewService(users repo.UserRepo, facets cache.FacetCache, logger *slog.Logger) *Service {
	return &Service{
		users:  users,
		facets: facets,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the service clock; used by tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Query validates p and builds the store query for viewer (nil for anonymous)
func (s *Service) Query(viewer *uuid.UUID, p Params) (model.SearchQuery, error) {
	q := model.SearchQuery{
		Viewer:     viewer,
		Cities:     merge(p.Cities, p.City),
		Societies:  merge(p.Societies, p.Society),
		Workplaces: merge(p.Workplaces, p.Workplace),
		MinAge:     p.MinAge,
		MaxAge:     p.MaxAge,
		Limit:      p.Limit,
		Offset:     p.Offset,
		Now:        s.now(),
	}
	for _, a := range merge(p.Activities, p.Activity) {
		if key := model.ActivityKey(a); key != "" {
			q.Activities = append(q.Activities, key)
		}
	}
	for _, l := range merge(p.SkillLevels, p.SkillLevel) {
		level := model.SkillLevel(strings.ToLower(l))
		if !level.Valid() {
			return model.SearchQuery{}, apperr.Validation("invalid skillLevel " + l)
		}
		q.SkillLevels = append(q.SkillLevels, level)
	}
	if t := strings.ToLower(strings.TrimSpace(p.UserType)); t != "" && t != "all" {
		q.UserType = model.UserType(t)
		if !q.UserType.Valid() {
			return model.SearchQuery{}, apperr.Validation("userType must be player or coach")
		}
	}
	if q.MinAge != nil && (*q.MinAge < 0 || *q.MinAge > maxAge) {
		return model.SearchQuery{}, apperr.Validation("minAge out of range")
	}
	if q.MaxAge != nil && (*q.MaxAge < 0 || *q.MaxAge > maxAge) {
		return model.SearchQuery{}, apperr.Validation("maxAge out of range")
	}
	if q.MinAge != nil && q.MaxAge != nil && *q.MinAge > *q.MaxAge {
		return model.SearchQuery{}, apperr.Validation("minAge must not exceed maxAge")
	}
	switch {
	case q.Limit < 0:
		return model.SearchQuery{}, apperr.Validation("limit must not be negative")
	case q.Limit == 0:
		q.Limit = DefaultLimit
	case q.Limit > MaxLimit:
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		return model.SearchQuery{}, apperr.Validation("offset must not be negative")
	}
	return q, nil
}

// Search returns one page of matching users. For an authenticated viewer,
// users linked to them by any non-withdrawn interest are excluded.
func (s *Service) Search(ctx context.Context, viewer *uuid.UUID, p Params) (Page, error) {
	q, err := s.Query(viewer, p)
	if err != nil {
		return Page{}, err
	}
	res, err := s.users.Search(ctx, q)
	if err != nil {
		return Page{}, apperr.Internal("search users", err)
	}
	return Page{
		Users:   res.Users,
		Total:   res.Total,
		HasMore: q.Offset+len(res.Users) < res.Total,
		Limit:   q.Limit,
		Offset:  q.Offset,
	}, nil
}

// FilterOptions returns the facets for viewer's search universe. The
// anonymous universe is shared and cached; per-viewer facets are not.
func (s *Service) FilterOptions(ctx context.Context, viewer *uuid.UUID) (model.FilterOptions, error) {
	if viewer == nil && s.facets != nil {
		opts, ok, err := s.facets.Get(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "facet cache read failed", slog.Any("error", err))
		} else if ok {
			return opts, nil
		}
	}

	opts, err := s.users.FilterOptions(ctx, viewer)
	if err != nil {
		return model.FilterOptions{}, apperr.Internal("load filter options", err)
	}

	if viewer == nil && s.facets != nil {
		if err := s.facets.Set(ctx, opts); err != nil {
			s.logger.WarnContext(ctx, "facet cache write failed", slog.Any("error", err))
		}
	}
	return opts, nil
}

// InvalidateFacets drops the cached anonymous facets after a directory change
func (s *Service) InvalidateFacets(ctx context.Context) {
	if s.facets == nil {
		return
	}
	if err := s.facets.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "facet cache invalidation failed", slog.Any("error", err))
	}
}

func merge(values []string, legacy string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, v := range append(append([]string(nil), values...), legacy) {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func multi(q url.Values, key string) []string {
	var out []string
	for _, v := range q[key] {
		out = append(out, strings.Split(v, ",")...)
	}
	return out
}

func optionalInt(q url.Values, key string) (*int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, apperr.Validation(key + " must be an integer")
	}
	return &n, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
