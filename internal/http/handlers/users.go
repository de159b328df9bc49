package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/playmate/server/internal/apperr"
	"github.com/playmate/server/internal/httpx"
	"github.com/playmate/server/internal/middleware"
	"github.com/playmate/server/internal/model"
	"github.com/playmate/server/internal/profile"
	"github.com/playmate/server/internal/search"
	"github.com/playmate/server/internal/storage"
)

// photoField is the multipart field carrying the uploaded image
const photoField = "photo"

// UserHandler serves profile, directory and search endpoints
type UserHandler struct {
	profiles *profile.Service
	search   *search.Service
	logger   *slog.Logger
}

func NewUserHandler(profiles *profile.Service, search *search.Service, logger *slog.Logger) *UserHandler {
	return &UserHandler{profiles: profiles, search: search, logger: logger}
}

// searchResponse is the JSON response for GET /users/search
type searchResponse struct {
	Users   []userResponse `json:"users"`
	Total   int            `json:"total"`
	HasMore bool           `json:"hasMore"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// filterOptionsResponse is the JSON response for GET /users/filter-options
type filterOptionsResponse struct {
	Cities      []string `json:"cities"`
	Societies   []string `json:"societies"`
	Activities  []string `json:"activities"`
	SkillLevels []string `json:"skillLevels"`
	Workplaces  []string `json:"workplaces"`
}

// HandleGetProfile handles GET /users/profile
func (h *UserHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httpx.WriteAppError(w, r, h.logger, apperr.ErrUnauthenticated)
		return
	}
	u, err := h.profiles.Get(r.Context(), user.ID)
	if err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u, h.profiles.Now(), true))
}

// HandleUpdateProfile handles PUT /users/profile
func (h *UserHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httpx.WriteAppError(w, r, h.logger, apperr.ErrUnauthenticated)
		return
	}
	var patch profile.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}
	u, err := h.profiles.Update(r.Context(), user.ID, patch)
	if err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}
	h.search.InvalidateFacets(r.Context())
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u, h.profiles.Now(), true))
}

// HandleUploadPhoto handles POST /users/profile/photo (multipart, field "photo")
func (h *UserHandler) HandleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httpx.WriteAppError(w, r, h.logger, apperr.ErrUnauthenticated)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxPhotoBytes+(1<<20))
	if err := r.ParseMultipartForm(storage.MaxPhotoBytes); err != nil {
		httpx.WriteAppError(w, r, h.logger, apperr.Validation("photo must be a multipart upload of at most 5 MiB"))
		return
	}
	file, header, err := r.FormFile(photoField)
	if err != nil {
		httpx.WriteAppError(w, r, h.logger, apperr.Validation("photo is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, storage.MaxPhotoBytes+1))
	if err != nil {
		httpx.WriteAppError(w, r, h.logger, apperr.Validation("could not read photo"))
		return
	}

	u, err := h.profiles.UploadPhoto(r.Context(), user.ID, data, header.Filename)
	if err != nil {
		if errors.Is(err, profile.ErrStorageDisabled) {
			httpx.WriteError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u, h.profiles.Now(), true))
}

// HandleGetUser handles GET /users/{id}. Contact fields appear only for the
// subject and for users joined to them by an accepted interest.
func (h *UserHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteAppError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	p, err := h.profiles.GetPublic(r.Context(), middleware.ViewerID(r.Context()), id)
	if err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(p.User, h.profiles.Now(), p.ContactVisible))
}

// HandleSearch handles GET /users/search
func (h *UserHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	params, err := search.ParamsFromQuery(r.URL.Query())
	if err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}
	page, err := h.search.Search(r.Context(), middleware.ViewerID(r.Context()), params)
	if err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}

	now := h.profiles.Now()
	resp := searchResponse{
		Users:   make([]userResponse, 0, len(page.Users)),
		Total:   page.Total,
		HasMore: page.HasMore,
		Limit:   page.Limit,
		Offset:  page.Offset,
	}
	for _, u := range page.Users {
		resp.Users = append(resp.Users, toUserResponse(u, now, false))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleFilterOptions handles GET /users/filter-options
func (h *UserHandler) HandleFilterOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.search.FilterOptions(r.Context(), middleware.ViewerID(r.Context()))
	if err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toFilterOptionsResponse(opts))
}

func toFilterOptionsResponse(opts model.FilterOptions) filterOptionsResponse {
	resp := filterOptionsResponse{
		Cities:      nonNil(opts.Cities),
		Societies:   nonNil(opts.Societies),
		Activities:  nonNil(opts.Activities),
		SkillLevels: make([]string, 0, len(opts.SkillLevels)),
		Workplaces:  nonNil(opts.Workplaces),
	}
	for _, l := range opts.SkillLevels {
		resp.SkillLevels = append(resp.SkillLevels, string(l))
	}
	return resp
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
