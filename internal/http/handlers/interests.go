package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/playmate/server/internal/apperr"
	"github.com/playmate/server/internal/httpx"
	"github.com/playmate/server/internal/interest"
	"github.com/playmate/server/internal/middleware"
	"github.com/playmate/server/internal/model"
)

// InterestHandler serves the interest endpoints; all routes require a full session
type InterestHandler struct {
	interests *interest.Service
	logger    *slog.Logger
	now       func() time.Time
}

func NewInterestHandler(interests *interest.Service, logger *slog.Logger) *InterestHandler {
	return &InterestHandler{interests: interests, logger: logger, now: time.Now}
}

type sendInterestRequest struct {
	ReceiverID string `json:"receiverId"`
}

type countResponse struct {
	Count int `json:"count"`
}

type todayCountResponse struct {
	Count     int `json:"count"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// HandleSend handles POST /interests/send
func (h *InterestHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httpx.WriteAppError(w, r, h.logger, apperr.ErrUnauthenticated)
		return
	}
	var req sendInterestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}
	receiverID, err := uuid.Parse(strings.TrimSpace(req.ReceiverID))
	if err != nil {
		httpx.WriteAppError(w, r, h.logger, apperr.Validation("receiverId must be a valid id"))
		return
	}

	in, err := h.interests.Send(r.Context(), *user, receiverID)
	if err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toInterestResponse(in))
}

// HandleReceived handles GET /interests/received
func (h *InterestHandler) HandleReceived(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.interests.Received)
}

// HandleSent handles GET /interests/sent
func (h *InterestHandler) HandleSent(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.interests.Sent)
}

func (h *InterestHandler) list(
	w http.ResponseWriter,
	r *http.Request,
	load func(ctx context.Context, userID uuid.UUID) ([]model.InterestWithUser, error),
) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httpx.WriteAppError(w, r, h.logger, apperr.ErrUnauthenticated)
		return
	}
	items, err := load(r.Context(), user.ID)
	if err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toInterestList(items, h.now()))
}

// HandleAccept handles PUT /interests/{id}/accept
func (h *InterestHandler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.interests.Accept)
}

// HandleDecline handles PUT /interests/{id}/decline
func (h *InterestHandler) HandleDecline(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.interests.Decline)
}

// HandleWithdraw handles PUT /interests/{id}/withdraw
func (h *InterestHandler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.interests.Withdraw)
}

func (h *InterestHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, actor uuid.UUID, interestID uuid.UUID) (model.Interest, error),
) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httpx.WriteAppError(w, r, h.logger, apperr.ErrUnauthenticated)
		return
	}
	// unknown and malformed ids look the same to the caller
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteAppError(w, r, h.logger, apperr.ErrNotFound)
		return
	}
	in, err := apply(r.Context(), user.ID, id)
	if err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toInterestResponse(in))
}

// HandlePendingCount handles GET /interests/pending-count
func (h *InterestHandler) HandlePendingCount(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httpx.WriteAppError(w, r, h.logger, apperr.ErrUnauthenticated)
		return
	}
	n, err := h.interests.PendingCount(r.Context(), user.ID)
	if err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, countResponse{Count: n})
}

// HandleTodayCount handles GET /interests/today-count
func (h *InterestHandler) HandleTodayCount(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httpx.WriteAppError(w, r, h.logger, apperr.ErrUnauthenticated)
		return
	}
	n, err := h.interests.CountToday(r.Context(), user.ID)
	if err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}
	limit := h.interests.DailyLimit()
	httpx.WriteJSON(w, http.StatusOK, todayCountResponse{Count: n, Limit: limit, Remaining: max(limit-n, 0)})
}
