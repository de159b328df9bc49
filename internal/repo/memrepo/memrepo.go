// Package memrepo is an in-memory implementation of the repo interfaces,
// used by tests and local development without PostgreSQL.
package memrepo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playmate/server/internal/model"
	"github.com/playmate/server/internal/repo"
)

// Store holds all tables behind one mutex
type Store struct {
	mu         sync.Mutex
	users      map[uuid.UUID]model.User
	activities map[uuid.UUID][]model.Activity
	interests  map[uuid.UUID]model.Interest
	sessions   map[uuid.UUID]model.Session
	otps       []model.OtpVerification
	articles   map[string]model.Article
	seq        int64
}

// New returns an empty store
func New() *Store {
	return &Store{
		users:      make(map[uuid.UUID]model.User),
		activities: make(map[uuid.UUID][]model.Activity),
		interests:  make(map[uuid.UUID]model.Interest),
		sessions:   make(map[uuid.UUID]model.Session),
		articles:   make(map[string]model.Article),
	}
}

// Users returns the store as a repo.UserRepo
func (s *Store) Users() repo.UserRepo { return &userRepo{s} }

// Interests returns the store as a repo.InterestRepo
func (s *Store) Interests() repo.InterestRepo { return &interestRepo{s} }

// Sessions returns the store as a repo.SessionRepo
func (s *Store) Sessions() repo.SessionRepo { return &sessionRepo{s} }

// Otps returns the store as a repo.OtpRepo
func (s *Store) Otps() repo.OtpRepo { return &otpRepo{s} }

// Articles returns the store as a repo.ArticleRepo
func (s *Store) Articles() repo.ArticleRepo { return &articleRepo{s} }

// InterestCount returns the number of interest rows; tests use it to check row reuse.
func (s *Store) InterestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.interests)
}

// OtpCount returns the number of stored OTP rows for phone
func (s *Store) OtpCount(phone string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.otps {
		if o.PhoneNumber == phone {
			n++
		}
	}
	return n
}

// SessionCount returns the number of stored sessions
func (s *Store) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// tick returns a strictly increasing timestamp offset used to order rows created at the same instant
func (s *Store) tick() time.Duration {
	s.seq++
	return time.Duration(s.seq)
}

func (s *Store) withActivities(u model.User) model.User {
	acts := s.activities[u.ID]
	u.Activities = append([]model.Activity(nil), acts...)
	return u
}

type userRepo struct{ s *Store }

func (r *userRepo) CreateWithActivities(_ context.Context, user model.User, activities []model.Activity) (model.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.PhoneNumber == user.PhoneNumber {
			return model.User{}, repo.ErrConflict
		}
	}
	now := time.Now()
	user.ID = uuid.New()
	user.CreatedAt = now.Add(s.tick())
	user.UpdatedAt = user.CreatedAt
	user.Activities = nil
	s.users[user.ID] = user
	s.activities[user.ID] = s.newActivities(user.ID, activities)
	return s.withActivities(user), nil
}

func (s *Store) newActivities(userID uuid.UUID, activities []model.Activity) []model.Activity {
	out := make([]model.Activity, 0, len(activities))
	for _, a := range activities {
		a.ID = uuid.New()
		a.UserID = userID
		a.CreatedAt = time.Now()
		out = append(out, a)
	}
	return out
}

func (r *userRepo) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	return s.withActivities(u), nil
}

func (r *userRepo) GetByPhone(_ context.Context, phone string) (model.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.PhoneNumber == phone {
			return s.withActivities(u), nil
		}
	}
	return model.User{}, repo.ErrNotFound
}

func (r *userRepo) Update(_ context.Context, user model.User, activities *[]model.Activity) (model.User, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[user.ID]
	if !ok {
		return model.User{}, repo.ErrNotFound
	}
	user.PhoneNumber = existing.PhoneNumber
	user.PhotoURL = existing.PhotoURL
	user.IsActive = existing.IsActive
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = time.Now()
	user.Activities = nil
	s.users[user.ID] = user
	if activities != nil {
		s.activities[user.ID] = s.newActivities(user.ID, *activities)
	}
	return s.withActivities(user), nil
}

func (r *userRepo) SetPhotoURL(_ context.Context, id uuid.UUID, photoURL *string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.PhotoURL = photoURL
	u.UpdatedAt = time.Now()
	s.users[id] = u
	return nil
}

// linked reports whether a non-withdrawn interest joins a and b in either direction
func (s *Store) linked(a, b uuid.UUID) bool {
	for _, in := range s.interests {
		if in.Status == model.InterestWithdrawn {
			continue
		}
		if (in.SenderID == a && in.ReceiverID == b) || (in.SenderID == b && in.ReceiverID == a) {
			return true
		}
	}
	return false
}

// candidates returns users matching q, after viewer exclusion, newest first
func (s *Store) candidates(q model.SearchQuery) []model.User {
	var out []model.User
	for _, u := range s.users {
		u = s.withActivities(u)
		if !q.Matches(u) {
			continue
		}
		if q.Viewer != nil && (u.ID == *q.Viewer || s.linked(*q.Viewer, u.ID)) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *userRepo) Search(_ context.Context, q model.SearchQuery) (model.SearchResult, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.candidates(q)
	res := model.SearchResult{Users: []model.User{}, Total: len(all)}
	if q.Offset >= len(all) {
		return res, nil
	}
	end := q.Offset + q.Limit
	if end > len(all) {
		end = len(all)
	}
	res.Users = append(res.Users, all[q.Offset:end]...)
	return res, nil
}

func (r *userRepo) FilterOptions(_ context.Context, viewer *uuid.UUID) (model.FilterOptions, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CollectFilterOptions(s.candidates(model.SearchQuery{Viewer: viewer})), nil
}

type interestRepo struct{ s *Store }

func (r *interestRepo) CountSentSince(_ context.Context, senderID uuid.UUID, since time.Time) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, in := range s.interests {
		if in.SenderID == senderID && !in.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *interestRepo) Upsert(_ context.Context, senderID, receiverID uuid.UUID, now time.Time) (model.Interest, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, in := range s.interests {
		if in.SenderID != senderID || in.ReceiverID != receiverID {
			continue
		}
		if in.Status.Active() {
			return model.Interest{}, repo.ErrConflict
		}
		in.Status = model.InterestPending
		in.SentAt = now
		in.RespondedAt = nil
		s.interests[id] = in
		return in, nil
	}
	in := model.Interest{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     model.InterestPending,
		SentAt:     now,
	}
	s.interests[in.ID] = in
	return in, nil
}

func (r *interestRepo) GetByID(_ context.Context, id uuid.UUID) (model.Interest, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.interests[id]
	if !ok {
		return model.Interest{}, repo.ErrNotFound
	}
	return in, nil
}

func (r *interestRepo) Transition(_ context.Context, id uuid.UUID, from []model.InterestStatus, to model.InterestStatus, at time.Time) (model.Interest, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.interests[id]
	if !ok {
		return model.Interest{}, repo.ErrNotFound
	}
	allowed := false
	for _, st := range from {
		if in.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return model.Interest{}, repo.ErrConflict
	}
	in.Status = to
	respondedAt := at
	in.RespondedAt = &respondedAt
	s.interests[id] = in
	return in, nil
}

func (r *interestRepo) list(match func(model.Interest) (uuid.UUID, bool)) []model.InterestWithUser {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.InterestWithUser{}
	for _, in := range s.interests {
		otherID, ok := match(in)
		if !ok {
			continue
		}
		other, ok := s.users[otherID]
		if !ok {
			continue
		}
		out = append(out, model.InterestWithUser{Interest: in, Counterpart: s.withActivities(other)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	return out
}

func (r *interestRepo) ListReceived(_ context.Context, userID uuid.UUID) ([]model.InterestWithUser, error) {
	return r.list(func(in model.Interest) (uuid.UUID, bool) {
		return in.SenderID, in.ReceiverID == userID
	}), nil
}

func (r *interestRepo) ListSent(_ context.Context, userID uuid.UUID) ([]model.InterestWithUser, error) {
	return r.list(func(in model.Interest) (uuid.UUID, bool) {
		return in.ReceiverID, in.SenderID == userID
	}), nil
}

func (r *interestRepo) CountPendingReceived(_ context.Context, userID uuid.UUID) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, in := range s.interests {
		if in.ReceiverID == userID && in.Status == model.InterestPending {
			n++
		}
	}
	return n, nil
}

func (r *interestRepo) HasAcceptedBetween(_ context.Context, a, b uuid.UUID) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range s.interests {
		if in.Status != model.InterestAccepted {
			continue
		}
		if (in.SenderID == a && in.ReceiverID == b) || (in.SenderID == b && in.ReceiverID == a) {
			return true, nil
		}
	}
	return false, nil
}

type sessionRepo struct{ s *Store }

func (r *sessionRepo) Create(_ context.Context, session model.Session) (model.Session, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessions {
		if existing.TokenHash == session.TokenHash {
			return model.Session{}, repo.ErrConflict
		}
	}
	session.ID = uuid.New()
	session.CreatedAt = time.Now()
	s.sessions[session.ID] = session
	return session, nil
}

func (r *sessionRepo) GetActiveByTokenHash(_ context.Context, tokenHash string, now time.Time) (model.Session, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.TokenHash == tokenHash && session.ExpiresAt.After(now) {
			return session, nil
		}
	}
	return model.Session{}, repo.ErrNotFound
}

func (r *sessionRepo) Delete(_ context.Context, id uuid.UUID) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return repo.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (r *sessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, session := range s.sessions {
		if !session.ExpiresAt.After(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

type otpRepo struct{ s *Store }

func (r *otpRepo) Create(_ context.Context, phone, codeHash string, expiresAt, now time.Time) (model.OtpVerification, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, o := range s.otps {
		if o.PhoneNumber == phone && !o.Verified && o.ExpiresAt.After(now) {
			s.otps[i].ExpiresAt = now
		}
	}
	otp := model.OtpVerification{
		ID:          uuid.New(),
		PhoneNumber: phone,
		CodeHash:    codeHash,
		ExpiresAt:   expiresAt,
		CreatedAt:   now.Add(s.tick()),
	}
	s.otps = append(s.otps, otp)
	return otp, nil
}

func (r *otpRepo) ConsumeLatest(_ context.Context, phone, codeHash string, now time.Time) (model.OtpVerification, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	best := -1
	for i, o := range s.otps {
		if o.PhoneNumber != phone || o.CodeHash != codeHash || o.Verified || !o.ExpiresAt.After(now) {
			continue
		}
		if best < 0 || o.CreatedAt.After(s.otps[best].CreatedAt) {
			best = i
		}
	}
	if best < 0 {
		return model.OtpVerification{}, repo.ErrNotFound
	}
	s.otps[best].Verified = true
	return s.otps[best], nil
}

func (r *otpRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.otps[:0]
	var n int64
	for _, o := range s.otps {
		if !o.ExpiresAt.After(now) {
			n++
			continue
		}
		kept = append(kept, o)
	}
	s.otps = kept
	return n, nil
}

type articleRepo struct{ s *Store }

func (r *articleRepo) UpsertMany(_ context.Context, articles []model.Article) (int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range articles {
		if existing, ok := s.articles[a.ExternalID]; ok {
			a.ID = existing.ID
			a.CreatedAt = existing.CreatedAt
		} else {
			a.ID = uuid.New()
			a.CreatedAt = time.Now()
		}
		s.articles[a.ExternalID] = a
	}
	return len(articles), nil
}

func (r *articleRepo) List(_ context.Context, sport string, limit, offset int) ([]model.Article, int, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.Article
	for _, a := range s.articles {
		if sport != "" && !strings.EqualFold(a.Sport, strings.TrimSpace(sport)) {
			continue
		}
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].PublishedAt.After(all[j].PublishedAt) })
	out := []model.Article{}
	if offset < len(all) {
		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		out = append(out, all[offset:end]...)
	}
	return out, len(all), nil
}
