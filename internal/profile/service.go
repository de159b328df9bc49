// Package profile owns the user directory: reading and updating profiles,
// contact visibility and profile photos.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/playmate/server/internal/apperr"
	"github.com/playmate/server/internal/model"
	"github.com/playmate/server/internal/repo"
	"github.com/playmate/server/internal/storage"
)

// ErrStorageDisabled is returned by UploadPhoto when no uploader is configured
var ErrStorageDisabled = errors.New("photo storage not configured")

// PublicProfile is a user as seen by a viewer
type PublicProfile struct {
	User model.User
	// ContactVisible is true when the viewer may see phone and email
	ContactVisible bool
}

// Service reads and updates user profiles
type Service struct {
	users     repo.UserRepo
	interests repo.InterestRepo
	uploader  storage.Uploader
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a profile service. uploader may be nil.
func NewService(users repo.UserRepo, interests repo.InterestRepo, uploader storage.Uploader, logger *slog.Logger) *Service {
	return &Service{
		users:     users,
		interests: interests,
		uploader:  uploader,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the service clock; used by tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Now returns the service clock's current time
func (s *Service) Now() time.Time { return s.now() }

// Get returns the user's own profile
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, apperr.ErrNotFound
		}
		return model.User{}, apperr.Internal("load profile", err)
	}
	return u, nil
}

// Update applies a partial update; activities are replaced wholesale when provided
func (s *Service) Update(ctx context.Context, userID uuid.UUID, patch Patch) (model.User, error) {
	current, err := s.Get(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	updated, activities, err := patch.Apply(current, s.now())
	if err != nil {
		return model.User{}, err
	}
	u, err := s.users.Update(ctx, updated, activities)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, apperr.ErrNotFound
		}
		return model.User{}, apperr.Internal("update profile", err)
	}
	return u, nil
}

// GetPublic returns subjectID's profile as seen by viewer (nil for anonymous).
// Contact fields are visible only to the subject and to users joined by an accepted interest.
func (s *Service) GetPublic(ctx context.Context, viewer *uuid.UUID, subjectID uuid.UUID) (PublicProfile, error) {
	u, err := s.Get(ctx, subjectID)
	if err != nil {
		return PublicProfile{}, err
	}
	if !u.IsActive {
		return PublicProfile{}, apperr.ErrNotFound
	}
	out := PublicProfile{User: u}
	if viewer == nil {
		return out, nil
	}
	if *viewer == subjectID {
		out.ContactVisible = true
		return out, nil
	}
	accepted, err := s.interests.HasAcceptedBetween(ctx, *viewer, subjectID)
	if err != nil {
		return PublicProfile{}, apperr.Internal("check contact visibility", err)
	}
	out.ContactVisible = accepted
	return out, nil
}

// UploadPhoto stores a new profile photo and deletes the previous one best-effort
func (s *Service) UploadPhoto(ctx context.Context, userID uuid.UUID, data []byte, filename string) (model.User, error) {
	if s.uploader == nil {
		return model.User{}, ErrStorageDisabled
	}
	if len(data) == 0 {
		return model.User{}, apperr.Validation("photo is empty")
	}
	if len(data) > storage.MaxPhotoBytes {
		return model.User{}, apperr.Validation("photo is too large")
	}
	current, err := s.Get(ctx, userID)
	if err != nil {
		return model.User{}, err
	}

	url, err := s.uploader.Upload(ctx, userID, data, filename)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) {
			return model.User{}, apperr.Validation("photo must be jpeg, png or webp")
		}
		return model.User{}, apperr.Internal("upload photo", err)
	}
	if err := s.users.SetPhotoURL(ctx, userID, &url); err != nil {
		return model.User{}, apperr.Internal("save photo url", fmt.Errorf("set photo: %w", err))
	}

	if current.PhotoURL != nil {
		if err := s.uploader.Delete(ctx, *current.PhotoURL); err != nil {
			s.logger.WarnContext(ctx, "failed to delete previous photo",
				slog.String("user_id", userID.String()), slog.Any("error", err))
		}
	}
	current.PhotoURL = &url
	return current, nil
}
