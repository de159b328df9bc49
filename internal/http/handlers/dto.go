package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/playmate/server/internal/apperr"
	"github.com/playmate/server/internal/model"
)

const (
	dateLayout      = "2006-01-02"
	maxJSONBodySize = 1 << 20
)

// activityResponse is one activity in API responses
type activityResponse struct {
	ID                      string  `json:"id"`
	Name                    string  `json:"name"`
	SkillLevel              string  `json:"skillLevel"`
	IsPrimary               bool    `json:"isPrimary"`
	CoachingExperienceYears *int    `json:"coachingExperienceYears,omitempty"`
	Certifications          *string `json:"certifications,omitempty"`
}

// userResponse is the user object in API responses. Contact fields are
// omitted unless the viewer may see them.
type userResponse struct {
	ID           string             `json:"id"`
	PhoneNumber  string             `json:"phoneNumber,omitempty"`
	Email        *string            `json:"email,omitempty"`
	Name         string             `json:"name"`
	UserType     string             `json:"userType"`
	DateOfBirth  string             `json:"dateOfBirth"`
	Age          int                `json:"age"`
	Workplace    string             `json:"workplace"`
	Bio          *string            `json:"bio,omitempty"`
	PhotoURL     *string            `json:"photoUrl,omitempty"`
	Latitude     *float64           `json:"latitude,omitempty"`
	Longitude    *float64           `json:"longitude,omitempty"`
	LocationName string             `json:"locationName"`
	City         string             `json:"city"`
	Society      *string            `json:"society,omitempty"`
	IsVisible    bool               `json:"isVisible"`
	IsActive     bool               `json:"isActive"`
	CreatedAt    time.Time          `json:"createdAt"`
	Activities   []activityResponse `json:"activities"`
}

func toUserResponse(u model.User, now time.Time, withContact bool) userResponse {
	resp := userResponse{
		ID:           u.ID.String(),
		Name:         u.Name,
		UserType:     string(u.UserType),
		DateOfBirth:  u.DateOfBirth.Format(dateLayout),
		Age:          u.Age(now),
		Workplace:    u.Workplace,
		Bio:          u.Bio,
		PhotoURL:     u.PhotoURL,
		Latitude:     u.Latitude,
		Longitude:    u.Longitude,
		LocationName: u.LocationName,
		City:         u.City,
		Society:      u.Society,
		IsVisible:    u.IsVisible,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		Activities:   make([]activityResponse, 0, len(u.Activities)),
	}
	if withContact {
		resp.PhoneNumber = u.PhoneNumber
		resp.Email = u.Email
	}
	for _, a := range u.Activities {
		resp.Activities = append(resp.Activities, activityResponse{
			ID:                      a.ID.String(),
			Name:                    a.Name,
			SkillLevel:              string(a.SkillLevel),
			IsPrimary:               a.IsPrimary,
			CoachingExperienceYears: a.CoachingExperienceYears,
			Certifications:          a.Certifications,
		})
	}
	return resp
}

// interestResponse is an interest in API responses; User is the counterpart in list endpoints
type interestResponse struct {
	ID          string        `json:"id"`
	SenderID    string        `json:"senderId"`
	ReceiverID  string        `json:"receiverId"`
	Status      string        `json:"status"`
	SentAt      time.Time     `json:"sentAt"`
	RespondedAt *time.Time    `json:"respondedAt"`
	User        *userResponse `json:"user,omitempty"`
}

func toInterestResponse(in model.Interest) interestResponse {
	return interestResponse{
		ID:          in.ID.String(),
		SenderID:    in.SenderID.String(),
		ReceiverID:  in.ReceiverID.String(),
		Status:      string(in.Status),
		SentAt:      in.SentAt,
		RespondedAt: in.RespondedAt,
	}
}

// toInterestList denormalizes the counterpart; contact fields show only once accepted
func toInterestList(items []model.InterestWithUser, now time.Time) []interestResponse {
	out := make([]interestResponse, 0, len(items))
	for _, item := range items {
		resp := toInterestResponse(item.Interest)
		u := toUserResponse(item.Counterpart, now, item.Status == model.InterestAccepted)
		resp.User = &u
		out = append(out, resp)
	}
	return out
}

// articleResponse is a news item in API responses
type articleResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	URL         string    `json:"url"`
	ImageURL    *string   `json:"imageUrl,omitempty"`
	Source      string    `json:"source"`
	Sport       string    `json:"sport"`
	PublishedAt time.Time `json:"publishedAt"`
}

func toArticleResponse(a model.Article) articleResponse {
	return articleResponse{
		ID:          a.ID.String(),
		Title:       a.Title,
		Summary:     a.Summary,
		URL:         a.URL,
		ImageURL:    a.ImageURL,
		Source:      a.Source,
		Sport:       a.Sport,
		PublishedAt: a.PublishedAt,
	}
}

// decodeJSON reads a bounded JSON body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid request body")
	}
	return nil
}
