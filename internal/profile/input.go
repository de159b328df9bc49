package profile

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/playmate/server/internal/apperr"
	"github.com/playmate/server/internal/model"
)

const dateLayout = "2006-01-02"

var phonePattern = regexp.MustCompile(`^[0-9]{10}$`)

// ValidatePhone checks the 10-digit phone format and returns the trimmed value
func ValidatePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if !phonePattern.MatchString(phone) {
		return "", apperr.Validation("phoneNumber must be a 10-digit number")
	}
	return phone, nil
}

// ActivityInput is one activity as submitted by the client
type ActivityInput struct {
	Name                    string  `json:"name"`
	SkillLevel              string  `json:"skillLevel"`
	IsPrimary               bool    `json:"isPrimary"`
	CoachingExperienceYears *int    `json:"coachingExperienceYears,omitempty"`
	Certifications          *string `json:"certifications,omitempty"`
}

// Input is the full profile submitted at registration
type Input struct {
	PhoneNumber  string          `json:"phoneNumber"`
	Name         string          `json:"name"`
	Email        *string         `json:"email,omitempty"`
	UserType     string          `json:"userType"`
	DateOfBirth  string          `json:"dateOfBirth"`
	Workplace    string          `json:"workplace"`
	Bio          *string         `json:"bio,omitempty"`
	Latitude     *float64        `json:"latitude,omitempty"`
	Longitude    *float64        `json:"longitude,omitempty"`
	LocationName string          `json:"locationName"`
	City         string          `json:"city"`
	Society      *string         `json:"society,omitempty"`
	IsVisible    *bool           `json:"isVisible,omitempty"`
	Activities   []ActivityInput `json:"activities"`
}

// Patch is a partial profile update; nil fields are left unchanged.
// A non-nil Activities replaces the whole activity list.
type Patch struct {
	Name         *string          `json:"name,omitempty"`
	Email        *string          `json:"email,omitempty"`
	UserType     *string          `json:"userType,omitempty"`
	DateOfBirth  *string          `json:"dateOfBirth,omitempty"`
	Workplace    *string          `json:"workplace,omitempty"`
	Bio          *string          `json:"bio,omitempty"`
	Latitude     *float64         `json:"latitude,omitempty"`
	Longitude    *float64         `json:"longitude,omitempty"`
	LocationName *string          `json:"locationName,omitempty"`
	City         *string          `json:"city,omitempty"`
	Society      *string          `json:"society,omitempty"`
	IsVisible    *bool            `json:"isVisible,omitempty"`
	Activities   *[]ActivityInput `json:"activities,omitempty"`
}

// Build validates the registration input and returns the user and activities to insert
func (in Input) Build(now time.Time) (model.User, []model.Activity, error) {
	phone, err := ValidatePhone(in.PhoneNumber)
	if err != nil {
		return model.User{}, nil, err
	}
	u := model.User{
		PhoneNumber:  phone,
		Name:         strings.TrimSpace(in.Name),
		UserType:     model.UserType(strings.ToLower(strings.TrimSpace(in.UserType))),
		Workplace:    strings.TrimSpace(in.Workplace),
		Bio:          trimmedPtr(in.Bio),
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		LocationName: strings.TrimSpace(in.LocationName),
		City:         strings.TrimSpace(in.City),
		Society:      trimmedPtr(in.Society),
		IsVisible:    true,
		IsActive:     true,
	}
	if in.IsVisible != nil {
		u.IsVisible = *in.IsVisible
	}
	if u.Email, err = parseEmail(in.Email); err != nil {
		return model.User{}, nil, err
	}
	if u.DateOfBirth, err = parseDOB(in.DateOfBirth, now); err != nil {
		return model.User{}, nil, err
	}
	if err := validateUser(u); err != nil {
		return model.User{}, nil, err
	}
	if len(in.Activities) == 0 {
		return model.User{}, nil, apperr.Validation("at least one activity is required")
	}
	activities, err := BuildActivities(in.Activities)
	if err != nil {
		return model.User{}, nil, err
	}
	return u, activities, nil
}

// Apply merges the patch into u, validating the result
func (p Patch) Apply(u model.User, now time.Time) (model.User, *[]model.Activity, error) {
	var err error
	if p.Name != nil {
		u.Name = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		if u.Email, err = parseEmail(p.Email); err != nil {
			return model.User{}, nil, err
		}
	}
	if p.UserType != nil {
		u.UserType = model.UserType(strings.ToLower(strings.TrimSpace(*p.UserType)))
	}
	if p.DateOfBirth != nil {
		if u.DateOfBirth, err = parseDOB(*p.DateOfBirth, now); err != nil {
			return model.User{}, nil, err
		}
	}
	if p.Workplace != nil {
		u.Workplace = strings.TrimSpace(*p.Workplace)
	}
	if p.Bio != nil {
		u.Bio = trimmedPtr(p.Bio)
	}
	if p.Latitude != nil {
		u.Latitude = p.Latitude
	}
	if p.Longitude != nil {
		u.Longitude = p.Longitude
	}
	if p.LocationName != nil {
		u.LocationName = strings.TrimSpace(*p.LocationName)
	}
	if p.City != nil {
		u.City = strings.TrimSpace(*p.City)
	}
	if p.Society != nil {
		u.Society = trimmedPtr(p.Society)
	}
	if p.IsVisible != nil {
		u.IsVisible = *p.IsVisible
	}
	if err := validateUser(u); err != nil {
		return model.User{}, nil, err
	}
	if p.Activities == nil {
		return u, nil, nil
	}
	activities, err := BuildActivities(*p.Activities)
	if err != nil {
		return model.User{}, nil, err
	}
	return u, &activities, nil
}

// BuildActivities validates and normalizes activity inputs
func BuildActivities(inputs []ActivityInput) ([]model.Activity, error) {
	out := make([]model.Activity, 0, len(inputs))
	for _, a := range inputs {
		name := model.NormalizeActivityName(a.Name)
		if name == "" {
			return nil, apperr.Validation("activity name is required")
		}
		level := model.SkillLevel(strings.ToLower(strings.TrimSpace(a.SkillLevel)))
		if !level.Valid() {
			return nil, apperr.Validation("invalid skill level " + a.SkillLevel)
		}
		if a.CoachingExperienceYears != nil && *a.CoachingExperienceYears < 0 {
			return nil, apperr.Validation("coachingExperienceYears must not be negative")
		}
		out = append(out, model.Activity{
			Name:                    name,
			SkillLevel:              level,
			IsPrimary:               a.IsPrimary,
			CoachingExperienceYears: a.CoachingExperienceYears,
			Certifications:          trimmedPtr(a.Certifications),
		})
	}
	return out, nil
}

func validateUser(u model.User) error {
	switch {
	case u.Name == "":
		return apperr.Validation("name is required")
	case len(u.Name) > 100:
		return apperr.Validation("name is too long")
	case !u.UserType.Valid():
		return apperr.Validation("userType must be player or coach")
	case u.City == "":
		return apperr.Validation("city is required")
	case u.Latitude != nil && (*u.Latitude < -90 || *u.Latitude > 90):
		return apperr.Validation("latitude out of range")
	case u.Longitude != nil && (*u.Longitude < -180 || *u.Longitude > 180):
		return apperr.Validation("longitude out of range")
	}
	return nil
}

func parseDOB(s string, now time.Time) (time.Time, error) {
	dob, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, apperr.Validation("dateOfBirth must be YYYY-MM-DD")
	}
	if !dob.Before(now) {
		return time.Time{}, apperr.Validation("dateOfBirth must be in the past")
	}
	if model.AgeAt(dob, now) > 120 {
		return time.Time{}, apperr.Validation("dateOfBirth is out of range")
	}
	return dob, nil
}

func parseEmail(email *string) (*string, error) {
	e := trimmedPtr(email)
	if e == nil {
		return nil, nil
	}
	addr, err := mail.ParseAddress(*e)
	if err != nil {
		return nil, apperr.Validation("invalid email")
	}
	return &addr.Address, nil
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
