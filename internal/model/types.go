package model

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// UserType partitions users into players and coaches
type UserType string

const (
	UserTypePlayer UserType = "player"
	UserTypeCoach  UserType = "coach"
)

// Valid reports whether t is a known user type
func (t UserType) Valid() bool {
	return t == UserTypePlayer || t == UserTypeCoach
}

// SkillLevel is an ordered skill enum: beginner < learner < intermediate < advanced < expert
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillLearner      SkillLevel = "learner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
	SkillExpert       SkillLevel = "expert"
)

// SkillLevels lists all levels in ascending order
var SkillLevels = []SkillLevel{SkillBeginner, SkillLearner, SkillIntermediate, SkillAdvanced, SkillExpert}

// Rank returns the position of the level in SkillLevels, or -1 if unknown
func (l SkillLevel) Rank() int {
	for i, s := range SkillLevels {
		if s == l {
			return i
		}
	}
	return -1
}

// Valid reports whether l is a known skill level
func (l SkillLevel) Valid() bool { return l.Rank() >= 0 }

// User represents a registered player or coach
type User struct {
	ID           uuid.UUID
	PhoneNumber  string
	Email        *string
	Name         string
	UserType     UserType
	DateOfBirth  time.Time
	Workplace    string
	Bio          *string
	PhotoURL     *string
	Latitude     *float64
	Longitude    *float64
	LocationName string
	City         string
	Society      *string
	IsVisible    bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Activities   []Activity
}

// Age returns the user's age in whole years at now
func (u User) Age(now time.Time) int {
	return AgeAt(u.DateOfBirth, now)
}

// AgeAt returns the number of full years between dob and now
func AgeAt(dob, now time.Time) int {
	if dob.IsZero() {
		return 0
	}
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// Activity is a sport a user plays or coaches, with a skill level
type Activity struct {
	ID                      uuid.UUID
	UserID                  uuid.UUID
	Name                    string
	SkillLevel              SkillLevel
	IsPrimary               bool
	CoachingExperienceYears *int
	Certifications          *string
	CreatedAt               time.Time
}

// NormalizeActivityName trims, collapses inner whitespace and title-cases an activity name
func NormalizeActivityName(name string) string {
	fields := strings.Fields(name)
	for i, f := range fields {
		r := []rune(strings.ToLower(f))
		r[0] = unicode.ToUpper(r[0])
		fields[i] = string(r)
	}
	return strings.Join(fields, " ")
}

// ActivityKey returns the case-insensitive matching key for an activity name
func ActivityKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// InterestStatus is the state of an interest
type InterestStatus string

const (
	InterestPending   InterestStatus = "pending"
	InterestAccepted  InterestStatus = "accepted"
	InterestDeclined  InterestStatus = "declined"
	InterestWithdrawn InterestStatus = "withdrawn"
)

// Active reports whether the status blocks a new send for the same ordered pair
func (s InterestStatus) Active() bool {
	return s == InterestPending || s == InterestAccepted
}

// Interest is a directed connection request from sender to receiver.
// There is at most one row per ordered (sender, receiver) pair.
type Interest struct {
	ID          uuid.UUID
	SenderID    uuid.UUID
	ReceiverID  uuid.UUID
	Status      InterestStatus
	SentAt      time.Time
	RespondedAt *time.Time
}

// InterestWithUser is an interest plus the counterpart's profile
type InterestWithUser struct {
	Interest
	Counterpart User
}

// SessionKind distinguishes bridge sessions from full sessions
type SessionKind string

const (
	SessionOtpVerified     SessionKind = "otp_verified"
	SessionProfileComplete SessionKind = "profile_complete"
)

// Session maps an opaque token (stored as a hash) to a phone and optional user
type Session struct {
	ID          uuid.UUID
	TokenHash   string
	PhoneNumber string
	UserID      *uuid.UUID
	Kind        SessionKind
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Complete reports whether the session is bound to a registered user
func (s Session) Complete() bool {
	return s.Kind == SessionProfileComplete && s.UserID != nil
}

// OtpVerification is one issued one-time code for a phone
type OtpVerification struct {
	ID          uuid.UUID
	PhoneNumber string
	CodeHash    string
	ExpiresAt   time.Time
	Verified    bool
	CreatedAt   time.Time
}

// Article is a stored sports-news item
type Article struct {
	ID          uuid.UUID
	ExternalID  string
	Title       string
	Summary     string
	URL         string
	ImageURL    *string
	Source      string
	Sport       string
	PublishedAt time.Time
	CreatedAt   time.Time
}
