package model

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SearchQuery is a normalized user search. Multi-value fields use OR
// semantics within a field and AND across fields. Empty fields do not filter.
type SearchQuery struct {
	// Viewer is the authenticated searcher; nil means anonymous.
	Viewer      *uuid.UUID
	Cities      []string
	Societies   []string
	Activities  []string
	SkillLevels []SkillLevel
	Workplaces  []string
	UserType    UserType
	MinAge      *int
	MaxAge      *int
	Limit       int
	Offset      int
	Now         time.Time
}

// SearchResult is one page of users plus the total post-exclusion count
type SearchResult struct {
	Users []User
	Total int
}

// FilterOptions are the distinct facet values offered to the UI
type FilterOptions struct {
	Cities      []string
	Societies   []string
	Activities  []string
	SkillLevels []SkillLevel
	Workplaces  []string
}

// MaxDateOfBirth returns the latest date of birth satisfying MinAge (inclusive).
func (q SearchQuery) MaxDateOfBirth() (time.Time, bool) {
	if q.MinAge == nil {
		return time.Time{}, false
	}
	return q.Now.AddDate(-*q.MinAge, 0, 0), true
}

// MinDateOfBirthExclusive returns the bound a date of birth must be after to satisfy MaxAge.
func (q SearchQuery) MinDateOfBirthExclusive() (time.Time, bool) {
	if q.MaxAge == nil {
		return time.Time{}, false
	}
	return q.Now.AddDate(-(*q.MaxAge + 1), 0, 0), true
}

// Candidate reports whether u belongs to the searchable population at all
func Candidate(u User) bool {
	return u.IsActive && u.IsVisible
}

// Matches applies the field filters of q to u. It does not apply interest
// exclusion or the viewer-is-self rule; stores handle those.
func (q SearchQuery) Matches(u User) bool {
	if !Candidate(u) {
		return false
	}
	if q.UserType != "" && u.UserType != q.UserType {
		return false
	}
	if len(q.Cities) > 0 && !containsFold(q.Cities, u.City) {
		return false
	}
	if len(q.Societies) > 0 && (u.Society == nil || !containsFold(q.Societies, *u.Society)) {
		return false
	}
	if len(q.Workplaces) > 0 && !containsFold(q.Workplaces, u.Workplace) {
		return false
	}
	if maxDOB, ok := q.MaxDateOfBirth(); ok && u.DateOfBirth.After(maxDOB) {
		return false
	}
	if minDOB, ok := q.MinDateOfBirthExclusive(); ok && !u.DateOfBirth.After(minDOB) {
		return false
	}
	if len(q.Activities) > 0 || len(q.SkillLevels) > 0 {
		found := false
		for _, a := range u.Activities {
			if len(q.Activities) > 0 && !containsFold(q.Activities, ActivityKey(a.Name)) {
				continue
			}
			if len(q.SkillLevels) > 0 && !containsSkill(q.SkillLevels, a.SkillLevel) {
				continue
			}
			found = true
			break
		}
		if !found {
			return false
		}
	}
	return true
}

// CollectFilterOptions derives sorted, de-duplicated facets from users
func CollectFilterOptions(users []User) FilterOptions {
	cities := map[string]struct{}{}
	societies := map[string]struct{}{}
	activities := map[string]struct{}{}
	workplaces := map[string]struct{}{}
	skills := map[SkillLevel]struct{}{}
	for _, u := range users {
		if u.City != "" {
			cities[u.City] = struct{}{}
		}
		if u.Society != nil && *u.Society != "" {
			societies[*u.Society] = struct{}{}
		}
		if u.Workplace != "" {
			workplaces[u.Workplace] = struct{}{}
		}
		for _, a := range u.Activities {
			activities[a.Name] = struct{}{}
			skills[a.SkillLevel] = struct{}{}
		}
	}
	opts := FilterOptions{
		Cities:     sortedKeys(cities),
		Societies:  sortedKeys(societies),
		Activities: sortedKeys(activities),
		Workplaces: sortedKeys(workplaces),
	}
	opts.SkillLevels = []SkillLevel{}
	for _, l := range SkillLevels {
		if _, ok := skills[l]; ok {
			opts.SkillLevels = append(opts.SkillLevels, l)
		}
	}
	return opts
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(s)) {
			return true
		}
	}
	return false
}

func containsSkill(values []SkillLevel, l SkillLevel) bool {
	for _, v := range values {
		if v == l {
			return true
		}
	}
	return false
}
