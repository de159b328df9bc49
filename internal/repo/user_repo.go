package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/playmate/server/internal/model"
)

const userColumns = `
	u.id, u.phone_number, u.email, u.name, u.user_type, u.date_of_birth, u.workplace,
	u.bio, u.photo_url, u.latitude, u.longitude, u.location_name, u.city, u.society,
	u.is_visible, u.is_active, u.created_at, u.updated_at`

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo instance
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

func scanUser(row scanner) (model.User, error) {
	var u model.User
	var userType string
	err := row.Scan(
		&u.ID,
		&u.PhoneNumber,
		&u.Email,
		&u.Name,
		&userType,
		&u.DateOfBirth,
		&u.Workplace,
		&u.Bio,
		&u.PhotoURL,
		&u.Latitude,
		&u.Longitude,
		&u.LocationName,
		&u.City,
		&u.Society,
		&u.IsVisible,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	u.UserType = model.UserType(userType)
	return u, err
}

// CreateWithActivities inserts the user row and its activities in one transaction
func (r *userRepo) CreateWithActivities(ctx context.Context, user model.User, activities []model.Activity) (model.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.User{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (phone_number, email, name, user_type, date_of_birth, workplace, bio,
		                   photo_url, latitude, longitude, location_name, city, society, is_visible, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at
	`, user.PhoneNumber, user.Email, user.Name, string(user.UserType), user.DateOfBirth, user.Workplace, user.Bio,
		user.PhotoURL, user.Latitude, user.Longitude, user.LocationName, user.City, user.Society, user.IsVisible, user.IsActive,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, ErrConflict
		}
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}

	user.Activities, err = insertActivities(ctx, tx, user.ID, activities)
	if err != nil {
		return model.User{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.User{}, fmt.Errorf("commit: %w", err)
	}
	return user, nil
}

func insertActivities(ctx context.Context, q querier, userID uuid.UUID, activities []model.Activity) ([]model.Activity, error) {
	out := make([]model.Activity, 0, len(activities))
	for _, a := range activities {
		a.UserID = userID
		err := q.QueryRowContext(ctx, `
			INSERT INTO activities (user_id, name, skill_level, is_primary, coaching_experience_years, certifications)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at
		`, userID, a.Name, string(a.SkillLevel), a.IsPrimary, a.CoachingExperienceYears, a.Certifications,
		).Scan(&a.ID, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert activity %q: %w", a.Name, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// GetByID retrieves a user and its activities by ID
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id)
}

// GetByPhone retrieves a user and its activities by phone number
func (r *userRepo) GetByPhone(ctx context.Context, phone string) (model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users u WHERE u.phone_number = $1`, phone)
}

func (r *userRepo) getOne(ctx context.Context, query string, arg any) (model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	byUser, err := loadActivities(ctx, r.db, []uuid.UUID{user.ID})
	if err != nil {
		return model.User{}, err
	}
	user.Activities = byUser[user.ID]
	return user, nil
}

func loadActivities(ctx context.Context, q querier, userIDs []uuid.UUID) (map[uuid.UUID][]model.Activity, error) {
	out := make(map[uuid.UUID][]model.Activity, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := q.QueryContext(ctx, `
		SELECT id, user_id, name, skill_level, is_primary, coaching_experience_years, certifications, created_at
		FROM activities
		WHERE user_id = ANY($1::uuid[])
		ORDER BY created_at, id
	`, pq.Array(uuidStrings(userIDs)))
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a model.Activity
		var level string
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &level, &a.IsPrimary, &a.CoachingExperienceYears, &a.Certifications, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.SkillLevel = model.SkillLevel(level)
		out[a.UserID] = append(out[a.UserID], a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return out, nil
}

// Update writes mutable profile fields and optionally replaces activities
func (r *userRepo) Update(ctx context.Context, user model.User, activities *[]model.Activity) (model.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.User{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		UPDATE users
		SET email = $2, name = $3, user_type = $4, date_of_birth = $5, workplace = $6, bio = $7,
		    latitude = $8, longitude = $9, location_name = $10, city = $11, society = $12,
		    is_visible = $13, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, user.ID, user.Email, user.Name, string(user.UserType), user.DateOfBirth, user.Workplace, user.Bio,
		user.Latitude, user.Longitude, user.LocationName, user.City, user.Society, user.IsVisible,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("update user: %w", err)
	}

	if activities != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE user_id = $1`, user.ID); err != nil {
			return model.User{}, fmt.Errorf("delete activities: %w", err)
		}
		user.Activities, err = insertActivities(ctx, tx, user.ID, *activities)
		if err != nil {
			return model.User{}, err
		}
	} else {
		byUser, err := loadActivities(ctx, tx, []uuid.UUID{user.ID})
		if err != nil {
			return model.User{}, err
		}
		user.Activities = byUser[user.ID]
	}

	if err := tx.Commit(); err != nil {
		return model.User{}, fmt.Errorf("commit: %w", err)
	}
	return user, nil
}

// SetPhotoURL stores (or clears) the profile photo URL
func (r *userRepo) SetPhotoURL(ctx context.Context, id uuid.UUID, photoURL *string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET photo_url = $2, updated_at = now() WHERE id = $1
	`, id, photoURL)
	if err != nil {
		return fmt.Errorf("set photo url: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// searchWhere builds the WHERE clause shared by Search and FilterOptions
type searchWhere struct {
	clauses []string
	args    []any
}

func (w *searchWhere) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *searchWhere) String() string {
	return strings.Join(w.clauses, " AND ")
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return out
}

func buildSearchWhere(q model.SearchQuery) *searchWhere {
	w := &searchWhere{clauses: []string{"u.is_active", "u.is_visible"}}

	if q.Viewer != nil {
		p := w.arg(q.Viewer.String())
		w.clauses = append(w.clauses,
			"u.id <> "+p+"::uuid",
			fmt.Sprintf(`NOT EXISTS (
				SELECT 1 FROM interests i
				WHERE i.status <> 'withdrawn'
				  AND ((i.sender_id = %[1]s::uuid AND i.receiver_id = u.id)
				    OR (i.receiver_id = %[1]s::uuid AND i.sender_id = u.id)))`, p),
		)
	}
	if q.UserType != "" {
		w.clauses = append(w.clauses, "u.user_type = "+w.arg(string(q.UserType)))
	}
	if len(q.Cities) > 0 {
		w.clauses = append(w.clauses, "lower(u.city) = ANY("+w.arg(pq.Array(lowerAll(q.Cities)))+")")
	}
	if len(q.Societies) > 0 {
		w.clauses = append(w.clauses, "lower(u.society) = ANY("+w.arg(pq.Array(lowerAll(q.Societies)))+")")
	}
	if len(q.Workplaces) > 0 {
		w.clauses = append(w.clauses, "lower(u.workplace) = ANY("+w.arg(pq.Array(lowerAll(q.Workplaces)))+")")
	}
	if maxDOB, ok := q.MaxDateOfBirth(); ok {
		w.clauses = append(w.clauses, "u.date_of_birth <= "+w.arg(maxDOB))
	}
	if minDOB, ok := q.MinDateOfBirthExclusive(); ok {
		w.clauses = append(w.clauses, "u.date_of_birth > "+w.arg(minDOB))
	}
	if len(q.Activities) > 0 || len(q.SkillLevels) > 0 {
		sub := []string{"a.user_id = u.id"}
		if len(q.Activities) > 0 {
			keys := make([]string, len(q.Activities))
			for i, a := range q.Activities {
				keys[i] = model.ActivityKey(a)
			}
			sub = append(sub, "lower(a.name) = ANY("+w.arg(pq.Array(keys))+")")
		}
		if len(q.SkillLevels) > 0 {
			levels := make([]string, len(q.SkillLevels))
			for i, l := range q.SkillLevels {
				levels[i] = string(l)
			}
			sub = append(sub, "a.skill_level = ANY("+w.arg(pq.Array(levels))+")")
		}
		w.clauses = append(w.clauses, "EXISTS (SELECT 1 FROM activities a WHERE "+strings.Join(sub, " AND ")+")")
	}
	return w
}

// Search returns one page of matching users and the total post-exclusion count
func (r *userRepo) Search(ctx context.Context, q model.SearchQuery) (model.SearchResult, error) {
	w := buildSearchWhere(q)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users u WHERE `+w.String(), w.args...).Scan(&total); err != nil {
		return model.SearchResult{}, fmt.Errorf("count search: %w", err)
	}

	limitArg := w.arg(q.Limit)
	offsetArg := w.arg(q.Offset)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users u
		WHERE `+w.String()+`
		ORDER BY u.created_at DESC, u.id
		LIMIT `+limitArg+` OFFSET `+offsetArg, w.args...)
	if err != nil {
		return model.SearchResult{}, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	var ids []uuid.UUID
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return model.SearchResult{}, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
		ids = append(ids, u.ID)
	}
	if err := rows.Err(); err != nil {
		return model.SearchResult{}, fmt.Errorf("iterate users: %w", err)
	}

	byUser, err := loadActivities(ctx, r.db, ids)
	if err != nil {
		return model.SearchResult{}, err
	}
	for i := range users {
		users[i].Activities = byUser[users[i].ID]
	}
	return model.SearchResult{Users: users, Total: total}, nil
}

// FilterOptions returns distinct facet values over the searchable population
func (r *userRepo) FilterOptions(ctx context.Context, viewer *uuid.UUID) (model.FilterOptions, error) {
	w := buildSearchWhere(model.SearchQuery{Viewer: viewer})
	where := w.String()

	var opts model.FilterOptions
	var err error
	if opts.Cities, err = r.distinct(ctx, `SELECT DISTINCT u.city FROM users u WHERE `+where+` AND u.city <> ''`, w.args); err != nil {
		return model.FilterOptions{}, err
	}
	if opts.Societies, err = r.distinct(ctx, `SELECT DISTINCT u.society FROM users u WHERE `+where+` AND u.society IS NOT NULL AND u.society <> ''`, w.args); err != nil {
		return model.FilterOptions{}, err
	}
	if opts.Workplaces, err = r.distinct(ctx, `SELECT DISTINCT u.workplace FROM users u WHERE `+where+` AND u.workplace <> ''`, w.args); err != nil {
		return model.FilterOptions{}, err
	}
	if opts.Activities, err = r.distinct(ctx, `SELECT DISTINCT a.name FROM activities a JOIN users u ON u.id = a.user_id WHERE `+where, w.args); err != nil {
		return model.FilterOptions{}, err
	}
	levels, err := r.distinct(ctx, `SELECT DISTINCT a.skill_level FROM activities a JOIN users u ON u.id = a.user_id WHERE `+where, w.args)
	if err != nil {
		return model.FilterOptions{}, err
	}
	opts.SkillLevels = make([]model.SkillLevel, 0, len(levels))
	for _, l := range levels {
		opts.SkillLevels = append(opts.SkillLevels, model.SkillLevel(l))
	}
	sort.Slice(opts.SkillLevels, func(i, j int) bool {
		return opts.SkillLevels[i].Rank() < opts.SkillLevels[j].Rank()
	})
	return opts, nil
}

func (r *userRepo) distinct(ctx context.Context, query string, args []any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query+` ORDER BY 1`, args...)
	if err != nil {
		return nil, fmt.Errorf("query facet: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan facet: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facet: %w", err)
	}
	return out, nil
}
