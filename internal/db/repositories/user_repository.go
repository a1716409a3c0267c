// user_repository.go implements UserRepository, providing database queries for
// account records and their public profile projections.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/inevitable-science/article-registry/internal/db/models"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `user_id, password_hash, mfa_key, is_top_level_admin, username,
	profile_picture, social_x, social_linkedin, social_website, attachments,
	created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.UserID,
		&u.PasswordHash,
		&u.MFAKey,
		&u.IsTopLevelAdmin,
		&u.Username,
		&u.ProfilePicture,
		&u.Socials.X,
		&u.Socials.LinkedIn,
		&u.Socials.Website,
		pq.Array(&u.Attachments),
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetByID retrieves a user by their canonical id. A resolved id with no
// matching record yields (nil, nil): the caller treats it as "not found", never
// as a fatal error.
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, models.CanonicalID(userID)))
}

// Exists reports whether a user with the given id exists
func (r *UserRepository) Exists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`
	if err := r.db.QueryRowContext(ctx, query, models.CanonicalID(userID)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// Create inserts a new user. A primary key collision (two concurrent creations
// passing the same candidate id) maps to ErrUniqueViolation so the allocator
// can regenerate and retry.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (user_id, password_hash, mfa_key, is_top_level_admin, username,
			profile_picture, social_x, social_linkedin, social_website, attachments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		models.CanonicalID(u.UserID),
		u.PasswordHash,
		u.MFAKey,
		u.IsTopLevelAdmin,
		u.Username,
		u.ProfilePicture,
		u.Socials.X,
		u.Socials.LinkedIn,
		u.Socials.Website,
		pq.Array(u.Attachments),
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped == ErrUniqueViolation {
			return mapped
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UpdateProfile overwrites the user's editable profile fields
func (r *UserRepository) UpdateProfile(ctx context.Context, userID, username, profilePicture string, socials models.Socials) error {
	query := `
		UPDATE users
		SET username = $2, profile_picture = $3, social_x = $4, social_linkedin = $5,
			social_website = $6, updated_at = NOW()
		WHERE user_id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		models.CanonicalID(userID), username, profilePicture,
		socials.X, socials.LinkedIn, socials.Website,
	)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AppendAttachment appends an uploaded file URL to the user's attachment list
func (r *UserRepository) AppendAttachment(ctx context.Context, userID, url string) error {
	query := `
		UPDATE users
		SET attachments = array_append(attachments, $2), updated_at = NOW()
		WHERE user_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, models.CanonicalID(userID), url); err != nil {
		return fmt.Errorf("failed to append attachment: %w", err)
	}
	return nil
}

// ListProfiles returns the public profile of every user, for the admin
// directory and the organisation management view.
func (r *UserRepository) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	query := `SELECT user_id, username, profile_picture FROM users ORDER BY user_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	profiles := []models.Profile{}
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.UserID, &p.Username, &p.ProfilePicture); err != nil {
			return nil, fmt.Errorf("failed to scan user profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// GetProfiles returns public profiles for the given ids, preserving the order
// of ids that were found. Missing ids are silently skipped: author or editor
// references can outlive profile visibility.
func (r *UserRepository) GetProfiles(ctx context.Context, userIDs []string) ([]models.Profile, error) {
	if len(userIDs) == 0 {
		return []models.Profile{}, nil
	}
	canonical := make([]string, len(userIDs))
	for i, id := range userIDs {
		canonical[i] = models.CanonicalID(id)
	}

	query := `SELECT user_id, username, profile_picture FROM users WHERE user_id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(canonical))
	if err != nil {
		return nil, fmt.Errorf("failed to get user profiles: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]models.Profile, len(canonical))
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(&p.UserID, &p.Username, &p.ProfilePicture); err != nil {
			return nil, fmt.Errorf("failed to scan user profile: %w", err)
		}
		byID[p.UserID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordered := make([]models.Profile, 0, len(byID))
	for _, id := range canonical {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}
