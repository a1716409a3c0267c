// organisation_repository.go implements OrganisationRepository: organisation CRUD
// and the membership index mapping users to their per-organisation capability
// flags.
//
// Membership lists are owned by their organisation and written only as full
// replacements, inside the same transaction as the organisation row, so a
// rejected list (duplicate userId, unknown user) leaves the stored state
// untouched.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/inevitable-science/article-registry/internal/db/models"
)

// OrganisationRepository handles database operations for organisations and memberships
type OrganisationRepository struct {
	db *sql.DB
}

// NewOrganisationRepository creates a new organisation repository
func NewOrganisationRepository(db *sql.DB) *OrganisationRepository {
	return &OrganisationRepository{db: db}
}

const organisationColumns = `organisation_id, organisation_name, logo, description,
	website, social_x, discord, created_at, updated_at`

func scanOrganisation(row *sql.Row) (*models.Organisation, error) {
	org := &models.Organisation{}
	err := row.Scan(
		&org.OrganisationID,
		&org.OrganisationName,
		&org.Metadata.Logo,
		&org.Metadata.Description,
		&org.Metadata.Website,
		&org.Metadata.X,
		&org.Metadata.Discord,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get organisation: %w", err)
	}
	return org, nil
}

// GetByID retrieves an organisation by its canonical id
func (r *OrganisationRepository) GetByID(ctx context.Context, organisationID string) (*models.Organisation, error) {
	query := `SELECT ` + organisationColumns + ` FROM organisations WHERE organisation_id = $1`
	return scanOrganisation(r.db.QueryRowContext(ctx, query, models.CanonicalID(organisationID)))
}

// Exists reports whether an organisation with the given id exists
func (r *OrganisationRepository) Exists(ctx context.Context, organisationID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM organisations WHERE organisation_id = $1)`
	if err := r.db.QueryRowContext(ctx, query, models.CanonicalID(organisationID)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check organisation existence: %w", err)
	}
	return exists, nil
}

// List returns every organisation
func (r *OrganisationRepository) List(ctx context.Context) ([]models.Organisation, error) {
	query := `SELECT ` + organisationColumns + ` FROM organisations ORDER BY organisation_name`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list organisations: %w", err)
	}
	defer rows.Close()

	orgs := []models.Organisation{}
	for rows.Next() {
		var org models.Organisation
		if err := rows.Scan(
			&org.OrganisationID,
			&org.OrganisationName,
			&org.Metadata.Logo,
			&org.Metadata.Description,
			&org.Metadata.Website,
			&org.Metadata.X,
			&org.Metadata.Discord,
			&org.CreatedAt,
			&org.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan organisation: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// Create inserts a new organisation with its full membership list in one
// transaction. Callers validate the list for duplicates first; the composite
// primary key on organisation_members is the concurrent-write backstop and, like
// an organisation id or name collision, surfaces as ErrUniqueViolation.
func (r *OrganisationRepository) Create(ctx context.Context, org *models.Organisation, members []models.Membership) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO organisations (organisation_id, organisation_name, logo, description,
			website, social_x, discord)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRowContext(ctx, query,
		models.CanonicalID(org.OrganisationID),
		org.OrganisationName,
		org.Metadata.Logo,
		org.Metadata.Description,
		org.Metadata.Website,
		org.Metadata.X,
		org.Metadata.Discord,
	).Scan(&org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped == ErrUniqueViolation {
			return mapped
		}
		return fmt.Errorf("failed to create organisation: %w", err)
	}

	if err := insertMembers(ctx, tx, models.CanonicalID(org.OrganisationID), members); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit organisation create: %w", err)
	}
	return nil
}

// Update overwrites the organisation's metadata and replaces its membership list
// wholesale, in one transaction.
func (r *OrganisationRepository) Update(ctx context.Context, org *models.Organisation, members []models.Membership) error {
	orgID := models.CanonicalID(org.OrganisationID)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE organisations
		SET organisation_name = $2, logo = $3, description = $4, website = $5,
			social_x = $6, discord = $7, updated_at = NOW()
		WHERE organisation_id = $1
	`
	res, err := tx.ExecContext(ctx, query,
		orgID,
		org.OrganisationName,
		org.Metadata.Logo,
		org.Metadata.Description,
		org.Metadata.Website,
		org.Metadata.X,
		org.Metadata.Discord,
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped == ErrUniqueViolation {
			return mapped
		}
		return fmt.Errorf("failed to update organisation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM organisation_members WHERE organisation_id = $1`, orgID); err != nil {
		return fmt.Errorf("failed to clear membership list: %w", err)
	}

	if err := insertMembers(ctx, tx, orgID, members); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit organisation update: %w", err)
	}
	return nil
}

func insertMembers(ctx context.Context, tx *sql.Tx, orgID string, members []models.Membership) error {
	query := `
		INSERT INTO organisation_members (organisation_id, user_id, is_admin, can_edit,
			can_delete, can_create, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i, m := range members {
		_, err := tx.ExecContext(ctx, query,
			orgID, models.CanonicalID(m.UserID),
			m.IsAdmin, m.CanEdit, m.CanDelete, m.CanCreate, i,
		)
		if err != nil {
			if mapped := mapUniqueViolation(err); mapped == ErrUniqueViolation {
				return mapped
			}
			return fmt.Errorf("failed to insert membership: %w", err)
		}
	}
	return nil
}

// AddMember appends a single membership row. Used by user creation when
// assigning a new user into existing organisations.
func (r *OrganisationRepository) AddMember(ctx context.Context, organisationID string, m models.Membership) error {
	query := `
		INSERT INTO organisation_members (organisation_id, user_id, is_admin, can_edit,
			can_delete, can_create, position)
		VALUES ($1, $2, $3, $4, $5, $6,
			COALESCE((SELECT MAX(position) + 1 FROM organisation_members WHERE organisation_id = $1), 0))
	`
	_, err := r.db.ExecContext(ctx, query,
		models.CanonicalID(organisationID), models.CanonicalID(m.UserID),
		m.IsAdmin, m.CanEdit, m.CanDelete, m.CanCreate,
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped == ErrUniqueViolation {
			return mapped
		}
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// GetMember retrieves the membership for (organisationId, userId). Exact match
// on both fields, case-insensitive via canonicalization. (nil, nil) when the
// user has no membership in the organisation.
func (r *OrganisationRepository) GetMember(ctx context.Context, organisationID, userID string) (*models.Membership, error) {
	query := `
		SELECT user_id, is_admin, can_edit, can_delete, can_create
		FROM organisation_members
		WHERE organisation_id = $1 AND user_id = $2
	`
	m := &models.Membership{}
	err := r.db.QueryRowContext(ctx, query,
		models.CanonicalID(organisationID), models.CanonicalID(userID),
	).Scan(&m.UserID, &m.IsAdmin, &m.CanEdit, &m.CanDelete, &m.CanCreate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not a member
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// ListMembers returns the organisation's membership list in stored order
func (r *OrganisationRepository) ListMembers(ctx context.Context, organisationID string) ([]models.Membership, error) {
	query := `
		SELECT user_id, is_admin, can_edit, can_delete, can_create
		FROM organisation_members
		WHERE organisation_id = $1
		ORDER BY position
	`
	rows, err := r.db.QueryContext(ctx, query, models.CanonicalID(organisationID))
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []models.Membership{}
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.UserID, &m.IsAdmin, &m.CanEdit, &m.CanDelete, &m.CanCreate); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListForUser returns every organisation the user has an explicit membership in,
// paired with their flags. Top-level admins conceptually belong to all
// organisations, but that view is constructed by the caller from List, not here.
func (r *OrganisationRepository) ListForUser(ctx context.Context, userID string) ([]models.OrganisationWithMembership, error) {
	query := `
		SELECT o.organisation_id, o.organisation_name, o.logo, o.description, o.website,
			o.social_x, o.discord, o.created_at, o.updated_at,
			m.user_id, m.is_admin, m.can_edit, m.can_delete, m.can_create
		FROM organisations o
		JOIN organisation_members m ON m.organisation_id = o.organisation_id
		WHERE m.user_id = $1
		ORDER BY o.organisation_name
	`
	rows, err := r.db.QueryContext(ctx, query, models.CanonicalID(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list organisations for user: %w", err)
	}
	defer rows.Close()

	results := []models.OrganisationWithMembership{}
	for rows.Next() {
		var om models.OrganisationWithMembership
		if err := rows.Scan(
			&om.OrganisationID,
			&om.OrganisationName,
			&om.Metadata.Logo,
			&om.Metadata.Description,
			&om.Metadata.Website,
			&om.Metadata.X,
			&om.Metadata.Discord,
			&om.CreatedAt,
			&om.UpdatedAt,
			&om.Membership.UserID,
			&om.Membership.IsAdmin,
			&om.Membership.CanEdit,
			&om.Membership.CanDelete,
			&om.Membership.CanCreate,
		); err != nil {
			return nil, fmt.Errorf("failed to scan organisation membership: %w", err)
		}
		results = append(results, om)
	}
	return results, rows.Err()
}
