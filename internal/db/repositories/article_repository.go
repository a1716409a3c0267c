// article_repository.go implements ArticleRepository over sqlx, providing article
// CRUD, soft deletion, and the filtered listings behind the management and
// public read surfaces.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/inevitable-science/article-registry/internal/db/models"
)

// ArticleRepository handles database operations for articles
type ArticleRepository struct {
	db *sqlx.DB
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(db *sqlx.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// articleRow is the sqlx scan target; pq array types bridge TEXT[] columns.
type articleRow struct {
	ArticleID      string         `db:"article_id"`
	OrganisationID string         `db:"organisation_id"`
	Title          string         `db:"title"`
	Hidden         bool           `db:"hidden"`
	Deleted        bool           `db:"deleted"`
	ShowOnMainSite bool           `db:"show_on_main_site"`
	DateWritten    time.Time      `db:"date_written"`
	Author         string         `db:"author"`
	Editors        pq.StringArray `db:"editors"`
	Keywords       pq.StringArray `db:"keywords"`
	Tags           pq.StringArray `db:"tags"`
	Attachments    pq.StringArray `db:"attachments"`
	LandingImage   string         `db:"landing_image"`
	Body           string         `db:"body"`
}

func (row *articleRow) toModel() *models.Article {
	return &models.Article{
		ArticleID:      row.ArticleID,
		OrganisationID: row.OrganisationID,
		Title:          row.Title,
		DisplayRules: models.DisplayRules{
			Hidden:         row.Hidden,
			Deleted:        row.Deleted,
			ShowOnMainSite: row.ShowOnMainSite,
		},
		Metadata: models.ArticleMetadata{
			DateWritten: row.DateWritten,
			Author:      row.Author,
			Editors:     []string(row.Editors),
		},
		Content: models.ArticleContent{
			Keywords:     []string(row.Keywords),
			Tags:         []string(row.Tags),
			Attachments:  []string(row.Attachments),
			LandingImage: row.LandingImage,
			Body:         row.Body,
		},
	}
}

const articleColumns = `article_id, organisation_id, title, hidden, deleted,
	show_on_main_site, date_written, author, editors, keywords, tags, attachments,
	landing_image, body`

// GetByID retrieves an article by its canonical id, including soft-deleted
// records. Callers are responsible for treating deleted articles as not found;
// the flag has to be visible here so every access path can make that call.
func (r *ArticleRepository) GetByID(ctx context.Context, articleID string) (*models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE article_id = $1`
	var row articleRow
	if err := r.db.GetContext(ctx, &row, query, models.CanonicalID(articleID)); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return row.toModel(), nil
}

// Exists reports whether any article (including soft-deleted ones) holds the id.
// Soft-deleted rows keep their id forever, so the allocator must see them.
func (r *ArticleRepository) Exists(ctx context.Context, articleID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM articles WHERE article_id = $1)`
	if err := r.db.GetContext(ctx, &exists, query, models.CanonicalID(articleID)); err != nil {
		return false, fmt.Errorf("failed to check article existence: %w", err)
	}
	return exists, nil
}

// Create inserts a new article. A primary key collision maps to
// ErrUniqueViolation for the allocator to retry on.
func (r *ArticleRepository) Create(ctx context.Context, a *models.Article) error {
	query := `
		INSERT INTO articles (article_id, organisation_id, title, hidden, deleted,
			show_on_main_site, date_written, author, editors, keywords, tags,
			attachments, landing_image, body)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.ExecContext(ctx, query,
		models.CanonicalID(a.ArticleID),
		models.CanonicalID(a.OrganisationID),
		a.Title,
		a.DisplayRules.Hidden,
		a.DisplayRules.Deleted,
		a.DisplayRules.ShowOnMainSite,
		a.Metadata.DateWritten,
		models.CanonicalID(a.Metadata.Author),
		pq.Array(a.Metadata.Editors),
		pq.Array(a.Content.Keywords),
		pq.Array(a.Content.Tags),
		pq.Array(a.Content.Attachments),
		a.Content.LandingImage,
		a.Content.Body,
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped == ErrUniqueViolation {
			return mapped
		}
		return fmt.Errorf("failed to create article: %w", err)
	}
	return nil
}

// Update overwrites an article's editable fields. Authorship metadata
// (date_written, author) is immutable; editors is replaced with the list the
// access gate produced.
func (r *ArticleRepository) Update(ctx context.Context, a *models.Article) error {
	query := `
		UPDATE articles
		SET title = $2, hidden = $3, show_on_main_site = $4, editors = $5,
			keywords = $6, tags = $7, attachments = $8, landing_image = $9, body = $10
		WHERE article_id = $1 AND NOT deleted
	`
	res, err := r.db.ExecContext(ctx, query,
		models.CanonicalID(a.ArticleID),
		a.Title,
		a.DisplayRules.Hidden,
		a.DisplayRules.ShowOnMainSite,
		pq.Array(a.Metadata.Editors),
		pq.Array(a.Content.Keywords),
		pq.Array(a.Content.Tags),
		pq.Array(a.Content.Attachments),
		a.Content.LandingImage,
		a.Content.Body,
	)
	if err != nil {
		return fmt.Errorf("failed to update article: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDelete marks the article deleted. The record is never physically removed
// and there is no undelete path.
func (r *ArticleRepository) SoftDelete(ctx context.Context, articleID string) error {
	query := `UPDATE articles SET deleted = TRUE WHERE article_id = $1 AND NOT deleted`
	res, err := r.db.ExecContext(ctx, query, models.CanonicalID(articleID))
	if err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *ArticleRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Article, error) {
	var rows []articleRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	articles := make([]models.Article, len(rows))
	for i := range rows {
		articles[i] = *rows[i].toModel()
	}
	return articles, nil
}

// ListByOrganisation returns the organisation's live (non-deleted) articles,
// hidden ones included; this feeds the management surface.
func (r *ArticleRepository) ListByOrganisation(ctx context.Context, organisationID string) ([]models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles
		WHERE organisation_id = $1 AND NOT deleted
		ORDER BY date_written DESC`
	return r.list(ctx, query, models.CanonicalID(organisationID))
}

// ListAll returns every live article; the top-level-admin management view.
func (r *ArticleRepository) ListAll(ctx context.Context) ([]models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles
		WHERE NOT deleted
		ORDER BY date_written DESC`
	return r.list(ctx, query)
}

// ListByAuthor returns the live articles the user wrote
func (r *ArticleRepository) ListByAuthor(ctx context.Context, userID string) ([]models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles
		WHERE author = $1 AND NOT deleted
		ORDER BY date_written DESC`
	return r.list(ctx, query, models.CanonicalID(userID))
}

// ListByEditor returns the live articles the user appears in as an editor
func (r *ArticleRepository) ListByEditor(ctx context.Context, userID string) ([]models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles
		WHERE $1 = ANY(editors) AND NOT deleted
		ORDER BY date_written DESC`
	return r.list(ctx, query, models.CanonicalID(userID))
}

// ListPublic returns publicly listable articles (not deleted, not hidden),
// optionally scoped to one organisation by passing a non-empty id.
func (r *ArticleRepository) ListPublic(ctx context.Context, organisationID string) ([]models.Article, error) {
	if organisationID == "" {
		query := `SELECT ` + articleColumns + ` FROM articles
			WHERE NOT deleted AND NOT hidden
			ORDER BY date_written DESC`
		return r.list(ctx, query)
	}
	query := `SELECT ` + articleColumns + ` FROM articles
		WHERE organisation_id = $1 AND NOT deleted AND NOT hidden
		ORDER BY date_written DESC`
	return r.list(ctx, query, models.CanonicalID(organisationID))
}

// ListMainSite returns the main-site aggregate feed: publicly listable articles
// flagged show_on_main_site, newest first.
func (r *ArticleRepository) ListMainSite(ctx context.Context, limit int) ([]models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles
		WHERE NOT deleted AND NOT hidden AND show_on_main_site
		ORDER BY date_written DESC
		LIMIT $1`
	return r.list(ctx, query, limit)
}
