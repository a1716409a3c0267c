// Package public implements the unauthenticated read surface. No identity or
// membership is ever consulted here: visibility is decided purely by each
// article's display rules, and hidden or deleted records are absent, not
// forbidden.
package public

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/inevitable-science/article-registry/internal/db/models"
	"github.com/inevitable-science/article-registry/internal/db/repositories"
	"github.com/inevitable-science/article-registry/internal/permissions"
)

// defaultLatestLimit caps the main-site aggregate feed
const defaultLatestLimit = 20

// Handlers handles the public read endpoints
type Handlers struct {
	articles *repositories.ArticleRepository
	orgs     *repositories.OrganisationRepository
	users    *repositories.UserRepository
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	articles *repositories.ArticleRepository,
	orgs *repositories.OrganisationRepository,
	users *repositories.UserRepository,
) *Handlers {
	return &Handlers{articles: articles, orgs: orgs, users: users}
}

// ListArticles returns every publicly listable article, newest first
// GET /articles
func (h *Handlers) ListArticles(c *gin.Context) {
	articles, err := h.articles.ListPublic(c.Request.Context(), "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve articles"})
		return
	}

	summaries := make([]models.ArticleSummary, 0, len(articles))
	for _, a := range articles {
		summaries = append(summaries, a.Summary())
	}
	c.JSON(http.StatusOK, gin.H{"articles": summaries})
}

// Latest returns the main-site aggregate feed: publicly listable articles
// flagged for the main site, newest first.
// GET /articles/latest
func (h *Handlers) Latest(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLatestLimit)))
	if limit < 1 || limit > 100 {
		limit = defaultLatestLimit
	}

	articles, err := h.articles.ListMainSite(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve articles"})
		return
	}

	summaries := make([]models.ArticleSummary, 0, len(articles))
	for _, a := range articles {
		summaries = append(summaries, a.Summary())
	}
	c.JSON(http.StatusOK, gin.H{"articles": summaries})
}

// FetchArticle returns one public article with its author and organisation
// presentation. Hidden and deleted articles answer 404.
// GET /article/id/:articleId
func (h *Handlers) FetchArticle(c *gin.Context) {
	articleID := models.CanonicalID(c.Param("articleId"))

	article, err := h.articles.GetByID(c.Request.Context(), articleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve article"})
		return
	}
	if permissions.CheckPublicArticle(article) != permissions.Allowed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return
	}

	// Author and organisation are presentation only; either may be absent
	// without making the article itself unavailable.
	author := gin.H{"username": nil, "profilePicture": nil}
	if profiles, err := h.users.GetProfiles(c.Request.Context(), []string{article.Metadata.Author}); err == nil && len(profiles) > 0 {
		author = gin.H{
			"username":       profiles[0].Username,
			"profilePicture": profiles[0].ProfilePicture,
		}
	}

	organisation := gin.H{"name": nil, "organisationId": nil, "logo": nil}
	if org, err := h.orgs.GetByID(c.Request.Context(), article.OrganisationID); err == nil && org != nil {
		organisation = gin.H{
			"name":           org.OrganisationName,
			"organisationId": org.OrganisationID,
			"logo":           org.Metadata.Logo,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"title":        article.Title,
		"content":      article.Content,
		"author":       author,
		"organisation": organisation,
	})
}

// FetchOrganisation returns an organisation's public page with its listable
// articles.
// GET /organisation/id/:organisationId
func (h *Handlers) FetchOrganisation(c *gin.Context) {
	orgID := models.CanonicalID(c.Param("organisationId"))

	org, err := h.orgs.GetByID(c.Request.Context(), orgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve organisation"})
		return
	}
	if org == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Organisation not found"})
		return
	}

	articles, err := h.articles.ListPublic(c.Request.Context(), orgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve articles"})
		return
	}

	summaries := make([]gin.H, 0, len(articles))
	for _, a := range articles {
		summaries = append(summaries, gin.H{
			"title":        a.Title,
			"articleId":    a.ArticleID,
			"landingImage": a.Content.LandingImage,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"organisationName": org.OrganisationName,
		"organisationId":   org.OrganisationID,
		"metadata":         org.Metadata,
		"articles":         summaries,
	})
}
