// Package articles implements the authenticated article management endpoints:
// fetch, create, edit, and soft delete. Every operation resolves the caller's
// capability within the article's organisation at request time and runs it
// through the access gate before touching the record.
package articles

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/inevitable-science/article-registry/internal/db/models"
	"github.com/inevitable-science/article-registry/internal/db/repositories"
	"github.com/inevitable-science/article-registry/internal/idgen"
	"github.com/inevitable-science/article-registry/internal/middleware"
	"github.com/inevitable-science/article-registry/internal/notify"
	"github.com/inevitable-science/article-registry/internal/permissions"
	"github.com/inevitable-science/article-registry/internal/services"
)

// Handlers handles article management endpoints
type Handlers struct {
	articles *repositories.ArticleRepository
	orgs     *repositories.OrganisationRepository
	users    *repositories.UserRepository
	access   *services.AccessService
	notifier *notify.Notifier
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	articles *repositories.ArticleRepository,
	orgs *repositories.OrganisationRepository,
	users *repositories.UserRepository,
	access *services.AccessService,
	notifier *notify.Notifier,
) *Handlers {
	return &Handlers{
		articles: articles,
		orgs:     orgs,
		users:    users,
		access:   access,
		notifier: notifier,
	}
}

// DisplayRulesBody is the caller-settable subset of an article's display rules.
// The deleted flag is never accepted from a request body.
type DisplayRulesBody struct {
	Hidden         bool `json:"hidden"`
	ShowOnMainSite bool `json:"showOnMainSite"`
}

// ContentBody is the article payload as it appears in create/edit requests
type ContentBody struct {
	Keywords     []string `json:"keywords"`
	Tags         []string `json:"tags"`
	Attachments  []string `json:"attachments"`
	LandingImage string   `json:"landingImage"`
	Body         string   `json:"content"`
}

func (b ContentBody) toModel() models.ArticleContent {
	return models.ArticleContent{
		Keywords:     b.Keywords,
		Tags:         b.Tags,
		Attachments:  b.Attachments,
		LandingImage: b.LandingImage,
		Body:         b.Body,
	}
}

// CreateArticleRequest is the body of POST /article/create
type CreateArticleRequest struct {
	Title          string           `json:"title" binding:"required"`
	OrganisationID string           `json:"organisationId" binding:"required"`
	DisplayRules   DisplayRulesBody `json:"displayRules"`
	Content        ContentBody      `json:"content"`
}

// EditArticleRequest is the body of POST /article/edit/:articleId
type EditArticleRequest struct {
	Title        string           `json:"title" binding:"required"`
	DisplayRules DisplayRulesBody `json:"displayRules"`
	Content      ContentBody      `json:"content"`
}

// DeleteArticleRequest is the body of POST /article/delete
type DeleteArticleRequest struct {
	ArticleID string `json:"articleId" binding:"required"`
}

// gate resolves the caller's capability for the article's organisation and
// runs the access check. Soft-deleted and absent articles are both reported as
// not found, before any capability is consulted.
func (h *Handlers) gate(c *gin.Context, article *models.Article, op permissions.Operation) bool {
	user, _ := middleware.CurrentUser(c)

	var cap permissions.Capability
	if article != nil {
		resolved, err := h.access.ResolveCapability(c.Request.Context(), user, article.OrganisationID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve permissions"})
			return false
		}
		cap = resolved
	}

	switch permissions.CheckArticle(cap, article, op) {
	case permissions.NotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "Article not found"})
		return false
	case permissions.Forbidden:
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return false
	}
	return true
}

// Fetch retrieves a single article for the management surface, enriched with
// the owning organisation, the caller's capability flags in it, and the
// author/editor profiles.
// GET /article/fetch/:articleId
func (h *Handlers) Fetch(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	articleID := models.CanonicalID(c.Param("articleId"))

	article, err := h.articles.GetByID(c.Request.Context(), articleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve article"})
		return
	}
	if !h.gate(c, article, permissions.OpRead) {
		return
	}

	org, err := h.orgs.GetByID(c.Request.Context(), article.OrganisationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve organisation"})
		return
	}

	cap, err := h.access.ResolveCapability(c.Request.Context(), user, article.OrganisationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve permissions"})
		return
	}

	authorProfiles, err := h.users.GetProfiles(c.Request.Context(), []string{article.Metadata.Author})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve author"})
		return
	}
	var author models.Profile
	if len(authorProfiles) > 0 {
		author = authorProfiles[0]
	}

	editors, err := h.users.GetProfiles(c.Request.Context(), article.Metadata.Editors)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve editors"})
		return
	}

	organisation := gin.H{}
	if org != nil {
		organisation = gin.H{
			"organisationName": org.OrganisationName,
			"organisationId":   org.OrganisationID,
		}
	}
	organisation["userPerms"] = cap.Flags()

	c.JSON(http.StatusOK, gin.H{
		"articleId":    article.ArticleID,
		"title":        article.Title,
		"displayRules": article.DisplayRules,
		"content":      article.Content,
		"organisation": organisation,
		"metadata": gin.H{
			"dateWritten": article.Metadata.DateWritten,
			"author":      author,
			"editors":     editors,
		},
	})
}

// Create creates a new article owned by the target organisation with the
// caller as author.
// POST /article/create
func (h *Handlers) Create(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req CreateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	orgID := models.CanonicalID(req.OrganisationID)
	org, err := h.orgs.GetByID(c.Request.Context(), orgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve organisation"})
		return
	}
	if org == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Organisation not found"})
		return
	}

	cap, err := h.access.ResolveCapability(c.Request.Context(), user, orgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve permissions"})
		return
	}
	if !cap.Allows(permissions.OpCreate) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	article := &models.Article{
		OrganisationID: orgID,
		Title:          req.Title,
		DisplayRules: models.DisplayRules{
			Hidden:         req.DisplayRules.Hidden,
			ShowOnMainSite: req.DisplayRules.ShowOnMainSite,
		},
		Metadata: models.ArticleMetadata{
			DateWritten: time.Now().UTC(),
			Author:      user.UserID,
			Editors:     []string{},
		},
		Content: req.Content.toModel(),
	}

	id, err := idgen.Allocate(c.Request.Context(), idgen.ArticleID,
		h.articles.Exists,
		func(ctx context.Context, id string) error {
			article.ArticleID = id
			return h.articles.Create(ctx, article)
		},
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create article"})
		return
	}

	h.notifier.Action("Article Created",
		fmt.Sprintf("%s created %q in %s", user.Username, article.Title, org.OrganisationName),
		notify.EmbedField{Name: "Article", Value: id, Inline: true},
		notify.EmbedField{Name: "Organisation", Value: org.OrganisationID, Inline: true},
	)

	c.JSON(http.StatusOK, gin.H{
		"message":   "Successfully Created Article",
		"articleId": id,
	})
}

// Edit overwrites an article's mutable fields and records the caller in the
// editor history when they are not the author.
// POST /article/edit/:articleId
func (h *Handlers) Edit(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	articleID := models.CanonicalID(c.Param("articleId"))

	var req EditArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	article, err := h.articles.GetByID(c.Request.Context(), articleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve article"})
		return
	}
	if !h.gate(c, article, permissions.OpEdit) {
		return
	}

	article.Title = req.Title
	article.DisplayRules.Hidden = req.DisplayRules.Hidden
	article.DisplayRules.ShowOnMainSite = req.DisplayRules.ShowOnMainSite
	article.Content = req.Content.toModel()
	article.RecordEditor(user.UserID)

	if err := h.articles.Update(c.Request.Context(), article); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save article"})
		return
	}

	h.notifier.Action("Article Edited",
		fmt.Sprintf("%s edited %q", user.Username, article.Title),
		notify.EmbedField{Name: "Article", Value: article.ArticleID, Inline: true},
	)

	c.JSON(http.StatusOK, gin.H{"message": "Successfully Saved Changes"})
}

// Delete soft-deletes an article. The record stays in storage but is reported
// as absent on every path from here on; there is no undelete.
// POST /article/delete
func (h *Handlers) Delete(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req DeleteArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	articleID := models.CanonicalID(req.ArticleID)

	article, err := h.articles.GetByID(c.Request.Context(), articleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve article"})
		return
	}
	if !h.gate(c, article, permissions.OpDelete) {
		return
	}

	if err := h.articles.SoftDelete(c.Request.Context(), articleID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete article"})
		return
	}

	h.notifier.Action("Article Deleted",
		fmt.Sprintf("%s deleted %q", user.Username, article.Title),
		notify.EmbedField{Name: "Article", Value: articleID, Inline: true},
	)

	c.JSON(http.StatusOK, gin.H{"message": "Article Successfully Deleted"})
}
