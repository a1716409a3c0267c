// Package organisations implements the authenticated organisation management
// endpoints. Creation is reserved for top-level admins; the management view and
// edit require the organisation admin flag or the top-level bypass. Membership
// lists are always replaced wholesale, never patched.
package organisations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inevitable-science/article-registry/internal/db/models"
	"github.com/inevitable-science/article-registry/internal/db/repositories"
	"github.com/inevitable-science/article-registry/internal/idgen"
	"github.com/inevitable-science/article-registry/internal/middleware"
	"github.com/inevitable-science/article-registry/internal/notify"
	"github.com/inevitable-science/article-registry/internal/permissions"
	"github.com/inevitable-science/article-registry/internal/services"
)

// Handlers handles organisation management endpoints
type Handlers struct {
	orgs     *repositories.OrganisationRepository
	users    *repositories.UserRepository
	articles *repositories.ArticleRepository
	access   *services.AccessService
	notifier *notify.Notifier
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	orgs *repositories.OrganisationRepository,
	users *repositories.UserRepository,
	articles *repositories.ArticleRepository,
	access *services.AccessService,
	notifier *notify.Notifier,
) *Handlers {
	return &Handlers{
		orgs:     orgs,
		users:    users,
		articles: articles,
		access:   access,
		notifier: notifier,
	}
}

// MemberBody is one membership entry in a create/edit request
type MemberBody struct {
	UserID    string `json:"userId" binding:"required"`
	IsAdmin   bool   `json:"isAdmin"`
	CanEdit   bool   `json:"canEdit"`
	CanDelete bool   `json:"canDelete"`
	CanCreate bool   `json:"canCreate"`
}

// OrganisationRequest is the body of both create and edit: the full desired
// state of the organisation including its complete membership list.
type OrganisationRequest struct {
	OrganisationName string                      `json:"organisationName" binding:"required"`
	Metadata         models.OrganisationMetadata `json:"metadata"`
	Users            []MemberBody                `json:"users"`
}

// memberships validates and normalizes the request's membership list. A
// repeated userId anywhere in the incoming list rejects the whole request.
func (r *OrganisationRequest) memberships() ([]models.Membership, error) {
	members := make([]models.Membership, len(r.Users))
	for i, u := range r.Users {
		members[i] = models.Membership{
			UserID:    u.UserID,
			IsAdmin:   u.IsAdmin,
			CanEdit:   u.CanEdit,
			CanDelete: u.CanDelete,
			CanCreate: u.CanCreate,
		}
	}
	if err := models.ValidateMembers(members); err != nil {
		return nil, err
	}
	return models.NormalizeMembers(members), nil
}

// Fetch returns the organisation management view: the organisation itself,
// member profiles with their capability flags, the directory of users not yet
// in the organisation, and the organisation's live articles (hidden included,
// deleted filtered out).
// GET /organisation/:organisationId
func (h *Handlers) Fetch(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
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

	cap, err := h.access.ResolveCapability(c.Request.Context(), user, orgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve permissions"})
		return
	}
	if !cap.Allows(permissions.OpManageOrganisation) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	members, err := h.orgs.ListMembers(c.Request.Context(), orgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve members"})
		return
	}

	memberIDs := make([]string, len(members))
	byUser := make(map[string]models.Membership, len(members))
	for i, m := range members {
		memberIDs[i] = m.UserID
		byUser[m.UserID] = m
	}

	profiles, err := h.users.GetProfiles(c.Request.Context(), memberIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve member profiles"})
		return
	}

	orgUsers := make([]gin.H, 0, len(profiles))
	for _, p := range profiles {
		m := byUser[p.UserID]
		orgUsers = append(orgUsers, gin.H{
			"userId":         p.UserID,
			"username":       p.Username,
			"profilePicture": p.ProfilePicture,
			"isAdmin":        m.IsAdmin,
			"canEdit":        m.CanEdit,
			"canDelete":      m.CanDelete,
			"canCreate":      m.CanCreate,
		})
	}

	allProfiles, err := h.users.ListProfiles(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user directory"})
		return
	}
	nonOrgUsers := make([]models.Profile, 0, len(allProfiles))
	for _, p := range allProfiles {
		if _, inOrg := byUser[p.UserID]; !inOrg {
			nonOrgUsers = append(nonOrgUsers, p)
		}
	}

	orgArticles, err := h.articles.ListByOrganisation(c.Request.Context(), orgID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve articles"})
		return
	}
	summaries := make([]gin.H, 0, len(orgArticles))
	for _, a := range orgArticles {
		summaries = append(summaries, gin.H{
			"title":     a.Title,
			"articleId": a.ArticleID,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"organisationName": org.OrganisationName,
		"organisationId":   org.OrganisationID,
		"metadata":         org.Metadata,
		"orgUsers":         orgUsers,
		"nonOrgUsers":      nonOrgUsers,
		"articles":         summaries,
	})
}

// Create creates an organisation with its initial membership list. Top-level
// admins only.
// POST /organisation/create
func (h *Handlers) Create(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	if !user.IsTopLevelAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	var req OrganisationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	members, err := req.memberships()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Duplicate user in membership list"})
		return
	}

	org := &models.Organisation{
		OrganisationName: req.OrganisationName,
		Metadata:         req.Metadata,
	}

	id, err := idgen.Allocate(c.Request.Context(), idgen.OrganisationID,
		h.orgs.Exists,
		func(ctx context.Context, id string) error {
			org.OrganisationID = id
			return h.orgs.Create(ctx, org, members)
		},
	)
	if err != nil {
		// An id collision surviving every retry is not a realistic outcome;
		// exhaustion here means the unique organisation_name constraint fired
		// on each attempt.
		if errors.Is(err, idgen.ErrExhausted) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Organisation name already in use"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create organisation"})
		return
	}

	h.notifier.Action("Organisation Created",
		fmt.Sprintf("%s created organisation %q", user.Username, org.OrganisationName),
		notify.EmbedField{Name: "Organisation", Value: id, Inline: true},
	)

	c.JSON(http.StatusOK, gin.H{
		"message":        "Successfully Created Organisation",
		"organisationId": id,
	})
}

// Edit overwrites the organisation's name, metadata, and entire membership
// list. Requires the organisation admin flag or top-level admin.
// POST /organisation/edit/:organisationId
func (h *Handlers) Edit(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	orgID := models.CanonicalID(c.Param("organisationId"))

	var req OrganisationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

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
	if !cap.Allows(permissions.OpManageOrganisation) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	members, err := req.memberships()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Duplicate user in membership list"})
		return
	}

	org.OrganisationName = req.OrganisationName
	org.Metadata = req.Metadata

	if err := h.orgs.Update(c.Request.Context(), org, members); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Organisation not found"})
			return
		}
		if errors.Is(err, repositories.ErrUniqueViolation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Organisation name already in use"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save organisation"})
		return
	}

	h.notifier.Action("Organisation Edited",
		fmt.Sprintf("%s edited organisation %q", user.Username, org.OrganisationName),
		notify.EmbedField{Name: "Organisation", Value: orgID, Inline: true},
	)

	c.JSON(http.StatusOK, gin.H{"message": "Successfully Saved Changes"})
}
