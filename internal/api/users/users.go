// Package users implements login and the authenticated user endpoints: the
// caller's dashboard view, the admin user directory, account creation, and
// self-service profile editing.
package users

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/inevitable-science/article-registry/internal/auth"
	"github.com/inevitable-science/article-registry/internal/db/models"
	"github.com/inevitable-science/article-registry/internal/db/repositories"
	"github.com/inevitable-science/article-registry/internal/idgen"
	"github.com/inevitable-science/article-registry/internal/middleware"
	"github.com/inevitable-science/article-registry/internal/notify"
	"github.com/inevitable-science/article-registry/internal/services"
)

// Handlers handles user and session endpoints
type Handlers struct {
	users             *repositories.UserRepository
	orgs              *repositories.OrganisationRepository
	articles          *repositories.ArticleRepository
	access            *services.AccessService
	tokens            *auth.TokenService
	mfa               auth.MFAVerifier
	notifier          *notify.Notifier
	bootstrapPassword string
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	users *repositories.UserRepository,
	orgs *repositories.OrganisationRepository,
	articles *repositories.ArticleRepository,
	access *services.AccessService,
	tokens *auth.TokenService,
	mfa auth.MFAVerifier,
	notifier *notify.Notifier,
	bootstrapPassword string,
) *Handlers {
	return &Handlers{
		users:             users,
		orgs:              orgs,
		articles:          articles,
		access:            access,
		tokens:            tokens,
		mfa:               mfa,
		notifier:          notifier,
		bootstrapPassword: bootstrapPassword,
	}
}

// LoginRequest is the body of POST /user/login
type LoginRequest struct {
	UserID   string `json:"userId" binding:"required"`
	Password string `json:"password" binding:"required"`
	MFACode  string `json:"mfaCode" binding:"required,len=6,numeric"`
}

// Login verifies the password and MFA code and issues a session token. Every
// failure mode after body validation answers 401 without distinguishing an
// unknown user from a wrong credential.
// POST /user/login
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	if !h.mfa.VerifyCode(user.MFAKey, req.MFACode) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	token, err := h.tokens.Issue(user.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	h.notifier.Action("User Logged In",
		fmt.Sprintf("%s logged in", user.Username),
		notify.EmbedField{Name: "User", Value: user.UserID, Inline: true},
	)

	c.JSON(http.StatusOK, gin.H{"key": token})
}

// articleSummaries projects articles into listing entries, dropping
// soft-deleted records.
func articleSummaries(articles []models.Article) []models.ArticleSummary {
	out := []models.ArticleSummary{}
	for _, a := range articles {
		if a.DisplayRules.Deleted {
			continue
		}
		out = append(out, models.ArticleSummary{
			Title:          a.Title,
			ArticleID:      a.ArticleID,
			OrganisationID: a.OrganisationID,
		})
	}
	return out
}

// Fetch returns the caller's dashboard view: their account, the organisations
// they belong to with their capability flags, and their written, edited, and
// editable article lists. Top-level admins see every organisation with full
// flags and every live article as editable.
// POST /user/fetch
func (h *Handlers) Fetch(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	var organisations []models.OrganisationWithMembership
	var editable []models.ArticleSummary

	if user.IsTopLevelAdmin {
		all, err := h.orgs.List(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve organisations"})
			return
		}
		organisations = make([]models.OrganisationWithMembership, len(all))
		for i, org := range all {
			organisations[i] = models.OrganisationWithMembership{
				Organisation: org,
				Membership: models.Membership{
					UserID:    user.UserID,
					IsAdmin:   true,
					CanEdit:   true,
					CanDelete: true,
					CanCreate: true,
				},
			}
		}

		allArticles, err := h.articles.ListAll(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve articles"})
			return
		}
		editable = articleSummaries(allArticles)
	} else {
		memberOf, err := h.orgs.ListForUser(ctx, user.UserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve organisations"})
			return
		}
		organisations = memberOf

		editable = []models.ArticleSummary{}
		for _, org := range organisations {
			if !org.Membership.IsAdmin && !org.Membership.CanEdit {
				continue
			}
			orgArticles, err := h.articles.ListByOrganisation(ctx, org.OrganisationID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve articles"})
				return
			}
			editable = append(editable, articleSummaries(orgArticles)...)
		}
	}

	written, err := h.articles.ListByAuthor(ctx, user.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve articles"})
		return
	}
	edited, err := h.articles.ListByEditor(ctx, user.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve articles"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":             user,
		"organisations":    organisations,
		"writtenArticles":  articleSummaries(written),
		"editedArticles":   articleSummaries(edited),
		"editableArticles": editable,
	})
}

// All returns the user directory. Top-level admins only.
// GET /user/all
func (h *Handlers) All(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	if !user.IsTopLevelAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	profiles, err := h.users.ListProfiles(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": profiles})
}

// OrgAssignment is one requested organisation membership on user creation
type OrgAssignment struct {
	OrganisationID string `json:"organisationId" binding:"required"`
	IsAdmin        bool   `json:"isAdmin"`
	CanEdit        bool   `json:"canEdit"`
	CanDelete      bool   `json:"canDelete"`
	CanCreate      bool   `json:"canCreate"`
}

// NewUserBody describes the account to create
type NewUserBody struct {
	Username        string          `json:"username"`
	Password        string          `json:"password" binding:"required"`
	MFAKey          string          `json:"mfaKey"`
	IsTopLevelAdmin bool            `json:"isTopLevelAdmin"`
	Organisations   []OrgAssignment `json:"organisations"`
}

// CreateUserRequest is the body of POST /user/create
type CreateUserRequest struct {
	OverwritePassword string      `json:"overwritePassword"`
	User              NewUserBody `json:"user" binding:"required"`
}

// authorizeCreate decides whether the caller may create an account. The
// configured bootstrap password authorizes the call without any session, so
// the first top-level admin can be seeded on an empty database; otherwise a
// valid token belonging to a top-level admin is required.
func (h *Handlers) authorizeCreate(c *gin.Context, req *CreateUserRequest) bool {
	if auth.CheckBootstrapPassword(h.bootstrapPassword, req.OverwritePassword) {
		return true
	}

	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if header == "" || !ok || token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return false
	}
	callerID, err := h.tokens.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return false
	}
	caller, err := h.users.GetByID(c.Request.Context(), callerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve user"})
		return false
	}
	if caller == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return false
	}
	if !caller.IsTopLevelAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return false
	}
	return true
}

// Create creates a new account and assigns its requested organisation
// memberships. Assignments referencing unknown organisations and entries whose
// flags are all false are skipped; repeated entries for the same organisation
// collapse to the first occurrence.
// POST /user/create
func (h *Handlers) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if !h.authorizeCreate(c, &req) {
		return
	}

	hash, err := auth.HashPassword(req.User.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	newUser := &models.User{
		PasswordHash:    hash,
		MFAKey:          strings.TrimSpace(req.User.MFAKey),
		IsTopLevelAdmin: req.User.IsTopLevelAdmin,
		Username:        req.User.Username,
		Attachments:     []string{},
	}

	defaultUsername := newUser.Username == ""
	id, err := idgen.Allocate(c.Request.Context(), idgen.UserID,
		h.users.Exists,
		func(ctx context.Context, id string) error {
			newUser.UserID = id
			if defaultUsername {
				newUser.Username = "User" + id
			}
			return h.users.Create(ctx, newUser)
		},
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	h.assignOrganisations(c.Request.Context(), id, req.User.Organisations)

	c.JSON(http.StatusOK, gin.H{
		"message": "Successfully created new user",
		"userId":  id,
	})
}

// assignOrganisations applies the requested memberships to the freshly created
// user. Failures here never fail the creation: the account already exists, and
// a partially applied assignment list is repairable through organisation edit.
func (h *Handlers) assignOrganisations(ctx context.Context, userID string, assignments []OrgAssignment) {
	seen := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		orgID := models.CanonicalID(a.OrganisationID)
		if _, dup := seen[orgID]; dup {
			continue
		}
		seen[orgID] = struct{}{}

		m := models.NewMembership(userID, a.IsAdmin, a.CanEdit, a.CanDelete, a.CanCreate)
		if !m.HasAnyFlag() {
			continue
		}

		exists, err := h.orgs.Exists(ctx, orgID)
		if err != nil || !exists {
			continue
		}
		// Best effort; a conflicting concurrent edit just drops this entry.
		_ = h.orgs.AddMember(ctx, orgID, m)
	}
}

// EditUserRequest is the body of POST /user/edit. Empty fields keep their
// stored values.
type EditUserRequest struct {
	Username       string          `json:"username"`
	ProfilePicture string          `json:"profilePicture"`
	Socials        *models.Socials `json:"socials"`
}

// Edit merges the request into the caller's own profile
// POST /user/edit
func (h *Handlers) Edit(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req EditUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if req.Username != "" && len(req.Username) < 5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username must be at least 5 characters"})
		return
	}

	username := user.Username
	if req.Username != "" {
		username = req.Username
	}
	profilePicture := user.ProfilePicture
	if req.ProfilePicture != "" {
		profilePicture = req.ProfilePicture
	}
	socials := user.Socials
	if req.Socials != nil {
		socials = *req.Socials
	}

	if err := h.users.UpdateProfile(c.Request.Context(), user.UserID, username, profilePicture, socials); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User Changes Saved"})
}
