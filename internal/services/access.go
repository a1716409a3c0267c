// Package services holds request-time domain services shared by the handler
// packages.
package services

import (
	"context"

	"github.com/inevitable-science/article-registry/internal/db/models"
	"github.com/inevitable-science/article-registry/internal/db/repositories"
	"github.com/inevitable-science/article-registry/internal/permissions"
)

// AccessService resolves a caller's capability within an organisation. It is
// the only place membership rows are turned into capabilities; handlers never
// read organisation_members directly.
type AccessService struct {
	orgs *repositories.OrganisationRepository
}

// NewAccessService creates a new AccessService
func NewAccessService(orgs *repositories.OrganisationRepository) *AccessService {
	return &AccessService{orgs: orgs}
}

// ResolveCapability computes the capability of user within the given
// organisation. Top-level admins skip the membership lookup entirely; for
// everyone else the stored membership row (or its absence) decides.
// Capability is resolved fresh on every call, never cached across requests.
func (s *AccessService) ResolveCapability(ctx context.Context, user *models.User, organisationID string) (permissions.Capability, error) {
	if user == nil {
		return permissions.None(), nil
	}
	if user.IsTopLevelAdmin {
		return permissions.TopLevelAdmin(), nil
	}

	member, err := s.orgs.GetMember(ctx, organisationID, user.UserID)
	if err != nil {
		return permissions.None(), err
	}
	return permissions.Resolve(user, member), nil
}
