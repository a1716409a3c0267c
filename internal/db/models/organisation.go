// Package models - organisation.go defines the Organisation model and the Membership
// value type carrying a user's per-organisation capability flags.
//
// Membership normalization happens exactly once, at construction: an admin
// membership always materializes canEdit/canDelete/canCreate as true before it is
// persisted, so read paths can trust the stored flags verbatim instead of
// re-deriving admin implications on every check.
package models

import (
	"errors"
	"time"
)

// ErrDuplicateMember is returned when an incoming membership list contains the
// same userId more than once.
var ErrDuplicateMember = errors.New("duplicate userId in membership list")

// Membership is the per-organisation capability record for one user. It is a
// value owned by its Organisation, not an entity of its own.
type Membership struct {
	UserID    string `json:"userId"`
	IsAdmin   bool   `json:"isAdmin"`
	CanEdit   bool   `json:"canEdit"`
	CanDelete bool   `json:"canDelete"`
	CanCreate bool   `json:"canCreate"`
}

// NewMembership builds a normalized Membership: the user id is canonicalized and
// isAdmin implies all other capability flags.
func NewMembership(userID string, isAdmin, canEdit, canDelete, canCreate bool) Membership {
	return Membership{
		UserID:    CanonicalID(userID),
		IsAdmin:   isAdmin,
		CanEdit:   isAdmin || canEdit,
		CanDelete: isAdmin || canDelete,
		CanCreate: isAdmin || canCreate,
	}
}

// Normalize returns the membership with construction-time invariants applied.
// Used when a membership arrives pre-built from a request body.
func (m Membership) Normalize() Membership {
	return NewMembership(m.UserID, m.IsAdmin, m.CanEdit, m.CanDelete, m.CanCreate)
}

// HasAnyFlag reports whether the membership grants any capability at all. A
// member whose flags are all false is still denied the management surface.
func (m Membership) HasAnyFlag() bool {
	return m.IsAdmin || m.CanEdit || m.CanDelete || m.CanCreate
}

// ValidateMembers checks an incoming full replacement membership list for
// repeated user ids. The check runs against the incoming list as a whole, not a
// diff against stored state.
func ValidateMembers(members []Membership) error {
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		id := CanonicalID(m.UserID)
		if _, dup := seen[id]; dup {
			return ErrDuplicateMember
		}
		seen[id] = struct{}{}
	}
	return nil
}

// NormalizeMembers canonicalizes and normalizes every entry of a membership list,
// preserving order.
func NormalizeMembers(members []Membership) []Membership {
	out := make([]Membership, len(members))
	for i, m := range members {
		out[i] = m.Normalize()
	}
	return out
}

// OrganisationMetadata holds an organisation's public presentation fields
type OrganisationMetadata struct {
	Logo        string `json:"logo"`
	Description string `json:"description"`
	Website     string `json:"website"`
	X           string `json:"x"`
	Discord     string `json:"discord"`
}

// Organisation represents a tenant publishing articles
type Organisation struct {
	OrganisationID   string               `json:"organisationId"`
	OrganisationName string               `json:"organisationName"`
	Metadata         OrganisationMetadata `json:"metadata"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

// OrganisationWithMembership pairs an organisation with one user's membership in
// it, as returned by the membership index for a given user.
type OrganisationWithMembership struct {
	Organisation
	Membership Membership `json:"userPermissions"`
}
