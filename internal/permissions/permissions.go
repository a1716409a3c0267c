// Package permissions implements capability resolution for organisation-scoped
// actions.
//
// A caller's capability within an organisation is one of three shapes: no
// standing at all, an explicit membership carrying four boolean flags, or
// top-level admin, which bypasses membership entirely. Capabilities are
// resolved at request time from the stored user and membership rather than
// being embedded in the JWT, so a flag change takes effect on the user's next
// request without reissuing their token.
package permissions

import (
	"github.com/inevitable-science/article-registry/internal/db/models"
)

type kind int

const (
	kindNone kind = iota
	kindMember
	kindTopLevelAdmin
)

// Flags are the four per-organisation permission bits a membership carries.
type Flags struct {
	IsAdmin   bool `json:"isAdmin"`
	CanEdit   bool `json:"canEdit"`
	CanDelete bool `json:"canDelete"`
	CanCreate bool `json:"canCreate"`
}

// Capability is the resolved standing of a user within one organisation.
// The zero value is None.
type Capability struct {
	kind  kind
	flags Flags
}

// None is the capability of a user with no membership and no admin standing
func None() Capability {
	return Capability{kind: kindNone}
}

// Member wraps an explicit membership's stored flags
func Member(f Flags) Capability {
	return Capability{kind: kindMember, flags: f}
}

// TopLevelAdmin is the global bypass capability; it reports every flag true
func TopLevelAdmin() Capability {
	return Capability{kind: kindTopLevelAdmin}
}

// Resolve computes the caller's capability for one organisation. The top-level
// admin check comes first and never consults the membership row. A nil
// membership means no standing. Otherwise the stored flags apply verbatim;
// admin-implies-all-flags was already normalized when the membership was
// written.
func Resolve(user *models.User, membership *models.Membership) Capability {
	if user != nil && user.IsTopLevelAdmin {
		return TopLevelAdmin()
	}
	if membership == nil {
		return None()
	}
	return Member(Flags{
		IsAdmin:   membership.IsAdmin,
		CanEdit:   membership.CanEdit,
		CanDelete: membership.CanDelete,
		CanCreate: membership.CanCreate,
	})
}

// IsTopLevelAdmin reports whether this capability is the global bypass
func (c Capability) IsTopLevelAdmin() bool {
	return c.kind == kindTopLevelAdmin
}

// Flags returns the effective permission bits. Top-level admin reports all
// four true; None reports all four false.
func (c Capability) Flags() Flags {
	if c.kind == kindTopLevelAdmin {
		return Flags{IsAdmin: true, CanEdit: true, CanDelete: true, CanCreate: true}
	}
	return c.flags
}

// HasAny reports whether the capability grants anything at all. A member whose
// flags are all false has standing in name only and is treated like an
// outsider by the management read view.
func (c Capability) HasAny() bool {
	switch c.kind {
	case kindTopLevelAdmin:
		return true
	case kindMember:
		f := c.flags
		return f.IsAdmin || f.CanEdit || f.CanDelete || f.CanCreate
	default:
		return false
	}
}

// Operation is one of the gated article actions
type Operation int

const (
	// OpRead is the management read view (hidden articles included)
	OpRead Operation = iota
	// OpCreate creates an article inside the organisation
	OpCreate
	// OpEdit overwrites an article's editable fields
	OpEdit
	// OpDelete soft-deletes an article
	OpDelete
	// OpManageOrganisation edits the organisation itself and its member list
	OpManageOrganisation
)

func (op Operation) String() string {
	switch op {
	case OpRead:
		return "read"
	case OpCreate:
		return "create"
	case OpEdit:
		return "edit"
	case OpDelete:
		return "delete"
	case OpManageOrganisation:
		return "manage_organisation"
	default:
		return "unknown"
	}
}

// Allows reports whether the capability permits the operation. Denial is a
// normal outcome, not an error.
func (c Capability) Allows(op Operation) bool {
	f := c.Flags()
	switch op {
	case OpRead:
		return c.HasAny()
	case OpCreate:
		return f.IsAdmin || f.CanCreate
	case OpEdit:
		return f.IsAdmin || f.CanEdit
	case OpDelete:
		return f.IsAdmin || f.CanDelete
	case OpManageOrganisation:
		return f.IsAdmin
	default:
		return false
	}
}
