package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalID(t *testing.T) {
	assert.Equal(t, "0xabc123", CanonicalID("0xABC123"))
	assert.Equal(t, "0xabc123", CanonicalID("  0xabc123 "))
}

func TestNewMembership_AdminImpliesAllFlags(t *testing.T) {
	m := NewMembership("0xAAAA11", true, false, false, false)
	assert.Equal(t, "0xaaaa11", m.UserID)
	assert.True(t, m.IsAdmin)
	assert.True(t, m.CanEdit)
	assert.True(t, m.CanDelete)
	assert.True(t, m.CanCreate)
}

func TestNewMembership_NonAdminKeepsFlagsVerbatim(t *testing.T) {
	m := NewMembership("0xaaaa11", false, true, false, false)
	assert.False(t, m.IsAdmin)
	assert.True(t, m.CanEdit)
	assert.False(t, m.CanDelete)
	assert.False(t, m.CanCreate)
}

func TestHasAnyFlag(t *testing.T) {
	assert.False(t, Membership{UserID: "0xaaaa11"}.HasAnyFlag())
	assert.True(t, Membership{UserID: "0xaaaa11", CanEdit: true}.HasAnyFlag())
	assert.True(t, Membership{UserID: "0xaaaa11", IsAdmin: true}.HasAnyFlag())
}

func TestValidateMembers_Duplicate(t *testing.T) {
	members := []Membership{
		{UserID: "0xaaaa11"},
		{UserID: "0xbbbb22"},
		{UserID: "0xAAAA11"}, // same id, different case
	}
	assert.ErrorIs(t, ValidateMembers(members), ErrDuplicateMember)
}

func TestValidateMembers_OK(t *testing.T) {
	members := []Membership{
		{UserID: "0xaaaa11"},
		{UserID: "0xbbbb22"},
	}
	assert.NoError(t, ValidateMembers(members))
}

func TestNormalizeMembers_PreservesOrder(t *testing.T) {
	in := []Membership{
		{UserID: "0xCCCC33", IsAdmin: true},
		{UserID: "0xaaaa11", CanEdit: true},
	}
	out := NormalizeMembers(in)
	assert.Equal(t, "0xcccc33", out[0].UserID)
	assert.True(t, out[0].CanDelete) // admin implied
	assert.Equal(t, "0xaaaa11", out[1].UserID)
	assert.False(t, out[1].CanDelete)
}

func TestRecordEditor_AuthorNeverAppended(t *testing.T) {
	a := Article{Metadata: ArticleMetadata{Author: "0xaaaa11"}}
	assert.False(t, a.RecordEditor("0xAAAA11"))
	assert.Empty(t, a.Metadata.Editors)
}

func TestRecordEditor_AppendsOnce(t *testing.T) {
	a := Article{Metadata: ArticleMetadata{Author: "0xaaaa11"}}
	assert.True(t, a.RecordEditor("0xbbbb22"))
	assert.False(t, a.RecordEditor("0xbbbb22"))
	assert.Equal(t, []string{"0xbbbb22"}, a.Metadata.Editors)
}

func TestRecordEditor_PreservesOrder(t *testing.T) {
	a := Article{Metadata: ArticleMetadata{
		Author:  "0xaaaa11",
		Editors: []string{"0xbbbb22", "0xcccc33"},
	}}
	assert.True(t, a.RecordEditor("0xdddd44"))
	assert.Equal(t, []string{"0xbbbb22", "0xcccc33", "0xdddd44"}, a.Metadata.Editors)
}

func TestVisibilityPredicates(t *testing.T) {
	visible := Article{DisplayRules: DisplayRules{ShowOnMainSite: true}}
	hidden := Article{DisplayRules: DisplayRules{Hidden: true, ShowOnMainSite: true}}
	deleted := Article{DisplayRules: DisplayRules{Deleted: true, ShowOnMainSite: true}}
	offMain := Article{DisplayRules: DisplayRules{}}

	assert.True(t, visible.IsPubliclyListable())
	assert.True(t, visible.IsMainSiteEligible())

	assert.False(t, hidden.IsPubliclyListable())
	assert.False(t, hidden.IsMainSiteEligible())

	assert.False(t, deleted.IsPubliclyListable())
	assert.False(t, deleted.IsMainSiteEligible())

	assert.True(t, offMain.IsPubliclyListable())
	assert.False(t, offMain.IsMainSiteEligible())
}

func TestUserProfileProjection(t *testing.T) {
	u := User{
		UserID:         "0xaaaa11",
		PasswordHash:   "hash",
		Username:       "User0xaaaa11",
		ProfilePicture: "https://cdn.example.org/p.png",
	}
	p := u.Profile()
	assert.Equal(t, "0xaaaa11", p.UserID)
	assert.Equal(t, "User0xaaaa11", p.Username)
	assert.Equal(t, "https://cdn.example.org/p.png", p.ProfilePicture)
}
