// Package models - article.go defines the Article model with its display rules,
// authorship metadata, and content payload.
package models

import "time"

// DisplayRules controls where an article is visible. Deleted is a terminal
// soft-delete flag: once set, the record survives in storage but no access path
// serves it again.
type DisplayRules struct {
	Hidden         bool `json:"hidden"`
	Deleted        bool `json:"deleted"`
	ShowOnMainSite bool `json:"showOnMainSite"`
}

// ArticleMetadata records authorship. Editors is an ordered, set-like list:
// a user appears at most once and never if they are the author.
type ArticleMetadata struct {
	DateWritten time.Time `json:"dateWritten"`
	Author      string    `json:"author"`
	Editors     []string  `json:"editors"`
}

// ArticleContent is the article payload
type ArticleContent struct {
	Keywords     []string `json:"keywords"`
	Tags         []string `json:"tags"`
	Attachments  []string `json:"attachments"`
	LandingImage string   `json:"landingImage"`
	Body         string   `json:"content"`
}

// Article represents a published or draft article belonging to an organisation
type Article struct {
	ArticleID      string          `json:"articleId"`
	OrganisationID string          `json:"organisationId"`
	Title          string          `json:"title"`
	DisplayRules   DisplayRules    `json:"displayRules"`
	Metadata       ArticleMetadata `json:"metadata"`
	Content        ArticleContent  `json:"content"`
}

// IsPubliclyListable reports whether the article appears in public listings:
// not deleted and not hidden. Capability is never consulted here.
func (a *Article) IsPubliclyListable() bool {
	return !a.DisplayRules.Deleted && !a.DisplayRules.Hidden
}

// IsMainSiteEligible reports whether the article additionally qualifies for the
// main-site aggregate feed.
func (a *Article) IsMainSiteEligible() bool {
	return a.IsPubliclyListable() && a.DisplayRules.ShowOnMainSite
}

// RecordEditor appends editorID to the editors list unless they are the author
// or already present. Returns true when the list changed. Order of existing
// editors is preserved; new editors go at the end.
func (a *Article) RecordEditor(editorID string) bool {
	id := CanonicalID(editorID)
	if id == CanonicalID(a.Metadata.Author) {
		return false
	}
	for _, e := range a.Metadata.Editors {
		if CanonicalID(e) == id {
			return false
		}
	}
	a.Metadata.Editors = append(a.Metadata.Editors, id)
	return true
}

// ArticleSummary is the listing projection used by management and public list
// endpoints.
type ArticleSummary struct {
	Title          string `json:"title"`
	ArticleID      string `json:"articleId"`
	OrganisationID string `json:"organisationId,omitempty"`
	LandingImage   string `json:"landingImage,omitempty"`
}

// Summary returns the listing projection of the article
func (a *Article) Summary() ArticleSummary {
	return ArticleSummary{
		Title:          a.Title,
		ArticleID:      a.ArticleID,
		OrganisationID: a.OrganisationID,
		LandingImage:   a.Content.LandingImage,
	}
}
