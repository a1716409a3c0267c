package permissions

import (
	"github.com/inevitable-science/article-registry/internal/db/models"
)

// Decision is the outcome of an access check against a concrete article.
type Decision int

const (
	// Allowed means the operation may proceed
	Allowed Decision = iota
	// NotFound means the article must be reported as absent, hiding whether
	// it ever existed
	NotFound
	// Forbidden means the article exists for this caller but the capability
	// does not cover the operation
	Forbidden
)

// CheckArticle gates a management operation against an article. The deleted
// check runs before the capability check: a soft-deleted article is NotFound
// for every caller, top-level admins included, so deletion is terminal and
// unprobeable. A nil article is NotFound.
func CheckArticle(cap Capability, article *models.Article, op Operation) Decision {
	if article == nil || article.DisplayRules.Deleted {
		return NotFound
	}
	if !cap.Allows(op) {
		return Forbidden
	}
	return Allowed
}

// CheckPublicArticle gates the unauthenticated single-article fetch. Hidden
// and deleted articles are both absent on the public path; membership is never
// consulted here.
func CheckPublicArticle(article *models.Article) Decision {
	if article == nil || !article.IsPubliclyListable() {
		return NotFound
	}
	return Allowed
}
