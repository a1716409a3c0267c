// Package idgen allocates the short hex identifiers used for users,
// organisations, and articles.
//
// Ids look like "0x" followed by lowercase hex, with a fixed length per kind.
// The space is small enough that collisions are a real possibility, so
// allocation is a bounded generate-and-check loop: draw a candidate, check it
// against the store, and hand it to the caller's commit. A unique violation at
// commit time means another request claimed the id between the check and the
// insert; that is a recoverable conflict and the loop draws again. Exhausting
// the attempt budget fails only the one operation in flight.
package idgen

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/inevitable-science/article-registry/internal/db/repositories"
	"github.com/inevitable-science/article-registry/internal/telemetry"
)

// ErrExhausted is returned when the attempt budget runs out without landing a
// free id
var ErrExhausted = errors.New("id allocation attempts exhausted")

// MaxAttempts bounds the generate-and-check loop
const MaxAttempts = 8

// Kind selects the id namespace and its hex length
type Kind struct {
	name     string
	hexChars int
}

var (
	// UserID: "0x" + 6 hex chars
	UserID = Kind{name: "user", hexChars: 6}
	// OrganisationID: "0x" + 8 hex chars
	OrganisationID = Kind{name: "organisation", hexChars: 8}
	// ArticleID: "0x" + 10 hex chars
	ArticleID = Kind{name: "article", hexChars: 10}
)

// Name returns the kind label used in metrics and logs
func (k Kind) Name() string { return k.name }

// Generate draws one candidate id from crypto/rand
func (k Kind) Generate() (string, error) {
	// Draw a whole number of bytes and truncate to the odd-length cases.
	buf := make([]byte, (k.hexChars+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate %s id: %w", k.name, err)
	}
	return "0x" + hex.EncodeToString(buf)[:k.hexChars], nil
}

// ExistsFunc reports whether a candidate id is already taken
type ExistsFunc func(ctx context.Context, id string) (bool, error)

// CommitFunc attempts to claim the candidate id. Returning
// repositories.ErrUniqueViolation signals a lost race and triggers another
// attempt; any other error is fatal for the operation.
type CommitFunc func(ctx context.Context, id string) error

// Allocate runs the bounded generate-and-check loop for one new record.
func Allocate(ctx context.Context, kind Kind, exists ExistsFunc, commit CommitFunc) (string, error) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if attempt > 0 {
			telemetry.IDAllocationRetriesTotal.WithLabelValues(kind.name).Inc()
		}

		id, err := kind.Generate()
		if err != nil {
			return "", err
		}

		taken, err := exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to check %s id availability: %w", kind.name, err)
		}
		if taken {
			continue
		}

		err = commit(ctx, id)
		if err == nil {
			return id, nil
		}
		if errors.Is(err, repositories.ErrUniqueViolation) {
			// Lost the race between the check and the insert. Draw again.
			continue
		}
		return "", err
	}
	return "", fmt.Errorf("%w: kind %s", ErrExhausted, kind.name)
}
