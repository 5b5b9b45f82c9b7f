// Package ledger remembers which postings have already been delivered, so
// notifications go out at most once across runs.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/pegavagas/harvester/internal/hash/sha256"
)

// Ledger is the delivery memory. Implementations must persist across runs.
type Ledger interface {
	Seen(ctx context.Context, identity string) (bool, error)
	MarkSeen(ctx context.Context, identity string) error
	Close() error
}

// Identity derives the stable posting identity: the SHA-256 digest of the
// lower-cased platform, company, and title joined with colons. Two platforms
// posting the same role yield distinct identities.
func Identity(platform, company, title string) (string, error) {
	raw := strings.ToLower(platform) + ":" + strings.ToLower(company) + ":" + strings.ToLower(title)
	digest, err := sha256.New().Hash([]byte(raw))
	if err != nil {
		return "", fmt.Errorf("hash posting identity: %w", err)
	}
	return digest, nil
}
