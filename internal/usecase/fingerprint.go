package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
)

// NormalizeQuery canonicalizes a query for cache keying: lower-cased with
// runs of whitespace collapsed.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// Fingerprint builds the cache key for one research pass.
func Fingerprint(query string, depth entity.Depth, passIndex int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", NormalizeQuery(query), depth, passIndex)))
	return hex.EncodeToString(sum[:])
}
