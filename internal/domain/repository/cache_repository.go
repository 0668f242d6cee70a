package repository

import (
	"context"
	"time"

	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
)

// CacheRepository memoizes recent research-pass outputs keyed by the
// normalized query+depth+pass fingerprint. Best-effort: a miss (including a
// lazily expired entry) is never an error, and callers fall back to a live
// invocation.
type CacheRepository interface {
	Get(ctx context.Context, key string) (*entity.ResearchResult, bool)
	Set(ctx context.Context, key string, value *entity.ResearchResult, ttl time.Duration)
}
