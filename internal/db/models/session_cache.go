package models

import (
	"time"

	"github.com/uptrace/bun"
)

// SessionCacheEntry is one key of a local session cache. Namespace scopes
// the keys so several clients can share a database.
type SessionCacheEntry struct {
	bun.BaseModel `bun:"table:session_cache,alias:sc"`

	Namespace string    `bun:"namespace,pk"`
	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
