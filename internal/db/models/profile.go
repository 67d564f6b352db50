package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Profile is the remote profile document for an identity.
// IdentityID is the provider-assigned user id (OIDC subject).
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:p"`

	IdentityID  string    `bun:"identity_id,pk"`
	Role        string    `bun:"role,notnull,default:''"`
	DisplayName string    `bun:"display_name,notnull,default:''"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
