package session

import (
	"fmt"
	"log"
)

// Keys of the local session cache. The first three make up a record; the
// identity id is optional and only scopes fallback lookups.
const (
	KeyCredential  = "userToken"
	KeyDisplayName = "username"
	KeyRole        = "role"
	KeyIdentityID  = "userId"
)

var cacheKeys = []string{KeyCredential, KeyDisplayName, KeyRole, KeyIdentityID}

// Store is a synchronous, durable key/value store. Replace applies all of
// set and removes every key in del as one atomic update; Delete removes the
// keys atomically. A reader never observes a partially applied update.
type Store interface {
	Load(keys ...string) (map[string]string, error)
	Replace(set map[string]string, del ...string) error
	Delete(keys ...string) error
}

// Cache is the local mirror of the last reconciled Session.
type Cache struct {
	store Store
}

// NewCache wraps store.
func NewCache(store Store) *Cache {
	return &Cache{store: store}
}

// Read returns the cached session, or nil when any of the credential, name
// or role keys is missing. Partial records are never surfaced.
func (c *Cache) Read() *Session {
	values, err := c.store.Load(cacheKeys...)
	if err != nil {
		log.Printf("session cache: read failed, treating as empty: %v", err)
		return nil
	}
	cred, okCred := values[KeyCredential]
	name, okName := values[KeyDisplayName]
	role, okRole := values[KeyRole]
	if !okCred || !okName || !okRole {
		return nil
	}
	s := &Session{
		Credential:  cred,
		DisplayName: name,
		Role:        role,
		IdentityID:  values[KeyIdentityID],
	}
	if err := s.Validate(); err != nil {
		return nil
	}
	return s
}

// Write stores s in a single atomic update.
func (c *Cache) Write(s Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	set := map[string]string{
		KeyCredential:  s.Credential,
		KeyDisplayName: s.DisplayName,
		KeyRole:        s.Role,
	}
	var del []string
	if s.IdentityID != "" {
		set[KeyIdentityID] = s.IdentityID
	} else {
		del = append(del, KeyIdentityID)
	}
	if err := c.store.Replace(set, del...); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheWrite, err)
	}
	return nil
}

// Clear removes every cached key.
func (c *Cache) Clear() error {
	if err := c.store.Delete(cacheKeys...); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheWrite, err)
	}
	return nil
}
