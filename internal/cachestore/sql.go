package cachestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/terraconstructs/classgrid/internal/db/models"
	"github.com/terraconstructs/classgrid/internal/session"
	"github.com/uptrace/bun"
)

const defaultSQLTimeout = 5 * time.Second

// SQLStore implements session.Store on the session_cache table. Every update
// runs in one transaction.
type SQLStore struct {
	db        *bun.DB
	namespace string
	timeout   time.Duration
}

var _ session.Store = (*SQLStore)(nil)

// NewSQLStore returns a store whose keys live under namespace.
func NewSQLStore(db *bun.DB, namespace string) *SQLStore {
	if namespace == "" {
		namespace = "default"
	}
	return &SQLStore{db: db, namespace: namespace, timeout: defaultSQLTimeout}
}

func (s *SQLStore) Load(keys ...string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var entries []models.SessionCacheEntry
	err := s.db.NewSelect().
		Model(&entries).
		Where("namespace = ?", s.namespace).
		Where("key IN (?)", bun.In(keys)).
		Scan(ctx)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("load session cache: %w", err)
	}

	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	return out, nil
}

func (s *SQLStore) Replace(set map[string]string, del ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(del) > 0 {
			if err := s.delete(ctx, tx, del); err != nil {
				return err
			}
		}
		if len(set) == 0 {
			return nil
		}

		now := time.Now()
		entries := make([]models.SessionCacheEntry, 0, len(set))
		for k, v := range set {
			entries = append(entries, models.SessionCacheEntry{
				Namespace: s.namespace,
				Key:       k,
				Value:     v,
				UpdatedAt: now,
			})
		}
		_, err := tx.NewInsert().
			Model(&entries).
			On("CONFLICT (namespace, key) DO UPDATE").
			Set("value = EXCLUDED.value").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("write session cache: %w", err)
		}
		return nil
	})
}

func (s *SQLStore) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.delete(ctx, tx, keys)
	})
}

func (s *SQLStore) delete(ctx context.Context, tx bun.Tx, keys []string) error {
	_, err := tx.NewDelete().
		Model((*models.SessionCacheEntry)(nil)).
		Where("namespace = ?", s.namespace).
		Where("key IN (?)", bun.In(keys)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete session cache keys: %w", err)
	}
	return nil
}
