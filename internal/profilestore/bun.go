package profilestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/terraconstructs/classgrid/internal/db/models"
	"github.com/terraconstructs/classgrid/internal/session"
	"github.com/uptrace/bun"
)

// BunStore implements session.ProfileStore using Bun ORM. It works against
// either dialect bunx.NewDB returns.
type BunStore struct {
	db *bun.DB
}

var _ session.ProfileStore = (*BunStore)(nil)

// NewBunStore creates a new Bun-based profile store
func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db}
}

// Fetch retrieves the profile document for identityID.
func (s *BunStore) Fetch(ctx context.Context, identityID string) (*session.Profile, error) {
	profile := new(models.Profile)
	err := s.db.NewSelect().
		Model(profile).
		Where("identity_id = ?", identityID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", session.ErrProfileNotFound, identityID)
		}
		return nil, fmt.Errorf("%w: get profile %s: %v", session.ErrProfileUnreachable, identityID, err)
	}
	return toSession(profile), nil
}

// Upsert creates the document if needed and sets every non-empty field.
// Repeated calls with the same fields converge on the same row.
func (s *BunStore) Upsert(ctx context.Context, identityID string, fields session.ProfileFields) error {
	if strings.TrimSpace(identityID) == "" {
		return errors.New("upsert profile: identity id is required")
	}
	role := strings.TrimSpace(fields.Role)
	name := strings.TrimSpace(fields.DisplayName)

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		_, err := tx.NewInsert().
			Model(&models.Profile{
				IdentityID:  identityID,
				Role:        role,
				DisplayName: name,
				CreatedAt:   now,
				UpdatedAt:   now,
			}).
			On("CONFLICT (identity_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}

		if role == "" && name == "" {
			return nil
		}
		q := tx.NewUpdate().
			Model((*models.Profile)(nil)).
			Set("updated_at = ?", now).
			Where("identity_id = ?", identityID)
		if role != "" {
			q = q.Set("role = ?", role)
		}
		if name != "" {
			q = q.Set("display_name = ?", name)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: upsert profile %s: %v", session.ErrProfileUnreachable, identityID, err)
	}
	return nil
}

// List retrieves all profiles ordered by identity id.
func (s *BunStore) List(ctx context.Context) ([]session.Profile, error) {
	var rows []models.Profile
	err := s.db.NewSelect().
		Model(&rows).
		Order("identity_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	out := make([]session.Profile, 0, len(rows))
	for i := range rows {
		out = append(out, *toSession(&rows[i]))
	}
	return out, nil
}

func toSession(p *models.Profile) *session.Profile {
	return &session.Profile{
		IdentityID: p.IdentityID,
		ProfileFields: session.ProfileFields{
			Role:        p.Role,
			DisplayName: p.DisplayName,
		},
	}
}
