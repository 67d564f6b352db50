package migrate

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// BunSource reads every row of a table.
type BunSource struct {
	db    *bun.DB
	table string
}

var _ RowSource = (*BunSource)(nil)

// NewBunSource reads rows from table in db.
func NewBunSource(db *bun.DB, table string) *BunSource {
	return &BunSource{db: db, table: table}
}

func (s *BunSource) Name() string {
	return s.table
}

// Rows loads the whole table. Source tables are small profile tables.
func (s *BunSource) Rows(ctx context.Context) ([]map[string]any, error) {
	var rows []map[string]interface{}
	err := s.db.NewSelect().
		TableExpr("?", bun.Ident(s.table)).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", s.table, err)
	}
	return rows, nil
}
