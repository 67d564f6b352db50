// Package migrate copies profile rows from another database into the
// profile store. It runs outside the session core and only writes through
// the store's merge upsert, so re-running it is safe.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-bexpr"
	"github.com/mitchellh/mapstructure"
	"github.com/terraconstructs/classgrid/internal/session"
)

// RowSource yields loosely typed source rows.
type RowSource interface {
	Name() string
	Rows(ctx context.Context) ([]map[string]any, error)
}

// Upserter is the write half of the profile store.
type Upserter interface {
	Upsert(ctx context.Context, identityID string, fields session.ProfileFields) error
}

// Options tunes a run.
type Options struct {
	// Filter is a go-bexpr expression evaluated against each row; rows that
	// do not match are skipped. Empty matches everything.
	Filter string
	// DryRun decodes and filters rows without writing.
	DryRun bool
}

// RowError records one row that could not be migrated.
type RowError struct {
	Index int
	DocID string
	Err   error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d (%s): %v", e.Index, e.DocID, e.Err)
}

// Report summarizes a run.
type Report struct {
	Source   string
	Total    int
	Skipped  int
	Migrated int
	Failures []RowError
}

// Failed is the number of rows that could not be written.
func (r Report) Failed() int {
	return len(r.Failures)
}

func (r Report) String() string {
	return fmt.Sprintf("Migrated %d/%d rows from %s", r.Migrated, r.Total, r.Source)
}

// profileRow is the subset of a source row that maps onto a profile.
type profileRow struct {
	ID          any    `mapstructure:"id"`
	UID         any    `mapstructure:"uid"`
	UUID        any    `mapstructure:"uuid"`
	Role        string `mapstructure:"role"`
	DisplayName string `mapstructure:"display_name"`
	Name        string `mapstructure:"name"`
	Username    string `mapstructure:"username"`
}

// Run copies every matching row of src into dst. A row that fails to decode
// or write is recorded in the report and does not stop the run; only a
// failure to read src or an invalid filter is returned as an error.
func Run(ctx context.Context, src RowSource, dst Upserter, opts Options) (Report, error) {
	report := Report{Source: src.Name()}

	var eval *bexpr.Evaluator
	if strings.TrimSpace(opts.Filter) != "" {
		var err error
		eval, err = bexpr.CreateEvaluator(opts.Filter)
		if err != nil {
			return report, fmt.Errorf("invalid filter %q: %w", opts.Filter, err)
		}
	}

	rows, err := src.Rows(ctx)
	if err != nil {
		return report, fmt.Errorf("read %s: %w", src.Name(), err)
	}
	report.Total = len(rows)
	log.Printf("migrate: migrating %d rows from %s", len(rows), src.Name())

	for i, raw := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		row := normalize(raw)

		if eval != nil {
			ok, err := eval.Evaluate(row)
			if err != nil || !ok {
				report.Skipped++
				continue
			}
		}

		docID, fields, err := decodeRow(row)
		if err != nil {
			report.Failures = append(report.Failures, RowError{Index: i, DocID: docID, Err: err})
			continue
		}
		if opts.DryRun {
			report.Migrated++
			continue
		}
		if err := dst.Upsert(ctx, docID, fields); err != nil {
			log.Printf("migrate: failed to write row %d (%s): %v", i, docID, err)
			report.Failures = append(report.Failures, RowError{Index: i, DocID: docID, Err: err})
			continue
		}
		report.Migrated++
	}

	log.Printf("migrate: %s", report)
	return report, nil
}

// DocID picks the document id for a row: id, then uid, then uuid, else a
// freshly generated one.
func DocID(row map[string]any) string {
	for _, key := range []string{"id", "uid", "uuid"} {
		if id := idString(row[key]); id != "" {
			return id
		}
	}
	return uuid.NewString()
}

func decodeRow(row map[string]any) (string, session.ProfileFields, error) {
	var pr profileRow
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &pr,
	})
	if err != nil {
		return "", session.ProfileFields{}, err
	}
	docID := DocID(row)
	if err := dec.Decode(row); err != nil {
		return docID, session.ProfileFields{}, fmt.Errorf("decode row: %w", err)
	}
	fields := session.ProfileFields{
		Role:        strings.TrimSpace(pr.Role),
		DisplayName: firstNonEmpty(pr.DisplayName, pr.Name, pr.Username),
	}
	if fields.Role == "" && fields.DisplayName == "" {
		return docID, fields, errors.New("row has neither role nor display name")
	}
	return docID, fields, nil
}

// normalize converts driver byte slices to strings so filters and decoding
// see text values.
func normalize(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		out[strings.ToLower(k)] = v
	}
	return out
}

func idString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []byte:
		return strings.TrimSpace(string(v))
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
