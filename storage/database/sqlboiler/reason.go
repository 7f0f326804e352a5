// Package boiledrepos implements repositories on top of sqlboiler queries.
package boiledrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/reason"
)

type (
	reasonRepository struct {
		exec core.DBExecutor
	}

	reasonEntry struct {
		ID        int       `boil:"id"`
		Kind      string    `boil:"kind"`
		Label     string    `boil:"label"`
		CreatedAt null.Time `boil:"created_at"`
	}
)

var _ reason.Repository = (*reasonRepository)(nil) // interface compliance check

func NewReasonRepository(exec core.DBExecutor) reason.Repository {
	return &reasonRepository{exec: exec}
}

func (e reasonEntry) unboil() reason.Entry {
	return reason.Entry{
		ID:        e.ID,
		Kind:      reason.Kind(e.Kind),
		Label:     e.Label,
		CreatedAt: e.CreatedAt.Time.UTC(),
	}
}

// trapNoRowsErr maps psql "no rows" err to reason.ErrNotFound
func (repo reasonRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return reason.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo reasonRepository) ListEntries(ctx context.Context, kind reason.Kind) ([]reason.Entry, error) {
	var entries []*reasonEntry
	err := queries.Raw(
		"SELECT id, kind, label, created_at FROM reason_catalog WHERE kind = $1 ORDER BY lower(label)", string(kind),
	).Bind(ctx, repo.exec, &entries)
	if err != nil {
		return nil, errors.Wrap(err, "listing reasons")
	}
	res := make([]reason.Entry, 0, len(entries))
	for _, e := range entries {
		res = append(res, e.unboil())
	}
	return res, nil
}

func (repo reasonRepository) FindEntry(ctx context.Context, kind reason.Kind, label string) (reason.Entry, error) {
	var entry reasonEntry
	err := queries.Raw(
		"SELECT id, kind, label, created_at FROM reason_catalog WHERE kind = $1 AND lower(label) = lower($2)",
		string(kind), label,
	).Bind(ctx, repo.exec, &entry)
	if err != nil {
		return reason.Entry{}, repo.trapNoRowsErr(err, "finding reason")
	}
	return entry.unboil(), nil
}

// CreateEntry relies on the (kind, lower(label)) unique index: a conflicting insert returns no row.
func (repo reasonRepository) CreateEntry(ctx context.Context, entry reason.Entry) (reason.Entry, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	var created reasonEntry
	err := queries.Raw(`
		INSERT INTO reason_catalog (kind, label, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
		RETURNING id, kind, label, created_at`,
		string(entry.Kind), entry.Label, entry.CreatedAt.UTC(),
	).Bind(ctx, repo.exec, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reason.Entry{}, reason.ErrEntryExists
		}
		return reason.Entry{}, errors.Wrap(err, "inserting reason")
	}
	return created.unboil(), nil
}
