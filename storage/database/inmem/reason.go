package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/absento/core/reason"
)

type reasonRepository struct {
	db *DB
}

var _ reason.Repository = (*reasonRepository)(nil) // interface compliance check

func NewReasonRepository(db *DB) reason.Repository {
	return &reasonRepository{db: db}
}

func (repo *reasonRepository) ListEntries(_ context.Context, kind reason.Kind) ([]reason.Entry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	res := make([]reason.Entry, 0)
	for _, e := range repo.db.reasons {
		if e.Kind == kind {
			res = append(res, e)
		}
	}
	sort.Slice(res, func(i, j int) bool { return strings.ToLower(res[i].Label) < strings.ToLower(res[j].Label) })
	return res, nil
}

func (repo *reasonRepository) find(kind reason.Kind, label string) (reason.Entry, bool) {
	for _, e := range repo.db.reasons {
		if e.Kind == kind && strings.EqualFold(e.Label, label) {
			return e, true
		}
	}
	return reason.Entry{}, false
}

func (repo *reasonRepository) FindEntry(_ context.Context, kind reason.Kind, label string) (reason.Entry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if e, ok := repo.find(kind, label); ok {
		return e, nil
	}
	return reason.Entry{}, reason.ErrNotFound
}

func (repo *reasonRepository) CreateEntry(_ context.Context, entry reason.Entry) (reason.Entry, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.find(entry.Kind, entry.Label); ok {
		return reason.Entry{}, reason.ErrEntryExists
	}
	entry.ID = repo.db.nextPK()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	repo.db.reasons = append(repo.db.reasons, entry)
	return entry, nil
}
