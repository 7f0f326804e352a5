package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/absence"
)

type absenceRepository struct {
	db *DB
}

var _ absence.Repository = (*absenceRepository)(nil) // interface compliance check

func NewAbsenceRepository(db *DB) absence.Repository {
	return &absenceRepository{db: db}
}

// linked returns the IDs of absences linked to a proof in one of statuses, or to any proof
// when statuses is empty.
func (repo *absenceRepository) linked(statuses ...string) map[string]struct{} {
	wanted := toSet(statuses)
	ids := make(map[string]struct{}, len(repo.db.links))
	for _, l := range repo.db.links {
		if len(wanted) > 0 {
			p, ok := repo.db.proofs[l.ProofID]
			if !ok {
				continue
			}
			if _, ok = wanted[string(p.Status)]; !ok {
				continue
			}
		}
		ids[l.AbsenceID] = struct{}{}
	}
	return ids
}

func (repo *absenceRepository) CreateAbsence(_ context.Context, abs absence.Absence, exec ...core.DBExecutor) (absence.Absence, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if abs.ID == "" {
		abs.ID = uuid.New().String()
	}
	if abs.Status == "" {
		abs.Status = absence.StatusAbsent
	}
	now := time.Now().UTC()
	if abs.CreatedAt.IsZero() {
		abs.CreatedAt = now
	}
	abs.UpdatedAt = now
	txOf(exec).touchAbsence(repo.db, abs.ID)
	repo.db.absences[abs.ID] = abs
	return abs, nil
}

func (repo *absenceRepository) GetAbsence(_ context.Context, id string, _ ...core.DBExecutor) (absence.Absence, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if abs, ok := repo.db.absences[id]; ok {
		return abs, nil
	}
	return absence.Absence{}, absence.ErrNotFound
}

func (repo *absenceRepository) FindByPeriod(_ context.Context, filter absence.PeriodFilter, _ ...core.DBExecutor) ([]absence.Absence, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var linked map[string]struct{}
	if len(filter.LinkedTo) > 0 {
		linked = repo.linked(filter.LinkedTo...)
	}
	res := make([]absence.Absence, 0)
	for _, abs := range repo.db.absences {
		if !filter.Matches(abs) {
			continue
		}
		if _, ok := linked[abs.ID]; ok {
			continue
		}
		res = append(res, abs)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].SlotStart.Before(res[j].SlotStart) })
	return res, nil
}

func (repo *absenceRepository) ListByStudent(_ context.Context, studentID string) ([]absence.Absence, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	res := make([]absence.Absence, 0)
	for _, abs := range repo.db.absences {
		if abs.StudentID == studentID {
			res = append(res, abs)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].SlotStart.After(res[j].SlotStart) })
	return res, nil
}

func (repo *absenceRepository) LastUnlinked(_ context.Context, studentID string) (*absence.Absence, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	linked := repo.linked()
	var last *absence.Absence
	for _, abs := range repo.db.absences {
		if abs.StudentID != studentID {
			continue
		}
		if _, ok := linked[abs.ID]; ok {
			continue
		}
		if last == nil || abs.SlotStart.After(last.SlotStart) {
			abs := abs
			last = &abs
		}
	}
	return last, nil
}

func (repo *absenceRepository) CreateLinks(_ context.Context, links []absence.Link, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	exists := make(map[absence.Link]struct{}, len(repo.db.links))
	for _, l := range repo.db.links {
		exists[absence.Link{ProofID: l.ProofID, AbsenceID: l.AbsenceID}] = struct{}{}
	}
	now := time.Now().UTC()
	for _, l := range links {
		key := absence.Link{ProofID: l.ProofID, AbsenceID: l.AbsenceID}
		if _, ok := exists[key]; ok {
			continue
		}
		exists[key] = struct{}{}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		l.ProofStatus = ""
		txOf(exec).addLink(key)
		repo.db.links = append(repo.db.links, l)
	}
	return nil
}

func (repo *absenceRepository) ListLinks(_ context.Context, filter absence.LinkFilter, _ ...core.DBExecutor) ([]absence.Link, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	proofIDs := toSet(filter.ProofIDs)
	absenceIDs := toSet(filter.AbsenceIDs)
	res := make([]absence.Link, 0)
	for _, l := range repo.db.links {
		_, byProof := proofIDs[l.ProofID]
		_, byAbsence := absenceIDs[l.AbsenceID]
		if !(byProof || byAbsence) {
			continue
		}
		if p, ok := repo.db.proofs[l.ProofID]; ok {
			l.ProofStatus = string(p.Status)
		}
		res = append(res, l)
	}
	return res, nil
}

func (repo *absenceRepository) UpdateJustification(_ context.Context, updates []absence.JustificationUpdate, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	now := time.Now().UTC()
	for _, upd := range updates {
		abs, ok := repo.db.absences[upd.AbsenceID]
		if !ok {
			return absence.ErrNotFound
		}
		abs.Justified = upd.Justified
		if upd.Status != "" {
			abs.Status = upd.Status
		}
		abs.UpdatedAt = now
		txOf(exec).touchAbsence(repo.db, abs.ID)
		repo.db.absences[abs.ID] = abs
	}
	return nil
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
