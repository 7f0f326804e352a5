package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/proof"
)

type proofRepository struct {
	db *DB
}

var _ proof.Repository = (*proofRepository)(nil) // interface compliance check

func NewProofRepository(db *DB) proof.Repository {
	return &proofRepository{db: db}
}

func copyProof(p proof.Proof) proof.Proof {
	p.Files = append([]proof.FileRef(nil), p.Files...)
	p.AbsenceIDs = nil
	if p.ProcessingDate != nil {
		t := *p.ProcessingDate
		p.ProcessingDate = &t
	}
	return p
}

func (repo *proofRepository) CreateProof(_ context.Context, p proof.Proof, exec ...core.DBExecutor) (proof.Proof, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.proofs[p.ID]; ok {
		return proof.Proof{}, errDuplicateKey
	}
	if p.Version == 0 {
		p.Version = 1
	}
	txOf(exec).touchProof(repo.db, p.ID)
	repo.db.proofs[p.ID] = copyProof(p)
	return p, nil
}

func (repo *proofRepository) GetProof(_ context.Context, id string, _ ...core.DBExecutor) (proof.Proof, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.proofs[id]; ok {
		return copyProof(p), nil
	}
	return proof.Proof{}, proof.ErrNotFound
}

func (repo *proofRepository) UpdateProof(_ context.Context, p proof.Proof, exec ...core.DBExecutor) (proof.Proof, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	stored, ok := repo.db.proofs[p.ID]
	if !ok {
		return proof.Proof{}, proof.ErrNotFound
	}
	if stored.Version != p.Version {
		return proof.Proof{}, core.ErrConcurrentModification
	}
	// immutable columns
	p.StudentID = stored.StudentID
	p.SubmissionDate = stored.SubmissionDate
	p.Version++

	txOf(exec).touchProof(repo.db, p.ID)
	repo.db.proofs[p.ID] = copyProof(p)
	return p, nil
}

var proofOrderings = map[string]func(a, b proof.Proof) int{
	"submission_date":    func(a, b proof.Proof) int { return compareTime(a.SubmissionDate.UnixNano(), b.SubmissionDate.UnixNano()) },
	"absence_start_date": func(a, b proof.Proof) int { return compareTime(a.AbsenceStartDate.UnixNano(), b.AbsenceStartDate.UnixNano()) },
	"student_id":         func(a, b proof.Proof) int { return strings.Compare(a.StudentID, b.StudentID) },
	"status":             func(a, b proof.Proof) int { return proof.Rank(a.Status) - proof.Rank(b.Status) },
}

func compareTime(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (repo *proofRepository) QueryProofs(_ context.Context, filter proof.QueryFilter, ordering []core.DBOrdering) ([]proof.Proof, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	res := make([]proof.Proof, 0)
	for _, p := range repo.db.proofs {
		if filter.Matches(p) {
			res = append(res, copyProof(p))
		}
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "submission_date"}}
	}
	sort.SliceStable(res, func(i, j int) bool {
		for _, ord := range ordering {
			cmp, ok := proofOrderings[ord.Field]
			if !ok {
				continue
			}
			c := cmp(res[i], res[j])
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}
