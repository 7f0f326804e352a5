package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/absento/core/proof"
)

var errDuplicateKey = errors.New("inmemdb: duplicate key")

type notificationFailureRepository struct {
	db *DB
}

var _ proof.NotificationFailureRepository = (*notificationFailureRepository)(nil) // interface compliance check

func NewNotificationFailureRepository(db *DB) proof.NotificationFailureRepository {
	return &notificationFailureRepository{db: db}
}

func (repo *notificationFailureRepository) RecordFailure(_ context.Context, nf proof.NotificationFailure) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	nf.ID = repo.db.nextPK()
	repo.db.failures = append(repo.db.failures, nf)
	return nil
}

func (repo *notificationFailureRepository) ListFailures(_ context.Context, proofID string) ([]proof.NotificationFailure, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	res := make([]proof.NotificationFailure, 0)
	for _, nf := range repo.db.failures {
		if proofID == "" || nf.ProofID == proofID {
			res = append(res, nf)
		}
	}
	return res, nil
}
