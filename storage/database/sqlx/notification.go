package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/proof"
)

type (
	notificationFailureRepository struct {
		baseRepository
	}

	notificationFailureRow struct {
		ID        int       `db:"id"`
		ProofID   string    `db:"proof_id"`
		StudentID string    `db:"student_id"`
		Channel   string    `db:"channel"`
		Subject   string    `db:"subject"`
		Error     string    `db:"error"`
		CreatedAt time.Time `db:"created_at"`
	}
)

var _ proof.NotificationFailureRepository = (*notificationFailureRepository)(nil) // interface compliance check

func NewNotificationFailureRepository(exec core.DBExecutor) proof.NotificationFailureRepository {
	return &notificationFailureRepository{baseRepository{exec: exec}}
}

func (repo notificationFailureRepository) RecordFailure(ctx context.Context, nf proof.NotificationFailure) error {
	if nf.CreatedAt.IsZero() {
		nf.CreatedAt = time.Now().UTC()
	}
	_, err := repo.exec.ExecContext(ctx, `
		INSERT INTO notification_failures (proof_id, student_id, channel, subject, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		nf.ProofID, nf.StudentID, nf.Channel, nf.Subject, nf.Error, nf.CreatedAt.UTC())
	return errors.Wrap(err, "inserting notification failure")
}

// ListFailures lists every failure when proofID is empty.
func (repo notificationFailureRepository) ListFailures(ctx context.Context, proofID string) ([]proof.NotificationFailure, error) {
	q := "SELECT id, proof_id, student_id, channel, subject, error, created_at FROM notification_failures"
	var args []interface{}
	if proofID != "" {
		q += " WHERE proof_id = $1"
		args = append(args, proofID)
	}
	q += " ORDER BY created_at, id"

	var rows []notificationFailureRow
	if err := sqlx.SelectContext(ctx, repo.exec, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "listing notification failures")
	}
	res := make([]proof.NotificationFailure, 0, len(rows))
	for _, row := range rows {
		res = append(res, proof.NotificationFailure{
			ID:        row.ID,
			ProofID:   row.ProofID,
			StudentID: row.StudentID,
			Channel:   row.Channel,
			Subject:   row.Subject,
			Error:     row.Error,
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return res, nil
}
