package sqlxrepos

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/proof"
)

const proofColumns = `id, student_id, absence_start_date, absence_end_date, main_reason, custom_reason,
	student_comment, files, status, manager_comment, decision_reason, processed_by,
	submission_date, processing_date, version, updated_at`

// orderings on proofs, status sorts by weight
var proofOrderExprs = map[string]string{
	"submission_date":    "submission_date",
	"absence_start_date": "absence_start_date",
	"student_id":         "student_id",
	"status":             statusRankExpr(),
}

// statusRankExpr renders proof.Rank as a SQL CASE over the status column.
func statusRankExpr() string {
	var b strings.Builder
	b.WriteString("CASE status")
	for _, s := range proof.Statuses {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", s, proof.Rank(s))
	}
	fmt.Fprintf(&b, " ELSE %d END", proof.Rank(""))
	return b.String()
}

type (
	proofRepository struct {
		baseRepository
	}

	proofRow struct {
		ID               string         `db:"id"`
		StudentID        string         `db:"student_id"`
		AbsenceStartDate time.Time      `db:"absence_start_date"`
		AbsenceEndDate   time.Time      `db:"absence_end_date"`
		MainReason       string         `db:"main_reason"`
		CustomReason     string         `db:"custom_reason"`
		StudentComment   string         `db:"student_comment"`
		Files            types.JSONText `db:"files"`
		Status           string         `db:"status"`
		ManagerComment   string         `db:"manager_comment"`
		DecisionReason   string         `db:"decision_reason"`
		ProcessedBy      null.String    `db:"processed_by"`
		SubmissionDate   time.Time      `db:"submission_date"`
		ProcessingDate   null.Time      `db:"processing_date"`
		Version          int            `db:"version"`
		UpdatedAt        time.Time      `db:"updated_at"`
	}
)

var _ proof.Repository = (*proofRepository)(nil) // interface compliance check

func NewProofRepository(exec core.DBExecutor) proof.Repository {
	return &proofRepository{baseRepository{exec: exec}}
}

func toProofRow(p proof.Proof) (proofRow, error) {
	files := p.Files
	if files == nil {
		files = []proof.FileRef{}
	}
	raw, err := json.Marshal(files)
	if err != nil {
		return proofRow{}, errors.Wrap(err, "encoding proof files")
	}
	var processedAt null.Time
	if p.ProcessingDate != nil {
		processedAt = null.TimeFrom(p.ProcessingDate.UTC())
	}
	return proofRow{
		ID:               p.ID,
		StudentID:        p.StudentID,
		AbsenceStartDate: p.AbsenceStartDate.UTC(),
		AbsenceEndDate:   p.AbsenceEndDate.UTC(),
		MainReason:       p.MainReason,
		CustomReason:     p.CustomReason,
		StudentComment:   p.StudentComment,
		Files:            types.JSONText(raw),
		Status:           string(p.Status),
		ManagerComment:   p.ManagerComment,
		DecisionReason:   p.DecisionReason,
		ProcessedBy:      null.NewString(p.ProcessedBy, p.ProcessedBy != ""),
		SubmissionDate:   p.SubmissionDate.UTC(),
		ProcessingDate:   processedAt,
		Version:          p.Version,
		UpdatedAt:        p.UpdatedAt.UTC(),
	}, nil
}

func (row proofRow) toProof() (proof.Proof, error) {
	files := make([]proof.FileRef, 0)
	if len(row.Files) > 0 {
		if err := row.Files.Unmarshal(&files); err != nil {
			return proof.Proof{}, errors.Wrap(err, "decoding proof files")
		}
	}
	p := proof.Proof{
		ID:               row.ID,
		StudentID:        row.StudentID,
		AbsenceStartDate: row.AbsenceStartDate.UTC(),
		AbsenceEndDate:   row.AbsenceEndDate.UTC(),
		MainReason:       row.MainReason,
		CustomReason:     row.CustomReason,
		StudentComment:   row.StudentComment,
		Files:            files,
		Status:           proof.Status(row.Status),
		ManagerComment:   row.ManagerComment,
		DecisionReason:   row.DecisionReason,
		ProcessedBy:      row.ProcessedBy.String,
		SubmissionDate:   row.SubmissionDate.UTC(),
		Version:          row.Version,
		UpdatedAt:        row.UpdatedAt.UTC(),
	}
	if row.ProcessingDate.Valid {
		t := row.ProcessingDate.Time.UTC()
		p.ProcessingDate = &t
	}
	return p, nil
}

func (repo proofRepository) CreateProof(ctx context.Context, p proof.Proof, exec ...core.DBExecutor) (proof.Proof, error) {
	if p.Version == 0 {
		p.Version = 1
	}
	if p.SubmissionDate.IsZero() {
		p.SubmissionDate = time.Now().UTC()
	}
	p.UpdatedAt = p.SubmissionDate
	row, err := toProofRow(p)
	if err != nil {
		return proof.Proof{}, err
	}

	_, err = sqlx.NamedExecContext(ctx, repo.getExec(exec), `
		INSERT INTO proofs (`+proofColumns+`)
		VALUES (:id, :student_id, :absence_start_date, :absence_end_date, :main_reason, :custom_reason,
			:student_comment, :files, :status, :manager_comment, :decision_reason, :processed_by,
			:submission_date, :processing_date, :version, :updated_at)`, row)
	if err != nil {
		return proof.Proof{}, errors.Wrap(err, "inserting proof")
	}
	return p, nil
}

func (repo proofRepository) GetProof(ctx context.Context, id string, exec ...core.DBExecutor) (proof.Proof, error) {
	var row proofRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, "SELECT "+proofColumns+" FROM proofs WHERE id = $1", id)
	if err != nil {
		return proof.Proof{}, trapNoRowsErr(err, proof.ErrNotFound, "getting proof")
	}
	return row.toProof()
}

// UpdateProof leaves student_id and submission_date untouched.
func (repo proofRepository) UpdateProof(ctx context.Context, p proof.Proof, exec ...core.DBExecutor) (proof.Proof, error) {
	exe := repo.getExec(exec)
	row, err := toProofRow(p)
	if err != nil {
		return proof.Proof{}, err
	}

	q, args, err := sqlx.Named(`
		UPDATE proofs SET
			absence_start_date = :absence_start_date,
			absence_end_date = :absence_end_date,
			main_reason = :main_reason,
			custom_reason = :custom_reason,
			student_comment = :student_comment,
			files = :files,
			status = :status,
			manager_comment = :manager_comment,
			decision_reason = :decision_reason,
			processed_by = :processed_by,
			processing_date = :processing_date,
			version = version + 1,
			updated_at = now()
		WHERE id = :id AND version = :version
		RETURNING `+proofColumns, row)
	if err != nil {
		return proof.Proof{}, errors.Wrap(err, "binding proof update")
	}

	var updated proofRow
	if err = sqlx.GetContext(ctx, exe, &updated, exe.Rebind(q), args...); err != nil {
		err = trapNoRowsErr(err, core.ErrConcurrentModification, "updating proof")
		if err == core.ErrConcurrentModification {
			// tell a stale version from a missing proof
			if _, getErr := repo.GetProof(ctx, p.ID, exe); getErr == proof.ErrNotFound {
				return proof.Proof{}, proof.ErrNotFound
			}
		}
		return proof.Proof{}, err
	}
	return updated.toProof()
}

func (repo proofRepository) QueryProofs(ctx context.Context, filter proof.QueryFilter, ordering []core.DBOrdering) ([]proof.Proof, error) {
	var conds []string
	var args []interface{}
	if filter.StudentID != "" {
		conds = append(conds, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if !filter.From.IsZero() {
		conds = append(conds, "absence_end_date >= ?")
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		conds = append(conds, "absence_start_date <= ?")
		args = append(args, filter.To.UTC())
	}

	q := "SELECT " + proofColumns + " FROM proofs"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}

	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if expr, ok := proofOrderExprs[ord.Field]; ok {
			orderList = append(orderList, core.DBOrdering{Field: expr, Ascending: ord.Ascending}.String())
		}
	}
	if len(orderList) == 0 {
		orderList = append(orderList, "submission_date DESC")
	}
	q += " ORDER BY " + strings.Join(append(orderList, "id"), ", ")

	var rows []proofRow
	if err := sqlx.SelectContext(ctx, repo.exec, &rows, repo.exec.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying proofs")
	}
	res := make([]proof.Proof, 0, len(rows))
	for _, row := range rows {
		p, err := row.toProof()
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}
