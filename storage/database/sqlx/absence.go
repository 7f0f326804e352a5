package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/absence"
)

const absenceColumns = "a.id, a.student_id, a.course_slot_id, a.slot_start, a.status, a.justified, a.created_at, a.updated_at"

type (
	absenceRepository struct {
		baseRepository
	}

	absenceRow struct {
		ID           string    `db:"id"`
		StudentID    string    `db:"student_id"`
		CourseSlotID string    `db:"course_slot_id"`
		SlotStart    time.Time `db:"slot_start"`
		Status       string    `db:"status"`
		Justified    bool      `db:"justified"`
		CreatedAt    time.Time `db:"created_at"`
		UpdatedAt    time.Time `db:"updated_at"`
	}

	linkRow struct {
		ProofID     string    `db:"proof_id"`
		AbsenceID   string    `db:"absence_id"`
		ProofStatus string    `db:"proof_status"`
		CreatedAt   time.Time `db:"created_at"`
	}
)

var _ absence.Repository = (*absenceRepository)(nil) // interface compliance check

func NewAbsenceRepository(exec core.DBExecutor) absence.Repository {
	return &absenceRepository{baseRepository{exec: exec}}
}

func (row absenceRow) toAbsence() absence.Absence {
	return absence.Absence{
		ID:           row.ID,
		StudentID:    row.StudentID,
		CourseSlotID: row.CourseSlotID,
		SlotStart:    row.SlotStart.UTC(),
		Status:       absence.Status(row.Status),
		Justified:    row.Justified,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

func toAbsences(rows []absenceRow) []absence.Absence {
	res := make([]absence.Absence, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.toAbsence())
	}
	return res
}

func (repo absenceRepository) CreateAbsence(ctx context.Context, abs absence.Absence, exec ...core.DBExecutor) (absence.Absence, error) {
	if abs.ID == "" {
		abs.ID = uuid.New().String()
	}
	if abs.Status == "" {
		abs.Status = absence.StatusAbsent
	}

	var row absenceRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `
		INSERT INTO absences AS a (id, student_id, course_slot_id, slot_start, status, justified)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+absenceColumns,
		abs.ID, abs.StudentID, abs.CourseSlotID, abs.SlotStart.UTC(), string(abs.Status), abs.Justified)
	if err != nil {
		return absence.Absence{}, errors.Wrap(err, "inserting absence")
	}
	return row.toAbsence(), nil
}

func (repo absenceRepository) GetAbsence(ctx context.Context, id string, exec ...core.DBExecutor) (absence.Absence, error) {
	var row absenceRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row,
		"SELECT "+absenceColumns+" FROM absences a WHERE a.id = $1", id)
	if err != nil {
		return absence.Absence{}, trapNoRowsErr(err, absence.ErrNotFound, "getting absence")
	}
	return row.toAbsence(), nil
}

// FindByPeriod takes a per-student transaction lock when filtering on links,
// so two submissions of the same student cannot both claim an absence.
func (repo absenceRepository) FindByPeriod(ctx context.Context, filter absence.PeriodFilter, exec ...core.DBExecutor) ([]absence.Absence, error) {
	exe := repo.getExec(exec)

	if len(filter.LinkedTo) > 0 {
		if _, err := exe.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", filter.StudentID); err != nil {
			return nil, errors.Wrap(err, "locking student absences")
		}
	}

	conds := []string{"a.student_id = ?", "a.slot_start BETWEEN ? AND ?"}
	args := []interface{}{filter.StudentID, filter.Start.UTC(), filter.End.UTC()}
	if filter.Status != "" {
		conds = append(conds, "a.status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Justified != nil {
		conds = append(conds, "a.justified = ?")
		args = append(args, *filter.Justified)
	}
	if len(filter.LinkedTo) > 0 {
		conds = append(conds, `NOT EXISTS (
			SELECT 1 FROM proof_absence_links l JOIN proofs p ON p.id = l.proof_id
			WHERE l.absence_id = a.id AND p.status IN (?))`)
		args = append(args, filter.LinkedTo)
	}

	q, args, err := in(exe, "SELECT "+absenceColumns+" FROM absences a WHERE "+strings.Join(conds, " AND ")+" ORDER BY a.slot_start", args...)
	if err != nil {
		return nil, err
	}
	var rows []absenceRow
	if err := sqlx.SelectContext(ctx, exe, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "finding absences by period")
	}
	return toAbsences(rows), nil
}

func (repo absenceRepository) ListByStudent(ctx context.Context, studentID string) ([]absence.Absence, error) {
	var rows []absenceRow
	err := sqlx.SelectContext(ctx, repo.exec, &rows,
		"SELECT "+absenceColumns+" FROM absences a WHERE a.student_id = $1 ORDER BY a.slot_start DESC", studentID)
	if err != nil {
		return nil, errors.Wrap(err, "listing student absences")
	}
	return toAbsences(rows), nil
}

func (repo absenceRepository) LastUnlinked(ctx context.Context, studentID string) (*absence.Absence, error) {
	var row absenceRow
	err := sqlx.GetContext(ctx, repo.exec, &row, `
		SELECT `+absenceColumns+` FROM absences a
		WHERE a.student_id = $1
		  AND NOT EXISTS (SELECT 1 FROM proof_absence_links l WHERE l.absence_id = a.id)
		ORDER BY a.slot_start DESC
		LIMIT 1`, studentID)
	if err != nil {
		if err = trapNoRowsErr(err, absence.ErrNotFound, "finding last unlinked absence"); err == absence.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	abs := row.toAbsence()
	return &abs, nil
}

func (repo absenceRepository) CreateLinks(ctx context.Context, links []absence.Link, exec ...core.DBExecutor) error {
	if len(links) == 0 {
		return nil
	}
	rows := make([]linkRow, 0, len(links))
	now := time.Now().UTC()
	for _, l := range links {
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		rows = append(rows, linkRow{ProofID: l.ProofID, AbsenceID: l.AbsenceID, CreatedAt: l.CreatedAt.UTC()})
	}

	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `
		INSERT INTO proof_absence_links (proof_id, absence_id, created_at)
		VALUES (:proof_id, :absence_id, :created_at)
		ON CONFLICT DO NOTHING`, rows)
	return errors.Wrap(err, "inserting links")
}

func (repo absenceRepository) ListLinks(ctx context.Context, filter absence.LinkFilter, exec ...core.DBExecutor) ([]absence.Link, error) {
	if filter.IsEmpty() {
		return []absence.Link{}, nil
	}
	exe := repo.getExec(exec)

	var conds []string
	var args []interface{}
	if len(filter.ProofIDs) > 0 {
		conds = append(conds, "l.proof_id IN (?)")
		args = append(args, filter.ProofIDs)
	}
	if len(filter.AbsenceIDs) > 0 {
		conds = append(conds, "l.absence_id IN (?)")
		args = append(args, filter.AbsenceIDs)
	}
	q, args, err := in(exe, `
		SELECT l.proof_id, l.absence_id, l.created_at, p.status AS proof_status
		FROM proof_absence_links l
		JOIN proofs p ON p.id = l.proof_id
		WHERE `+strings.Join(conds, " OR ")+`
		ORDER BY l.created_at, l.proof_id`, args...)
	if err != nil {
		return nil, err
	}

	var rows []linkRow
	if err = sqlx.SelectContext(ctx, exe, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "listing links")
	}
	res := make([]absence.Link, 0, len(rows))
	for _, row := range rows {
		res = append(res, absence.Link{
			ProofID:     row.ProofID,
			AbsenceID:   row.AbsenceID,
			ProofStatus: row.ProofStatus,
			CreatedAt:   row.CreatedAt.UTC(),
		})
	}
	return res, nil
}

func (repo absenceRepository) UpdateJustification(ctx context.Context, updates []absence.JustificationUpdate, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	for _, upd := range updates {
		res, err := exe.ExecContext(ctx, `
			UPDATE absences
			SET justified = $1, status = COALESCE(NULLIF($2, ''), status), updated_at = now()
			WHERE id = $3`,
			upd.Justified, string(upd.Status), upd.AbsenceID)
		if err != nil {
			return errors.Wrap(err, "updating absence justification")
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return absence.ErrNotFound
		}
	}
	return nil
}
