// Package absence resolves which absences a proof covers and maintains proof/absence links.
package absence

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/absento/core"
)

var (
	ErrNotFound = errors.New("absence not found")

	ErrInvalidPeriod = core.NewValidationError(nil, core.FieldError{
		Field: "absence_end_date",
		Error: "the end of the period must not be before its start",
	})
	ErrNoMatchingAbsence = core.NewValidationError(errors.New("no matching absence for this period"))
	ErrNothingToLink     = errors.New("no absence to link")
)

type (
	Repository interface {
		CreateAbsence(ctx context.Context, abs Absence, exec ...core.DBExecutor) (Absence, error)
		GetAbsence(ctx context.Context, id string, exec ...core.DBExecutor) (Absence, error)
		// FindByPeriod returns matching absences ordered by slot start.
		FindByPeriod(ctx context.Context, filter PeriodFilter, exec ...core.DBExecutor) ([]Absence, error)
		// ListByStudent returns every absence of the student, most recent first.
		ListByStudent(ctx context.Context, studentID string) ([]Absence, error)
		// LastUnlinked returns the student's most recent absence no proof links to, or nil.
		LastUnlinked(ctx context.Context, studentID string) (*Absence, error)

		CreateLinks(ctx context.Context, links []Link, exec ...core.DBExecutor) error
		ListLinks(ctx context.Context, filter LinkFilter, exec ...core.DBExecutor) ([]Link, error)

		UpdateJustification(ctx context.Context, updates []JustificationUpdate, exec ...core.DBExecutor) error
	}

	Linker struct {
		repo     Repository
		blocking []string
	}
)

// NewLinker returns a linker that stops offering an absence to new proofs once it is linked
// to a proof whose status is in blocking.
func NewLinker(repo Repository, blocking []string) *Linker {
	return &Linker{repo: repo, blocking: blocking}
}

// ResolveInPeriod returns the IDs of the student's absences a new proof for [start, end] covers:
// slot start within the period, still absent, unjustified and not linked to a blocking proof.
func (l *Linker) ResolveInPeriod(
	ctx context.Context,
	studentID string,
	start, end time.Time,
	exec ...core.DBExecutor,
) ([]string, error) {
	if end.Before(start) {
		return nil, ErrInvalidPeriod
	}

	notJustified := false
	absences, err := l.repo.FindByPeriod(ctx, PeriodFilter{
		StudentID: studentID,
		Start:     start,
		End:       end,
		Status:    StatusAbsent,
		Justified: &notJustified,
		LinkedTo:  l.blocking,
	}, exec...)
	if err != nil {
		return nil, errors.Wrap(err, "finding absences by period")
	}
	if len(absences) == 0 {
		return nil, ErrNoMatchingAbsence
	}

	ids := make([]string, 0, len(absences))
	for _, abs := range absences {
		ids = append(ids, abs.ID)
	}
	return ids, nil
}

// CreateLinks links proofID to every absence in absenceIDs inside the caller's transaction.
func (l *Linker) CreateLinks(ctx context.Context, proofID string, absenceIDs []string, exec core.DBExecutor) error {
	seen := make(map[string]struct{}, len(absenceIDs))
	links := make([]Link, 0, len(absenceIDs))
	now := time.Now().UTC()
	for _, id := range absenceIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		links = append(links, Link{ProofID: proofID, AbsenceID: id, CreatedAt: now})
	}
	if len(links) == 0 {
		return ErrNothingToLink
	}

	if err := l.repo.CreateLinks(ctx, links, exec); err != nil {
		return errors.Wrap(err, "creating links")
	}
	return nil
}

// Links lists the links matching filter along with the linked proofs' current status.
func (l *Linker) Links(ctx context.Context, filter LinkFilter, exec ...core.DBExecutor) ([]Link, error) {
	if filter.IsEmpty() {
		return nil, nil
	}
	links, err := l.repo.ListLinks(ctx, filter, exec...)
	return links, errors.Wrap(err, "listing links")
}
