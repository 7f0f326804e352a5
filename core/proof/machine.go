package proof

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/absence"
)

type absenceEffect int

const (
	effectNone    absenceEffect = iota
	effectJustify               // linked absences become justified
	effectRevert                // linked absences go back to absent, unjustified
)

type transition struct {
	to     Status
	effect absenceEffect
}

// transitionsTable maps a state and an event to the next state. Accepted and rejected proofs are final.
var transitionsTable = map[Status]map[Event]transition{
	"": {
		EventSubmit: {to: StatusPending},
	},
	StatusPending: {
		EventAccept:      {to: StatusAccepted, effect: effectJustify},
		EventReject:      {to: StatusRejected},
		EventRequestInfo: {to: StatusUnderReview},
	},
	StatusUnderReview: {
		EventResubmit: {to: StatusPending, effect: effectRevert},
	},
}

func lookup(from Status, ev Event) (transition, error) {
	if tr, ok := transitionsTable[from][ev]; ok {
		return tr, nil
	}
	if ev == EventResubmit {
		return transition{}, ErrNotUnderReview
	}
	return transition{}, ErrInvalidState
}

// TransitionFor returns the state a proof in from reaches on ev.
func TransitionFor(from Status, ev Event) (Status, error) {
	tr, err := lookup(from, ev)
	return tr.to, err
}

// Machine applies transitions to proofs and propagates them to the linked absences.
// Every call must run inside the caller's transaction.
type Machine struct {
	proofs   Repository
	absences absence.Repository
	linker   *absence.Linker
}

func NewMachine(proofs Repository, absences absence.Repository) *Machine {
	return &Machine{
		proofs:   proofs,
		absences: absences,
		linker:   absence.NewLinker(absences, LinkBlocking()),
	}
}

// Create persists p as a new pending proof linked to absenceIDs.
func (m *Machine) Create(ctx context.Context, p Proof, absenceIDs []string, exec core.DBExecutor) (Proof, error) {
	if len(absenceIDs) == 0 {
		return Proof{}, absence.ErrNoMatchingAbsence
	}
	to, err := TransitionFor("", EventSubmit)
	if err != nil {
		return Proof{}, err
	}
	p.Status = to
	p.Version = 1

	p, err = m.proofs.CreateProof(ctx, p, exec)
	if err != nil {
		return Proof{}, errors.Wrap(err, "creating proof")
	}
	if err := m.linker.CreateLinks(ctx, p.ID, absenceIDs, exec); err != nil {
		return Proof{}, err
	}
	p.AbsenceIDs = absenceIDs
	return p, nil
}

// Apply moves p along ev, saves it (checking p.Version) and updates its linked absences.
func (m *Machine) Apply(ctx context.Context, p Proof, ev Event, exec core.DBExecutor) (Proof, error) {
	tr, err := lookup(p.Status, ev)
	if err != nil {
		return Proof{}, err
	}
	p.Status = tr.to

	p, err = m.proofs.UpdateProof(ctx, p, exec)
	if err != nil {
		return Proof{}, errors.Wrap(err, "updating proof")
	}

	own, err := m.linker.Links(ctx, absence.LinkFilter{ProofIDs: []string{p.ID}}, exec)
	if err != nil {
		return Proof{}, err
	}
	p.AbsenceIDs = make([]string, 0, len(own))
	for _, l := range own {
		p.AbsenceIDs = append(p.AbsenceIDs, l.AbsenceID)
	}

	if tr.effect == effectNone || len(p.AbsenceIDs) == 0 {
		return p, nil
	}
	if err := m.syncAbsences(ctx, p.AbsenceIDs, tr.effect, exec); err != nil {
		return Proof{}, err
	}
	return p, nil
}

// syncAbsences recomputes Justified from every link of the given absences,
// so an absence also covered by another accepted proof stays justified.
func (m *Machine) syncAbsences(ctx context.Context, absenceIDs []string, effect absenceEffect, exec core.DBExecutor) error {
	links, err := m.linker.Links(ctx, absence.LinkFilter{AbsenceIDs: absenceIDs}, exec)
	if err != nil {
		return err
	}
	justified := make(map[string]bool, len(absenceIDs))
	for _, l := range links {
		if Status(l.ProofStatus) == StatusAccepted {
			justified[l.AbsenceID] = true
		}
	}

	updates := make([]absence.JustificationUpdate, 0, len(absenceIDs))
	for _, id := range absenceIDs {
		upd := absence.JustificationUpdate{AbsenceID: id, Justified: justified[id]}
		if effect == effectRevert {
			upd.Status = absence.StatusAbsent
		}
		updates = append(updates, upd)
	}
	if err := m.absences.UpdateJustification(ctx, updates, exec); err != nil {
		return errors.Wrap(err, "updating absences")
	}
	return nil
}
