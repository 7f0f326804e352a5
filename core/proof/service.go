// Package proof implements the proof justification workflow: submission, manager decisions and student edits.
package proof

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/absence"
	"github.com/trezcool/absento/core/deadline"
	"github.com/trezcool/absento/core/reason"
)

var nowFunc = time.Now

const (
	tmplSubmitted   = "proof_submitted"
	tmplDecided     = "proof_decided"
	tmplResubmitted = "proof_resubmitted"

	channelEmail = "email"
	dateLayout   = "02/01/2006 15:04"
)

type (
	// Deps are the collaborators of the workflow Service. Receipts and Cache are optional.
	Deps struct {
		Tx       core.Transactor
		Proofs   Repository
		Absences absence.Repository
		Failures NotificationFailureRepository
		Catalog  *reason.Catalog
		Files    FileStore
		Notifier NotificationSink
		Receipts ReceiptRenderer
		Cache    core.Cache
		Validate *validator.Validate
		Logger   core.Logger
		Conf     *core.Config
	}

	Service struct {
		Deps
		machine *Machine
		linker  *absence.Linker
	}

	// AbsenceView is an absence with the status of the proofs linked to it.
	AbsenceView struct {
		absence.Absence
		EffectiveStatus Status   `json:"effective_status"`
		ProofIDs        []string `json:"proof_ids"`
	}
)

func NewService(deps Deps) *Service {
	return &Service{
		Deps:    deps,
		machine: NewMachine(deps.Proofs, deps.Absences),
		linker:  absence.NewLinker(deps.Absences, LinkBlocking()),
	}
}

// Submit stores the uploaded files and creates a pending proof linked to every unjustified,
// not yet covered absence of the student within the period.
func (svc *Service) Submit(ctx context.Context, np NewProof, uploads []Upload) (Proof, error) {
	np.Clean()
	if err := svc.Validate.Struct(np); err != nil {
		return Proof{}, err
	}
	if np.StudentID == "" {
		return Proof{}, errors.New("submitting proof: missing student")
	}
	if len(uploads) == 0 {
		return Proof{}, ErrNoFile
	}
	files, err := svc.saveFiles(ctx, np.StudentID, uploads)
	if err != nil {
		return Proof{}, err
	}

	now := nowFunc().UTC()
	p := Proof{
		ID:               uuid.New().String(),
		StudentID:        np.StudentID,
		AbsenceStartDate: np.AbsenceStartDate.UTC(),
		AbsenceEndDate:   np.AbsenceEndDate.UTC(),
		MainReason:       np.MainReason,
		Files:            files,
		StudentComment:   np.StudentComment,
		SubmissionDate:   now,
		UpdatedAt:        now,
	}
	if reason.IsOther(np.MainReason) {
		p.MainReason = reason.Other
		p.CustomReason = np.CustomReason
	}

	err = svc.Tx.InTx(ctx, func(exec core.DBExecutor) error {
		ids, err := svc.linker.ResolveInPeriod(ctx, p.StudentID, p.AbsenceStartDate, p.AbsenceEndDate, exec)
		if err != nil {
			return err
		}
		p, err = svc.machine.Create(ctx, p, ids, exec)
		return err
	})
	if err != nil {
		svc.deleteFiles(ctx, files)
		return Proof{}, err
	}

	svc.invalidate(p)
	svc.notify(ctx, p, tmplSubmitted, "Justificatif reçu", true)
	return p, nil
}

// Decide applies a manager's decision to a pending proof.
func (svc *Service) Decide(ctx context.Context, d Decision) (Proof, error) {
	d.Clean()
	if err := svc.Validate.Struct(d); err != nil {
		return Proof{}, err
	}
	ev := d.Event()

	// Checked before the catalog grows: a doomed decision must not add reasons.
	p, err := svc.Proofs.GetProof(ctx, d.ProofID)
	if err != nil {
		return Proof{}, errors.Wrap(err, "getting proof")
	}
	if d.Version != 0 && d.Version != p.Version {
		return Proof{}, core.ErrConcurrentModification
	}
	if _, err := TransitionFor(p.Status, ev); err != nil {
		return Proof{}, err
	}

	label, err := svc.decisionReason(ctx, d)
	if err != nil {
		return Proof{}, err
	}

	err = svc.Tx.InTx(ctx, func(exec core.DBExecutor) error {
		cur, err := svc.Proofs.GetProof(ctx, d.ProofID, exec)
		if err != nil {
			return errors.Wrap(err, "getting proof")
		}
		if d.Version != 0 {
			cur.Version = d.Version
		}
		now := nowFunc().UTC()
		cur.DecisionReason = label
		cur.ManagerComment = d.ManagerComment
		cur.ProcessedBy = d.ActorID
		cur.ProcessingDate = &now
		cur.UpdatedAt = now

		p, err = svc.machine.Apply(ctx, cur, ev, exec)
		return err
	})
	if err != nil {
		return Proof{}, err
	}

	svc.invalidate(p)
	svc.notify(ctx, p, tmplDecided, "Votre justificatif a été traité", false)
	return p, nil
}

// decisionReason resolves the reason recorded on the proof.
// A custom reason is stored in the catalog first and its canonical label is returned.
func (svc *Service) decisionReason(ctx context.Context, d Decision) (string, error) {
	if d.Reason == "" {
		if d.Event() == EventReject {
			return "", ErrMissingReason
		}
		return "", nil
	}
	if !reason.IsOther(d.Reason) {
		return d.Reason, nil
	}
	if d.CustomReason == "" {
		return "", ErrMissingCustomReason
	}

	kind := reason.KindRejection
	if d.Event() == EventAccept {
		kind = reason.KindValidation
	}
	label, err := svc.Catalog.Add(ctx, kind, d.CustomReason)
	if err != nil {
		if err == reason.ErrInvalidReason {
			return "", ErrMissingCustomReason
		}
		return "", err
	}
	return label, nil
}

// Edit resubmits a proof under review on behalf of its owner.
// New uploads are appended and the files listed in RemoveFiles are dropped from the proof.
func (svc *Service) Edit(ctx context.Context, ep EditProof, uploads []Upload) (Proof, error) {
	ep.Clean()
	if err := svc.Validate.Struct(ep); err != nil {
		return Proof{}, err
	}

	p, err := svc.Proofs.GetProof(ctx, ep.ProofID)
	if err != nil {
		return Proof{}, errors.Wrap(err, "getting proof")
	}
	if !p.IsOwnedBy(ep.StudentID) {
		return Proof{}, ErrNotOwner
	}
	if p.Status != StatusUnderReview {
		return Proof{}, ErrNotUnderReview
	}
	if ep.Version != 0 && ep.Version != p.Version {
		return Proof{}, core.ErrConcurrentModification
	}

	added, err := svc.saveFiles(ctx, p.StudentID, uploads)
	if err != nil {
		return Proof{}, err
	}

	err = svc.Tx.InTx(ctx, func(exec core.DBExecutor) error {
		cur, err := svc.Proofs.GetProof(ctx, ep.ProofID, exec)
		if err != nil {
			return errors.Wrap(err, "getting proof")
		}
		if !cur.IsOwnedBy(ep.StudentID) {
			return ErrNotOwner
		}
		if ep.Version != 0 {
			cur.Version = ep.Version
		}

		cur.MainReason = ep.MainReason
		cur.CustomReason = ""
		if reason.IsOther(ep.MainReason) {
			cur.MainReason = reason.Other
			cur.CustomReason = ep.CustomReason
		}
		cur.StudentComment = ep.StudentComment
		cur.Files = append(keepFiles(cur.Files, ep.RemoveFiles), added...)
		if len(cur.Files) == 0 {
			return ErrNoFile
		}
		cur.UpdatedAt = nowFunc().UTC()

		p, err = svc.machine.Apply(ctx, cur, EventResubmit, exec)
		return err
	})
	if err != nil {
		svc.deleteFiles(ctx, added)
		return Proof{}, err
	}

	svc.invalidate(p)
	svc.notify(ctx, p, tmplResubmitted, "Justificatif modifié", false)
	return p, nil
}

func keepFiles(files []FileRef, removed []string) []FileRef {
	if len(removed) == 0 {
		return files
	}
	drop := make(map[string]struct{}, len(removed))
	for _, key := range removed {
		drop[key] = struct{}{}
	}
	kept := make([]FileRef, 0, len(files))
	for _, f := range files {
		if _, ok := drop[f.Key]; !ok {
			kept = append(kept, f)
		}
	}
	return kept
}

func (svc *Service) saveFiles(ctx context.Context, studentID string, uploads []Upload) ([]FileRef, error) {
	refs := make([]FileRef, 0, len(uploads))
	for _, u := range uploads {
		key := fmt.Sprintf("proofs/%s/%s%s", studentID, uuid.New().String(), u.Ext())
		ref, err := svc.Files.Save(ctx, key, u)
		if err != nil {
			svc.deleteFiles(ctx, refs)
			return nil, errors.Wrapf(err, "saving file %q", u.Name)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// deleteFiles removes files of an aborted use case. Failures are only logged.
func (svc *Service) deleteFiles(ctx context.Context, refs []FileRef) {
	for _, ref := range refs {
		if err := svc.Files.Delete(ctx, ref.Key); err != nil {
			svc.Logger.Warn(fmt.Sprintf("proof: deleting orphan file %s", ref.Key), err)
		}
	}
}

// Read side

func proofCacheKey(id string) string            { return "proof:" + id }
func studentCachePrefix(studentID string) string { return "student:" + studentID + ":" }

func (svc *Service) cacheGet(key string) (interface{}, bool) {
	if svc.Cache == nil {
		return nil, false
	}
	return svc.Cache.Get(key)
}

func (svc *Service) cacheSet(key string, value interface{}) {
	if svc.Cache == nil {
		return
	}
	svc.Cache.Set(key, value, svc.Conf.Cache.TTL)
}

func (svc *Service) invalidate(p Proof) {
	if svc.Cache == nil {
		return
	}
	svc.Cache.DeletePrefix(proofCacheKey(p.ID))
	svc.Cache.DeletePrefix(studentCachePrefix(p.StudentID))
}

func (svc *Service) Get(ctx context.Context, id string) (Proof, error) {
	key := proofCacheKey(id)
	if v, ok := svc.cacheGet(key); ok {
		if p, ok := v.(Proof); ok {
			return p, nil
		}
	}

	p, err := svc.Proofs.GetProof(ctx, id)
	if err != nil {
		return Proof{}, errors.Wrap(err, "getting proof")
	}
	links, err := svc.linker.Links(ctx, absence.LinkFilter{ProofIDs: []string{id}})
	if err != nil {
		return Proof{}, err
	}
	p.AbsenceIDs = make([]string, 0, len(links))
	for _, l := range links {
		p.AbsenceIDs = append(p.AbsenceIDs, l.AbsenceID)
	}

	svc.cacheSet(key, p)
	return p, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Proof, error) {
	filter.Clean()
	proofs, err := svc.Proofs.QueryProofs(ctx, filter, core.CleanOrdering(ordering, Orderings))
	return proofs, errors.Wrap(err, "querying proofs")
}

// StudentAbsences lists the student's absences along with their effective status.
func (svc *Service) StudentAbsences(ctx context.Context, studentID string) ([]AbsenceView, error) {
	key := studentCachePrefix(studentID) + "absences"
	if v, ok := svc.cacheGet(key); ok {
		if views, ok := v.([]AbsenceView); ok {
			return views, nil
		}
	}

	absences, err := svc.Absences.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "listing absences")
	}
	ids := make([]string, 0, len(absences))
	for _, abs := range absences {
		ids = append(ids, abs.ID)
	}
	links, err := svc.linker.Links(ctx, absence.LinkFilter{AbsenceIDs: ids})
	if err != nil {
		return nil, err
	}

	statuses := make(map[string][]Status, len(absences))
	proofIDs := make(map[string][]string, len(absences))
	for _, l := range links {
		statuses[l.AbsenceID] = append(statuses[l.AbsenceID], Status(l.ProofStatus))
		proofIDs[l.AbsenceID] = append(proofIDs[l.AbsenceID], l.ProofID)
	}

	views := make([]AbsenceView, 0, len(absences))
	for _, abs := range absences {
		pids := proofIDs[abs.ID]
		if pids == nil {
			pids = []string{}
		}
		views = append(views, AbsenceView{
			Absence:         abs,
			EffectiveStatus: EffectiveStatus(statuses[abs.ID]),
			ProofIDs:        pids,
		})
	}

	svc.cacheSet(key, views)
	return views, nil
}

// DeadlineWarning computes the submission deadline for the student's last absence not covered by any proof.
func (svc *Service) DeadlineWarning(ctx context.Context, studentID string) (deadline.Result, error) {
	key := studentCachePrefix(studentID) + "deadline"
	if v, ok := svc.cacheGet(key); ok {
		if res, ok := v.(deadline.Result); ok {
			res.IsLate = res.Applicable && nowFunc().After(res.Deadline)
			return res, nil
		}
	}

	last, err := svc.Absences.LastUnlinked(ctx, studentID)
	if err != nil {
		return deadline.Result{}, errors.Wrap(err, "finding last unjustified absence")
	}
	var lastStart *time.Time
	if last != nil {
		lastStart = &last.SlotStart
	}

	res := deadline.Compute(lastStart, nowFunc(), svc.Conf.Location())
	// absences are recorded outside of this service, so "no warning" must not be cached
	if res.Applicable {
		svc.cacheSet(key, res)
	}
	return res, nil
}

// Notifications

type notificationData struct {
	ProofID      string
	Start        string
	End          string
	Reason       string
	Outcome      string
	Comment      string
	NeedsAction  bool
	AbsenceCount int
}

var outcomes = map[Status]string{
	StatusPending:     "en attente de traitement",
	StatusUnderReview: "informations complémentaires demandées",
	StatusAccepted:    "accepté",
	StatusRejected:    "refusé",
}

// notify tells the student about p. Failures are logged and recorded, never returned.
func (svc *Service) notify(ctx context.Context, p Proof, tmpl, subject string, withReceipt bool) {
	loc := svc.Conf.Location()
	data := notificationData{
		ProofID:      p.ID,
		Start:        p.AbsenceStartDate.In(loc).Format(dateLayout),
		End:          p.AbsenceEndDate.In(loc).Format(dateLayout),
		Reason:       svc.reasonLabel(p),
		Outcome:      outcomes[p.Status],
		Comment:      p.ManagerComment,
		NeedsAction:  p.Status == StatusUnderReview,
		AbsenceCount: len(p.AbsenceIDs),
	}
	if tmpl == tmplDecided {
		data.Reason = reason.Translate(reason.KindRejection, p.DecisionReason)
	}

	msg := &core.EmailMessage{
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: data,
	}

	if withReceipt && svc.Receipts != nil {
		pdf, err := svc.Receipts.Render(Receipt{Proof: p, ReasonLabel: data.Reason, AbsenceCount: data.AbsenceCount})
		if err == nil {
			err = msg.Attach(bytes.NewReader(pdf), "recu-"+p.ID+".pdf", "application/pdf")
		}
		if err != nil {
			svc.Logger.Warn(fmt.Sprintf("proof: rendering receipt of %s", p.ID), err)
		}
	}

	if err := svc.Notifier.Send(ctx, p.StudentID, msg); err != nil {
		svc.Logger.Error(fmt.Sprintf("proof: notifying %s about %s", p.StudentID, p.ID), err)
		nf := NotificationFailure{
			ProofID:   p.ID,
			StudentID: p.StudentID,
			Channel:   channelEmail,
			Subject:   subject,
			Error:     err.Error(),
			CreatedAt: nowFunc().UTC(),
		}
		if svc.Failures == nil {
			return
		}
		if err := svc.Failures.RecordFailure(ctx, nf); err != nil {
			svc.Logger.Error("proof: recording notification failure", err)
		}
	}
}

func (svc *Service) reasonLabel(p Proof) string {
	if reason.IsOther(p.MainReason) && p.CustomReason != "" {
		return p.CustomReason
	}
	return reason.Translate(reason.KindAbsence, p.MainReason)
}
