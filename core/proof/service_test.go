package proof_test

import (
	"context"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/absence"
	"github.com/trezcool/absento/core/proof"
	"github.com/trezcool/absento/core/reason"
	"github.com/trezcool/absento/storage/cache"
	"github.com/trezcool/absento/storage/database"
	"github.com/trezcool/absento/storage/database/inmem"
	"github.com/trezcool/absento/storage/database/sqlboiler"
	"github.com/trezcool/absento/storage/database/sqlx"
	"github.com/trezcool/absento/tests"
)

var (
	monday = time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)

	errSinkDown = errors.New("smtp down")
	errDBDown   = errors.New("db down")
)

func at(day, hour int) time.Time {
	return monday.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour)
}

// fakes

type memFileStore struct {
	mu      sync.Mutex
	files   map[string]proof.Upload
	deleted []string
}

func (s *memFileStore) Save(_ context.Context, key string, u proof.Upload) (proof.FileRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = u
	return proof.FileRef{Key: key, Name: u.Name, ContentType: u.ContentType, Size: int64(len(u.Data))}, nil
}

func (s *memFileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *memFileStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

type sentMessage struct {
	student string
	msg     *core.EmailMessage
}

type recordingSink struct {
	mu   sync.Mutex
	err  error
	sent []sentMessage
}

func (s *recordingSink) Send(_ context.Context, student string, msg *core.EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{student: student, msg: msg})
	return nil
}

type stubReceipts struct{}

func (stubReceipts) Render(proof.Receipt) ([]byte, error) { return []byte("%PDF-1.3"), nil }

// failingAbsences breaks every justification update.
type failingAbsences struct {
	absence.Repository
}

func (failingAbsences) UpdateJustification(context.Context, []absence.JustificationUpdate, ...core.DBExecutor) error {
	return errDBDown
}

type env struct {
	svc      *proof.Service
	absences absence.Repository
	proofs   proof.Repository
	failures proof.NotificationFailureRepository
	catalog  *reason.Catalog
	files    *memFileStore
	sink     *recordingSink
	logger   *testutil.Logger
}

type storage struct {
	tx       core.Transactor
	absences absence.Repository
	proofs   proof.Repository
	failures proof.NotificationFailureRepository
	reasons  reason.Repository
}

func setup(t *testing.T, opts ...func(*proof.Deps)) *env {
	t.Helper()
	db := inmemdb.NewDB()
	return newEnv(t, storage{
		tx:       db,
		absences: inmemdb.NewAbsenceRepository(db),
		proofs:   inmemdb.NewProofRepository(db),
		failures: inmemdb.NewNotificationFailureRepository(db),
		reasons:  inmemdb.NewReasonRepository(db),
	}, opts...)
}

// setupPostgres runs the service on the test database.
func setupPostgres(t *testing.T) *env {
	t.Helper()
	db := testutil.OpenDB(t)
	return newEnv(t, storage{
		tx:       database.NewTransactor(db),
		absences: sqlxrepos.NewAbsenceRepository(db),
		proofs:   sqlxrepos.NewProofRepository(db),
		failures: sqlxrepos.NewNotificationFailureRepository(db),
		reasons:  boiledrepos.NewReasonRepository(db),
	})
}

func newEnv(t *testing.T, st storage, opts ...func(*proof.Deps)) *env {
	t.Helper()
	t.Cleanup(proof.SetNowFunc(testutil.FixedClock(at(0, 20))))

	validate, translator := core.NewValidator()
	proof.InitValidators(validate, translator)

	e := &env{
		absences: st.absences,
		proofs:   st.proofs,
		failures: st.failures,
		files:    &memFileStore{files: make(map[string]proof.Upload)},
		sink:     &recordingSink{},
		logger:   testutil.NewLogger(),
	}
	e.catalog = reason.NewCatalog(st.reasons, e.logger)

	deps := proof.Deps{
		Tx:       st.tx,
		Proofs:   e.proofs,
		Absences: e.absences,
		Failures: e.failures,
		Catalog:  e.catalog,
		Files:    e.files,
		Notifier: e.sink,
		Receipts: stubReceipts{},
		Cache:    cache.NewMemory(),
		Validate: validate,
		Logger:   e.logger,
		Conf: &core.Config{
			Timezone: "Europe/Paris",
			Cache:    core.CacheConfig{TTL: time.Minute},
		},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	e.svc = proof.NewService(deps)
	return e
}

func uploads(names ...string) []proof.Upload {
	res := make([]proof.Upload, 0, len(names))
	for _, n := range names {
		res = append(res, proof.Upload{Name: n, ContentType: "application/pdf", Data: []byte("%PDF-1.4 " + n)})
	}
	return res
}

func newProof(student string, start, end time.Time) proof.NewProof {
	return proof.NewProof{
		StudentID:        student,
		AbsenceStartDate: start,
		AbsenceEndDate:   end,
		MainReason:       reason.Illness,
	}
}

// submitMonday records two absences on Monday plus one on Tuesday and submits a proof for Monday.
func (e *env) submitMonday(t *testing.T, student string) (proof.Proof, []absence.Absence) {
	t.Helper()
	absences := []absence.Absence{
		testutil.CreateAbsence(t, e.absences, student, at(0, 8)),
		testutil.CreateAbsence(t, e.absences, student, at(0, 14)),
	}
	_ = testutil.CreateAbsence(t, e.absences, student, at(1, 8))

	p, err := e.svc.Submit(context.Background(), newProof(student, at(0, 8), at(0, 18)), uploads("certificat.pdf"))
	require.NoError(t, err)
	return p, absences
}

// assertJustifiedMatchesAccepted checks that every absence of student is justified iff an accepted proof links to it.
func (e *env) assertJustifiedMatchesAccepted(t *testing.T, student string) {
	t.Helper()
	ctx := context.Background()
	absences, err := e.absences.ListByStudent(ctx, student)
	require.NoError(t, err)
	for _, abs := range absences {
		links, err := e.absences.ListLinks(ctx, absence.LinkFilter{AbsenceIDs: []string{abs.ID}})
		require.NoError(t, err)
		want := false
		for _, l := range links {
			if proof.Status(l.ProofStatus) == proof.StatusAccepted {
				want = true
			}
		}
		assert.Equal(t, want, abs.Justified, "absence %s justified", abs.ID)
	}
}

func (e *env) linkCount(t *testing.T, proofID string) int {
	t.Helper()
	links, err := e.absences.ListLinks(context.Background(), absence.LinkFilter{ProofIDs: []string{proofID}})
	require.NoError(t, err)
	return len(links)
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("links every matching absence", func(t *testing.T) {
		e := setup(t)
		p, absences := e.submitMonday(t, "s1")

		assert.Equal(t, proof.StatusPending, p.Status)
		assert.Equal(t, 1, p.Version)
		assert.Equal(t, at(0, 20), p.SubmissionDate)
		assert.ElementsMatch(t, []string{absences[0].ID, absences[1].ID}, p.AbsenceIDs)
		assert.Equal(t, 2, e.linkCount(t, p.ID))
		require.Len(t, p.Files, 1)
		assert.Equal(t, "certificat.pdf", p.Files[0].Name)
		assert.Equal(t, 1, e.files.count())

		for _, abs := range absences {
			assert.False(t, testutil.GetAbsence(t, e.absences, abs.ID).Justified)
		}
		e.assertJustifiedMatchesAccepted(t, "s1")

		require.Len(t, e.sink.sent, 1)
		sent := e.sink.sent[0]
		assert.Equal(t, "s1", sent.student)
		assert.Equal(t, "proof_submitted", sent.msg.TemplateName)
		assert.True(t, sent.msg.HasAttachments())
	})

	t.Run("already linked absences are not linked twice", func(t *testing.T) {
		e := setup(t)
		_, _ = e.submitMonday(t, "s1")

		_, err := e.svc.Submit(ctx, newProof("s1", at(0, 0), at(0, 23)), uploads("again.pdf"))
		assert.Equal(t, absence.ErrNoMatchingAbsence, errors.Cause(err))
	})

	t.Run("empty period creates no proof", func(t *testing.T) {
		e := setup(t)
		_ = testutil.CreateAbsence(t, e.absences, "s1", at(0, 8))
		_ = testutil.CreateAbsence(t, e.absences, "s1", at(0, 9), func(a *absence.Absence) { a.Justified = true })

		_, err := e.svc.Submit(ctx, newProof("s1", at(0, 9), at(0, 18)), uploads("a.pdf", "b.pdf"))
		assert.Equal(t, absence.ErrNoMatchingAbsence, errors.Cause(err))

		proofs, err := e.proofs.QueryProofs(ctx, proof.QueryFilter{}, nil)
		require.NoError(t, err)
		assert.Empty(t, proofs)
		assert.Zero(t, e.files.count(), "saved files are deleted")
		assert.Len(t, e.files.deleted, 2)
		assert.Empty(t, e.sink.sent)
	})

	t.Run("invalid input", func(t *testing.T) {
		e := setup(t)
		_ = testutil.CreateAbsence(t, e.absences, "s1", at(0, 8))

		other := newProof("s1", at(0, 8), at(0, 18))
		other.MainReason = "Other"
		unknown := newProof("s1", at(0, 8), at(0, 18))
		unknown.MainReason = "hangover"

		tests := []struct {
			name         string
			np           proof.NewProof
			files        []proof.Upload
			wantErr      error
			wantInvalids []string
		}{
			{name: "no file", np: newProof("s1", at(0, 8), at(0, 18)), wantErr: proof.ErrNoFile},
			{name: "inverted period", np: newProof("s1", at(0, 18), at(0, 8)), files: uploads("a.pdf"), wantInvalids: []string{"absence_end_date"}},
			{name: "other without custom reason", np: other, files: uploads("a.pdf"), wantInvalids: []string{"custom_reason"}},
			{name: "unknown reason", np: unknown, files: uploads("a.pdf"), wantInvalids: []string{"main_reason"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := e.svc.Submit(ctx, tt.np, tt.files)
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.Equal(t, tt.wantErr, err)
					return
				}
				var vErrs validator.ValidationErrors
				require.True(t, errors.As(err, &vErrs), "got %v", err)
				fields := make([]string, 0, len(vErrs))
				for _, fe := range vErrs {
					fields = append(fields, fe.Field())
				}
				assert.ElementsMatch(t, tt.wantInvalids, fields)
			})
		}
		assert.Zero(t, e.files.count())
	})

	t.Run("custom student reason", func(t *testing.T) {
		e := setup(t)
		_ = testutil.CreateAbsence(t, e.absences, "s1", at(0, 8))

		np := newProof("s1", at(0, 8), at(0, 18))
		np.MainReason = " AUTRE "
		np.CustomReason = "  Grève des transports "
		p, err := e.svc.Submit(ctx, np, uploads("a.pdf"))
		require.NoError(t, err)
		assert.Equal(t, reason.Other, p.MainReason)
		assert.Equal(t, "Grève des transports", p.CustomReason)
	})

	t.Run("notification failure does not fail the submission", func(t *testing.T) {
		e := setup(t)
		e.sink.err = errSinkDown
		p, _ := e.submitMonday(t, "s1")

		assert.Equal(t, proof.StatusPending, p.Status)
		failures, err := e.failures.ListFailures(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, failures, 1)
		assert.Equal(t, "s1", failures[0].StudentID)
		assert.Equal(t, errSinkDown.Error(), failures[0].Error)
		assert.Len(t, e.logger.Messages(testutil.LevelError), 1)
	})
}

func TestService_Decide(t *testing.T) {
	ctx := context.Background()

	t.Run("reject with a custom reason", func(t *testing.T) {
		e := setup(t)
		p, absences := e.submitMonday(t, "s1")

		got, err := e.svc.Decide(ctx, proof.Decision{
			ProofID:      p.ID,
			ActorID:      "m1",
			Kind:         "reject",
			Reason:       "Autre",
			CustomReason: "Document illisible",
		})
		require.NoError(t, err)
		assert.Equal(t, proof.StatusRejected, got.Status)
		assert.Equal(t, "Document illisible", got.DecisionReason)
		assert.Equal(t, "m1", got.ProcessedBy)
		require.NotNil(t, got.ProcessingDate)
		assert.Equal(t, 2, got.Version)

		rejections, err := e.catalog.List(ctx, reason.KindRejection)
		require.NoError(t, err)
		assert.Contains(t, rejections, "Document illisible")

		for _, abs := range absences {
			assert.False(t, testutil.GetAbsence(t, e.absences, abs.ID).Justified)
		}
		e.assertJustifiedMatchesAccepted(t, "s1")
		require.Len(t, e.sink.sent, 2)
		assert.Equal(t, "proof_decided", e.sink.sent[1].msg.TemplateName)
	})

	t.Run("accept justifies linked absences", func(t *testing.T) {
		e := setup(t)
		p, absences := e.submitMonday(t, "s1")

		got, err := e.svc.Decide(ctx, proof.Decision{ProofID: p.ID, ActorID: "m1", Kind: "accept"})
		require.NoError(t, err)
		assert.Equal(t, proof.StatusAccepted, got.Status)
		assert.Empty(t, got.DecisionReason)

		for _, abs := range absences {
			stored := testutil.GetAbsence(t, e.absences, abs.ID)
			assert.True(t, stored.Justified)
			assert.Equal(t, absence.StatusAbsent, stored.Status, "status is left unchanged")
		}
		e.assertJustifiedMatchesAccepted(t, "s1")
	})

	t.Run("resubmission after rejection links the absences again", func(t *testing.T) {
		e := setup(t)
		first, absences := e.submitMonday(t, "s1")
		_, err := e.svc.Decide(ctx, proof.Decision{ProofID: first.ID, ActorID: "m1", Kind: "reject", Reason: "Document incomplet"})
		require.NoError(t, err)

		second, err := e.svc.Submit(ctx, newProof("s1", at(0, 8), at(0, 18)), uploads("certificat-v2.pdf"))
		require.NoError(t, err)
		assert.Equal(t, proof.StatusPending, second.Status)
		assert.Equal(t, 2, e.linkCount(t, first.ID), "rejected links are kept")
		assert.Equal(t, 2, e.linkCount(t, second.ID))

		views, err := e.svc.StudentAbsences(ctx, "s1")
		require.NoError(t, err)
		byID := make(map[string]proof.AbsenceView, len(views))
		for _, v := range views {
			byID[v.ID] = v
		}
		for _, abs := range absences {
			assert.Equal(t, proof.StatusPending, byID[abs.ID].EffectiveStatus)
			assert.ElementsMatch(t, []string{first.ID, second.ID}, byID[abs.ID].ProofIDs)
		}

		_, err = e.svc.Submit(ctx, newProof("s1", at(0, 8), at(0, 18)), uploads("certificat-v3.pdf"))
		assert.Equal(t, absence.ErrNoMatchingAbsence, errors.Cause(err), "a pending proof still blocks")

		_, err = e.svc.Decide(ctx, proof.Decision{ProofID: second.ID, ActorID: "m1", Kind: "accept"})
		require.NoError(t, err)
		for _, abs := range absences {
			assert.True(t, testutil.GetAbsence(t, e.absences, abs.ID).Justified)
		}
		e.assertJustifiedMatchesAccepted(t, "s1")
	})

	t.Run("request info keeps absences unjustified", func(t *testing.T) {
		e := setup(t)
		p, _ := e.submitMonday(t, "s1")

		got, err := e.svc.Decide(ctx, proof.Decision{ProofID: p.ID, ActorID: "m1", Kind: "request_info", ManagerComment: "Illisible"})
		require.NoError(t, err)
		assert.Equal(t, proof.StatusUnderReview, got.Status)
		assert.Equal(t, "Illisible", got.ManagerComment)
		e.assertJustifiedMatchesAccepted(t, "s1")
	})

	t.Run("accept fails outside pending", func(t *testing.T) {
		for _, prev := range []string{"accept", "reject", "request_info"} {
			t.Run(prev, func(t *testing.T) {
				e := setup(t)
				p, _ := e.submitMonday(t, "s1")
				_, err := e.svc.Decide(ctx, proof.Decision{ProofID: p.ID, ActorID: "m1", Kind: prev, Reason: "Justificatif non valide"})
				require.NoError(t, err)

				_, err = e.svc.Decide(ctx, proof.Decision{ProofID: p.ID, ActorID: "m1", Kind: "accept"})
				assert.Equal(t, proof.ErrInvalidState, err)
				e.assertJustifiedMatchesAccepted(t, "s1")
			})
		}
	})

	t.Run("missing reasons", func(t *testing.T) {
		e := setup(t)
		p, _ := e.submitMonday(t, "s1")

		_, err := e.svc.Decide(ctx, proof.Decision{ProofID: p.ID, ActorID: "m1", Kind: "reject"})
		assert.Equal(t, proof.ErrMissingReason, err)
		_, err = e.svc.Decide(ctx, proof.Decision{ProofID: p.ID, ActorID: "m1", Kind: "reject", Reason: "other"})
		assert.Equal(t, proof.ErrMissingCustomReason, err)

		stored, err := e.proofs.GetProof(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, proof.StatusPending, stored.Status)
	})

	t.Run("decided proofs do not grow the catalog", func(t *testing.T) {
		e := setup(t)
		p, _ := e.submitMonday(t, "s1")
		_, err := e.svc.Decide(ctx, proof.Decision{ProofID: p.ID, ActorID: "m1", Kind: "accept"})
		require.NoError(t, err)

		_, err = e.svc.Decide(ctx, proof.Decision{ProofID: p.ID, ActorID: "m1", Kind: "reject", Reason: "other", CustomReason: "Trop tard"})
		assert.Equal(t, proof.ErrInvalidState, err)
		rejections, err := e.catalog.List(ctx, reason.KindRejection)
		require.NoError(t, err)
		assert.Empty(t, rejections)
	})

	t.Run("unknown proof", func(t *testing.T) {
		e := setup(t)
		_, err := e.svc.Decide(ctx, proof.Decision{ProofID: "nope", ActorID: "m1", Kind: "accept"})
		assert.Equal(t, proof.ErrNotFound, errors.Cause(err))
	})

	t.Run("invalid decision", func(t *testing.T) {
		e := setup(t)
		p, _ := e.submitMonday(t, "s1")
		_, err := e.svc.Decide(ctx, proof.Decision{ProofID: p.ID, ActorID: "m1", Kind: "approve"})
		var vErrs validator.ValidationErrors
		assert.True(t, errors.As(err, &vErrs))
	})

	t.Run("absence update failure rolls the decision back", func(t *testing.T) {
		e := setup(t, func(deps *proof.Deps) {
			deps.Absences = failingAbsences{deps.Absences}
		})
		p, absences := e.submitMonday(t, "s1")

		_, err := e.svc.Decide(ctx, proof.Decision{ProofID: p.ID, ActorID: "m1", Kind: "accept"})
		assert.Equal(t, errDBDown, errors.Cause(err))

		stored, err := e.proofs.GetProof(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, proof.StatusPending, stored.Status)
		assert.Equal(t, 1, stored.Version)
		for _, abs := range absences {
			assert.False(t, testutil.GetAbsence(t, e.absences, abs.ID).Justified)
		}
		e.assertJustifiedMatchesAccepted(t, "s1")
	})

	t.Run("stale version", func(t *testing.T) {
		e := setup(t)
		p, _ := e.submitMonday(t, "s1")

		_, err := e.svc.Decide(ctx, proof.Decision{ProofID: p.ID, ActorID: "m1", Kind: "request_info", Version: p.Version})
		require.NoError(t, err)

		_, err = e.svc.Decide(ctx, proof.Decision{ProofID: p.ID, ActorID: "m2", Kind: "accept", Version: p.Version})
		assert.Equal(t, core.ErrConcurrentModification, errors.Cause(err))
		e.assertJustifiedMatchesAccepted(t, "s1")
	})
}

func TestService_Edit(t *testing.T) {
	ctx := context.Background()

	underReview := func(t *testing.T, e *env) (proof.Proof, []absence.Absence) {
		t.Helper()
		p, absences := e.submitMonday(t, "s1")
		p, err := e.svc.Decide(ctx, proof.Decision{ProofID: p.ID, ActorID: "m1", Kind: "request_info"})
		require.NoError(t, err)
		return p, absences
	}

	t.Run("round trip", func(t *testing.T) {
		e := setup(t)
		p, absences := underReview(t, e)

		// drifted row: resubmission must put it back to absent, unjustified
		require.NoError(t, e.absences.UpdateJustification(ctx, []absence.JustificationUpdate{
			{AbsenceID: absences[0].ID, Justified: true, Status: absence.StatusExcused},
		}))

		edited, err := e.svc.Edit(ctx, proof.EditProof{
			ProofID:        p.ID,
			StudentID:      "s1",
			MainReason:     reason.MedicalAppointment,
			StudentComment: "Voici le bon certificat",
			RemoveFiles:    []string{p.Files[0].Key},
		}, uploads("certificat-v2.pdf"))
		require.NoError(t, err)
		assert.Equal(t, proof.StatusPending, edited.Status)
		assert.Equal(t, reason.MedicalAppointment, edited.MainReason)
		require.Len(t, edited.Files, 1)
		assert.Equal(t, "certificat-v2.pdf", edited.Files[0].Name)

		for _, abs := range absences {
			stored := testutil.GetAbsence(t, e.absences, abs.ID)
			assert.False(t, stored.Justified)
			assert.Equal(t, absence.StatusAbsent, stored.Status)
		}
		e.assertJustifiedMatchesAccepted(t, "s1")

		accepted, err := e.svc.Decide(ctx, proof.Decision{ProofID: p.ID, ActorID: "m1", Kind: "accept"})
		require.NoError(t, err)
		assert.Equal(t, proof.StatusAccepted, accepted.Status)
		for _, abs := range absences {
			assert.True(t, testutil.GetAbsence(t, e.absences, abs.ID).Justified)
		}
		assert.Equal(t, 2, e.linkCount(t, p.ID), "links are not re-created")
		e.assertJustifiedMatchesAccepted(t, "s1")
	})

	t.Run("not owner", func(t *testing.T) {
		e := setup(t)
		p, _ := underReview(t, e)
		_, err := e.svc.Edit(ctx, proof.EditProof{ProofID: p.ID, StudentID: "s2", MainReason: reason.Illness}, nil)
		assert.Equal(t, proof.ErrNotOwner, err)
	})

	t.Run("not under review", func(t *testing.T) {
		e := setup(t)
		p, _ := e.submitMonday(t, "s1")
		_, err := e.svc.Edit(ctx, proof.EditProof{ProofID: p.ID, StudentID: "s1", MainReason: reason.Illness}, nil)
		assert.Equal(t, proof.ErrNotUnderReview, err)
	})

	t.Run("removing every file", func(t *testing.T) {
		e := setup(t)
		p, _ := underReview(t, e)

		_, err := e.svc.Edit(ctx, proof.EditProof{
			ProofID:     p.ID,
			StudentID:   "s1",
			MainReason:  reason.Illness,
			RemoveFiles: []string{p.Files[0].Key},
		}, nil)
		assert.Equal(t, proof.ErrNoFile, err)

		stored, err := e.proofs.GetProof(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, proof.StatusUnderReview, stored.Status)
		assert.Len(t, stored.Files, 1)
	})

	t.Run("resubmission keeps absences covered by another accepted proof", func(t *testing.T) {
		e := setup(t)
		p, absences := underReview(t, e)

		// legacy double link: an older accepted proof covers the first absence too
		legacy, err := e.proofs.CreateProof(ctx, proof.Proof{ID: "legacy", StudentID: "s1", Status: proof.StatusAccepted, MainReason: reason.Illness})
		require.NoError(t, err)
		require.NoError(t, e.absences.CreateLinks(ctx, []absence.Link{{ProofID: legacy.ID, AbsenceID: absences[0].ID}}))
		require.NoError(t, e.absences.UpdateJustification(ctx, []absence.JustificationUpdate{{AbsenceID: absences[0].ID, Justified: true}}))

		_, err = e.svc.Edit(ctx, proof.EditProof{ProofID: p.ID, StudentID: "s1", MainReason: reason.Illness}, nil)
		require.NoError(t, err)

		assert.True(t, testutil.GetAbsence(t, e.absences, absences[0].ID).Justified)
		assert.False(t, testutil.GetAbsence(t, e.absences, absences[1].ID).Justified)
		e.assertJustifiedMatchesAccepted(t, "s1")
	})
}

func TestService_ReadSide(t *testing.T) {
	ctx := context.Background()

	t.Run("student absences carry their effective status", func(t *testing.T) {
		e := setup(t)
		p, absences := e.submitMonday(t, "s1")

		views, err := e.svc.StudentAbsences(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, views, 3)
		byID := make(map[string]proof.AbsenceView, len(views))
		for _, v := range views {
			byID[v.ID] = v
		}
		assert.Equal(t, proof.StatusPending, byID[absences[0].ID].EffectiveStatus)
		assert.Equal(t, []string{p.ID}, byID[absences[0].ID].ProofIDs)

		_, err = e.svc.Decide(ctx, proof.Decision{ProofID: p.ID, ActorID: "m1", Kind: "accept"})
		require.NoError(t, err)

		views, err = e.svc.StudentAbsences(ctx, "s1")
		require.NoError(t, err)
		for _, v := range views {
			if v.ID == absences[0].ID || v.ID == absences[1].ID {
				assert.Equal(t, proof.StatusAccepted, v.EffectiveStatus, "cache is invalidated on decision")
				assert.True(t, v.Justified)
			} else {
				assert.Equal(t, proof.Status(""), v.EffectiveStatus)
				assert.Empty(t, v.ProofIDs)
			}
		}
	})

	t.Run("deadline warning", func(t *testing.T) {
		e := setup(t)
		_ = testutil.CreateAbsence(t, e.absences, "s1", at(-3, 10)) // friday

		res, err := e.svc.DeadlineWarning(ctx, "s1")
		require.NoError(t, err)
		require.True(t, res.Applicable)
		paris, err := time.LoadLocation("Europe/Paris")
		require.NoError(t, err)
		assert.True(t, res.Deadline.Equal(time.Date(2024, time.March, 13, 8, 0, 0, 0, paris)))
		assert.False(t, res.IsLate)

		_, err = e.svc.Submit(ctx, newProof("s1", at(-3, 0), at(-3, 23)), uploads("a.pdf"))
		require.NoError(t, err)

		res, err = e.svc.DeadlineWarning(ctx, "s1")
		require.NoError(t, err)
		assert.False(t, res.Applicable, "covered absences need no warning")
	})

	t.Run("deadline warning sees newly recorded absences", func(t *testing.T) {
		e := setup(t)
		res, err := e.svc.DeadlineWarning(ctx, "s1")
		require.NoError(t, err)
		require.False(t, res.Applicable)

		_ = testutil.CreateAbsence(t, e.absences, "s1", at(0, 8))

		res, err = e.svc.DeadlineWarning(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, res.Applicable)
	})

	t.Run("get and query", func(t *testing.T) {
		e := setup(t)
		p1, _ := e.submitMonday(t, "s1")
		p2, _ := e.submitMonday(t, "s2")
		_, err := e.svc.Decide(ctx, proof.Decision{ProofID: p2.ID, ActorID: "m1", Kind: "accept"})
		require.NoError(t, err)

		got, err := e.svc.Get(ctx, p1.ID)
		require.NoError(t, err)
		assert.Equal(t, p1.ID, got.ID)
		assert.Len(t, got.AbsenceIDs, 2)

		_, err = e.svc.Get(ctx, "nope")
		assert.Equal(t, proof.ErrNotFound, errors.Cause(err))

		accepted, err := e.svc.Query(ctx, proof.QueryFilter{Status: "accepted"}, nil)
		require.NoError(t, err)
		require.Len(t, accepted, 1)
		assert.Equal(t, p2.ID, accepted[0].ID)

		all, err := e.svc.Query(ctx, proof.QueryFilter{}, []core.DBOrdering{{Field: "student_id", Ascending: true}})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "s1", all[0].StudentID)
	})
}

func TestService_Postgres(t *testing.T) {
	ctx := context.Background()
	e := setupPostgres(t)
	student := testutil.UniqueID("s")

	first, absences := e.submitMonday(t, student)
	assert.Equal(t, 2, e.linkCount(t, first.ID))

	_, err := e.svc.Submit(ctx, newProof(student, at(0, 8), at(0, 18)), uploads("doublon.pdf"))
	assert.Equal(t, absence.ErrNoMatchingAbsence, errors.Cause(err))

	_, err = e.svc.Decide(ctx, proof.Decision{ProofID: first.ID, ActorID: "m1", Kind: "reject", Reason: "Document incomplet"})
	require.NoError(t, err)

	second, err := e.svc.Submit(ctx, newProof(student, at(0, 8), at(0, 18)), uploads("certificat-v2.pdf"))
	require.NoError(t, err)
	assert.Equal(t, 2, e.linkCount(t, second.ID))

	_, err = e.svc.Decide(ctx, proof.Decision{ProofID: second.ID, ActorID: "m1", Kind: "accept", Version: second.Version})
	require.NoError(t, err)
	_, err = e.svc.Decide(ctx, proof.Decision{ProofID: second.ID, ActorID: "m2", Kind: "reject", Reason: "Document incomplet", Version: second.Version})
	assert.Error(t, err)

	for _, abs := range absences {
		assert.True(t, testutil.GetAbsence(t, e.absences, abs.ID).Justified)
	}
	e.assertJustifiedMatchesAccepted(t, student)
}
