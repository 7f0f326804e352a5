package inmemdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/absence"
	"github.com/trezcool/absento/core/proof"
	"github.com/trezcool/absento/storage/database/inmem"
	"github.com/trezcool/absento/tests"
)

var errBoom = errors.New("boom")

func TestDB_InTx(t *testing.T) {
	ctx := context.Background()
	slot := time.Date(2024, time.March, 11, 8, 0, 0, 0, time.UTC)

	t.Run("rollback keeps writes made outside the transaction", func(t *testing.T) {
		db := inmemdb.NewDB()
		absences := inmemdb.NewAbsenceRepository(db)
		proofs := inmemdb.NewProofRepository(db)
		kept := testutil.CreateAbsence(t, absences, "s1", slot)

		inside := make(chan struct{})
		outside := make(chan error)
		go func() {
			<-inside
			_, err := absences.CreateAbsence(ctx, absence.Absence{ID: "external", StudentID: "s2", SlotStart: slot})
			if err == nil {
				err = absences.UpdateJustification(ctx, []absence.JustificationUpdate{{AbsenceID: "external", Justified: true}})
			}
			outside <- err
		}()

		err := db.InTx(ctx, func(exec core.DBExecutor) error {
			if _, err := absences.CreateAbsence(ctx, absence.Absence{ID: "internal", StudentID: "s1", SlotStart: slot}, exec); err != nil {
				return err
			}
			if _, err := proofs.CreateProof(ctx, proof.Proof{ID: "p1", StudentID: "s1", Status: proof.StatusPending}, exec); err != nil {
				return err
			}
			if err := absences.CreateLinks(ctx, []absence.Link{{ProofID: "p1", AbsenceID: kept.ID}}, exec); err != nil {
				return err
			}
			if err := absences.UpdateJustification(ctx, []absence.JustificationUpdate{{AbsenceID: kept.ID, Justified: true}}, exec); err != nil {
				return err
			}
			close(inside)
			if err := <-outside; err != nil {
				return err
			}
			return errBoom
		})
		assert.Equal(t, errBoom, err)

		external := testutil.GetAbsence(t, absences, "external")
		assert.True(t, external.Justified)
		assert.False(t, testutil.GetAbsence(t, absences, kept.ID).Justified)

		_, err = absences.GetAbsence(ctx, "internal")
		assert.Equal(t, absence.ErrNotFound, err)
		_, err = proofs.GetProof(ctx, "p1")
		assert.Equal(t, proof.ErrNotFound, err)
		links, err := absences.ListLinks(ctx, absence.LinkFilter{AbsenceIDs: []string{kept.ID}})
		require.NoError(t, err)
		assert.Empty(t, links)
	})

	t.Run("rollback restores updated proofs", func(t *testing.T) {
		db := inmemdb.NewDB()
		proofs := inmemdb.NewProofRepository(db)
		p, err := proofs.CreateProof(ctx, proof.Proof{ID: "p1", StudentID: "s1", Status: proof.StatusPending})
		require.NoError(t, err)

		err = db.InTx(ctx, func(exec core.DBExecutor) error {
			p.Status = proof.StatusAccepted
			if _, err := proofs.UpdateProof(ctx, p, exec); err != nil {
				return err
			}
			return errBoom
		})
		assert.Equal(t, errBoom, err)

		stored, err := proofs.GetProof(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, proof.StatusPending, stored.Status)
		assert.Equal(t, 1, stored.Version)
	})

	t.Run("panic rolls back and propagates", func(t *testing.T) {
		db := inmemdb.NewDB()
		absences := inmemdb.NewAbsenceRepository(db)

		assert.PanicsWithValue(t, "kaboom", func() {
			_ = db.InTx(ctx, func(exec core.DBExecutor) error {
				_, _ = absences.CreateAbsence(ctx, absence.Absence{ID: "internal", StudentID: "s1", SlotStart: slot}, exec)
				panic("kaboom")
			})
		})
		_, err := absences.GetAbsence(ctx, "internal")
		assert.Equal(t, absence.ErrNotFound, err)
	})

	t.Run("commit", func(t *testing.T) {
		db := inmemdb.NewDB()
		absences := inmemdb.NewAbsenceRepository(db)

		err := db.InTx(ctx, func(exec core.DBExecutor) error {
			_, err := absences.CreateAbsence(ctx, absence.Absence{ID: "internal", StudentID: "s1", SlotStart: slot}, exec)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, "s1", testutil.GetAbsence(t, absences, "internal").StudentID)
	})
}
