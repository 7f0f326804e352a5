// Package inmemdb is a process local storage backend used by tests and the DEV "inmem" engine.
package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/absence"
	"github.com/trezcool/absento/core/proof"
	"github.com/trezcool/absento/core/reason"
)

type (
	// DB holds every table. mu guards the tables, txMu serializes transactions.
	DB struct {
		mu   sync.RWMutex
		txMu sync.Mutex

		absences map[string]absence.Absence
		links    []absence.Link
		proofs   map[string]proof.Proof
		reasons  []reason.Entry
		failures []proof.NotificationFailure
		pkSeq    int
	}

	// tx is the executor InTx hands to fn. Repositories journal the rows they write through it,
	// so a rollback reverts only what the transaction touched. Its DBExecutor methods are never called.
	tx struct {
		core.DBExecutor

		absences map[string]*absence.Absence // value before the first write, nil if created
		proofs   map[string]*proof.Proof
		links    []absence.Link
	}
)

var _ core.Transactor = (*DB)(nil) // interface compliance check

func NewDB() *DB {
	return &DB{
		absences: make(map[string]absence.Absence),
		proofs:   make(map[string]proof.Proof),
	}
}

// InTx runs fn under the transaction lock. The absences, links and proofs fn wrote through
// its executor are reverted if fn fails or panics. Writes made outside the transaction are kept.
func (db *DB) InTx(_ context.Context, fn func(exec core.DBExecutor) error) (err error) {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	t := &tx{
		absences: make(map[string]*absence.Absence),
		proofs:   make(map[string]*proof.Proof),
	}
	defer func() {
		if r := recover(); r != nil {
			t.rollback(db)
			panic(r)
		}
		if err != nil {
			t.rollback(db)
		}
	}()
	return fn(t)
}

// txOf returns the transaction exec belongs to, or nil outside of InTx.
func txOf(exec []core.DBExecutor) *tx {
	for _, e := range exec {
		if t, ok := e.(*tx); ok {
			return t
		}
	}
	return nil
}

// touchAbsence records the current value of absence id. Callers hold db.mu.
func (t *tx) touchAbsence(db *DB, id string) {
	if t == nil {
		return
	}
	if _, ok := t.absences[id]; ok {
		return
	}
	var prev *absence.Absence
	if abs, ok := db.absences[id]; ok {
		prev = &abs
	}
	t.absences[id] = prev
}

// touchProof records the current value of proof id. Callers hold db.mu.
func (t *tx) touchProof(db *DB, id string) {
	if t == nil {
		return
	}
	if _, ok := t.proofs[id]; ok {
		return
	}
	var prev *proof.Proof
	if p, ok := db.proofs[id]; ok {
		prev = &p
	}
	t.proofs[id] = prev
}

func (t *tx) addLink(key absence.Link) {
	if t != nil {
		t.links = append(t.links, key)
	}
}

func (t *tx) rollback(db *DB) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for id, prev := range t.absences {
		if prev == nil {
			delete(db.absences, id)
		} else {
			db.absences[id] = *prev
		}
	}
	for id, prev := range t.proofs {
		if prev == nil {
			delete(db.proofs, id)
		} else {
			db.proofs[id] = *prev
		}
	}
	if len(t.links) == 0 {
		return
	}
	added := make(map[absence.Link]struct{}, len(t.links))
	for _, key := range t.links {
		added[key] = struct{}{}
	}
	kept := db.links[:0]
	for _, l := range db.links {
		if _, ok := added[absence.Link{ProofID: l.ProofID, AbsenceID: l.AbsenceID}]; !ok {
			kept = append(kept, l)
		}
	}
	db.links = kept
}

func (db *DB) nextPK() int {
	db.pkSeq++
	return db.pkSeq
}
