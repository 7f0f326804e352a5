// Package sqlxrepos implements the workflow repositories on PostgreSQL with sqlx.
package sqlxrepos

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/absento/core"
)

type baseRepository struct {
	exec core.DBExecutor
}

// getExec prefers the caller's transaction over the pool.
func (repo baseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// in expands a query holding "IN (?)" clauses and rebinds it to the executor's placeholders.
func in(exec core.DBExecutor, query string, args ...interface{}) (string, []interface{}, error) {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, errors.Wrap(err, "expanding IN clause")
	}
	return exec.Rebind(q), a, nil
}
