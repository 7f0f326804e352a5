package main

import (
	"github.com/trezcool/absento/storage/database"
)

var migrateFunc = database.Migrate // mockable

func (cli *commandLine) migrate(args []string) error {
	return migrateFunc(cli.ctx, cli.db, args[0], args[1:]...)
}
