package main

import (
	"fmt"

	echoapi "github.com/trezcool/absento/apps/api/echo"
	"github.com/trezcool/absento/core"
)

// token issues an API token. Identities come from the school directory, so no lookup is done.
func (cli *commandLine) token(id string, roles []string) error {
	token, err := echoapi.GenerateToken(echoapi.NewClaims(core.Actor{ID: id, Roles: roles}, cli.conf), cli.conf)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
