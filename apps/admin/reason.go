package main

import (
	"fmt"

	"github.com/trezcool/absento/core/reason"
)

// addReason stores a decision reason, reusing an existing label that differs only by case.
func (cli *commandLine) addReason(kind, label string) error {
	k, ok := reason.ParseKind(kind)
	if !ok {
		return reason.ErrInvalidKind
	}
	stored, err := cli.catalog.Add(cli.ctx, k, label)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s reason: %s\n", k, stored)
	return nil
}

func (cli *commandLine) listReasons(kind string) error {
	k, ok := reason.ParseKind(kind)
	if !ok {
		return reason.ErrInvalidKind
	}
	labels, err := cli.catalog.List(cli.ctx, k)
	if err != nil {
		return err
	}
	for _, l := range labels {
		if k == reason.KindAbsence {
			fmt.Fprintf(cli.out, "%s\t%s\n", l, reason.Translate(k, l))
			continue
		}
		fmt.Fprintln(cli.out, l)
	}
	return nil
}
