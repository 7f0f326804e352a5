package main

import (
	"fmt"
	"text/tabwriter"
	"time"
)

func (cli *commandLine) listFailures(proofID string) error {
	failures, err := cli.failures.ListFailures(cli.ctx, proofID)
	if err != nil {
		return err
	}
	if len(failures) == 0 {
		fmt.Fprintln(cli.out, "no failed notification")
		return nil
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tPROOF\tSTUDENT\tCHANNEL\tERROR")
	for _, nf := range failures {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", nf.CreatedAt.Format(time.RFC3339), nf.ProofID, nf.StudentID, nf.Channel, nf.Error)
	}
	return w.Flush()
}
