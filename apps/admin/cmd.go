package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/absence"
	"github.com/trezcool/absento/core/proof"
	"github.com/trezcool/absento/core/reason"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	ctx      context.Context
	conf     *core.Config
	out      io.Writer
	db       *sql.DB
	validate *validator.Validate
	absences absence.Repository
	failures proof.NotificationFailureRepository
	catalog  *reason.Catalog
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...]                               - run a goose command (up, down, status...)")
	fmt.Fprintln(cli.out, "  addreason -kind rejection|validation -label LABEL       - add a decision reason to the catalog")
	fmt.Fprintln(cli.out, "  listreasons -kind absence|rejection|validation          - list the reasons of a kind")
	fmt.Fprintln(cli.out, "  addabsence -student ID -slot SLOT -start DATETIME       - record an absence")
	fmt.Fprintln(cli.out, "  deadline -student ID                                    - show the submission deadline of a student")
	fmt.Fprintln(cli.out, "  failures [-proof ID]                                    - list failed notifications")
	fmt.Fprintln(cli.out, "  token -id ID -role ROLE [-role ROLE...]                 - issue an API token")
}

// stringsFlag collects a repeated flag.
type stringsFlag []string

func (f *stringsFlag) String() string { return fmt.Sprint(*f) }

func (f *stringsFlag) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addReasonCmd := flag.NewFlagSet("addreason", flag.ContinueOnError)
	addReasonKind := addReasonCmd.String("kind", "", "The reason kind: rejection or validation.")
	addReasonLabel := addReasonCmd.String("label", "", "The reason label.")

	listReasonsCmd := flag.NewFlagSet("listreasons", flag.ContinueOnError)
	listReasonsKind := listReasonsCmd.String("kind", "", "The reason kind: absence, rejection or validation.")

	addAbsenceCmd := flag.NewFlagSet("addabsence", flag.ContinueOnError)
	addAbsenceStudent := addAbsenceCmd.String("student", "", "The student identifier.")
	addAbsenceSlot := addAbsenceCmd.String("slot", "", "The course slot reference.")
	addAbsenceStart := addAbsenceCmd.String("start", "", "The slot start: RFC 3339 or \"YYYY-MM-DD HH:MM\" in the school time zone.")

	deadlineCmd := flag.NewFlagSet("deadline", flag.ContinueOnError)
	deadlineStudent := deadlineCmd.String("student", "", "The student identifier.")

	failuresCmd := flag.NewFlagSet("failures", flag.ContinueOnError)
	failuresProof := failuresCmd.String("proof", "", "Only list the failures of this proof.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenID := tokenCmd.String("id", "", "The student identifier or staff id.")
	var tokenRoles stringsFlag
	tokenCmd.Var(&tokenRoles, "role", "A role, e.g. student: or manager:secretary. Repeatable.")

	for _, fs := range []*flag.FlagSet{addReasonCmd, listReasonsCmd, addAbsenceCmd, deadlineCmd, failuresCmd, tokenCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addreason":
		if err := addReasonCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addReasonKind == "" || *addReasonLabel == "" {
			addReasonCmd.Usage()
			return errHelp
		}
		return cli.addReason(*addReasonKind, *addReasonLabel)
	case "listreasons":
		if err := listReasonsCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *listReasonsKind == "" {
			listReasonsCmd.Usage()
			return errHelp
		}
		return cli.listReasons(*listReasonsKind)
	case "addabsence":
		if err := addAbsenceCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addAbsenceStudent == "" || *addAbsenceSlot == "" || *addAbsenceStart == "" {
			addAbsenceCmd.Usage()
			return errHelp
		}
		return cli.addAbsence(*addAbsenceStudent, *addAbsenceSlot, *addAbsenceStart)
	case "deadline":
		if err := deadlineCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *deadlineStudent == "" {
			deadlineCmd.Usage()
			return errHelp
		}
		return cli.deadline(*deadlineStudent)
	case "failures":
		if err := failuresCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.listFailures(*failuresProof)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *tokenID == "" || len(tokenRoles) == 0 {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenID, tokenRoles)
	default:
		cli.printUsage()
		return errHelp
	}
}
