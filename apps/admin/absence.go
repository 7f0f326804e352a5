package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/absento/core/absence"
	"github.com/trezcool/absento/core/deadline"
)

const slotLayout = "2006-01-02 15:04"

var (
	nowFunc = time.Now // mockable

	errInvalidStart = errors.New(`start must be RFC 3339 or "YYYY-MM-DD HH:MM"`)
)

func (cli *commandLine) addAbsence(student, slot, start string) error {
	slotStart, err := parseSlotStart(start, cli.conf.Location())
	if err != nil {
		return err
	}
	abs, err := absence.Record(cli.ctx, cli.absences, cli.validate, absence.NewAbsence{
		StudentID:    student,
		CourseSlotID: slot,
		SlotStart:    slotStart,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "absence %s recorded for %s at %s\n", abs.ID, abs.StudentID, abs.SlotStart.In(cli.conf.Location()).Format(slotLayout))
	return nil
}

func parseSlotStart(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(slotLayout, s, loc)
	if err != nil {
		return time.Time{}, errInvalidStart
	}
	return t, nil
}

// deadline prints when student must hand in a proof for their last absence not covered by any proof.
func (cli *commandLine) deadline(student string) error {
	last, err := cli.absences.LastUnlinked(cli.ctx, student)
	if err != nil {
		return errors.Wrap(err, "finding last unjustified absence")
	}
	var lastStart *time.Time
	if last != nil {
		lastStart = &last.SlotStart
	}

	now := nowFunc()
	loc := cli.conf.Location()
	res := deadline.Compute(lastStart, now, loc)
	if !res.Applicable {
		fmt.Fprintf(cli.out, "%s has nothing to justify\n", student)
		return nil
	}

	fmt.Fprintf(cli.out, "last absence: %s\n", res.LastAbsence.Format(slotLayout))
	fmt.Fprintf(cli.out, "return date:  %s\n", res.ReturnDate.Format(slotLayout))
	fmt.Fprintf(cli.out, "deadline:     %s\n", res.Deadline.In(loc).Format(slotLayout))
	if res.IsLate {
		fmt.Fprintln(cli.out, "status:       late")
	} else {
		fmt.Fprintf(cli.out, "status:       %dh remaining\n", res.HoursRemaining(now))
	}
	return nil
}
