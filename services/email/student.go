package emailsvc

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/absento/core"
	"github.com/trezcool/absento/core/proof"
)

// StudentSink mails students at <student id>@<student domain>.
type StudentSink struct {
	svc    core.EmailService
	domain string
}

var _ proof.NotificationSink = (*StudentSink)(nil) // interface compliance check

func NewStudentSink(svc core.EmailService, conf *core.Config) *StudentSink {
	return &StudentSink{svc: svc, domain: conf.Mail.StudentDomain}
}

func (s *StudentSink) Send(ctx context.Context, studentID string, msg *core.EmailMessage) error {
	if studentID == "" {
		return errors.New("no student to notify")
	}
	addr, err := mail.ParseAddress(studentID + "@" + s.domain)
	if err != nil {
		return errors.Wrapf(err, "building address of student %s", studentID)
	}
	msg.To = []mail.Address{*addr}
	return s.svc.Send(ctx, msg)
}
