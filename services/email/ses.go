package emailsvc

import (
	"context"
	"net/mail"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/pkg/errors"

	"github.com/trezcool/absento/core"
)

// sesAPI is the part of the SES v2 client the service uses.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type sesService struct {
	client     sesAPI
	from       mail.Address
	subjPrefix string
}

var _ core.EmailService = (*sesService)(nil)

// NewSESService sends raw MIME messages through Amazon SES, credentials come from the default AWS chain.
func NewSESService(ctx context.Context, conf *core.Config) (core.EmailService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(conf.Mail.SESRegion))
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS config")
	}
	return newSESService(sesv2.NewFromConfig(cfg), conf), nil
}

func newSESService(client sesAPI, conf *core.Config) *sesService {
	return &sesService{
		client:     client,
		from:       conf.DefaultFromEmail(),
		subjPrefix: "[" + conf.AppName + "] ",
	}
}

func (svc sesService) Send(ctx context.Context, msg *core.EmailMessage) error {
	if err := msg.Prepare(); err != nil {
		return err
	}
	raw, err := buildMIME(svc.from, svc.subjPrefix+msg.Subject, msg, time.Now())
	if err != nil {
		return err
	}

	dest := &sestypes.Destination{}
	for _, a := range msg.To {
		dest.ToAddresses = append(dest.ToAddresses, a.Address)
	}
	for _, a := range msg.Cc {
		dest.CcAddresses = append(dest.CcAddresses, a.Address)
	}
	for _, a := range msg.Bcc {
		dest.BccAddresses = append(dest.BccAddresses, a.Address)
	}

	_, err = svc.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(svc.from.Address),
		Destination:      dest,
		Content:          &sestypes.EmailContent{Raw: &sestypes.RawMessage{Data: raw}},
	})
	return errors.Wrap(err, "sending email through SES")
}
