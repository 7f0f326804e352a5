package emailsvc

import (
	"bytes"
	"encoding/base64"
	"net/mail"
	"time"

	"github.com/jordan-wright/email"
	"github.com/pkg/errors"

	"github.com/trezcool/absento/core"
)

// buildMIME writes msg as a raw RFC 5322 message. msg must be rendered.
// Bcc recipients are left out of the headers and must be given to the transport.
func buildMIME(from mail.Address, subject string, msg *core.EmailMessage, date time.Time) ([]byte, error) {
	e := email.NewEmail()
	e.From = from.String()
	e.To = addressList(msg.To)
	e.Cc = addressList(msg.Cc)
	e.Bcc = addressList(msg.Bcc)
	e.Subject = subject
	e.Text = []byte(msg.TextContent)
	if msg.HTMLContent != "" {
		e.HTML = []byte(msg.HTMLContent)
	}
	e.Headers.Set("Date", date.Format(time.RFC1123Z))

	for _, at := range msg.Attachments {
		content, err := base64.StdEncoding.DecodeString(at.Content.String())
		if err != nil {
			return nil, errors.Wrap(err, "decoding attachment "+at.Filename)
		}
		if _, err = e.Attach(bytes.NewReader(content), at.Filename, at.ContentType); err != nil {
			return nil, errors.Wrap(err, "attaching "+at.Filename)
		}
	}

	raw, err := e.Bytes()
	return raw, errors.Wrap(err, "building MIME message")
}

func addressList(addrs []mail.Address) []string {
	if len(addrs) == 0 {
		return nil
	}
	res := make([]string, 0, len(addrs))
	for _, a := range addrs {
		res = append(res, a.String())
	}
	return res
}
