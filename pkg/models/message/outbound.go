package message

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Outbound is a plain-text message composed by the gateway. The same
// bytes feed both the SMTP transmission and the archived copy, though the
// two are not required to stay byte-identical.
type Outbound struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Build renders the message as RFC 5322 bytes with a generated
// Message-Id and the current date.
func (o Outbound) Build() ([]byte, error) {
	var header mail.Header
	header.SetDate(time.Now())
	header.SetAddressList("From", []*mail.Address{{Address: o.From}})
	header.SetAddressList("To", []*mail.Address{{Address: o.To}})
	header.SetSubject(o.Subject)
	header.SetMsgIDList("Message-Id", []string{messageID(o.From)})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, header)
	if err != nil {
		return nil, errors.Wrap(err, "creating message writer")
	}

	if _, err := io.WriteString(w, o.Body); err != nil {
		w.Close() //nolint:errcheck
		return nil, errors.Wrap(err, "writing message body")
	}

	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "finishing message")
	}

	return buf.Bytes(), nil
}

func messageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at+1 < len(from) {
		domain = from[at+1:]
	}
	return uuid.NewString() + "@" + domain
}
