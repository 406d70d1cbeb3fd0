// Package submit transmits outbound messages on the provider's
// mail-submission endpoint. The connection starts in plaintext and is
// upgraded with STARTTLS before authentication.
package submit

import (
	"crypto/tls"
	"net"
	"net/smtp"
	"time"

	"github.com/pkg/errors"
)

type Submitter struct {
	host    string
	addr    string
	timeout time.Duration
}

// NewSubmitter returns a submitter for the given host:port endpoint.
func NewSubmitter(host, addr string, timeout time.Duration) *Submitter {
	return &Submitter{host: host, addr: addr, timeout: timeout}
}

// Submit authenticates with the supplied credential and transmits raw to
// a single recipient. One connection per call, closed on every path.
func (s *Submitter) Submit(address, secret, to string, raw []byte) error {
	conn, err := net.DialTimeout("tcp", s.addr, s.timeout)
	if err != nil {
		return errors.Wrapf(err, "dial to %s", s.addr)
	}

	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		conn.Close() //nolint:errcheck
		return errors.Wrap(err, "setting connection deadline")
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close() //nolint:errcheck
		return errors.Wrap(err, "creating SMTP client")
	}
	defer client.Close() //nolint:errcheck

	if err := client.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
		return errors.Wrap(err, "SMTP STARTTLS")
	}

	auth := smtp.PlainAuth("", address, secret, s.host)
	if err := client.Auth(auth); err != nil {
		return errors.Wrap(err, "SMTP auth")
	}

	if err := client.Mail(address); err != nil {
		return errors.Wrap(err, "SMTP MAIL FROM")
	}

	if err := client.Rcpt(to); err != nil {
		return errors.Wrap(err, "SMTP RCPT TO")
	}

	writer, err := client.Data()
	if err != nil {
		return errors.Wrap(err, "SMTP DATA")
	}

	if _, err := writer.Write(raw); err != nil {
		return errors.Wrap(err, "writing message body")
	}

	if err := writer.Close(); err != nil {
		return errors.Wrap(err, "closing message body")
	}

	return client.Quit()
}
