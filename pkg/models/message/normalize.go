// Package message turns raw RFC 5322 payloads into the gateway's typed
// records and builds outbound messages. It performs no I/O: every protocol
// payload crosses into typed land here and nowhere else.
package message

import (
	"bytes"
	"io"

	gomessage "github.com/emersion/go-message"

	"litmail.art/mailgate/pkg/base"
)

const (
	// PreviewLength is how many bytes of the primary text payload make it
	// into a listing. Truncation is byte-wise on purpose; encoding repair
	// is a non-goal.
	PreviewLength = 100

	placeholderAddress = "Unknown"
	placeholderSubject = "(no subject)"
	placeholderBody    = "(empty)"
)

// Role says which side of the message the mailbox owner is on. It decides
// whether the envelope's counterpart address comes from From or To.
type Role int

const (
	RoleReceived Role = iota
	RoleOutgoing
)

// Envelope is the lightweight listing record. From holds the counterpart
// address: the sender for received folders, the recipient for sent and
// draft folders.
type Envelope struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Preview string `json:"preview"`
}

// Detail is the full single-message record.
type Detail struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Body    string `json:"body"`
}

// Normalize builds an Envelope from a raw message. Missing headers get
// literal placeholders; the date is passed through unparsed.
func Normalize(raw base.RawMessage, role Role) Envelope {
	env := Envelope{
		ID:      raw.ID,
		From:    placeholderAddress,
		Subject: placeholderSubject,
		Preview: placeholderBody,
	}

	entity := read(raw.Body)
	if entity == nil {
		return env
	}

	counterpartKey := "From"
	if role == RoleOutgoing {
		counterpartKey = "To"
	}
	if addr := entity.Header.Get(counterpartKey); addr != "" {
		env.From = addr
	}
	if subject := entity.Header.Get("Subject"); subject != "" {
		env.Subject = subject
	}
	env.Date = entity.Header.Get("Date")

	if body := primaryText(entity); body != "" {
		if len(body) > PreviewLength {
			body = body[:PreviewLength]
		}
		env.Preview = body
	}

	return env
}

// NormalizeDetail builds a Detail from a raw message. For multipart
// messages only the first part's payload is surfaced; deeper parts are
// dropped.
func NormalizeDetail(raw base.RawMessage) Detail {
	detail := Detail{ID: raw.ID}

	entity := read(raw.Body)
	if entity == nil {
		return detail
	}

	detail.From = entity.Header.Get("From")
	detail.To = entity.Header.Get("To")
	detail.Subject = entity.Header.Get("Subject")
	detail.Date = entity.Header.Get("Date")
	detail.Body = primaryText(entity)

	return detail
}

// read parses a raw message, tolerating unknown charsets the way the
// go-message docs recommend.
func read(raw []byte) *gomessage.Entity {
	entity, err := gomessage.Read(bytes.NewReader(raw))
	if err != nil && !gomessage.IsUnknownCharset(err) {
		return nil
	}
	return entity
}

// primaryText returns the message's primary text payload. For multipart
// messages that is the first part only; there is no recursive walking.
func primaryText(entity *gomessage.Entity) string {
	if mr := entity.MultipartReader(); mr != nil {
		part, err := mr.NextPart()
		if err != nil {
			return ""
		}
		body, err := io.ReadAll(part.Body)
		if err != nil {
			return ""
		}
		return string(body)
	}

	body, err := io.ReadAll(entity.Body)
	if err != nil {
		return ""
	}
	return string(body)
}
