package base

import (
	"time"

	"github.com/emersion/go-imap"
)

// Logical folder names accepted at the API boundary. The literal Gmail
// spelling of the sent folder is accepted as an alias for Sent.
const (
	FolderInbox  = "Inbox"
	FolderDrafts = "Drafts"
	FolderSent   = "Sent"
	FolderTrash  = "Trash"

	GmailSentMail = "[Gmail]/Sent Mail"
)

// Client is an interface to abstract the client.Client methods used
type Client interface {
	Append(mbox string, flags []string, date time.Time, msg imap.Literal) error
	Create(name string) error
	Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Login(username string, password string) error
	Logout() error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
}

// RawMessage is a message as fetched off the wire. The ID is the server's
// sequence number and is only meaningful within the connection that
// produced it.
type RawMessage struct {
	ID   string
	Body []byte
}

// MailSession is a single authenticated protocol connection. It is opened
// for one request and must be closed before the response is returned.
type MailSession interface {
	// SelectFolder resolves a logical folder name against the backend,
	// walking the alias table and, for append operations, creating the
	// canonical folder as a last resort. It returns the concrete mailbox
	// name that was selected.
	SelectFolder(logical string, forAppend bool) (string, error)
	// ListRecent returns at most limit messages from the selected folder,
	// newest first by server sequence number.
	ListRecent(limit int) ([]RawMessage, error)
	// Fetch retrieves one complete raw message by sequence id.
	Fetch(id string) (RawMessage, error)
	// Append stores raw into folder, flagging it as a draft when asDraft.
	Append(folder string, asDraft bool, raw []byte) error
	Close()
}

// Connector opens short-lived authenticated connections against the
// configured retrieval endpoint.
type Connector interface {
	// Probe checks the credential pair and closes the connection again.
	Probe(address, secret string) error
	// Open returns a live authenticated session for one request.
	Open(address, secret string) (MailSession, error)
}

// Submitter transmits an outbound message on the submission endpoint.
type Submitter interface {
	Submit(address, secret, to string, raw []byte) error
}
