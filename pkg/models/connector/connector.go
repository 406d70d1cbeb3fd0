// Package connector opens short-lived authenticated IMAP connections, one
// per gateway request, and resolves logical folder names against the
// provider's actual mailbox names.
package connector

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/pkg/errors"

	"litmail.art/mailgate/internal/config"
	"litmail.art/mailgate/pkg/base"
	"litmail.art/mailgate/pkg/utils"
)

// ErrInvalidCredentials means the server rejected the LOGIN itself.
var ErrInvalidCredentials = errors.New("authentication rejected by mail server")

// ErrConnectorUnavailable means the server could not be reached or the
// connection failed below the protocol level.
var ErrConnectorUnavailable = errors.New("mail server unavailable")

// FolderUnavailableError is returned once every select/create attempt for
// a logical folder has been exhausted.
type FolderUnavailableError struct {
	Folder string
	Cause  error
}

func (e *FolderUnavailableError) Error() string {
	return fmt.Sprintf("folder %q unavailable: %v", e.Folder, e.Cause)
}

func (e *FolderUnavailableError) Unwrap() error { return e.Cause }

type Connector struct {
	address   string
	tlsConfig *tls.Config
	timeout   time.Duration
	folders   config.Folders
	logger    *slog.Logger
	ctx       context.Context
	dialTLS   func(address string, tlsConfig *tls.Config) (base.Client, error)
}

type ConnectorOption func(*Connector) error

func NewConnector(opts ...ConnectorOption) (*Connector, error) {
	var co Connector
	for _, opt := range opts {
		err := opt(&co)
		if err != nil {
			return nil, err
		}
	}

	if co.address == "" {
		return nil, errors.New("requires address")
	}

	if co.logger == nil {
		return nil, errors.New("requires slogger")
	}

	if co.timeout <= 0 {
		return nil, errors.New("requires positive timeout")
	}

	if co.ctx == nil {
		co.ctx = context.Background()
	}

	if co.folders.Canonical == nil {
		co.folders = config.DefaultFolders()
	}

	if co.dialTLS == nil {
		co.dialTLS = func(address string, tlsConfig *tls.Config) (base.Client, error) {
			dialer := &net.Dialer{Timeout: co.timeout}
			c, err := imapclient.DialWithDialerTLS(dialer, address, tlsConfig)
			if err != nil {
				return nil, err
			}
			c.Timeout = co.timeout
			return c, nil
		}
	}

	return &co, nil
}

func WithEndpoint(address string, tlsConfig *tls.Config) ConnectorOption {
	return func(co *Connector) error {
		co.address = address
		co.tlsConfig = tlsConfig
		return nil
	}
}

func WithTimeout(timeout time.Duration) ConnectorOption {
	return func(co *Connector) error {
		co.timeout = timeout
		return nil
	}
}

func WithFolders(folders config.Folders) ConnectorOption {
	return func(co *Connector) error {
		co.folders = folders
		return nil
	}
}

func WithLogger(logger *slog.Logger) ConnectorOption {
	return func(co *Connector) error {
		co.logger = logger
		return nil
	}
}

func WithCtx(ctx context.Context) ConnectorOption {
	return func(co *Connector) error {
		co.ctx = ctx
		return nil
	}
}

func WithDialTLS(d func(address string, tlsConfig *tls.Config) (base.Client, error)) ConnectorOption {
	return func(co *Connector) error {
		co.dialTLS = d
		return nil
	}
}

// Probe opens a fresh connection, attempts LOGIN with the supplied
// credential and closes the connection again regardless of outcome.
func (co *Connector) Probe(address, secret string) error {
	c, err := co.connect()
	if err != nil {
		return err
	}
	defer co.closeClient(c)

	return co.login(c, address, secret)
}

// Open returns an authenticated session scoped to one request. The caller
// owns the session and must Close it on every exit path.
func (co *Connector) Open(address, secret string) (base.MailSession, error) {
	c, err := co.connect()
	if err != nil {
		return nil, err
	}

	if err := co.login(c, address, secret); err != nil {
		co.closeClient(c)
		return nil, err
	}

	return &mailSession{
		client:  c,
		folders: co.folders,
		logger:  co.logger,
		ctx:     co.ctx,
	}, nil
}

func (co *Connector) connect() (base.Client, error) {
	c, err := co.dialTLS(co.address, co.tlsConfig)
	if err != nil {
		co.logger.ErrorContext(co.ctx, fmt.Sprintf("Failed to dial %s: %v", co.address, err), slog.Any("error", utils.WrapError(err)))
		return nil, errors.Wrap(ErrConnectorUnavailable, err.Error())
	}
	return c, nil
}

// login classifies a LOGIN failure. A network-level error means the
// server went away; anything else on an established connection is the
// server answering NO, which go-imap surfaces as an opaque error carrying
// the server's text, so rejection is the default.
func (co *Connector) login(c base.Client, address, secret string) error {
	err := c.Login(address, secret)
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		co.logger.ErrorContext(co.ctx, fmt.Sprintf("Failed to login: %v", err), slog.Any("error", utils.WrapError(err)))
		return errors.Wrap(ErrConnectorUnavailable, err.Error())
	}

	co.logger.Info("Login rejected", slog.String("address", address))
	return errors.Wrap(ErrInvalidCredentials, err.Error())
}

func (co *Connector) closeClient(c base.Client) {
	if err := c.Logout(); err != nil {
		co.logger.ErrorContext(co.ctx, fmt.Sprintf("Failed to logout: %v", err), slog.Any("error", utils.WrapError(err)))
	}
}

type mailSession struct {
	client  base.Client
	folders config.Folders
	logger  *slog.Logger
	ctx     context.Context
	status  *imap.MailboxStatus
}

// SelectFolder tries the canonical provider name, then each alias in
// table order. For append operations it additionally attempts to create
// the canonical folder before giving up.
func (s *mailSession) SelectFolder(logical string, forAppend bool) (string, error) {
	canonical := s.folders.CanonicalName(logical)
	names := append([]string{canonical}, s.folders.FallbackNames(logical)...)

	var lastErr error
	for _, name := range names {
		status, err := s.client.Select(name, false)
		if err == nil {
			s.status = status
			return name, nil
		}
		lastErr = err
		s.logger.Info("Select failed, trying next alias", slog.String("mailbox", name))
	}

	if forAppend {
		if err := s.client.Create(canonical); err != nil {
			lastErr = err
		} else if status, err := s.client.Select(canonical, false); err != nil {
			lastErr = err
		} else {
			s.status = status
			return canonical, nil
		}
	}

	return "", &FolderUnavailableError{Folder: logical, Cause: lastErr}
}

// ListRecent fetches the limit highest sequence numbers in the selected
// folder and returns them newest first. Ordering trusts the server's
// sequence numbering; the Date header is never consulted.
func (s *mailSession) ListRecent(limit int) ([]base.RawMessage, error) {
	if s.status == nil {
		return nil, errors.New("no folder selected")
	}

	total := s.status.Messages
	if total == 0 || limit <= 0 {
		return nil, nil
	}

	from := uint32(1)
	if total > uint32(limit) {
		from = total - uint32(limit) + 1
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, total)

	section := &imap.BodySectionName{}
	messages := make(chan *imap.Message, limit)
	done := make(chan error, 1)
	go func() {
		done <- s.client.Fetch(seqSet, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	bodies := map[uint32][]byte{}
	for msg := range messages {
		literal := msg.GetBody(section)
		if literal == nil {
			continue
		}
		body, err := io.ReadAll(literal)
		if err != nil {
			s.logger.ErrorContext(s.ctx, err.Error(), slog.Any("error", utils.WrapError(err)))
			continue
		}
		bodies[msg.SeqNum] = body
	}

	if err := <-done; err != nil {
		return nil, errors.Wrap(err, "fetching recent messages")
	}

	raw := make([]base.RawMessage, 0, len(bodies))
	for seq := total; seq >= from; seq-- {
		body, ok := bodies[seq]
		if !ok {
			continue
		}
		raw = append(raw, base.RawMessage{
			ID:   strconv.FormatUint(uint64(seq), 10),
			Body: body,
		})
	}

	return raw, nil
}

// Fetch retrieves one complete raw message. The id is only valid within
// this session; servers may renumber between connections.
func (s *mailSession) Fetch(id string) (base.RawMessage, error) {
	seq, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return base.RawMessage{}, errors.Wrapf(err, "invalid message id %q", id)
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uint32(seq))

	section := &imap.BodySectionName{}
	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.client.Fetch(seqSet, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	var body []byte
	for msg := range messages {
		if literal := msg.GetBody(section); literal != nil && body == nil {
			if body, err = io.ReadAll(literal); err != nil {
				return base.RawMessage{}, errors.Wrap(err, "reading message body")
			}
		}
	}

	if err := <-done; err != nil {
		return base.RawMessage{}, errors.Wrapf(err, "fetching message %s", id)
	}

	if body == nil {
		return base.RawMessage{}, errors.Errorf("message %s not found", id)
	}

	return base.RawMessage{ID: id, Body: body}, nil
}

// Append stores raw into the already-resolved folder, with the \Draft
// flag when asDraft and the current time as the internal date.
func (s *mailSession) Append(folder string, asDraft bool, raw []byte) error {
	var flags []string
	if asDraft {
		flags = []string{imap.DraftFlag}
	}

	if err := s.client.Append(folder, flags, time.Now(), bytes.NewBuffer(raw)); err != nil {
		return errors.Wrapf(err, "appending to %q", folder)
	}
	return nil
}

func (s *mailSession) Close() {
	if err := s.client.Logout(); err != nil {
		s.logger.ErrorContext(s.ctx, fmt.Sprintf("Failed to logout: %v", err), slog.Any("error", utils.WrapError(err)))
	}
}
