// Package gateway composes the session store, mailbox connector, message
// normalizer and SMTP submitter into the request-level mail operations.
package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"

	"litmail.art/mailgate/internal/config"
	"litmail.art/mailgate/internal/session"
	"litmail.art/mailgate/pkg/base"
	"litmail.art/mailgate/pkg/models/message"
	"litmail.art/mailgate/pkg/utils"
)

// listLimit caps folder listings at the 10 most recent messages.
const listLimit = 10

// ErrUnknownFolder is returned for folder names outside the recognized
// logical set. This is a caller error, not a backend one.
var ErrUnknownFolder = errors.New("unknown folder")

// OperationFailedError wraps a failure in one stage of a multi-stage
// operation so callers can see where it broke.
type OperationFailedError struct {
	Stage string
	Err   error
}

func (e *OperationFailedError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *OperationFailedError) Unwrap() error { return e.Err }

type Service struct {
	sessions  session.Store
	connector base.Connector
	submitter base.Submitter
	folders   config.Folders
	logger    *slog.Logger
	ctx       context.Context
}

type ServiceOption func(*Service) error

func NewService(opts ...ServiceOption) (*Service, error) {
	var svc Service
	for _, opt := range opts {
		err := opt(&svc)
		if err != nil {
			return nil, err
		}
	}

	if svc.sessions == nil {
		return nil, errors.New("requires session store")
	}

	if svc.connector == nil {
		return nil, errors.New("requires connector")
	}

	if svc.submitter == nil {
		return nil, errors.New("requires submitter")
	}

	if svc.logger == nil {
		return nil, errors.New("requires slogger")
	}

	if svc.ctx == nil {
		svc.ctx = context.Background()
	}

	if svc.folders.Canonical == nil {
		svc.folders = config.DefaultFolders()
	}

	return &svc, nil
}

func WithSessionStore(store session.Store) ServiceOption {
	return func(svc *Service) error {
		svc.sessions = store
		return nil
	}
}

func WithConnector(connector base.Connector) ServiceOption {
	return func(svc *Service) error {
		svc.connector = connector
		return nil
	}
}

func WithSubmitter(submitter base.Submitter) ServiceOption {
	return func(svc *Service) error {
		svc.submitter = submitter
		return nil
	}
}

func WithFolders(folders config.Folders) ServiceOption {
	return func(svc *Service) error {
		svc.folders = folders
		return nil
	}
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(svc *Service) error {
		svc.logger = logger
		return nil
	}
}

func WithCtx(ctx context.Context) ServiceOption {
	return func(svc *Service) error {
		svc.ctx = ctx
		return nil
	}
}

// Login probes the retrieval endpoint with the supplied credential and,
// on success, creates a session. No session is created on failure.
func (svc *Service) Login(address, secret string) (string, error) {
	if err := svc.connector.Probe(address, secret); err != nil {
		return "", err
	}

	token := svc.sessions.Create(address, secret)
	svc.logger.Info("Session created", slog.String("address", address))
	return token, nil
}

// ListFolder returns up to the 10 most recent envelopes in the logical
// folder, newest first.
func (svc *Service) ListFolder(token, folder string) ([]message.Envelope, error) {
	creds, err := svc.sessions.Resolve(token)
	if err != nil {
		return nil, err
	}

	logical, ok := svc.folders.Logical(folder)
	if !ok {
		return nil, errors.Wrap(ErrUnknownFolder, folder)
	}

	sess, err := svc.connector.Open(creds.Address, creds.Secret)
	if err != nil {
		return nil, svc.fail("connect", err)
	}
	defer sess.Close()

	if _, err := sess.SelectFolder(logical, false); err != nil {
		return nil, svc.fail("select", err)
	}

	raw, err := sess.ListRecent(listLimit)
	if err != nil {
		return nil, svc.fail("list", err)
	}

	role := message.RoleReceived
	if svc.folders.Outgoing(logical) {
		role = message.RoleOutgoing
	}

	envelopes := make([]message.Envelope, 0, len(raw))
	for _, r := range raw {
		envelopes = append(envelopes, message.Normalize(r, role))
	}
	return envelopes, nil
}

// FetchDetail retrieves one complete message from the logical folder. The
// id is only valid relative to a listing made against the same backend
// state; servers may renumber between connections.
func (svc *Service) FetchDetail(token, folder, id string) (message.Detail, error) {
	creds, err := svc.sessions.Resolve(token)
	if err != nil {
		return message.Detail{}, err
	}

	logical, ok := svc.folders.Logical(folder)
	if !ok {
		return message.Detail{}, errors.Wrap(ErrUnknownFolder, folder)
	}

	sess, err := svc.connector.Open(creds.Address, creds.Secret)
	if err != nil {
		return message.Detail{}, svc.fail("connect", err)
	}
	defer sess.Close()

	if _, err := sess.SelectFolder(logical, false); err != nil {
		return message.Detail{}, svc.fail("select", err)
	}

	raw, err := sess.Fetch(id)
	if err != nil {
		return message.Detail{}, svc.fail("fetch", err)
	}

	return message.NormalizeDetail(raw), nil
}

// SaveDraft composes a plain-text message and appends it to the Drafts
// folder with the draft flag. Failure at any stage fails the operation.
func (svc *Service) SaveDraft(token, to, subject, body string) error {
	creds, err := svc.sessions.Resolve(token)
	if err != nil {
		return err
	}

	raw, err := message.Outbound{From: creds.Address, To: to, Subject: subject, Body: body}.Build()
	if err != nil {
		return svc.fail("compose", err)
	}

	sess, err := svc.connector.Open(creds.Address, creds.Secret)
	if err != nil {
		return svc.fail("connect", err)
	}
	defer sess.Close()

	folder, err := sess.SelectFolder(base.FolderDrafts, true)
	if err != nil {
		return svc.fail("select", err)
	}

	if err := sess.Append(folder, true, raw); err != nil {
		return svc.fail("append", err)
	}

	return nil
}

// Send transmits the message on the submission endpoint and then archives
// a copy to the Sent folder. Transmission failure fails the operation;
// archival failure does not, because the message has already left the
// system by then. That asymmetry is deliberate and must stay.
func (svc *Service) Send(token, to, subject, body string) error {
	creds, err := svc.sessions.Resolve(token)
	if err != nil {
		return err
	}

	raw, err := message.Outbound{From: creds.Address, To: to, Subject: subject, Body: body}.Build()
	if err != nil {
		return svc.fail("compose", err)
	}

	if err := svc.submitter.Submit(creds.Address, creds.Secret, to, raw); err != nil {
		return svc.fail("transmit", err)
	}

	if err := svc.archiveSent(creds, raw); err != nil {
		svc.logger.WarnContext(svc.ctx, fmt.Sprintf("Could not save to Sent folder: %v", err),
			slog.Any("error", utils.WrapError(err)))
	}

	return nil
}

func (svc *Service) archiveSent(creds session.Credentials, raw []byte) error {
	sess, err := svc.connector.Open(creds.Address, creds.Secret)
	if err != nil {
		return err
	}
	defer sess.Close()

	folder, err := sess.SelectFolder(base.FolderSent, true)
	if err != nil {
		return err
	}

	return sess.Append(folder, false, raw)
}

// Logout invalidates the session. Unknown tokens are not an error, so a
// second logout with the same token succeeds too.
func (svc *Service) Logout(token string) {
	svc.sessions.Invalidate(token)
}

func (svc *Service) fail(stage string, err error) error {
	svc.logger.ErrorContext(svc.ctx, fmt.Sprintf("%s failed: %v", stage, err),
		slog.Any("error", utils.WrapError(err)))
	return &OperationFailedError{Stage: stage, Err: err}
}
