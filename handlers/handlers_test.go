package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"litmail.art/mailgate/internal/gateway"
	"litmail.art/mailgate/internal/session"
	"litmail.art/mailgate/pkg/base"
	"litmail.art/mailgate/pkg/models/connector"
	"litmail.art/mailgate/pkg/models/message"
)

// fakeGateway implements MailGateway with injectable behavior.
type fakeGateway struct {
	loginFn func(address, secret string) (string, error)
	listFn  func(token, folder string) ([]message.Envelope, error)
	fetchFn func(token, folder, id string) (message.Detail, error)
	draftFn func(token, to, subject, body string) error
	sendFn  func(token, to, subject, body string) error
	logouts []string
}

func (f *fakeGateway) Login(address, secret string) (string, error) {
	if f.loginFn != nil {
		return f.loginFn(address, secret)
	}
	return "tok-123", nil
}

func (f *fakeGateway) ListFolder(token, folder string) ([]message.Envelope, error) {
	if f.listFn != nil {
		return f.listFn(token, folder)
	}
	return nil, nil
}

func (f *fakeGateway) FetchDetail(token, folder, id string) (message.Detail, error) {
	if f.fetchFn != nil {
		return f.fetchFn(token, folder, id)
	}
	return message.Detail{ID: id}, nil
}

func (f *fakeGateway) SaveDraft(token, to, subject, body string) error {
	if f.draftFn != nil {
		return f.draftFn(token, to, subject, body)
	}
	return nil
}

func (f *fakeGateway) Send(token, to, subject, body string) error {
	if f.sendFn != nil {
		return f.sendFn(token, to, subject, body)
	}
	return nil
}

func (f *fakeGateway) Logout(token string) {
	f.logouts = append(f.logouts, token)
}

func newTestApp(gw MailGateway) *fiber.App {
	app := fiber.New()
	New(gw).Register(app)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target string, payload string) (*http.Response, map[string]any) {
	t.Helper()

	var req *http.Request
	if payload != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(payload))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	body := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp, body
}

func TestLoginEndpoint(t *testing.T) {
	t.Run("Valid Credentials", func(t *testing.T) {
		gw := &fakeGateway{
			loginFn: func(address, secret string) (string, error) {
				assert.Equal(t, "user@example.com", address)
				assert.Equal(t, "hunter2", secret)
				return "tok-abc", nil
			},
		}
		app := newTestApp(gw)

		resp, body := doJSON(t, app, fiber.MethodPost, "/api/login",
			`{"email":"user@example.com","password":"hunter2"}`)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "tok-abc", body["access_token"])
		assert.Equal(t, "bearer", body["token_type"])
		assert.Equal(t, "user@example.com", body["email"])
	})

	t.Run("Rejected Credentials", func(t *testing.T) {
		gw := &fakeGateway{
			loginFn: func(string, string) (string, error) {
				return "", connector.ErrInvalidCredentials
			},
		}
		app := newTestApp(gw)

		resp, body := doJSON(t, app, fiber.MethodPost, "/api/login",
			`{"email":"user@example.com","password":"wrong"}`)

		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Contains(t, body["detail"], "authentication rejected")
	})

	t.Run("Unreachable Backend", func(t *testing.T) {
		gw := &fakeGateway{
			loginFn: func(string, string) (string, error) {
				return "", connector.ErrConnectorUnavailable
			},
		}
		app := newTestApp(gw)

		resp, _ := doJSON(t, app, fiber.MethodPost, "/api/login",
			`{"email":"user@example.com","password":"hunter2"}`)

		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	})

	t.Run("Malformed Body", func(t *testing.T) {
		app := newTestApp(&fakeGateway{})

		resp, _ := doJSON(t, app, fiber.MethodPost, "/api/login", `{"email": unterminated`)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestFolderEndpoint(t *testing.T) {
	t.Run("Lists Envelopes", func(t *testing.T) {
		gw := &fakeGateway{
			listFn: func(token, folder string) ([]message.Envelope, error) {
				assert.Equal(t, "tok-abc", token)
				assert.Equal(t, "Sent", folder)
				return []message.Envelope{
					{ID: "2", From: "alice@example.com", Subject: "newest", Date: "today", Preview: "hi"},
				}, nil
			},
		}
		app := newTestApp(gw)

		resp, body := doJSON(t, app, fiber.MethodGet, "/api/folder/Sent?token=tok-abc", "")

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "Sent", body["folder"])

		emails, ok := body["emails"].([]any)
		require.True(t, ok)
		require.Len(t, emails, 1)
		first := emails[0].(map[string]any)
		assert.Equal(t, "2", first["id"])
		assert.Equal(t, "alice@example.com", first["from"])
	})

	t.Run("Decodes Encoded Folder Names", func(t *testing.T) {
		var got string
		gw := &fakeGateway{
			listFn: func(_, folder string) ([]message.Envelope, error) {
				got = folder
				return nil, nil
			},
		}
		app := newTestApp(gw)

		target := "/api/folder/" + url.PathEscape(base.GmailSentMail) + "?token=tok-abc"
		resp, _ := doJSON(t, app, fiber.MethodGet, target, "")

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, base.GmailSentMail, got)
	})

	t.Run("Unknown Folder", func(t *testing.T) {
		gw := &fakeGateway{
			listFn: func(_, folder string) ([]message.Envelope, error) {
				return nil, errors.Wrap(gateway.ErrUnknownFolder, folder)
			},
		}
		app := newTestApp(gw)

		resp, body := doJSON(t, app, fiber.MethodGet, "/api/folder/Spam?token=tok-abc", "")

		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body["detail"], "unknown folder")
	})

	t.Run("Missing Token", func(t *testing.T) {
		gw := &fakeGateway{
			listFn: func(token, _ string) ([]message.Envelope, error) {
				assert.Empty(t, token)
				return nil, session.ErrUnauthenticated
			},
		}
		app := newTestApp(gw)

		resp, _ := doJSON(t, app, fiber.MethodGet, "/api/folder/Inbox", "")
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Bearer Header Token", func(t *testing.T) {
		var got string
		gw := &fakeGateway{
			listFn: func(token, _ string) ([]message.Envelope, error) {
				got = token
				return nil, nil
			},
		}
		app := newTestApp(gw)

		req := httptest.NewRequest(fiber.MethodGet, "/api/folder/Inbox", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer tok-hdr")
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "tok-hdr", got)
	})
}

func TestInboxEndpoint(t *testing.T) {
	var got string
	gw := &fakeGateway{
		listFn: func(_, folder string) ([]message.Envelope, error) {
			got = folder
			return []message.Envelope{}, nil
		},
	}
	app := newTestApp(gw)

	resp, body := doJSON(t, app, fiber.MethodGet, "/api/inbox?token=tok-abc", "")

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Inbox", got)
	_, hasFolder := body["folder"]
	assert.False(t, hasFolder)
}

func TestEmailEndpoint(t *testing.T) {
	t.Run("Defaults To Inbox", func(t *testing.T) {
		gw := &fakeGateway{
			fetchFn: func(token, folder, id string) (message.Detail, error) {
				assert.Equal(t, "tok-abc", token)
				assert.Equal(t, "Inbox", folder)
				assert.Equal(t, "7", id)
				return message.Detail{ID: "7", From: "alice@example.com", Body: "the body"}, nil
			},
		}
		app := newTestApp(gw)

		resp, body := doJSON(t, app, fiber.MethodGet, "/api/email/7?token=tok-abc", "")

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "7", body["id"])
		assert.Equal(t, "the body", body["body"])
	})

	t.Run("Folder Override", func(t *testing.T) {
		var got string
		gw := &fakeGateway{
			fetchFn: func(_, folder, _ string) (message.Detail, error) {
				got = folder
				return message.Detail{}, nil
			},
		}
		app := newTestApp(gw)

		resp, _ := doJSON(t, app, fiber.MethodGet, "/api/email/7?token=tok-abc&folder=Trash", "")

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "Trash", got)
	})

	t.Run("Fetch Failure", func(t *testing.T) {
		gw := &fakeGateway{
			fetchFn: func(string, string, string) (message.Detail, error) {
				return message.Detail{}, &gateway.OperationFailedError{Stage: "fetch", Err: errors.New("no such message")}
			},
		}
		app := newTestApp(gw)

		resp, _ := doJSON(t, app, fiber.MethodGet, "/api/email/999?token=tok-abc", "")
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	})
}

func TestDraftEndpoint(t *testing.T) {
	gw := &fakeGateway{
		draftFn: func(token, to, subject, body string) error {
			assert.Equal(t, "tok-abc", token)
			assert.Equal(t, "alice@example.com", to)
			assert.Equal(t, "draft subject", subject)
			assert.Equal(t, "draft body", body)
			return nil
		},
	}
	app := newTestApp(gw)

	resp, body := doJSON(t, app, fiber.MethodPost, "/api/draft?token=tok-abc",
		`{"to":"alice@example.com","subject":"draft subject","body":"draft body"}`)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Draft saved successfully", body["status"])
}

func TestSendEndpoint(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		app := newTestApp(&fakeGateway{})

		resp, body := doJSON(t, app, fiber.MethodPost, "/api/send?token=tok-abc",
			`{"to":"alice@example.com","subject":"s","body":"b"}`)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "Email sent successfully", body["status"])
	})

	t.Run("Transmission Failure", func(t *testing.T) {
		gw := &fakeGateway{
			sendFn: func(string, string, string, string) error {
				return &gateway.OperationFailedError{Stage: "transmit", Err: errors.New("relay refused")}
			},
		}
		app := newTestApp(gw)

		resp, body := doJSON(t, app, fiber.MethodPost, "/api/send?token=tok-abc",
			`{"to":"alice@example.com","subject":"s","body":"b"}`)

		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		assert.Contains(t, body["detail"], "transmit")
	})

	t.Run("Expired Session", func(t *testing.T) {
		gw := &fakeGateway{
			sendFn: func(string, string, string, string) error { return session.ErrUnauthenticated },
		}
		app := newTestApp(gw)

		resp, _ := doJSON(t, app, fiber.MethodPost, "/api/send?token=stale",
			`{"to":"alice@example.com","subject":"s","body":"b"}`)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}

func TestLogoutEndpoint(t *testing.T) {
	gw := &fakeGateway{}
	app := newTestApp(gw)

	resp, body := doJSON(t, app, fiber.MethodPost, "/api/logout?token=tok-abc", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Logged out", body["status"])
	assert.Equal(t, []string{"tok-abc"}, gw.logouts)

	// Repeating the logout is harmless.
	resp, _ = doJSON(t, app, fiber.MethodPost, "/api/logout?token=tok-abc", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(&fakeGateway{})

	resp, body := doJSON(t, app, fiber.MethodGet, "/health", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body["status"])
}
