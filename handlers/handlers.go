// Package handlers binds the gateway operations to the HTTP surface. The
// routes and payload shapes follow the frontend's existing API contract.
package handlers

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/pkg/errors"

	"litmail.art/mailgate/internal/gateway"
	"litmail.art/mailgate/internal/session"
	"litmail.art/mailgate/pkg/models/connector"
	"litmail.art/mailgate/pkg/models/message"
)

// MailGateway is the operation surface the handlers need. It is satisfied
// by *gateway.Service.
type MailGateway interface {
	Login(address, secret string) (string, error)
	ListFolder(token, folder string) ([]message.Envelope, error)
	FetchDetail(token, folder, id string) (message.Detail, error)
	SaveDraft(token, to, subject, body string) error
	Send(token, to, subject, body string) error
	Logout(token string)
}

type Handler struct {
	gateway MailGateway
}

func New(gw MailGateway) *Handler {
	return &Handler{gateway: gw}
}

// Register mounts the API routes on the app.
func (h *Handler) Register(app *fiber.App) {
	app.Post("/api/login", h.Login)
	app.Get("/api/folder/:folder", h.Folder)
	app.Get("/api/inbox", h.Inbox)
	app.Get("/api/email/:id", h.Email)
	app.Post("/api/draft", h.Draft)
	app.Post("/api/send", h.Send)
	app.Post("/api/logout", h.Logout)
	app.Get("/health", h.Health)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type composeRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Login authenticates against the mail server and returns a bearer token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, err)
	}

	token, err := h.gateway.Login(req.Email, req.Password)
	if err != nil {
		return failMapped(c, err)
	}

	return c.JSON(fiber.Map{
		"access_token": token,
		"token_type":   "bearer",
		"email":        req.Email,
	})
}

// Folder lists the most recent messages in the named folder.
func (h *Handler) Folder(c *fiber.Ctx) error {
	// The Gmail sent-folder alias contains characters that only arrive
	// percent-encoded in a path segment.
	folder, err := url.PathUnescape(c.Params("folder"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err)
	}

	envelopes, err := h.gateway.ListFolder(token(c), folder)
	if err != nil {
		return failMapped(c, err)
	}

	return c.JSON(fiber.Map{"emails": envelopes, "folder": folder})
}

// Inbox is the legacy inbox listing endpoint.
func (h *Handler) Inbox(c *fiber.Ctx) error {
	envelopes, err := h.gateway.ListFolder(token(c), "Inbox")
	if err != nil {
		return failMapped(c, err)
	}

	return c.JSON(fiber.Map{"emails": envelopes})
}

// Email returns one complete message. The folder defaults to Inbox.
func (h *Handler) Email(c *fiber.Ctx) error {
	folder := c.Query("folder", "Inbox")

	detail, err := h.gateway.FetchDetail(token(c), folder, c.Params("id"))
	if err != nil {
		return failMapped(c, err)
	}

	return c.JSON(detail)
}

// Draft saves a draft to the Drafts folder.
func (h *Handler) Draft(c *fiber.Ctx) error {
	var req composeRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, err)
	}

	if err := h.gateway.SaveDraft(token(c), req.To, req.Subject, req.Body); err != nil {
		return failMapped(c, err)
	}

	return c.JSON(fiber.Map{"status": "Draft saved successfully"})
}

// Send transmits a message and archives a copy.
func (h *Handler) Send(c *fiber.Ctx) error {
	var req composeRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, err)
	}

	if err := h.gateway.Send(token(c), req.To, req.Subject, req.Body); err != nil {
		return failMapped(c, err)
	}

	return c.JSON(fiber.Map{"status": "Email sent successfully"})
}

// Logout invalidates the session. Always succeeds.
func (h *Handler) Logout(c *fiber.Ctx) error {
	h.gateway.Logout(token(c))
	return c.JSON(fiber.Map{"status": "Logged out"})
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "OK"})
}

// token pulls the session token from the query string or, failing that,
// from a bearer Authorization header.
func token(c *fiber.Ctx) string {
	if t := c.Query("token"); t != "" {
		return t
	}

	auth := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// failMapped maps the gateway error taxonomy onto status classes.
func failMapped(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrUnauthenticated),
		errors.Is(err, connector.ErrInvalidCredentials):
		status = fiber.StatusUnauthorized
	case errors.Is(err, gateway.ErrUnknownFolder):
		status = fiber.StatusBadRequest
	}
	return fail(c, status, err)
}

func fail(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{
		"error":  utils.StatusMessage(status),
		"detail": err.Error(),
	})
}
