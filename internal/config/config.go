package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"litmail.art/mailgate/pkg/base"
)

const (
	envIMAPHost    = "MAILGATE_IMAP_HOST"
	envIMAPPort    = "MAILGATE_IMAP_PORT"
	envSMTPHost    = "MAILGATE_SMTP_HOST"
	envSMTPPort    = "MAILGATE_SMTP_PORT"
	envTimeout     = "MAILGATE_TIMEOUT"
	envBindAddr    = "MAILGATE_ADDR"
	envCORSOrigins = "MAILGATE_CORS_ORIGINS"
	envFoldersFile = "MAILGATE_FOLDERS_FILE"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultBindAddr = ":8888"
)

// Config holds the provider endpoints and server settings. The endpoints
// are fixed per deployment; credentials always arrive with the request.
type Config struct {
	IMAPHost    string
	IMAPPort    int
	SMTPHost    string
	SMTPPort    int
	Timeout     time.Duration
	BindAddr    string
	CORSOrigins string
	Folders     Folders
}

// IMAPAddr returns the retrieval endpoint as host:port.
func (c Config) IMAPAddr() string {
	return c.IMAPHost + ":" + strconv.Itoa(c.IMAPPort)
}

// SMTPAddr returns the submission endpoint as host:port.
func (c Config) SMTPAddr() string {
	return c.SMTPHost + ":" + strconv.Itoa(c.SMTPPort)
}

// FromEnv loads the gateway configuration and validates required entries.
func FromEnv() (Config, error) {
	missing := []string{}

	imapHost := strings.TrimSpace(os.Getenv(envIMAPHost))
	if imapHost == "" {
		missing = append(missing, envIMAPHost)
	}

	imapPortRaw := strings.TrimSpace(os.Getenv(envIMAPPort))
	if imapPortRaw == "" {
		missing = append(missing, envIMAPPort)
	}

	smtpHost := strings.TrimSpace(os.Getenv(envSMTPHost))
	if smtpHost == "" {
		missing = append(missing, envSMTPHost)
	}

	smtpPortRaw := strings.TrimSpace(os.Getenv(envSMTPPort))
	if smtpPortRaw == "" {
		missing = append(missing, envSMTPPort)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	imapPort, err := strconv.Atoi(imapPortRaw)
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", envIMAPPort, err)
	}

	smtpPort, err := strconv.Atoi(smtpPortRaw)
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", envSMTPPort, err)
	}

	timeout := defaultTimeout
	if raw := strings.TrimSpace(os.Getenv(envTimeout)); raw != "" {
		timeout, err = time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envTimeout, err)
		}
		if timeout <= 0 {
			return Config{}, fmt.Errorf("invalid %s: must be positive", envTimeout)
		}
	}

	folders := DefaultFolders()
	if path := strings.TrimSpace(os.Getenv(envFoldersFile)); path != "" {
		folders, err = LoadFolders(path)
		if err != nil {
			return Config{}, fmt.Errorf("loading %s: %w", envFoldersFile, err)
		}
	}

	return Config{
		IMAPHost:    imapHost,
		IMAPPort:    imapPort,
		SMTPHost:    smtpHost,
		SMTPPort:    smtpPort,
		Timeout:     timeout,
		BindAddr:    defaultIfEmpty(os.Getenv(envBindAddr), defaultBindAddr),
		CORSOrigins: strings.TrimSpace(os.Getenv(envCORSOrigins)),
		Folders:     folders,
	}, nil
}

// Folders maps the logical folder names onto the provider's mailbox
// names. Canonical is the name tried first; Aliases are tried in order
// when the canonical select fails.
type Folders struct {
	Canonical map[string]string   `yaml:"canonical"`
	Aliases   map[string][]string `yaml:"aliases"`
}

// DefaultFolders returns the baseline alias table. Providers disagree on
// the sent folder's canonical name, so Sent carries the Gmail spelling as
// a fallback.
func DefaultFolders() Folders {
	return Folders{
		Canonical: map[string]string{
			base.FolderInbox:  "INBOX",
			base.FolderDrafts: "Drafts",
			base.FolderSent:   "Sent",
			base.FolderTrash:  "Trash",
		},
		Aliases: map[string][]string{
			base.FolderSent: {base.GmailSentMail},
		},
	}
}

// LoadFolders reads a folder profile from a YAML file. Logical names
// absent from the file keep their defaults.
func LoadFolders(path string) (Folders, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Folders{}, err
	}

	var loaded Folders
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Folders{}, err
	}

	folders := DefaultFolders()
	for logical, name := range loaded.Canonical {
		if _, ok := folders.Canonical[logical]; !ok {
			return Folders{}, fmt.Errorf("unknown logical folder %q in %s", logical, path)
		}
		folders.Canonical[logical] = name
	}
	for logical, names := range loaded.Aliases {
		if _, ok := folders.Canonical[logical]; !ok {
			return Folders{}, fmt.Errorf("unknown logical folder %q in %s", logical, path)
		}
		folders.Aliases[logical] = names
	}

	return folders, nil
}

// Logical resolves caller input to a logical folder name. It accepts the
// logical names case-insensitively plus any configured alias literal, so
// "[Gmail]/Sent Mail" resolves to Sent.
func (f Folders) Logical(input string) (string, bool) {
	for logical := range f.Canonical {
		if strings.EqualFold(input, logical) {
			return logical, true
		}
	}
	for logical, names := range f.Aliases {
		for _, name := range names {
			if input == name {
				return logical, true
			}
		}
	}
	// The provider-side inbox spelling is always recognized.
	if strings.EqualFold(input, "INBOX") {
		return base.FolderInbox, true
	}
	return "", false
}

// CanonicalName returns the provider name tried first for logical.
func (f Folders) CanonicalName(logical string) string {
	if name, ok := f.Canonical[logical]; ok {
		return name
	}
	return logical
}

// FallbackNames returns the alias names tried, in order, after the
// canonical name fails to select.
func (f Folders) FallbackNames(logical string) []string {
	return f.Aliases[logical]
}

// Outgoing reports whether messages in logical were authored by the
// mailbox owner, which flips the counterpart address from From to To.
func (f Folders) Outgoing(logical string) bool {
	return logical == base.FolderSent || logical == base.FolderDrafts
}

func defaultIfEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
