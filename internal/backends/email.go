package backends

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/alert-api/internal/config"
	"github.com/stanstork/alert-api/internal/models"
	"github.com/stanstork/alert-api/internal/registry"
)

// UserSource resolves the addressed user of an alert. Satisfied by
// repository.UserRepository.
type UserSource interface {
	GetUserByID(ctx context.Context, userID string) (models.User, error)
}

type sendMailFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// Email is the reference delivery backend. Text alerts go out as plain
// messages; markup alerts go out multipart with a derived plain-text part
// and the markup as the rich alternative.
type Email struct {
	host     string
	port     int
	username string
	password string
	from     string

	users    UserSource
	registry *registry.Registry
	logger   zerolog.Logger
	sendMail sendMailFunc
}

func NewEmail(cfg config.EmailConfig, users UserSource, reg *registry.Registry, logger zerolog.Logger) (*Email, error) {
	host := strings.TrimSpace(cfg.SMTPHost)
	from := strings.TrimSpace(cfg.From)
	if host == "" {
		return nil, errors.New("smtp_host is required for the email backend")
	}
	if from == "" {
		return nil, errors.New("from is required for the email backend")
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}

	return &Email{
		host:     host,
		port:     port,
		username: strings.TrimSpace(cfg.Username),
		password: cfg.Password,
		from:     from,
		users:    users,
		registry: reg,
		logger:   logger.With().Str("backend", "email").Logger(),
		sendMail: smtp.SendMail,
	}, nil
}

func (e *Email) Title() string { return "Email" }

func (e *Email) Send(ctx context.Context, alert models.Alert) error {
	user, err := e.users.GetUserByID(ctx, alert.UserID)
	if err != nil {
		return errors.Wrapf(err, "load user %s", alert.UserID)
	}

	recipient := strings.TrimSpace(user.Email)
	if recipient == "" {
		return &DeliveryError{Backend: "email", Reason: "user has no email address"}
	}

	subject := stripNewlines(alert.Title)

	var message []byte
	if e.isMarkup(alert) {
		message, err = e.multipartMessage(recipient, subject, alert.Body)
		if err != nil {
			return errors.Wrap(err, "build multipart message")
		}
	} else {
		message = e.plainMessage(recipient, subject, alert.Body)
	}

	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	if err := e.sendMail(addr, auth, e.from, []string{recipient}, message); err != nil {
		return &DeliveryError{Backend: "email", Reason: err.Error()}
	}

	e.logger.Info().
		Str("alert_id", alert.ID).
		Str("alert_type", alert.AlertType).
		Str("recipient", recipient).
		Msg("email sent")
	return nil
}

func (e *Email) isMarkup(alert models.Alert) bool {
	alertType, ok := e.registry.AlertType(alert.AlertType)
	if !ok {
		return false
	}
	return registry.TypeFiletype(alertType) == registry.FiletypeMarkup
}

func (e *Email) plainMessage(recipient, subject, body string) []byte {
	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n",
		e.from, recipient, subject)
	return []byte(headers + body)
}

// multipartMessage builds a multipart/alternative message: the derived
// plain-text part first, the markup part last (preferred by capable
// clients).
func (e *Email) multipartMessage(recipient, subject, markup string) ([]byte, error) {
	var sb strings.Builder
	writer := multipart.NewWriter(&sb)

	fmt.Fprintf(&sb, "From: %s\r\n", e.from)
	fmt.Fprintf(&sb, "To: %s\r\n", recipient)
	fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
	fmt.Fprintf(&sb, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&sb, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", writer.Boundary())

	plain, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {`text/plain; charset="UTF-8"`},
	})
	if err != nil {
		return nil, err
	}
	if _, err := plain.Write([]byte(PlainTextFromHTML(markup))); err != nil {
		return nil, err
	}

	rich, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type": {`text/html; charset="UTF-8"`},
	})
	if err != nil {
		return nil, err
	}
	if _, err := rich.Write([]byte(markup)); err != nil {
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

func stripNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(horizontalSpace.ReplaceAllString(s, " "))
}
