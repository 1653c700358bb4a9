package infrastructure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	mail "github.com/wneessen/go-mail"

	"omnidesk/internal/interfaces"
)

// SMTPMailer sends operator replies out over SMTP. Port 465 uses implicit
// SSL, anything else STARTTLS, matching common hosting defaults.
type SMTPMailer struct {
	server    string
	port      int
	username  string
	password  string
	fromEmail string
	fromName  string

	httpClient *http.Client
	log        zerolog.Logger
}

func NewSMTPMailer(server string, port int, username, password, fromEmail, fromName string, timeout time.Duration, logger zerolog.Logger) *SMTPMailer {
	if fromEmail == "" {
		fromEmail = username
	}
	return &SMTPMailer{
		server:     server,
		port:       port,
		username:   username,
		password:   password,
		fromEmail:  fromEmail,
		fromName:   fromName,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.With().Str("component", "smtp").Logger(),
	}
}

func (s *SMTPMailer) Configured() bool {
	return s.server != "" && s.username != "" && s.password != ""
}

func (s *SMTPMailer) Send(ctx context.Context, msg interfaces.OutboundEmail) error {
	if !s.Configured() {
		return fmt.Errorf("smtp transport not configured")
	}

	m := mail.NewMsg()
	if err := m.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("set to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	m.SetMessageID()

	replyTo := msg.ReplyTo
	if replyTo == "" {
		replyTo = s.fromEmail
	}
	if err := m.ReplyTo(replyTo); err != nil {
		return fmt.Errorf("set reply-to: %w", err)
	}
	if msg.InReplyTo != "" {
		m.SetGenHeader(mail.HeaderInReplyTo, msg.InReplyTo)
		m.SetGenHeader(mail.HeaderReferences, msg.InReplyTo)
	}

	// Attachment fetch failures skip the attachment, not the mail.
	for _, media := range msg.Media {
		data, err := s.fetch(ctx, media.URL)
		if err != nil {
			s.log.Warn().Err(err).Str("name", media.Name).Msg("skipping attachment")
			continue
		}
		name := media.Name
		if name == "" {
			name = "attachment"
		}
		opts := []mail.FileOption{}
		if media.Type != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(media.Type)))
		}
		if err := m.AttachReader(name, bytes.NewReader(data), opts...); err != nil {
			s.log.Warn().Err(err).Str("name", name).Msg("failed to attach file")
		}
	}

	opts := []mail.Option{
		mail.WithPort(s.port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.username),
		mail.WithPassword(s.password),
	}
	if s.port == 465 {
		opts = append(opts, mail.WithSSLPort(false))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}

	client, err := mail.NewClient(s.server, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	s.log.Info().Str("to", msg.To).Msg("email sent")
	return nil
}

func (s *SMTPMailer) fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("attachment has no url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
