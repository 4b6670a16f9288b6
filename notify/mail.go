package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultMailTimeout = 30 * time.Second

// MailConfig describes how to reach the SMTP relay and who gets the report.
type MailConfig struct {
	Host     string
	Port     int
	UseTLS   bool // implicit TLS from the first byte
	Username string
	Password string
	From     mail.Address
	To       []mail.Address
	Subject  string
	Timeout  time.Duration
}

// Mailer sends the change report by e-mail.
type Mailer struct {
	cfg MailConfig
	now func() time.Time
}

func NewMailer(cfg MailConfig) *Mailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultMailTimeout
	}
	return &Mailer{cfg: cfg, now: time.Now}
}

func (m *Mailer) Notify(ctx context.Context, c Change) error {
	if len(m.cfg.To) == 0 {
		return fmt.Errorf("no recipients configured")
	}
	msg := m.message(FormatBody(c))

	if err := m.send(ctx, msg); err != nil {
		return fmt.Errorf("send mail via %s: %w", m.addr(), err)
	}
	log.Info().Str("relay", m.addr()).Int("recipients", len(m.cfg.To)).Msg("change report mailed")
	return nil
}

func (m *Mailer) addr() string {
	return net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
}

func (m *Mailer) send(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", m.addr())
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	if m.cfg.UseTLS {
		conn = tls.Client(conn, &tls.Config{ServerName: m.cfg.Host})
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	if !m.cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}
	if m.cfg.Username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("auth: %w", err)
			}
		}
	}

	if err := client.Mail(m.cfg.From.Address); err != nil {
		return err
	}
	for _, to := range m.cfg.To {
		if err := client.Rcpt(to.Address); err != nil {
			return fmt.Errorf("rcpt %s: %w", to.Address, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// message builds a single-part UTF-8 plain text message.
func (m *Mailer) message(body string) []byte {
	to := make([]string, len(m.cfg.To))
	for i, a := range m.cfg.To {
		to[i] = a.String()
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", m.cfg.From.String())
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.cfg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return b.Bytes()
}
