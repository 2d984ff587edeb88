package notification

import (
	"context"
	"fmt"
	"html"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// SMTPConfig carries the mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether enough settings are present to send mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.Username != "" && c.Password != ""
}

type sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier e-mails recipients through a relay. Calls go through a circuit
// breaker so an unreachable relay fails fast instead of tying up workers.
type SMTPNotifier struct {
	cfg     SMTPConfig
	breaker *gobreaker.CircuitBreaker
	send    sendFunc
}

// NewSMTPNotifier builds a mail notifier. Port defaults to 587.
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPNotifier{
		cfg:     cfg,
		breaker: newBreaker("smtp"),
		send:    smtp.SendMail,
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// Send delivers message by e-mail. Destinations that are not addresses are
// reported as ErrUndeliverable.
func (n *SMTPNotifier) Send(ctx context.Context, message Message) error {
	if !strings.Contains(message.Destination, "@") {
		return fmt.Errorf("%w: %q is not an e-mail address", ErrUndeliverable, message.Destination)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	payload := n.render(message)

	_, err := n.breaker.Execute(func() (interface{}, error) {
		return nil, n.send(addr, auth, n.cfg.From, []string{message.Destination}, payload)
	})
	if err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (n *SMTPNotifier) render(message Message) []byte {
	var body strings.Builder
	body.WriteString("<p>" + html.EscapeString(message.Body) + "</p>")
	if message.Link != "" {
		link := html.EscapeString(message.Link)
		body.WriteString(`<p>Open your dashboard: <a href="` + link + `">` + link + `</a></p>`)
	}

	var b strings.Builder
	b.WriteString("From: " + n.cfg.From + "\r\n")
	b.WriteString("To: " + message.Destination + "\r\n")
	b.WriteString("Subject: " + message.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(body.String())
	return []byte(b.String())
}
