package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// ErrInvalidAddress is returned for empty or malformed recipient addresses.
var ErrInvalidAddress = errors.New("notify: invalid address")

// Notifier sends one message to address.
type Notifier interface {
	Send(ctx context.Context, address, subject, body string) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, address, subject, body string) error

func (f Func) Send(ctx context.Context, address, subject, body string) error {
	return f(ctx, address, subject, body)
}

// WithTimeout bounds every Send of n by d. A non-positive d returns n unchanged.
func WithTimeout(n Notifier, d time.Duration) Notifier {
	if d <= 0 || n == nil {
		return n
	}
	return Func(func(ctx context.Context, address, subject, body string) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- n.Send(ctx, address, subject, body) }()

		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// SMTPConfig configures the SMTP notifier.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// SMTP sends plain-text mail, upgrading to STARTTLS when offered and using
// PLAIN auth when a username is set. Dialing and the whole SMTP exchange are
// bounded by the Send context.
type SMTP struct {
	cfg  SMTPConfig
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewSMTP returns an SMTP notifier. Port defaults to 587.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, errors.New("notify: smtp host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("notify: smtp from address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTP{cfg: cfg, dial: (&net.Dialer{}).DialContext}, nil
}

func (s *SMTP) Send(ctx context.Context, address, subject, body string) error {
	if !validAddress(address) {
		return ErrInvalidAddress
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := s.dial(ctx, "tcp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	err = s.deliver(conn, address, buildMessage(s.cfg.From, address, subject, body))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (s *SMTP) deliver(conn net.Conn, to string, msg []byte) error {
	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return err
		}
	}
	if s.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return err
		}
	}
	if err := c.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + sanitizeHeader(from) + "\r\n")
	b.WriteString("To: " + sanitizeHeader(to) + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(v)
}

func validAddress(a string) bool {
	if strings.ContainsAny(a, "\r\n ") {
		return false
	}
	at := strings.LastIndexByte(a, '@')
	return at > 0 && at < len(a)-1
}

// Log writes messages to a zap logger instead of delivering them. The body
// carries the reset secret, so it is only logged when Reveal is set; otherwise
// the entry records its length.
type Log struct {
	logger *zap.Logger
	Reveal bool
}

// NewLog returns a Log notifier. reveal should only be true in development.
func NewLog(logger *zap.Logger, reveal bool) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger.Named("notify"), Reveal: reveal}
}

func (l *Log) Send(_ context.Context, address, subject, body string) error {
	fields := []zap.Field{
		zap.String("address", address),
		zap.String("subject", subject),
	}
	if l.Reveal {
		fields = append(fields, zap.String("body", body))
	} else {
		fields = append(fields, zap.Int("body_bytes", len(body)))
	}
	l.logger.Info("notification", fields...)
	return nil
}

// Publisher is the subset of *nats.Conn used by the NATS notifier.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// Message is the JSON payload published by the NATS notifier.
type Message struct {
	Address string `json:"address"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NATS publishes each message for an external mailer to deliver.
type NATS struct {
	conn    Publisher
	subject string
}

// NewNATS returns a NATS notifier. subject defaults to "authcore.notify".
func NewNATS(conn Publisher, subject string) *NATS {
	if subject == "" {
		subject = "authcore.notify"
	}
	return &NATS{conn: conn, subject: subject}
}

func (n *NATS) Send(ctx context.Context, address, subject, body string) error {
	if !validAddress(address) {
		return ErrInvalidAddress
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(Message{Address: address, Subject: subject, Body: body})
	if err != nil {
		return err
	}
	return n.conn.Publish(n.subject, data)
}
