// Package email sends notification mail over SMTP.
package email

import (
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Config holds the SMTP account the console sends from.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// dialer is the part of gomail.Dialer the sender uses.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Sender delivers plain-text notification mail.
type Sender struct {
	dialer dialer
	from   string
	logger *zap.Logger
}

// NewSender builds a Sender dialing the configured SMTP host.
func NewSender(cfg Config, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

// Send delivers one message. The SMTP dial happens per send; notification
// volume is low enough that holding connections open buys nothing.
func (s *Sender) Send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	s.logger.Debug("mail sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
