package email

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

// Sender — интерфейс отправки писем. Отправка всегда best-effort:
// вызывающие логируют ошибку и не откатывают свои изменения.
type Sender interface {
	Send(to, subject, htmlBody string) error
	SendTemplate(to, subject, templateName string, data TemplateData) error
}

// GomailSender отправляет через SMTP (gomail).
type GomailSender struct {
	config Config
	dialer *gomail.Dialer
}

func NewGomailSender(config Config) (Sender, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid email config: %w", err)
	}

	return &GomailSender{
		config: config,
		dialer: gomail.NewDialer(config.SMTPHost, config.SMTPPort, config.Username, config.Password),
	}, nil
}

func (s *GomailSender) Send(to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.config.FromEmail, s.config.FromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	return s.dialer.DialAndSend(m)
}

func (s *GomailSender) SendTemplate(to, subject, templateName string, data TemplateData) error {
	body, err := Render(templateName, data)
	if err != nil {
		return err
	}
	return s.Send(to, subject, body)
}

// NoopSender для окружений без SMTP (dev, тесты).
type NoopSender struct{}

func (NoopSender) Send(to, subject, htmlBody string) error { return nil }

func (NoopSender) SendTemplate(to, subject, templateName string, data TemplateData) error {
	return nil
}
