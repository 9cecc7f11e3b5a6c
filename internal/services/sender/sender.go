// Package sender доставляет письма из почтовой очереди через SMTP.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/profinder/internal/lib/sl"
	"github.com/magabrotheeeer/profinder/internal/lib/smtp"
	"github.com/magabrotheeeer/profinder/internal/metrics"
	"github.com/magabrotheeeer/profinder/internal/models"
)

// Service отправляет письма, полученные из очереди.
type Service struct {
	transport smtp.TransportInterface
	metrics   *metrics.Metrics
	log       *slog.Logger
}

// New создает новый экземпляр Service.
func New(transport smtp.TransportInterface, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		transport: transport,
		metrics:   m,
		log:       log,
	}
}

// HandleMail разбирает сообщение очереди и отправляет письмо.
// Ошибка возвращает сообщение в очередь, битое сообщение отбрасывается потребителем после повтора.
func (s *Service) HandleMail(body []byte) error {
	const op = "sender.HandleMail"
	var msg models.MailMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("%s: error unmarshalling message: %w", op, err)
	}
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("%s: message has no recipient", op)
	}
	if err := s.Send(msg); err != nil {
		s.metrics.NotificationFailure("smtp")
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Send отправляет одно письмо в кодировке UTF-8.
func (s *Service) Send(msg models.MailMessage) error {
	from := s.transport.GetSMTPUser()
	raw := strings.Join([]string{
		"From: " + from,
		"To: " + msg.To,
		"Subject: " + msg.Subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		msg.Body,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(from); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", from), sl.Err(err))
		return err
	}
	if err := client.Rcpt(msg.To); err != nil {
		s.log.Error("failed to set RCPT TO", slog.String("recipient", msg.To), sl.Err(err))
		return err
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}
	if _, err = wc.Write([]byte(raw)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}
	if err = wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}
	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", slog.String("to", msg.To), slog.String("subject", msg.Subject))
	return nil
}
