// Package sender собирает процесс, доставляющий письма из почтовой очереди.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/profinder/internal/config"
	"github.com/magabrotheeeer/profinder/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/profinder/internal/lib/sl"
	"github.com/magabrotheeeer/profinder/internal/lib/smtp"
	"github.com/magabrotheeeer/profinder/internal/metrics"
	senderservice "github.com/magabrotheeeer/profinder/internal/services/sender"
)

// App представляет приложение отправителя писем.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	queue         string
	senderService *senderservice.Service
	logger        *slog.Logger
}

// New подключается к брокеру и готовит SMTP-транспорт.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.MailQueues(cfg.MailQueue))
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)
	senderService := senderservice.New(transport, metrics.New(), logger)

	return &App{
		conn:          conn,
		ch:            ch,
		queue:         cfg.MailQueue,
		senderService: senderService,
		logger:        logger,
	}, nil
}

// Run потребляет почтовую очередь до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, a.queue, a.senderService.HandleMail)
	if err != nil {
		a.logger.Error("failed to start mail consumer", slog.String("queue", a.queue), sl.Err(err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	return nil
}
