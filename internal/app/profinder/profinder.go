package profinder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"
	"google.golang.org/grpc"

	"github.com/magabrotheeeer/profinder/internal/blobstore"
	"github.com/magabrotheeeer/profinder/internal/cache"
	"github.com/magabrotheeeer/profinder/internal/config"
	grpcserver "github.com/magabrotheeeer/profinder/internal/grpc/server"
	authhandler "github.com/magabrotheeeer/profinder/internal/http/handlers/auth"
	"github.com/magabrotheeeer/profinder/internal/http/handlers/billing"
	contacthandler "github.com/magabrotheeeer/profinder/internal/http/handlers/contact"
	"github.com/magabrotheeeer/profinder/internal/http/handlers/engagements"
	"github.com/magabrotheeeer/profinder/internal/http/handlers/notifications"
	platformhandler "github.com/magabrotheeeer/profinder/internal/http/handlers/platform"
	"github.com/magabrotheeeer/profinder/internal/http/handlers/profiles"
	"github.com/magabrotheeeer/profinder/internal/lib/jwt"
	"github.com/magabrotheeeer/profinder/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/profinder/internal/lib/sl"
	"github.com/magabrotheeeer/profinder/internal/metrics"
	"github.com/magabrotheeeer/profinder/internal/migrations"
	authservice "github.com/magabrotheeeer/profinder/internal/services/auth"
	"github.com/magabrotheeeer/profinder/internal/services/authz"
	"github.com/magabrotheeeer/profinder/internal/services/contact"
	"github.com/magabrotheeeer/profinder/internal/services/engagement"
	"github.com/magabrotheeeer/profinder/internal/services/notification"
	"github.com/magabrotheeeer/profinder/internal/services/payment"
	"github.com/magabrotheeeer/profinder/internal/services/platform"
	"github.com/magabrotheeeer/profinder/internal/services/subscription"
	"github.com/magabrotheeeer/profinder/internal/services/verification"
	"github.com/magabrotheeeer/profinder/internal/storage/repository"
)

const shutdownTimeout = 15 * time.Second

// App представляет HTTP API вместе с gRPC-сервисом здоровья.
type App struct {
	server     *http.Server
	grpcServer *grpc.Server
	grpcAddr   string
	health     *grpcserver.HealthServer
	logger     *slog.Logger
	db         *repository.Storage
	cache      *cache.Cache
	conn       *amqp.Connection
	ch         *amqp.Channel
}

// New подключает хранилища и брокер, применяет миграции, создает учётную
// запись суперадминистратора и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.profinder.New"

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		closeAll(logger, nil, nil, cacheRedis, db)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.MailQueues(cfg.MailQueue))
	if err != nil {
		closeAll(logger, nil, conn, cacheRedis, db)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	blobs, err := blobstore.New(ctx, cfg.S3)
	if err != nil {
		closeAll(logger, ch, conn, cacheRedis, db)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	m := metrics.New()
	az := authz.New(authz.DefaultRules())
	mailer := rabbitmq.NewMailPublisher(ch)
	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	notificationService := notification.New(db, mailer, az, m, logger)
	authService := authservice.New(db, cacheRedis, mailer, jwtMaker, logger, cfg.OTPTTL)
	verificationService := verification.New(db, cacheRedis, notificationService, az, m, logger, cfg.SearchCacheTTL)
	engagementService := engagement.New(db, notificationService, az, m, logger, cfg.Lifecycle)
	subscriptionService := subscription.New(db, az, m, logger, cfg.Lifecycle)
	paymentService := payment.New(db, az, logger)
	platformService := platform.New(db, az, logger)
	supportInbox := cfg.SupportEmail
	if supportInbox == "" {
		supportInbox = cfg.SuperadminEmail
	}
	contactService := contact.New(db, mailer, az, logger, supportInbox)

	if cfg.SuperadminEmail != "" {
		uid, err := authService.EnsureSuperadmin(ctx, cfg.SuperadminName, cfg.SuperadminEmail, cfg.SuperadminPassword)
		if err != nil {
			closeAll(logger, ch, conn, cacheRedis, db)
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		logger.Info("superadmin account ensured", slog.String("uid", uid))
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg.HTTPServer, jwtMaker, Handlers{
		Auth:          authhandler.New(logger, authService),
		Profiles:      profiles.New(logger, verificationService, blobs),
		Engagements:   engagements.New(logger, engagementService),
		Billing:       billing.New(logger, subscriptionService, paymentService),
		Notifications: notifications.New(logger, notificationService),
		Platform:      platformhandler.New(logger, platformService),
		Contact:       contacthandler.New(logger, contactService),
		Metrics:       m.Handler(),
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	health := grpcserver.NewHealthServer(logger, 0, map[string]grpcserver.Pinger{
		"postgres": db,
		"redis":    cacheRedis,
	})
	grpcSrv := grpc.NewServer()
	health.Register(grpcSrv)

	return &App{
		server:     srv,
		grpcServer: grpcSrv,
		grpcAddr:   cfg.AddressGRPC,
		health:     health,
		logger:     logger,
		db:         db,
		cache:      cacheRedis,
		conn:       conn,
		ch:         ch,
	}, nil
}

// Run запускает HTTP и gRPC серверы и останавливает их при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", a.grpcAddr)
	if err != nil {
		return fmt.Errorf("app.profinder.Run: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()
	go func() {
		a.logger.Info("gRPC health server starting on", slog.String("address", a.grpcAddr))
		errCh <- a.grpcServer.Serve(lis)
	}()

	healthCtx, stopHealth := context.WithCancel(ctx)
	defer stopHealth()
	go a.health.Run(healthCtx)

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
	}

	timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.logger.Info("shutting down HTTP server gracefully")
	if err := a.server.Shutdown(timeoutCtx); err != nil && runErr == nil {
		runErr = err
	}
	a.grpcServer.GracefulStop()
	closeAll(a.logger, a.ch, a.conn, a.cache, a.db)
	return runErr
}

func closeAll(logger *slog.Logger, ch *amqp.Channel, conn *amqp.Connection, c *cache.Cache, db *repository.Storage) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if c != nil {
		if err := c.Close(); err != nil {
			logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("failed to close storage", sl.Err(err))
		}
	}
}
