// Package server реализует gRPC-сервис проверки здоровья (grpc.health.v1).
//
// HealthServer периодически опрашивает зависимости приложения и публикует
// статус SERVING или NOT_SERVING для всего сервера и для каждой зависимости по имени.
package server

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/magabrotheeeer/profinder/internal/lib/sl"
)

const (
	defaultInterval = 15 * time.Second
	pingTimeout    = 3 * time.Second
)

// Pinger проверяет доступность зависимости.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer публикует состояние зависимостей через стандартный health-сервис.
type HealthServer struct {
	hs       *health.Server
	checks   map[string]Pinger
	interval time.Duration
	log      *slog.Logger
}

// NewHealthServer создает новый экземпляр HealthServer. До первой проверки
// все сервисы находятся в состоянии NOT_SERVING.
func NewHealthServer(log *slog.Logger, interval time.Duration, checks map[string]Pinger) *HealthServer {
	if interval <= 0 {
		interval = defaultInterval
	}
	h := &HealthServer{
		hs:       health.NewServer(),
		checks:   checks,
		interval: interval,
		log:      log,
	}
	h.hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	for name := range checks {
		h.hs.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return h
}

// Register регистрирует health-сервис на gRPC-сервере.
func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.hs)
}

// Refresh опрашивает все зависимости и обновляет статусы. Возвращает true, если все доступны.
func (h *HealthServer) Refresh(ctx context.Context) bool {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	for _, name := range names {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := h.checks[name].Ping(pctx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			healthy = false
			status = healthpb.HealthCheckResponse_NOT_SERVING
			h.log.Warn("dependency is unavailable", slog.String("dependency", name), sl.Err(err))
		}
		h.hs.SetServingStatus(name, status)
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.hs.SetServingStatus("", overall)
	return healthy
}

// Run выполняет проверку сразу и затем с заданным интервалом до отмены ctx.
// После остановки все сервисы переводятся в NOT_SERVING.
func (h *HealthServer) Run(ctx context.Context) {
	h.Refresh(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.hs.Shutdown()
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}
