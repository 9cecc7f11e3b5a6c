package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/profinder/internal/models"
)

const paymentColumns = `id, user_id, professional_id, engagement_id, amount, currency, kind, status,
	provider_ref, refund_amount, refunded_at, created_at`

func insertPayment(ctx context.Context, q queryRower, p models.Payment) (string, error) {
	const op = "storage.insertPayment"
	currency := p.Currency
	if currency == "" {
		currency = "INR"
	}
	var id string
	err := q.QueryRowContext(ctx, `
		INSERT INTO payments
		    (user_id, professional_id, engagement_id, amount, currency, kind, status,
		     provider_ref, refund_amount, refunded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		p.UserID, nullString(p.ProfessionalID), nullString(p.EngagementID), p.Amount, currency,
		p.Kind, p.Status, p.ProviderRef, p.RefundAmount, nullTime(p.RefundedAt)).Scan(&id)
	if err != nil {
		return "", mapErr(op, "payment", err)
	}
	return id, nil
}

func scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	var (
		p                        models.Payment
		professional, engagement sql.NullString
		refundedAt               sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.UserID, &professional, &engagement, &p.Amount, &p.Currency,
		&p.Kind, &p.Status, &p.ProviderRef, &p.RefundAmount, &refundedAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.ProfessionalID = strPtr(professional)
	p.EngagementID = strPtr(engagement)
	p.RefundedAt = timePtr(refundedAt)
	return &p, nil
}

// CreatePayment дописывает запись в журнал платежей и возвращает её идентификатор.
func (s *Storage) CreatePayment(ctx context.Context, p models.Payment) (string, error) {
	const op = "storage.CreatePayment"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}
	id, err := insertPayment(ctx, s.DB, p)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

func (s *Storage) queryPayments(ctx context.Context, op, query string, args ...any) ([]*models.Payment, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListPaymentsByUser возвращает платежи пользователя, новые первыми.
func (s *Storage) ListPaymentsByUser(ctx context.Context, userID string) ([]*models.Payment, error) {
	const op = "storage.ListPaymentsByUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.queryPayments(ctx, op,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListPayments возвращает весь журнал платежей.
func (s *Storage) ListPayments(ctx context.Context) ([]*models.Payment, error) {
	const op = "storage.ListPayments"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.queryPayments(ctx, op, `SELECT `+paymentColumns+` FROM payments ORDER BY created_at DESC`)
}
