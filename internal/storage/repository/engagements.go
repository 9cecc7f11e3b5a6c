package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/profinder/internal/lib/apperr"
	"github.com/magabrotheeeer/profinder/internal/models"
)

const engagementColumns = `id, user_id, professional_id, title, description, amount, status, estimated_days,
	start_date, end_date, admin_notes, approved_at, completed_at, refunded,
	admin_rating_stars, admin_rating_feedback, user_rating_stars, user_rating_feedback,
	version, created_at, updated_at`

func scanEngagement(row interface{ Scan(...any) error }) (*models.Engagement, error) {
	var (
		e                              models.Engagement
		start, end, approved, complete sql.NullTime
		adminStars, userStars          sql.NullInt32
		adminFeedback, userFeedback    sql.NullString
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.ProfessionalID, &e.Title, &e.Description, &e.Amount,
		&e.Status, &e.EstimatedDays, &start, &end, &e.AdminNotes, &approved, &complete, &e.Refunded,
		&adminStars, &adminFeedback, &userStars, &userFeedback,
		&e.Version, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.StartDate = timePtr(start)
	e.EndDate = timePtr(end)
	e.ApprovedAt = timePtr(approved)
	e.CompletedAt = timePtr(complete)
	if adminStars.Valid {
		e.AdminRating = &models.Rating{Stars: int(adminStars.Int32), Feedback: adminFeedback.String}
	}
	if userStars.Valid {
		e.UserRating = &models.Rating{Stars: int(userStars.Int32), Feedback: userFeedback.String}
	}
	return &e, nil
}

func (s *Storage) queryEngagements(ctx context.Context, op, query string, args ...any) ([]*models.Engagement, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Engagement
	for rows.Next() {
		e, err := scanEngagement(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func ratingParts(r *models.Rating) (sql.NullInt32, sql.NullString) {
	if r == nil {
		return sql.NullInt32{}, sql.NullString{}
	}
	return sql.NullInt32{Int32: int32(r.Stars), Valid: true}, sql.NullString{String: r.Feedback, Valid: true}
}

// CreateEngagement сохраняет новую заявку в статусе pending с версией 1.
func (s *Storage) CreateEngagement(ctx context.Context, e models.Engagement) (string, error) {
	const op = "storage.CreateEngagement"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	var id string
	query := `INSERT INTO engagements
			      (user_id, professional_id, title, description, amount, status, estimated_days, version)
			  VALUES ($1, $2, $3, $4, $5, 'pending', $6, 1)
			  RETURNING id`
	if err := s.DB.QueryRowContext(ctx, query,
		e.UserID, e.ProfessionalID, e.Title, e.Description, e.Amount, e.EstimatedDays).Scan(&id); err != nil {
		return "", mapErr(op, "engagement", err)
	}
	return id, nil
}

// GetEngagement возвращает заявку по идентификатору.
func (s *Storage) GetEngagement(ctx context.Context, id string) (*models.Engagement, error) {
	const op = "storage.GetEngagement"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	e, err := scanEngagement(s.DB.QueryRowContext(ctx,
		`SELECT `+engagementColumns+` FROM engagements WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(op, "engagement", err)
	}
	return e, nil
}

// UpdateEngagement записывает изменяемые поля заявки, если её версия не изменилась
// с момента чтения. При успехе e.Version увеличивается. Проигравший писатель
// получает apperr.ErrConflict.
func (s *Storage) UpdateEngagement(ctx context.Context, e *models.Engagement) error {
	const op = "storage.UpdateEngagement"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	return updateEngagement(ctx, s.DB, op, e)
}

// CompleteEngagement в одной транзакции увеличивает счётчик тарифа специалиста
// и записывает заявку с условием по версии. Исчерпанный лимит trial даёт
// apperr.ErrQuotaExceeded, устаревшая версия даёт apperr.ErrConflict; в обоих
// случаях счётчик не меняется. Возвращает новое значение счётчика.
func (s *Storage) CompleteEngagement(ctx context.Context, e *models.Engagement, limit int) (int, error) {
	const op = "storage.CompleteEngagement"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	var usage int
	next := *e
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		var err error
		if usage, err = incrementUsage(ctx, tx, op, e.ProfessionalID, limit); err != nil {
			return err
		}
		return updateEngagement(ctx, tx, op, &next)
	})
	if err != nil {
		return 0, err
	}
	*e = next
	return usage, nil
}

// queryRower общий интерфейс *sql.DB и *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func updateEngagement(ctx context.Context, q queryRower, op string, e *models.Engagement) error {
	adminStars, adminFeedback := ratingParts(e.AdminRating)
	userStars, userFeedback := ratingParts(e.UserRating)

	var updatedAt time.Time
	err := q.QueryRowContext(ctx, `
		UPDATE engagements
		SET status = $3, start_date = $4, end_date = $5, admin_notes = $6,
		    approved_at = $7, completed_at = $8,
		    admin_rating_stars = $9, admin_rating_feedback = $10,
		    user_rating_stars = $11, user_rating_feedback = $12,
		    version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING updated_at`,
		e.ID, e.Version, e.Status, nullTime(e.StartDate), nullTime(e.EndDate), e.AdminNotes,
		nullTime(e.ApprovedAt), nullTime(e.CompletedAt),
		adminStars, adminFeedback, userStars, userFeedback).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Wrap(apperr.KindConflict, op, "engagement was modified concurrently", err)
	}
	if err != nil {
		return mapErr(op, "engagement", err)
	}
	e.Version++
	e.UpdatedAt = updatedAt
	return nil
}

// ListEngagementsByUser возвращает заявки пользователя, новые первыми.
func (s *Storage) ListEngagementsByUser(ctx context.Context, userID string) ([]*models.Engagement, error) {
	const op = "storage.ListEngagementsByUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.queryEngagements(ctx, op,
		`SELECT `+engagementColumns+` FROM engagements WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListEngagementsByProfessional возвращает заявки к специалисту, новые первыми.
func (s *Storage) ListEngagementsByProfessional(ctx context.Context, professionalID string) ([]*models.Engagement, error) {
	const op = "storage.ListEngagementsByProfessional"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.queryEngagements(ctx, op,
		`SELECT `+engagementColumns+` FROM engagements WHERE professional_id = $1 ORDER BY created_at DESC`, professionalID)
}

// ListEngagements возвращает все заявки.
func (s *Storage) ListEngagements(ctx context.Context) ([]*models.Engagement, error) {
	const op = "storage.ListEngagements"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.queryEngagements(ctx, op,
		`SELECT `+engagementColumns+` FROM engagements ORDER BY created_at DESC`)
}

// AverageRating возвращает среднюю оценку специалиста от пользователей и число оценок.
func (s *Storage) AverageRating(ctx context.Context, professionalID string) (float64, int, error) {
	const op = "storage.AverageRating"
	if err := checkCtx(ctx, op); err != nil {
		return 0, 0, err
	}

	var (
		avg   sql.NullFloat64
		count int
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT AVG(user_rating_stars)::float8, COUNT(user_rating_stars)
		FROM engagements
		WHERE professional_id = $1 AND status = 'completed'`, professionalID).Scan(&avg, &count)
	if err != nil {
		return 0, 0, mapErr(op, "engagement", err)
	}
	return avg.Float64, count, nil
}

// FindOverdue возвращает одобренные незавершённые заявки с прошедшей датой окончания.
func (s *Storage) FindOverdue(ctx context.Context, now time.Time) ([]*models.Engagement, error) {
	const op = "storage.FindOverdue"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.queryEngagements(ctx, op, `
		SELECT `+engagementColumns+` FROM engagements
		WHERE status = 'approved' AND end_date < $1 AND completed_at IS NULL
		ORDER BY end_date`, now)
}

// FindRefundable возвращает одобренные до cutoff и так и не завершённые заявки без возврата.
func (s *Storage) FindRefundable(ctx context.Context, cutoff time.Time) ([]*models.Engagement, error) {
	const op = "storage.FindRefundable"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.queryEngagements(ctx, op, `
		SELECT `+engagementColumns+` FROM engagements
		WHERE status = 'approved' AND completed_at IS NULL AND NOT refunded AND approved_at < $1
		ORDER BY approved_at`, cutoff)
}

// RefundEngagement в одной транзакции помечает заявку возвращённой, зачисляет сумму
// на баланс пользователя и дописывает журнал платежей. Условие refunded = false
// гарантирует, что возврат по заявке происходит не больше одного раза:
// повторный вызов получает apperr.ErrConflict.
func (s *Storage) RefundEngagement(ctx context.Context, id string, now time.Time) (*models.RefundInfo, error) {
	const op = "storage.RefundEngagement"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	info := &models.RefundInfo{EngagementID: id}
	var professionalID string
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE engagements
			SET refunded = TRUE, status = 'refunded', version = version + 1, updated_at = NOW()
			WHERE id = $1 AND NOT refunded AND status = 'approved' AND completed_at IS NULL
			RETURNING user_id, professional_id, amount`, id).Scan(&info.UserID, &professionalID, &info.Amount)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.Wrap(apperr.KindConflict, op, "engagement is not refundable", err)
		}
		if err != nil {
			return mapErr(op, "engagement", err)
		}

		res, err := tx.ExecContext(ctx, `UPDATE users SET balance = balance + $2 WHERE uid = $1`, info.UserID, info.Amount)
		if err != nil {
			return mapErr(op, "user", err)
		}
		if err := requireAffected(op, "user", res); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE payments
			SET refund_amount = amount, refunded_at = $2
			WHERE engagement_id = $1 AND kind = 'service_request' AND status = 'success' AND refunded_at IS NULL`,
			id, now); err != nil {
			return mapErr(op, "payment", err)
		}

		_, err = insertPayment(ctx, tx, models.Payment{
			UserID:         info.UserID,
			ProfessionalID: &professionalID,
			EngagementID:   &id,
			Amount:         info.Amount,
			Kind:           models.PaymentRefund,
			Status:         models.PaymentSuccess,
			RefundAmount:   info.Amount,
			RefundedAt:     &now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}
