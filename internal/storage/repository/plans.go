package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/profinder/internal/models"
)

// FindActivePlanSubscriptions возвращает неистёкшие периоды тарифа вместе с контактами владельца.
func (s *Storage) FindActivePlanSubscriptions(ctx context.Context) ([]*models.PlanSubscription, error) {
	const op = "storage.FindActivePlanSubscriptions"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT ps.id, ps.professional_id, ps.plan_name, ps.start_date, ps.end_date,
		       ps.is_expired, ps.reminded_at, u.uid, u.email, u.name
		FROM plan_subscriptions ps
		JOIN professional_profiles p ON p.id = ps.professional_id
		JOIN users u ON u.uid = p.user_id
		WHERE NOT ps.is_expired
		ORDER BY ps.end_date`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.PlanSubscription
	for rows.Next() {
		var (
			ps       models.PlanSubscription
			reminded sql.NullTime
		)
		if err := rows.Scan(&ps.ID, &ps.ProfessionalID, &ps.PlanName, &ps.StartDate, &ps.EndDate,
			&ps.IsExpired, &reminded, &ps.UserID, &ps.Email, &ps.Name); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ps.RemindedAt = timePtr(reminded)
		result = append(result, &ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// MarkReminded отмечает отправку напоминания. Возвращает false, если напоминание уже было.
func (s *Storage) MarkReminded(ctx context.Context, id string, now time.Time) (bool, error) {
	const op = "storage.MarkReminded"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE plan_subscriptions SET reminded_at = $2 WHERE id = $1 AND reminded_at IS NULL`, id, now)
	if err != nil {
		return false, mapErr(op, "plan subscription", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// MarkExpired закрывает период тарифа и возвращает профиль на trial, если у него
// не осталось других действующих периодов. Возвращает false, если период уже закрыт.
func (s *Storage) MarkExpired(ctx context.Context, id string) (bool, error) {
	const op = "storage.MarkExpired"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	var expired bool
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		var professionalID string
		err := tx.QueryRowContext(ctx, `
			UPDATE plan_subscriptions SET is_expired = TRUE
			WHERE id = $1 AND NOT is_expired
			RETURNING professional_id`, id).Scan(&professionalID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return mapErr(op, "plan subscription", err)
		}
		expired = true

		_, err = tx.ExecContext(ctx, `
			UPDATE professional_profiles
			SET plan = 'trial', renewal_date = NULL, updated_at = NOW()
			WHERE id = $1 AND plan = 'pro'
			  AND NOT EXISTS (
			      SELECT 1 FROM plan_subscriptions
			      WHERE professional_id = $1 AND NOT is_expired AND end_date > NOW())`, professionalID)
		if err != nil {
			return mapErr(op, "profile", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return expired, nil
}
