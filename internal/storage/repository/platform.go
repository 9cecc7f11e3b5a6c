package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/profinder/internal/models"
)

const contactColumns = `id, name, email, subject, message, status, notes, created_at, updated_at`

func scanContact(row interface{ Scan(...any) error }) (*models.ContactSubmission, error) {
	var c models.ContactSubmission
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Subject, &c.Message, &c.Status, &c.Notes,
		&c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// PlatformStats собирает сводку по площадке; окно since ограничивает новых пользователей и выручку.
func (s *Storage) PlatformStats(ctx context.Context, since time.Time) (*models.PlatformStats, error) {
	const op = "storage.PlatformStats"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	stats := &models.PlatformStats{Since: since, Engagements: map[models.EngagementStatus]int{}}
	err := s.DB.QueryRowContext(ctx, `
		SELECT
		  (SELECT COUNT(*) FROM users WHERE role = 'user'),
		  (SELECT COUNT(*) FROM users WHERE role = 'user' AND created_at >= $1),
		  (SELECT COUNT(*) FROM professional_profiles),
		  (SELECT COUNT(*) FROM professional_profiles WHERE status = 'verified'),
		  (SELECT COUNT(*) FROM professional_profiles WHERE status = 'pending'),
		  (SELECT COUNT(*) FROM professional_profiles WHERE plan = 'pro'),
		  (SELECT COALESCE(SUM(amount), 0) FROM payments
		     WHERE status = 'success' AND kind <> 'refund' AND created_at >= $1)`, since).
		Scan(&stats.TotalUsers, &stats.NewUsers, &stats.TotalProfessionals,
			&stats.VerifiedProfessionals, &stats.PendingProfessionals, &stats.ProPlans, &stats.Revenue)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM engagements GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	for rows.Next() {
		var (
			status models.EngagementStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		stats.Engagements[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return stats, nil
}

// CreateContact сохраняет обращение со статусом new.
func (s *Storage) CreateContact(ctx context.Context, c models.ContactSubmission) (string, error) {
	const op = "storage.CreateContact"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	var id string
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO contact_submissions (name, email, subject, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id`, c.Name, c.Email, c.Subject, c.Message).Scan(&id)
	if err != nil {
		return "", mapErr(op, "contact submission", err)
	}
	return id, nil
}

// GetContact возвращает обращение по идентификатору.
func (s *Storage) GetContact(ctx context.Context, id string) (*models.ContactSubmission, error) {
	const op = "storage.GetContact"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	c, err := scanContact(s.DB.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contact_submissions WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(op, "contact submission", err)
	}
	return c, nil
}

// ListContacts возвращает обращения, новые первыми; пустой status означает все.
func (s *Storage) ListContacts(ctx context.Context, status models.ContactStatus) ([]*models.ContactSubmission, error) {
	const op = "storage.ListContacts"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+contactColumns+` FROM contact_submissions
		WHERE $1 = '' OR status = $1
		ORDER BY created_at DESC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.ContactSubmission
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateContact меняет статус и заметки обращения. Пустые значения сохраняют прежние.
func (s *Storage) UpdateContact(ctx context.Context, id string, status models.ContactStatus, notes string) (*models.ContactSubmission, error) {
	const op = "storage.UpdateContact"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	c, err := scanContact(s.DB.QueryRowContext(ctx, `
		UPDATE contact_submissions
		SET status = COALESCE(NULLIF($2, ''), status),
		    notes = COALESCE(NULLIF($3, ''), notes),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+contactColumns, id, string(status), notes))
	if err != nil {
		return nil, mapErr(op, "contact submission", err)
	}
	return c, nil
}

// DeleteContact удаляет обращение.
func (s *Storage) DeleteContact(ctx context.Context, id string) error {
	const op = "storage.DeleteContact"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM contact_submissions WHERE id = $1`, id)
	if err != nil {
		return mapErr(op, "contact submission", err)
	}
	return requireAffected(op, "contact submission", res)
}
