package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/profinder/internal/models"
)

// CreateNotification сохраняет запись во входящих получателя.
func (s *Storage) CreateNotification(ctx context.Context, n models.Notification) (string, error) {
	const op = "storage.CreateNotification"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	var id string
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO notifications (recipient_id, type, title, message, related_entity_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		n.RecipientID, n.Type, n.Title, n.Message, nullString(n.RelatedEntityID)).Scan(&id)
	if err != nil {
		return "", mapErr(op, "notification", err)
	}
	return id, nil
}

// ListNotifications возвращает входящие получателя, новые первыми.
func (s *Storage) ListNotifications(ctx context.Context, recipientID string, limit int) ([]*models.Notification, error) {
	const op = "storage.ListNotifications"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, recipient_id, type, title, message, related_entity_id, read, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Notification
	for rows.Next() {
		var (
			n       models.Notification
			related sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Message, &related, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		n.RelatedEntityID = strPtr(related)
		result = append(result, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// MarkNotificationRead отмечает уведомление прочитанным; чужое уведомление не найдено.
func (s *Storage) MarkNotificationRead(ctx context.Context, id, recipientID string) error {
	const op = "storage.MarkNotificationRead"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	if err != nil {
		return mapErr(op, "notification", err)
	}
	return requireAffected(op, "notification", res)
}
