package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/profinder/internal/lib/apperr"
	"github.com/magabrotheeeer/profinder/internal/models"
)

const userColumns = `uid, name, email, password_hash, role, verified, balance, aadhar_card, voter_id, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var (
		u             models.User
		aadhar, voter sql.NullString
	)
	if err := row.Scan(&u.UID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Verified,
		&u.Balance, &aadhar, &voter, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.AadharCard = strPtr(aadhar)
	u.VoterID = strPtr(voter)
	return &u, nil
}

// CreateUser сохраняет нового пользователя и возвращает его UID.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.CreateUser"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	var newID string
	query := `INSERT INTO users (name, email, password_hash, role, verified)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING uid`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Name, user.Email, user.PasswordHash, user.Role, user.Verified).Scan(&newID); err != nil {
		return "", mapErr(op, "user", err)
	}
	return newID, nil
}

// EnsureSuperadmin создаёт суперадминистратора или повышает существующего пользователя с тем же email.
func (s *Storage) EnsureSuperadmin(ctx context.Context, user models.User) (string, error) {
	const op = "storage.EnsureSuperadmin"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	var id string
	query := `INSERT INTO users (name, email, password_hash, role, verified)
			  VALUES ($1, $2, $3, 'superadmin', TRUE)
			  ON CONFLICT (email) DO UPDATE SET role = 'superadmin', verified = TRUE
			  RETURNING uid`
	if err := s.DB.QueryRowContext(ctx, query, user.Name, user.Email, user.PasswordHash).Scan(&id); err != nil {
		return "", mapErr(op, "user", err)
	}
	return id, nil
}

// GetUser возвращает пользователя по UID.
func (s *Storage) GetUser(ctx context.Context, uid string) (*models.User, error) {
	const op = "storage.GetUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	u, err := scanUser(s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE uid = $1`, uid))
	if err != nil {
		return nil, mapErr(op, "user", err)
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	u, err := scanUser(s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, mapErr(op, "user", err)
	}
	return u, nil
}

// UpdatePassword заменяет хеш пароля пользователя.
func (s *Storage) UpdatePassword(ctx context.Context, uid, passwordHash string) error {
	const op = "storage.UpdatePassword"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `UPDATE users SET password_hash = $2 WHERE uid = $1`, uid, passwordHash)
	if err != nil {
		return mapErr(op, "user", err)
	}
	return requireAffected(op, "user", res)
}

// ListUsersByRole возвращает всех пользователей с указанной ролью.
func (s *Storage) ListUsersByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	const op = "storage.ListUsersByRole"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY created_at`, role)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// SetUserRole меняет роль и признак верификации пользователя.
// Суперадминистратора метод не понижает.
func (s *Storage) SetUserRole(ctx context.Context, uid string, role models.Role, verified bool) error {
	const op = "storage.SetUserRole"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET role = $2, verified = $3 WHERE uid = $1 AND role <> 'superadmin'`,
		uid, role, verified)
	if err != nil {
		return mapErr(op, "user", err)
	}
	return requireAffected(op, "user", res)
}

// SetUserDocuments копирует ссылки на документы личности в учётную запись.
// Пустая ссылка сохраняет прежнее значение.
func (s *Storage) SetUserDocuments(ctx context.Context, uid string, docs models.ProfileDocuments) error {
	const op = "storage.SetUserDocuments"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `
		UPDATE users
		SET aadhar_card = COALESCE($2, aadhar_card),
		    voter_id = COALESCE($3, voter_id)
		WHERE uid = $1`,
		uid, optional(docs.AadharCard), optional(docs.VoterID))
	if err != nil {
		return mapErr(op, "user", err)
	}
	return requireAffected(op, "user", res)
}

// ResetUserIdentity возвращает пользователю роль user и очищает документы.
func (s *Storage) ResetUserIdentity(ctx context.Context, uid string) error {
	const op = "storage.ResetUserIdentity"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `
		UPDATE users
		SET role = 'user', verified = FALSE, aadhar_card = NULL, voter_id = NULL
		WHERE uid = $1 AND role <> 'superadmin'`, uid)
	if err != nil {
		return mapErr(op, "user", err)
	}
	return requireAffected(op, "user", res)
}

func requireAffected(op, entity string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return apperr.New(apperr.KindNotFound, op, entity+" not found")
	}
	return nil
}
