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

const profileColumns = `id, user_id, profession, experience, city, state, pincode, address, mobile, gender,
	aadhar_card, voter_id, profile_photo, status, plan, usage, renewal_date, created_at, updated_at`

func scanProfile(row interface{ Scan(...any) error }) (*models.Profile, error) {
	var (
		p                    models.Profile
		aadhar, voter, photo sql.NullString
		renewal              sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Profession, &p.Experience, &p.City, &p.State, &p.Pincode,
		&p.Address, &p.Mobile, &p.Gender, &aadhar, &voter, &photo, &p.Status,
		&p.Subscription.Plan, &p.Subscription.Usage, &renewal, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.AadharCard = strPtr(aadhar)
	p.VoterID = strPtr(voter)
	p.ProfilePhoto = strPtr(photo)
	p.Subscription.RenewalDate = timePtr(renewal)
	return &p, nil
}

func (s *Storage) queryProfiles(ctx context.Context, op, query string, args ...any) ([]*models.Profile, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
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

// CreateProfile сохраняет профиль в статусе pending на тарифе trial.
// Повторный профиль того же пользователя даёт apperr.ErrConflict.
func (s *Storage) CreateProfile(ctx context.Context, userID string, fields models.ProfileFields, docs models.ProfileDocuments) (string, error) {
	const op = "storage.CreateProfile"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	var id string
	query := `INSERT INTO professional_profiles
			      (user_id, profession, experience, city, state, pincode, address, mobile, gender,
			       aadhar_card, voter_id, profile_photo, status, plan, usage)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'pending', 'trial', 0)
			  RETURNING id`
	if err := s.DB.QueryRowContext(ctx, query,
		userID, fields.Profession, fields.Experience, fields.City, fields.State, fields.Pincode,
		fields.Address, fields.Mobile, fields.Gender,
		optional(docs.AadharCard), optional(docs.VoterID), optional(docs.ProfilePhoto)).Scan(&id); err != nil {
		return "", mapErr(op, "profile", err)
	}
	return id, nil
}

// ResubmitProfile перезаписывает поля отклонённого профиля и возвращает его в pending.
// Ссылки на документы меняются только если переданы новые.
// Если профиль уже не в статусе rejected, возвращается apperr.ErrConflict.
func (s *Storage) ResubmitProfile(ctx context.Context, id string, fields models.ProfileFields, docs models.ProfileDocuments) error {
	const op = "storage.ResubmitProfile"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `
		UPDATE professional_profiles
		SET profession = $2, experience = $3, city = $4, state = $5, pincode = $6,
		    address = $7, mobile = $8, gender = $9,
		    aadhar_card = COALESCE($10, aadhar_card),
		    voter_id = COALESCE($11, voter_id),
		    profile_photo = COALESCE($12, profile_photo),
		    status = 'pending', updated_at = NOW()
		WHERE id = $1 AND status = 'rejected'`,
		id, fields.Profession, fields.Experience, fields.City, fields.State, fields.Pincode,
		fields.Address, fields.Mobile, fields.Gender,
		optional(docs.AadharCard), optional(docs.VoterID), optional(docs.ProfilePhoto))
	if err != nil {
		return mapErr(op, "profile", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return apperr.New(apperr.KindConflict, op, "profile is no longer rejected")
	}
	return nil
}

// GetProfile возвращает профиль по идентификатору.
func (s *Storage) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	const op = "storage.GetProfile"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	p, err := scanProfile(s.DB.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM professional_profiles WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(op, "profile", err)
	}
	return p, nil
}

// GetProfileByUserID возвращает профиль, принадлежащий пользователю.
func (s *Storage) GetProfileByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	const op = "storage.GetProfileByUserID"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	p, err := scanProfile(s.DB.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM professional_profiles WHERE user_id = $1`, userID))
	if err != nil {
		return nil, mapErr(op, "profile", err)
	}
	return p, nil
}

// SetProfileStatus меняет статус профиля.
func (s *Storage) SetProfileStatus(ctx context.Context, id string, status models.ProfileStatus) error {
	const op = "storage.SetProfileStatus"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE professional_profiles SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return mapErr(op, "profile", err)
	}
	return requireAffected(op, "profile", res)
}

// DeleteProfile удаляет профиль.
func (s *Storage) DeleteProfile(ctx context.Context, id string) error {
	const op = "storage.DeleteProfile"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM professional_profiles WHERE id = $1`, id)
	if err != nil {
		return mapErr(op, "profile", err)
	}
	return requireAffected(op, "profile", res)
}

// ListProfilesByStatus возвращает профили с заданным статусом, старые первыми.
func (s *Storage) ListProfilesByStatus(ctx context.Context, status models.ProfileStatus) ([]*models.Profile, error) {
	const op = "storage.ListProfilesByStatus"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.queryProfiles(ctx, op,
		`SELECT `+profileColumns+` FROM professional_profiles WHERE status = $1 ORDER BY created_at`, status)
}

// ListProfiles возвращает все профили.
func (s *Storage) ListProfiles(ctx context.Context) ([]*models.Profile, error) {
	const op = "storage.ListProfiles"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.queryProfiles(ctx, op,
		`SELECT `+profileColumns+` FROM professional_profiles ORDER BY created_at DESC`)
}

// SearchVerified ищет подтверждённых специалистов; пустой фильтр не ограничивает выборку.
func (s *Storage) SearchVerified(ctx context.Context, city, profession string) ([]*models.Profile, error) {
	const op = "storage.SearchVerified"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	return s.queryProfiles(ctx, op, `
		SELECT `+profileColumns+` FROM professional_profiles
		WHERE status = 'verified'
		  AND ($1 = '' OR lower(city) = lower($1))
		  AND ($2 = '' OR lower(profession) = lower($2))
		ORDER BY experience DESC, created_at`, city, profession)
}

// incrementUsage атомарно проверяет лимит тарифа и увеличивает счётчик завершённых заявок.
// На trial при usage >= limit возвращает apperr.ErrQuotaExceeded, на pro ограничения нет.
func incrementUsage(ctx context.Context, q queryRower, op, profileID string, limit int) (int, error) {
	var usage int
	err := q.QueryRowContext(ctx, `
		UPDATE professional_profiles
		SET usage = usage + 1, updated_at = NOW()
		WHERE id = $1 AND (plan = 'pro' OR usage < $2)
		RETURNING usage`, profileID, limit).Scan(&usage)
	if err == nil {
		return usage, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, mapErr(op, "profile", err)
	}

	// строка не обновлена: либо профиля нет, либо лимит исчерпан
	var exists bool
	if err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM professional_profiles WHERE id = $1)`, profileID).Scan(&exists); err != nil {
		return 0, mapErr(op, "profile", err)
	}
	if !exists {
		return 0, apperr.New(apperr.KindNotFound, op, "profile not found")
	}
	return 0, apperr.New(apperr.KindQuotaExceeded, op, "trial plan limit reached, upgrade to pro")
}

// UpgradeToPro в одной транзакции переводит профиль на pro со сбросом счётчика,
// открывает период подписки и пишет платёж в журнал.
// Профиль, уже находящийся на pro, даёт apperr.ErrConflict.
func (s *Storage) UpgradeToPro(ctx context.Context, profileID string, start, end time.Time, payment models.Payment) (*models.PlanSubscription, error) {
	const op = "storage.UpgradeToPro"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	sub := &models.PlanSubscription{
		ProfessionalID: profileID,
		PlanName:       string(models.PlanPro),
		StartDate:      start,
		EndDate:        end,
	}
	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE professional_profiles
			SET plan = 'pro', usage = 0, renewal_date = $2, updated_at = NOW()
			WHERE id = $1 AND plan = 'trial'`, profileID, end)
		if err != nil {
			return mapErr(op, "profile", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if n == 0 {
			return apperr.New(apperr.KindConflict, op, "profile is already on pro plan")
		}

		if err := tx.QueryRowContext(ctx, `
			INSERT INTO plan_subscriptions (professional_id, plan_name, start_date, end_date)
			VALUES ($1, $2, $3, $4)
			RETURNING id`, profileID, sub.PlanName, start, end).Scan(&sub.ID); err != nil {
			return mapErr(op, "plan subscription", err)
		}

		_, err = insertPayment(ctx, tx, payment)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// FindStatusDivergence находит профили, чей статус расходится с ролью владельца:
// verified при роли не admin, либо не verified при users.verified = true.
func (s *Storage) FindStatusDivergence(ctx context.Context) ([]models.ProfileIdentity, error) {
	const op = "storage.FindStatusDivergence"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT p.id, p.user_id, p.status, u.role, u.verified
		FROM professional_profiles p
		JOIN users u ON u.uid = p.user_id
		WHERE u.role <> 'superadmin'
		  AND ((p.status = 'verified' AND (u.role <> 'admin' OR NOT u.verified))
		    OR (p.status <> 'verified' AND (u.role = 'admin' OR u.verified)))`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.ProfileIdentity
	for rows.Next() {
		var pi models.ProfileIdentity
		if err := rows.Scan(&pi.ProfileID, &pi.UserID, &pi.Status, &pi.UserRole, &pi.UserVerified); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, pi)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// FindOrphanedIdentities находит пользователей без профиля, у которых остались
// роль admin, отметка verified или ссылки на документы; такое состояние остаётся
// после удаления профиля, когда сброс пользователя не прошёл.
func (s *Storage) FindOrphanedIdentities(ctx context.Context) ([]string, error) {
	const op = "storage.FindOrphanedIdentities"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT u.uid FROM users u
		LEFT JOIN professional_profiles p ON p.user_id = u.uid
		WHERE p.id IS NULL AND u.role <> 'superadmin'
		  AND (u.role = 'admin' OR u.verified
		    OR u.aadhar_card IS NOT NULL OR u.voter_id IS NOT NULL)`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}
