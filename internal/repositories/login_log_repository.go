package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"unifield-backend/internal/models"
)

type LoginLogRepository struct {
	DB *pgxpool.Pool
}

func NewLoginLogRepository(db *pgxpool.Pool) *LoginLogRepository {
	return &LoginLogRepository{DB: db}
}

// Record stores a successful sign in
func (r *LoginLogRepository) Record(ctx context.Context, userID int, ipAddress, userAgent string) (int64, error) {
	query := `
		INSERT INTO login_logs (user_id, login_time, ip_address, user_agent)
		VALUES ($1, NOW(), $2, $3)
		RETURNING id
	`

	var id int64
	err := r.DB.QueryRow(ctx, query, userID, ipAddress, userAgent).Scan(&id)
	return id, err
}

// CloseLatest sets the logout time on the user's most recent open session
func (r *LoginLogRepository) CloseLatest(ctx context.Context, userID int) error {
	query := `
		UPDATE login_logs
		SET logout_time = NOW()
		WHERE id = (
			SELECT id FROM login_logs
			WHERE user_id = $1 AND logout_time IS NULL
			ORDER BY login_time DESC
			LIMIT 1
		)
	`

	_, err := r.DB.Exec(ctx, query, userID)
	return err
}

// List returns the newest sessions first, with the user's email
func (r *LoginLogRepository) List(ctx context.Context, limit int) ([]models.LoginLog, error) {
	query := `
		SELECT ll.id, ll.user_id, u.email, ll.login_time, ll.logout_time,
		       COALESCE(ll.ip_address, ''), COALESCE(ll.user_agent, '')
		FROM login_logs ll
		JOIN users u ON ll.user_id = u.id
		ORDER BY ll.login_time DESC
		LIMIT $1
	`

	rows, err := r.DB.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.LoginLog
	for rows.Next() {
		var l models.LoginLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Email, &l.LoginTime, &l.LogoutTime, &l.IPAddress, &l.UserAgent); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
