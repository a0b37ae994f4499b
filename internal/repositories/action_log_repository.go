package repositories

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"unifield-backend/internal/models"
)

type ActionLogRepository struct {
	DB *pgxpool.Pool
}

func NewActionLogRepository(db *pgxpool.Pool) *ActionLogRepository {
	return &ActionLogRepository{DB: db}
}

// Create records a table mutation
func (r *ActionLogRepository) Create(ctx context.Context, entry *models.ActionLog) error {
	var changes []byte
	if len(entry.Changes) > 0 {
		var err error
		if changes, err = json.Marshal(entry.Changes); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO action_logs (user_id, action, table_name, row_id, changes, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, created_at
	`
	return r.DB.QueryRow(ctx, query,
		entry.UserID, entry.Action, entry.TableName, entry.RowID, changes, entry.IPAddress,
	).Scan(&entry.ID, &entry.CreatedAt)
}

// List returns the newest entries first. An empty table matches every table.
func (r *ActionLogRepository) List(ctx context.Context, table string, limit int) ([]models.ActionLog, error) {
	query := `
		SELECT al.id, al.user_id, u.email, al.action, al.table_name, al.row_id,
		       al.changes, COALESCE(al.ip_address, ''), al.created_at
		FROM action_logs al
		JOIN users u ON al.user_id = u.id
		WHERE $1 = '' OR al.table_name = $1
		ORDER BY al.created_at DESC, al.id DESC
		LIMIT $2
	`

	rows, err := r.DB.Query(ctx, query, table, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ActionLog
	for rows.Next() {
		var l models.ActionLog
		var changes []byte
		if err := rows.Scan(&l.ID, &l.UserID, &l.Email, &l.Action, &l.TableName, &l.RowID, &changes, &l.IPAddress, &l.CreatedAt); err != nil {
			return nil, err
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &l.Changes); err != nil {
				return nil, err
			}
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
