package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"unifield-backend/internal/models"
)

type UserRepository struct {
	DB *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	return r.DB.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, role, retailer_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		u.Email, u.PasswordHash, u.Role, u.RetailerID,
	).Scan(&u.ID, &u.CreatedAt)
}

func (r *UserRepository) Get(ctx context.Context, id int) (*models.User, error) {
	row := r.DB.QueryRow(ctx,
		`SELECT id, email, password_hash, role, retailer_id, created_at
		 FROM users WHERE id=$1`, id)

	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.RetailerID, &u.CreatedAt)
	return &u, err
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.DB.QueryRow(ctx,
		`SELECT id, email, password_hash, role, retailer_id, created_at
		 FROM users WHERE lower(email)=lower($1)`, email)

	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.RetailerID, &u.CreatedAt)
	return &u, err
}

// CountAdmins is used at startup to decide whether to bootstrap an admin.
func (r *UserRepository) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `SELECT count(*) FROM users WHERE role=$1`, models.RoleAdmin).Scan(&n)
	return n, err
}
