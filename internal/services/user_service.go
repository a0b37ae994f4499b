package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"

	"unifield-backend/internal/auth"
	"unifield-backend/internal/cache"
	"unifield-backend/internal/models"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// UserStore is the persistence the service needs; *repositories.UserRepository
// satisfies it.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id int) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	CountAdmins(ctx context.Context) (int, error)
}

type UserService struct {
	Repo       UserStore
	JWTManager *auth.JWTManager
}

func NewUserService(repo UserStore, jwtManager *auth.JWTManager) *UserService {
	return &UserService{
		Repo:       repo,
		JWTManager: jwtManager,
	}
}

func (s *UserService) GetUser(ctx context.Context, id int) (*models.User, error) {
	return s.Repo.Get(ctx, id)
}

func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, errors.New("email and password are required")
	}

	// A cached credential hash skips the bcrypt comparison
	var user *models.User
	if id, ok := cache.GetCachedAuth(ctx, req.Email, req.Password); ok {
		if u, err := s.Repo.Get(ctx, int(id)); err == nil {
			user = u
		}
	}

	if user == nil {
		u, err := s.Repo.GetByEmail(ctx, req.Email)
		if err != nil {
			return nil, ErrInvalidCredentials
		}
		if !auth.VerifyPassword(u.PasswordHash, req.Password) {
			return nil, ErrInvalidCredentials
		}
		cache.CacheAuth(ctx, req.Email, req.Password, int64(u.ID))
		user = u
	}

	token, err := s.JWTManager.GenerateToken(user)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		Token: token,
		User:  user,
	}, nil
}

// EnsureAdmin creates the first admin account when none exists yet.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	n, err := s.Repo.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := s.Repo.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	u := &models.User{Email: strings.ToLower(email), PasswordHash: hash, Role: models.RoleAdmin}
	if err := s.Repo.Create(ctx, u); err != nil {
		return err
	}
	log.Printf("[Auth] Bootstrapped admin %s", u.Email)
	return nil
}
