package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/internal/repository"
	"github.com/Dhoini/Billing-service/pkg/logger"
	"github.com/google/uuid"
)

// UserService инкапсулирует бизнес-логику работы с пользователями
type UserService struct {
	userRepo repository.UserRepository
	log      *logger.Logger
}

// NewUserService конструктор сервиса пользователей
func NewUserService(userRepo repository.UserRepository, log *logger.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		log:      log,
	}
}

// Register регистрирует нового пользователя.
// Email должен быть уникальным, повторная регистрация возвращает ErrDuplicate.
func (s *UserService) Register(ctx context.Context, input domain.UserRequest) (domain.User, error) {
	user := domain.User{
		ID:        uuid.New(),
		Email:     input.Email,
		Name:      input.Name,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	created, err := s.userRepo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.log.Warnw("Attempt to register user with existing email", "email", input.Email)
			return domain.User{}, domain.ErrDuplicate
		}
		s.log.Errorw("Failed to create user", "error", err, "email", input.Email)
		return domain.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Infow("User registered", "userID", created.ID, "email", created.Email)
	return created, nil
}

// GetByID возвращает пользователя по ID
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		s.log.Errorw("Failed to get user", "error", err, "userID", id)
		return domain.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByEmail возвращает пользователя по email
func (s *UserService) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, domain.ErrNotFound
		}
		s.log.Errorw("Failed to get user by email", "error", err, "email", email)
		return domain.User{}, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}
