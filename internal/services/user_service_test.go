package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/Billing-service/internal/domain"
	"github.com/Dhoini/Billing-service/internal/repository"
	"github.com/google/uuid"
)

func TestUserRegister(t *testing.T) {
	users := repository.NewInMemoryUserRepository(testLogger())
	service := NewUserService(users, testLogger())
	ctx := context.Background()

	user, err := service.Register(ctx, domain.UserRequest{Email: "alice@example.com", Name: "Alice"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)

	got, err := service.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestUserRegister_DuplicateEmail(t *testing.T) {
	users := repository.NewInMemoryUserRepository(testLogger())
	service := NewUserService(users, testLogger())
	ctx := context.Background()

	_, err := service.Register(ctx, domain.UserRequest{Email: "bob@example.com", Name: "Bob"})
	require.NoError(t, err)

	// Email сравнивается без учета регистра
	_, err = service.Register(ctx, domain.UserRequest{Email: "BOB@example.com", Name: "Bob Again"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestUserGetByID_Missing(t *testing.T) {
	users := repository.NewInMemoryUserRepository(testLogger())
	service := NewUserService(users, testLogger())

	_, err := service.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
