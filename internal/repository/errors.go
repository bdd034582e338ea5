package repository

import "github.com/Dhoini/Billing-service/internal/domain"

// Реэкспорт ошибок домена для удобства репозиториев
var (
	ErrNotFound         = domain.ErrNotFound
	ErrDuplicate        = domain.ErrDuplicate
	ErrConflict         = domain.ErrConflict
	ErrInvalidOperation = domain.ErrInvalidOperation
)
