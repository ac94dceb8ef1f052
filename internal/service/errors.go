package service

import (
	"errors"
	"fmt"

	"github.com/shestoi/warehouse/internal/repository"
)

var (
	// ErrValidation отсутствует или некорректно обязательное поле
	ErrValidation = errors.New("validation failed")
	// ErrInvalidArgument некорректный аргумент операции журнала (количество <= 0)
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound товар не найден
	ErrNotFound = errors.New("item not found")
	// ErrConflict код товара уже занят
	ErrConflict = errors.New("item code already exists")
	// ErrInsufficientStock списание больше остатка
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrUpstreamUnavailable языковая модель недоступна (сеть, таймаут)
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// InsufficientStockError несёт текущий остаток для диагностики.
// errors.Is(err, ErrInsufficientStock) == true.
type InsufficientStockError struct {
	ItemID    int64
	Current   int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %d: current %d, requested %d", e.ItemID, e.Current, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// fromRepo переводит ошибки хранилища в ошибки сервиса
func fromRepo(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrConflict):
		return ErrConflict
	default:
		return err
	}
}
