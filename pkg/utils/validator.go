package utils

// validator.go - валидация входных данных
//
// Проверка корректности данных до любых мутаций.
// Возвращает error с описанием проблемы или nil.

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Ограничения входных данных
const (
	MaxReasonLength       = 500
	MaxCounterpartyLength = 200
)

// MaxOrderAmount - верхняя граница суммы заявки (10^9)
var MaxOrderAmount = decimal.New(1, 9)

// Ошибки валидации
var (
	ErrReasonRequired = errors.New("reason is required")
	ErrReasonTooLong  = fmt.Errorf("reason exceeds maximum length of %d characters", MaxReasonLength)
)

// orderCodePattern - формат номера заявки: T + yy + mm + порядковый номер.
// Fallback-номера обязаны проходить этот же шаблон.
var orderCodePattern = regexp.MustCompile(`^T\d{2}(0[1-9]|1[0-2])\d{4}$`)

// ValidateReason проверяет обязательную причину (отклонение, отмена)
func ValidateReason(reason string) error {
	if reason == "" {
		return ErrReasonRequired
	}
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return ErrReasonTooLong
	}
	return nil
}

// ValidateOptionalReason проверяет только длину, пустая причина допустима
func ValidateOptionalReason(reason string) error {
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return ErrReasonTooLong
	}
	return nil
}

// ValidateAmount проверяет денежную сумму: строго положительная
// и в разумных пределах
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("amount must be positive, got %s", amount)
	}
	if amount.GreaterThan(MaxOrderAmount) {
		return fmt.Errorf("amount exceeds maximum of %s", MaxOrderAmount)
	}
	return nil
}

// ValidateCounterparty проверяет длину описательного поля контрагента
func ValidateCounterparty(field, value string) error {
	if utf8.RuneCountInString(value) > MaxCounterpartyLength {
		return fmt.Errorf("%s exceeds maximum length of %d characters", field, MaxCounterpartyLength)
	}
	return nil
}

// ValidateOrderCode проверяет формат номера заявки (включая fallback-номера)
func ValidateOrderCode(code string) error {
	if !orderCodePattern.MatchString(code) {
		return fmt.Errorf("invalid order code format: %q", code)
	}
	return nil
}
