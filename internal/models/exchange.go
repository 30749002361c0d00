package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Exchange представляет зарегистрированный обменный пункт
// с единым балансом и настройками комиссий
type Exchange struct {
	ID          int              `json:"id" db:"id"`
	Name        string           `json:"name" db:"name"`
	OwnerEmail  string           `json:"owner_email,omitempty" db:"owner_email"`
	Balance     decimal.Decimal  `json:"balance" db:"balance"` // может уходить в минус (долг перед центром)
	IncomingFee CommissionConfig `json:"incoming_fee"`
	OutgoingFee CommissionConfig `json:"outgoing_fee"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}

// CommissionConfig - настройка комиссии для одного направления переводов
type CommissionConfig struct {
	Type  string          `json:"type" db:"type"` // FIXED, PERCENTAGE
	Value decimal.Decimal `json:"value" db:"value"`
}

// Типы комиссии
const (
	FeeTypeFixed      = "FIXED"
	FeeTypePercentage = "PERCENTAGE"
)

// IsValidFeeType проверяет допустимость типа комиссии
func IsValidFeeType(t string) bool {
	return t == FeeTypeFixed || t == FeeTypePercentage
}

// FeeFor возвращает настройку комиссии для типа заявки
func (e *Exchange) FeeFor(orderType string) CommissionConfig {
	if orderType == OrderTypeIncoming {
		return e.IncomingFee
	}
	return e.OutgoingFee
}
