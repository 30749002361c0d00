package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order представляет заявку на денежный перевод
type Order struct {
	ID                    int             `json:"id" db:"id"`
	Code                  string          `json:"code" db:"code"` // человекочитаемый номер (T25060001)
	ExchangeID            int             `json:"exchange_id" db:"exchange_id"`
	Type                  string          `json:"type" db:"type"` // INCOMING, OUTGOING
	Status                string          `json:"status" db:"status"`
	Amount                decimal.Decimal `json:"amount" db:"amount"`
	Commission            decimal.Decimal `json:"commission" db:"commission"` // фиксируется при создании, не пересчитывается
	NetAmount             decimal.Decimal `json:"net_amount" db:"net_amount"`
	SenderName            string          `json:"sender_name" db:"sender_name"`
	RecipientName         string          `json:"recipient_name" db:"recipient_name"`
	BankName              string          `json:"bank_name,omitempty" db:"bank_name"`
	WalletAlias           string          `json:"wallet_alias,omitempty" db:"wallet_alias"`
	Mobile                string          `json:"mobile,omitempty" db:"mobile"`
	CancellationRequested bool            `json:"cancellation_requested" db:"cancellation_requested"`
	RejectionReason       string          `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CancellationReason    string          `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CreatedAt             time.Time       `json:"created_at" db:"created_at"`
	ApprovedAt            *time.Time      `json:"approved_at,omitempty" db:"approved_at"`
	CompletedAt           *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
}

// Типы заявок
const (
	OrderTypeIncoming = "INCOMING" // средства поступают на баланс обменника
	OrderTypeOutgoing = "OUTGOING" // средства уходят с баланса обменника
)

// Статусы заявки
const (
	StatusSubmitted     = "SUBMITTED"
	StatusPendingReview = "PENDING_REVIEW"
	StatusApproved      = "APPROVED"
	StatusProcessing    = "PROCESSING"
	StatusCompleted     = "COMPLETED"
	StatusRejected      = "REJECTED"
	StatusCancelled     = "CANCELLED"
)

// IsValidOrderType проверяет допустимость типа заявки
func IsValidOrderType(t string) bool {
	return t == OrderTypeIncoming || t == OrderTypeOutgoing
}

// LockedOrder - заявка вместе с владеющим обменником.
// Обе строки захвачены FOR UPDATE внутри одной транзакции координатора.
type LockedOrder struct {
	Order    Order
	Exchange Exchange
}
