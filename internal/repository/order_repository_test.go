package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"remitta/internal/models"
)

// ============================================================
// OrderRepository Tests
// ============================================================

var orderTestColumns = []string{
	"id", "code", "exchange_id", "type", "status", "amount", "commission", "net_amount",
	"sender_name", "recipient_name", "bank_name", "wallet_alias", "mobile",
	"cancellation_requested", "rejection_reason", "cancellation_reason",
	"created_at", "approved_at", "completed_at",
}

func orderRow(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(orderTestColumns).AddRow(
		1, "T25090001", 3, models.OrderTypeOutgoing, models.StatusSubmitted,
		"100", "11", "111",
		"Sender", "Recipient", "Bank", "", "",
		false, "", "",
		now, nil, nil,
	)
}

func TestNewOrderRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewOrderRepository(db)
	if repo == nil {
		t.Fatal("NewOrderRepository returned nil")
	}
	if repo.db != db {
		t.Error("db not set correctly")
	}
}

func TestOrderRepositoryCreate(t *testing.T) {
	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO orders`).
					WithArgs("T25090001", 3, models.OrderTypeOutgoing, models.StatusSubmitted,
						sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
						"Sender", "Recipient", "Bank", "", "", sqlmock.AnyArg()).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
			},
			expectError: false,
		},
		{
			name: "database error",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO orders`).
					WillReturnError(errors.New("database error"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			order := &models.Order{
				Code:          "T25090001",
				ExchangeID:    3,
				Type:          models.OrderTypeOutgoing,
				Status:        models.StatusSubmitted,
				Amount:        decimal.NewFromInt(100),
				Commission:    decimal.NewFromInt(11),
				NetAmount:     decimal.NewFromInt(111),
				SenderName:    "Sender",
				RecipientName: "Recipient",
				BankName:      "Bank",
			}

			repo := NewOrderRepository(db)
			err = repo.Create(context.Background(), order)

			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if order.ID != 42 {
					t.Errorf("expected ID=42, got %d", order.ID)
				}
				if order.CreatedAt.IsZero() {
					t.Error("CreatedAt not set")
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestOrderRepositoryGetByID(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectedErr error
	}{
		{
			name: "found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM orders WHERE id = \$1`).
					WithArgs(1).
					WillReturnRows(orderRow(now))
			},
			expectedErr: nil,
		},
		{
			name: "not found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM orders WHERE id = \$1`).
					WithArgs(1).
					WillReturnError(sql.ErrNoRows)
			},
			expectedErr: ErrOrderNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewOrderRepository(db)
			order, err := repo.GetByID(context.Background(), 1)

			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Errorf("expected %v, got %v", tt.expectedErr, err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if order.Code != "T25090001" {
					t.Errorf("expected code T25090001, got %s", order.Code)
				}
				if !order.Amount.Equal(decimal.NewFromInt(100)) {
					t.Errorf("expected amount 100, got %s", order.Amount)
				}
				if order.ApprovedAt != nil {
					t.Error("expected nil ApprovedAt for SUBMITTED order")
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestOrderRepositoryGetByCode(t *testing.T) {
	now := time.Now()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM orders WHERE code = \$1`).
		WithArgs("T25090001").
		WillReturnRows(orderRow(now))

	repo := NewOrderRepository(db)
	order, err := repo.GetByCode(context.Background(), "T25090001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ID != 1 {
		t.Errorf("expected ID=1, got %d", order.ID)
	}

	mock.ExpectQuery(`SELECT (.+) FROM orders WHERE code = \$1`).
		WithArgs("T25099999").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetByCode(context.Background(), "T25099999"); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestOrderRepositoryList(t *testing.T) {
	now := time.Now()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows(orderTestColumns).
		AddRow(1, "T25090001", 3, models.OrderTypeOutgoing, models.StatusProcessing,
			"100", "11", "111", "A", "B", "", "", "", false, "", "", now, now, nil).
		AddRow(2, "T25090002", 3, models.OrderTypeIncoming, models.StatusSubmitted,
			"50", "24.6", "25.4", "C", "D", "", "", "", false, "", "", now, nil, nil)

	mock.ExpectQuery(`SELECT (.+) FROM orders`).
		WithArgs("", 3, 100).
		WillReturnRows(rows)

	repo := NewOrderRepository(db)
	orders, err := repo.List(context.Background(), "", 3, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if orders[0].Status != models.StatusProcessing {
		t.Errorf("expected PROCESSING, got %s", orders[0].Status)
	}
	if orders[0].ApprovedAt == nil {
		t.Error("expected ApprovedAt set for PROCESSING order")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestOrderRepositoryLockForSettlement(t *testing.T) {
	now := time.Now()

	lockedColumns := []string{
		"id", "code", "exchange_id", "type", "status", "amount", "commission", "net_amount",
		"sender_name", "recipient_name", "bank_name", "wallet_alias", "mobile",
		"cancellation_requested", "rejection_reason", "cancellation_reason",
		"created_at", "approved_at", "completed_at",
		"e_id", "e_name", "e_owner_email", "e_balance",
		"incoming_fee_type", "incoming_fee_value",
		"outgoing_fee_type", "outgoing_fee_value",
		"e_created_at", "e_updated_at",
	}

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectedErr error
	}{
		{
			name: "locks order with owning exchange",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(lockedColumns).AddRow(
					1, "T25090001", 3, models.OrderTypeOutgoing, models.StatusPendingReview,
					"100", "11", "111",
					"Sender", "Recipient", "Bank", "", "",
					false, "", "",
					now, nil, nil,
					3, "Exchange A", "", "500",
					models.FeeTypePercentage, "2.5",
					models.FeeTypeFixed, "11",
					now, now,
				)
				mock.ExpectQuery(`FOR UPDATE OF o, e`).
					WithArgs(1).
					WillReturnRows(rows)
			},
			expectedErr: nil,
		},
		{
			name: "not found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FOR UPDATE OF o, e`).
					WithArgs(1).
					WillReturnError(sql.ErrNoRows)
			},
			expectedErr: ErrOrderNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			mock.ExpectBegin()
			tt.mockSetup(mock)

			tx, err := db.Begin()
			if err != nil {
				t.Fatalf("failed to begin tx: %v", err)
			}

			repo := NewOrderRepository(db)
			locked, err := repo.LockForSettlement(context.Background(), tx, 1)

			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Errorf("expected %v, got %v", tt.expectedErr, err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if locked.Order.ID != 1 {
					t.Errorf("expected order ID 1, got %d", locked.Order.ID)
				}
				if locked.Exchange.ID != 3 {
					t.Errorf("expected exchange ID 3, got %d", locked.Exchange.ID)
				}
				if !locked.Exchange.Balance.Equal(decimal.NewFromInt(500)) {
					t.Errorf("expected balance 500, got %s", locked.Exchange.Balance)
				}
				if locked.Exchange.OutgoingFee.Type != models.FeeTypeFixed {
					t.Errorf("expected FIXED outgoing fee, got %s", locked.Exchange.OutgoingFee.Type)
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestOrderRepositoryUpdateStatus(t *testing.T) {
	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectedErr error
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE orders SET`).
					WithArgs(1, models.StatusProcessing, sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			expectedErr: nil,
		},
		{
			name: "no rows means order vanished",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE orders SET`).
					WithArgs(1, models.StatusProcessing, sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			expectedErr: ErrOrderNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			mock.ExpectBegin()
			tt.mockSetup(mock)

			tx, err := db.Begin()
			if err != nil {
				t.Fatalf("failed to begin tx: %v", err)
			}

			repo := NewOrderRepository(db)
			err = repo.UpdateStatus(context.Background(), tx, 1, models.StatusProcessing, time.Now())

			if !errors.Is(err, tt.expectedErr) {
				t.Errorf("expected %v, got %v", tt.expectedErr, err)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestOrderRepositorySetCancelled(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE orders SET status = 'CANCELLED', cancellation_reason = \$2, cancellation_requested = FALSE`).
		WithArgs(1, "sender request").
		WillReturnResult(sqlmock.NewResult(0, 1))

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("failed to begin tx: %v", err)
	}

	repo := NewOrderRepository(db)
	if err := repo.SetCancelled(context.Background(), tx, 1, "sender request"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
