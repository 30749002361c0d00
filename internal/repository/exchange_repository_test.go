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
// ExchangeRepository Tests
// ============================================================

var exchangeTestColumns = []string{
	"id", "name", "owner_email", "balance",
	"incoming_fee_type", "incoming_fee_value", "outgoing_fee_type", "outgoing_fee_value",
	"created_at", "updated_at",
}

func TestExchangeRepositoryCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO exchanges`).
		WithArgs("Exchange A", "owner@example.com", sqlmock.AnyArg(),
			models.FeeTypePercentage, sqlmock.AnyArg(),
			models.FeeTypeFixed, sqlmock.AnyArg(),
			sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	exchange := &models.Exchange{
		Name:       "Exchange A",
		OwnerEmail: "owner@example.com",
		Balance:    decimal.NewFromInt(1000),
		IncomingFee: models.CommissionConfig{
			Type:  models.FeeTypePercentage,
			Value: decimal.NewFromFloat(2.5),
		},
		OutgoingFee: models.CommissionConfig{
			Type:  models.FeeTypeFixed,
			Value: decimal.NewFromInt(11),
		},
	}

	repo := NewExchangeRepository(db)
	if err := repo.Create(context.Background(), exchange); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exchange.ID != 3 {
		t.Errorf("expected ID=3, got %d", exchange.ID)
	}
	if exchange.CreatedAt.IsZero() || !exchange.UpdatedAt.Equal(exchange.CreatedAt) {
		t.Error("timestamps not initialized")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestExchangeRepositoryGetByID(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectedErr error
	}{
		{
			name: "found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(exchangeTestColumns).AddRow(
					3, "Exchange A", "", "421.335",
					models.FeeTypePercentage, "2.5",
					models.FeeTypeFixed, "11",
					now, now,
				)
				mock.ExpectQuery(`SELECT (.+) FROM exchanges WHERE id = \$1`).
					WithArgs(3).
					WillReturnRows(rows)
			},
			expectedErr: nil,
		},
		{
			name: "not found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM exchanges WHERE id = \$1`).
					WithArgs(3).
					WillReturnError(sql.ErrNoRows)
			},
			expectedErr: ErrExchangeNotFound,
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

			repo := NewExchangeRepository(db)
			exchange, err := repo.GetByID(context.Background(), 3)

			if tt.expectedErr != nil {
				if !errors.Is(err, tt.expectedErr) {
					t.Errorf("expected %v, got %v", tt.expectedErr, err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				// баланс с дробной частью переживает чтение без потерь
				want := decimal.RequireFromString("421.335")
				if !exchange.Balance.Equal(want) {
					t.Errorf("expected balance 421.335, got %s", exchange.Balance)
				}
				if exchange.IncomingFee.Type != models.FeeTypePercentage {
					t.Errorf("expected PERCENTAGE incoming fee, got %s", exchange.IncomingFee.Type)
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestExchangeRepositoryUpdateBalance(t *testing.T) {
	tests := []struct {
		name        string
		affected    int64
		expectedErr error
	}{
		{"success", 1, nil},
		{"not found", 0, ErrExchangeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			mock.ExpectBegin()
			mock.ExpectExec(`UPDATE exchanges SET balance = \$2, updated_at = \$3 WHERE id = \$1`).
				WithArgs(3, sqlmock.AnyArg(), sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			tx, err := db.Begin()
			if err != nil {
				t.Fatalf("failed to begin tx: %v", err)
			}

			repo := NewExchangeRepository(db)
			err = repo.UpdateBalance(context.Background(), tx, 3, decimal.NewFromInt(389))

			if !errors.Is(err, tt.expectedErr) {
				t.Errorf("expected %v, got %v", tt.expectedErr, err)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestExchangeRepositoryUpdateCommission(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE exchanges SET`).
		WithArgs(3, models.FeeTypeFixed, sqlmock.AnyArg(), models.FeeTypePercentage, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewExchangeRepository(db)
	err = repo.UpdateCommission(context.Background(), 3,
		models.CommissionConfig{Type: models.FeeTypeFixed, Value: decimal.NewFromInt(5)},
		models.CommissionConfig{Type: models.FeeTypePercentage, Value: decimal.NewFromInt(3)},
	)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
