package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

// ============================================================
// SequenceRepository Tests
// ============================================================

func TestSequenceRepositoryNextValue(t *testing.T) {
	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expected    int
		expectError bool
	}{
		{
			name: "first order of the month",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO order_sequences`).
					WithArgs(2025, 9).
					WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(1))
			},
			expected: 1,
		},
		{
			name: "existing counter increments",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO order_sequences`).
					WithArgs(2025, 9).
					WillReturnRows(sqlmock.NewRows([]string{"last_value"}).AddRow(137))
			},
			expected: 137,
		},
		{
			name: "database error",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO order_sequences`).
					WithArgs(2025, 9).
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

			repo := NewSequenceRepository(db)
			value, err := repo.NextValue(context.Background(), 2025, 9)

			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if value != tt.expected {
					t.Errorf("expected %d, got %d", tt.expected, value)
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}
