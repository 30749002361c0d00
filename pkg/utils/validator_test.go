package utils

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateReason(t *testing.T) {
	tests := []struct {
		name    string
		reason  string
		wantErr error
	}{
		{"valid reason", "insufficient documents", nil},
		{"empty reason", "", ErrReasonRequired},
		{"maximum length", strings.Repeat("a", MaxReasonLength), nil},
		{"too long", strings.Repeat("a", MaxReasonLength+1), ErrReasonTooLong},
		{"cyrillic counted by runes", strings.Repeat("ы", MaxReasonLength), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateReason(tt.reason)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateOptionalReason(t *testing.T) {
	if err := ValidateOptionalReason(""); err != nil {
		t.Errorf("empty optional reason must be valid: %v", err)
	}
	if err := ValidateOptionalReason(strings.Repeat("a", MaxReasonLength+1)); !errors.Is(err, ErrReasonTooLong) {
		t.Errorf("expected ErrReasonTooLong, got %v", err)
	}
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  decimal.Decimal
		wantErr bool
	}{
		{"positive", decimal.NewFromInt(100), false},
		{"fractional", decimal.RequireFromString("0.001"), false},
		{"zero", decimal.Zero, true},
		{"negative", decimal.NewFromInt(-5), true},
		{"at maximum", MaxOrderAmount, false},
		{"above maximum", MaxOrderAmount.Add(decimal.NewFromInt(1)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAmount(tt.amount)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAmount(%s) error = %v, wantErr %v", tt.amount, err, tt.wantErr)
			}
		})
	}
}

func TestValidateCounterparty(t *testing.T) {
	if err := ValidateCounterparty("sender", strings.Repeat("a", MaxCounterpartyLength)); err != nil {
		t.Errorf("unexpected error at maximum length: %v", err)
	}

	err := ValidateCounterparty("sender", strings.Repeat("a", MaxCounterpartyLength+1))
	if err == nil {
		t.Fatal("expected error for too long counterparty")
	}
	if !strings.Contains(err.Error(), "sender") {
		t.Errorf("error must mention the field name: %v", err)
	}
}

func TestValidateOrderCode(t *testing.T) {
	tests := []struct {
		code    string
		wantErr bool
	}{
		{"T25090001", false},
		{"T25120042", false},
		{"T25017777", false},
		{"T25130001", true},
		{"T25000001", true},
		{"25090001", true},
		{"T250900011", true},
		{"T2509001", true},
		{"X25090001", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := ValidateOrderCode(tt.code)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOrderCode(%q) error = %v, wantErr %v", tt.code, err, tt.wantErr)
			}
		})
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"100", "100.000"},
		{"74.6", "74.600"},
		{"19.5", "19.500"},
		{"0.0005", "0.001"},
		{"-11.25", "-11.250"},
	}

	for _, tt := range tests {
		got := FormatMoney(decimal.RequireFromString(tt.in))
		if got != tt.want {
			t.Errorf("FormatMoney(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
