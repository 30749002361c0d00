package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"remitta/internal/models"
	"remitta/internal/repository"
	"remitta/internal/service"
)

// ============================================================
// ExchangeHandler Tests
// ============================================================

func newTestExchangeHandler(t *testing.T) (*ExchangeHandler, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}

	svc := service.NewExchangeService(repository.NewExchangeRepository(db), zap.NewNop().Sugar())
	return NewExchangeHandler(svc), mock, func() { db.Close() }
}

func testExchangeRow() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "owner_email", "balance",
		"incoming_fee_type", "incoming_fee_value", "outgoing_fee_type", "outgoing_fee_value",
		"created_at", "updated_at",
	}).AddRow(
		3, "Exchange A", "", "421.335",
		models.FeeTypePercentage, "2.5",
		models.FeeTypeFixed, "11",
		now, now,
	)
}

func TestCreateExchangeInvalidFeeValue(t *testing.T) {
	handler, mock, closeFn := newTestExchangeHandler(t)
	defer closeFn()

	body := `{"name": "A", "incoming_fee": {"type": "FIXED", "value": "two"}, "outgoing_fee": {"type": "FIXED", "value": "1"}}`
	req := httptest.NewRequest("POST", "/api/v1/exchanges", strings.NewReader(body))
	rr := httptest.NewRecorder()

	handler.CreateExchange(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "invalid_fee") {
		t.Errorf("expected invalid_fee code in body: %s", rr.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCreateExchangeEmptyNameReturns400(t *testing.T) {
	handler, mock, closeFn := newTestExchangeHandler(t)
	defer closeFn()

	body := `{"incoming_fee": {"type": "FIXED", "value": "1"}, "outgoing_fee": {"type": "FIXED", "value": "1"}}`
	req := httptest.NewRequest("POST", "/api/v1/exchanges", strings.NewReader(body))
	rr := httptest.NewRecorder()

	handler.CreateExchange(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "name_required") {
		t.Errorf("expected name_required code in body: %s", rr.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCreateExchangeSuccess(t *testing.T) {
	handler, mock, closeFn := newTestExchangeHandler(t)
	defer closeFn()

	mock.ExpectQuery(`INSERT INTO exchanges`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	body := `{"name": "Exchange A", "balance": "1000", "incoming_fee": {"type": "PERCENTAGE", "value": "2.5"}, "outgoing_fee": {"type": "FIXED", "value": "11"}}`
	req := httptest.NewRequest("POST", "/api/v1/exchanges", strings.NewReader(body))
	rr := httptest.NewRecorder()

	handler.CreateExchange(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetExchangeBalanceFormatsMoney(t *testing.T) {
	handler, mock, closeFn := newTestExchangeHandler(t)
	defer closeFn()

	mock.ExpectQuery(`SELECT (.+) FROM exchanges WHERE id = \$1`).
		WithArgs(3).
		WillReturnRows(testExchangeRow())

	req := httptest.NewRequest("GET", "/api/v1/exchanges/3/balance", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "3"})
	rr := httptest.NewRecorder()

	handler.GetExchangeBalance(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"421.335"`) {
		t.Errorf("expected formatted balance in body: %s", rr.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetExchangeNotFoundReturns404(t *testing.T) {
	handler, mock, closeFn := newTestExchangeHandler(t)
	defer closeFn()

	mock.ExpectQuery(`SELECT (.+) FROM exchanges WHERE id = \$1`).
		WithArgs(99).
		WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest("GET", "/api/v1/exchanges/99", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "99"})
	rr := httptest.NewRecorder()

	handler.GetExchange(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUpdateCommissionPercentageTooHigh(t *testing.T) {
	handler, mock, closeFn := newTestExchangeHandler(t)
	defer closeFn()

	body := `{"incoming_fee": {"type": "PERCENTAGE", "value": "150"}, "outgoing_fee": {"type": "FIXED", "value": "1"}}`
	req := httptest.NewRequest("PATCH", "/api/v1/exchanges/3/commission", strings.NewReader(body))
	req = mux.SetURLVars(req, map[string]string{"id": "3"})
	rr := httptest.NewRecorder()

	handler.UpdateCommission(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "percentage_too_high") {
		t.Errorf("expected percentage_too_high code in body: %s", rr.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestExchangeIDValidation(t *testing.T) {
	handler, _, closeFn := newTestExchangeHandler(t)
	defer closeFn()

	req := httptest.NewRequest("GET", "/api/v1/exchanges/zero", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "zero"})
	rr := httptest.NewRecorder()

	handler.GetExchange(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}
