package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ErrConcurrencyConflict - конфликт блокировок или таймаут ожидания.
// Транзакция откачена целиком, вызывающая сторона может повторить попытку.
var ErrConcurrencyConflict = errors.New("concurrent transaction conflict, safe to retry")

// TxManager выполняет единицы работы координатора как атомарные транзакции.
//
// Каждая административная операция над заявкой - одна транзакция:
// захват строк FOR UPDATE, проверки, мутации, commit. Любая ошибка
// на любом шаге откатывает транзакцию целиком.
//
// Ожидание блокировок ограничено lock_timeout / statement_timeout на
// уровне транзакции, чтобы ни одна операция не зависала бесконечно
// за чужой блокировкой.
type TxManager struct {
	db          *sql.DB
	lockTimeout time.Duration
	stmtTimeout time.Duration
}

// NewTxManager создает менеджер транзакций с заданными таймаутами
func NewTxManager(db *sql.DB, lockTimeout, stmtTimeout time.Duration) *TxManager {
	return &TxManager{
		db:          db,
		lockTimeout: lockTimeout,
		stmtTimeout: stmtTimeout,
	}
}

// DB возвращает пул соединений для операций вне транзакций
func (m *TxManager) DB() *sql.DB {
	return m.db
}

// WithinTx выполняет fn внутри транзакции.
// Commit при nil, Rollback при ошибке или панике. Таймауты блокировок
// устанавливаются через SET LOCAL и действуют только внутри транзакции.
func (m *TxManager) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyError(err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.lockTimeout.Milliseconds())); err != nil {
		tx.Rollback()
		return classifyError(err)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", m.stmtTimeout.Milliseconds())); err != nil {
		tx.Rollback()
		return classifyError(err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return classifyError(err)
	}

	if err := tx.Commit(); err != nil {
		return classifyError(err)
	}
	return nil
}

// Коды ошибок PostgreSQL, означающие конфликт конкурирующих транзакций
const (
	pgCodeLockNotAvailable  = "55P03" // FOR UPDATE не дождался блокировки (lock_timeout)
	pgCodeQueryCanceled     = "57014" // statement_timeout
	pgCodeSerializationFail = "40001"
	pgCodeDeadlockDetected  = "40P01"
)

// classifyError помечает конфликты блокировок как ErrConcurrencyConflict,
// остальные ошибки пропускает как есть
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgCodeLockNotAvailable, pgCodeQueryCanceled, pgCodeSerializationFail, pgCodeDeadlockDetected:
			return fmt.Errorf("%w: %s", ErrConcurrencyConflict, pqErr.Message)
		}
	}
	return err
}

// IsRetryable возвращает true для ошибок, которые безопасно повторить:
// конфликты блокировок и кратковременные сбои соединения.
// Бизнес-ошибки (недопустимый переход, нехватка баланса) детерминированы
// и не повторяются никогда.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConcurrencyConflict) {
		return true
	}
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// класс 08 - connection exception
		return len(pqErr.Code) >= 2 && string(pqErr.Code)[:2] == "08"
	}
	return false
}

// IsUniqueViolation возвращает true для нарушения уникального ограничения
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == "23505"
}

// Connect открывает пул соединений и проверяет доступность базы
func Connect(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
