package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"remitta/internal/models"
)

// Ошибки репозитория обменников
var (
	ErrExchangeNotFound = errors.New("exchange not found")
)

const exchangeColumns = `id, name, owner_email, balance,
		incoming_fee_type, incoming_fee_value, outgoing_fee_type, outgoing_fee_value,
		created_at, updated_at`

// ExchangeRepository - работа с таблицей exchanges
type ExchangeRepository struct {
	db *sql.DB
}

// NewExchangeRepository создает новый экземпляр репозитория
func NewExchangeRepository(db *sql.DB) *ExchangeRepository {
	return &ExchangeRepository{db: db}
}

// Create сохраняет новый обменник
func (r *ExchangeRepository) Create(ctx context.Context, exchange *models.Exchange) error {
	query := `
		INSERT INTO exchanges (name, owner_email, balance,
			incoming_fee_type, incoming_fee_value, outgoing_fee_type, outgoing_fee_value,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id`

	exchange.CreatedAt = time.Now()
	exchange.UpdatedAt = exchange.CreatedAt

	return r.db.QueryRowContext(
		ctx,
		query,
		exchange.Name,
		exchange.OwnerEmail,
		exchange.Balance,
		exchange.IncomingFee.Type,
		exchange.IncomingFee.Value,
		exchange.OutgoingFee.Type,
		exchange.OutgoingFee.Value,
		exchange.CreatedAt,
	).Scan(&exchange.ID)
}

func scanExchange(row interface{ Scan(dest ...interface{}) error }, e *models.Exchange) error {
	return row.Scan(
		&e.ID,
		&e.Name,
		&e.OwnerEmail,
		&e.Balance,
		&e.IncomingFee.Type,
		&e.IncomingFee.Value,
		&e.OutgoingFee.Type,
		&e.OutgoingFee.Value,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
}

// GetByID возвращает обменник по ID
func (r *ExchangeRepository) GetByID(ctx context.Context, id int) (*models.Exchange, error) {
	query := `SELECT ` + exchangeColumns + ` FROM exchanges WHERE id = $1`

	exchange := &models.Exchange{}
	err := scanExchange(r.db.QueryRowContext(ctx, query, id), exchange)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExchangeNotFound
		}
		return nil, err
	}

	return exchange, nil
}

// GetAll возвращает все обменники
func (r *ExchangeRepository) GetAll(ctx context.Context) ([]*models.Exchange, error) {
	query := `SELECT ` + exchangeColumns + ` FROM exchanges ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exchanges []*models.Exchange
	for rows.Next() {
		exchange := &models.Exchange{}
		if err := scanExchange(rows, exchange); err != nil {
			return nil, err
		}
		exchanges = append(exchanges, exchange)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return exchanges, nil
}

// UpdateBalance записывает новый баланс обменника внутри транзакции.
// Вызывается только координатором после захвата строки FOR UPDATE -
// прямых мутаций баланса в обход координатора нет.
func (r *ExchangeRepository) UpdateBalance(ctx context.Context, tx *sql.Tx, exchangeID int, balance decimal.Decimal) error {
	query := `UPDATE exchanges SET balance = $2, updated_at = $3 WHERE id = $1`

	res, err := tx.ExecContext(ctx, query, exchangeID, balance, time.Now())
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrExchangeNotFound
	}

	return nil
}

// UpdateCommission обновляет настройки комиссий обменника.
// На уже созданные заявки не влияет: их комиссия зафиксирована при создании.
func (r *ExchangeRepository) UpdateCommission(ctx context.Context, exchangeID int, incoming, outgoing models.CommissionConfig) error {
	query := `
		UPDATE exchanges SET
			incoming_fee_type = $2, incoming_fee_value = $3,
			outgoing_fee_type = $4, outgoing_fee_value = $5,
			updated_at = $6
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		exchangeID, incoming.Type, incoming.Value, outgoing.Type, outgoing.Value, time.Now())
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrExchangeNotFound
	}

	return nil
}
