package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"remitta/internal/models"
)

// Ошибки репозитория заявок
var (
	ErrOrderNotFound = errors.New("order not found")
)

// Колонки заявки в порядке сканирования
const orderColumns = `id, code, exchange_id, type, status, amount, commission, net_amount,
		sender_name, recipient_name, bank_name, wallet_alias, mobile,
		cancellation_requested, rejection_reason, cancellation_reason,
		created_at, approved_at, completed_at`

// OrderRepository - работа с таблицей orders
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository создает новый экземпляр репозитория
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create сохраняет новую заявку и проставляет ID и created_at
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (code, exchange_id, type, status, amount, commission, net_amount,
			sender_name, recipient_name, bank_name, wallet_alias, mobile, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	order.CreatedAt = time.Now()

	err := r.db.QueryRowContext(
		ctx,
		query,
		order.Code,
		order.ExchangeID,
		order.Type,
		order.Status,
		order.Amount,
		order.Commission,
		order.NetAmount,
		order.SenderName,
		order.RecipientName,
		order.BankName,
		order.WalletAlias,
		order.Mobile,
		order.CreatedAt,
	).Scan(&order.ID)

	if err != nil {
		return err
	}

	return nil
}

func scanOrder(row interface{ Scan(dest ...interface{}) error }, order *models.Order) error {
	return row.Scan(
		&order.ID,
		&order.Code,
		&order.ExchangeID,
		&order.Type,
		&order.Status,
		&order.Amount,
		&order.Commission,
		&order.NetAmount,
		&order.SenderName,
		&order.RecipientName,
		&order.BankName,
		&order.WalletAlias,
		&order.Mobile,
		&order.CancellationRequested,
		&order.RejectionReason,
		&order.CancellationReason,
		&order.CreatedAt,
		&order.ApprovedAt,
		&order.CompletedAt,
	)
}

// GetByID возвращает заявку по ID
func (r *OrderRepository) GetByID(ctx context.Context, id int) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order := &models.Order{}
	err := scanOrder(r.db.QueryRowContext(ctx, query, id), order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return order, nil
}

// GetByCode возвращает заявку по человекочитаемому номеру
func (r *OrderRepository) GetByCode(ctx context.Context, code string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE code = $1`

	order := &models.Order{}
	err := scanOrder(r.db.QueryRowContext(ctx, query, code), order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return order, nil
}

// List возвращает заявки с фильтрами по статусу и обменнику
func (r *OrderRepository) List(ctx context.Context, status string, exchangeID, limit int) ([]*models.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = 0 OR exchange_id = $2)
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, status, exchangeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order := &models.Order{}
		if err := scanOrder(rows, order); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// LockForSettlement захватывает заявку вместе с владеющим обменником
// эксклюзивной блокировкой до конца транзакции.
//
// Блокируются обе строки (FOR UPDATE OF o, e): конкурирующий обработчик
// той же заявки или того же баланса встанет в очередь и после commit
// увидит уже новый статус и баланс.
func (r *OrderRepository) LockForSettlement(ctx context.Context, tx *sql.Tx, orderID int) (*models.LockedOrder, error) {
	query := `
		SELECT o.id, o.code, o.exchange_id, o.type, o.status, o.amount, o.commission, o.net_amount,
			o.sender_name, o.recipient_name, o.bank_name, o.wallet_alias, o.mobile,
			o.cancellation_requested, o.rejection_reason, o.cancellation_reason,
			o.created_at, o.approved_at, o.completed_at,
			e.id, e.name, e.owner_email, e.balance,
			e.incoming_fee_type, e.incoming_fee_value,
			e.outgoing_fee_type, e.outgoing_fee_value,
			e.created_at, e.updated_at
		FROM orders o
		JOIN exchanges e ON e.id = o.exchange_id
		WHERE o.id = $1
		FOR UPDATE OF o, e`

	locked := &models.LockedOrder{}
	o := &locked.Order
	e := &locked.Exchange

	err := tx.QueryRowContext(ctx, query, orderID).Scan(
		&o.ID,
		&o.Code,
		&o.ExchangeID,
		&o.Type,
		&o.Status,
		&o.Amount,
		&o.Commission,
		&o.NetAmount,
		&o.SenderName,
		&o.RecipientName,
		&o.BankName,
		&o.WalletAlias,
		&o.Mobile,
		&o.CancellationRequested,
		&o.RejectionReason,
		&o.CancellationReason,
		&o.CreatedAt,
		&o.ApprovedAt,
		&o.CompletedAt,
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

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return locked, nil
}

// UpdateStatus переводит заявку в новый статус внутри транзакции.
// approved_at / completed_at проставляются через COALESCE ровно один раз
// и никогда не перезаписываются.
func (r *OrderRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, orderID int, newStatus string, now time.Time) error {
	query := `
		UPDATE orders SET
			status = $2,
			approved_at = CASE WHEN $2 IN ('APPROVED', 'PROCESSING') THEN COALESCE(approved_at, $3) ELSE approved_at END,
			completed_at = CASE WHEN $2 = 'COMPLETED' THEN COALESCE(completed_at, $3) ELSE completed_at END
		WHERE id = $1`

	return execForOrder(ctx, tx, query, orderID, newStatus, now)
}

// UpdateAmounts перезаписывает сумму и net-сумму заявки.
// Комиссия намеренно не трогается: она зафиксирована при создании.
func (r *OrderRepository) UpdateAmounts(ctx context.Context, tx *sql.Tx, orderID int, amount, netAmount decimal.Decimal) error {
	query := `UPDATE orders SET amount = $2, net_amount = $3 WHERE id = $1`
	return execForOrder(ctx, tx, query, orderID, amount, netAmount)
}

// SetRejected переводит заявку в REJECTED с обязательной причиной
func (r *OrderRepository) SetRejected(ctx context.Context, tx *sql.Tx, orderID int, reason string) error {
	query := `UPDATE orders SET status = 'REJECTED', rejection_reason = $2 WHERE id = $1`
	return execForOrder(ctx, tx, query, orderID, reason)
}

// SetCancelled переводит заявку в CANCELLED, фиксирует причину
// и снимает флаг запроса на отмену
func (r *OrderRepository) SetCancelled(ctx context.Context, tx *sql.Tx, orderID int, reason string) error {
	query := `
		UPDATE orders SET status = 'CANCELLED', cancellation_reason = $2, cancellation_requested = FALSE
		WHERE id = $1`
	return execForOrder(ctx, tx, query, orderID, reason)
}

// SetCancellationRequested выставляет флаг запроса на отмену от обменника
func (r *OrderRepository) SetCancellationRequested(ctx context.Context, tx *sql.Tx, orderID int) error {
	query := `UPDATE orders SET cancellation_requested = TRUE WHERE id = $1`
	return execForOrder(ctx, tx, query, orderID)
}

// ClearCancellationRequest снимает флаг запроса на отмену,
// не меняя статус и баланс (отклонение запроса администратором)
func (r *OrderRepository) ClearCancellationRequest(ctx context.Context, tx *sql.Tx, orderID int) error {
	query := `UPDATE orders SET cancellation_requested = FALSE WHERE id = $1`
	return execForOrder(ctx, tx, query, orderID)
}

func execForOrder(ctx context.Context, tx *sql.Tx, query string, orderID int, args ...interface{}) error {
	res, err := tx.ExecContext(ctx, query, append([]interface{}{orderID}, args...)...)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	return nil
}
