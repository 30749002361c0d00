package repository

import (
	"context"
	"database/sql"
)

// SequenceRepository - помесячные счетчики номеров заявок.
//
// Счетчик - отдельная, узкая зона блокировки: инкремент выполняется
// одним UPSERT-запросом вне транзакции координатора, чтобы создание
// заявок не вставало в очередь за несвязанными расчетными транзакциями.
type SequenceRepository struct {
	db *sql.DB
}

// NewSequenceRepository создает новый экземпляр репозитория
func NewSequenceRepository(db *sql.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// NextValue атомарно выдает следующий номер для месяца (year, month).
// Первое обращение в месяце создает счетчик со значением 1, последующие
// инкрементируют под блокировкой строки. Два конкурентных создания
// заявки в одном месяце никогда не получат одинаковый номер.
func (r *SequenceRepository) NextValue(ctx context.Context, year, month int) (int, error) {
	query := `
		INSERT INTO order_sequences (year, month, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (year, month)
		DO UPDATE SET last_value = order_sequences.last_value + 1
		RETURNING last_value`

	var value int
	if err := r.db.QueryRowContext(ctx, query, year, month).Scan(&value); err != nil {
		return 0, err
	}

	return value, nil
}
