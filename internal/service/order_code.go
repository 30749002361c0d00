package service

import (
	"context"
	"fmt"
	"time"
)

// order_code.go - выдача человекочитаемых номеров заявок
//
// Формат: T + 2 цифры года + 2 цифры месяца + 4 цифры порядкового номера,
// например T25060001. Нумерация сбрасывается в 0001 в начале каждого
// календарного месяца по локальному календарю администратора.

// FormatOrderCode собирает номер заявки из года, месяца и порядкового номера
func FormatOrderCode(year, month, seq int) string {
	return fmt.Sprintf("T%02d%02d%04d", year%100, month, seq)
}

// nextOrderCode выдает следующий номер через помесячный счетчик.
// Инкремент счетчика - отдельная узкая зона блокировки, вне транзакции
// расчетов (см. SequenceRepository).
//
// Если счетчик недоступен, выдается fallback-номер с суффиксом из
// wall-clock времени: строгая последовательность теряется (деградация,
// а не тихая ошибка - пишем warning), формат номера сохраняется.
func (s *OrderService) nextOrderCode(ctx context.Context, now time.Time) string {
	year, month := now.Year(), int(now.Month())

	seq, err := s.seqRepo.NextValue(ctx, year, month)
	if err != nil {
		s.logger.Warnw("order sequence unavailable, issuing fallback code", "error", err)
		return fallbackOrderCode(now)
	}

	return FormatOrderCode(year, month, seq)
}

// fallbackOrderCode строит номер из миллисекунд wall-clock.
// Проходит тот же валидатор формата, что и обычные номера.
func fallbackOrderCode(now time.Time) string {
	suffix := int(now.UnixMilli() % 10000)
	return FormatOrderCode(now.Year(), int(now.Month()), suffix)
}
