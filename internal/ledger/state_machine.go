package ledger

import "remitta/internal/models"

// ValidTransitions определяет допустимые переходы между статусами заявки
var ValidTransitions = map[string][]string{
	models.StatusSubmitted:     {models.StatusPendingReview, models.StatusCancelled},
	models.StatusPendingReview: {models.StatusApproved, models.StatusRejected, models.StatusCancelled},
	models.StatusApproved:      {models.StatusProcessing, models.StatusCancelled},
	models.StatusProcessing:    {models.StatusCompleted, models.StatusCancelled},
	models.StatusRejected:      {}, // терминальный
	models.StatusCompleted:     {}, // терминальный
	models.StatusCancelled:     {}, // терминальный
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal возвращает true если из статуса нет переходов
func IsTerminal(s string) bool {
	allowed, ok := ValidTransitions[s]
	return ok && len(allowed) == 0
}

// StateInfo возвращает описание статуса для UI
func StateInfo(s string) string {
	switch s {
	case models.StatusSubmitted:
		return "Заявка подана обменником"
	case models.StatusPendingReview:
		return "Заявка на рассмотрении администратора"
	case models.StatusApproved:
		return "Заявка одобрена (ожидание фактической суммы)"
	case models.StatusProcessing:
		return "Перевод выполняется, средства списаны"
	case models.StatusCompleted:
		return "Перевод завершен"
	case models.StatusRejected:
		return "Заявка отклонена"
	case models.StatusCancelled:
		return "Заявка отменена"
	default:
		return "Неизвестный статус"
	}
}

// IsSettledOutgoing возвращает true если по исходящей заявке в данном
// статусе средства уже списаны с баланса (списание происходит при одобрении)
func IsSettledOutgoing(orderType, status string) bool {
	return orderType == models.OrderTypeOutgoing && status == models.StatusProcessing
}

// CanComplete проверяет, допустимо ли завершение заявки из текущего
// статуса. Исходная точка зависит от типа: OUTGOING завершается из
// PROCESSING, INCOMING - из APPROVED, у входящих фазы PROCESSING нет.
func CanComplete(orderType, status string) bool {
	if orderType == models.OrderTypeIncoming {
		return status == models.StatusApproved
	}
	return status == models.StatusProcessing
}

// CanReject проверяет, допустимо ли отклонение заявки из текущего
// статуса. Помимо обычного ребра PENDING_REVIEW -> REJECTED администратор
// может отклонить исходящую заявку уже после списания средств
// (PROCESSING) - списание при этом откатывается.
func CanReject(orderType, status string) bool {
	if CanTransition(status, models.StatusRejected) {
		return true
	}
	return IsSettledOutgoing(orderType, status)
}
