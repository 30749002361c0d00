package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики координатора расчетов
// ============================================================
//
// Использование:
// - Grafana дашборды по объему расчетов и откатов
// - Alertmanager: всплески конфликтов блокировок и отказов по балансу

// ============ Счетчики операций ============

// OrdersCreatedTotal - созданные заявки по типам
var OrdersCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "remitta",
		Subsystem: "orders",
		Name:      "created_total",
		Help:      "Total number of orders created",
	},
	[]string{"type"},
)

// SettlementsTotal - проведенные изменения баланса (списание при одобрении
// исходящей, зачисление при завершении входящей)
var SettlementsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "remitta",
		Subsystem: "ledger",
		Name:      "settlements_total",
		Help:      "Total number of committed balance mutations",
	},
	[]string{"operation", "type"},
)

// ReversalsTotal - откаты ранее проведенных списаний
var ReversalsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "remitta",
		Subsystem: "ledger",
		Name:      "reversals_total",
		Help:      "Total number of balance restorations",
	},
	[]string{"path"}, // reject, cancellation
)

// ============ Счетчики отказов ============

// InsufficientBalanceTotal - отказы одобрения из-за нехватки баланса
var InsufficientBalanceTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "remitta",
		Subsystem: "ledger",
		Name:      "insufficient_balance_total",
		Help:      "Approvals refused due to insufficient exchange balance",
	},
)

// InvalidTransitionsTotal - попытки недопустимых переходов статуса
var InvalidTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "remitta",
		Subsystem: "coordinator",
		Name:      "invalid_transitions_total",
		Help:      "Attempts to perform a transition not allowed by the state machine",
	},
	[]string{"operation"},
)

// ConcurrencyConflictsTotal - транзакции, откаченные из-за конфликта блокировок
var ConcurrencyConflictsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "remitta",
		Subsystem: "coordinator",
		Name:      "concurrency_conflicts_total",
		Help:      "Transactions rolled back due to lock contention or timeouts",
	},
)

// ============ Латентность ============

// CoordinatorDuration - длительность транзакции координатора
var CoordinatorDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "remitta",
		Subsystem: "coordinator",
		Name:      "transaction_duration_seconds",
		Help:      "Duration of a coordinator transaction from begin to commit",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	},
	[]string{"operation"},
)
