// Package metrics объявляет счётчики Prometheus потока отмены.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VariantAssignments считает новые закрепления плеча эксперимента.
	VariantAssignments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cancellation_variant_assignments_total",
		Help: "Number of variants drawn and persisted for new cancellation attempts.",
	}, []string{"variant"})

	// AssignmentConflicts считает проигранные гонки вставки попытки.
	AssignmentConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cancellation_assignment_conflicts_total",
		Help: "Number of attempt inserts resolved by re-reading a concurrently created row.",
	})

	// Completions считает финализированные попытки по исходу.
	Completions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cancellation_completions_total",
		Help: "Number of cancellation attempts finalized, by outcome.",
	}, []string{"outcome"})

	// FlowTransitions считает применённые события автомата.
	FlowTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cancellation_flow_transitions_total",
		Help: "Number of accepted flow events, by source step and event type.",
	}, []string{"step", "event"})

	// NotificationsHandled считает события отмены, обработанные воркером уведомлений.
	NotificationsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cancellation_notifications_handled_total",
		Help: "Number of cancellation events consumed by the notification worker, by outcome.",
	}, []string{"outcome"})
)
