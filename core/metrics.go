package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workflowsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmsdoc_workflows_created_total",
			Help: "Approval workflows created, by mode and origin.",
		},
		[]string{"mode", "origin"},
	)

	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmsdoc_decisions_total",
			Help: "Recorded approval decisions.",
		},
		[]string{"decision"},
	)

	workflowsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmsdoc_workflows_completed_total",
			Help: "Approval workflows which reached a terminal status.",
		},
		[]string{"status"},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmsdoc_notifications_total",
			Help: "Notification outcomes: stored, off (suppressed by user settings) or failed.",
		},
		[]string{"outcome"},
	)
)
