package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quiz",
		Subsystem: "session",
		Name:      "started_total",
		Help:      "Quiz sessions started.",
	})

	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quiz",
		Subsystem: "session",
		Name:      "submissions_total",
		Help:      "Finalized sessions by trigger.",
	}, []string{"trigger"})

	submissionsLocalOnly = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quiz",
		Subsystem: "session",
		Name:      "submissions_local_only_total",
		Help:      "Submissions the backend failed to persist; result kept locally.",
	})
)
