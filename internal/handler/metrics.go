package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "story_registrations_total",
		Help: "Total number of successful user registrations.",
	})

	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_logins_total",
			Help: "Total number of login attempts by status.",
		},
		[]string{"status"},
	)

	storiesPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "story_published_total",
		Help: "Total number of published stories.",
	})

	submissionsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "story_submissions_rejected_total",
		Help: "Total number of story submissions rejected by the draft validator.",
	})

	reviewsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "story_reviews_created_total",
		Help: "Total number of created reviews.",
	})

	tokenVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "story_token_verifications_total",
			Help: "Total number of access token verification attempts by status.",
		},
		[]string{"status"},
	)
)
