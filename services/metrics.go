package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ledgerEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mitche_ledger_entries_total",
		Help: "Hope ledger entries applied, by category.",
	}, []string{"category"})

	ritualAwardsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mitche_ritual_awards_total",
		Help: "Ritual award attempts, by outcome.",
	}, []string{"outcome"})

	achievementsAwardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mitche_achievements_awarded_total",
		Help: "Achievements newly awarded to users.",
	})
)
