package mapty

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	workoutsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapty",
		Name:      "workouts_created_total",
		Help:      "Number of workouts logged, by type.",
	}, []string{"type"})
	alertsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapty",
		Name:      "alerts_total",
		Help:      "Number of alerts shown to the user, by reason.",
	}, []string{"reason"})
	workoutsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mapty",
		Name:      "workouts",
		Help:      "Number of workouts in the current session.",
	})
)

func init() {
	prometheus.MustRegister(workoutsCounter, alertsCounter, workoutsGauge)
}

func recordWorkout(w *Workout, n int) {
	workoutsCounter.WithLabelValues(string(w.Type)).Inc()
	workoutsGauge.Set(float64(n))
}
