package model

import (
	"time"

	"github.com/magicjournal/server/internal/catalog"
)

const HealthSourceAppleHealth = "apple_health"

type HealthMetric struct {
	ID              string    `db:"id" json:"-"`
	UserID          string    `db:"user_id" json:"-"`
	MetricDate      string    `db:"metric_date" json:"date"`
	Steps           int       `db:"steps" json:"steps"`
	ExerciseMinutes int       `db:"exercise_minutes" json:"exercise_minutes"`
	SleepMinutes    int       `db:"sleep_minutes" json:"sleep_minutes"`
	Source          string    `db:"source" json:"source"`
	CreatedAt       time.Time `db:"created_at" json:"-"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Value returns the counter for a health metric key
func (m *HealthMetric) Value(metric string) (float64, bool) {
	switch metric {
	case catalog.MetricSteps:
		return float64(m.Steps), true
	case catalog.MetricExerciseMinutes:
		return float64(m.ExerciseMinutes), true
	case catalog.MetricSleepMinutes:
		return float64(m.SleepMinutes), true
	}
	return 0, false
}

// HealthMetricInput is one submitted day; absent counters are treated as zero
type HealthMetricInput struct {
	Date            string  `json:"date"`
	Steps           *int    `json:"steps"`
	ExerciseMinutes *int    `json:"exercise_minutes"`
	SleepMinutes    *int    `json:"sleep_minutes"`
	Source          *string `json:"source"`
}
