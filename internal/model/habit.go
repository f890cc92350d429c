package model

import "time"

type Habit struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Description   string    `db:"description" json:"description"`
	DefaultUnit   *string   `db:"default_unit" json:"default_unit"`
	DefaultTarget *float64  `db:"default_target" json:"default_target"`
	HealthMetric  *string   `db:"health_metric" json:"health_metric"`
	Quantitative  bool      `db:"quantitative" json:"quantitative"`
	CreatedAt     time.Time `db:"created_at" json:"-"`

	DisplayName string `db:"-" json:"display_name"`
}

func (h *Habit) IsHealthEligible() bool {
	return h.HealthMetric != nil && *h.HealthMetric != ""
}
