package model

import (
	"time"
)

type Goal struct {
	ID                 string    `db:"id" json:"id"`
	UserID             string    `db:"user_id" json:"user_id"`
	HabitID            string    `db:"habit_id" json:"habit_id"`
	GoalText           string    `db:"goal_text" json:"goal_text"`
	XP                 int       `db:"xp" json:"xp"`
	Completed          bool      `db:"completed" json:"completed"`
	UsesHealthTracking bool      `db:"uses_health_tracking" json:"uses_health_tracking"`
	HealthMetric       *string   `db:"health_metric" json:"health_metric"`
	TargetValue        *float64  `db:"target_value" json:"target_value"`
	TargetUnit         *string   `db:"target_unit" json:"target_unit"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`

	// Joined from habits on listing queries
	HabitName string `db:"habit_name" json:"habit_name,omitempty"`
}

// HasTarget reports whether the goal can be scored against a positive target
func (g *Goal) HasTarget() bool {
	return g.TargetValue != nil && *g.TargetValue > 0
}

type GoalCreate struct {
	HabitID            string   `json:"habit_id"`
	GoalText           string   `json:"goal_text"`
	XP                 *int     `json:"xp"`
	Completed          bool     `json:"completed"`
	UsesHealthTracking bool     `json:"uses_health_tracking"`
	HealthMetric       *string  `json:"health_metric"`
	TargetValue        *float64 `json:"target_value"`
	TargetUnit         *string  `json:"target_unit"`
}

// GoalUpdate is a partial update. Absent fields are left untouched and
// nullable fields can be cleared with an explicit JSON null.
type GoalUpdate struct {
	HabitID            Optional[string]  `json:"habit_id"`
	GoalText           Optional[string]  `json:"goal_text"`
	XP                 Optional[int]     `json:"xp"`
	Completed          Optional[bool]    `json:"completed"`
	UsesHealthTracking Optional[bool]    `json:"uses_health_tracking"`
	HealthMetric       Optional[string]  `json:"health_metric"`
	TargetValue        Optional[float64] `json:"target_value"`
	TargetUnit         Optional[string]  `json:"target_unit"`
}

func (u *GoalUpdate) Empty() bool {
	return !u.HabitID.Set && !u.GoalText.Set && !u.XP.Set && !u.Completed.Set &&
		!u.UsesHealthTracking.Set && !u.HealthMetric.Set && !u.TargetValue.Set && !u.TargetUnit.Set
}
