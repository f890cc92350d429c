package model

import (
	"time"
)

const (
	CompletionMissed   = "missed"
	CompletionPartial  = "partial"
	CompletionComplete = "complete"
)

// DateLayout is the calendar day format used for entry and metric dates
const DateLayout = "2006-01-02"

type JournalEntry struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	GoalID          string    `db:"goal_id" json:"goal_id"`
	EntryDate       string    `db:"entry_date" json:"entry_date"`
	Reflection      string    `db:"reflection" json:"reflection"`
	Value           *float64  `db:"value" json:"value"`
	ValueUnit       *string   `db:"value_unit" json:"value_unit"`
	CompletionLevel string    `db:"completion_level" json:"completion_level"`
	XPDelta         int       `db:"xp_delta" json:"xp_delta"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`

	// Joined on listing queries
	GoalText  string `db:"goal_text" json:"goal_text,omitempty"`
	HabitName string `db:"habit_name" json:"habit_name,omitempty"`
	GoalXP    int    `db:"goal_xp" json:"goal_xp,omitempty"`
}

func ValidCompletionLevel(level string) bool {
	return level == CompletionMissed || level == CompletionPartial || level == CompletionComplete
}

type JournalFilter struct {
	GoalID string
	From   string
	To     string
	Limit  int
}

type JournalSubmission struct {
	GoalID          string   `json:"goal_id"`
	EntryDate       string   `json:"entry_date"`
	Value           *float64 `json:"value"`
	ValueUnit       *string  `json:"value_unit"`
	Reflection      *string  `json:"reflection"`
	CompletionLevel *string  `json:"completion_level"`
}
