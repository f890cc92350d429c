package service

import (
	"math"

	"github.com/magicjournal/server/internal/model"
)

// MaxDailyXP is the award for meeting a goal's target on a day
const MaxDailyXP = 10

// Score is the outcome of measuring one day against a goal target
type Score struct {
	XP    int
	Level string
	Ratio float64
}

// ScoreValue maps a measured value to XP on a linear scale:
// xp = min(10, round(max(ratio, 0) * 10)). A nil value scores as missed.
func ScoreValue(measured *float64, target float64) Score {
	if measured == nil || target <= 0 {
		return Score{XP: 0, Level: model.CompletionMissed}
	}

	ratio := *measured / target
	xp := int(math.Round(math.Max(ratio, 0) * MaxDailyXP))
	if xp > MaxDailyXP {
		xp = MaxDailyXP
	}

	level := model.CompletionMissed
	switch {
	case ratio >= 1:
		level = model.CompletionComplete
	case ratio > 0:
		level = model.CompletionPartial
	}

	return Score{XP: xp, Level: level, Ratio: ratio}
}

// ScoreLevel awards XP for a self-reported completion level
func ScoreLevel(level string) Score {
	switch level {
	case model.CompletionComplete:
		return Score{XP: MaxDailyXP, Level: level, Ratio: 1}
	case model.CompletionPartial:
		return Score{XP: MaxDailyXP / 2, Level: level, Ratio: 0.5}
	default:
		return Score{XP: 0, Level: model.CompletionMissed}
	}
}
