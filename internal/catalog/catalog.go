// Package catalog holds the static habit reference data and the supported
// health metric keys.
package catalog

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	MetricSteps           = "steps"
	MetricExerciseMinutes = "exercise_minutes"
	MetricSleepMinutes    = "sleep_minutes"
)

// Metrics lists the supported health metric keys in a stable order
var Metrics = []string{MetricExerciseMinutes, MetricSteps, MetricSleepMinutes}

var metricUnits = map[string]string{
	MetricSteps:           "steps",
	MetricExerciseMinutes: "minutes",
	MetricSleepMinutes:    "minutes",
}

type Habit struct {
	Name          string
	Description   string
	Unit          string
	DefaultTarget float64
	HealthMetric  string
	Quantitative  bool
}

// Habits is the full catalog seeded into the habits table
var Habits = []Habit{
	{Name: "Exercise", Description: "Minutes of moderate-to-vigorous movement.", Unit: "minutes", DefaultTarget: 30, HealthMetric: MetricExerciseMinutes, Quantitative: true},
	{Name: "Steps", Description: "Daily step count.", Unit: "steps", DefaultTarget: 8000, HealthMetric: MetricSteps, Quantitative: true},
	{Name: "Sleep Well", Description: "Minutes of quality sleep.", Unit: "minutes", DefaultTarget: 480, HealthMetric: MetricSleepMinutes, Quantitative: true},
	{Name: "Hydration", Description: "Ounces of water you drink.", Unit: "oz", DefaultTarget: 80, Quantitative: true},
	{Name: "Mindfulness", Description: "Minutes spent meditating or practicing breath work.", Unit: "minutes", DefaultTarget: 10, Quantitative: true},
	{Name: "Learning", Description: "Minutes invested in studying or reading.", Unit: "minutes", DefaultTarget: 30, Quantitative: true},
	{Name: "Creativity", Description: "Minutes spent making something (art, music, writing).", Unit: "minutes", DefaultTarget: 20, Quantitative: true},
	{Name: "Nature Time", Description: "Minutes spent outdoors or on a walk.", Unit: "minutes", DefaultTarget: 20, Quantitative: true},
	{Name: "Financial Awareness", Description: "Dollars saved, invested, or intentionally budgeted.", Unit: "dollars", DefaultTarget: 20, Quantitative: true},
	{Name: "Digital Balance", Description: "Minutes of intentional screen-free time.", Unit: "minutes", DefaultTarget: 60, Quantitative: true},
	{Name: "Healthy Eating", Description: "Make conscious food choices that support well-being."},
	{Name: "Organization", Description: "Plan your day, set intentions, and manage your space."},
	{Name: "Connection", Description: "Spend quality time nurturing relationships and community."},
	{Name: "Gratitude", Description: "Reflect on and appreciate positive aspects of your life."},
	{Name: "Kindness", Description: "Perform small acts of kindness or empathy toward others."},
	{Name: "Personal Growth", Description: "Reflect on habits, values, and self-improvement."},
}

var byKey = indexHabits()

func indexHabits() map[string]Habit {
	m := make(map[string]Habit, len(Habits))
	for _, h := range Habits {
		m[normalize(h.Name)] = h
	}
	return m
}

// casers are stateful, so each call builds its own
func normalize(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// Lookup finds a catalog habit by name, case-insensitively
func Lookup(name string) (Habit, bool) {
	h, ok := byKey[normalize(name)]
	return h, ok
}

// IsQuantitative reports whether the named habit can be tracked with a numeric target
func IsQuantitative(name string) bool {
	h, ok := Lookup(name)
	return ok && h.Quantitative
}

// HealthHabits returns the habits bound to a health metric
func HealthHabits() []Habit {
	var out []Habit
	for _, h := range Habits {
		if h.HealthMetric != "" {
			out = append(out, h)
		}
	}
	return out
}

// ValidMetric reports whether key is a supported health metric
func ValidMetric(key string) bool {
	_, ok := metricUnits[key]
	return ok
}

// MetricUnit returns the canonical unit of a health metric
func MetricUnit(key string) string {
	return metricUnits[key]
}

// DisplayName title-cases a habit name for presentation
func DisplayName(name string) string {
	return cases.Title(language.English).String(strings.ToLower(strings.TrimSpace(name)))
}
