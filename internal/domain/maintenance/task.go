package maintenance

import (
	"database/sql"
	"time"
)

// FrequencyType enumerates how often a maintenance task recurs.
type FrequencyType string

const (
	FrequencyDaily      FrequencyType = "daily"
	FrequencyWeekly     FrequencyType = "weekly"
	FrequencyMonthly    FrequencyType = "monthly"
	FrequencyQuarterly  FrequencyType = "quarterly"
	FrequencySemiannual FrequencyType = "semiannual"
	FrequencyAnnual     FrequencyType = "annual"
	FrequencyCustom     FrequencyType = "custom" // interval given by Task.IntervalDays
)

// Task is a maintenance task template shared across halls.
// Deactivating a task stops new occurrence generation but leaves
// already-open occurrences untouched.
type Task struct {
	ID                int64
	Name              string
	Description       sql.NullString
	FrequencyType     FrequencyType
	IntervalDays      int // only meaningful for FrequencyCustom
	EstimatedDuration int // minutes
	IsActive          bool
	ActivatedAt       time.Time // reference date for the first occurrence of a pair
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
