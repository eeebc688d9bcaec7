package maintenance

import "time"

// NextDue resolves the next due date for a frequency rule from an anchor
// date. It is pure: same inputs, same output, no clock access. Chaining
// the result back in as the anchor always moves strictly forward.
//
// Month-based frequencies preserve the anchor's day-of-month; when the
// target month is shorter, the date clamps to that month's last day
// (Jan 31 + 1 month = Feb 28/29).
func NextDue(anchor time.Time, freq FrequencyType, intervalDays int) (time.Time, error) {
	switch freq {
	case FrequencyDaily:
		return anchor.AddDate(0, 0, 1), nil
	case FrequencyWeekly:
		return anchor.AddDate(0, 0, 7), nil
	case FrequencyMonthly:
		return addMonthsClamped(anchor, 1), nil
	case FrequencyQuarterly:
		return addMonthsClamped(anchor, 3), nil
	case FrequencySemiannual:
		return addMonthsClamped(anchor, 6), nil
	case FrequencyAnnual:
		return addMonthsClamped(anchor, 12), nil
	case FrequencyCustom:
		if intervalDays < 1 {
			return time.Time{}, ErrInvalidInterval
		}
		return anchor.AddDate(0, 0, intervalDays), nil
	default:
		return time.Time{}, ErrUnknownFrequency
	}
}

// addMonthsClamped steps forward by whole calendar months without the
// overflow normalization of time.AddDate (which would turn Jan 31 + 1
// month into Mar 3).
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	target := time.Date(year, month+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysInMonth(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
