package domain

import "time"

const (
	LastMinuteOfDay     = 24*60 - 1
	DefaultDwellMinutes = 20
)

// ResolvedSchedule is a stop's opening window (minutes of day) and dwell time
// after defaults and clamping. OpeningMinutes < ClosingMinutes always holds.
type ResolvedSchedule struct {
	OpeningMinutes int `json:"opening_minutes"`
	ClosingMinutes int `json:"closing_minutes"`
	DwellMinutes   int `json:"dwell_minutes"`
}

// ResolveSchedule merges optional raw values with defaults: open all day,
// 20 minute dwell. Nil means "not configured".
func ResolveSchedule(opening, closing, dwell *int) ResolvedSchedule {
	openMin := 0
	if opening != nil {
		openMin = clampMinute(*opening)
	}

	closeMin := LastMinuteOfDay
	if closing != nil {
		closeMin = clampMinute(*closing)
	}

	if closeMin <= openMin {
		if openMin == LastMinuteOfDay {
			openMin = LastMinuteOfDay - 1
		}
		closeMin = openMin + 1
	}

	d := DefaultDwellMinutes
	if dwell != nil {
		d = max(*dwell, 1)
	}

	return ResolvedSchedule{OpeningMinutes: openMin, ClosingMinutes: closeMin, DwellMinutes: d}
}

func clampMinute(m int) int {
	return min(max(m, 0), LastMinuteOfDay)
}

// Dwell is the time spent on site.
func (s ResolvedSchedule) Dwell() time.Duration {
	return time.Duration(s.DwellMinutes) * time.Minute
}

// Window projects the opening and closing minutes onto the calendar day of
// day, in day's location. ok is false when day is the zero time.
func (s ResolvedSchedule) Window(day time.Time) (openAt, closeAt time.Time, ok bool) {
	if day.IsZero() {
		return time.Time{}, time.Time{}, false
	}

	y, m, d := day.Date()
	loc := day.Location()
	openAt = time.Date(y, m, d, s.OpeningMinutes/60, s.OpeningMinutes%60, 0, 0, loc)
	closeAt = time.Date(y, m, d, s.ClosingMinutes/60, s.ClosingMinutes%60, 0, 0, loc)
	return openAt, closeAt, true
}
