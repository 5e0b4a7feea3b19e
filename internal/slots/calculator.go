package slots

import (
	"iter"
	"slices"
	"time"
)

// Compute returns the bookable slots of cfg from now through horizonDays
// calendar days in the config's timezone, in chronological order. The
// sequence is lazy and may be ranged over more than once. busy need not be
// sorted or disjoint.
func Compute(cfg Config, busy []Interval, now time.Time, horizonDays int) (iter.Seq[Interval], error) {
	loc, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	merged := merge(busy)
	days := make(map[time.Weekday]bool, len(cfg.AvailableDays))
	for _, d := range cfg.AvailableDays {
		days[time.Weekday(d)] = true
	}
	today := now.In(loc)

	return func(yield func(Interval) bool) {
		for d := 0; d < horizonDays; d++ {
			day := time.Date(today.Year(), today.Month(), today.Day()+d, 0, 0, 0, 0, loc)
			if !days[day.Weekday()] {
				continue
			}
			if !daySlots(cfg, day, merged, now, yield) {
				return
			}
		}
	}, nil
}

// Bookable reports whether slot is exactly one of the slots Compute would
// return for the same inputs.
func Bookable(cfg Config, busy []Interval, now time.Time, horizonDays int, slot Interval) bool {
	seq, err := Compute(cfg, busy, now, horizonDays)
	if err != nil {
		return false
	}
	for s := range seq {
		if s.Start.After(slot.Start) {
			return false
		}
		if s.Start.Equal(slot.Start) && s.End.Equal(slot.End) {
			return true
		}
	}
	return false
}

// daySlots yields the slots of one day and reports whether the consumer
// wants more.
func daySlots(cfg Config, day time.Time, busy []Interval, now time.Time, yield func(Interval) bool) bool {
	window := Interval{
		Start: time.Date(day.Year(), day.Month(), day.Day(), cfg.AvailableStartHour, 0, 0, 0, day.Location()),
		End:   time.Date(day.Year(), day.Month(), day.Day(), cfg.AvailableEndHour, 0, 0, 0, day.Location()),
	}
	length := time.Duration(cfg.DurationMinutes) * time.Minute
	step := length + time.Duration(cfg.BufferMinutes)*time.Minute

	for _, free := range subtract(window, busy) {
		for start := free.Start; ; start = start.Add(step) {
			end := start.Add(length)
			if end.After(free.End) {
				break
			}
			if start.Before(now) {
				continue
			}
			if !yield(Interval{Start: start, End: end}) {
				return false
			}
		}
	}
	return true
}

// merge sorts intervals and joins overlapping or touching ones.
func merge(in []Interval) []Interval {
	if len(in) == 0 {
		return nil
	}
	sorted := slices.Clone(in)
	slices.SortFunc(sorted, func(a, b Interval) int { return a.Start.Compare(b.Start) })
	out := []Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// subtract removes sorted, disjoint busy intervals from window.
func subtract(window Interval, busy []Interval) []Interval {
	var free []Interval
	cursor := window.Start
	for _, b := range busy {
		if !b.End.After(cursor) {
			continue
		}
		if !b.Start.Before(window.End) {
			break
		}
		if b.Start.After(cursor) {
			free = append(free, Interval{Start: cursor, End: b.Start})
		}
		cursor = b.End
	}
	if cursor.Before(window.End) {
		free = append(free, Interval{Start: cursor, End: window.End})
	}
	return free
}

// GroupByDay splits slots into per-day buckets keyed by date in loc.
func GroupByDay(seq iter.Seq[Interval], loc *time.Location) []Day {
	var out []Day
	for s := range seq {
		date := s.Start.In(loc).Format(time.DateOnly)
		if len(out) == 0 || out[len(out)-1].Date != date {
			out = append(out, Day{Date: date})
		}
		out[len(out)-1].Slots = append(out[len(out)-1].Slots, s)
	}
	return out
}

// Day is one date's slots.
type Day struct {
	Date  string     `json:"date"`
	Slots []Interval `json:"slots"`
}
