// Package analytics computes habit statistics over the timestamped press log.
// It is pure: no clock, no storage, no shared state. All bucketing uses ISO 8601
// weeks (Monday start, week 1 contains the year's first Thursday), evaluated in
// the location of the reference time passed as now.
package analytics

import "time"

// WeekKey identifies an ISO calendar week.
type WeekKey struct {
	Year int
	Week int
}

// KeyOf returns the ISO week containing t, in t's own location.
func KeyOf(t time.Time) WeekKey {
	y, w := t.ISOWeek()
	return WeekKey{Year: y, Week: w}
}

// Snapshot is the derived view shown on the stats screen and served over HTTP.
// It is recomputed on every request and never persisted.
type Snapshot struct {
	WeeklyVolume int
	WeeklyStreak int
	Total        int
}

// Compute derives a Snapshot from the log contents at time now.
func Compute(history []time.Time, offset int, now time.Time) Snapshot {
	return Snapshot{
		WeeklyVolume: WeeklyVolume(history, now),
		WeeklyStreak: WeeklyStreak(history, now),
		Total:        Total(history, offset),
	}
}

// WeeklyVolume counts the entries falling in the same ISO week as now.
// Input order does not matter.
func WeeklyVolume(history []time.Time, now time.Time) int {
	loc := now.Location()
	cur := KeyOf(now)
	n := 0
	for _, t := range history {
		if KeyOf(t.In(loc)) == cur {
			n++
		}
	}
	return n
}

// WeeklyStreak counts consecutive active ISO weeks ending at the current week,
// or at last week when the current week has no entry yet.
func WeeklyStreak(history []time.Time, now time.Time) int {
	if len(history) == 0 {
		return 0
	}

	loc := now.Location()
	active := make(map[WeekKey]struct{}, len(history))
	for _, t := range history {
		active[KeyOf(t.In(loc))] = struct{}{}
	}

	cur := now
	if _, ok := active[KeyOf(cur)]; !ok {
		// The current week is still open: an empty one only breaks the
		// streak if last week is empty too.
		cur = now.AddDate(0, 0, -7)
		if _, ok := active[KeyOf(cur)]; !ok {
			return 0
		}
	}

	streak := 0
	for {
		if _, ok := active[KeyOf(cur)]; !ok {
			return streak
		}
		streak++
		cur = weekStart(cur).AddDate(0, 0, -7)
	}
}

// Total is the lifetime count: logged entries plus the pre-history offset.
func Total(history []time.Time, offset int) int {
	if offset < 0 {
		offset = 0
	}
	return len(history) + offset
}

// weekStart returns midday on the Monday of t's ISO week. Midday keeps the
// result clear of DST transitions, which happen around midnight.
func weekStart(t time.Time) time.Time {
	back := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-back, 12, 0, 0, 0, t.Location())
}
