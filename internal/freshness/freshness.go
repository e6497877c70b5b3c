// Package freshness derives day counts and display stages from acquisition
// dates and shelf-life estimates. Day boundaries are local midnights, not
// UTC: an item acquired "yesterday" has one elapsed day regardless of the
// time of day either event happened.
package freshness

import (
	"math"
	"time"

	"github.com/pantrylog/pantrylog/internal/model"
)

// ReminderDays is the days-left threshold at which expiry reminders fire.
const ReminderDays = 2

// localMidnight parses a YYYY-MM-DD date in the reference time's location.
// Timestamps are accepted too and truncated to their local date. Malformed
// input degrades to the reference date (zero elapsed days).
func localMidnight(dateStr string, ref time.Time) time.Time {
	if d, err := time.ParseInLocation("2006-01-02", dateStr, ref.Location()); err == nil {
		return d
	}
	if ts, err := time.Parse(time.RFC3339, dateStr); err == nil {
		local := ts.In(ref.Location())
		return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, ref.Location())
	}
	return time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
}

// ElapsedDays returns the whole calendar days between the local midnight of
// the acquisition date and the local midnight of now, clamped to zero so a
// future acquisition date never yields a negative count.
func ElapsedDays(acquired string, now time.Time) int {
	from := localMidnight(acquired, now)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	// Rounding absorbs the one-hour offset of DST-crossing intervals.
	days := int(math.Round(today.Sub(from).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}

// RecomputeDaysLeft recenters a days-left value around a (possibly changed)
// acquisition date using the original shelf-life estimate. Only the lower
// bound is clamped here; the caller guarantees the estimate itself is within
// range.
func RecomputeDaysLeft(baseShelfLifeDays int, acquired string, now time.Time) int {
	d := baseShelfLifeDays - ElapsedDays(acquired, now)
	if d < 0 {
		return 0
	}
	return d
}

// DaysUntil returns the calendar days from today until a target date,
// rounded up. Negative when the target is in the past.
func DaysUntil(target string, now time.Time) int {
	to := localMidnight(target, now)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return int(math.Ceil(to.Sub(today).Hours() / 24))
}

// Percent returns the remaining-freshness fraction in [0, 1], or nil when
// either the shelf-life denominator or the current days-left is unknown.
func Percent(initialDaysLeft, daysLeft *int) *float64 {
	if initialDaysLeft == nil || *initialDaysLeft <= 0 || daysLeft == nil {
		return nil
	}
	p := float64(*daysLeft) / float64(*initialDaysLeft)
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return &p
}

// StageFor derives the display stage from the shelf-life estimate and the
// current days-left. Nil days-left means the item is still being analyzed and
// has no stage yet. The mapping is monotone: lower freshness never yields an
// earlier stage.
func StageFor(initialDaysLeft, daysLeft *int) *model.Stage {
	if daysLeft == nil {
		return nil
	}
	stage := model.StageSpoiled
	if *daysLeft > 0 {
		if p := Percent(initialDaysLeft, daysLeft); p != nil {
			switch {
			case *p > 0.5:
				stage = model.StageFresh
			case *p > 0.25:
				stage = model.StageEatSoon
			default:
				stage = model.StageLastCall
			}
		} else {
			switch {
			case *daysLeft >= 6:
				stage = model.StageFresh
			case *daysLeft >= 3:
				stage = model.StageEatSoon
			default:
				stage = model.StageLastCall
			}
		}
	}
	return &stage
}

// StatusFor derives the coarse status from the stage. Unknown freshness
// counts as ok until analysis says otherwise.
func StatusFor(stage *model.Stage) model.Status {
	if stage == nil {
		return model.StatusOK
	}
	switch *stage {
	case model.StageSpoiled:
		return model.StatusExpired
	case model.StageLastCall:
		return model.StatusSpoiling
	}
	return model.StatusOK
}
