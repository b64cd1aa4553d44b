// Strategy registry for recurring template dueness. Each frequency carries
// its own checker so the processor never branches on frequency itself.

package services

import (
	"fmt"
	"time"

	"tally/internal/core"
)

// DuenessChecker decides whether a recurring template should produce a new
// transaction, given when it last ran and its anchor start date.
type DuenessChecker interface {
	IsDue(lastRun, now, startDate time.Time) bool
}

// DailyChecker fires once per calendar day.
type DailyChecker struct{}

func (DailyChecker) IsDue(lastRun, now, _ time.Time) bool {
	if lastRun.IsZero() {
		return true
	}
	return lastRun.Format("2006-01-02") != now.Format("2006-01-02")
}

// WeeklyChecker fires when 7 or more days have passed since the last run.
type WeeklyChecker struct{}

func (WeeklyChecker) IsDue(lastRun, now, _ time.Time) bool {
	if lastRun.IsZero() {
		return true
	}
	return now.Sub(lastRun).Hours()/24 >= 7
}

// MonthlyChecker fires once per month, on or after the start date's day of
// month. Short months clamp the target day to their last day.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(lastRun, now, startDate time.Time) bool {
	if lastRun.IsZero() {
		return true
	}
	if lastRun.Year() == now.Year() && lastRun.Month() == now.Month() {
		return false
	}
	return now.Day() >= clampDay(startDate.Day(), now)
}

// YearlyChecker fires once per year, on or after the start date's month and
// day.
type YearlyChecker struct{}

func (YearlyChecker) IsDue(lastRun, now, startDate time.Time) bool {
	if lastRun.IsZero() {
		return true
	}
	if lastRun.Year() == now.Year() {
		return false
	}
	switch {
	case now.Month() < startDate.Month():
		return false
	case now.Month() == startDate.Month():
		return now.Day() >= clampDay(startDate.Day(), now)
	default:
		return true
	}
}

func clampDay(target int, now time.Time) int {
	lastDay := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if target > lastDay {
		return lastDay
	}
	return target
}

var duenessStrategies = map[core.Frequency]DuenessChecker{
	core.Daily:   DailyChecker{},
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
	core.Yearly:  YearlyChecker{},
}

// GetDuenessChecker returns the checker for a frequency.
func GetDuenessChecker(frequency core.Frequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return checker, nil
}
