// Copyright 2025 Complyd Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package retention

import "time"

const (
	// dailyIntervalDays is the minimum whole-day gap for daily policies
	dailyIntervalDays = 1
	// weeklyIntervalDays is the minimum whole-day gap for weekly policies
	weeklyIntervalDays = 7
	// monthlyIntervalDays is the minimum whole-day gap for monthly policies
	monthlyIntervalDays = 30
	// hoursPerDay converts elapsed durations to fractional days
	hoursPerDay = 24
)

// scheduleIntervalDays maps a schedule to its minimum inter-run interval
func scheduleIntervalDays(schedule Schedule) int {
	switch schedule {
	case ScheduleWeekly:
		return weeklyIntervalDays
	case ScheduleMonthly:
		return monthlyIntervalDays
	case ScheduleDaily:
		return dailyIntervalDays
	default:
		return dailyIntervalDays
	}
}

// isDue reports whether a policy with the given schedule is due at now. A
// policy that has never run is always due. Pure function, no I/O.
func isDue(schedule Schedule, lastRun *time.Time, now time.Time) bool {
	if lastRun == nil {
		return true
	}
	elapsedDays := int(now.Sub(*lastRun).Hours() / hoursPerDay)
	return elapsedDays >= scheduleIntervalDays(schedule)
}

// dueInDays returns the fractional days until a policy is next due, clamped
// at zero. Used for operator status reporting.
func dueInDays(schedule Schedule, lastRun *time.Time, now time.Time) float64 {
	if lastRun == nil {
		return 0
	}
	elapsed := now.Sub(*lastRun).Hours() / hoursPerDay
	remaining := float64(scheduleIntervalDays(schedule)) - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}
