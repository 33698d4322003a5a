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

import (
	"testing"
	"time"
)

func TestIsDue(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	tests := []struct {
		name     string
		schedule Schedule
		lastRun  *time.Time
		want     bool
	}{
		{"never run is always due", ScheduleMonthly, nil, true},
		{"daily after 1 day", ScheduleDaily, ago(24 * time.Hour), true},
		{"daily after 23 hours", ScheduleDaily, ago(23 * time.Hour), false},
		{"weekly after 7 days", ScheduleWeekly, ago(7 * 24 * time.Hour), true},
		{"weekly after 6 days", ScheduleWeekly, ago(6 * 24 * time.Hour), false},
		{"monthly after 30 days", ScheduleMonthly, ago(30 * 24 * time.Hour), true},
		{"monthly after 29 days", ScheduleMonthly, ago(29 * 24 * time.Hour), false},
		{"unknown schedule treated as daily", Schedule("hourly"), ago(25 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDue(tt.schedule, tt.lastRun, now); got != tt.want {
				t.Errorf("isDue(%s) = %v, expected %v", tt.schedule, got, tt.want)
			}
		})
	}
}

func TestDueInDays(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	if got := dueInDays(ScheduleWeekly, nil, now); got != 0 {
		t.Errorf("Never-run policy dueInDays = %v, expected 0", got)
	}

	threeDaysAgo := now.Add(-3 * 24 * time.Hour)
	if got := dueInDays(ScheduleWeekly, &threeDaysAgo, now); got != 4 {
		t.Errorf("dueInDays = %v, expected 4", got)
	}

	// Overdue policies clamp at zero rather than going negative
	tenDaysAgo := now.Add(-10 * 24 * time.Hour)
	if got := dueInDays(ScheduleWeekly, &tenDaysAgo, now); got != 0 {
		t.Errorf("Overdue dueInDays = %v, expected 0", got)
	}
}
