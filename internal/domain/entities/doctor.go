package entities

import (
	"fmt"
	"strings"
	"time"
)

// DoctorStatus represents the approval status of a doctor
type DoctorStatus string

const (
	DoctorStatusPending  DoctorStatus = "pending"
	DoctorStatusApproved DoctorStatus = "approved"
	DoctorStatusRejected DoctorStatus = "rejected"
)

// Valid reports whether s is a known status
func (s DoctorStatus) Valid() bool {
	switch s {
	case DoctorStatusPending, DoctorStatusApproved, DoctorStatusRejected:
		return true
	}
	return false
}

// RoleDoctor is the only role eligible for assignment
const RoleDoctor = "doctor"

// Doctor represents a care provider
type Doctor struct {
	ID             string         `json:"id" db:"id"`
	Name           string         `json:"name" db:"name"`
	Email          string         `json:"email" db:"email"`
	Phone          string         `json:"phone" db:"phone"`
	Role           string         `json:"role" db:"role"`
	Status         DoctorStatus   `json:"status" db:"status"`
	Specialization string         `json:"specialization" db:"specialization"`
	Area           string         `json:"area" db:"area"`
	Schedule       WeeklySchedule `json:"schedule" db:"schedule"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// IsApproved reports whether the doctor may be assigned appointments
func (d *Doctor) IsApproved() bool {
	return d.Role == RoleDoctor && d.Status == DoctorStatusApproved
}

// DaySchedule is a doctor's availability on one weekday
type DaySchedule struct {
	Available    bool       `json:"available"`
	Start        ClockTime  `json:"start_time"`
	End          ClockTime  `json:"end_time"`
	SlotDuration int        `json:"slot_duration"`
	BreakStart   *ClockTime `json:"break_start,omitempty"`
	BreakEnd     *ClockTime `json:"break_end,omitempty"`
}

// HasBreak reports whether a break window is declared
func (d DaySchedule) HasBreak() bool {
	return d.BreakStart != nil && d.BreakEnd != nil
}

// WeeklySchedule maps lowercase weekday names ("monday") to availability
type WeeklySchedule map[string]DaySchedule

// CheckAvailability returns nil when the doctor works at t on weekday,
// otherwise an error describing why not. Hours are [Start, End) and the
// break is [BreakStart, BreakEnd).
func (w WeeklySchedule) CheckAvailability(weekday time.Weekday, t ClockTime) error {
	key := WeekdayKey(weekday)
	day, ok := w[key]
	if !ok || !day.Available {
		return fmt.Errorf("not available on %s", key)
	}
	if t < day.Start || t >= day.End {
		return fmt.Errorf("%s is outside working hours %s-%s", t, day.Start, day.End)
	}
	if day.HasBreak() && t >= *day.BreakStart && t < *day.BreakEnd {
		return fmt.Errorf("%s falls in the break %s-%s", t, *day.BreakStart, *day.BreakEnd)
	}
	return nil
}

// Validate checks the schedule is internally consistent
func (w WeeklySchedule) Validate() error {
	for key, day := range w {
		if !isWeekdayKey(key) {
			return fmt.Errorf("unknown weekday %q", key)
		}
		if !day.Available {
			continue
		}
		if day.Start >= day.End {
			return fmt.Errorf("%s: start %s must be before end %s", key, day.Start, day.End)
		}
		if day.Start < 0 || day.End > EndOfDay {
			return fmt.Errorf("%s: hours must fall within 00:00-24:00", key)
		}
		if day.SlotDuration <= 0 {
			return fmt.Errorf("%s: slot duration must be positive", key)
		}
		if (day.BreakStart == nil) != (day.BreakEnd == nil) {
			return fmt.Errorf("%s: break needs both start and end", key)
		}
		if day.HasBreak() {
			if *day.BreakStart >= *day.BreakEnd {
				return fmt.Errorf("%s: break start must be before break end", key)
			}
			if *day.BreakStart < day.Start || *day.BreakEnd > day.End {
				return fmt.Errorf("%s: break must fall within working hours", key)
			}
		}
	}
	return nil
}

func isWeekdayKey(key string) bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if WeekdayKey(d) == key {
			return true
		}
	}
	return false
}

// NormalizeArea folds an area string for comparison
func NormalizeArea(area string) string {
	return strings.Join(strings.Fields(strings.ToLower(area)), " ")
}

// DoctorHistoryEntry records one change to a doctor profile
type DoctorHistoryEntry struct {
	ID        string    `json:"id" db:"id"`
	DoctorID  string    `json:"doctor_id" db:"doctor_id"`
	Field     string    `json:"field" db:"field"`
	OldValue  string    `json:"old_value" db:"old_value"`
	NewValue  string    `json:"new_value" db:"new_value"`
	Actor     string    `json:"actor" db:"actor"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
