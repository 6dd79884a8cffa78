package models

import "time"

// SlotStatus represents slot availability for new postulations.
type SlotStatus string

const (
	SlotStatusActive   SlotStatus = "ACTIVE"
	SlotStatusInactive SlotStatus = "INACTIVE"
)

// Weekday names used by schedule and availability blocks.
type Weekday string

const (
	Monday    Weekday = "MONDAY"
	Tuesday   Weekday = "TUESDAY"
	Wednesday Weekday = "WEDNESDAY"
	Thursday  Weekday = "THURSDAY"
	Friday    Weekday = "FRIDAY"
	Saturday  Weekday = "SATURDAY"
	Sunday    Weekday = "SUNDAY"
)

// ValidWeekday reports whether the value belongs to the closed enum.
func ValidWeekday(d Weekday) bool {
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return true
	}
	return false
}

// TimeBlock is a half-open [start, end) interval on one weekday.
// Times are "HH:MM" 24-hour strings.
type TimeBlock struct {
	Day       Weekday `db:"day" json:"day"`
	StartTime string  `db:"start_time" json:"start_time"`
	EndTime   string  `db:"end_time" json:"end_time"`
}

// ScheduleBlock is one weekly working block of a slot.
type ScheduleBlock struct {
	ID     string `db:"id" json:"id"`
	SlotID string `db:"slot_id" json:"slot_id"`
	TimeBlock
}

// AvailabilityBlock is one weekly availability window of a beneficiary.
type AvailabilityBlock struct {
	ID            string `db:"id" json:"id"`
	BeneficiaryID string `db:"beneficiary_id" json:"beneficiary_id"`
	TimeBlock
}

// Slot (plaza) is a work placement with a weekly schedule and a capacity.
type Slot struct {
	ID             string     `db:"id" json:"id"`
	Subject        string     `db:"subject" json:"subject"`
	Department     string     `db:"department" json:"department"`
	Capacity       int        `db:"capacity" json:"capacity"`
	AcademicPeriod string     `db:"academic_period" json:"academic_period"`
	PeriodStart    time.Time  `db:"period_start" json:"period_start"`
	PeriodEnd      time.Time  `db:"period_end" json:"period_end"`
	SupervisorID   string     `db:"supervisor_id" json:"supervisor_id"`
	Status         SlotStatus `db:"status" json:"status"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// SlotDetail enriches a Slot with its schedule and occupancy.
type SlotDetail struct {
	Slot
	Schedule      []ScheduleBlock `json:"schedule"`
	AssignedCount int             `db:"assigned_count" json:"assigned_count"`
}

// SlotFilter provides filters for listing slots.
type SlotFilter struct {
	AcademicPeriod string
	Status         SlotStatus
	SupervisorID   string
	Search         string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}
