package models

import "time"

// ReportState represents the weekly report workflow state.
type ReportState string

// PENDING may move to IN_REVIEW, APPROVED or REJECTED; IN_REVIEW may move to
// APPROVED or REJECTED. APPROVED and REJECTED are terminal.
const (
	ReportStatePending  ReportState = "PENDING"
	ReportStateInReview ReportState = "IN_REVIEW"
	ReportStateApproved ReportState = "APPROVED"
	ReportStateRejected ReportState = "REJECTED"
)

// DecidableReportState reports whether a decision may still be taken.
func DecidableReportState(s ReportState) bool {
	return s == ReportStatePending || s == ReportStateInReview
}

// WeeklyReport is a beneficiary's activity report for one week of one
// academic period. (beneficiary, period, week) is unique.
type WeeklyReport struct {
	ID                  string      `db:"id" json:"id"`
	BeneficiaryID       string      `db:"beneficiary_id" json:"beneficiary_id"`
	AcademicPeriod      string      `db:"academic_period" json:"academic_period"`
	Week                int         `db:"week" json:"week"`
	HoursWorked         float64     `db:"hours_worked" json:"hours_worked"`
	PeriodObjectives    string      `db:"period_objectives" json:"period_objectives,omitempty"`
	SpecificGoals       string      `db:"specific_goals" json:"specific_goals,omitempty"`
	PlannedActivities   string      `db:"planned_activities" json:"planned_activities,omitempty"`
	ActualActivities    string      `db:"actual_activities" json:"actual_activities,omitempty"`
	DetailedDescription string      `db:"detailed_description" json:"detailed_description,omitempty"`
	Remarks             string      `db:"remarks" json:"remarks,omitempty"`
	State               ReportState `db:"state" json:"state"`
	ReviewerID          *string     `db:"reviewer_id" json:"reviewer_id,omitempty"`
	DecidedAt           *time.Time  `db:"decided_at" json:"decided_at,omitempty"`
	SupervisorRemarks   *string     `db:"supervisor_remarks" json:"supervisor_remarks,omitempty"`
	RejectionReason     *string     `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt           time.Time   `db:"created_at" json:"created_at"`
}

// ReportFilter provides filters for listing weekly reports.
type ReportFilter struct {
	BeneficiaryID  string
	AcademicPeriod string
	State          ReportState
	Page           int
	PageSize       int
}
