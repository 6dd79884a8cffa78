package models

import "time"

// BeneficiaryStatus represents the lifecycle of an active award.
type BeneficiaryStatus string

const (
	BeneficiaryStatusActive    BeneficiaryStatus = "ACTIVE"
	BeneficiaryStatusSuspended BeneficiaryStatus = "SUSPENDED"
	BeneficiaryStatusFinished  BeneficiaryStatus = "FINISHED"
)

// ValidBeneficiaryStatus reports whether the value belongs to the closed enum.
func ValidBeneficiaryStatus(s BeneficiaryStatus) bool {
	switch s {
	case BeneficiaryStatusActive, BeneficiaryStatusSuspended, BeneficiaryStatusFinished:
		return true
	}
	return false
}

// Beneficiary is a person holding an approved scholarship award. Exactly one
// beneficiary exists per approved application. CompletedHours only grows and
// only through weekly-report approvals; overage past RequiredHours is allowed.
type Beneficiary struct {
	ID              string            `db:"id" json:"id"`
	ApplicationID   string            `db:"application_id" json:"application_id"`
	FullName        string            `db:"full_name" json:"full_name"`
	NationalID      string            `db:"national_id" json:"national_id"`
	Email           string            `db:"email" json:"email"`
	ScholarshipType ScholarshipType   `db:"scholarship_type" json:"scholarship_type"`
	Subtype         string            `db:"subtype" json:"subtype,omitempty"`
	BenefitPercent  float64           `db:"benefit_percent" json:"benefit_percent"`
	Status          BeneficiaryStatus `db:"status" json:"status"`
	SlotID          *string           `db:"slot_id" json:"slot_id,omitempty"`
	RequiredHours   float64           `db:"required_hours" json:"required_hours"`
	CompletedHours  float64           `db:"completed_hours" json:"completed_hours"`
	PeriodStart     time.Time         `db:"period_start" json:"period_start"`
	PeriodEnd       time.Time         `db:"period_end" json:"period_end"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

// BeneficiaryDetail enriches a Beneficiary with derived reporting fields.
type BeneficiaryDetail struct {
	Beneficiary
	ProgressPercent float64 `json:"progress_percent"`
	AtRisk          bool    `json:"at_risk"`
}

// BeneficiaryFilter provides filters for listing beneficiaries.
type BeneficiaryFilter struct {
	Status          BeneficiaryStatus
	ScholarshipType ScholarshipType
	HasSlot         *bool
	Search          string
	Page            int
	PageSize        int
	SortBy          string
	SortOrder       string
}

// HourLedgerEntry is one approved weekly report contributing to a
// beneficiary's completed hours, with a running total for auditing.
type HourLedgerEntry struct {
	ReportID       string    `db:"report_id" json:"report_id"`
	AcademicPeriod string    `db:"academic_period" json:"academic_period"`
	Week           int       `db:"week" json:"week"`
	HoursWorked    float64   `db:"hours_worked" json:"hours_worked"`
	ApprovedAt     time.Time `db:"approved_at" json:"approved_at"`
	RunningTotal   float64   `db:"running_total" json:"running_total"`
}
