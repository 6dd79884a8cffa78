package models

import "time"

// ApplicationState represents the review lifecycle of an application.
type ApplicationState string

// Possible application states. The only transitions are
// PENDING -> APPROVED and PENDING -> REJECTED.
const (
	ApplicationStatePending  ApplicationState = "PENDING"
	ApplicationStateApproved ApplicationState = "APPROVED"
	ApplicationStateRejected ApplicationState = "REJECTED"
)

// ApplicantCategory classifies the applicant's enrollment situation.
type ApplicantCategory string

const (
	CategoryUndergraduate ApplicantCategory = "UNDERGRADUATE"
	CategoryGraduate      ApplicantCategory = "GRADUATE"
	CategoryFreshman      ApplicantCategory = "FRESHMAN"
)

// ValidApplicantCategory reports whether the value belongs to the closed enum.
func ValidApplicantCategory(c ApplicantCategory) bool {
	switch c {
	case CategoryUndergraduate, CategoryGraduate, CategoryFreshman:
		return true
	}
	return false
}

// Application captures a scholarship application and its review state.
type Application struct {
	ID                string            `db:"id" json:"id"`
	FullName          string            `db:"full_name" json:"full_name"`
	NationalID        string            `db:"national_id" json:"national_id"`
	Email             string            `db:"email" json:"email"`
	Phone             string            `db:"phone" json:"phone,omitempty"`
	BirthDate         time.Time         `db:"birth_date" json:"birth_date"`
	MaritalStatus     string            `db:"marital_status" json:"marital_status,omitempty"`
	Category          ApplicantCategory `db:"category" json:"category"`
	TargetProgram     string            `db:"target_program" json:"target_program"`
	CurrentTerm       *int              `db:"current_term" json:"current_term,omitempty"`
	CumulativeAverage *float64          `db:"cumulative_average" json:"cumulative_average,omitempty"`
	HighSchoolAverage *float64          `db:"high_school_average" json:"high_school_average,omitempty"`
	ApprovedCourses   *int              `db:"approved_courses" json:"approved_courses,omitempty"`
	EnrolledCredits   *int              `db:"enrolled_credits" json:"enrolled_credits,omitempty"`
	ScholarshipType   ScholarshipType   `db:"scholarship_type" json:"scholarship_type"`
	Subtype           string            `db:"subtype" json:"subtype,omitempty"`
	State             ApplicationState  `db:"state" json:"state"`
	ReviewerID        *string           `db:"reviewer_id" json:"reviewer_id,omitempty"`
	DecidedAt         *time.Time        `db:"decided_at" json:"decided_at,omitempty"`
	RejectionReason   *string           `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ReviewerNotes     *string           `db:"reviewer_notes" json:"reviewer_notes,omitempty"`
	SubmittedAt       time.Time         `db:"submitted_at" json:"submitted_at"`
}

// ApplicationDocument is a descriptor for an uploaded supporting document.
type ApplicationDocument struct {
	ID            string    `db:"id" json:"id"`
	ApplicationID string    `db:"application_id" json:"application_id"`
	DocumentType  string    `db:"document_type" json:"document_type"`
	StorageRef    string    `db:"storage_ref" json:"storage_ref"`
	UploadedAt    time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// ApplicationDetail enriches an Application with its document descriptors.
type ApplicationDetail struct {
	Application
	Documents []ApplicationDocument `json:"documents"`
}

// ApplicationFilter provides filters for listing applications.
type ApplicationFilter struct {
	State           ApplicationState
	ScholarshipType ScholarshipType
	Category        ApplicantCategory
	Search          string
	Page            int
	PageSize        int
	SortBy          string
	SortOrder       string
}

// EligibilityFinding is one advisory check of an application against its
// scholarship configuration.
type EligibilityFinding struct {
	Requirement string `json:"requirement"`
	Satisfied   bool   `json:"satisfied"`
	Detail      string `json:"detail,omitempty"`
}

// EligibilityReport summarises advisory eligibility checks. It never gates
// any workflow.
type EligibilityReport struct {
	ApplicationID string               `json:"application_id"`
	Eligible      bool                 `json:"eligible"`
	Findings      []EligibilityFinding `json:"findings"`
}
