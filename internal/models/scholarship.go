package models

import (
	"time"

	"github.com/lib/pq"
)

// ScholarshipType enumerates the supported scholarship programs.
type ScholarshipType string

const (
	ScholarshipExcellence        ScholarshipType = "EXCELLENCE"
	ScholarshipAssistantship     ScholarshipType = "ASSISTANTSHIP"
	ScholarshipImpact            ScholarshipType = "IMPACT"
	ScholarshipPaymentExemption  ScholarshipType = "PAYMENT_EXEMPTION"
	ScholarshipTeachingFormation ScholarshipType = "TEACHING_FORMATION"
)

// ExcellenceSubtype enumerates sub-programs of the Excellence scholarship.
type ExcellenceSubtype string

const (
	SubtypeAcademic         ExcellenceSubtype = "ACADEMIC"
	SubtypeAthletic         ExcellenceSubtype = "ATHLETIC"
	SubtypeArtistic         ExcellenceSubtype = "ARTISTIC"
	SubtypeEntrepreneurship ExcellenceSubtype = "ENTREPRENEURSHIP"
	SubtypeCivic            ExcellenceSubtype = "CIVIC"
)

// ValidScholarshipType reports whether the value belongs to the closed enum.
func ValidScholarshipType(t ScholarshipType) bool {
	switch t {
	case ScholarshipExcellence, ScholarshipAssistantship, ScholarshipImpact,
		ScholarshipPaymentExemption, ScholarshipTeachingFormation:
		return true
	}
	return false
}

// ValidExcellenceSubtype reports whether the value belongs to the closed enum.
func ValidExcellenceSubtype(s ExcellenceSubtype) bool {
	switch s {
	case SubtypeAcademic, SubtypeAthletic, SubtypeArtistic,
		SubtypeEntrepreneurship, SubtypeCivic:
		return true
	}
	return false
}

// ScholarshipConfiguration holds per-type eligibility thresholds and
// requirements. Keyed by (type, subtype); subtype is empty unless the type
// is EXCELLENCE.
type ScholarshipConfiguration struct {
	ID                  string          `db:"id" json:"id"`
	Type                ScholarshipType `db:"scholarship_type" json:"scholarship_type"`
	Subtype             string          `db:"subtype" json:"subtype,omitempty"`
	MinAverage          float64         `db:"min_average" json:"min_average"`
	MinTerm             *int            `db:"min_term" json:"min_term,omitempty"`
	MaxTerm             *int            `db:"max_term" json:"max_term,omitempty"`
	MaxAge              *int            `db:"max_age" json:"max_age,omitempty"`
	SpecialRequirements string          `db:"special_requirements" json:"special_requirements,omitempty"`
	RequiredDocuments   pq.StringArray  `db:"required_documents" json:"required_documents"`
	AvailableSlots      *int            `db:"available_slots" json:"available_slots,omitempty"`
	DurationMonths      *int            `db:"duration_months" json:"duration_months,omitempty"`
	RequiredHours       *float64        `db:"required_hours" json:"required_hours,omitempty"`
	UpdatedBy           *string         `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// defaultRequiredHours is the per-type fallback applied when no
// configuration entry specifies required service hours.
var defaultRequiredHours = map[ScholarshipType]float64{
	ScholarshipExcellence:        60,
	ScholarshipAssistantship:     120,
	ScholarshipImpact:            80,
	ScholarshipPaymentExemption:  100,
	ScholarshipTeachingFormation: 120,
}

// DefaultRequiredHours returns the program fallback for required hours.
func DefaultRequiredHours(t ScholarshipType) float64 {
	if h, ok := defaultRequiredHours[t]; ok {
		return h
	}
	return 100
}

// defaultBenefitPercent is the tuition discount applied per program when the
// approval does not specify one.
var defaultBenefitPercent = map[ScholarshipType]float64{
	ScholarshipExcellence:        100,
	ScholarshipAssistantship:     50,
	ScholarshipImpact:            50,
	ScholarshipPaymentExemption:  100,
	ScholarshipTeachingFormation: 75,
}

// DefaultBenefitPercent returns the program fallback for the benefit percent.
func DefaultBenefitPercent(t ScholarshipType) float64 {
	if p, ok := defaultBenefitPercent[t]; ok {
		return p
	}
	return 50
}

// DefaultConfiguration builds the built-in configuration returned when no
// entry exists for a (type, subtype) key.
func DefaultConfiguration(t ScholarshipType, subtype string) ScholarshipConfiguration {
	hours := DefaultRequiredHours(t)
	return ScholarshipConfiguration{
		Type:          t,
		Subtype:       subtype,
		RequiredHours: &hours,
	}
}
