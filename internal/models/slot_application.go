package models

import "time"

// SlotApplicationState represents the postulation lifecycle.
type SlotApplicationState string

const (
	SlotApplicationPending  SlotApplicationState = "PENDING"
	SlotApplicationApproved SlotApplicationState = "APPROVED"
	SlotApplicationRejected SlotApplicationState = "REJECTED"
)

// SlotApplication (postulación) is a beneficiary's request to join a slot.
// The compatibility score is computed once at creation and never recomputed,
// so the value a reviewer decided on stays on the record.
type SlotApplication struct {
	ID               string               `db:"id" json:"id"`
	BeneficiaryID    string               `db:"beneficiary_id" json:"beneficiary_id"`
	SlotID           string               `db:"slot_id" json:"slot_id"`
	State            SlotApplicationState `db:"state" json:"state"`
	Compatibility    float64              `db:"compatibility" json:"compatibility"`
	CompatibleBlocks int                  `db:"compatible_blocks" json:"compatible_blocks"`
	ReviewerID       *string              `db:"reviewer_id" json:"reviewer_id,omitempty"`
	DecidedAt        *time.Time           `db:"decided_at" json:"decided_at,omitempty"`
	RejectionReason  *string              `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ReviewerNotes    *string              `db:"reviewer_notes" json:"reviewer_notes,omitempty"`
	CreatedAt        time.Time            `db:"created_at" json:"created_at"`
}

// SlotApplicationDetail enriches a SlotApplication with display info.
type SlotApplicationDetail struct {
	SlotApplication
	BeneficiaryName string `db:"beneficiary_name" json:"beneficiary_name"`
	SlotSubject     string `db:"slot_subject" json:"slot_subject"`
}

// SlotApplicationFilter provides filters for listing postulations.
type SlotApplicationFilter struct {
	BeneficiaryID string
	SlotID        string
	State         SlotApplicationState
	Page          int
	PageSize      int
}
