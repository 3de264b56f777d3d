package models

import "time"

// DonationStatus is the lifecycle state of a donation offer. Completed and
// cancelled are terminal.
type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationCompleted DonationStatus = "completed"
	DonationCancelled DonationStatus = "cancelled"
)

// Donation represents a donor's offer to fulfill a specific blood request.
// Invariant: at most one pending donation exists per (donor, request) pair.
type Donation struct {
	ID         string         `db:"id" json:"id"`
	DonorID    string         `db:"donor_id" json:"donor_id"`
	RequestID  string         `db:"request_id" json:"request_id"`
	Status     DonationStatus `db:"status" json:"status"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
	ResolvedAt *time.Time     `db:"resolved_at" json:"resolved_at,omitempty"`
}

// DonationWithRequest joins an offer with a summary of its target request for
// donor-facing history views. The request columns are nullable because a
// requester may delete a request while historical offers are retained.
type DonationWithRequest struct {
	Donation
	RequestBloodGroup *BloodGroup    `db:"request_blood_group" json:"request_blood_group,omitempty"`
	RequestUnits      *int           `db:"request_units" json:"request_units,omitempty"`
	RequestStatus     *RequestStatus `db:"request_status" json:"request_status,omitempty"`
	RequestHospital   *string        `db:"request_hospital" json:"request_hospital,omitempty"`
}

// CompletionResult carries the contact exchange emitted when a donation is
// completed.
type CompletionResult struct {
	Donation  *Donation     `json:"donation"`
	Request   *BloodRequest `json:"request"`
	Donor     ContactCard   `json:"donor_contact"`
	Requester ContactCard   `json:"requester_contact"`
}
