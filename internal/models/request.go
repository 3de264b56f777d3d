package models

import "time"

// RequestStatus is the lifecycle state of a blood request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestCancelled RequestStatus = "cancelled"
)

// UrgencyLevel ranks how quickly a request needs blood.
type UrgencyLevel string

const (
	UrgencyNormal    UrgencyLevel = "normal"
	UrgencyUrgent    UrgencyLevel = "urgent"
	UrgencyEmergency UrgencyLevel = "emergency"
)

// ValidUrgency reports whether the value is a known urgency level.
func ValidUrgency(u UrgencyLevel) bool {
	switch u {
	case UrgencyNormal, UrgencyUrgent, UrgencyEmergency:
		return true
	}
	return false
}

// BloodRequest represents a requester's call for donors.
// Invariant: FulfilledAt is non-nil iff Status == RequestFulfilled.
type BloodRequest struct {
	ID            string        `db:"id" json:"id"`
	RequesterID   string        `db:"requester_id" json:"requester_id"`
	BloodGroup    BloodGroup    `db:"blood_group" json:"blood_group"`
	UnitsNeeded   int           `db:"units_needed" json:"units_needed"`
	Hospital      string        `db:"hospital" json:"hospital"`
	LocationLabel string        `db:"location_label" json:"-"`
	LocationLat   float64       `db:"location_lat" json:"-"`
	LocationLng   float64       `db:"location_lng" json:"-"`
	Urgency       UrgencyLevel  `db:"urgency" json:"urgency"`
	Reason        *string       `db:"reason" json:"reason,omitempty"`
	Status        RequestStatus `db:"status" json:"status"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
	FulfilledAt   *time.Time    `db:"fulfilled_at" json:"fulfilled_at,omitempty"`
}

// Location assembles the structured location from the flat columns.
func (r *BloodRequest) Location() Location {
	return Location{Label: r.LocationLabel, Lat: r.LocationLat, Lng: r.LocationLng}
}

// RequestFilter captures filtering options for listing blood requests.
type RequestFilter struct {
	BloodGroup    *BloodGroup
	Status        *RequestStatus
	RequesterID   string
	LocationLabel string
	Page          int
	PageSize      int
}

// EligibilityFilter is the matcher's read predicate: pending requests for a
// donor's blood group, excluding the donor's own requests.
type EligibilityFilter struct {
	BloodGroup    BloodGroup
	LocationLabel string
	ExcludeUserID string
	Page          int
	PageSize      int
}
