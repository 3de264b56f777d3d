package models

import "time"

// BloodGroup is one of the eight ABO/Rh combinations.
type BloodGroup string

const (
	BloodAPositive  BloodGroup = "A+"
	BloodANegative  BloodGroup = "A-"
	BloodBPositive  BloodGroup = "B+"
	BloodBNegative  BloodGroup = "B-"
	BloodABPositive BloodGroup = "AB+"
	BloodABNegative BloodGroup = "AB-"
	BloodOPositive  BloodGroup = "O+"
	BloodONegative  BloodGroup = "O-"
)

// ValidBloodGroup reports whether the value is a known ABO/Rh combination.
func ValidBloodGroup(bg BloodGroup) bool {
	switch bg {
	case BloodAPositive, BloodANegative, BloodBPositive, BloodBNegative,
		BloodABPositive, BloodABNegative, BloodOPositive, BloodONegative:
		return true
	}
	return false
}

// Location is the canonical location representation: a human-readable label
// plus coordinates for radius matching.
type Location struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

// Complete reports whether the location is usable for matching.
func (l Location) Complete() bool {
	return l.Label != "" || l.Lat != 0 || l.Lng != 0
}

// User represents an account stored in the users table. Every user can act as
// both a requester and a donor.
type User struct {
	ID               string     `db:"id" json:"id"`
	Name             string     `db:"name" json:"name"`
	Email            string     `db:"email" json:"email"`
	Phone            string     `db:"phone" json:"phone"`
	PasswordHash     string     `db:"password_hash" json:"-"`
	BloodGroup       BloodGroup `db:"blood_group" json:"blood_group"`
	LocationLabel    string     `db:"location_label" json:"-"`
	LocationLat      float64    `db:"location_lat" json:"-"`
	LocationLng      float64    `db:"location_lng" json:"-"`
	Active           bool       `db:"active" json:"active"`
	LastDonationDate *time.Time `db:"last_donation_date" json:"last_donation_date,omitempty"`
	HealthStatus     *string    `db:"health_status" json:"health_status,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// Location assembles the structured location from the flat columns.
func (u *User) Location() Location {
	return Location{Label: u.LocationLabel, Lat: u.LocationLat, Lng: u.LocationLng}
}

// ContactCard is the profile subset exchanged between donor and requester on
// donation completion.
type ContactCard struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Contact returns the user's exchangeable contact subset.
func (u *User) Contact() ContactCard {
	return ContactCard{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone}
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
