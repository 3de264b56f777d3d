package models

// Realtime event types broadcast to connected sessions.
const (
	EventNewRequest            = "new_request"
	EventNewDonationOffer      = "new_donation_offer"
	EventDonationStatusChanged = "donation_status_changed"
)

// Event is a lifecycle transition broadcast through the realtime hub.
// OriginSessionID names the websocket session that triggered the transition;
// the hub skips it to prevent self-echo.
type Event struct {
	Type            string      `json:"type"`
	Payload         interface{} `json:"payload"`
	OriginSessionID string      `json:"-"`
}

// DonationStatusPayload is the payload for donation_status_changed events.
type DonationStatusPayload struct {
	DonationID  string         `json:"donation_id"`
	RequestID   string         `json:"request_id"`
	DonorID     string         `json:"donor_id"`
	RequesterID string         `json:"requester_id"`
	Status      DonationStatus `json:"status"`
}
