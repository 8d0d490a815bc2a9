package models

import "time"

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusDeclined RequestStatus = "declined"
)

// RelationStatus is the viewer-relative status shown next to a listed user.
type RelationStatus string

const (
	RelationNone     RelationStatus = "none"
	RelationPending  RelationStatus = "pending"
	RelationAccepted RelationStatus = "accepted"
	RelationDeclined RelationStatus = "declined"
)

// Connection is an accepted edge; User is the other party.
type Connection struct {
	ID        string    `json:"id"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

type ConnectionRequest struct {
	ID        string        `json:"id"`
	Requester User          `json:"requester"`
	Recipient User          `json:"recipient"`
	Status    RequestStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// RemoteStatus is the server's answer for GET /connections/status/:userId.
type RemoteStatus struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id,omitempty"`
}
