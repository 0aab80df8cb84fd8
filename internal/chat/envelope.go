// Package chat holds the server-side routing core: the user Directory, the
// Room Registry, the Router that resolves delivery targets, and the Session
// that runs the login handshake for one connection.
package chat

import "strings"

// Mode selects how an Envelope is routed.
type Mode string

// Delivery and handshake modes carried on the wire.
const (
	ModeAll      Mode = "ALL"
	ModeDirect   Mode = "DIRECT"
	ModeRoom     Mode = "ROOM"
	ModeJoin     Mode = "JOIN"
	ModeLogin    Mode = "LOGIN"
	ModeRegister Mode = "REGISTER"
)

// IsHandshake reports whether the mode belongs to the login handshake rather
// than to message routing.
func (m Mode) IsHandshake() bool {
	return m == ModeLogin || m == ModeRegister
}

// Status marks an Envelope as a handshake response. Chat payloads never carry
// a status, which keeps responses distinguishable from ordinary messages.
type Status string

// Handshake response markers.
const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Failure reasons sent back on handshake responses.
const (
	ReasonInvalidCredentials   = "invalid credentials"
	ReasonRegistrationDisabled = "registration is not supported"
	ReasonAlreadySignedIn      = "already signed in"
	ReasonAlreadyAuthenticated = "already authenticated"
)

// Identity is a registered user: a unique nickname and its credential.
type Identity struct {
	Nickname   string `json:"nickname"`
	Credential string `json:"credential,omitempty"`
}

// Public returns the identity with everything but the nickname removed.
func (i Identity) Public() Identity {
	return Identity{Nickname: i.Nickname}
}

// Envelope is the unit exchanged between clients and the server. It is passed
// by value so a routed envelope cannot be changed by any one recipient.
type Envelope struct {
	Sender    Identity `json:"sender"`
	Mode      Mode     `json:"mode"`
	Text      string   `json:"text,omitempty"`
	Recipient string   `json:"recipient,omitempty"`
	Room      string   `json:"room,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
	Status    Status   `json:"status,omitempty"`
}

// IsResponse reports whether the envelope is a handshake response.
func (e Envelope) IsResponse() bool {
	return e.Status != ""
}

// IsSuccess reports whether the envelope is the success marker of a
// handshake.
func (e Envelope) IsSuccess() bool {
	return e.Mode.IsHandshake() && e.Status == StatusSuccess
}

// scrubbed is the broadcast form of the envelope: only the sender's nickname
// survives.
func (e Envelope) scrubbed() Envelope {
	return Envelope{
		Sender: e.Sender.Public(),
		Mode:   ModeAll,
		Text:   e.Text,
	}
}

// SuccessResponse builds the success marker for a handshake request,
// embedding the authenticated identity.
func SuccessResponse(req Envelope, id Identity) Envelope {
	return Envelope{
		Sender:    id.Public(),
		Mode:      req.Mode,
		RequestID: req.RequestID,
		Status:    StatusSuccess,
	}
}

// FailureResponse builds an explicit handshake rejection.
func FailureResponse(req Envelope, reason string) Envelope {
	return Envelope{
		Sender:    req.Sender.Public(),
		Mode:      req.Mode,
		Text:      reason,
		RequestID: req.RequestID,
		Status:    StatusFailure,
	}
}

// NormalizeRoom trims surrounding whitespace from a room name. An empty
// result is not a valid room.
func NormalizeRoom(room string) string {
	return strings.TrimSpace(room)
}
