package models

type WSMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Server → Client event types. Clients never drive transitions over the
// socket; every mutation goes through the HTTP API and is broadcast here.
const (
	MsgTypeSessionState     = "session_state" // Initial state sync on connection
	MsgTypeVoteCast         = "vote_cast"     // Voter id + tally only, value stays hidden until reveal
	MsgTypeVotesRevealed    = "votes_revealed"
	MsgTypeRoundStarted     = "round_started"
	MsgTypeSessionFinalized = "session_finalized"
	MsgTypeError            = "error"
)
