package security

import (
	"github.com/coder/websocket"
)

// OriginValidator validates WebSocket connection origins.
type OriginValidator struct {
	allowedPatterns []string
}

// NewOriginValidator creates a new origin validator.
func NewOriginValidator(patterns []string) *OriginValidator {
	return &OriginValidator{allowedPatterns: patterns}
}

// GetAcceptOptions returns websocket.AcceptOptions with origin patterns.
func (ov *OriginValidator) GetAcceptOptions() *websocket.AcceptOptions {
	return &websocket.AcceptOptions{
		OriginPatterns: ov.allowedPatterns,
	}
}
