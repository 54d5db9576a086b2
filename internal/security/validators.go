package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Input length constraints
const (
	MaxSessionNameLength = 100
	MaxReasonLength      = 200
	MinNameLength        = 1
)

var (
	// PocketBase ID regex - 15 character alphanumeric
	pocketbaseIDRegex = regexp.MustCompile(`^[a-zA-Z0-9]{15}$`)
	// UUID validation regex (share tokens)
	uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	// Name validation regex - Unicode letters, digits, spaces, apostrophes, hyphens, underscores, dots
	// \p{L} matches any Unicode letter (includes accented characters)
	// \p{N} matches any Unicode number
	nameRegex = regexp.MustCompile(`^[\p{L}\p{N}\s'\-_.]+$`)
	// Dangerous characters that could be used for injection attacks
	dangerousCharsRegex = regexp.MustCompile(`[<>{}[\]\\;|&$()` + "`" + `]`)
)

// ValidateRecordID validates that a string is a valid PocketBase ID or UUID.
// PocketBase uses 15-character alphanumeric IDs; share tokens are UUIDs.
func ValidateRecordID(id string) error {
	if id == "" {
		return fmt.Errorf("ID cannot be empty")
	}

	if pocketbaseIDRegex.MatchString(id) {
		return nil
	}

	if uuidRegex.MatchString(strings.ToLower(id)) {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("malformed UUID: %w", err)
		}
		return nil
	}

	return fmt.Errorf("invalid ID format (expected 15-character PocketBase ID or UUID)")
}

// ValidateName validates a name string with length and character constraints.
// Returns the trimmed name and an error if validation fails.
func ValidateName(name string, maxLen int) (string, error) {
	name = strings.TrimSpace(name)

	if name == "" {
		return "", fmt.Errorf("name cannot be empty")
	}
	if len(name) < MinNameLength {
		return "", fmt.Errorf("name too short (min %d characters)", MinNameLength)
	}
	if len(name) > maxLen {
		return "", fmt.Errorf("name too long (max %d characters)", maxLen)
	}

	if !nameRegex.MatchString(name) {
		return "", fmt.Errorf("name contains invalid characters (allowed: letters, numbers, spaces, apostrophes, hyphens, underscores, dots)")
	}
	if dangerousCharsRegex.MatchString(name) {
		return "", fmt.Errorf("name contains potentially dangerous characters")
	}
	for _, r := range name {
		if r < 32 || r == 127 {
			return "", fmt.Errorf("name contains control characters")
		}
	}

	return name, nil
}

// ValidateSessionName validates an estimation session name.
func ValidateSessionName(name string) (string, error) {
	return ValidateName(name, MaxSessionNameLength)
}

// ValidateReason validates a new-round reason. Reasons are free text for the
// audit trail; only length and control characters are constrained.
func ValidateReason(reason string) error {
	if len(reason) > MaxReasonLength {
		return fmt.Errorf("reason too long (max %d characters)", MaxReasonLength)
	}
	for _, r := range reason {
		if (r < 32 && r != '\n') || r == 127 {
			return fmt.Errorf("reason contains control characters")
		}
	}
	return nil
}

// SanitizeErrorMessage removes sensitive information from error messages.
// Returns a generic user-friendly error message when internals would leak.
func SanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	errStr := strings.ToLower(err.Error())

	// Common database/internal error patterns to sanitize
	sensitivePatterns := []string{
		"sql",
		"database",
		"record",
		"collection",
		"pocketbase",
		"constraint",
		"foreign key",
		"unique",
		"duplicate key",
		"no rows",
	}

	for _, pattern := range sensitivePatterns {
		if strings.Contains(errStr, pattern) {
			return "An error occurred while processing your request"
		}
	}

	return err.Error()
}
