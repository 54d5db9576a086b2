package security

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRecordID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid pocketbase id", "abc123def456ghi", false},
		{"valid uuid", "550e8400-e29b-41d4-a716-446655440000", false},
		{"empty", "", true},
		{"too short", "abc123", true},
		{"too long", "abc123def456ghi7890", true},
		{"invalid characters", "abc123def456gh!", true},
		{"malformed uuid", "550e8400-e29b-41d4-a716-44665544000z", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRecordID(tc.id)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSessionName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain name", "Sprint 12 estimation", "Sprint 12 estimation", false},
		{"trims whitespace", "  Refund flow  ", "Refund flow", false},
		{"unicode letters", "Séance d'estimation", "Séance d'estimation", false},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"too long", strings.Repeat("a", MaxSessionNameLength+1), "", true},
		{"html injection", "<script>alert(1)</script>", "", true},
		{"shell metacharacters", "name; rm -rf /", "", true},
		{"control characters", "name\x00evil", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateSessionName(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidateReason(t *testing.T) {
	assert.NoError(t, ValidateReason("estimates diverged, discussing scope"))
	assert.NoError(t, ValidateReason("line one\nline two"))
	assert.NoError(t, ValidateReason(""))
	assert.Error(t, ValidateReason(strings.Repeat("x", MaxReasonLength+1)))
	assert.Error(t, ValidateReason("tab\tseparated"))
}

func TestSanitizeErrorMessage(t *testing.T) {
	assert.Empty(t, SanitizeErrorMessage(nil))

	generic := "An error occurred while processing your request"

	assert.Equal(t, generic, SanitizeErrorMessage(errors.New("UNIQUE constraint failed: votes.voter_id")))
	assert.Equal(t, generic, SanitizeErrorMessage(errors.New("sql: no rows in result set")))
	assert.Equal(t, generic, SanitizeErrorMessage(errors.New("failed to find collection sessions")))

	assert.Equal(t, "round 2 is not the current round",
		SanitizeErrorMessage(errors.New("round 2 is not the current round")))
}
