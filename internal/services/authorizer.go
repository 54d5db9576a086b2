package services

import (
	"fmt"

	"github.com/pocketbase/pocketbase/core"

	"github.com/sprintdeck/estimation/internal/models"
)

// RoleAuthorizer decides whether a user may perform moderator actions on a
// session. The rule has one definition: explicit moderator, project owner,
// or a product-owner/scrum-master role on the owning project.
type RoleAuthorizer struct {
	app core.App
}

func NewRoleAuthorizer(app core.App) *RoleAuthorizer {
	return &RoleAuthorizer{app: app}
}

// CanModerate reports whether userID may drive phase transitions
// (reveal, new round, finalize) for the session.
func (a *RoleAuthorizer) CanModerate(userID string, session *models.EstimationSession) (bool, error) {
	if userID == "" {
		return false, nil
	}
	if userID == session.ModeratorID {
		return true, nil
	}
	return a.hasModeratorRole(userID, session.ProjectID)
}

// CanCreateSession reports whether userID may open a session on the project.
// Gated identically to moderation: plain developers are rejected.
func (a *RoleAuthorizer) CanCreateSession(userID, projectID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	return a.hasModeratorRole(userID, projectID)
}

// ProjectRole returns the user's membership role on the project, or "" when
// no membership exists.
func (a *RoleAuthorizer) ProjectRole(userID, projectID string) (models.ProjectRole, error) {
	records, err := a.app.FindRecordsByFilter(
		"memberships",
		"project_id = {:projectId} && user_id = {:userId}",
		"",
		1,
		0,
		map[string]any{"projectId": projectID, "userId": userID},
	)
	if err != nil {
		return "", fmt.Errorf("failed to look up membership: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}
	return models.ProjectRole(records[0].GetString("role")), nil
}

// IsProjectOwner reports whether userID owns the project.
func (a *RoleAuthorizer) IsProjectOwner(userID, projectID string) (bool, error) {
	project, err := a.app.FindRecordById("projects", projectID)
	if err != nil {
		return false, models.WrapError(models.KindNotFound, "project not found", err)
	}
	return project.GetString("owner_id") == userID, nil
}

func (a *RoleAuthorizer) hasModeratorRole(userID, projectID string) (bool, error) {
	owner, err := a.IsProjectOwner(userID, projectID)
	if err != nil {
		return false, err
	}
	if owner {
		return true, nil
	}

	role, err := a.ProjectRole(userID, projectID)
	if err != nil {
		return false, err
	}
	return role.CanModerateSessions(), nil
}
