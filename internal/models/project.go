package models

// ProjectRole is a user's role on a project, carried by a memberships record.
type ProjectRole string

const (
	RoleProductOwner ProjectRole = "product_owner"
	RoleScrumMaster  ProjectRole = "scrum_master"
	RoleDeveloper    ProjectRole = "developer"
)

// CanModerateSessions reports whether the role alone grants moderator
// capability on estimation sessions.
func (r ProjectRole) CanModerateSessions() bool {
	return r == RoleProductOwner || r == RoleScrumMaster
}

// StoryStatus is the lifecycle status of a backlog story.
type StoryStatus string

const (
	StoryStatusBacklog    StoryStatus = "backlog"
	StoryStatusReady      StoryStatus = "ready"
	StoryStatusInProgress StoryStatus = "in_progress"
	StoryStatusDone       StoryStatus = "done"
)

// IsEstimable reports whether a story in this status may be the target of a
// new estimation session.
func (s StoryStatus) IsEstimable() bool {
	return s == StoryStatusBacklog || s == StoryStatusReady
}
