package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprintdeck/estimation/internal/models"
	"github.com/sprintdeck/estimation/internal/testutil"
)

func TestCanModerate(t *testing.T) {
	app := testutil.NewApp(t)

	owner := testutil.CreateUser(t, app, "owner@example.com")
	po := testutil.CreateUser(t, app, "po@example.com")
	sm := testutil.CreateUser(t, app, "sm@example.com")
	dev := testutil.CreateUser(t, app, "dev@example.com")
	moderator := testutil.CreateUser(t, app, "mod@example.com")
	outsider := testutil.CreateUser(t, app, "outsider@example.com")

	project := testutil.CreateProject(t, app, "Checkout Revamp", owner)
	testutil.AddMember(t, app, project, po, models.RoleProductOwner)
	testutil.AddMember(t, app, project, sm, models.RoleScrumMaster)
	testutil.AddMember(t, app, project, dev, models.RoleDeveloper)

	session := &models.EstimationSession{
		ProjectID:   project.Id,
		ModeratorID: moderator.Id,
	}

	authorizer := NewRoleAuthorizer(app)

	tests := []struct {
		name   string
		userID string
		want   bool
	}{
		{"explicit moderator", moderator.Id, true},
		{"project owner", owner.Id, true},
		{"product owner", po.Id, true},
		{"scrum master", sm.Id, true},
		{"developer", dev.Id, false},
		{"non-member", outsider.Id, false},
		{"anonymous", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := authorizer.CanModerate(tc.userID, session)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCanCreateSession(t *testing.T) {
	app := testutil.NewApp(t)

	owner := testutil.CreateUser(t, app, "owner@example.com")
	po := testutil.CreateUser(t, app, "po@example.com")
	dev := testutil.CreateUser(t, app, "dev@example.com")

	project := testutil.CreateProject(t, app, "Billing", owner)
	testutil.AddMember(t, app, project, po, models.RoleProductOwner)
	testutil.AddMember(t, app, project, dev, models.RoleDeveloper)

	authorizer := NewRoleAuthorizer(app)

	ok, err := authorizer.CanCreateSession(po.Id, project.Id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = authorizer.CanCreateSession(owner.Id, project.Id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = authorizer.CanCreateSession(dev.Id, project.Id)
	require.NoError(t, err)
	assert.False(t, ok, "developers cannot open sessions")
}

func TestProjectRole(t *testing.T) {
	app := testutil.NewApp(t)

	owner := testutil.CreateUser(t, app, "owner@example.com")
	sm := testutil.CreateUser(t, app, "sm@example.com")

	project := testutil.CreateProject(t, app, "Mobile App", owner)
	testutil.AddMember(t, app, project, sm, models.RoleScrumMaster)

	authorizer := NewRoleAuthorizer(app)

	role, err := authorizer.ProjectRole(sm.Id, project.Id)
	require.NoError(t, err)
	assert.Equal(t, models.RoleScrumMaster, role)

	role, err = authorizer.ProjectRole(owner.Id, project.Id)
	require.NoError(t, err)
	assert.Empty(t, role, "ownership is not a membership")
}
