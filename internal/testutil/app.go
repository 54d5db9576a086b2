// Package testutil provides a PocketBase test instance with the estimation
// schema applied, plus record seeding helpers shared by package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tests"

	"github.com/sprintdeck/estimation/internal/models"
	_ "github.com/sprintdeck/estimation/pb_migrations"
)

// NewApp creates a test PocketBase instance with a temporary database and
// all migrations applied.
func NewApp(t *testing.T) *tests.TestApp {
	t.Helper()

	app, err := tests.NewTestApp(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create test app: %v", err)
	}

	if err := app.Bootstrap(); err != nil {
		t.Fatalf("failed to bootstrap test app: %v", err)
	}

	t.Cleanup(app.Cleanup)
	return app
}

// CreateUser seeds an auth user.
func CreateUser(t *testing.T, app core.App, email string) *core.Record {
	t.Helper()

	collection, err := app.FindCollectionByNameOrId("users")
	if err != nil {
		t.Fatalf("failed to find users collection: %v", err)
	}

	record := core.NewRecord(collection)
	record.SetEmail(email)
	record.SetPassword("test-password-123")
	record.SetVerified(true)

	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save user %s: %v", email, err)
	}
	return record
}

// CreateProject seeds a project owned by owner.
func CreateProject(t *testing.T, app core.App, name string, owner *core.Record) *core.Record {
	t.Helper()

	collection, err := app.FindCollectionByNameOrId("projects")
	if err != nil {
		t.Fatalf("failed to find projects collection: %v", err)
	}

	record := core.NewRecord(collection)
	record.Set("name", name)
	record.Set("owner_id", owner.Id)

	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save project %s: %v", name, err)
	}
	return record
}

// AddMember seeds a project membership.
func AddMember(t *testing.T, app core.App, project, user *core.Record, role models.ProjectRole) *core.Record {
	t.Helper()

	collection, err := app.FindCollectionByNameOrId("memberships")
	if err != nil {
		t.Fatalf("failed to find memberships collection: %v", err)
	}

	record := core.NewRecord(collection)
	record.Set("project_id", project.Id)
	record.Set("user_id", user.Id)
	record.Set("role", string(role))

	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save membership: %v", err)
	}
	return record
}

// CreateStory seeds a backlog story.
func CreateStory(t *testing.T, app core.App, project *core.Record, title string, status models.StoryStatus) *core.Record {
	t.Helper()

	collection, err := app.FindCollectionByNameOrId("stories")
	if err != nil {
		t.Fatalf("failed to find stories collection: %v", err)
	}

	record := core.NewRecord(collection)
	record.Set("project_id", project.Id)
	record.Set("title", title)
	record.Set("status", string(status))

	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save story %s: %v", title, err)
	}
	return record
}

// CreateVote seeds a raw vote record, bypassing the ledger. Used by tests
// that need history fixtures without driving the whole protocol.
func CreateVote(t *testing.T, app core.App, sessionID string, round int, voter *core.Record, value string) *core.Record {
	t.Helper()

	collection, err := app.FindCollectionByNameOrId("votes")
	if err != nil {
		t.Fatalf("failed to find votes collection: %v", err)
	}

	record := core.NewRecord(collection)
	record.Set("session_id", sessionID)
	record.Set("round_number", round)
	record.Set("voter_id", voter.Id)
	record.Set("value", value)
	record.Set("voted_at", time.Now())

	if err := app.Save(record); err != nil {
		t.Fatalf("failed to save vote: %v", err)
	}
	return record
}
