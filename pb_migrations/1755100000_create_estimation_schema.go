package migrations

import (
	"fmt"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return fmt.Errorf("failed to find users collection: %w", err)
		}
		projects, err := app.FindCollectionByNameOrId("projects")
		if err != nil {
			return fmt.Errorf("failed to find projects collection: %w", err)
		}
		stories, err := app.FindCollectionByNameOrId("stories")
		if err != nil {
			return fmt.Errorf("failed to find stories collection: %w", err)
		}

		// Create sessions collection
		sessions := core.NewBaseCollection("sessions")
		sessions.ListRule = nil
		sessions.ViewRule = nil
		sessions.CreateRule = nil
		sessions.UpdateRule = nil
		sessions.DeleteRule = nil

		sessions.Fields.Add(&core.RelationField{
			Name:          "project_id",
			Required:      true,
			MaxSelect:     1,
			CollectionId:  projects.Id,
			CascadeDelete: true,
		})

		sessions.Fields.Add(&core.RelationField{
			Name:          "story_id",
			Required:      true,
			MaxSelect:     1,
			CollectionId:  stories.Id,
			CascadeDelete: true,
		})

		sessions.Fields.Add(&core.TextField{
			Name:     "name",
			Required: true,
			Max:      100,
		})

		sessions.Fields.Add(&core.SelectField{
			Name:      "method",
			Required:  true,
			MaxSelect: 1,
			Values:    []string{"fibonacci", "tshirt", "powers_of_two", "custom"},
		})

		// Resolved card sequence, wildcard last
		sessions.Fields.Add(&core.JSONField{
			Name:     "sequence",
			Required: true,
			MaxSize:  2048,
		})

		sessions.Fields.Add(&core.SelectField{
			Name:      "status",
			Required:  true,
			MaxSelect: 1,
			Values:    []string{"draft", "active", "closed"},
		})

		sessions.Fields.Add(&core.NumberField{
			Name:     "current_round",
			Required: true,
			OnlyInt:  true,
		})

		sessions.Fields.Add(&core.BoolField{
			Name: "is_revealed",
		})

		// Set exactly once, at close
		sessions.Fields.Add(&core.TextField{
			Name: "final_estimation",
			Max:  10,
		})

		sessions.Fields.Add(&core.NumberField{
			Name: "estimate_hours",
		})

		sessions.Fields.Add(&core.TextField{
			Name: "notes",
			Max:  2000,
		})

		sessions.Fields.Add(&core.RelationField{
			Name:          "moderator_id",
			Required:      true,
			MaxSelect:     1,
			CollectionId:  users.Id,
			CascadeDelete: false,
		})

		sessions.Fields.Add(&core.TextField{
			Name: "share_token",
			Max:  40,
		})

		sessions.Fields.Add(&core.DateField{
			Name:     "last_activity",
			Required: true,
		})

		sessions.Indexes = []string{
			"CREATE INDEX idx_sessions_project ON sessions(project_id)",
			"CREATE INDEX idx_sessions_story ON sessions(story_id)",
			"CREATE INDEX idx_sessions_status ON sessions(status)",
			"CREATE INDEX idx_sessions_activity ON sessions(last_activity)",
		}

		if err := app.Save(sessions); err != nil {
			return fmt.Errorf("failed to create sessions collection: %w", err)
		}

		// Create session_rounds collection (audit trail for round advances)
		rounds := core.NewBaseCollection("session_rounds")
		rounds.ListRule = nil
		rounds.ViewRule = nil
		rounds.CreateRule = nil
		rounds.UpdateRule = nil
		rounds.DeleteRule = nil

		rounds.Fields.Add(&core.RelationField{
			Name:          "session_id",
			Required:      true,
			MaxSelect:     1,
			CollectionId:  sessions.Id,
			CascadeDelete: true,
		})

		rounds.Fields.Add(&core.NumberField{
			Name:     "round_number",
			Required: true,
			OnlyInt:  true,
		})

		rounds.Fields.Add(&core.TextField{
			Name: "reason",
			Max:  200,
		})

		rounds.Fields.Add(&core.DateField{
			Name:     "started_at",
			Required: true,
		})

		rounds.Indexes = []string{
			"CREATE INDEX idx_session_rounds_session ON session_rounds(session_id)",
			"CREATE UNIQUE INDEX idx_session_rounds_unique ON session_rounds(session_id, round_number)",
		}

		if err := app.Save(rounds); err != nil {
			return fmt.Errorf("failed to create session_rounds collection: %w", err)
		}

		// Create votes collection
		votes := core.NewBaseCollection("votes")
		votes.ListRule = nil
		votes.ViewRule = nil
		votes.CreateRule = nil
		votes.UpdateRule = nil
		votes.DeleteRule = nil

		votes.Fields.Add(&core.RelationField{
			Name:          "session_id",
			Required:      true,
			MaxSelect:     1,
			CollectionId:  sessions.Id,
			CascadeDelete: true,
		})

		votes.Fields.Add(&core.NumberField{
			Name:     "round_number",
			Required: true,
			OnlyInt:  true,
		})

		votes.Fields.Add(&core.RelationField{
			Name:          "voter_id",
			Required:      true,
			MaxSelect:     1,
			CollectionId:  users.Id,
			CascadeDelete: false,
		})

		votes.Fields.Add(&core.TextField{
			Name:     "value",
			Required: true,
			Max:      10,
		})

		votes.Fields.Add(&core.TextField{
			Name: "justification",
			Max:  500,
		})

		votes.Fields.Add(&core.DateField{
			Name:     "voted_at",
			Required: true,
		})

		// The unique index is what makes at-most-one-vote-per-round hold
		// under concurrent inserts.
		votes.Indexes = []string{
			"CREATE INDEX idx_votes_session_round ON votes(session_id, round_number)",
			"CREATE UNIQUE INDEX idx_votes_unique ON votes(session_id, round_number, voter_id)",
		}

		if err := app.Save(votes); err != nil {
			return fmt.Errorf("failed to create votes collection: %w", err)
		}

		return nil
	}, func(app core.App) error {
		// Down migration - cleanup in reverse order
		for _, name := range []string{"votes", "session_rounds", "sessions"} {
			collection, err := app.FindCollectionByNameOrId(name)
			if err == nil && collection != nil {
				if err := app.Delete(collection); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
