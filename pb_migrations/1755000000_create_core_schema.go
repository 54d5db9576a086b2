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

		// Create projects collection
		projects := core.NewBaseCollection("projects")
		projects.ListRule = nil
		projects.ViewRule = nil
		projects.CreateRule = nil
		projects.UpdateRule = nil
		projects.DeleteRule = nil

		projects.Fields.Add(&core.TextField{
			Name:     "name",
			Required: true,
			Max:      100,
		})

		projects.Fields.Add(&core.RelationField{
			Name:          "owner_id",
			Required:      true,
			MaxSelect:     1,
			CollectionId:  users.Id,
			CascadeDelete: false,
		})

		if err := app.Save(projects); err != nil {
			return fmt.Errorf("failed to create projects collection: %w", err)
		}

		// Create memberships collection
		memberships := core.NewBaseCollection("memberships")
		memberships.ListRule = nil
		memberships.ViewRule = nil
		memberships.CreateRule = nil
		memberships.UpdateRule = nil
		memberships.DeleteRule = nil

		memberships.Fields.Add(&core.RelationField{
			Name:          "project_id",
			Required:      true,
			MaxSelect:     1,
			CollectionId:  projects.Id,
			CascadeDelete: true,
		})

		memberships.Fields.Add(&core.RelationField{
			Name:          "user_id",
			Required:      true,
			MaxSelect:     1,
			CollectionId:  users.Id,
			CascadeDelete: true,
		})

		memberships.Fields.Add(&core.SelectField{
			Name:      "role",
			Required:  true,
			MaxSelect: 1,
			Values:    []string{"product_owner", "scrum_master", "developer"},
		})

		memberships.Indexes = []string{
			"CREATE UNIQUE INDEX idx_memberships_unique ON memberships(project_id, user_id)",
		}

		if err := app.Save(memberships); err != nil {
			return fmt.Errorf("failed to create memberships collection: %w", err)
		}

		// Create stories collection
		stories := core.NewBaseCollection("stories")
		stories.ListRule = nil
		stories.ViewRule = nil
		stories.CreateRule = nil
		stories.UpdateRule = nil
		stories.DeleteRule = nil

		stories.Fields.Add(&core.RelationField{
			Name:          "project_id",
			Required:      true,
			MaxSelect:     1,
			CollectionId:  projects.Id,
			CascadeDelete: true,
		})

		stories.Fields.Add(&core.TextField{
			Name:     "title",
			Required: true,
			Max:      200,
		})

		stories.Fields.Add(&core.TextField{
			Name: "description",
			Max:  5000,
		})

		stories.Fields.Add(&core.SelectField{
			Name:      "status",
			Required:  true,
			MaxSelect: 1,
			Values:    []string{"backlog", "ready", "in_progress", "done"},
		})

		// Estimation write-back target fields
		stories.Fields.Add(&core.TextField{
			Name: "estimate",
			Max:  10,
		})

		stories.Fields.Add(&core.NumberField{
			Name: "estimated_hours",
		})

		stories.Indexes = []string{
			"CREATE INDEX idx_stories_project ON stories(project_id)",
			"CREATE INDEX idx_stories_status ON stories(status)",
		}

		if err := app.Save(stories); err != nil {
			return fmt.Errorf("failed to create stories collection: %w", err)
		}

		return nil
	}, func(app core.App) error {
		// Down migration - cleanup in reverse order
		for _, name := range []string{"stories", "memberships", "projects"} {
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
