package services

import (
	"github.com/pocketbase/pocketbase/core"

	"github.com/sprintdeck/estimation/internal/models"
)

// BacklogService is the backlog-store collaborator: it answers whether a
// story may be estimated and accepts the finalize-time estimate write-back.
type BacklogService struct {
	app core.App
}

func NewBacklogService(app core.App) *BacklogService {
	return &BacklogService{app: app}
}

// GetStory retrieves a story record by id.
func (s *BacklogService) GetStory(storyID string) (*core.Record, error) {
	record, err := s.app.FindRecordById("stories", storyID)
	if err != nil {
		return nil, models.WrapError(models.KindNotFound, "story not found", err)
	}
	return record, nil
}

// EnsureEstimable fails with ITEM_NOT_ESTIMABLE unless the story's status
// allows opening an estimation session.
func (s *BacklogService) EnsureEstimable(storyID string) error {
	story, err := s.GetStory(storyID)
	if err != nil {
		return err
	}

	status := models.StoryStatus(story.GetString("status"))
	if !status.IsEstimable() {
		return models.NewFieldError(models.KindItemNotEstimable, "storyId",
			"story status '"+string(status)+"' does not allow estimation")
	}
	return nil
}

// CommitEstimate writes the finalized estimate back onto the story. Runs on
// the App handed in so finalize can pass its transaction.
func (s *BacklogService) CommitEstimate(app core.App, storyID, estimation string, hours float64) error {
	story, err := app.FindRecordById("stories", storyID)
	if err != nil {
		return models.WrapError(models.KindNotFound, "story not found", err)
	}

	story.Set("estimate", estimation)
	story.Set("estimated_hours", hours)
	if err := app.Save(story); err != nil {
		return models.WrapError(models.KindUnknown, "failed to write estimate to story", err)
	}
	return nil
}
