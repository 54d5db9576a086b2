package services

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/pocketbase/pocketbase/core"
)

// StorySearch maintains an in-memory full-text index over backlog stories so
// the session-creation flow can look up the item to estimate. The index is
// rebuilt on startup and kept current through record hooks.
type StorySearch struct {
	mu    sync.RWMutex
	index bleve.Index
}

type storyDoc struct {
	ProjectID   string `json:"project_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// StoryMatch is one search hit.
type StoryMatch struct {
	StoryID   string `json:"storyId"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Highlight string `json:"highlight,omitempty"`
}

func NewStorySearch() (*StorySearch, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create story index: %w", err)
	}
	return &StorySearch{index: index}, nil
}

// Rebuild indexes every story currently in the database.
func (s *StorySearch) Rebuild(app core.App) error {
	records, err := app.FindRecordsByFilter("stories", "", "", 10000, 0, nil)
	if err != nil {
		return fmt.Errorf("failed to load stories: %w", err)
	}

	for _, record := range records {
		if err := s.IndexStory(record); err != nil {
			return err
		}
	}
	return nil
}

// IndexStory adds or refreshes one story in the index.
func (s *StorySearch) IndexStory(record *core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := storyDoc{
		ProjectID:   record.GetString("project_id"),
		Title:       record.GetString("title"),
		Description: record.GetString("description"),
		Status:      record.GetString("status"),
	}
	if err := s.index.Index(record.Id, doc); err != nil {
		return fmt.Errorf("failed to index story %s: %w", record.Id, err)
	}
	return nil
}

// RemoveStory drops a story from the index.
func (s *StorySearch) RemoveStory(storyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Delete(storyID)
}

// Search runs a match query scoped to one project and resolves the hits back
// to story records.
func (s *StorySearch) Search(app core.App, projectID, query string, limit int) ([]StoryMatch, error) {
	if limit <= 0 {
		limit = 10
	}

	match := bleve.NewMatchQuery(query)
	scope := bleve.NewTermQuery(projectID)
	scope.SetField("project_id")

	request := bleve.NewSearchRequest(bleve.NewConjunctionQuery(match, scope))
	request.Size = limit
	request.Highlight = bleve.NewHighlight()

	s.mu.RLock()
	results, err := s.index.Search(request)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("story search failed: %w", err)
	}

	var matches []StoryMatch
	for _, hit := range results.Hits {
		record, err := app.FindRecordById("stories", hit.ID)
		if err != nil {
			continue // index can briefly outlive a deleted story
		}

		highlight := ""
		if fragments, ok := hit.Fragments["description"]; ok && len(fragments) > 0 {
			highlight = fragments[0]
		}

		matches = append(matches, StoryMatch{
			StoryID:   record.Id,
			Title:     record.GetString("title"),
			Status:    record.GetString("status"),
			Highlight: highlight,
		})
	}

	return matches, nil
}
