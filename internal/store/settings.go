package store

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/wonder/internal/kv"
	"github.com/mesh-intelligence/wonder/pkg/types"
)

// SettingsStore holds one ProjectSettings record per project.
type SettingsStore struct {
	db *kv.DB
}

// GetByProject returns the settings of a project.
func (s *SettingsStore) GetByProject(ctx context.Context, projectID string) (*types.ProjectSettings, error) {
	var out types.ProjectSettings
	err := s.db.View(ctx, []string{ProjectSettingsStore}, func(tx *kv.Tx) error {
		var err error
		out, err = kv.GetByIndex[types.ProjectSettings](tx, ProjectSettingsStore, indexProject, kv.Only(projectID))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("getting settings of project %s: %w", projectID, err)
	}
	return &out, nil
}

// Update validates and stores settings. The project link cannot change.
func (s *SettingsStore) Update(ctx context.Context, settings *types.ProjectSettings) (*types.ProjectSettings, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	var out types.ProjectSettings
	err := s.db.Update(ctx, []string{ProjectSettingsStore}, func(tx *kv.Tx) error {
		cur, err := kv.Get[types.ProjectSettings](tx, ProjectSettingsStore, settings.ID)
		if err != nil {
			return fmt.Errorf("getting settings %s: %w", settings.ID, err)
		}
		cur.ContentFont = settings.ContentFont
		cur.ContentWidth = settings.ContentWidth
		cur.Theme = settings.Theme
		if _, err := tx.Put(ProjectSettingsStore, cur, nil); err != nil {
			return fmt.Errorf("updating settings %s: %w", cur.ID, err)
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SettingsStore) create(tx *kv.Tx, projectID string) (*types.ProjectSettings, error) {
	settings := types.DefaultSettings(generateID(), projectID)
	if _, err := tx.Add(ProjectSettingsStore, settings); err != nil {
		return nil, fmt.Errorf("creating settings: %w", err)
	}
	return settings, nil
}

func (s *SettingsStore) deleteByProject(tx *kv.Tx, projectID string) (int, error) {
	all, err := kv.GetAllByIndex[types.ProjectSettings](tx, ProjectSettingsStore, indexProject, kv.Only(projectID))
	if err != nil {
		return 0, fmt.Errorf("listing settings of project %s: %w", projectID, err)
	}
	for _, st := range all {
		if err := tx.Delete(ProjectSettingsStore, st.ID); err != nil {
			return 0, fmt.Errorf("deleting settings %s: %w", st.ID, err)
		}
	}
	return len(all), nil
}
