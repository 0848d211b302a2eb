package store

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/wonder/internal/kv"
	"github.com/mesh-intelligence/wonder/pkg/types"
)

// ProjectStore manages projects. Creating and deleting a project also
// creates or removes its settings and its whole tree.
type ProjectStore struct {
	db        *kv.DB
	settings  *SettingsStore
	hierarchy *HierarchyStore
	log       logrus.FieldLogger
}

// Create adds a project with default settings and the four root directories.
func (s *ProjectStore) Create(ctx context.Context, name string) (*types.Project, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	p := &types.Project{
		ID:           generateID(),
		Name:         name,
		LastModified: time.Now().UTC(),
		Theme:        types.ProjectThemes[rand.IntN(len(types.ProjectThemes))],
	}

	err = s.db.Update(ctx, []string{ProjectStoreName, ProjectSettingsStore, HierarchyStoreName}, func(tx *kv.Tx) error {
		if _, err := tx.Add(ProjectStoreName, p); err != nil {
			return fmt.Errorf("creating project: %w", err)
		}
		if _, err := s.settings.create(tx, p.ID); err != nil {
			return err
		}
		_, err := s.hierarchy.initProject(tx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("project", p.ID).Info("created project")
	return p, nil
}

// Get returns a project by id.
func (s *ProjectStore) Get(ctx context.Context, id string) (*types.Project, error) {
	var p types.Project
	err := s.db.View(ctx, []string{ProjectStoreName}, func(tx *kv.Tx) error {
		var err error
		p, err = kv.Get[types.Project](tx, ProjectStoreName, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("getting project %s: %w", id, err)
	}
	return &p, nil
}

// List returns every project, most recently modified first.
func (s *ProjectStore) List(ctx context.Context) ([]*types.Project, error) {
	var all []types.Project
	err := s.db.View(ctx, []string{ProjectStoreName}, func(tx *kv.Tx) error {
		var err error
		all, err = kv.GetAll[types.Project](tx, ProjectStoreName, kv.All())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	out := make([]*types.Project, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastModified.After(out[j].LastModified) })
	return out, nil
}

// Rename changes a project's name and bumps its modification time.
func (s *ProjectStore) Rename(ctx context.Context, project *types.Project, name string) (*types.Project, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	var out types.Project
	err = s.db.Update(ctx, []string{ProjectStoreName}, func(tx *kv.Tx) error {
		cur, err := kv.Get[types.Project](tx, ProjectStoreName, project.ID)
		if err != nil {
			return fmt.Errorf("getting project %s: %w", project.ID, err)
		}
		cur.Name = name
		cur.LastModified = time.Now().UTC()
		if _, err := tx.Put(ProjectStoreName, cur, nil); err != nil {
			return fmt.Errorf("renaming project %s: %w", cur.ID, err)
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a project, its settings, every node of its tree, every
// document behind those nodes and every relation touching those documents.
func (s *ProjectStore) Delete(ctx context.Context, project *types.Project) error {
	var nodes int
	err := s.db.Update(ctx, allStores(), func(tx *kv.Tx) error {
		if _, err := tx.Get(ProjectStoreName, project.ID); err != nil {
			return fmt.Errorf("getting project %s: %w", project.ID, err)
		}
		if _, err := s.settings.deleteByProject(tx, project.ID); err != nil {
			return err
		}
		var err error
		if nodes, err = s.hierarchy.deleteProject(tx, project.ID); err != nil {
			return err
		}
		if err := tx.Delete(ProjectStoreName, project.ID); err != nil {
			return fmt.Errorf("deleting project %s: %w", project.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"project": project.ID, "count": nodes}).Info("deleted project")
	return nil
}
