package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mesh-intelligence/wonder/internal/kv"
	"github.com/mesh-intelligence/wonder/pkg/types"
)

// archiveLine is one record of a project archive.
type archiveLine struct {
	Store  string          `json:"store"`
	Record json.RawMessage `json:"record"`
}

// ExportProject writes the project, its settings, its nodes, their documents
// and the relations between those documents to path as JSONL, one record per
// line in that order. Relations reaching a document outside the archive are
// left out. It returns the number of records written.
func (l *Library) ExportProject(ctx context.Context, projectID, path string) (int, error) {
	var lines []json.RawMessage
	add := func(store string, rec any) error {
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding %s record: %w", store, err)
		}
		line, err := json.Marshal(archiveLine{Store: store, Record: raw})
		if err != nil {
			return fmt.Errorf("encoding %s line: %w", store, err)
		}
		lines = append(lines, line)
		return nil
	}

	err := l.db.View(ctx, allStores(), func(tx *kv.Tx) error {
		p, err := kv.Get[types.Project](tx, ProjectStoreName, projectID)
		if err != nil {
			return fmt.Errorf("getting project %s: %w", projectID, err)
		}
		if err := add(ProjectStoreName, p); err != nil {
			return err
		}

		settings, err := kv.GetAllByIndex[types.ProjectSettings](tx, ProjectSettingsStore, indexProject, kv.Only(projectID))
		if err != nil {
			return err
		}
		for _, st := range settings {
			if err := add(ProjectSettingsStore, st); err != nil {
				return err
			}
		}

		nodes, err := kv.GetAllByIndex[types.HierarchyNode](tx, HierarchyStoreName, indexProject, kv.Only(projectID))
		if err != nil {
			return err
		}
		var leaves []types.HierarchyNode
		for _, n := range nodes {
			if err := add(HierarchyStoreName, n); err != nil {
				return err
			}
			if !n.IsDirectory() {
				leaves = append(leaves, n)
			}
		}

		type pending struct {
			rs  *RelationStore
			rel *types.Relation
		}
		exported := make(map[string]bool)
		seen := make(map[string]bool)
		var relations []pending
		for _, n := range leaves {
			docs, ok := l.documents[n.Type]
			if !ok {
				continue
			}
			doc, err := docs.getByHierarchy(tx, n.ID)
			if errors.Is(err, types.ErrNotFound) {
				docs.log.WithField("node", n.ID).Warn("leaf has no document, skipped")
				continue
			}
			if err != nil {
				return err
			}
			if err := add(docs.store, doc); err != nil {
				return err
			}
			exported[doc.ID] = true
			for _, rs := range docs.relations {
				rels, err := rs.getByEndpoint(tx, doc.ID)
				if err != nil {
					return err
				}
				for _, r := range rels {
					if seen[rs.spec.Store+"/"+r.ID] {
						continue
					}
					seen[rs.spec.Store+"/"+r.ID] = true
					relations = append(relations, pending{rs: rs, rel: r})
				}
			}
		}
		for _, pr := range relations {
			if !exported[pr.rel.FromID] || !exported[pr.rel.ToID] {
				pr.rs.log.WithField("relation", pr.rel.ID).Warn("relation leaves the project, skipped")
				continue
			}
			if err := add(pr.rs.spec.Store, pr.rs.encode(pr.rel)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("exporting project %s: %w", projectID, err)
	}

	if err := writeJSONL(path, lines); err != nil {
		return 0, fmt.Errorf("writing archive: %w", err)
	}
	l.log.WithField("project", projectID).WithField("count", len(lines)).Info("exported project")
	return len(lines), nil
}

// ImportProject adds every record of an archive written by ExportProject in
// one transaction. Importing a project that already exists fails with
// ErrConstraint, and a relation whose endpoints are not documents of the
// imported project fails the import; either way nothing changes.
func (l *Library) ImportProject(ctx context.Context, path string) (*types.Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	raws, err := readJSONL(f)
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}

	type pendingRelation struct {
		line int
		rs   *RelationStore
		rec  map[string]string
	}
	var (
		project   *types.Project
		relations []pendingRelation
	)
	err = l.db.Update(ctx, allStores(), func(tx *kv.Tx) error {
		for i, raw := range raws {
			var line archiveLine
			if err := json.Unmarshal(raw, &line); err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			if line.Store == ProjectStoreName && project == nil {
				var p types.Project
				if err := json.Unmarshal(line.Record, &p); err != nil {
					return fmt.Errorf("line %d: %w", i+1, err)
				}
				project = &p
			}
			if _, err := tx.Add(line.Store, line.Record); err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			if rs := l.relationByStore(line.Store); rs != nil {
				var rec map[string]string
				if err := json.Unmarshal(line.Record, &rec); err != nil {
					return fmt.Errorf("line %d: %w", i+1, err)
				}
				relations = append(relations, pendingRelation{line: i + 1, rs: rs, rec: rec})
			}
		}
		if project == nil {
			return fmt.Errorf("archive has no project: %w", types.ErrNotFound)
		}
		for _, pr := range relations {
			if err := pr.rs.checkRecord(tx, pr.rec, project.ID); err != nil {
				return fmt.Errorf("line %d: %w", pr.line, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("importing %s: %w", path, err)
	}
	l.log.WithField("project", project.ID).WithField("count", len(raws)).Info("imported project")
	return project, nil
}

// relationByStore returns the relation store named store, or nil.
func (l *Library) relationByStore(store string) *RelationStore {
	for _, rs := range l.relations {
		if rs.spec.Store == store {
			return rs
		}
	}
	return nil
}
