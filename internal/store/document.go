package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/wonder/internal/kv"
	"github.com/mesh-intelligence/wonder/pkg/types"
)

// DocumentStore holds the documents of one leaf type. Each hierarchy leaf of
// that type owns exactly one document, found through the hierarchyId index.
type DocumentStore struct {
	db        *kv.DB
	kind      types.HierarchyType
	store     string
	relations []*RelationStore
	log       logrus.FieldLogger
}

// Kind returns the leaf type served by the store.
func (s *DocumentStore) Kind() types.HierarchyType { return s.kind }

// StoreName returns the kv store name.
func (s *DocumentStore) StoreName() string { return s.store }

// GetByHierarchy returns the document behind a leaf node.
func (s *DocumentStore) GetByHierarchy(ctx context.Context, node *types.HierarchyNode) (*types.Document, error) {
	var doc *types.Document
	err := s.db.View(ctx, []string{s.store}, func(tx *kv.Tx) error {
		var err error
		doc, err = s.getByHierarchy(tx, node.ID)
		return err
	})
	return doc, err
}

// GetByID returns a document by id.
func (s *DocumentStore) GetByID(ctx context.Context, id string) (*types.Document, error) {
	var doc *types.Document
	err := s.db.View(ctx, []string{s.store}, func(tx *kv.Tx) error {
		var err error
		doc, err = s.getByID(tx, id)
		return err
	})
	return doc, err
}

// UpdateContent replaces the content of the stored document with doc.Content.
// The name and hierarchy link are left as stored.
func (s *DocumentStore) UpdateContent(ctx context.Context, doc *types.Document) (*types.Document, error) {
	var out *types.Document
	err := s.db.Update(ctx, []string{s.store}, func(tx *kv.Tx) error {
		cur, err := s.getByID(tx, doc.ID)
		if err != nil {
			return err
		}
		cur.Content = doc.Content
		if _, err := tx.Put(s.store, cur, nil); err != nil {
			return fmt.Errorf("updating %s %s: %w", s.kind, doc.ID, err)
		}
		out = cur
		return nil
	})
	return out, err
}

func (s *DocumentStore) getByHierarchy(tx *kv.Tx, hierarchyID string) (*types.Document, error) {
	doc, err := kv.GetByIndex[types.Document](tx, s.store, indexHierarchy, kv.Only(hierarchyID))
	if err != nil {
		return nil, fmt.Errorf("getting %s of node %s: %w", s.kind, hierarchyID, err)
	}
	return &doc, nil
}

func (s *DocumentStore) getByID(tx *kv.Tx, id string) (*types.Document, error) {
	doc, err := kv.Get[types.Document](tx, s.store, id)
	if err != nil {
		return nil, fmt.Errorf("getting %s %s: %w", s.kind, id, err)
	}
	return &doc, nil
}

// projectOf returns the project of the leaf owning document id.
func (s *DocumentStore) projectOf(tx *kv.Tx, id string) (string, error) {
	doc, err := s.getByID(tx, id)
	if err != nil {
		return "", err
	}
	node, err := getNode(tx, doc.HierarchyID)
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", s.kind, id, err)
	}
	return node.ProjectID, nil
}

// createByHierarchy adds the empty document of a new leaf. Manuscripts start
// without content; the other kinds start with an empty string.
func (s *DocumentStore) createByHierarchy(tx *kv.Tx, node *types.HierarchyNode) (*types.Document, error) {
	doc := &types.Document{ID: generateID(), HierarchyID: node.ID, Name: node.Name}
	if s.kind != types.TypeManuscript {
		doc.SetText("")
	}
	if _, err := tx.Add(s.store, doc); err != nil {
		return nil, fmt.Errorf("creating %s for node %s: %w", s.kind, node.ID, err)
	}
	return doc, nil
}

// renameByHierarchy copies the node name onto its document.
func (s *DocumentStore) renameByHierarchy(tx *kv.Tx, node *types.HierarchyNode) error {
	doc, err := s.getByHierarchy(tx, node.ID)
	if err != nil {
		return err
	}
	doc.Name = node.Name
	if _, err := tx.Put(s.store, doc, nil); err != nil {
		return fmt.Errorf("renaming %s %s: %w", s.kind, doc.ID, err)
	}
	return nil
}

// deleteByHierarchy removes the document of a leaf and every relation that
// points at it. A leaf without a document is tolerated.
func (s *DocumentStore) deleteByHierarchy(tx *kv.Tx, node *types.HierarchyNode) error {
	doc, err := s.getByHierarchy(tx, node.ID)
	if errors.Is(err, types.ErrNotFound) {
		s.log.WithField("node", node.ID).Warn("leaf has no document")
		return nil
	}
	if err != nil {
		return err
	}

	for _, rs := range s.relations {
		n, err := rs.deleteByEndpoint(tx, doc.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			s.log.WithFields(logrus.Fields{"document": doc.ID, "relations": rs.spec.Store, "count": n}).Debug("cascaded relations")
		}
	}
	if err := tx.Delete(s.store, doc.ID); err != nil {
		return fmt.Errorf("deleting %s %s: %w", s.kind, doc.ID, err)
	}
	return nil
}

// deleteScope lists the stores a document deletion touches.
func (s *DocumentStore) deleteScope() []string {
	names := []string{s.store}
	for _, rs := range s.relations {
		names = append(names, rs.spec.Store)
	}
	return names
}
