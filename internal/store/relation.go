package store

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/wonder/internal/kv"
	"github.com/mesh-intelligence/wonder/pkg/types"
)

// RelationStore holds the relations of one kind. Records carry the endpoint
// ids under the kind's own field names, each indexed.
type RelationStore struct {
	db   *kv.DB
	spec RelationSpec
	from *DocumentStore
	to   *DocumentStore
	log  logrus.FieldLogger
}

// Spec returns the relation kind description.
func (s *RelationStore) Spec() RelationSpec { return s.spec }

// scope lists the relation store, both endpoint document stores and the
// hierarchy, which places each document in its project.
func (s *RelationStore) scope() []string {
	names := []string{s.spec.Store, HierarchyStoreName, s.from.store}
	if s.to.store != s.from.store {
		names = append(names, s.to.store)
	}
	return names
}

// Add links from to to. Both documents must exist in the same project.
func (s *RelationStore) Add(ctx context.Context, from, to *types.Document, label, memo string) (*types.Relation, error) {
	var rel *types.Relation
	err := s.db.Update(ctx, s.scope(), func(tx *kv.Tx) error {
		var err error
		rel, err = s.add(tx, from, to, label, memo)
		return err
	})
	return rel, err
}

// Update replaces the endpoints, label and memo of an existing relation.
func (s *RelationStore) Update(ctx context.Context, existing *types.Relation, from, to *types.Document, label, memo string) (*types.Relation, error) {
	var rel *types.Relation
	err := s.db.Update(ctx, s.scope(), func(tx *kv.Tx) error {
		var err error
		rel, err = s.update(tx, existing, from, to, label, memo)
		return err
	})
	return rel, err
}

// GetByID returns a relation by id.
func (s *RelationStore) GetByID(ctx context.Context, id string) (*types.Relation, error) {
	var rel *types.Relation
	err := s.db.View(ctx, []string{s.spec.Store}, func(tx *kv.Tx) error {
		var err error
		rel, err = s.getByID(tx, id)
		return err
	})
	return rel, err
}

// GetByEndpoint returns every relation with docID at either end, without
// duplicates.
func (s *RelationStore) GetByEndpoint(ctx context.Context, docID string) ([]*types.Relation, error) {
	var rels []*types.Relation
	err := s.db.View(ctx, []string{s.spec.Store}, func(tx *kv.Tx) error {
		var err error
		rels, err = s.getByEndpoint(tx, docID)
		return err
	})
	return rels, err
}

// GetByFrom returns the relations whose first endpoint is docID.
func (s *RelationStore) GetByFrom(ctx context.Context, docID string) ([]*types.Relation, error) {
	return s.getByFieldView(ctx, s.spec.FromField, docID)
}

// GetByTo returns the relations whose second endpoint is docID.
func (s *RelationStore) GetByTo(ctx context.Context, docID string) ([]*types.Relation, error) {
	return s.getByFieldView(ctx, s.spec.ToField, docID)
}

// Delete removes a relation. Deleting a missing relation is not an error.
func (s *RelationStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(ctx, []string{s.spec.Store}, func(tx *kv.Tx) error {
		return tx.Delete(s.spec.Store, id)
	})
}

func (s *RelationStore) getByFieldView(ctx context.Context, field, docID string) ([]*types.Relation, error) {
	var rels []*types.Relation
	err := s.db.View(ctx, []string{s.spec.Store}, func(tx *kv.Tx) error {
		var err error
		rels, err = s.getByField(tx, field, docID)
		return err
	})
	return rels, err
}

func (s *RelationStore) add(tx *kv.Tx, from, to *types.Document, label, memo string) (*types.Relation, error) {
	if _, err := s.checkEndpoints(tx, from, to); err != nil {
		return nil, err
	}
	rel := &types.Relation{
		ID:       generateID(),
		Kind:     s.spec.Kind,
		FromID:   from.ID,
		ToID:     to.ID,
		Relation: label,
		Memo:     memo,
	}
	if _, err := tx.Add(s.spec.Store, s.encode(rel)); err != nil {
		return nil, fmt.Errorf("adding %s relation: %w", s.spec.Kind, err)
	}
	return rel, nil
}

func (s *RelationStore) update(tx *kv.Tx, existing *types.Relation, from, to *types.Document, label, memo string) (*types.Relation, error) {
	cur, err := s.getByID(tx, existing.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.checkEndpoints(tx, from, to); err != nil {
		return nil, err
	}
	cur.FromID, cur.ToID = from.ID, to.ID
	cur.Relation, cur.Memo = label, memo
	if _, err := tx.Put(s.spec.Store, s.encode(cur), nil); err != nil {
		return nil, fmt.Errorf("updating %s relation %s: %w", s.spec.Kind, cur.ID, err)
	}
	return cur, nil
}

// checkEndpoints verifies both documents exist in their kind's store and
// hang off leaves of the same project, and returns that project.
func (s *RelationStore) checkEndpoints(tx *kv.Tx, from, to *types.Document) (string, error) {
	if from == nil || to == nil {
		return "", fmt.Errorf("%s relation needs both endpoints: %w", s.spec.Kind, types.ErrNotFound)
	}
	fromProject, err := s.from.projectOf(tx, from.ID)
	if err != nil {
		return "", fmt.Errorf("%s relation endpoint: %w", s.spec.Kind, err)
	}
	toProject, err := s.to.projectOf(tx, to.ID)
	if err != nil {
		return "", fmt.Errorf("%s relation endpoint: %w", s.spec.Kind, err)
	}
	if fromProject != toProject {
		return "", fmt.Errorf("%s relation %s to %s: %w", s.spec.Kind, from.ID, to.ID, types.ErrCrossProject)
	}
	return fromProject, nil
}

// checkRecord verifies a raw relation record links two documents of
// projectID.
func (s *RelationStore) checkRecord(tx *kv.Tx, rec map[string]string, projectID string) error {
	r := s.decode(rec)
	project, err := s.checkEndpoints(tx, &types.Document{ID: r.FromID}, &types.Document{ID: r.ToID})
	if err != nil {
		return err
	}
	if project != projectID {
		return fmt.Errorf("%s relation %s outside project %s: %w", s.spec.Kind, r.ID, projectID, types.ErrCrossProject)
	}
	return nil
}

func (s *RelationStore) getByID(tx *kv.Tx, id string) (*types.Relation, error) {
	rec, err := kv.Get[map[string]string](tx, s.spec.Store, id)
	if err != nil {
		return nil, fmt.Errorf("getting %s relation %s: %w", s.spec.Kind, id, err)
	}
	return s.decode(rec), nil
}

func (s *RelationStore) getByField(tx *kv.Tx, field, docID string) ([]*types.Relation, error) {
	recs, err := kv.GetAllByIndex[map[string]string](tx, s.spec.Store, field, kv.Only(docID))
	if err != nil {
		return nil, fmt.Errorf("listing %s relations by %s: %w", s.spec.Kind, field, err)
	}
	out := make([]*types.Relation, 0, len(recs))
	for _, rec := range recs {
		out = append(out, s.decode(rec))
	}
	return out, nil
}

func (s *RelationStore) getByEndpoint(tx *kv.Tx, docID string) ([]*types.Relation, error) {
	seen := make(map[string]bool)
	var out []*types.Relation
	for _, field := range []string{s.spec.FromField, s.spec.ToField} {
		rels, err := s.getByField(tx, field, docID)
		if err != nil {
			return nil, err
		}
		for _, r := range rels {
			if !seen[r.ID] {
				seen[r.ID] = true
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// deleteByEndpoint removes every relation touching docID and reports how
// many were removed.
func (s *RelationStore) deleteByEndpoint(tx *kv.Tx, docID string) (int, error) {
	rels, err := s.getByEndpoint(tx, docID)
	if err != nil {
		return 0, err
	}
	for _, r := range rels {
		if err := tx.Delete(s.spec.Store, r.ID); err != nil {
			return 0, fmt.Errorf("deleting %s relation %s: %w", s.spec.Kind, r.ID, err)
		}
	}
	return len(rels), nil
}

func (s *RelationStore) encode(r *types.Relation) map[string]string {
	return map[string]string{
		"id":             r.ID,
		s.spec.FromField: r.FromID,
		s.spec.ToField:   r.ToID,
		"relation":       r.Relation,
		"memo":           r.Memo,
	}
}

func (s *RelationStore) decode(rec map[string]string) *types.Relation {
	return &types.Relation{
		ID:       rec["id"],
		Kind:     s.spec.Kind,
		FromID:   rec[s.spec.FromField],
		ToID:     rec[s.spec.ToField],
		Relation: rec["relation"],
		Memo:     rec["memo"],
	}
}
