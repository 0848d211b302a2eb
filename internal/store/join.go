package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/mesh-intelligence/wonder/internal/kv"
	"github.com/mesh-intelligence/wonder/pkg/types"
)

// JoinService combines relation and document stores: relations come back
// with both endpoint documents resolved, and documents can be listed per
// project without walking the tree.
type JoinService struct {
	db        *kv.DB
	documents map[types.HierarchyType]*DocumentStore
	relations map[types.RelationKind]*RelationStore
}

func (j *JoinService) relation(kind types.RelationKind) (*RelationStore, error) {
	rs, ok := j.relations[kind]
	if !ok {
		return nil, fmt.Errorf("%q: %w", kind, types.ErrInvalidRelationType)
	}
	return rs, nil
}

// AddRelation links from to to and returns the stored relation hydrated.
func (j *JoinService) AddRelation(ctx context.Context, kind types.RelationKind, from, to *types.Document, label, memo string) (*types.HydratedRelation, error) {
	rs, err := j.relation(kind)
	if err != nil {
		return nil, err
	}
	var out *types.HydratedRelation
	err = j.db.Update(ctx, rs.scope(), func(tx *kv.Tx) error {
		rel, err := rs.add(tx, from, to, label, memo)
		if err != nil {
			return err
		}
		out, err = j.reload(tx, rs, rel.ID)
		return err
	})
	return out, err
}

// UpdateRelation rewrites an existing relation and returns it hydrated.
func (j *JoinService) UpdateRelation(ctx context.Context, kind types.RelationKind, existing *types.Relation, from, to *types.Document, label, memo string) (*types.HydratedRelation, error) {
	rs, err := j.relation(kind)
	if err != nil {
		return nil, err
	}
	var out *types.HydratedRelation
	err = j.db.Update(ctx, rs.scope(), func(tx *kv.Tx) error {
		rel, err := rs.update(tx, existing, from, to, label, memo)
		if err != nil {
			return err
		}
		out, err = j.reload(tx, rs, rel.ID)
		return err
	})
	return out, err
}

// GetRelation returns one relation hydrated.
func (j *JoinService) GetRelation(ctx context.Context, kind types.RelationKind, id string) (*types.HydratedRelation, error) {
	rs, err := j.relation(kind)
	if err != nil {
		return nil, err
	}
	var out *types.HydratedRelation
	err = j.db.View(ctx, rs.scope(), func(tx *kv.Tx) error {
		var err error
		out, err = j.reload(tx, rs, id)
		return err
	})
	return out, err
}

// RelationsOf returns every relation of kind touching docID, hydrated.
func (j *JoinService) RelationsOf(ctx context.Context, kind types.RelationKind, docID string) ([]*types.HydratedRelation, error) {
	rs, err := j.relation(kind)
	if err != nil {
		return nil, err
	}
	var out []*types.HydratedRelation
	err = j.db.View(ctx, rs.scope(), func(tx *kv.Tx) error {
		rels, err := rs.getByEndpoint(tx, docID)
		if err != nil {
			return err
		}
		for _, rel := range rels {
			h, err := hydrate(tx, rs, rel)
			if err != nil {
				return err
			}
			out = append(out, h)
		}
		return nil
	})
	return out, err
}

// DeleteRelation removes rel from the store that links fromType to toType.
// Any other pair of types fails with ErrInvalidRelationType.
func (j *JoinService) DeleteRelation(ctx context.Context, fromType, toType types.HierarchyType, rel *types.Relation) error {
	spec, err := RelationBetween(fromType, toType)
	if err != nil {
		return err
	}
	rs, err := j.relation(spec.Kind)
	if err != nil {
		return err
	}
	return rs.Delete(ctx, rel.ID)
}

// AllCharactersByProject lists the project's characters sorted by name.
func (j *JoinService) AllCharactersByProject(ctx context.Context, projectID string) ([]*types.Document, error) {
	return j.AllDocumentsByProject(ctx, projectID, types.TypeCharacter)
}

// AllPlacesByProject lists the project's places sorted by name.
func (j *JoinService) AllPlacesByProject(ctx context.Context, projectID string) ([]*types.Document, error) {
	return j.AllDocumentsByProject(ctx, projectID, types.TypePlace)
}

// AllDocumentsByProject lists every document of a kind in the project,
// flattened out of the tree and sorted by name with locale-aware collation.
func (j *JoinService) AllDocumentsByProject(ctx context.Context, projectID string, kind types.HierarchyType) ([]*types.Document, error) {
	docs, ok := j.documents[kind]
	if !ok {
		return nil, fmt.Errorf("%q has no documents: %w", kind, types.ErrInvalidHierarchyType)
	}
	var out []*types.Document
	err := j.db.View(ctx, []string{HierarchyStoreName, docs.store}, func(tx *kv.Tx) error {
		nodes, err := listByType(tx, projectID, kind)
		if err != nil {
			return err
		}
		for _, n := range nodes {
			d, err := docs.getByHierarchy(tx, n.ID)
			if errors.Is(err, types.ErrNotFound) {
				docs.log.WithField("node", n.ID).Warn("leaf has no document, skipped")
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByName(out)
	return out, nil
}

// sortByName orders documents by name using the root collation, which keeps
// Hangul and Latin names in their natural order.
func sortByName(docs []*types.Document) {
	c := collate.New(language.Und)
	sort.SliceStable(docs, func(i, k int) bool {
		return c.CompareString(docs[i].Name, docs[k].Name) < 0
	})
}

func (j *JoinService) reload(tx *kv.Tx, rs *RelationStore, id string) (*types.HydratedRelation, error) {
	rel, err := rs.getByID(tx, id)
	if err != nil {
		return nil, err
	}
	return hydrate(tx, rs, rel)
}

func hydrate(tx *kv.Tx, rs *RelationStore, rel *types.Relation) (*types.HydratedRelation, error) {
	from, err := rs.from.getByID(tx, rel.FromID)
	if err != nil {
		return nil, fmt.Errorf("hydrating relation %s: %w", rel.ID, err)
	}
	to, err := rs.to.getByID(tx, rel.ToID)
	if err != nil {
		return nil, fmt.Errorf("hydrating relation %s: %w", rel.ID, err)
	}
	return &types.HydratedRelation{Relation: *rel, From: from, To: to}, nil
}
