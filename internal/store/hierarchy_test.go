package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/wonder/internal/kv"
	"github.com/mesh-intelligence/wonder/pkg/types"
)

func TestCreateNodes(t *testing.T) {
	lib := setupLibrary(t)
	ctx := context.Background()
	p, roots := newProject(t, lib, "Tree")
	chars := roots[types.TypeCharacter]

	dir := newDir(t, lib, "Heroes", chars)
	assert.Equal(t, types.TypeCharacter, dir.DirectoryType)
	assert.Equal(t, p.ID, dir.ProjectID)
	assert.Equal(t, 0, dir.Order)

	leaf, doc := newLeaf(t, lib, "Alice", types.TypeCharacter, chars)
	assert.Equal(t, 1, leaf.Order)
	assert.Empty(t, leaf.DirectoryType)
	assert.Equal(t, "Alice", doc.Name)
	assert.Equal(t, leaf.ID, doc.HierarchyID)
	assert.JSONEq(t, `""`, string(doc.Content))

	_, ms := newLeaf(t, lib, "Chapter 1", types.TypeManuscript, roots[types.TypeManuscript])
	assert.Empty(t, ms.Content)

	assert.Equal(t, []string{"Heroes", "Alice"}, childNames(t, lib, chars.ID))

	tests := []struct {
		name    string
		create  func() error
		wantErr error
	}{
		{
			name: "leaf type differs from directory type",
			create: func() error {
				_, err := lib.Hierarchy.CreateLeaf(ctx, "Harbor", types.TypePlace, chars)
				return err
			},
			wantErr: types.ErrInvalidHierarchyType,
		},
		{
			name: "directory is not a leaf type",
			create: func() error {
				_, err := lib.Hierarchy.CreateLeaf(ctx, "Box", types.TypeDirectory, chars)
				return err
			},
			wantErr: types.ErrInvalidHierarchyType,
		},
		{
			name: "leaf parent",
			create: func() error {
				_, err := lib.Hierarchy.CreateLeaf(ctx, "Inner", types.TypeCharacter, leaf)
				return err
			},
			wantErr: types.ErrNotDirectory,
		},
		{
			name: "directory under leaf",
			create: func() error {
				_, err := lib.Hierarchy.CreateDirectory(ctx, "Inner", leaf)
				return err
			},
			wantErr: types.ErrNotDirectory,
		},
		{
			name: "missing parent",
			create: func() error {
				_, err := lib.Hierarchy.CreateDirectory(ctx, "Lost", &types.HierarchyNode{ID: "missing"})
				return err
			},
			wantErr: types.ErrNotFound,
		},
		{
			name: "blank name",
			create: func() error {
				_, err := lib.Hierarchy.CreateDirectory(ctx, " \t", chars)
				return err
			},
			wantErr: types.ErrInvalidName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.create(), tt.wantErr)
		})
	}

	// Failed creations leave nothing behind.
	assert.Equal(t, []string{"Heroes", "Alice"}, childNames(t, lib, chars.ID))
}

func TestGetTreeNestsChildren(t *testing.T) {
	lib := setupLibrary(t)
	ctx := context.Background()
	p, roots := newProject(t, lib, "Nested")
	places := roots[types.TypePlace]

	city := newDir(t, lib, "City", places)
	newLeaf(t, lib, "Harbor", types.TypePlace, city)
	newLeaf(t, lib, "Market", types.TypePlace, city)
	newLeaf(t, lib, "Forest", types.TypePlace, places)

	tree, err := lib.Hierarchy.GetTree(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, tree, 4)
	placeRoot := tree[2]
	require.Equal(t, places.ID, placeRoot.ID)
	require.Len(t, placeRoot.Children, 2)
	assert.Equal(t, "City", placeRoot.Children[0].Name)
	assert.Equal(t, "Forest", placeRoot.Children[1].Name)
	require.Len(t, placeRoot.Children[0].Children, 2)
	assert.Equal(t, "Harbor", placeRoot.Children[0].Children[0].Name)
	assert.Equal(t, "Market", placeRoot.Children[0].Children[1].Name)

	listed, err := lib.Hierarchy.ListByType(ctx, p.ID, types.TypePlace)
	require.NoError(t, err)
	assert.Len(t, listed, 3)

	got, err := lib.Hierarchy.GetNode(ctx, city.ID)
	require.NoError(t, err)
	assert.Equal(t, "City", got.Name)
	_, err = lib.Hierarchy.GetNode(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestRenameUpdatesDocument(t *testing.T) {
	lib := setupLibrary(t)
	ctx := context.Background()
	_, roots := newProject(t, lib, "Names")
	leaf, doc := newLeaf(t, lib, "Ep 1", types.TypeEpisode, roots[types.TypeEpisode])

	renamed, err := lib.Hierarchy.Rename(ctx, leaf, "The Storm")
	require.NoError(t, err)
	assert.Equal(t, "The Storm", renamed.Name)

	episodes, err := lib.Documents(types.TypeEpisode)
	require.NoError(t, err)
	got, err := episodes.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Storm", got.Name)

	dir, err := lib.Hierarchy.Rename(ctx, roots[types.TypeEpisode], "Events")
	require.NoError(t, err)
	assert.Equal(t, "Events", dir.Name)

	_, err = lib.Hierarchy.Rename(ctx, leaf, "")
	assert.ErrorIs(t, err, types.ErrInvalidName)
}

func TestRepositionWithinParent(t *testing.T) {
	lib := setupLibrary(t)
	ctx := context.Background()
	_, roots := newProject(t, lib, "Order")
	d := newDir(t, lib, "D", roots[types.TypeCharacter])
	c1, _ := newLeaf(t, lib, "C1", types.TypeCharacter, d)
	c2, _ := newLeaf(t, lib, "C2", types.TypeCharacter, d)

	moved, err := lib.Hierarchy.Reposition(ctx, c2, d.ID, c1.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, moved.Order)

	gotC1, err := lib.Hierarchy.GetNode(ctx, c1.ID)
	require.NoError(t, err)
	gotC2, err := lib.Hierarchy.GetNode(ctx, c2.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, gotC1.Order)
	assert.Equal(t, 0, gotC2.Order)

	c3, _ := newLeaf(t, lib, "C3", types.TypeCharacter, d)
	assert.Equal(t, []string{"C2", "C1", "C3"}, childNames(t, lib, d.ID))

	_, err = lib.Hierarchy.Reposition(ctx, c2, d.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"C1", "C3", "C2"}, childNames(t, lib, d.ID))

	_, err = lib.Hierarchy.Reposition(ctx, c3, d.ID, "not-a-sibling")
	require.NoError(t, err)
	assert.Equal(t, []string{"C1", "C2", "C3"}, childNames(t, lib, d.ID))

	_, err = lib.Hierarchy.Reposition(ctx, c2, d.ID, c2.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"C1", "C2", "C3"}, childNames(t, lib, d.ID))
}

func TestRepositionAcrossParents(t *testing.T) {
	lib := setupLibrary(t)
	ctx := context.Background()
	_, roots := newProject(t, lib, "Move")
	chars := roots[types.TypeCharacter]
	a := newDir(t, lib, "A", chars)
	b := newDir(t, lib, "B", chars)
	a1, _ := newLeaf(t, lib, "a1", types.TypeCharacter, a)
	newLeaf(t, lib, "a2", types.TypeCharacter, a)
	newLeaf(t, lib, "a3", types.TypeCharacter, a)
	b1, _ := newLeaf(t, lib, "b1", types.TypeCharacter, b)

	moved, err := lib.Hierarchy.Reposition(ctx, a1, b.ID, b1.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, moved.ParentID)

	assert.Equal(t, []string{"a2", "a3"}, childNames(t, lib, a.ID))
	assert.Equal(t, []string{"a1", "b1"}, childNames(t, lib, b.ID))

	// A directory moves with its subtree.
	_, err = lib.Hierarchy.Reposition(ctx, b, a.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, childNames(t, lib, chars.ID))
	assert.Equal(t, []string{"a2", "a3", "B"}, childNames(t, lib, a.ID))
	assert.Equal(t, []string{"a1", "b1"}, childNames(t, lib, b.ID))
}

func TestRepositionRejectsInvalidTargets(t *testing.T) {
	lib := setupLibrary(t)
	ctx := context.Background()
	_, roots := newProject(t, lib, "Guards")
	_, otherRoots := newProject(t, lib, "Other")
	chars := roots[types.TypeCharacter]
	outer := newDir(t, lib, "Outer", chars)
	inner := newDir(t, lib, "Inner", outer)
	leaf, _ := newLeaf(t, lib, "Alice", types.TypeCharacter, inner)

	tests := []struct {
		name    string
		node    *types.HierarchyNode
		target  string
		wantErr error
	}{
		{name: "into itself", node: outer, target: outer.ID, wantErr: types.ErrCycle},
		{name: "into a descendant", node: outer, target: inner.ID, wantErr: types.ErrCycle},
		{name: "into another directory type", node: leaf, target: roots[types.TypePlace].ID, wantErr: types.ErrInvalidHierarchyType},
		{name: "into another project", node: leaf, target: otherRoots[types.TypeCharacter].ID, wantErr: types.ErrInvalidMove},
		{name: "under a leaf", node: inner, target: leaf.ID, wantErr: types.ErrNotDirectory},
		{name: "missing target", node: leaf, target: "missing", wantErr: types.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lib.Hierarchy.Reposition(ctx, tt.node, tt.target, "")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Equal(t, []string{"Outer"}, childNames(t, lib, chars.ID))
	assert.Equal(t, []string{"Inner"}, childNames(t, lib, outer.ID))
	assert.Equal(t, []string{"Alice"}, childNames(t, lib, inner.ID))
}

func TestDeleteLeaf(t *testing.T) {
	lib := setupLibrary(t)
	ctx := context.Background()
	_, roots := newProject(t, lib, "Delete")
	places := roots[types.TypePlace]
	newLeaf(t, lib, "P0", types.TypePlace, places)
	p1, doc := newLeaf(t, lib, "P1", types.TypePlace, places)
	newLeaf(t, lib, "P2", types.TypePlace, places)

	require.NoError(t, lib.Hierarchy.DeleteLeaf(ctx, p1))
	assert.Equal(t, []string{"P0", "P2"}, childNames(t, lib, places.ID))

	docs, err := lib.Documents(types.TypePlace)
	require.NoError(t, err)
	_, err = docs.GetByHierarchy(ctx, p1)
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = docs.GetByID(ctx, doc.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	assert.ErrorIs(t, lib.Hierarchy.DeleteLeaf(ctx, p1), types.ErrNotFound)
	assert.ErrorIs(t, lib.Hierarchy.DeleteLeaf(ctx, places), types.ErrInvalidHierarchyType)
}

func TestDeleteDirectoryCascades(t *testing.T) {
	lib := setupLibrary(t)
	ctx := context.Background()
	p, roots := newProject(t, lib, "Cascade")
	chars := roots[types.TypeCharacter]

	keep := newDir(t, lib, "Keep", chars)
	doomed := newDir(t, lib, "Doomed", chars)
	newDir(t, lib, "After", chars)
	nested := newDir(t, lib, "Nested", doomed)
	_, a := newLeaf(t, lib, "A", types.TypeCharacter, doomed)
	_, b := newLeaf(t, lib, "B", types.TypeCharacter, nested)
	_, c := newLeaf(t, lib, "C", types.TypeCharacter, keep)
	_, ep := newLeaf(t, lib, "E", types.TypeEpisode, roots[types.TypeEpisode])

	_, err := lib.Join.AddRelation(ctx, types.RelationCharacterCharacter, c, b, "sibling", "")
	require.NoError(t, err)
	_, err = lib.Join.AddRelation(ctx, types.RelationEpisodeCharacter, ep, a, "appears", "")
	require.NoError(t, err)

	require.NoError(t, lib.Hierarchy.DeleteDirectory(ctx, doomed))

	assert.Equal(t, []string{"Keep", "After"}, childNames(t, lib, chars.ID))
	for _, id := range []string{doomed.ID, nested.ID} {
		_, err := lib.Hierarchy.GetNode(ctx, id)
		assert.ErrorIs(t, err, types.ErrNotFound)
	}
	docs, err := lib.Documents(types.TypeCharacter)
	require.NoError(t, err)
	for _, d := range []*types.Document{a, b} {
		_, err := docs.GetByID(ctx, d.ID)
		assert.ErrorIs(t, err, types.ErrNotFound)
	}

	rels, err := lib.Join.RelationsOf(ctx, types.RelationCharacterCharacter, c.ID)
	require.NoError(t, err)
	assert.Empty(t, rels)
	rels, err = lib.Join.RelationsOf(ctx, types.RelationEpisodeCharacter, ep.ID)
	require.NoError(t, err)
	assert.Empty(t, rels)

	listed, err := lib.Hierarchy.ListByType(ctx, p.ID, types.TypeCharacter)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "C", listed[0].Name)

	err = lib.Hierarchy.DeleteDirectory(ctx, listed[0])
	assert.ErrorIs(t, err, types.ErrNotDirectory)
}

func TestClearDirectory(t *testing.T) {
	lib := setupLibrary(t)
	ctx := context.Background()
	_, roots := newProject(t, lib, "Clear")
	ms := roots[types.TypeManuscript]
	part := newDir(t, lib, "Part I", ms)
	newLeaf(t, lib, "Ch 1", types.TypeManuscript, part)
	newLeaf(t, lib, "Ch 2", types.TypeManuscript, ms)

	require.NoError(t, lib.Hierarchy.ClearDirectory(ctx, ms))
	assert.Empty(t, childNames(t, lib, ms.ID))

	got, err := lib.Hierarchy.GetNode(ctx, ms.ID)
	require.NoError(t, err)
	assert.Equal(t, ms.Name, got.Name)

	newLeaf(t, lib, "Fresh", types.TypeManuscript, ms)
	assert.Equal(t, []string{"Fresh"}, childNames(t, lib, ms.ID))
}

func TestOrdersStayContiguous(t *testing.T) {
	lib := setupLibrary(t)
	ctx := context.Background()
	_, roots := newProject(t, lib, "Shuffle")
	eps := roots[types.TypeEpisode]
	x := newDir(t, lib, "X", eps)
	y := newDir(t, lib, "Y", eps)

	var leaves []*types.HierarchyNode
	for _, name := range []string{"e0", "e1", "e2", "e3", "e4", "e5"} {
		n, _ := newLeaf(t, lib, name, types.TypeEpisode, x)
		leaves = append(leaves, n)
	}

	steps := []func() error{
		func() error { _, err := lib.Hierarchy.Reposition(ctx, leaves[0], y.ID, ""); return err },
		func() error { _, err := lib.Hierarchy.Reposition(ctx, leaves[5], x.ID, leaves[1].ID); return err },
		func() error { return lib.Hierarchy.DeleteLeaf(ctx, leaves[2]) },
		func() error { _, err := lib.Hierarchy.Reposition(ctx, leaves[3], y.ID, leaves[0].ID); return err },
		func() error { _, err := lib.Hierarchy.CreateLeaf(ctx, "e6", types.TypeEpisode, x); return err },
		func() error { _, err := lib.Hierarchy.Reposition(ctx, y, x.ID, leaves[4].ID); return err },
		func() error { return lib.Hierarchy.DeleteLeaf(ctx, leaves[1]) },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		childNames(t, lib, eps.ID)
		childNames(t, lib, x.ID)
		childNames(t, lib, y.ID)
	}

	assert.Equal(t, []string{"e5", "Y", "e4", "e6"}, childNames(t, lib, x.ID))
	assert.Equal(t, []string{"e3", "e0"}, childNames(t, lib, y.ID))
	assert.Equal(t, []string{"X"}, childNames(t, lib, eps.ID))
}

func TestGetTreeSkipsOrphans(t *testing.T) {
	lib := setupLibrary(t)
	p, roots := newProject(t, lib, "Orphans")
	newLeaf(t, lib, "Alice", types.TypeCharacter, roots[types.TypeCharacter])

	rawWrite(t, lib, []string{HierarchyStoreName}, func(tx *kv.Tx) error {
		_, err := tx.Add(HierarchyStoreName, &types.HierarchyNode{
			ID:            "orphan",
			ProjectID:     p.ID,
			ParentID:      "gone",
			Name:          "Lost",
			Type:          types.TypeDirectory,
			DirectoryType: types.TypeCharacter,
		})
		return err
	})

	tree, err := lib.Hierarchy.GetTree(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, tree, 4)
	for _, r := range tree {
		assert.Empty(t, r.ParentID)
		assert.NotEqual(t, "Lost", r.Name)
	}
	assert.Equal(t, []string{"Alice"}, childNames(t, lib, roots[types.TypeCharacter].ID))
}

func TestFailedCascadeChangesNothing(t *testing.T) {
	lib := setupLibrary(t)
	ctx := context.Background()
	p, roots := newProject(t, lib, "Halfway")
	chars := roots[types.TypeCharacter]

	_, before := newLeaf(t, lib, "Before", types.TypeCharacter, chars)
	cast := newDir(t, lib, "Cast", chars)
	newLeaf(t, lib, "After", types.TypeCharacter, chars)
	_, alice := newLeaf(t, lib, "Alice", types.TypeCharacter, cast)

	cc, err := lib.Relations(types.RelationCharacterCharacter)
	require.NoError(t, err)
	rel, err := cc.Add(ctx, alice, before, "sister", "")
	require.NoError(t, err)

	// A node of an unknown type after Alice makes the cascade fail once
	// Alice, her document and her relation are already gone.
	rawWrite(t, lib, []string{HierarchyStoreName}, func(tx *kv.Tx) error {
		_, err := tx.Add(HierarchyStoreName, &types.HierarchyNode{
			ID:        "dragon",
			ProjectID: p.ID,
			ParentID:  cast.ID,
			Name:      "Dragon",
			Type:      types.HierarchyType("dragon"),
			Order:     1,
		})
		return err
	})

	tests := []struct {
		name string
		run  func() error
	}{
		{name: "delete directory", run: func() error { return lib.Hierarchy.DeleteDirectory(ctx, cast) }},
		{name: "clear directory", run: func() error { return lib.Hierarchy.ClearDirectory(ctx, cast) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.ErrorIs(t, err, types.ErrInvalidHierarchyType)

			assert.Equal(t, []string{"Before", "Cast", "After"}, childNames(t, lib, chars.ID))
			assert.Equal(t, []string{"Alice", "Dragon"}, childNames(t, lib, cast.ID))

			docs, err := lib.Documents(types.TypeCharacter)
			require.NoError(t, err)
			got, err := docs.GetByID(ctx, alice.ID)
			require.NoError(t, err)
			assert.Equal(t, "Alice", got.Name)

			rels, err := cc.GetByEndpoint(ctx, before.ID)
			require.NoError(t, err)
			assert.Equal(t, []string{rel.ID}, relationIDs(rels))
		})
	}
}

func TestRenameWithoutDocumentRollsBack(t *testing.T) {
	lib := setupLibrary(t)
	ctx := context.Background()
	_, roots := newProject(t, lib, "Rollback")
	node, doc := newLeaf(t, lib, "Harbor", types.TypePlace, roots[types.TypePlace])

	rawWrite(t, lib, []string{PlaceStore}, func(tx *kv.Tx) error {
		return tx.Delete(PlaceStore, doc.ID)
	})

	// The node is written before its document is looked up.
	_, err := lib.Hierarchy.Rename(ctx, node, "Port")
	require.ErrorIs(t, err, types.ErrNotFound)

	got, err := lib.Hierarchy.GetNode(ctx, node.ID)
	require.NoError(t, err)
	assert.Equal(t, "Harbor", got.Name)

	// Deleting the broken leaf is still allowed.
	require.NoError(t, lib.Hierarchy.DeleteLeaf(ctx, node))
	assert.Empty(t, childNames(t, lib, roots[types.TypePlace].ID))
}
