package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/wonder/pkg/types"
)

func TestProjectCreate(t *testing.T) {
	lib := setupLibrary(t)
	ctx := context.Background()

	p, err := lib.Projects.Create(ctx, "  Moonlit Harbor  ")
	require.NoError(t, err)
	assert.Equal(t, "Moonlit Harbor", p.Name)
	assert.Contains(t, types.ProjectThemes, p.Theme)
	assert.NotEmpty(t, p.ID)

	tree, err := lib.Hierarchy.GetTree(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, tree, 4)
	for i, kind := range types.DocumentKinds {
		root := tree[i]
		assert.Equal(t, i, root.Order)
		assert.Equal(t, types.TypeDirectory, root.Type)
		assert.Equal(t, kind, root.DirectoryType)
		assert.Equal(t, "", root.ParentID)
		assert.Empty(t, root.Children)
	}

	settings, err := lib.Settings.GetByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.FontNotoSans, settings.ContentFont)
	assert.Equal(t, types.DefaultContentWidth, settings.ContentWidth)
	assert.Equal(t, types.ThemeDark, settings.Theme)

	_, err = lib.Projects.Create(ctx, "   ")
	assert.ErrorIs(t, err, types.ErrInvalidName)
}

func TestProjectListAndRename(t *testing.T) {
	lib := setupLibrary(t)
	ctx := context.Background()

	first, err := lib.Projects.Create(ctx, "First")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = lib.Projects.Create(ctx, "Second")
	require.NoError(t, err)

	list, err := lib.Projects.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Second", list[0].Name)

	time.Sleep(5 * time.Millisecond)
	renamed, err := lib.Projects.Rename(ctx, first, "First, revised")
	require.NoError(t, err)
	assert.True(t, renamed.LastModified.After(first.LastModified))

	list, err = lib.Projects.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "First, revised", list[0].Name)

	_, err = lib.Projects.Rename(ctx, &types.Project{ID: "missing"}, "x")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestProjectDeleteCascades(t *testing.T) {
	lib := setupLibrary(t)
	ctx := context.Background()

	doomed, roots := newProject(t, lib, "Doomed")
	kept, keptRoots := newProject(t, lib, "Kept")

	sub := newDir(t, lib, "Villains", roots[types.TypeCharacter])
	_, alice := newLeaf(t, lib, "Alice", types.TypeCharacter, roots[types.TypeCharacter])
	_, bob := newLeaf(t, lib, "Bob", types.TypeCharacter, sub)
	_, harbor := newLeaf(t, lib, "Harbor", types.TypePlace, roots[types.TypePlace])
	_, _ = newLeaf(t, lib, "Chapter 1", types.TypeManuscript, roots[types.TypeManuscript])
	_, err := lib.Join.AddRelation(ctx, types.RelationCharacterCharacter, alice, bob, "rival", "")
	require.NoError(t, err)
	_, err = lib.Join.AddRelation(ctx, types.RelationCharacterPlace, bob, harbor, "lives", "")
	require.NoError(t, err)

	_, keptChar := newLeaf(t, lib, "Carol", types.TypeCharacter, keptRoots[types.TypeCharacter])

	require.NoError(t, lib.Projects.Delete(ctx, doomed))

	_, err = lib.Projects.Get(ctx, doomed.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = lib.Settings.GetByProject(ctx, doomed.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	tree, err := lib.Hierarchy.GetTree(ctx, doomed.ID)
	require.NoError(t, err)
	assert.Empty(t, tree)

	chars, err := lib.Documents(types.TypeCharacter)
	require.NoError(t, err)
	_, err = chars.GetByID(ctx, alice.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	for _, kind := range types.RelationKinds {
		rs, err := lib.Relations(kind)
		require.NoError(t, err)
		for _, id := range []string{alice.ID, bob.ID, harbor.ID} {
			rels, err := rs.GetByEndpoint(ctx, id)
			require.NoError(t, err)
			assert.Empty(t, rels, "%s relations of %s", kind, id)
		}
	}

	got, err := chars.GetByID(ctx, keptChar.ID)
	require.NoError(t, err)
	assert.Equal(t, "Carol", got.Name)
	keptTree, err := lib.Hierarchy.GetTree(ctx, kept.ID)
	require.NoError(t, err)
	assert.Len(t, keptTree, 4)

	assert.ErrorIs(t, lib.Projects.Delete(ctx, doomed), types.ErrNotFound)
}

func TestSettingsUpdate(t *testing.T) {
	lib := setupLibrary(t)
	ctx := context.Background()
	p, _ := newProject(t, lib, "Styled")

	s, err := lib.Settings.GetByProject(ctx, p.ID)
	require.NoError(t, err)

	s.ContentFont = types.FontNanumMyeongjo
	s.ContentWidth = 720
	s.Theme = types.ThemeWhite
	s.ProjectID = "elsewhere"
	updated, err := lib.Settings.Update(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, p.ID, updated.ProjectID)

	got, err := lib.Settings.GetByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.FontNanumMyeongjo, got.ContentFont)
	assert.Equal(t, 720, got.ContentWidth)
	assert.Equal(t, types.ThemeWhite, got.Theme)

	got.Theme = "neon"
	_, err = lib.Settings.Update(ctx, got)
	assert.ErrorIs(t, err, types.ErrInvalidSettings)

	bad := types.DefaultSettings("missing", p.ID)
	_, err = lib.Settings.Update(ctx, bad)
	assert.ErrorIs(t, err, types.ErrNotFound)
}
