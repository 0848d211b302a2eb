package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/wonder/internal/kv"
	"github.com/mesh-intelligence/wonder/pkg/types"
)

func TestExportImportRoundTrip(t *testing.T) {
	lib := setupLibrary(t)
	ctx := context.Background()
	p, roots := newProject(t, lib, "Archive")
	_, keep := newProject(t, lib, "Untouched")

	settings, err := lib.Settings.GetByProject(ctx, p.ID)
	require.NoError(t, err)
	settings.ContentFont = types.FontNotoSerif
	settings.ContentWidth = 720
	_, err = lib.Settings.Update(ctx, settings)
	require.NoError(t, err)

	part := newDir(t, lib, "Part I", roots[types.TypeManuscript])
	_, ch := newLeaf(t, lib, "Chapter 1", types.TypeManuscript, part)
	ch.SetText("It was a dark night.")
	docs, err := lib.Documents(types.TypeManuscript)
	require.NoError(t, err)
	_, err = docs.UpdateContent(ctx, ch)
	require.NoError(t, err)

	_, alice := newLeaf(t, lib, "Alice", types.TypeCharacter, roots[types.TypeCharacter])
	_, bob := newLeaf(t, lib, "Bob", types.TypeCharacter, roots[types.TypeCharacter])
	_, harbor := newLeaf(t, lib, "Harbor", types.TypePlace, roots[types.TypePlace])
	cc, err := lib.Join.AddRelation(ctx, types.RelationCharacterCharacter, alice, bob, "friend", "")
	require.NoError(t, err)
	_, err = lib.Join.AddRelation(ctx, types.RelationCharacterPlace, alice, harbor, "lives", "")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "archive.jsonl")
	n, err := lib.ExportProject(ctx, p.ID, path)
	require.NoError(t, err)
	// project, settings, 4 roots + 1 dir + 4 leaves, 4 documents, 2 relations
	assert.Equal(t, 16, n)

	require.NoError(t, lib.Projects.Delete(ctx, p))
	_, err = lib.Projects.Get(ctx, p.ID)
	require.ErrorIs(t, err, types.ErrNotFound)

	imported, err := lib.ImportProject(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, p.ID, imported.ID)
	assert.Equal(t, "Archive", imported.Name)

	gotSettings, err := lib.Settings.GetByProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.FontNotoSerif, gotSettings.ContentFont)
	assert.Equal(t, 720, gotSettings.ContentWidth)

	assert.Equal(t, []string{"Part I"}, childNames(t, lib, roots[types.TypeManuscript].ID))
	assert.Equal(t, []string{"Alice", "Bob"}, childNames(t, lib, roots[types.TypeCharacter].ID))

	gotCh, err := docs.GetByID(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, "It was a dark night.", gotCh.Text())

	rels, err := lib.Join.RelationsOf(ctx, types.RelationCharacterCharacter, bob.ID)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, cc.ID, rels[0].ID)
	rels, err = lib.Join.RelationsOf(ctx, types.RelationCharacterPlace, harbor.ID)
	require.NoError(t, err)
	assert.Len(t, rels, 1)

	// The other project was never touched.
	assert.Len(t, childNames(t, lib, keep[types.TypeCharacter].ID), 0)

	_, err = lib.ImportProject(ctx, path)
	assert.ErrorIs(t, err, types.ErrConstraint)
}

func TestExportSkipsRelationsLeavingProject(t *testing.T) {
	lib := setupLibrary(t)
	ctx := context.Background()
	a, aRoots := newProject(t, lib, "A")
	_, bRoots := newProject(t, lib, "B")
	_, alice := newLeaf(t, lib, "Alice", types.TypeCharacter, aRoots[types.TypeCharacter])
	_, bob := newLeaf(t, lib, "Bob", types.TypeCharacter, bRoots[types.TypeCharacter])

	rawWrite(t, lib, []string{CharacterByCharacterStore}, func(tx *kv.Tx) error {
		_, err := tx.Add(CharacterByCharacterStore, map[string]string{
			"id":              "stray",
			"fromCharacterId": alice.ID,
			"toCharacterId":   bob.ID,
		})
		return err
	})

	path := filepath.Join(t.TempDir(), "a.jsonl")
	n, err := lib.ExportProject(ctx, a.ID, path)
	require.NoError(t, err)
	// project, settings, 4 roots, 1 leaf, 1 document
	assert.Equal(t, 8, n)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "stray")

	fresh := setupLibrary(t)
	_, err = fresh.ImportProject(ctx, path)
	require.NoError(t, err)
	rels, err := fresh.Join.RelationsOf(ctx, types.RelationCharacterCharacter, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestImportRejectsForeignRelations(t *testing.T) {
	lib := setupLibrary(t)
	ctx := context.Background()
	a, aRoots := newProject(t, lib, "A")
	_, bRoots := newProject(t, lib, "B")
	_, alice := newLeaf(t, lib, "Alice", types.TypeCharacter, aRoots[types.TypeCharacter])
	_, bob := newLeaf(t, lib, "Bob", types.TypeCharacter, bRoots[types.TypeCharacter])

	dir := t.TempDir()
	archive := filepath.Join(dir, "a.jsonl")
	_, err := lib.ExportProject(ctx, a.ID, archive)
	require.NoError(t, err)
	require.NoError(t, lib.Projects.Delete(ctx, a))
	exported, err := os.ReadFile(archive)
	require.NoError(t, err)

	relationLine := func(to string) string {
		return `{"store":"` + CharacterByCharacterStore + `","record":{"id":"r1","fromCharacterId":"` +
			alice.ID + `","toCharacterId":"` + to + `","relation":"","memo":""}}` + "\n"
	}
	tests := []struct {
		name    string
		to      string
		wantErr error
	}{
		{name: "endpoint in another project", to: bob.ID, wantErr: types.ErrCrossProject},
		{name: "missing endpoint", to: "ghost", wantErr: types.ErrNotFound},
	}
	cc, err := lib.Relations(types.RelationCharacterCharacter)
	require.NoError(t, err)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "-")+".jsonl")
			require.NoError(t, os.WriteFile(path, append(exported, relationLine(tt.to)...), 0o644))

			_, err := lib.ImportProject(ctx, path)
			require.ErrorIs(t, err, tt.wantErr)

			_, err = lib.Projects.Get(ctx, a.ID)
			assert.ErrorIs(t, err, types.ErrNotFound)
			rels, err := cc.GetByEndpoint(ctx, bob.ID)
			require.NoError(t, err)
			assert.Empty(t, rels)
		})
	}

	// The untouched archive still imports.
	_, err = lib.ImportProject(ctx, archive)
	require.NoError(t, err)
}

func TestExportMissingProject(t *testing.T) {
	lib := setupLibrary(t)
	path := filepath.Join(t.TempDir(), "archive.jsonl")

	_, err := lib.ExportProject(context.Background(), "missing", path)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.NoFileExists(t, path)
}

func TestImportRejectsBadArchives(t *testing.T) {
	lib := setupLibrary(t)
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "no project line",
			content: `{"store":"Place","record":{"id":"p1","hierarchyId":"h1","name":"Harbor"}}` + "\n",
			wantErr: types.ErrNotFound,
		},
		{
			name:    "unknown store",
			content: `{"store":"Dragons","record":{"id":"d1"}}` + "\n",
			wantErr: types.ErrStoreNotInScope,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "-")+".jsonl")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := lib.ImportProject(context.Background(), path)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Nothing from the failed imports was kept.
	projects, err := lib.Projects.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, projects)
	places, err := lib.Documents(types.TypePlace)
	require.NoError(t, err)
	_, err = places.GetByID(context.Background(), "p1")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestReadJSONL(t *testing.T) {
	recs, err := readJSONL(strings.NewReader("{\"a\":1}\n\n[2]\n"))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.JSONEq(t, `[2]`, string(recs[1]))

	_, err = readJSONL(strings.NewReader("{\"a\":1}\n{broken\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestWriteJSONLReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	require.NoError(t, writeJSONL(path, nil))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, b)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
