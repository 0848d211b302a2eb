package store

import (
	"fmt"

	"github.com/mesh-intelligence/wonder/pkg/types"
)

// SchemaVersion is the current version of the Wonder schema.
const SchemaVersion = 1

// Store names.
const (
	ProjectStoreName     = "Project"
	ProjectSettingsStore = "ProjectSettings"
	HierarchyStoreName   = "Hierarchy"
	ManuscriptStore      = "Manuscript"
	CharacterStore       = "Character"
	PlaceStore           = "Place"
	EpisodeStore         = "Episode"

	CharacterByCharacterStore = "CharacterByCharacterRelation"
	CharacterByPlaceStore     = "CharacterByPlaceRelation"
	EpisodeByCharacterStore   = "EpisodeByCharacterRelation"
	EpisodeByPlaceStore       = "EpisodeByPlaceRelation"
)

// Index names.
const (
	indexProjectParent = "projectId, parentId"
	indexProjectType   = "projectId, type"
	indexParent        = "parentId"
	indexProject       = "projectId"
	indexHierarchy     = "hierarchyId"
)

// documentStores maps each leaf type to the store holding its documents.
var documentStores = map[types.HierarchyType]string{
	types.TypeManuscript: ManuscriptStore,
	types.TypeCharacter:  CharacterStore,
	types.TypePlace:      PlaceStore,
	types.TypeEpisode:    EpisodeStore,
}

// RelationSpec describes one relation store: which document kinds it links
// and the record fields holding each endpoint id.
type RelationSpec struct {
	Kind      types.RelationKind
	Store     string
	FromKind  types.HierarchyType
	ToKind    types.HierarchyType
	FromField string
	ToField   string
}

// RelationSpecs lists the relation stores.
var RelationSpecs = []RelationSpec{
	{
		Kind:      types.RelationCharacterCharacter,
		Store:     CharacterByCharacterStore,
		FromKind:  types.TypeCharacter,
		ToKind:    types.TypeCharacter,
		FromField: "fromCharacterId",
		ToField:   "toCharacterId",
	},
	{
		Kind:      types.RelationCharacterPlace,
		Store:     CharacterByPlaceStore,
		FromKind:  types.TypeCharacter,
		ToKind:    types.TypePlace,
		FromField: "characterId",
		ToField:   "placeId",
	},
	{
		Kind:      types.RelationEpisodeCharacter,
		Store:     EpisodeByCharacterStore,
		FromKind:  types.TypeEpisode,
		ToKind:    types.TypeCharacter,
		FromField: "episodeId",
		ToField:   "characterId",
	},
	{
		Kind:      types.RelationEpisodePlace,
		Store:     EpisodeByPlaceStore,
		FromKind:  types.TypeEpisode,
		ToKind:    types.TypePlace,
		FromField: "episodeId",
		ToField:   "placeId",
	},
}

// LookupRelation returns the spec of kind.
func LookupRelation(kind types.RelationKind) (RelationSpec, error) {
	for _, s := range RelationSpecs {
		if s.Kind == kind {
			return s, nil
		}
	}
	return RelationSpec{}, fmt.Errorf("%q: %w", kind, types.ErrInvalidRelationType)
}

// RelationBetween returns the spec linking documents of kind from to
// documents of kind to.
func RelationBetween(from, to types.HierarchyType) (RelationSpec, error) {
	for _, s := range RelationSpecs {
		if s.FromKind == from && s.ToKind == to {
			return s, nil
		}
	}
	return RelationSpec{}, fmt.Errorf("%s to %s: %w", from, to, types.ErrInvalidRelationType)
}

// involves reports whether documents of kind k appear as an endpoint.
func (s RelationSpec) involves(k types.HierarchyType) bool {
	return s.FromKind == k || s.ToKind == k
}

// Schema returns the Wonder database schema.
func Schema() types.Schema {
	stores := []types.StoreDef{
		{Name: ProjectStoreName, KeyPath: types.Path("id")},
		{
			Name:    ProjectSettingsStore,
			KeyPath: types.Path("id"),
			Indices: []types.IndexDef{{Name: indexProject, KeyPath: types.Path("projectId")}},
		},
		{
			Name:    HierarchyStoreName,
			KeyPath: types.Path("id"),
			Indices: []types.IndexDef{
				{Name: indexProjectParent, KeyPath: types.Compound("projectId", "parentId")},
				{Name: indexProjectType, KeyPath: types.Compound("projectId", "type")},
				{Name: indexParent, KeyPath: types.Path("parentId")},
				{Name: indexProject, KeyPath: types.Path("projectId")},
			},
		},
	}
	for _, kind := range types.DocumentKinds {
		stores = append(stores, types.StoreDef{
			Name:    documentStores[kind],
			KeyPath: types.Path("id"),
			Indices: []types.IndexDef{{Name: indexHierarchy, KeyPath: types.Path("hierarchyId"), Unique: true}},
		})
	}
	for _, rs := range RelationSpecs {
		idx := []types.IndexDef{{Name: rs.FromField, KeyPath: types.Path(rs.FromField)}}
		if rs.ToField != rs.FromField {
			idx = append(idx, types.IndexDef{Name: rs.ToField, KeyPath: types.Path(rs.ToField)})
		}
		stores = append(stores, types.StoreDef{Name: rs.Store, KeyPath: types.Path("id"), Indices: idx})
	}
	return types.Schema{Name: types.DefaultDatabaseName, Version: SchemaVersion, Stores: stores}
}

// treeStores is the scope of operations that may cascade through every
// document and relation of a project.
func treeStores() []string {
	names := []string{HierarchyStoreName}
	for _, kind := range types.DocumentKinds {
		names = append(names, documentStores[kind])
	}
	for _, rs := range RelationSpecs {
		names = append(names, rs.Store)
	}
	return names
}

// allStores is the scope of project-level operations.
func allStores() []string {
	return append([]string{ProjectStoreName, ProjectSettingsStore}, treeStores()...)
}
