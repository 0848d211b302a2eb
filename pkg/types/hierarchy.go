package types

import "fmt"

// HierarchyType classifies a hierarchy node. Directories group nodes; every
// other type is a leaf backed by a document of the same kind.
type HierarchyType string

// Hierarchy node types.
const (
	TypeDirectory  HierarchyType = "directory"
	TypeManuscript HierarchyType = "manuscript"
	TypeCharacter  HierarchyType = "character"
	TypePlace      HierarchyType = "place"
	TypeEpisode    HierarchyType = "episode"
)

// DocumentKinds lists the leaf types in the order project roots are created.
var DocumentKinds = []HierarchyType{TypeManuscript, TypeCharacter, TypePlace, TypeEpisode}

// IsLeaf reports whether t names a document kind.
func (t HierarchyType) IsLeaf() bool {
	switch t {
	case TypeManuscript, TypeCharacter, TypePlace, TypeEpisode:
		return true
	}
	return false
}

// ParseHierarchyType converts user input into a HierarchyType.
func ParseHierarchyType(s string) (HierarchyType, error) {
	t := HierarchyType(s)
	if t == TypeDirectory || t.IsLeaf() {
		return t, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrInvalidHierarchyType)
}

// HierarchyNode is one persisted entry of a project's tree. Root nodes have an
// empty ParentID. Siblings carry orders 0..n-1. Directories carry the
// DirectoryType shared by every node beneath them.
type HierarchyNode struct {
	ID            string        `json:"id"`
	ProjectID     string        `json:"projectId"`
	ParentID      string        `json:"parentId"`
	Name          string        `json:"name"`
	Type          HierarchyType `json:"type"`
	Order         int           `json:"order"`
	DirectoryType HierarchyType `json:"directoryType,omitempty"`
}

// IsDirectory reports whether the node may have children.
func (n *HierarchyNode) IsDirectory() bool { return n.Type == TypeDirectory }

// Scope is the document kind the node belongs to: its DirectoryType for a
// directory and its Type for a leaf.
func (n *HierarchyNode) Scope() HierarchyType {
	if n.IsDirectory() {
		return n.DirectoryType
	}
	return n.Type
}

// TreeNode is a HierarchyNode with its children attached. Trees are rebuilt
// on every read and never persisted.
type TreeNode struct {
	HierarchyNode
	Children []*TreeNode `json:"children,omitempty"`
}
