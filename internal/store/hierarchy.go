package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/wonder/internal/kv"
	"github.com/mesh-intelligence/wonder/pkg/types"
)

// rootDirectories are the directories every project starts with.
var rootDirectories = []struct {
	name string
	kind types.HierarchyType
}{
	{"Manuscripts", types.TypeManuscript},
	{"Characters", types.TypeCharacter},
	{"Places", types.TypePlace},
	{"Episodes", types.TypeEpisode},
}

// HierarchyStore persists project trees as flat parent-linked nodes.
//
// Parents, children and siblings are always re-read inside the operation's
// transaction; the nodes passed in only identify what to act on.
type HierarchyStore struct {
	db        *kv.DB
	documents map[types.HierarchyType]*DocumentStore
	log       logrus.FieldLogger
}

// GetTree returns the project's root nodes with their descendants attached,
// every level sorted by order.
func (s *HierarchyStore) GetTree(ctx context.Context, projectID string) ([]*types.TreeNode, error) {
	var nodes []types.HierarchyNode
	err := s.db.View(ctx, []string{HierarchyStoreName}, func(tx *kv.Tx) error {
		var err error
		nodes, err = kv.GetAllByIndex[types.HierarchyNode](tx, HierarchyStoreName, indexProject, kv.Only(projectID))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading tree of project %s: %w", projectID, err)
	}
	roots, orphans := buildTree(nodes)
	for _, id := range orphans {
		s.log.WithFields(logrus.Fields{"project": projectID, "node": id}).Warn("node has no parent in project, skipped")
	}
	return roots, nil
}

// buildTree links flat nodes into trees. Only nodes without a parent id are
// roots; nodes whose parent is missing are left out and their ids returned.
func buildTree(nodes []types.HierarchyNode) (roots []*types.TreeNode, orphans []string) {
	byID := make(map[string]*types.TreeNode, len(nodes))
	for i := range nodes {
		byID[nodes[i].ID] = &types.TreeNode{HierarchyNode: nodes[i]}
	}
	for i := range nodes {
		n := byID[nodes[i].ID]
		if n.ParentID == "" {
			roots = append(roots, n)
			continue
		}
		parent, ok := byID[n.ParentID]
		if !ok {
			orphans = append(orphans, n.ID)
			continue
		}
		parent.Children = append(parent.Children, n)
	}
	sortTree(roots)
	return roots, orphans
}

func sortTree(nodes []*types.TreeNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Order != nodes[j].Order {
			return nodes[i].Order < nodes[j].Order
		}
		return nodes[i].ID < nodes[j].ID
	})
	for _, n := range nodes {
		sortTree(n.Children)
	}
}

// GetNode returns a node by id.
func (s *HierarchyStore) GetNode(ctx context.Context, id string) (*types.HierarchyNode, error) {
	var node *types.HierarchyNode
	err := s.db.View(ctx, []string{HierarchyStoreName}, func(tx *kv.Tx) error {
		var err error
		node, err = getNode(tx, id)
		return err
	})
	return node, err
}

// ListByType returns every node of a type in the project.
func (s *HierarchyStore) ListByType(ctx context.Context, projectID string, t types.HierarchyType) ([]*types.HierarchyNode, error) {
	var nodes []*types.HierarchyNode
	err := s.db.View(ctx, []string{HierarchyStoreName}, func(tx *kv.Tx) error {
		var err error
		nodes, err = listByType(tx, projectID, t)
		return err
	})
	return nodes, err
}

// Children returns the children of a node sorted by order.
func (s *HierarchyStore) Children(ctx context.Context, parentID string) ([]*types.HierarchyNode, error) {
	if parentID == "" {
		return nil, fmt.Errorf("listing children: empty parent id: %w", types.ErrNotFound)
	}
	var nodes []types.HierarchyNode
	err := s.db.View(ctx, []string{HierarchyStoreName}, func(tx *kv.Tx) error {
		var err error
		nodes, err = kv.GetAllByIndex[types.HierarchyNode](tx, HierarchyStoreName, indexParent, kv.Only(parentID))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing children of %s: %w", parentID, err)
	}
	return sortByOrder(pointers(nodes)), nil
}

// CreateDirectory adds a directory as the last child of parent. The new
// directory inherits the parent's project and directory type.
func (s *HierarchyStore) CreateDirectory(ctx context.Context, name string, parent *types.HierarchyNode) (*types.HierarchyNode, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	var node *types.HierarchyNode
	err = s.db.Update(ctx, []string{HierarchyStoreName}, func(tx *kv.Tx) error {
		p, siblings, err := directoryWithChildren(tx, parent.ID)
		if err != nil {
			return err
		}
		node = &types.HierarchyNode{
			ID:            generateID(),
			ProjectID:     p.ProjectID,
			ParentID:      p.ID,
			Name:          name,
			Type:          types.TypeDirectory,
			Order:         len(siblings),
			DirectoryType: p.DirectoryType,
		}
		if _, err := tx.Add(HierarchyStoreName, node); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"node": node.ID, "parent": node.ParentID}).Debug("created directory")
	return node, nil
}

// CreateLeaf adds a leaf of type t as the last child of parent together with
// its empty document.
func (s *HierarchyStore) CreateLeaf(ctx context.Context, name string, t types.HierarchyType, parent *types.HierarchyNode) (*types.HierarchyNode, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	docs, ok := s.documents[t]
	if !ok {
		return nil, fmt.Errorf("leaf type %q: %w", t, types.ErrInvalidHierarchyType)
	}

	var node *types.HierarchyNode
	err = s.db.Update(ctx, []string{HierarchyStoreName, docs.store}, func(tx *kv.Tx) error {
		p, siblings, err := directoryWithChildren(tx, parent.ID)
		if err != nil {
			return err
		}
		if p.DirectoryType != t {
			return fmt.Errorf("%s under a %s directory: %w", t, p.DirectoryType, types.ErrInvalidHierarchyType)
		}
		node = &types.HierarchyNode{
			ID:        generateID(),
			ProjectID: p.ProjectID,
			ParentID:  p.ID,
			Name:      name,
			Type:      t,
			Order:     len(siblings),
		}
		if _, err := tx.Add(HierarchyStoreName, node); err != nil {
			return fmt.Errorf("creating %s: %w", t, err)
		}
		_, err = docs.createByHierarchy(tx, node)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"node": node.ID, "type": t}).Debug("created leaf")
	return node, nil
}

// Rename changes a node's name, and for a leaf its document's name, in one
// transaction.
func (s *HierarchyStore) Rename(ctx context.Context, node *types.HierarchyNode, name string) (*types.HierarchyNode, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	scope := []string{HierarchyStoreName}
	docs, isLeaf := s.documents[node.Type]
	if isLeaf {
		scope = append(scope, docs.store)
	}

	var out *types.HierarchyNode
	err = s.db.Update(ctx, scope, func(tx *kv.Tx) error {
		cur, err := getNode(tx, node.ID)
		if err != nil {
			return err
		}
		if cur.Type != node.Type {
			return fmt.Errorf("node %s is a %s: %w", cur.ID, cur.Type, types.ErrInvalidHierarchyType)
		}
		cur.Name = name
		if _, err := tx.Put(HierarchyStoreName, cur, nil); err != nil {
			return fmt.Errorf("renaming node %s: %w", cur.ID, err)
		}
		if isLeaf {
			if err := docs.renameByHierarchy(tx, cur); err != nil {
				return err
			}
		}
		out = cur
		return nil
	})
	return out, err
}

// DeleteLeaf removes a leaf, its document and the document's relations, and
// renumbers the remaining siblings.
func (s *HierarchyStore) DeleteLeaf(ctx context.Context, node *types.HierarchyNode) error {
	docs, ok := s.documents[node.Type]
	if !ok {
		return fmt.Errorf("node %s is a %s: %w", node.ID, node.Type, types.ErrInvalidHierarchyType)
	}
	return s.db.Update(ctx, append([]string{HierarchyStoreName}, docs.deleteScope()...), func(tx *kv.Tx) error {
		cur, err := getNode(tx, node.ID)
		if err != nil {
			return err
		}
		if cur.Type != node.Type {
			return fmt.Errorf("node %s is a %s: %w", cur.ID, cur.Type, types.ErrInvalidHierarchyType)
		}
		if err := s.deleteLeaf(tx, cur); err != nil {
			return err
		}
		return renumber(tx, cur.ProjectID, cur.ParentID)
	})
}

// DeleteDirectory removes a directory and everything beneath it, including
// every document and relation of the removed leaves, and renumbers the
// remaining siblings.
func (s *HierarchyStore) DeleteDirectory(ctx context.Context, node *types.HierarchyNode) error {
	return s.db.Update(ctx, treeStores(), func(tx *kv.Tx) error {
		cur, err := getNode(tx, node.ID)
		if err != nil {
			return err
		}
		if !cur.IsDirectory() {
			return fmt.Errorf("node %s: %w", cur.ID, types.ErrNotDirectory)
		}
		if err := s.deleteDirectory(tx, cur); err != nil {
			return err
		}
		return renumber(tx, cur.ProjectID, cur.ParentID)
	})
}

// ClearDirectory removes every descendant of a directory and keeps the
// directory itself.
func (s *HierarchyStore) ClearDirectory(ctx context.Context, node *types.HierarchyNode) error {
	return s.db.Update(ctx, treeStores(), func(tx *kv.Tx) error {
		cur, kids, err := directoryWithChildren(tx, node.ID)
		if err != nil {
			return err
		}
		for _, kid := range kids {
			if err := s.deleteNode(tx, kid); err != nil {
				return err
			}
		}
		s.log.WithFields(logrus.Fields{"node": cur.ID, "count": len(kids)}).Debug("cleared directory")
		return nil
	})
}

// Reposition moves dragging under targetParentID, placing it before the child
// beforeSiblingID, or last when that id is empty or not a child of the target.
// Passing the node's own id as beforeSiblingID keeps its position. The target
// and, when different, the origin parent have their children renumbered.
func (s *HierarchyStore) Reposition(ctx context.Context, dragging *types.HierarchyNode, targetParentID, beforeSiblingID string) (*types.HierarchyNode, error) {
	var out *types.HierarchyNode
	err := s.db.Update(ctx, []string{HierarchyStoreName}, func(tx *kv.Tx) error {
		node, err := getNode(tx, dragging.ID)
		if err != nil {
			return err
		}
		target, siblings, err := directoryWithChildren(tx, targetParentID)
		if err != nil {
			return err
		}
		if target.ProjectID != node.ProjectID {
			return fmt.Errorf("target %s is in another project: %w", target.ID, types.ErrInvalidMove)
		}
		if target.DirectoryType != node.Scope() {
			return fmt.Errorf("%s node into a %s directory: %w", node.Scope(), target.DirectoryType, types.ErrInvalidHierarchyType)
		}
		if err := checkNotDescendant(tx, node, target); err != nil {
			return err
		}

		pos := -1
		rest := make([]*types.HierarchyNode, 0, len(siblings))
		for _, sib := range siblings {
			if sib.ID == node.ID {
				if beforeSiblingID == node.ID {
					pos = len(rest)
				}
				continue
			}
			if sib.ID == beforeSiblingID {
				pos = len(rest)
			}
			rest = append(rest, sib)
		}
		if pos < 0 {
			pos = len(rest)
		}

		origin := node.ParentID
		node.ParentID = target.ID
		ordered := make([]*types.HierarchyNode, 0, len(rest)+1)
		ordered = append(ordered, rest[:pos]...)
		ordered = append(ordered, node)
		ordered = append(ordered, rest[pos:]...)
		if err := writeOrders(tx, ordered, node.ID); err != nil {
			return err
		}
		if origin != target.ID {
			if err := renumber(tx, node.ProjectID, origin); err != nil {
				return err
			}
		}
		out = node
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"node": out.ID, "parent": out.ParentID, "order": out.Order}).Debug("repositioned node")
	return out, nil
}

// initProject adds the root directories of a new project.
func (s *HierarchyStore) initProject(tx *kv.Tx, projectID string) ([]*types.HierarchyNode, error) {
	roots := make([]*types.HierarchyNode, 0, len(rootDirectories))
	records := make([]any, 0, len(rootDirectories))
	for i, r := range rootDirectories {
		n := &types.HierarchyNode{
			ID:            generateID(),
			ProjectID:     projectID,
			Name:          r.name,
			Type:          types.TypeDirectory,
			Order:         i,
			DirectoryType: r.kind,
		}
		roots = append(roots, n)
		records = append(records, n)
	}
	if _, err := tx.Add(HierarchyStoreName, records...); err != nil {
		return nil, fmt.Errorf("creating root directories: %w", err)
	}
	return roots, nil
}

// deleteProject removes every node of a project with their documents and
// relations.
func (s *HierarchyStore) deleteProject(tx *kv.Tx, projectID string) (int, error) {
	nodes, err := kv.GetAllByIndex[types.HierarchyNode](tx, HierarchyStoreName, indexProject, kv.Only(projectID))
	if err != nil {
		return 0, fmt.Errorf("listing nodes of project %s: %w", projectID, err)
	}
	for i := range nodes {
		n := &nodes[i]
		if n.IsDirectory() {
			if err := tx.Delete(HierarchyStoreName, n.ID); err != nil {
				return 0, fmt.Errorf("deleting node %s: %w", n.ID, err)
			}
			continue
		}
		if err := s.deleteLeaf(tx, n); err != nil {
			return 0, err
		}
	}
	return len(nodes), nil
}

func (s *HierarchyStore) deleteNode(tx *kv.Tx, n *types.HierarchyNode) error {
	if n.IsDirectory() {
		return s.deleteDirectory(tx, n)
	}
	return s.deleteLeaf(tx, n)
}

// deleteDirectory removes the subtree below dir depth-first, then dir.
func (s *HierarchyStore) deleteDirectory(tx *kv.Tx, dir *types.HierarchyNode) error {
	kids, err := children(tx, dir.ProjectID, dir.ID)
	if err != nil {
		return err
	}
	for _, kid := range kids {
		if err := s.deleteNode(tx, kid); err != nil {
			return err
		}
	}
	if err := tx.Delete(HierarchyStoreName, dir.ID); err != nil {
		return fmt.Errorf("deleting directory %s: %w", dir.ID, err)
	}
	return nil
}

func (s *HierarchyStore) deleteLeaf(tx *kv.Tx, leaf *types.HierarchyNode) error {
	docs, ok := s.documents[leaf.Type]
	if !ok {
		return fmt.Errorf("node %s is a %s: %w", leaf.ID, leaf.Type, types.ErrInvalidHierarchyType)
	}
	if err := docs.deleteByHierarchy(tx, leaf); err != nil {
		return err
	}
	if err := tx.Delete(HierarchyStoreName, leaf.ID); err != nil {
		return fmt.Errorf("deleting node %s: %w", leaf.ID, err)
	}
	return nil
}

func getNode(tx *kv.Tx, id string) (*types.HierarchyNode, error) {
	n, err := kv.Get[types.HierarchyNode](tx, HierarchyStoreName, id)
	if err != nil {
		return nil, fmt.Errorf("getting node %s: %w", id, err)
	}
	return &n, nil
}

func listByType(tx *kv.Tx, projectID string, t types.HierarchyType) ([]*types.HierarchyNode, error) {
	nodes, err := kv.GetAllByIndex[types.HierarchyNode](tx, HierarchyStoreName, indexProjectType, kv.Only([]any{projectID, string(t)}))
	if err != nil {
		return nil, fmt.Errorf("listing %s nodes: %w", t, err)
	}
	return pointers(nodes), nil
}

// children returns the children of parentID within a project sorted by
// order. An empty parentID lists the project's roots.
func children(tx *kv.Tx, projectID, parentID string) ([]*types.HierarchyNode, error) {
	nodes, err := kv.GetAllByIndex[types.HierarchyNode](tx, HierarchyStoreName, indexProjectParent, kv.Only([]any{projectID, parentID}))
	if err != nil {
		return nil, fmt.Errorf("listing children of %q: %w", parentID, err)
	}
	return sortByOrder(pointers(nodes)), nil
}

func sortByOrder(out []*types.HierarchyNode) []*types.HierarchyNode {
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// directoryWithChildren loads a node that must be a directory, and its
// children.
func directoryWithChildren(tx *kv.Tx, id string) (*types.HierarchyNode, []*types.HierarchyNode, error) {
	dir, err := getNode(tx, id)
	if err != nil {
		return nil, nil, err
	}
	if !dir.IsDirectory() {
		return nil, nil, fmt.Errorf("node %s: %w", id, types.ErrNotDirectory)
	}
	kids, err := children(tx, dir.ProjectID, dir.ID)
	if err != nil {
		return nil, nil, err
	}
	return dir, kids, nil
}

// checkNotDescendant fails with ErrCycle when target is node or lies below it.
func checkNotDescendant(tx *kv.Tx, node, target *types.HierarchyNode) error {
	for cur := target; ; {
		if cur.ID == node.ID {
			return fmt.Errorf("moving %s under %s: %w", node.ID, target.ID, types.ErrCycle)
		}
		if cur.ParentID == "" {
			return nil
		}
		parent, err := getNode(tx, cur.ParentID)
		if err != nil {
			return err
		}
		cur = parent
	}
}

// renumber rewrites the orders of parentID's children as 0..n-1. An empty
// parentID renumbers the project's roots.
func renumber(tx *kv.Tx, projectID, parentID string) error {
	kids, err := children(tx, projectID, parentID)
	if err != nil {
		return err
	}
	return writeOrders(tx, kids, "")
}

// writeOrders assigns each node its position and writes the ones whose order
// changed, plus force.
func writeOrders(tx *kv.Tx, nodes []*types.HierarchyNode, force string) error {
	for i, n := range nodes {
		if n.Order == i && n.ID != force {
			continue
		}
		n.Order = i
		if _, err := tx.Put(HierarchyStoreName, n, nil); err != nil {
			return fmt.Errorf("reordering node %s: %w", n.ID, err)
		}
	}
	return nil
}

func pointers(nodes []types.HierarchyNode) []*types.HierarchyNode {
	out := make([]*types.HierarchyNode, len(nodes))
	for i := range nodes {
		out[i] = &nodes[i]
	}
	return out
}
