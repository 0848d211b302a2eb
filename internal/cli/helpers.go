package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mesh-intelligence/wonder/internal/store"
	"github.com/mesh-intelligence/wonder/pkg/types"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// resolveProject finds a project by id, falling back to an exact name match.
// A name shared by several projects must be given as an id.
func resolveProject(ctx context.Context, lib *store.Library, ref string) (*types.Project, error) {
	p, err := lib.Projects.Get(ctx, ref)
	if err == nil || !errors.Is(err, types.ErrNotFound) {
		return p, err
	}
	all, err := lib.Projects.List(ctx)
	if err != nil {
		return nil, err
	}
	var match *types.Project
	for _, candidate := range all {
		if candidate.Name != ref {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("several projects are named %q, use the id: %w", ref, types.ErrConstraint)
		}
		match = candidate
	}
	if match == nil {
		return nil, fmt.Errorf("project %q: %w", ref, types.ErrNotFound)
	}
	return match, nil
}

// documentOf returns the leaf node nodeID and its document.
func documentOf(ctx context.Context, lib *store.Library, nodeID string) (*types.HierarchyNode, *types.Document, error) {
	node, err := lib.Hierarchy.GetNode(ctx, nodeID)
	if err != nil {
		return nil, nil, err
	}
	docs, err := lib.Documents(node.Type)
	if err != nil {
		return nil, nil, fmt.Errorf("node %s has no document: %w", node.ID, err)
	}
	doc, err := docs.GetByHierarchy(ctx, node)
	if err != nil {
		return nil, nil, err
	}
	return node, doc, nil
}

// printNode prints a node as JSON or as "<id>\t<name>".
func (a *app) printNode(w io.Writer, n *types.HierarchyNode) error {
	if a.jsonMode {
		return printJSON(w, n)
	}
	_, err := fmt.Fprintf(w, "%s\t%s\n", n.ID, n.Name)
	return err
}
